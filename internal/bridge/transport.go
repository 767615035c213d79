// Package bridge is the client side of the execution engine bridge: an
// asynchronous request/response protocol spoken with an external engine
// process that assembles and executes the program.
package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// MaxContentLength is the largest accepted message body (16MB). Memory
// images are the biggest payloads the engine sends.
const MaxContentLength = 16 * 1024 * 1024

// Transport moves framed messages to and from the engine.
type Transport interface {
	// Send writes one message.
	Send(msg *Message) error

	// Receive blocks until one message has been read.
	Receive() (*Message, error)

	// Close releases the transport.
	Close() error
}

// Message is one framed JSON payload.
type Message struct {
	Content json.RawMessage
}

// StdioTransport talks to an engine subprocess over its stdin and stdout.
type StdioTransport struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	reader *bufio.Reader
	mu     sync.Mutex
}

// NewStdioTransport starts cmd and wires its standard streams.
func NewStdioTransport(cmd *exec.Cmd) (*StdioTransport, error) {
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("get stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("get stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		return nil, fmt.Errorf("start engine %s: %w", cmd.Path, err)
	}

	return &StdioTransport{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
		reader: bufio.NewReader(stdout),
	}, nil
}

// Send writes a message to the engine's stdin.
func (t *StdioTransport) Send(msg *Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return writeMessage(t.stdin, msg)
}

// Receive reads a message from the engine's stdout.
func (t *StdioTransport) Receive() (*Message, error) {
	return readMessage(t.reader)
}

// Close closes the pipes and terminates the engine process.
func (t *StdioTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stdin.Close()
	t.stdout.Close()

	if t.cmd.Process != nil {
		t.cmd.Process.Kill()
	}

	// The process was killed; its exit status carries no information.
	_ = t.cmd.Wait()
	return nil
}

// StreamTransport frames messages over any io.ReadWriteCloser, such as a
// TCP connection or one end of a net.Pipe.
type StreamTransport struct {
	rwc    io.ReadWriteCloser
	reader *bufio.Reader
	mu     sync.Mutex
}

// NewStreamTransport wraps rwc.
func NewStreamTransport(rwc io.ReadWriteCloser) *StreamTransport {
	return &StreamTransport{
		rwc:    rwc,
		reader: bufio.NewReader(rwc),
	}
}

// Dial connects to an engine listening on a TCP address.
func Dial(ctx context.Context, address string) (*StreamTransport, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}
	return NewStreamTransport(conn), nil
}

// Send writes a message.
func (t *StreamTransport) Send(msg *Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return writeMessage(t.rwc, msg)
}

// Receive reads a message.
func (t *StreamTransport) Receive() (*Message, error) {
	return readMessage(t.reader)
}

// Close closes the underlying stream.
func (t *StreamTransport) Close() error {
	return t.rwc.Close()
}

// writeMessage writes a Content-Length framed message.
func writeMessage(w io.Writer, msg *Message) error {
	header := "Content-Length: " + strconv.Itoa(len(msg.Content)) + "\r\n\r\n"
	if _, err := io.WriteString(w, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := w.Write(msg.Content); err != nil {
		return fmt.Errorf("write content: %w", err)
	}
	return nil
}

// readMessage reads one Content-Length framed message.
func readMessage(r *bufio.Reader) (*Message, error) {
	length := -1

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("read header: %w", err)
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}

		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("invalid header: %q", line)
		}
		if strings.EqualFold(strings.TrimSpace(name), "content-length") {
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return nil, fmt.Errorf("invalid content-length: %w", err)
			}
			if n < 0 || n > MaxContentLength {
				return nil, fmt.Errorf("content-length %d exceeds maximum allowed %d", n, MaxContentLength)
			}
			length = n
		}
	}

	if length <= 0 {
		return nil, fmt.Errorf("missing Content-Length header")
	}

	content := make([]byte, length)
	if _, err := io.ReadFull(r, content); err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}
	return &Message{Content: content}, nil
}
