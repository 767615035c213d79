package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"pkt.systems/pslog"
)

// Client speaks the engine protocol over a Transport. Requests are matched
// to responses by sequence number; responses nobody waits for (for example
// the reply to a kill) are dropped.
type Client struct {
	transport Transport
	log       pslog.Logger
	seq       int64
	pending   map[int]*pendingRequest
	pendingMu sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
	err       error
	errMu     sync.RWMutex
}

// pendingRequest tracks a request awaiting its response.
type pendingRequest struct {
	command   string
	done      chan struct{}
	closeOnce sync.Once
	response  *Response
	err       error
}

func (p *pendingRequest) close() {
	p.closeOnce.Do(func() {
		close(p.done)
	})
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the client's logger.
func WithLogger(logger pslog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.log = logger
		}
	}
}

// NewClient creates a client and starts its receive loop.
func NewClient(transport Transport, opts ...ClientOption) *Client {
	c := &Client{
		transport: transport,
		log:       pslog.Ctx(context.Background()),
		pending:   make(map[int]*pendingRequest),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With("component", "bridge")

	go c.receiveLoop()
	return c
}

// Close closes the client and its transport. Pending requests fail with
// ErrClosed.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	c.failPending(ErrClosed)
	return c.transport.Close()
}

// Err returns the error that stopped the receive loop, if any.
func (c *Client) Err() error {
	c.errMu.RLock()
	defer c.errMu.RUnlock()
	return c.err
}

func (c *Client) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Client) failPending(err error) {
	c.pendingMu.Lock()
	pending := c.pending
	c.pending = make(map[int]*pendingRequest)
	c.pendingMu.Unlock()

	for _, req := range pending {
		req.err = err
		req.close()
	}
}

// receiveLoop reads messages until the transport fails or the client closes.
func (c *Client) receiveLoop() {
	for {
		msg, err := c.transport.Receive()
		if err != nil {
			if c.closed() {
				return
			}
			c.errMu.Lock()
			c.err = err
			c.errMu.Unlock()

			c.log.Error("engine receive failed", "err", err)
			c.failPending(fmt.Errorf("engine connection lost: %w", err))
			return
		}
		if c.closed() {
			return
		}
		c.handleMessage(msg)
	}
}

func (c *Client) handleMessage(msg *Message) {
	var resp Response
	if err := json.Unmarshal(msg.Content, &resp); err != nil {
		c.log.Warn("engine sent malformed message", "err", err)
		return
	}
	if resp.Type != messageTypeResponse {
		c.log.Debug("engine message ignored", "type", resp.Type)
		return
	}

	c.pendingMu.Lock()
	req, ok := c.pending[resp.RequestSeq]
	if ok {
		delete(c.pending, resp.RequestSeq)
	}
	c.pendingMu.Unlock()

	if !ok {
		c.log.Debug("engine response dropped", "request_seq", resp.RequestSeq, "command", resp.Command)
		return
	}
	req.response = &resp
	req.close()
}

func (c *Client) encode(command string, args any) (int, *Message, error) {
	seq := int(atomic.AddInt64(&c.seq, 1))

	var argsJSON json.RawMessage
	if args != nil {
		var err error
		argsJSON, err = json.Marshal(args)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal arguments: %w", err)
		}
	}

	content, err := json.Marshal(Request{
		ProtocolMessage: ProtocolMessage{Seq: seq, Type: messageTypeRequest},
		Command:         command,
		Arguments:       argsJSON,
	})
	if err != nil {
		return 0, nil, fmt.Errorf("marshal request: %w", err)
	}
	return seq, &Message{Content: content}, nil
}

// sendRequest sends a request and blocks until its response arrives or ctx
// is done. There is no built-in timeout.
func (c *Client) sendRequest(ctx context.Context, command string, args any) (*Response, error) {
	if c.closed() {
		return nil, ErrClosed
	}

	seq, msg, err := c.encode(command, args)
	if err != nil {
		return nil, err
	}

	pending := &pendingRequest{command: command, done: make(chan struct{})}
	c.pendingMu.Lock()
	c.pending[seq] = pending
	c.pendingMu.Unlock()

	c.log.Debug("engine request", "command", command, "seq", seq)
	if err := c.transport.Send(msg); err != nil {
		c.pendingMu.Lock()
		delete(c.pending, seq)
		c.pendingMu.Unlock()
		return nil, fmt.Errorf("send %s: %w", command, err)
	}

	select {
	case <-ctx.Done():
		c.pendingMu.Lock()
		delete(c.pending, seq)
		c.pendingMu.Unlock()
		return nil, ctx.Err()
	case <-pending.done:
		if pending.err != nil {
			return nil, pending.err
		}
		return pending.response, nil
	}
}

// notify sends a request without waiting for, or tracking, a response.
func (c *Client) notify(command string, args any) error {
	if c.closed() {
		return ErrClosed
	}
	seq, msg, err := c.encode(command, args)
	if err != nil {
		return err
	}
	c.log.Debug("engine notify", "command", command, "seq", seq)
	if err := c.transport.Send(msg); err != nil {
		return fmt.Errorf("send %s: %w", command, err)
	}
	return nil
}

func decodeBody(resp *Response, v any) error {
	if len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return fmt.Errorf("decode %s body: %w", resp.Command, err)
	}
	return nil
}

// Compile assembles the project in dir. breakpoints maps file base names to
// ascending line numbers and is omitted for plain runs. A failed compile
// returns a *CompileError.
func (c *Client) Compile(ctx context.Context, dir string, breakpoints map[string][]int) error {
	resp, err := c.sendRequest(ctx, CommandCompile, CompileArguments{
		DirPath:       dir,
		BreakpointMap: breakpoints,
	})
	if err != nil {
		return err
	}
	if resp.Success {
		return nil
	}

	var body CompileFailureBody
	if err := decodeBody(resp, &body); err != nil {
		return err
	}
	msgs := body.Errors
	if len(msgs) == 0 && resp.Message != "" {
		msgs = []string{resp.Message}
	}
	return &CompileError{Messages: msgs}
}

// Run executes program instructions until the program ends or asks for
// input. input answers the previous input request.
func (c *Client) Run(ctx context.Context, input *int32) (RunResult, error) {
	resp, err := c.sendRequest(ctx, CommandRun, TickArguments{StdInput: input})
	if err != nil {
		return RunResult{}, err
	}
	if !resp.Success {
		return RunResult{}, &RuntimeError{Message: resp.Message}
	}
	var res RunResult
	err = decodeBody(resp, &res)
	return res, err
}

// DebugTick executes one instruction in debug mode.
func (c *Client) DebugTick(ctx context.Context, input *int32) (TickResult, error) {
	resp, err := c.sendRequest(ctx, CommandDebugRun, TickArguments{StdInput: input})
	if err != nil {
		return TickResult{}, err
	}
	if !resp.Success {
		return TickResult{}, &RuntimeError{Message: resp.Message}
	}
	var res TickResult
	err = decodeBody(resp, &res)
	return res, err
}

// Kill asks the engine to stop the running program. It does not wait for
// an acknowledgment.
func (c *Client) Kill() error {
	return c.notify(CommandKill, struct{}{})
}

// DisplayRegisters fetches the register file rendered in format.
func (c *Client) DisplayRegisters(ctx context.Context, format Format) (Registers, error) {
	resp, err := c.sendRequest(ctx, CommandDisplayCPU, DisplayArguments{NumFormat: format})
	if err != nil {
		return Registers{}, err
	}
	if !resp.Success {
		return Registers{}, fmt.Errorf("%s: %w: %s", resp.Command, ErrRequestFailed, resp.Message)
	}
	var regs Registers
	err = decodeBody(resp, &regs)
	return regs, err
}

// DisplayMemory fetches the memory image rendered in format.
func (c *Client) DisplayMemory(ctx context.Context, format Format) (Memory, error) {
	resp, err := c.sendRequest(ctx, CommandDisplayMemory, DisplayArguments{NumFormat: format})
	if err != nil {
		return Memory{}, err
	}
	if !resp.Success {
		return Memory{}, fmt.Errorf("%s: %w: %s", resp.Command, ErrRequestFailed, resp.Message)
	}
	var mem Memory
	err = decodeBody(resp, &mem)
	return mem, err
}
