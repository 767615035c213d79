package bridge

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Engine commands.
const (
	CommandCompile       = "compile"
	CommandRun           = "run"
	CommandDebugRun      = "debug_run"
	CommandKill          = "kill_process"
	CommandDisplayCPU    = "display_cpu"
	CommandDisplayMemory = "display_memory"
)

const (
	messageTypeRequest  = "request"
	messageTypeResponse = "response"
)

// ProtocolMessage is the envelope shared by requests and responses.
type ProtocolMessage struct {
	Seq  int    `json:"seq"`
	Type string `json:"type"`
}

// Request is a command sent to the engine.
type Request struct {
	ProtocolMessage
	Command   string          `json:"command"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Response is the engine's answer to a request.
type Response struct {
	ProtocolMessage
	RequestSeq int             `json:"request_seq"`
	Success    bool            `json:"success"`
	Command    string          `json:"command"`
	Message    string          `json:"message,omitempty"`
	Body       json.RawMessage `json:"body,omitempty"`
}

// Format is the number system the engine renders register and memory
// values in. Formatting happens engine side; the client never reformats.
type Format string

const (
	FormatUnsigned    Format = "unsigned"
	FormatSigned      Format = "signed"
	FormatBinary      Format = "binary"
	FormatHexadecimal Format = "hexadecimal"
)

// Formats lists every display format.
func Formats() []Format {
	return []Format{FormatUnsigned, FormatSigned, FormatBinary, FormatHexadecimal}
}

// ParseFormat converts a format name. "hex" and "bin" are accepted as
// shorthands.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "unsigned", "":
		return FormatUnsigned, nil
	case "signed":
		return FormatSigned, nil
	case "binary", "bin":
		return FormatBinary, nil
	case "hexadecimal", "hex":
		return FormatHexadecimal, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// InputRequest is the kind of interactive input a running program asked for.
type InputRequest string

const (
	InputNone      InputRequest = "none"
	InputGetChar   InputRequest = "get_char"
	InputGetNumber InputRequest = "get_number"
)

// ParseInputRequest converts a reported input kind. An empty kind means
// no input is wanted.
func ParseInputRequest(s string) (InputRequest, error) {
	switch r := InputRequest(strings.ToLower(strings.TrimSpace(s))); r {
	case "", InputNone:
		return InputNone, nil
	case InputGetChar, InputGetNumber:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownInput, s)
	}
}

// Pending reports whether the program is waiting for input.
func (r InputRequest) Pending() bool {
	return r != "" && r != InputNone
}

// CompileArguments are the arguments of the compile command.
type CompileArguments struct {
	DirPath       string           `json:"dir_path"`
	BreakpointMap map[string][]int `json:"breakpoint_map,omitempty"`
}

// TickArguments are the arguments of run and debug_run.
type TickArguments struct {
	StdInput *int32 `json:"std_input,omitempty"`
}

// DisplayArguments are the arguments of display_cpu and display_memory.
type DisplayArguments struct {
	NumFormat Format `json:"num_format"`
}

// CompileFailureBody is the body of an unsuccessful compile response.
type CompileFailureBody struct {
	Errors []string `json:"errors"`
}

// RunResult is the body of a run response.
type RunResult struct {
	Output string       `json:"output"`
	Input  InputRequest `json:"input"`
	Status string       `json:"status"`
}

// TickResult is the body of a debug_run response.
type TickResult struct {
	File   string       `json:"file"`
	Line   int          `json:"line"`
	Status string       `json:"status"`
	Input  InputRequest `json:"input"`
	Output string       `json:"output,omitempty"`
}

// Registers is the body of a display_cpu response: sixteen formatted
// register values (13 = SP, 14 = LR, 15 = PC) and the condition flags.
type Registers struct {
	R []string `json:"R"`
	N bool     `json:"N"`
	Z bool     `json:"Z"`
	C bool     `json:"C"`
	V bool     `json:"V"`
}

// Memory is the body of a display_memory response. Index 0 of Bytes is the
// highest address.
type Memory struct {
	Bytes        []string `json:"memory"`
	StackPointer int      `json:"sp"`
}
