package session

import (
	"context"
	"io"
	"sync"
	"testing"

	"pkt.systems/pslog"

	"github.com/dshills/asmstudio/internal/bridge"
	"github.com/dshills/asmstudio/internal/files"
	"github.com/dshills/asmstudio/internal/workspace"
)

const mainSrc = "start:\n  mov r0, #1\n  add r0, r0, #2\n  b start\n"

type runStep struct {
	res bridge.RunResult
	err error
}

type tickStep struct {
	res bridge.TickResult
	err error
}

// fakeEngine replays scripted responses and records every request.
type fakeEngine struct {
	mu         sync.Mutex
	calls      []string
	inputs     []*int32
	compiled   []map[string][]int
	compileErr error
	runs       []runStep
	ticks      []tickStep
	displayErr error

	// When gate is set, ticks signal entered and wait for the gate.
	// ignoreCtx makes a gated tick wait for the gate even after its
	// context is cancelled.
	gate      chan struct{}
	entered   chan struct{}
	ignoreCtx bool

	onKill func()
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{}
}

func (e *fakeEngine) record(call string) {
	e.mu.Lock()
	e.calls = append(e.calls, call)
	e.mu.Unlock()
}

func (e *fakeEngine) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

func (e *fakeEngine) count(call string) int {
	n := 0
	for _, c := range e.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

func (e *fakeEngine) wait(ctx context.Context) error {
	e.mu.Lock()
	gate, entered, ignore := e.gate, e.entered, e.ignoreCtx
	e.mu.Unlock()
	if gate == nil {
		return nil
	}
	if entered != nil {
		entered <- struct{}{}
	}
	if ignore {
		<-gate
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *fakeEngine) Compile(_ context.Context, _ string, breakpoints map[string][]int) error {
	e.record(bridge.CommandCompile)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiled = append(e.compiled, breakpoints)
	return e.compileErr
}

func (e *fakeEngine) Run(ctx context.Context, input *int32) (bridge.RunResult, error) {
	e.record(bridge.CommandRun)
	if err := e.wait(ctx); err != nil {
		return bridge.RunResult{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.inputs = append(e.inputs, input)
	if len(e.runs) == 0 {
		return bridge.RunResult{Status: "end", Input: bridge.InputNone}, nil
	}
	step := e.runs[0]
	e.runs = e.runs[1:]
	return step.res, step.err
}

func (e *fakeEngine) DebugTick(ctx context.Context, input *int32) (bridge.TickResult, error) {
	e.record(bridge.CommandDebugRun)
	if err := e.wait(ctx); err != nil {
		return bridge.TickResult{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.inputs = append(e.inputs, input)
	if len(e.ticks) == 0 {
		return bridge.TickResult{Status: "end", Input: bridge.InputNone}, nil
	}
	step := e.ticks[0]
	e.ticks = e.ticks[1:]
	return step.res, step.err
}

func (e *fakeEngine) Kill() error {
	e.record(bridge.CommandKill)
	e.mu.Lock()
	fn := e.onKill
	e.mu.Unlock()
	if fn != nil {
		fn()
	}
	return nil
}

func (e *fakeEngine) DisplayRegisters(_ context.Context, format bridge.Format) (bridge.Registers, error) {
	e.record(bridge.CommandDisplayCPU)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.displayErr != nil {
		return bridge.Registers{}, e.displayErr
	}
	return bridge.Registers{R: make([]string, 16)}, nil
}

func (e *fakeEngine) DisplayMemory(_ context.Context, format bridge.Format) (bridge.Memory, error) {
	e.record(bridge.CommandDisplayMemory)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.displayErr != nil {
		return bridge.Memory{}, e.displayErr
	}
	return bridge.Memory{Bytes: []string{"0", "0", "0", "0"}}, nil
}

func (e *fakeEngine) lastInput() *int32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.inputs) == 0 {
		return nil
	}
	return e.inputs[len(e.inputs)-1]
}

func tick(file string, line int, st string) tickStep {
	return tickStep{res: bridge.TickResult{File: file, Line: line, Status: st, Input: bridge.InputNone}}
}

func newTestController(t *testing.T, eng *fakeEngine) *Controller {
	t.Helper()
	mem := workspace.NewMemFS(map[string]string{
		"/proj/main.s": mainSrc,
		"/proj/util.s": "util:\n  bx lr\n",
	})
	ws, err := workspace.New("/proj", mem)
	if err != nil {
		t.Fatal(err)
	}
	ws.Index().Add("/proj/main.s")
	ws.Index().Add("/proj/util.s")

	logger := pslog.NewWithOptions(io.Discard, pslog.Options{Mode: pslog.ModeStructured, NoColor: true, MinLevel: pslog.TraceLevel})
	return New(Config{
		Engine: eng,
		Files:  files.NewRegistry(ws, nil, logger),
		Dir:    "/proj",
		Logger: logger,
	})
}
