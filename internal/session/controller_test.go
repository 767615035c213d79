package session

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dshills/asmstudio/internal/bridge"
	"github.com/dshills/asmstudio/internal/files"
	"github.com/dshills/asmstudio/internal/highlight"
	"github.com/dshills/asmstudio/internal/output"
	"github.com/dshills/asmstudio/internal/status"
	"github.com/dshills/asmstudio/internal/toolbar"
)

func TestRunCompletes(t *testing.T) {
	eng := newFakeEngine()
	eng.runs = []runStep{{res: bridge.RunResult{Output: "42\n", Input: bridge.InputNone, Status: "end"}}}
	c := newTestController(t, eng)

	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []output.Entry{
		{Kind: output.KindCompile, Message: "Compiling..."},
		{Kind: output.KindCompile, Message: "Compiled Successfully"},
		{Kind: output.KindRun, Message: "Running..."},
		{Kind: output.KindText, Message: "42\n"},
		{Kind: output.KindRun, Message: "Finished Running"},
	}
	if got := c.Output().Entries(); !reflect.DeepEqual(got, want) {
		t.Errorf("output = %v, want %v", got, want)
	}
	if c.Status() != status.End {
		t.Errorf("status = %s, want end", c.Status())
	}
	if got := c.Mode(); got != toolbar.ModeFor(status.Inactive) {
		t.Errorf("mode = %s", got)
	}

	wantCalls := []string{"compile", "run", "display_cpu", "display_memory"}
	if got := eng.Calls(); !reflect.DeepEqual(got, wantCalls) {
		t.Errorf("calls = %v, want %v", got, wantCalls)
	}
	if eng.compiled[0] != nil {
		t.Errorf("plain run sent breakpoints: %v", eng.compiled[0])
	}
}

func TestRunClearsPreviousOutput(t *testing.T) {
	eng := newFakeEngine()
	c := newTestController(t, eng)
	c.Output().Append(output.KindText, "old")

	if err := c.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if first := c.Output().Entries()[0]; first.Message != "Compiling..." {
		t.Errorf("first entry = %v", first)
	}
}

func TestDebugStopsAtBreakpoint(t *testing.T) {
	eng := newFakeEngine()
	eng.ticks = []tickStep{
		tick("main.s", 1, "continue"),
		tick("main.s", 2, "continue"),
		tick("main.s", 3, "breakpoint"),
	}
	c := newTestController(t, eng)

	f, err := c.Files().Open("main.s")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Files().ToggleBreakpoint(f.ID(), 3); err != nil {
		t.Fatal(err)
	}

	var revealed []int
	c.SetHandlers(Handlers{
		OnReveal: func(file *files.OpenFile, line int) { revealed = append(revealed, line) },
	})

	if err := c.Debug(context.Background()); err != nil {
		t.Fatalf("Debug: %v", err)
	}

	if want := map[string][]int{"main.s": {3}}; !reflect.DeepEqual(eng.compiled[0], want) {
		t.Errorf("breakpoint map = %v, want %v", eng.compiled[0], want)
	}
	if c.Status() != status.Breakpoint {
		t.Errorf("status = %s, want breakpoint", c.Status())
	}
	if loc := c.Highlighter().Location(); loc != (highlight.Location{FileID: "/proj/main.s", Line: 3}) {
		t.Errorf("highlight = %+v", loc)
	}
	mode := c.Mode()
	if !mode.Continue || !mode.Step || !mode.Stop || mode.Run || mode.Debug {
		t.Errorf("mode = %s", mode)
	}
	if !reflect.DeepEqual(revealed, []int{1, 2, 3}) {
		t.Errorf("revealed = %v", revealed)
	}

	// Each tick is followed by its snapshot refresh before the next tick.
	wantCalls := []string{
		"compile",
		"debug_run", "display_cpu", "display_memory",
		"debug_run", "display_cpu", "display_memory",
		"debug_run", "display_cpu", "display_memory",
	}
	if got := eng.Calls(); !reflect.DeepEqual(got, wantCalls) {
		t.Errorf("calls = %v, want %v", got, wantCalls)
	}

	entries := c.Output().Entries()
	if entries[len(entries)-1] != (output.Entry{Kind: output.KindRun, Message: "Debugging..."}) {
		t.Errorf("last entry = %v", entries[len(entries)-1])
	}
}

func TestDebugOpensAndSelectsReportedFile(t *testing.T) {
	eng := newFakeEngine()
	eng.ticks = []tickStep{tick("util.s", 2, "breakpoint")}
	c := newTestController(t, eng)

	if err := c.Debug(context.Background()); err != nil {
		t.Fatal(err)
	}

	sel, ok := c.Files().Selected()
	if !ok || sel.Name() != "util.s" {
		t.Fatalf("selected = %v, %v", sel, ok)
	}
	if line, ok := c.Highlighter().LineFor(sel.Path(), sel.Document()); !ok || line != 2 {
		t.Errorf("LineFor = %d, %v", line, ok)
	}
}

func TestDebugUnknownFileLeavesView(t *testing.T) {
	eng := newFakeEngine()
	eng.ticks = []tickStep{tick("ghost.s", 2, "breakpoint")}
	c := newTestController(t, eng)

	if err := c.Debug(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !c.Highlighter().Location().IsZero() {
		t.Errorf("highlight = %+v", c.Highlighter().Location())
	}
	if len(c.Files().List()) != 0 {
		t.Error("unresolved file was opened")
	}
	if c.Status() != status.Breakpoint {
		t.Errorf("status = %s", c.Status())
	}
}

func TestContinueToEnd(t *testing.T) {
	eng := newFakeEngine()
	eng.ticks = []tickStep{
		tick("main.s", 3, "breakpoint"),
		tick("main.s", 4, "continue"),
		tick("main.s", 2, "end"),
	}
	c := newTestController(t, eng)
	ctx := context.Background()

	if err := c.Debug(ctx); err != nil {
		t.Fatal(err)
	}
	if err := c.Continue(ctx); err != nil {
		t.Fatalf("Continue: %v", err)
	}

	if c.Status() != status.End {
		t.Errorf("status = %s, want end", c.Status())
	}
	if !c.Highlighter().Location().IsZero() {
		t.Errorf("highlight not cleared: %+v", c.Highlighter().Location())
	}
	entries := c.Output().Entries()
	if last := entries[len(entries)-1]; last != (output.Entry{Kind: output.KindRun, Message: "Finished Debugging"}) {
		t.Errorf("last entry = %v", last)
	}
	if n := eng.count("debug_run"); n != 3 {
		t.Errorf("debug_run calls = %d, want 3", n)
	}
}

func TestStepIssuesOneTick(t *testing.T) {
	eng := newFakeEngine()
	eng.ticks = []tickStep{
		tick("main.s", 3, "breakpoint"),
		tick("main.s", 4, "continue"),
		tick("main.s", 1, "continue"),
	}
	c := newTestController(t, eng)
	ctx := context.Background()

	if err := c.Debug(ctx); err != nil {
		t.Fatal(err)
	}

	var transitions []status.Status
	c.SetHandlers(Handlers{
		OnStatusChanged: func(_, next status.Status) { transitions = append(transitions, next) },
	})

	if err := c.Step(ctx); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if n := eng.count("debug_run"); n != 2 {
		t.Errorf("debug_run calls = %d, want 2", n)
	}
	if c.Status() != status.Breakpoint {
		t.Errorf("status = %s, want breakpoint", c.Status())
	}
	if want := []status.Status{status.Step, status.Breakpoint}; !reflect.DeepEqual(transitions, want) {
		t.Errorf("transitions = %v, want %v", transitions, want)
	}
	if loc := c.Highlighter().Location(); loc.Line != 4 {
		t.Errorf("highlight = %+v", loc)
	}
}

func TestInputValidation(t *testing.T) {
	eng := newFakeEngine()
	eng.ticks = []tickStep{
		{res: bridge.TickResult{File: "main.s", Line: 2, Status: "continue", Input: bridge.InputGetChar}},
		tick("main.s", 3, "end"),
	}
	c := newTestController(t, eng)
	ctx := context.Background()

	var requested []bridge.InputRequest
	c.SetHandlers(Handlers{
		OnInputRequested: func(req bridge.InputRequest) { requested = append(requested, req) },
	})

	if err := c.Debug(ctx); err != nil {
		t.Fatal(err)
	}
	if c.Status() != status.AwaitingInput {
		t.Fatalf("status = %s, want awaiting_input", c.Status())
	}
	if !reflect.DeepEqual(requested, []bridge.InputRequest{bridge.InputGetChar}) {
		t.Errorf("requested = %v", requested)
	}
	mode := c.Mode()
	if !mode.Continue || !mode.Step || !mode.Stop {
		t.Errorf("mode = %s", mode)
	}

	callsBefore := len(eng.Calls())
	for _, tt := range []struct {
		text string
		want string
	}{
		{"ab", MsgTooManyCharacters},
		{"", MsgNoCharacters},
	} {
		err := c.SubmitInput(ctx, tt.text)
		var ie *InputError
		if !errors.As(err, &ie) || ie.Message != tt.want {
			t.Errorf("SubmitInput(%q) = %v", tt.text, err)
		}
		entries := c.Output().Entries()
		if last := entries[len(entries)-1]; last != (output.Entry{Kind: output.KindText, Message: tt.want}) {
			t.Errorf("last entry = %v", last)
		}
		if c.Status() != status.AwaitingInput {
			t.Errorf("status = %s after invalid input", c.Status())
		}
	}
	if got := len(eng.Calls()); got != callsBefore {
		t.Errorf("invalid input reached the engine: %v", eng.Calls()[callsBefore:])
	}

	if err := c.SubmitInput(ctx, "x"); err != nil {
		t.Fatalf("SubmitInput: %v", err)
	}
	if in := eng.lastInput(); in == nil || *in != 'x' {
		t.Errorf("input sent = %v", in)
	}
	if c.Status() != status.End {
		t.Errorf("status = %s, want end", c.Status())
	}
	if c.PendingInput().Pending() {
		t.Error("input still pending")
	}
}

func TestInputResumeModeStep(t *testing.T) {
	eng := newFakeEngine()
	eng.ticks = []tickStep{
		{res: bridge.TickResult{File: "main.s", Line: 2, Status: "continue", Input: bridge.InputGetNumber}},
		tick("main.s", 3, "continue"),
		tick("main.s", 4, "continue"),
	}
	c := newTestController(t, eng)
	ctx := context.Background()

	if err := c.Debug(ctx); err != nil {
		t.Fatal(err)
	}
	if c.ResumeMode() != status.Continue {
		t.Errorf("resume mode = %s", c.ResumeMode())
	}

	calls := len(eng.Calls())
	if err := c.Step(ctx); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if len(eng.Calls()) != calls {
		t.Error("Step while awaiting input contacted the engine")
	}
	if c.ResumeMode() != status.Step || c.Status() != status.AwaitingInput {
		t.Errorf("resume mode = %s, status = %s", c.ResumeMode(), c.Status())
	}

	if err := c.SubmitInput(ctx, "12x"); err == nil {
		t.Error("expected invalid number")
	}
	if err := c.SubmitInput(ctx, " -5 "); err != nil {
		t.Fatalf("SubmitInput: %v", err)
	}
	if in := eng.lastInput(); in == nil || *in != -5 {
		t.Errorf("input sent = %v", in)
	}
	if n := eng.count("debug_run"); n != 2 {
		t.Errorf("debug_run calls = %d, want 2", n)
	}
	if c.Status() != status.Breakpoint {
		t.Errorf("status = %s, want breakpoint", c.Status())
	}
}

func TestRunWaitsForInput(t *testing.T) {
	eng := newFakeEngine()
	eng.runs = []runStep{
		{res: bridge.RunResult{Output: "? ", Input: bridge.InputGetNumber, Status: "running"}},
		{res: bridge.RunResult{Output: "7\n", Input: bridge.InputNone, Status: "end"}},
	}
	c := newTestController(t, eng)
	ctx := context.Background()

	if err := c.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if c.Status() != status.Running {
		t.Errorf("status = %s, want running", c.Status())
	}
	if c.PendingInput() != bridge.InputGetNumber {
		t.Errorf("pending = %s", c.PendingInput())
	}
	if m := c.Mode(); !m.Stop || m.Continue || m.Step || m.Run {
		t.Errorf("mode = %s", m)
	}
	if err := c.Continue(ctx); !errors.Is(err, ErrCommandDisabled) {
		t.Errorf("Continue = %v", err)
	}

	if err := c.SubmitInput(ctx, "7"); err != nil {
		t.Fatalf("SubmitInput: %v", err)
	}
	if in := eng.lastInput(); in == nil || *in != 7 {
		t.Errorf("input sent = %v", in)
	}
	if c.Status() != status.End {
		t.Errorf("status = %s", c.Status())
	}
	entries := c.Output().Entries()
	if last := entries[len(entries)-1]; last.Message != "Finished Running" {
		t.Errorf("last entry = %v", last)
	}
}

func TestSubmitInputWithoutRequest(t *testing.T) {
	c := newTestController(t, newFakeEngine())
	if err := c.SubmitInput(context.Background(), "1"); !errors.Is(err, ErrNoInputPending) {
		t.Errorf("SubmitInput = %v", err)
	}
}

func TestStopWhileRunning(t *testing.T) {
	eng := newFakeEngine()
	eng.gate = make(chan struct{})
	eng.entered = make(chan struct{}, 1)
	c := newTestController(t, eng)

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()

	select {
	case <-eng.entered:
	case <-time.After(time.Second):
		t.Fatal("run tick never issued")
	}
	if c.Status() != status.Running {
		t.Fatalf("status = %s, want running", c.Status())
	}

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	// Local state resets before any acknowledgment.
	if !c.Highlighter().Location().IsZero() {
		t.Error("highlight not cleared")
	}
	if c.Status() != status.End {
		t.Errorf("status = %s, want end", c.Status())
	}
	if c.Mode() != toolbar.ModeFor(status.Inactive) {
		t.Errorf("mode = %s", c.Mode())
	}
	if eng.count("kill_process") != 1 {
		t.Error("kill not sent")
	}
	entries := c.Output().Entries()
	if last := entries[len(entries)-1]; last != (output.Entry{Kind: output.KindRun, Message: "Terminated Program"}) {
		t.Errorf("last entry = %v", last)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
	if got := c.Output().Entries(); len(got) != len(entries) {
		t.Errorf("entries appended after stop: %v", got[len(entries):])
	}
}

func TestStaleResponseDiscarded(t *testing.T) {
	eng := newFakeEngine()
	eng.ticks = []tickStep{
		tick("main.s", 3, "breakpoint"),
		{res: bridge.TickResult{File: "main.s", Line: 4, Status: "breakpoint", Input: bridge.InputNone, Output: "late"}},
	}
	c := newTestController(t, eng)
	ctx := context.Background()

	if err := c.Debug(ctx); err != nil {
		t.Fatal(err)
	}

	eng.mu.Lock()
	eng.gate = make(chan struct{})
	eng.entered = make(chan struct{}, 1)
	eng.ignoreCtx = true
	eng.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- c.Continue(ctx) }()
	<-eng.entered

	if err := c.Stop(); err != nil {
		t.Fatal(err)
	}
	close(eng.gate)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Continue did not return")
	}

	if c.Status() != status.End {
		t.Errorf("status = %s, want end", c.Status())
	}
	if !c.Highlighter().Location().IsZero() {
		t.Errorf("stale tick moved highlight: %+v", c.Highlighter().Location())
	}
	for _, e := range c.Output().Entries() {
		if e.Message == "late" {
			t.Error("stale tick output was logged")
		}
	}
}

func TestCompileFailure(t *testing.T) {
	eng := newFakeEngine()
	eng.compileErr = &bridge.CompileError{Messages: []string{"line 2: bad operand", "line 4: unknown label"}}
	c := newTestController(t, eng)

	if err := c.Debug(context.Background()); err != nil {
		t.Fatal(err)
	}

	want := []output.Entry{
		{Kind: output.KindCompile, Message: "Compiling..."},
		{Kind: output.KindError, Message: "line 2: bad operand"},
		{Kind: output.KindError, Message: "line 4: unknown label"},
		{Kind: output.KindRed, Message: "Compiling failed..."},
	}
	if got := c.Output().Entries(); !reflect.DeepEqual(got, want) {
		t.Errorf("output = %v, want %v", got, want)
	}
	if got := eng.Calls(); !reflect.DeepEqual(got, []string{"compile"}) {
		t.Errorf("calls = %v", got)
	}
	if c.Status() != status.Inactive {
		t.Errorf("status = %s", c.Status())
	}

	// The controller is free again.
	eng.compileErr = nil
	if err := c.Run(context.Background()); err != nil {
		t.Errorf("Run after compile failure: %v", err)
	}
}

func TestRuntimeError(t *testing.T) {
	eng := newFakeEngine()
	eng.ticks = []tickStep{
		tick("main.s", 2, "continue"),
		{err: &bridge.RuntimeError{Message: "division by zero"}},
	}
	c := newTestController(t, eng)

	if err := c.Debug(context.Background()); err != nil {
		t.Fatal(err)
	}

	entries := c.Output().Entries()
	tail := entries[len(entries)-2:]
	want := []output.Entry{
		{Kind: output.KindRed, Message: "Runtime Error:"},
		{Kind: output.KindError, Message: "division by zero"},
	}
	if !reflect.DeepEqual(tail, want) {
		t.Errorf("tail = %v, want %v", tail, want)
	}
	if c.Status() != status.End {
		t.Errorf("status = %s", c.Status())
	}
	if !c.Highlighter().Location().IsZero() {
		t.Error("highlight not cleared")
	}
	calls := eng.Calls()
	if calls[len(calls)-1] != "display_memory" {
		t.Errorf("no snapshot refresh after failure: %v", calls)
	}
}

func TestBridgeFailure(t *testing.T) {
	eng := newFakeEngine()
	eng.runs = []runStep{{err: errors.New("engine connection lost: EOF")}}
	eng.displayErr = errors.New("engine connection lost: EOF")
	c := newTestController(t, eng)

	if err := c.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	entries := c.Output().Entries()
	if last := entries[len(entries)-1]; last != (output.Entry{Kind: output.KindError, Message: "engine connection lost: EOF"}) {
		t.Errorf("last entry = %v", last)
	}
	if c.Status() != status.End {
		t.Errorf("status = %s", c.Status())
	}
	if eng.count("display_cpu") != 1 || eng.count("display_memory") != 1 {
		t.Errorf("best-effort refresh not attempted: %v", eng.Calls())
	}
}

func TestUnknownStatusEndsSession(t *testing.T) {
	eng := newFakeEngine()
	eng.ticks = []tickStep{tick("main.s", 1, "exploded")}
	c := newTestController(t, eng)

	if err := c.Debug(context.Background()); err != nil {
		t.Fatal(err)
	}
	if c.Status() != status.End {
		t.Errorf("status = %s", c.Status())
	}
}

func TestDisabledCommands(t *testing.T) {
	eng := newFakeEngine()
	eng.ticks = []tickStep{tick("main.s", 3, "breakpoint")}
	c := newTestController(t, eng)
	ctx := context.Background()

	for name, fn := range map[string]func() error{
		"continue": func() error { return c.Continue(ctx) },
		"step":     func() error { return c.Step(ctx) },
		"stop":     c.Stop,
	} {
		if err := fn(); !errors.Is(err, ErrCommandDisabled) {
			t.Errorf("%s while inactive = %v", name, err)
		}
	}
	if len(eng.Calls()) != 0 {
		t.Errorf("disabled commands reached the engine: %v", eng.Calls())
	}

	if err := c.Debug(ctx); err != nil {
		t.Fatal(err)
	}
	if err := c.Run(ctx); !errors.Is(err, ErrCommandDisabled) {
		t.Errorf("Run at breakpoint = %v", err)
	}
	if err := c.Debug(ctx); !errors.Is(err, ErrCommandDisabled) {
		t.Errorf("Debug at breakpoint = %v", err)
	}
}

func TestRejectsCommandsWhileBusy(t *testing.T) {
	eng := newFakeEngine()
	eng.gate = make(chan struct{})
	eng.entered = make(chan struct{}, 1)
	c := newTestController(t, eng)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.Run(context.Background())
	}()
	<-eng.entered

	if err := c.Run(context.Background()); !errors.Is(err, ErrCommandDisabled) {
		t.Errorf("second Run = %v", err)
	}

	close(eng.gate)
	wg.Wait()
	if c.Status() != status.End {
		t.Errorf("status = %s", c.Status())
	}
}

func TestSetFormat(t *testing.T) {
	eng := newFakeEngine()
	c := newTestController(t, eng)
	ctx := context.Background()

	if err := c.SetRegisterFormat(ctx, bridge.FormatHexadecimal); err != nil {
		t.Fatal(err)
	}
	if err := c.SetMemoryFormat(ctx, bridge.FormatBinary); err != nil {
		t.Fatal(err)
	}
	if got := eng.Calls(); !reflect.DeepEqual(got, []string{"display_cpu", "display_memory"}) {
		t.Errorf("calls = %v", got)
	}
	if c.Snapshots().Registers().Format != bridge.FormatHexadecimal {
		t.Errorf("register format = %s", c.Snapshots().Registers().Format)
	}
}

func TestStopWhileApplyingTick(t *testing.T) {
	eng := newFakeEngine()
	eng.ticks = []tickStep{
		{res: bridge.TickResult{File: "main.s", Line: 2, Status: "breakpoint", Input: bridge.InputNone, Output: "x"}},
	}
	c := newTestController(t, eng)
	c.Output().OnAppend(func(e output.Entry) {
		if e.Kind == output.KindText {
			if err := c.Stop(); err != nil {
				t.Errorf("Stop: %v", err)
			}
		}
	})

	if err := c.Debug(context.Background()); err != nil {
		t.Fatal(err)
	}

	if c.Status() != status.End {
		t.Errorf("status = %s, want end", c.Status())
	}
	if loc := c.Highlighter().Location(); !loc.IsZero() {
		t.Errorf("highlight = %+v, want none", loc)
	}
	if f, ok := c.Files().Selected(); ok {
		t.Errorf("selected %s after stop", f.Name())
	}
	entries := c.Output().Entries()
	if last := entries[len(entries)-1]; last.Message != "Terminated Program" {
		t.Errorf("last entry = %+v, want Terminated Program", last)
	}
	if n := eng.count("display_cpu"); n != 0 {
		t.Errorf("display_cpu calls = %d after stop", n)
	}
}

func TestStopResetsBeforeKill(t *testing.T) {
	eng := newFakeEngine()
	eng.ticks = []tickStep{tick("main.s", 3, "breakpoint")}
	c := newTestController(t, eng)

	if err := c.Debug(context.Background()); err != nil {
		t.Fatal(err)
	}

	var (
		st  status.Status
		loc highlight.Location
		log []output.Entry
	)
	eng.onKill = func() {
		st = c.Status()
		loc = c.Highlighter().Location()
		log = c.Output().Entries()
	}
	if err := c.Stop(); err != nil {
		t.Fatal(err)
	}

	if st != status.End {
		t.Errorf("status at kill = %s, want end", st)
	}
	if !loc.IsZero() {
		t.Errorf("highlight at kill = %+v", loc)
	}
	if len(log) == 0 || log[len(log)-1].Message != "Terminated Program" {
		t.Errorf("log at kill = %v", log)
	}
}

func TestUnknownInputRequestEndsSession(t *testing.T) {
	eng := newFakeEngine()
	eng.ticks = []tickStep{
		{res: bridge.TickResult{File: "main.s", Line: 2, Status: "continue", Input: "get_string"}},
	}
	eng.runs = []runStep{
		{res: bridge.RunResult{Status: "running", Input: "GET_LINE"}},
	}
	c := newTestController(t, eng)
	ctx := context.Background()

	for name, start := range map[string]func(context.Context) error{"Debug": c.Debug, "Run": c.Run} {
		if err := start(ctx); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if c.Status() != status.End {
			t.Errorf("%s: status = %s, want end", name, c.Status())
		}
		if req := c.PendingInput(); req.Pending() {
			t.Errorf("%s: pending input = %s", name, req)
		}

		found := false
		for _, e := range c.Output().Entries() {
			if e.Kind == output.KindError && strings.Contains(e.Message, "unknown input request") {
				found = true
			}
		}
		if !found {
			t.Errorf("%s: no error entry in %v", name, c.Output().Entries())
		}
	}

	if err := c.SubmitInput(ctx, "x"); !errors.Is(err, ErrNoInputPending) {
		t.Errorf("SubmitInput error = %v, want ErrNoInputPending", err)
	}
}

func TestSelectRevealsHighlight(t *testing.T) {
	eng := newFakeEngine()
	eng.ticks = []tickStep{tick("main.s", 2, "breakpoint")}
	c := newTestController(t, eng)

	var reveals []string
	c.SetHandlers(Handlers{
		OnReveal: func(f *files.OpenFile, line int) {
			reveals = append(reveals, fmt.Sprintf("%s:%d", f.Name(), line))
		},
	})

	if err := c.Debug(context.Background()); err != nil {
		t.Fatal(err)
	}
	main, ok := c.Files().FindByName("main.s")
	if !ok {
		t.Fatal("main.s not opened")
	}
	util, err := c.Files().Open("/proj/util.s")
	if err != nil {
		t.Fatal(err)
	}

	if err := c.Select(util.ID()); err != nil {
		t.Fatal(err)
	}
	if err := c.Select(main.ID()); err != nil {
		t.Fatal(err)
	}

	if want := []string{"main.s:2", "main.s:2"}; !reflect.DeepEqual(reveals, want) {
		t.Errorf("reveals = %v, want %v", reveals, want)
	}
	if sel, _ := c.Files().Selected(); sel.ID() != main.ID() {
		t.Errorf("selected = %s", sel.Name())
	}
	if err := c.Select("missing"); !errors.Is(err, files.ErrNotOpen) {
		t.Errorf("Select(missing) error = %v", err)
	}
}

func TestStepPausesOffBreakpoint(t *testing.T) {
	eng := newFakeEngine()
	eng.ticks = []tickStep{
		tick("main.s", 2, "breakpoint"),
		tick("main.s", 3, "continue"),
	}
	c := newTestController(t, eng)
	ctx := context.Background()

	if err := c.Debug(ctx); err != nil {
		t.Fatal(err)
	}
	if err := c.Step(ctx); err != nil {
		t.Fatal(err)
	}

	f, _ := c.Files().FindByName("main.s")
	if f.Breakpoints().Has(3) {
		t.Fatal("line 3 should carry no breakpoint")
	}
	if c.Status() != status.Breakpoint {
		t.Errorf("status = %s, want breakpoint", c.Status())
	}
	mode := c.Mode()
	for _, cmd := range []toolbar.Command{toolbar.CommandContinue, toolbar.CommandStep, toolbar.CommandStop} {
		if !mode.Enabled(cmd) {
			t.Errorf("%s disabled after a step", cmd)
		}
	}
	if mode.Enabled(toolbar.CommandRun) || mode.Enabled(toolbar.CommandDebug) {
		t.Errorf("mode = %s", mode)
	}
}
