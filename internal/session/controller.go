// Package session drives the execution engine through a debug session.
//
// The Controller owns the session status and the tick loop. Each tick is
// one request to the engine; after it completes, output is logged, the
// reported file is highlighted, opened and selected, and registers and
// memory are refreshed before the next tick is issued.
//
// Commands are accepted only when the toolbar mode for the current status
// enables them. Stop resets local state immediately and bumps the session
// epoch; any tick response that arrives for an older epoch is discarded.
package session

import (
	"context"
	"fmt"
	"sync"

	"pkt.systems/pslog"

	"github.com/dshills/asmstudio/internal/bridge"
	"github.com/dshills/asmstudio/internal/files"
	"github.com/dshills/asmstudio/internal/highlight"
	"github.com/dshills/asmstudio/internal/output"
	"github.com/dshills/asmstudio/internal/snapshot"
	"github.com/dshills/asmstudio/internal/status"
	"github.com/dshills/asmstudio/internal/toolbar"
)

// Engine is the execution engine as seen by the controller.
// *bridge.Client satisfies it.
type Engine interface {
	Compile(ctx context.Context, dir string, breakpoints map[string][]int) error
	Run(ctx context.Context, input *int32) (bridge.RunResult, error)
	DebugTick(ctx context.Context, input *int32) (bridge.TickResult, error)
	Kill() error
	snapshot.Source
}

// Handlers contains callbacks for session events. They are called without
// any controller lock held.
type Handlers struct {
	// OnStatusChanged is called when the session status changes.
	OnStatusChanged func(old, new status.Status)

	// OnReveal is called when a tick or Select activates the file holding
	// the highlight; line is the marked line to scroll into the center of
	// the view.
	OnReveal func(file *files.OpenFile, line int)

	// OnInputRequested is called when the program waits for input.
	OnInputRequested func(req bridge.InputRequest)
}

// Config holds the controller's collaborators.
type Config struct {
	// Engine executes the program. Required.
	Engine Engine

	// Files is the open file registry. Required.
	Files *files.Registry

	// Dir is the project directory handed to compile.
	Dir string

	Highlighter *highlight.Highlighter
	Snapshots   *snapshot.Store
	Output      *output.Log
	Logger      pslog.Logger
}

// Controller is the session controller.
type Controller struct {
	engine    Engine
	files     *files.Registry
	highlight *highlight.Highlighter
	snapshots *snapshot.Store
	out       *output.Log
	dir       string
	log       pslog.Logger

	mu        sync.Mutex
	status    status.Status
	epoch     uint64
	busy      bool
	debugging bool
	input     bridge.InputRequest
	resume    status.Status
	cancel    context.CancelFunc

	handlers   Handlers
	handlersMu sync.RWMutex
}

// New creates a controller in the INACTIVE status.
func New(cfg Config) *Controller {
	c := &Controller{
		engine:    cfg.Engine,
		files:     cfg.Files,
		highlight: cfg.Highlighter,
		snapshots: cfg.Snapshots,
		out:       cfg.Output,
		dir:       cfg.Dir,
		log:       cfg.Logger,
		status:    status.Inactive,
		input:     bridge.InputNone,
	}
	if c.highlight == nil {
		c.highlight = highlight.New()
	}
	if c.snapshots == nil {
		c.snapshots = snapshot.NewStore(cfg.Engine)
	}
	if c.out == nil {
		c.out = output.NewLog()
	}
	if c.log == nil {
		c.log = pslog.Ctx(context.Background())
	}
	c.log = c.log.With("component", "session")
	return c
}

// SetHandlers sets the session event handlers.
func (c *Controller) SetHandlers(handlers Handlers) {
	c.handlersMu.Lock()
	c.handlers = handlers
	c.handlersMu.Unlock()
}

func (c *Controller) getHandlers() Handlers {
	c.handlersMu.RLock()
	defer c.handlersMu.RUnlock()
	return c.handlers
}

// Status returns the current session status.
func (c *Controller) Status() status.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Mode returns the enabled toolbar commands for the current status.
func (c *Controller) Mode() toolbar.Mode {
	return toolbar.ModeFor(c.Status())
}

// PendingInput returns the kind of input the program waits for, or
// InputNone.
func (c *Controller) PendingInput() bridge.InputRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

// ResumeMode returns how a debug session continues once pending input is
// submitted: status.Continue or status.Step.
func (c *Controller) ResumeMode() status.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resume
}

// Epoch returns the session epoch. Stop and every new run or debug session
// increment it.
func (c *Controller) Epoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// Output returns the output log.
func (c *Controller) Output() *output.Log { return c.out }

// Highlighter returns the execution highlighter.
func (c *Controller) Highlighter() *highlight.Highlighter { return c.highlight }

// Snapshots returns the register and memory snapshot store.
func (c *Controller) Snapshots() *snapshot.Store { return c.snapshots }

// Files returns the open file registry.
func (c *Controller) Files() *files.Registry { return c.files }

// begin checks cmd against the current status and claims the controller
// for one loop. A new session (run or debug) starts a new epoch.
func (c *Controller) begin(ctx context.Context, cmd toolbar.Command, fresh bool) (context.Context, uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.busy || !toolbar.Allows(c.status, cmd) {
		return nil, 0, fmt.Errorf("%w: %s while %s", ErrCommandDisabled, cmd, c.status)
	}
	if fresh {
		c.epoch++
		c.input = bridge.InputNone
		c.resume = status.Inactive
		c.debugging = cmd == toolbar.CommandDebug
	}
	c.busy = true

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	return loopCtx, c.epoch, nil
}

// finish releases the claim taken by begin, unless Stop already did.
func (c *Controller) finish(epoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch != epoch {
		return
	}
	c.busy = false
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// stale reports whether epoch has been superseded.
func (c *Controller) stale(epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch != epoch
}

// transition sets the status if epoch is still current.
func (c *Controller) transition(epoch uint64, next status.Status) bool {
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return false
	}
	old := c.status
	c.status = next
	c.mu.Unlock()

	c.statusChanged(epoch, old, next)
	return true
}

func (c *Controller) statusChanged(epoch uint64, old, next status.Status) {
	if old == next {
		return
	}
	c.log.Debug("session status", "status", next, "previous", old, "epoch", epoch)
	if h := c.getHandlers().OnStatusChanged; h != nil {
		h(old, next)
	}
}

// end moves the session to END if epoch is still current.
func (c *Controller) end(epoch uint64) {
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return
	}
	old := c.status
	c.status = status.End
	c.input = bridge.InputNone
	c.resume = status.Inactive
	c.mu.Unlock()

	c.statusChanged(epoch, old, status.End)
}

// Run compiles the project and runs it without breakpoints. It returns
// when the program ends, fails or waits for input; outcomes are reported
// through the output log.
func (c *Controller) Run(ctx context.Context) error {
	loopCtx, epoch, err := c.begin(ctx, toolbar.CommandRun, true)
	if err != nil {
		return err
	}
	defer c.finish(epoch)

	c.out.Clear()
	c.emit(epoch, output.KindCompile, "Compiling...")
	if !c.compile(loopCtx, epoch, nil) {
		return nil
	}

	if !c.transition(epoch, status.Running) {
		return nil
	}
	c.emit(epoch, output.KindRun, "Running...")
	c.runLoop(loopCtx, epoch, nil)
	return nil
}

// Debug compiles the project with the breakpoints of every open file and
// continues until a breakpoint, input request or the end of the program.
func (c *Controller) Debug(ctx context.Context) error {
	loopCtx, epoch, err := c.begin(ctx, toolbar.CommandDebug, true)
	if err != nil {
		return err
	}
	defer c.finish(epoch)

	bps := c.files.BreakpointMap()

	c.out.Clear()
	c.emit(epoch, output.KindCompile, "Compiling...")
	if !c.compile(loopCtx, epoch, bps) {
		return nil
	}

	c.emit(epoch, output.KindRun, "Debugging...")
	if !c.transition(epoch, status.Continue) {
		return nil
	}
	c.debugLoop(loopCtx, epoch, status.Continue, nil)
	return nil
}

// Continue resumes a paused debug session until the next stop. While the
// program waits for input it only selects continuing as the way the
// session resumes once input is submitted.
func (c *Controller) Continue(ctx context.Context) error {
	return c.resumeDebug(ctx, toolbar.CommandContinue, status.Continue)
}

// Step executes a single instruction of a paused debug session. While the
// program waits for input it only selects stepping as the way the session
// resumes once input is submitted.
func (c *Controller) Step(ctx context.Context) error {
	return c.resumeDebug(ctx, toolbar.CommandStep, status.Step)
}

func (c *Controller) resumeDebug(ctx context.Context, cmd toolbar.Command, mode status.Status) error {
	c.mu.Lock()
	if c.status == status.AwaitingInput && !c.busy {
		c.resume = mode
		epoch := c.epoch
		c.mu.Unlock()
		c.log.Debug("input resume mode", "mode", mode, "epoch", epoch)
		return nil
	}
	c.mu.Unlock()

	loopCtx, epoch, err := c.begin(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer c.finish(epoch)

	if !c.transition(epoch, mode) {
		return nil
	}
	c.debugLoop(loopCtx, epoch, mode, nil)
	return nil
}

// Stop kills the program. Highlight, status and mode reset before the kill
// request is sent, and the request is not awaited. Any response still in
// flight is discarded.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if !toolbar.Allows(c.status, toolbar.CommandStop) {
		s := c.status
		c.mu.Unlock()
		return fmt.Errorf("%w: %s while %s", ErrCommandDisabled, toolbar.CommandStop, s)
	}
	c.epoch++
	epoch := c.epoch
	c.busy = false
	cancel := c.cancel
	c.cancel = nil
	c.highlight.Clear()
	c.mu.Unlock()

	c.end(epoch)
	c.out.Append(output.KindRun, "Terminated Program")
	if cancel != nil {
		cancel()
	}

	if err := c.engine.Kill(); err != nil {
		c.log.Warn("kill request failed", "err", err, "epoch", epoch)
	}
	return nil
}

// Select makes a file the active tab. If the file holds the execution
// highlight, OnReveal is called with the marked line.
func (c *Controller) Select(id string) error {
	if err := c.files.Select(id); err != nil {
		return err
	}
	if f, ok := c.files.Get(id); ok {
		c.reveal(f)
	}
	return nil
}

// SubmitInput answers the program's pending input request. Invalid text is
// logged and returned as an *InputError; the program keeps waiting and no
// request is sent. Valid input resumes the session in the mode it was in
// when the input was requested.
func (c *Controller) SubmitInput(ctx context.Context, text string) error {
	c.mu.Lock()
	req := c.input
	busy := c.busy
	c.mu.Unlock()

	if busy || !req.Pending() {
		return ErrNoInputPending
	}

	value, err := ParseInput(req, text)
	if err != nil {
		c.out.Append(output.KindText, err.Error())
		return err
	}

	c.mu.Lock()
	if c.busy || c.input != req {
		c.mu.Unlock()
		return ErrNoInputPending
	}
	c.input = bridge.InputNone
	c.busy = true
	epoch := c.epoch
	debugging := c.debugging
	mode := c.resume
	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()
	defer c.finish(epoch)

	c.log.Debug("input submitted", "request", req, "epoch", epoch)

	if !debugging {
		c.runLoop(loopCtx, epoch, &value)
		return nil
	}
	if mode != status.Step {
		mode = status.Continue
	}
	if !c.transition(epoch, mode) {
		return nil
	}
	c.debugLoop(loopCtx, epoch, mode, &value)
	return nil
}

// SetRegisterFormat changes the register display format. When no tick is
// in flight the registers are fetched again at once; otherwise the next
// refresh uses the new format.
func (c *Controller) SetRegisterFormat(ctx context.Context, format bridge.Format) error {
	if c.isBusy() {
		_, mem := c.snapshots.Formats()
		c.snapshots.SetFormats(format, mem)
		return nil
	}
	return c.snapshots.SetRegisterFormat(ctx, format)
}

// SetMemoryFormat changes the memory display format.
func (c *Controller) SetMemoryFormat(ctx context.Context, format bridge.Format) error {
	if c.isBusy() {
		regs, _ := c.snapshots.Formats()
		c.snapshots.SetFormats(regs, format)
		return nil
	}
	return c.snapshots.SetMemoryFormat(ctx, format)
}

func (c *Controller) isBusy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}
