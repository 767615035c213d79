package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/asmstudio/internal/bridge"
	"github.com/dshills/asmstudio/internal/files"
	"github.com/dshills/asmstudio/internal/output"
	"github.com/dshills/asmstudio/internal/status"
)

// compile requests a build. Diagnostics go to the output log. It reports
// whether the session may proceed.
func (c *Controller) compile(ctx context.Context, epoch uint64, breakpoints map[string][]int) bool {
	err := c.engine.Compile(ctx, c.dir, breakpoints)
	if c.stale(epoch) {
		return false
	}
	if err == nil {
		return c.emit(epoch, output.KindCompile, "Compiled Successfully")
	}

	var ce *bridge.CompileError
	if errors.As(err, &ce) {
		for _, msg := range ce.Messages {
			c.emit(epoch, output.KindError, msg)
		}
	} else {
		c.emit(epoch, output.KindError, err.Error())
	}
	c.emit(epoch, output.KindRed, "Compiling failed...")
	c.log.Info("compile failed", "err", err, "epoch", epoch)
	return false
}

// runLoop issues plain run ticks until the program ends, fails or asks for
// input. Registers and memory are refreshed once the loop yields.
func (c *Controller) runLoop(ctx context.Context, epoch uint64, input *int32) {
	for {
		if c.stale(epoch) {
			return
		}

		res, err := c.engine.Run(ctx, input)
		input = nil
		if c.stale(epoch) {
			c.log.Debug("stale run response discarded", "epoch", epoch)
			return
		}
		if err != nil {
			c.fail(ctx, epoch, err)
			return
		}

		if res.Output != "" && !c.emit(epoch, output.KindText, res.Output) {
			return
		}

		req, err := bridge.ParseInputRequest(string(res.Input))
		if err != nil {
			c.fail(ctx, epoch, err)
			return
		}
		if req.Pending() {
			// A plain run keeps its RUNNING status while it waits.
			c.awaitInput(epoch, req, status.Running, false)
			c.refresh(ctx, epoch)
			return
		}

		st, ok := status.Parse(res.Status)
		if !ok {
			c.fail(ctx, epoch, fmt.Errorf("%w: %q", ErrUnknownStatus, res.Status))
			return
		}
		if st == status.End {
			c.emit(epoch, output.KindRun, "Finished Running")
			c.end(epoch)
			c.refresh(ctx, epoch)
			return
		}
	}
}

// debugLoop issues debug ticks. In CONTINUE mode it loops until END,
// BREAKPOINT or an input request; in STEP mode it issues one tick and
// pauses. Every tick is fully applied, snapshot included, before the next
// one is requested.
func (c *Controller) debugLoop(ctx context.Context, epoch uint64, mode status.Status, input *int32) {
	for {
		if c.stale(epoch) {
			return
		}

		res, err := c.engine.DebugTick(ctx, input)
		input = nil
		if c.stale(epoch) {
			c.log.Debug("stale debug response discarded", "epoch", epoch)
			return
		}
		if err != nil {
			c.fail(ctx, epoch, err)
			return
		}

		if res.Output != "" && !c.emit(epoch, output.KindText, res.Output) {
			return
		}
		if !c.locate(epoch, res.File, res.Line) {
			return
		}

		req, err := bridge.ParseInputRequest(string(res.Input))
		if err != nil {
			c.fail(ctx, epoch, err)
			return
		}
		if req.Pending() {
			c.awaitInput(epoch, req, mode, true)
			c.refresh(ctx, epoch)
			return
		}

		st, ok := status.Parse(res.Status)
		if !ok {
			c.fail(ctx, epoch, fmt.Errorf("%w: %q", ErrUnknownStatus, res.Status))
			return
		}

		done := true
		switch {
		case st == status.End:
			c.unmark(epoch)
			c.emit(epoch, output.KindRun, "Finished Debugging")
			c.end(epoch)
		case st == status.Breakpoint:
			c.transition(epoch, status.Breakpoint)
		case mode == status.Step:
			// A finished step pauses where it landed and reports BREAKPOINT
			// even when no marker is set on that line.
			c.transition(epoch, status.Breakpoint)
		default:
			done = false
		}

		c.refresh(ctx, epoch)
		if done {
			return
		}
	}
}

// emit appends to the output log unless epoch has been superseded. An
// admitted entry always precedes the "Terminated Program" line of a later
// Stop.
func (c *Controller) emit(epoch uint64, kind output.Kind, message string) bool {
	return c.out.AppendIf(kind, message, func() bool { return !c.stale(epoch) })
}

// unmark clears the highlight if epoch is still current.
func (c *Controller) unmark(epoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch == epoch {
		c.highlight.Clear()
	}
}

// locate highlights the reported line, then opens and selects its file.
// A name the workspace cannot resolve leaves the view unchanged. It
// reports false once epoch has been superseded.
func (c *Controller) locate(epoch uint64, name string, line int) bool {
	if name == "" {
		return !c.stale(epoch)
	}

	path, err := c.files.Resolve(name)
	if err != nil {
		c.log.Warn("reported file not found", "file", name, "line", line, "err", err)
		return !c.stale(epoch)
	}

	// Stop bumps the epoch under c.mu, so nothing below lands after it.
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		c.log.Debug("stale location discarded", "file", path, "line", line, "epoch", epoch)
		return false
	}
	c.highlight.Set(path, line)
	f, err := c.files.Open(path)
	if err == nil {
		err = c.files.Select(f.ID())
	}
	c.mu.Unlock()

	if err != nil {
		c.log.Warn("select reported file failed", "file", path, "err", err)
		return !c.stale(epoch)
	}
	c.log.Trace("execution located", "file", path, "line", line)

	if c.stale(epoch) {
		return false
	}
	c.reveal(f)
	return true
}

// reveal reports the marked line of f to OnReveal, if f holds it.
func (c *Controller) reveal(f *files.OpenFile) {
	if n, ok := c.highlight.Reveal(f.Path(), f.Document()); ok {
		if h := c.getHandlers().OnReveal; h != nil {
			h(f, n)
		}
	}
}

// awaitInput records an input request. A debug session moves to
// AWAITING_INPUT and remembers mode for resumption.
func (c *Controller) awaitInput(epoch uint64, req bridge.InputRequest, mode status.Status, debugging bool) {
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return
	}
	c.input = req
	c.resume = mode
	old := c.status
	if debugging {
		c.status = status.AwaitingInput
	}
	next := c.status
	c.mu.Unlock()

	c.statusChanged(epoch, old, next)
	c.log.Debug("input requested", "request", req, "epoch", epoch)
	if h := c.getHandlers().OnInputRequested; h != nil {
		h(req)
	}
}

// fail ends the session after a failed tick. Engine-reported runtime
// errors get a red header; bridge failures are logged as one error entry.
func (c *Controller) fail(ctx context.Context, epoch uint64, err error) {
	var re *bridge.RuntimeError
	if errors.As(err, &re) {
		c.emit(epoch, output.KindRed, "Runtime Error:")
		c.emit(epoch, output.KindError, re.Message)
	} else {
		c.emit(epoch, output.KindError, err.Error())
	}
	c.log.Error("tick failed", "err", err, "epoch", epoch)

	c.unmark(epoch)
	c.end(epoch)
	c.refresh(ctx, epoch)
}

// refresh fetches registers and memory. Failures are logged only.
func (c *Controller) refresh(ctx context.Context, epoch uint64) {
	if c.stale(epoch) {
		return
	}
	if err := c.snapshots.Refresh(ctx); err != nil {
		c.log.Warn("snapshot refresh failed", "err", err, "epoch", epoch)
	}
}
