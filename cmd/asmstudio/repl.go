package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"

	"pkt.systems/pslog"

	"github.com/dshills/asmstudio/internal/app"
	"github.com/dshills/asmstudio/internal/bridge"
	"github.com/dshills/asmstudio/internal/document"
	"github.com/dshills/asmstudio/internal/files"
	"github.com/dshills/asmstudio/internal/output"
	"github.com/dshills/asmstudio/internal/session"
	"github.com/dshills/asmstudio/internal/snapshot"
	"github.com/dshills/asmstudio/internal/status"
	"github.com/dshills/asmstudio/internal/toolbar"
)

var errQuit = errors.New("quit")

// replCommand is one console command. Async commands drive the engine and
// run in the background so that stop stays available while they tick.
type replCommand struct {
	usage string
	help  string
	async bool
	run   func(ctx context.Context, args string) error
}

// repl is the line-oriented debugger console.
type repl struct {
	app *app.Application
	in  io.Reader
	log pslog.Logger

	outMu sync.Mutex
	out   io.Writer

	wg       sync.WaitGroup
	commands map[string]replCommand
}

func newREPL(application *app.Application, in io.Reader, out io.Writer) *repl {
	r := &repl{
		app: application,
		in:  in,
		out: out,
		log: application.Logger().With("component", "repl"),
	}
	r.commands = r.commandTable()

	application.Session().Output().OnAppend(func(e output.Entry) {
		r.outMu.Lock()
		defer r.outMu.Unlock()
		_ = renderEntry(r.out, e)
	})
	application.Session().SetHandlers(session.Handlers{
		OnStatusChanged: func(_, next status.Status) {
			r.printf("%s\n", statusStyle.Render(fmt.Sprintf("[%s] %s", next, toolbar.ModeFor(next))))
		},
		OnReveal: func(f *files.OpenFile, line int) {
			text, _ := f.Document().LineText(line)
			r.printf("%s  %s\n", locationStyle.Render(fmt.Sprintf("=> %s:%d", f.Name(), line)), strings.TrimSpace(text))
		},
		OnInputRequested: func(req bridge.InputRequest) {
			r.printf("program requests %s; answer with: input <text>\n", req)
		},
	})
	return r
}

func (r *repl) printf(format string, args ...any) {
	r.outMu.Lock()
	defer r.outMu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

// Run reads commands until quit, end of input or ctx is done. A running
// program is stopped before Run returns.
func (r *repl) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	defer r.shutdown()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := r.Execute(ctx, line); errors.Is(err, errQuit) {
				return nil
			}
		}
	}
}

func (r *repl) shutdown() {
	if !r.app.Session().Status().Idle() {
		if err := r.app.Session().Stop(); err != nil {
			r.log.Debug("stop on exit", "err", err)
		}
	}
	r.wg.Wait()
}

// Wait blocks until every background command has returned.
func (r *repl) Wait() {
	r.wg.Wait()
}

// splitCommand separates the command word from the rest of the line. The
// rest keeps its inner spacing.
func splitCommand(line string) (string, string) {
	line = strings.TrimSpace(line)
	name, rest, _ := strings.Cut(line, " ")
	return strings.ToLower(name), strings.TrimSpace(rest)
}

// Execute runs one command line.
func (r *repl) Execute(ctx context.Context, line string) error {
	name, args := splitCommand(line)
	if name == "" || strings.HasPrefix(name, "#") {
		return nil
	}

	cmd, ok := r.commands[name]
	if !ok {
		r.printf("unknown command %q; try help\n", name)
		return nil
	}

	if cmd.async {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.report(name, cmd.run(ctx, args))
		}()
		return nil
	}

	err := cmd.run(ctx, args)
	if errors.Is(err, errQuit) {
		return err
	}
	r.report(name, err)
	return nil
}

func (r *repl) report(name string, err error) {
	var inputErr *session.InputError
	switch {
	case err == nil:
	case errors.Is(err, session.ErrCommandDisabled):
		// Disabled toolbar commands do nothing.
		r.log.Debug("command ignored", "command", name, "err", err)
	case errors.As(err, &inputErr):
		// Already shown in the output log.
	default:
		r.printf("%s: %v\n", name, err)
	}
}

func (r *repl) commandTable() map[string]replCommand {
	sess := r.app.Session()

	cmds := map[string]replCommand{
		"help":   {usage: "help", help: "list commands", run: r.cmdHelp},
		"quit":   {usage: "quit", help: "stop the program and exit", run: func(context.Context, string) error { return errQuit }},
		"open":   {usage: "open <file>", help: "open a workspace file and select it", run: r.cmdOpen},
		"close":  {usage: "close [file]", help: "close a file (default: selected)", run: r.cmdClose},
		"files":  {usage: "files", help: "list open files", run: r.cmdFiles},
		"select": {usage: "select <file>", help: "select an open file", run: r.cmdSelect},
		"show":   {usage: "show [file]", help: "print a file with breakpoints and the execution line", run: r.cmdShow},
		"insert": {usage: "insert <line> <text>", help: "insert a line before <line>", run: r.cmdInsert},
		"delete": {usage: "delete <line>", help: "delete a line", run: r.cmdDelete},
		"save":   {usage: "save", help: "write the selected file", run: r.cmdSave},
		"break":  {usage: "break <line>", help: "toggle a breakpoint in the selected file", run: r.cmdBreak},
		"breaks": {usage: "breaks", help: "list breakpoints of open files", run: r.cmdBreaks},
		"run": {usage: "run", help: "compile and run", async: true, run: func(ctx context.Context, _ string) error {
			return sess.Run(ctx)
		}},
		"debug": {usage: "debug", help: "compile and debug", async: true, run: func(ctx context.Context, _ string) error {
			return sess.Debug(ctx)
		}},
		"continue": {usage: "continue", help: "run to the next breakpoint", async: true, run: func(ctx context.Context, _ string) error {
			return sess.Continue(ctx)
		}},
		"step": {usage: "step", help: "execute one instruction", async: true, run: func(ctx context.Context, _ string) error {
			return sess.Step(ctx)
		}},
		"input": {usage: "input <text>", help: "answer the program's input request", async: true, run: func(ctx context.Context, args string) error {
			return sess.SubmitInput(ctx, args)
		}},
		"stop": {usage: "stop", help: "terminate the program", run: func(context.Context, string) error {
			return sess.Stop()
		}},
		"regs":   {usage: "regs", help: "print registers", run: r.cmdRegs},
		"mem":    {usage: "mem", help: "print memory", run: r.cmdMem},
		"format": {usage: "format regs|mem <format>", help: "set a display format", run: r.cmdFormat},
		"status": {usage: "status", help: "print session status", run: r.cmdStatus},
		"output": {usage: "output", help: "print the whole output log", run: r.cmdOutput},
		"clear":  {usage: "clear", help: "clear the output log", run: func(context.Context, string) error { sess.Output().Clear(); return nil }},
	}
	cmds["exit"] = cmds["quit"]
	cmds["c"] = cmds["continue"]
	cmds["s"] = cmds["step"]
	return cmds
}

func (r *repl) cmdHelp(context.Context, string) error {
	names := make([]string, 0, len(r.commands))
	seen := make(map[string]bool)
	for name, cmd := range r.commands {
		if seen[cmd.usage] {
			continue
		}
		seen[cmd.usage] = true
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		cmd := r.commands[name]
		r.printf("  %-26s %s\n", cmd.usage, cmd.help)
	}
	return nil
}

func (r *repl) selected() (*files.OpenFile, error) {
	f, ok := r.app.Files().Selected()
	if !ok {
		return nil, errors.New("no file selected")
	}
	return f, nil
}

func (r *repl) fileArg(name string) (*files.OpenFile, error) {
	if name == "" {
		return r.selected()
	}
	f, ok := r.app.Files().FindByName(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", files.ErrNotOpen, name)
	}
	return f, nil
}

func (r *repl) cmdOpen(_ context.Context, args string) error {
	if args == "" {
		return errors.New("usage: open <file>")
	}
	f, err := r.app.Files().OpenName(args)
	if err != nil {
		return err
	}
	r.printf("opened %s (%d lines, %d breakpoints)\n", f.Name(), f.Document().LineCount(), f.Breakpoints().Len())
	return r.app.Session().Select(f.ID())
}

func (r *repl) cmdClose(_ context.Context, args string) error {
	f, err := r.fileArg(args)
	if err != nil {
		return err
	}
	if f.Dirty() {
		r.printf("%s has unsaved changes\n", f.Name())
	}
	return r.app.Files().Close(f.ID())
}

func (r *repl) cmdFiles(context.Context, string) error {
	sel, _ := r.app.Files().Selected()
	for _, f := range r.app.Files().List() {
		mark := " "
		if sel != nil && sel.ID() == f.ID() {
			mark = "*"
		}
		dirty := ""
		if f.Dirty() {
			dirty = " [modified]"
		}
		r.printf("%s %s%s\n", mark, f.Name(), dirty)
	}
	return nil
}

func (r *repl) cmdSelect(_ context.Context, args string) error {
	f, err := r.fileArg(args)
	if err != nil {
		return err
	}
	return r.app.Session().Select(f.ID())
}

func (r *repl) cmdShow(_ context.Context, args string) error {
	f, err := r.fileArg(args)
	if err != nil {
		return err
	}

	doc := f.Document()
	current, _ := r.app.Session().Highlighter().LineFor(f.Path(), doc)

	r.outMu.Lock()
	defer r.outMu.Unlock()
	for line := 1; line <= doc.LineCount(); line++ {
		text, _ := doc.LineText(line)
		bp := " "
		if f.Breakpoints().Has(line) {
			bp = "o"
		}
		arrow := "  "
		if line == current {
			arrow = "=>"
		}
		fmt.Fprintf(r.out, "%s%s %4d  %s\n", bp, arrow, line, text)
	}
	return nil
}

func parseLine(s string) (int, string, error) {
	num, rest, _ := strings.Cut(s, " ")
	line, err := strconv.Atoi(num)
	if err != nil || line < 1 {
		return 0, "", fmt.Errorf("invalid line number %q", num)
	}
	return line, rest, nil
}

func (r *repl) cmdInsert(_ context.Context, args string) error {
	f, err := r.selected()
	if err != nil {
		return err
	}
	line, text, err := parseLine(args)
	if err != nil {
		return err
	}

	doc := f.Document()
	var offset int
	if line > doc.LineCount() {
		offset = doc.Len()
		if offset > 0 && !strings.HasSuffix(doc.Text(), "\n") {
			text = "\n" + text
		}
	} else if offset, err = doc.LineStart(line); err != nil {
		return err
	}

	_, err = r.app.Files().Edit(f.ID(), document.Insert(offset, text+"\n"))
	return err
}

func (r *repl) cmdDelete(_ context.Context, args string) error {
	f, err := r.selected()
	if err != nil {
		return err
	}
	line, _, err := parseLine(args)
	if err != nil {
		return err
	}

	doc := f.Document()
	start, err := doc.LineStart(line)
	if err != nil {
		return err
	}
	end := doc.Len()
	if line < doc.LineCount() {
		end, _ = doc.LineStart(line + 1)
	}

	_, err = r.app.Files().Edit(f.ID(), document.Delete(start, end))
	return err
}

func (r *repl) cmdSave(context.Context, string) error {
	f, err := r.selected()
	if err != nil {
		return err
	}
	if err := r.app.Files().Save(f.ID()); err != nil {
		return err
	}
	r.printf("saved %s\n", f.Name())
	return nil
}

func (r *repl) cmdBreak(_ context.Context, args string) error {
	f, err := r.selected()
	if err != nil {
		return err
	}
	line, _, err := parseLine(args)
	if err != nil {
		return err
	}
	set, err := r.app.Files().ToggleBreakpoint(f.ID(), line)
	if err != nil {
		return err
	}
	if set {
		r.printf("breakpoint set at %s:%d\n", f.Name(), line)
	} else {
		r.printf("breakpoint cleared at %s:%d\n", f.Name(), line)
	}
	return nil
}

func (r *repl) cmdBreaks(context.Context, string) error {
	m := r.app.Files().BreakpointMap()
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		r.printf("%s: %v\n", name, m[name])
	}
	return nil
}

func (r *repl) cmdRegs(context.Context, string) error {
	regs := r.app.Snapshots().Registers()
	r.outMu.Lock()
	defer r.outMu.Unlock()
	for i, v := range regs.Values {
		fmt.Fprintf(r.out, "%-3s %s\n", snapshot.RegisterName(i), v)
	}
	fmt.Fprintf(r.out, "N=%s Z=%s C=%s V=%s  (%s)\n",
		flag(regs.Flags.N), flag(regs.Flags.Z), flag(regs.Flags.C), flag(regs.Flags.V), regs.Format)
	return nil
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func (r *repl) cmdMem(context.Context, string) error {
	rows := r.app.Snapshots().Rows()
	r.outMu.Lock()
	defer r.outMu.Unlock()
	for _, row := range rows {
		sp := ""
		if row.StackPointer {
			sp = "  <- SP"
		}
		fmt.Fprintf(r.out, "%6d  %s%s\n", row.Address, strings.Join(row.Bytes, " "), sp)
	}
	return nil
}

func (r *repl) cmdFormat(ctx context.Context, args string) error {
	target, name, _ := strings.Cut(args, " ")
	format, err := bridge.ParseFormat(name)
	if err != nil || strings.TrimSpace(name) == "" {
		return fmt.Errorf("usage: format regs|mem <unsigned|signed|binary|hexadecimal>")
	}

	switch target {
	case "regs", "registers":
		return r.app.Session().SetRegisterFormat(ctx, format)
	case "mem", "memory":
		return r.app.Session().SetMemoryFormat(ctx, format)
	default:
		return fmt.Errorf("unknown format target %q", target)
	}
}

func (r *repl) cmdStatus(context.Context, string) error {
	sess := r.app.Session()
	st := sess.Status()
	r.printf("status: %s\nenabled: %s\n", st, toolbar.ModeFor(st))
	if req := sess.PendingInput(); req.Pending() {
		r.printf("waiting for: %s\n", req)
	}
	if loc := sess.Highlighter().Location(); !loc.IsZero() {
		r.printf("at: %s:%d\n", loc.FileID, loc.Line)
	}
	return nil
}

func (r *repl) cmdOutput(context.Context, string) error {
	r.outMu.Lock()
	defer r.outMu.Unlock()
	for _, e := range r.app.Session().Output().Entries() {
		if err := renderEntry(r.out, e); err != nil {
			return err
		}
	}
	return nil
}
