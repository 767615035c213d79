// Package app wires the assembly studio together and manages its lifecycle.
//
// Components are created in dependency order: workspace and file index,
// breakpoint persistence, the file watcher, the engine connection, the
// open-file registry, the register and memory snapshots, and finally the
// session controller. Shutdown runs in reverse.
package app

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"

	"pkt.systems/pslog"

	"github.com/dshills/asmstudio/internal/bridge"
	"github.com/dshills/asmstudio/internal/config"
	"github.com/dshills/asmstudio/internal/files"
	"github.com/dshills/asmstudio/internal/persist"
	"github.com/dshills/asmstudio/internal/session"
	"github.com/dshills/asmstudio/internal/snapshot"
	"github.com/dshills/asmstudio/internal/workspace"
)

// Options configures the application.
type Options struct {
	// Config holds the loaded settings.
	Config config.Config

	// WorkspacePath is the project directory.
	WorkspacePath string

	// Logger receives diagnostics. Defaults to the context logger.
	Logger pslog.Logger

	// Transport, when set, is used instead of the engine connection
	// described by Config.Engine.
	Transport bridge.Transport
}

// Application owns every component of a running studio.
type Application struct {
	opts Options
	log  pslog.Logger

	ws        *workspace.Workspace
	store     *persist.Store
	watcher   *workspace.Watcher
	client    *bridge.Client
	files     *files.Registry
	snapshots *snapshot.Store
	session   *session.Controller

	cancel    context.CancelFunc
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// New creates and starts the application. The watcher goroutine lives
// until Close is called or ctx is done.
func New(ctx context.Context, opts Options) (*Application, error) {
	if opts.WorkspacePath == "" {
		return nil, ErrNoWorkspace
	}
	if opts.Logger == nil {
		opts.Logger = pslog.Ctx(ctx)
	}

	ctx, cancel := context.WithCancel(ctx)
	app := &Application{
		opts:   opts,
		log:    opts.Logger,
		cancel: cancel,
	}

	if err := app.bootstrap(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (app *Application) bootstrap(ctx context.Context) error {
	cfg := app.opts.Config

	// 1. Workspace and file-name index
	ws, err := workspace.New(app.opts.WorkspacePath, nil)
	if err != nil {
		return &InitError{Component: "workspace", Err: err}
	}
	if err := ws.Scan(); err != nil {
		return &InitError{Component: "workspace", Err: err}
	}
	app.ws = ws
	app.log.Info("workspace opened", "root", ws.Root(), "files", ws.Index().Len())

	// 2. Breakpoints of previously closed files
	app.store = persist.NewStore(app.statePath())
	if err := app.store.Load(); err != nil && !errors.Is(err, persist.ErrNoPath) {
		// A damaged state file only loses restored breakpoints.
		app.log.Warn("breakpoint state not loaded", "path", app.store.Path(), "err", err)
	}

	// 3. Watcher
	if cfg.Workspace.Watch {
		w, err := workspace.NewWatcher(ws.Index(), app.log)
		if err != nil {
			app.log.Warn("file watcher disabled", "err", err)
		} else {
			app.watcher = w
			go func() {
				if err := w.Run(ctx); err != nil && !errors.Is(err, workspace.ErrWatcherClosed) {
					app.log.Warn("file watcher stopped", "err", err)
				}
			}()
		}
	}

	// 4. Engine
	transport := app.opts.Transport
	if transport == nil {
		transport, err = app.connect(ctx)
		if err != nil {
			return &InitError{Component: "engine", Err: err}
		}
	}
	app.client = bridge.NewClient(transport, bridge.WithLogger(app.log))

	// 5. Open files
	app.files = files.NewRegistry(ws, app.store, app.log)

	// 6. Snapshots
	app.snapshots = snapshot.NewStore(app.client)
	app.snapshots.SetFormats(cfg.RegisterFormat(), cfg.MemoryFormat())

	// 7. Session
	app.session = session.New(session.Config{
		Engine:    app.client,
		Files:     app.files,
		Dir:       ws.Root(),
		Snapshots: app.snapshots,
		Logger:    app.log,
	})

	return nil
}

func (app *Application) statePath() string {
	p := app.opts.Config.Workspace.StateFile
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(app.ws.Root(), p)
}

// connect reaches the engine over TCP when an address is configured, and
// otherwise spawns the engine command in the workspace directory.
func (app *Application) connect(ctx context.Context) (bridge.Transport, error) {
	eng := app.opts.Config.Engine
	if eng.Address != "" {
		app.log.Info("connecting to engine", "address", eng.Address)
		return bridge.Dial(ctx, eng.Address)
	}

	cmd := exec.Command(eng.Command, eng.Args...)
	cmd.Dir = app.ws.Root()
	cmd.Stderr = pslog.LogLogger(app.log.With("component", "engine")).Writer()

	app.log.Info("starting engine", "command", eng.Command, "args", eng.Args)
	return bridge.NewStdioTransport(cmd)
}

// Workspace returns the project workspace.
func (app *Application) Workspace() *workspace.Workspace { return app.ws }

// Files returns the open-file registry.
func (app *Application) Files() *files.Registry { return app.files }

// Session returns the session controller.
func (app *Application) Session() *session.Controller { return app.session }

// Snapshots returns the register and memory snapshots.
func (app *Application) Snapshots() *snapshot.Store { return app.snapshots }

// Client returns the engine client.
func (app *Application) Client() *bridge.Client { return app.client }

// Logger returns the application logger.
func (app *Application) Logger() pslog.Logger { return app.log }

// Closed reports whether Close has been called.
func (app *Application) Closed() bool { return app.closed.Load() }

// Close stops a running program, persists the breakpoints of every open
// file, and releases the watcher and the engine connection. It is safe to
// call more than once.
func (app *Application) Close() error {
	app.closeOnce.Do(func() {
		app.closed.Store(true)
		app.closeErr = app.shutdown()
	})
	return app.closeErr
}

func (app *Application) shutdown() error {
	var errs []error

	// 1. Running program
	if app.session != nil && !app.session.Status().Idle() {
		if err := app.session.Stop(); err != nil && !errors.Is(err, session.ErrCommandDisabled) {
			errs = append(errs, err)
		}
	}

	// 2. Open files; closing a tab persists its breakpoints
	if app.files != nil {
		for _, f := range app.files.List() {
			if err := app.files.Close(f.ID()); err != nil {
				errs = append(errs, err)
			}
		}
	}

	// 3. Watcher
	if app.watcher != nil {
		if err := app.watcher.Close(); err != nil && !errors.Is(err, workspace.ErrWatcherClosed) {
			errs = append(errs, err)
		}
	}

	// 4. Engine
	if app.client != nil {
		if err := app.client.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	app.cancel()
	app.log.Debug("application closed")
	return errors.Join(errs...)
}
