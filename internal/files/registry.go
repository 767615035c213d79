// Package files is the registry of open source files (tabs). Each open file
// owns its live document, its breakpoint tracker and a dirty flag.
package files

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"sync"

	"github.com/google/uuid"
	"pkt.systems/pslog"

	"github.com/dshills/asmstudio/internal/breakpoint"
	"github.com/dshills/asmstudio/internal/document"
	"github.com/dshills/asmstudio/internal/persist"
	"github.com/dshills/asmstudio/internal/workspace"
)

// Registry errors.
var (
	ErrNotOpen     = errors.New("file not open")
	ErrNotResolved = errors.New("file not found in workspace")
)

// OpenFile is one open tab.
type OpenFile struct {
	id          string
	path        string
	name        string
	doc         *document.Document
	breakpoints *breakpoint.Tracker

	mu    sync.RWMutex
	dirty bool
}

// ID returns the file's identity.
func (f *OpenFile) ID() string { return f.id }

// Path returns the absolute path.
func (f *OpenFile) Path() string { return f.path }

// Name returns the base name, which is how the engine refers to the file.
func (f *OpenFile) Name() string { return f.name }

// Document returns the live document.
func (f *OpenFile) Document() *document.Document { return f.doc }

// Breakpoints returns the breakpoint tracker.
func (f *OpenFile) Breakpoints() *breakpoint.Tracker { return f.breakpoints }

// AllowsFolding reports whether the editing surface may fold this file.
// Breakpoint tracking requires every logical line to stay visible.
func (f *OpenFile) AllowsFolding() bool { return false }

// Dirty reports whether the document has unsaved edits.
func (f *OpenFile) Dirty() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dirty
}

func (f *OpenFile) setDirty(v bool) {
	f.mu.Lock()
	f.dirty = v
	f.mu.Unlock()
}

// Registry holds the open files in tab order and the current selection.
// All methods are thread-safe.
type Registry struct {
	mu       sync.RWMutex
	ws       *workspace.Workspace
	store    *persist.Store
	log      pslog.Logger
	files    []*OpenFile
	selected string
}

// NewRegistry creates an empty registry. store keeps breakpoint lines of
// closed files and may be nil.
func NewRegistry(ws *workspace.Workspace, store *persist.Store, logger pslog.Logger) *Registry {
	if store == nil {
		store = persist.NewStore("")
	}
	return &Registry{
		ws:    ws,
		store: store,
		log:   logger.With("component", "files"),
	}
}

// Open opens path, or returns the already open file for it. Breakpoints
// stored when the file was last closed are restored.
func (r *Registry) Open(path string) (*OpenFile, error) {
	abs := r.ws.Abs(path)

	if f, ok := r.FindByPath(abs); ok {
		return f, nil
	}

	text, err := r.ws.ReadText(abs)
	if err != nil {
		return nil, err
	}

	doc := document.New(text)
	f := &OpenFile{
		id:          uuid.NewString(),
		path:        abs,
		name:        filepath.Base(abs),
		doc:         doc,
		breakpoints: breakpoint.NewTrackerFromLines(doc, r.store.Lines(abs)),
	}

	r.mu.Lock()
	// Another caller may have opened the same path meanwhile.
	for _, existing := range r.files {
		if existing.path == abs {
			r.mu.Unlock()
			return existing, nil
		}
	}
	r.files = append(r.files, f)
	r.mu.Unlock()

	r.log.Debug("file opened", "path", abs, "id", f.id, "breakpoints", f.breakpoints.Len())
	return f, nil
}

// Resolve returns the path of an engine-reported file name. An open file
// with that base name wins over the workspace index.
func (r *Registry) Resolve(name string) (string, error) {
	if f, ok := r.FindByName(name); ok {
		return f.path, nil
	}
	path, ok := r.ws.Resolve(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotResolved, name)
	}
	return path, nil
}

// OpenName resolves an engine-reported file name and opens it.
func (r *Registry) OpenName(name string) (*OpenFile, error) {
	path, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}
	return r.Open(path)
}

// Close closes a tab. Its breakpoint lines are kept in the persist store
// so reopening the file restores them. If the closed tab was selected the
// neighbouring tab becomes selected.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	idx := r.indexLocked(id)
	if idx < 0 {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotOpen, id)
	}
	f := r.files[idx]
	r.files = slices.Delete(r.files, idx, idx+1)
	if r.selected == id {
		r.selected = ""
		if len(r.files) > 0 {
			r.selected = r.files[min(idx, len(r.files)-1)].id
		}
	}
	r.mu.Unlock()

	r.store.Set(f.path, f.breakpoints.Lines())
	r.log.Debug("file closed", "path", f.path, "dirty", f.Dirty())

	if err := r.store.Save(); err != nil && !errors.Is(err, persist.ErrNoPath) {
		return fmt.Errorf("persist breakpoints: %w", err)
	}
	return nil
}

func (r *Registry) indexLocked(id string) int {
	for i, f := range r.files {
		if f.id == id {
			return i
		}
	}
	return -1
}

// Get returns an open file by id.
func (r *Registry) Get(id string) (*OpenFile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.indexLocked(id); i >= 0 {
		return r.files[i], true
	}
	return nil, false
}

// FindByName returns the first open file with the given base name.
func (r *Registry) FindByName(name string) (*OpenFile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, f := range r.files {
		if f.name == name {
			return f, true
		}
	}
	return nil, false
}

// FindByPath returns the open file for an absolute path.
func (r *Registry) FindByPath(path string) (*OpenFile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, f := range r.files {
		if f.path == path {
			return f, true
		}
	}
	return nil, false
}

// List returns the open files in tab order.
func (r *Registry) List() []*OpenFile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.files)
}

// Select makes a file the active tab.
func (r *Registry) Select(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.indexLocked(id) < 0 {
		return fmt.Errorf("%w: %s", ErrNotOpen, id)
	}
	r.selected = id
	return nil
}

// Selected returns the active tab.
func (r *Registry) Selected() (*OpenFile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.indexLocked(r.selected); i >= 0 {
		return r.files[i], true
	}
	return nil, false
}

// Edit applies an edit to a file, remaps its breakpoints and marks it dirty.
func (r *Registry) Edit(id string, e document.Edit) (document.Change, error) {
	f, ok := r.Get(id)
	if !ok {
		return document.Change{}, fmt.Errorf("%w: %s", ErrNotOpen, id)
	}

	c, err := f.doc.Apply(e)
	if err != nil {
		return document.Change{}, err
	}
	f.breakpoints.Map(c)
	f.setDirty(true)
	return c, nil
}

// Save writes a file through the workspace and clears its dirty flag.
func (r *Registry) Save(id string) error {
	f, ok := r.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotOpen, id)
	}
	if err := r.ws.WriteText(f.path, f.doc.Text()); err != nil {
		return err
	}
	f.setDirty(false)
	r.log.Debug("file saved", "path", f.path)
	return nil
}

// ToggleBreakpoint flips the breakpoint on a line of a file.
func (r *Registry) ToggleBreakpoint(id string, line int) (bool, error) {
	f, ok := r.Get(id)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrNotOpen, id)
	}
	return f.breakpoints.Toggle(line)
}

// BreakpointMap returns, for every open file with breakpoints, its base name
// mapped to its ascending line numbers.
func (r *Registry) BreakpointMap() map[string][]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m := make(map[string][]int)
	for _, f := range r.files {
		lines := f.breakpoints.Lines()
		if len(lines) == 0 {
			continue
		}
		m[f.name] = append(m[f.name], lines...)
	}
	for name, lines := range m {
		slices.Sort(lines)
		m[name] = slices.Compact(lines)
	}
	return m
}
