package workspace

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Workspace is a project directory.
type Workspace struct {
	root  string
	fs    FS
	index *Index
}

// New creates a workspace for root using fsys for file access. The index
// starts empty; call Scan to fill it from disk.
func New(root string, fsys FS) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	if fsys == nil {
		fsys = OSFS{}
	}
	return &Workspace{
		root:  abs,
		fs:    fsys,
		index: NewIndex(abs),
	}, nil
}

// Root returns the absolute workspace directory.
func (w *Workspace) Root() string {
	return w.root
}

// Index returns the file-name index.
func (w *Workspace) Index() *Index {
	return w.index
}

// Scan rebuilds the index from disk.
func (w *Workspace) Scan() error {
	return w.index.Scan()
}

// Abs resolves a path relative to the workspace root.
func (w *Workspace) Abs(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(w.root, path)
}

// Resolve maps an engine-reported file name to a path.
func (w *Workspace) Resolve(name string) (string, bool) {
	return w.index.Resolve(name)
}

// ReadText reads a source file. CRLF line endings are kept; the document
// layer normalizes them.
func (w *Workspace) ReadText(path string) (string, error) {
	data, err := w.fs.ReadFile(w.Abs(path))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

// WriteText writes a source file and records it in the index.
func (w *Workspace) WriteText(path, text string) error {
	abs := w.Abs(path)
	if err := w.fs.WriteFile(abs, []byte(text), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if strings.HasPrefix(abs, w.root+string(filepath.Separator)) {
		w.index.Add(abs)
	}
	return nil
}
