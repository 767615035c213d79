package workspace

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Index maps file base names to full paths. When two files share a base
// name the shallower path wins, then the lexically smaller one.
//
// All methods are thread-safe.
type Index struct {
	mu     sync.RWMutex
	root   string
	byName map[string][]string
}

// NewIndex creates an empty index for root.
func NewIndex(root string) *Index {
	return &Index{
		root:   filepath.Clean(root),
		byName: make(map[string][]string),
	}
}

// Root returns the indexed directory.
func (x *Index) Root() string {
	return x.root
}

// skipDir reports whether a directory is left out of the index.
func skipDir(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

// Scan walks the root directory and replaces the index contents. Hidden
// directories are skipped.
func (x *Index) Scan() error {
	byName := make(map[string][]string)
	err := filepath.WalkDir(x.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if p != x.root && skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		byName[d.Name()] = append(byName[d.Name()], p)
		return nil
	})
	if err != nil {
		return err
	}

	for name := range byName {
		sortPaths(byName[name])
	}

	x.mu.Lock()
	x.byName = byName
	x.mu.Unlock()
	return nil
}

func sortPaths(paths []string) {
	sort.Slice(paths, func(i, j int) bool {
		di := strings.Count(paths[i], string(filepath.Separator))
		dj := strings.Count(paths[j], string(filepath.Separator))
		if di != dj {
			return di < dj
		}
		return paths[i] < paths[j]
	})
}

// Add records a file path.
func (x *Index) Add(path string) {
	path = filepath.Clean(path)
	name := filepath.Base(path)

	x.mu.Lock()
	defer x.mu.Unlock()
	for _, p := range x.byName[name] {
		if p == path {
			return
		}
	}
	x.byName[name] = append(x.byName[name], path)
	sortPaths(x.byName[name])
}

// Remove forgets a file path. Removing a directory forgets everything
// below it.
func (x *Index) Remove(path string) {
	path = filepath.Clean(path)
	prefix := path + string(filepath.Separator)

	x.mu.Lock()
	defer x.mu.Unlock()
	for name, paths := range x.byName {
		kept := paths[:0]
		for _, p := range paths {
			if p != path && !strings.HasPrefix(p, prefix) {
				kept = append(kept, p)
			}
		}
		if len(kept) == 0 {
			delete(x.byName, name)
		} else {
			x.byName[name] = kept
		}
	}
}

// Resolve returns the path for a name. A name that is already a path
// (absolute, or containing a separator) is joined to the root instead of
// looked up.
func (x *Index) Resolve(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	if filepath.IsAbs(name) {
		return filepath.Clean(name), true
	}
	if strings.ContainsRune(name, filepath.Separator) {
		return filepath.Join(x.root, name), true
	}

	x.mu.RLock()
	defer x.mu.RUnlock()
	paths := x.byName[name]
	if len(paths) == 0 {
		return "", false
	}
	return paths[0], true
}

// Len returns the number of indexed files.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	n := 0
	for _, paths := range x.byName {
		n += len(paths)
	}
	return n
}
