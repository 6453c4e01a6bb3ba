package source

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Filesystem reads markdown files from a local directory tree.
type Filesystem struct {
	root string
}

// NewFilesystem creates a source rooted at dir. The directory must exist.
func NewFilesystem(dir string) (*Filesystem, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("source directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source path %s is not a directory", dir)
	}
	return &Filesystem{root: dir}, nil
}

// List walks the tree and returns every .md path relative to the root,
// sorted lexically.
func (f *Filesystem) List(ctx context.Context) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(f.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		rel, err := filepath.Rel(f.root, p)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", f.root, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// Fetch reads one document.
func (f *Filesystem) Fetch(ctx context.Context, path string) (*Document, error) {
	data, err := os.ReadFile(filepath.Join(f.root, filepath.FromSlash(path)))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return &Document{Path: path, Content: string(data)}, nil
}
