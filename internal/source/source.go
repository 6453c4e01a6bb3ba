// Package source abstracts where book markdown comes from: a local
// directory for the common case, a GitHub repository for books published
// as docs sites.
package source

import "context"

// Document is one markdown file ready for ingestion.
type Document struct {
	// Path is the file name relative to the source root, e.g.
	// "chapter-1-spec-kit.md". It becomes the chunk's source file.
	Path    string
	Content string
}

// Source enumerates and fetches book documents.
type Source interface {
	// List returns the relative paths of all markdown files, sorted for
	// deterministic ingestion order.
	List(ctx context.Context) ([]string, error)
	// Fetch returns the document at a path previously returned by List.
	Fetch(ctx context.Context, path string) (*Document, error)
}
