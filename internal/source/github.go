package source

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	"github.com/google/go-github/v81/github"
)

// GitHub reads book markdown from a repository directory. Rate limits are
// handled transparently by waiting them out; setting GITHUB_TOKEN raises
// the budget from 60 to 5000 requests per hour.
type GitHub struct {
	client   *github.Client
	owner    string
	repo     string
	basePath string
}

// NewGitHub creates a source for owner/repo rooted at basePath.
func NewGitHub(owner, repo, basePath string) (*GitHub, error) {
	rateLimiter, err := github_ratelimit.NewRateLimitWaiterClient(nil)
	if err != nil {
		return nil, fmt.Errorf("create rate limiter: %w", err)
	}

	client := github.NewClient(rateLimiter)
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		client = client.WithAuthToken(token)
	}

	return &GitHub{
		client:   client,
		owner:    owner,
		repo:     repo,
		basePath: basePath,
	}, nil
}

// List recursively collects .md paths under the base path, sorted lexically.
func (g *GitHub) List(ctx context.Context) ([]string, error) {
	paths, err := g.listDir(ctx, g.basePath, "")
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

func (g *GitHub) listDir(ctx context.Context, fullPath, relPath string) ([]string, error) {
	_, entries, _, err := g.client.Repositories.GetContents(ctx, g.owner, g.repo, fullPath, nil)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", fullPath, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.Type == nil || entry.Name == nil {
			continue
		}
		entryRel := path.Join(relPath, *entry.Name)

		switch *entry.Type {
		case "file":
			if strings.HasSuffix(*entry.Name, ".md") {
				paths = append(paths, entryRel)
			}
		case "dir":
			sub, err := g.listDir(ctx, path.Join(fullPath, *entry.Name), entryRel)
			if err != nil {
				return nil, err
			}
			paths = append(paths, sub...)
		}
	}
	return paths, nil
}

// Fetch downloads and decodes one document.
func (g *GitHub) Fetch(ctx context.Context, relPath string) (*Document, error) {
	fullPath := path.Join(g.basePath, relPath)

	file, _, _, err := g.client.Repositories.GetContents(ctx, g.owner, g.repo, fullPath, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", fullPath, err)
	}
	if file == nil || file.Content == nil {
		return nil, fmt.Errorf("no file content returned for %s", fullPath)
	}

	content, err := base64.StdEncoding.DecodeString(*file.Content)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", fullPath, err)
	}

	return &Document{Path: relPath, Content: string(content)}, nil
}
