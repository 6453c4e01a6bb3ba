// Package markdown extracts heading structure from book chapters.
//
// Chapters are Docusaurus-style markdown: an optional ----delimited
// frontmatter block, then ATX headings where H1 is the chapter title,
// H2 a section and H3 a subsection.
package markdown

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"
)

// Heading is a single ATX heading found in a document.
type Heading struct {
	Level int    // 1..6
	Text  string
	Line  int // 1-based line number in the frontmatter-stripped source
}

// Hierarchy holds the chapter/section/subsection state after a full parse.
// A new H1 clears H2 and H3; a new H2 clears H3.
type Hierarchy struct {
	H1 string
	H2 string
	H3 string
}

// Section is a slice of a document delimited by H2 headings.
type Section struct {
	Heading string
	Content string
	Level   int
}

var (
	frontmatterPattern = regexp.MustCompile(`(?s)\A---[ \t]*\r?\n.*?\r?\n---[ \t]*\r?\n`)
	atxPattern         = regexp.MustCompile(`^#{1,6}\s+\S`)
)

// Parser extracts heading structure from markdown documents.
type Parser struct {
	md goldmark.Markdown
}

// NewParser creates a parser configured with auto heading IDs, which the
// H2 section splitter relies on to locate heading nodes.
func NewParser() *Parser {
	return &Parser{
		md: goldmark.New(
			goldmark.WithParserOptions(
				parser.WithAutoHeadingID(),
			),
		),
	}
}

// StripFrontmatter removes a single leading ----delimited metadata block.
func StripFrontmatter(content string) string {
	return strings.TrimSpace(frontmatterPattern.ReplaceAllString(content, ""))
}

// ExtractHeadings returns all ATX headings in document order. Frontmatter is
// stripped first so metadata lines never masquerade as headings, and
// hash lines inside fenced code blocks are not counted.
func (p *Parser) ExtractHeadings(content string) []Heading {
	source := []byte(StripFrontmatter(content))
	if len(source) == 0 {
		return nil
	}

	doc := p.md.Parser().Parse(text.NewReader(source))

	var headings []Heading
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || n.Kind() != ast.KindHeading {
			return ast.WalkContinue, nil
		}
		heading := n.(*ast.Heading)
		if heading.Lines().Len() == 0 {
			return ast.WalkContinue, nil
		}

		seg := heading.Lines().At(0)
		lineStart := bytes.LastIndexByte(source[:seg.Start], '\n') + 1
		rawLine := source[lineStart:seg.Stop]
		// Only ATX headings count; goldmark also recognizes setext ones.
		if !atxPattern.Match(rawLine) {
			return ast.WalkContinue, nil
		}

		headings = append(headings, Heading{
			Level: heading.Level,
			Text:  nodeText(heading, source),
			Line:  1 + bytes.Count(source[:seg.Start], []byte("\n")),
		})
		return ast.WalkContinue, nil
	})

	return headings
}

// HeadingHierarchy replays all headings and returns the end-of-document
// hierarchy state.
func (p *Parser) HeadingHierarchy(content string) Hierarchy {
	var h Hierarchy
	for _, heading := range p.ExtractHeadings(content) {
		switch heading.Level {
		case 1:
			h.H1 = heading.Text
			h.H2 = ""
			h.H3 = ""
		case 2:
			h.H2 = heading.Text
			h.H3 = ""
		case 3:
			h.H3 = heading.Text
		}
	}
	return h
}

// ChapterAndSection returns the first H1 and first H2 of the document.
// Later headings of the same level do not replace them.
func (p *Parser) ChapterAndSection(content string) (string, string) {
	var chapter, section string
	for _, heading := range p.ExtractHeadings(content) {
		switch {
		case heading.Level == 1 && chapter == "":
			chapter = heading.Text
		case heading.Level == 2 && section == "":
			section = heading.Text
		}
	}
	return chapter, section
}

// HeadingPath returns the non-empty H1..H3 hierarchy at end of document.
func (p *Parser) HeadingPath(content string) []string {
	h := p.HeadingHierarchy(content)

	var path []string
	for _, part := range []string{h.H1, h.H2, h.H3} {
		if part != "" {
			path = append(path, part)
		}
	}
	return path
}

// SplitByHeadings splits the document at H2 boundaries. Content before the
// first H2 is not part of any section; each section's content runs to the
// next H2 or end of document and keeps nested H3+ subsections inline.
func (p *Parser) SplitByHeadings(content string) []Section {
	source := []byte(StripFrontmatter(content))
	if len(source) == 0 {
		return nil
	}

	doc := p.md.Parser().Parse(text.NewReader(source))
	tree, err := toc.Inspect(doc, source,
		toc.MinDepth(2),
		toc.MaxDepth(2),
		toc.Compact(true),
	)
	if err != nil {
		return nil
	}

	var sections []Section
	items := tree.Items
	for i, item := range items {
		node := findHeadingByID(doc, string(item.ID))
		if node == nil || node.Lines().Len() == 0 {
			continue
		}

		start := contentStart(source, node.Lines().At(0))
		end := len(source)
		if i+1 < len(items) {
			if next := findHeadingByID(doc, string(items[i+1].ID)); next != nil && next.Lines().Len() > 0 {
				end = lineStart(source, next.Lines().At(0))
			}
		}
		if start > end {
			start = end
		}

		sections = append(sections, Section{
			Heading: string(item.Title),
			Content: strings.TrimSpace(string(source[start:end])),
			Level:   2,
		})
	}

	return sections
}

// nodeText collects the raw text content of a node's inline children.
func nodeText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering {
			if t, ok := c.(*ast.Text); ok {
				buf.Write(t.Segment.Value(source))
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(buf.String())
}

// findHeadingByID locates a heading node by its auto-generated ID.
func findHeadingByID(root ast.Node, id string) *ast.Heading {
	var found *ast.Heading
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering && n.Kind() == ast.KindHeading {
			heading := n.(*ast.Heading)
			if headingID, ok := heading.AttributeString("id"); ok && string(headingID.([]byte)) == id {
				found = heading
				return ast.WalkStop, nil
			}
		}
		return ast.WalkContinue, nil
	})
	return found
}

// lineStart returns the byte offset of the start of the line containing seg.
func lineStart(source []byte, seg text.Segment) int {
	return bytes.LastIndexByte(source[:seg.Start], '\n') + 1
}

// contentStart returns the byte offset just past the heading's own line.
func contentStart(source []byte, seg text.Segment) int {
	idx := bytes.IndexByte(source[seg.Stop:], '\n')
	if idx < 0 {
		return len(source)
	}
	return seg.Stop + idx + 1
}
