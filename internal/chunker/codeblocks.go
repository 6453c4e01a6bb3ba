package chunker

import (
	"fmt"
	"regexp"
	"strings"
)

var codeBlockPattern = regexp.MustCompile("(?s)```.*?```")

// PreserveCodeBlocks replaces fenced code blocks with placeholder tokens so
// chunk boundaries never fall inside a fence. Callers that need the
// guarantee apply this before ChunkText and restore afterwards; ChunkText
// itself does not do it.
func PreserveCodeBlocks(text string) (string, map[int]string) {
	blocks := make(map[int]string)
	counter := 0

	replaced := codeBlockPattern.ReplaceAllStringFunc(text, func(match string) string {
		placeholder := placeholderFor(counter)
		blocks[counter] = match
		counter++
		return placeholder
	})

	return replaced, blocks
}

// RestoreCodeBlocks substitutes the original code blocks back in place of
// their placeholders.
func RestoreCodeBlocks(text string, blocks map[int]string) string {
	for i, code := range blocks {
		text = strings.ReplaceAll(text, placeholderFor(i), code)
	}
	return text
}

func placeholderFor(i int) string {
	return fmt.Sprintf("__CODE_BLOCK_%d__", i)
}
