// Package chunker splits document text into overlapping, sentence-aware
// chunks sized by character count rather than estimated token count.
package chunker

import (
	"fmt"
	"strings"
)

// Chunk is one ordered piece of a document's text.
type Chunk struct {
	Text  string
	Index int
}

// Chunker splits text into overlapping chunks of a target character
// size, preferring natural boundaries over hard cuts. See spec.md §4.4.
type Chunker struct {
	targetSize int
	overlap    int
}

// New creates a Chunker. size <= 0 defaults to 2000, overlap < 0
// defaults to 400.
func New(size, overlap int) *Chunker {
	if size <= 0 {
		size = 2000
	}
	if overlap < 0 {
		overlap = 400
	}
	return &Chunker{targetSize: size, overlap: overlap}
}

// boundaryTiers lists break-point substrings in preference order, from
// strongest (paragraph break) to weakest (semicolon).
var boundaryTiers = []string{
	"\n\n",   // paragraph break
	".\n", "!\n", "?\n", // sentence end + newline
	". ", "! ", "? ", // sentence end + space
	"\n",  // single newline
	"; ", // semicolon
}

// Chunk splits text into ordered, overlapping chunks. title and from
// are prefixed as a header on the first chunk only, per spec.md §4.4.
// Empty chunks are dropped; the chunk index is reassigned after
// dropping so Index is always dense starting at 0.
func (c *Chunker) Chunk(text, title, from string) ([]Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("chunker.Chunk: text is empty")
	}

	header := ""
	if title != "" || from != "" {
		header = fmt.Sprintf("Title: %s / From: %s\n\n", title, from)
	}

	body := text
	var raw []string
	pos := 0
	first := true

	for pos < len(body) {
		prefix := ""
		if first && header != "" {
			prefix = header
		}

		target := c.targetSize - len(prefix)
		if target <= 0 {
			target = c.targetSize
		}

		end := pos + target
		if end >= len(body) {
			raw = append(raw, prefix+body[pos:])
			break
		}

		actualEnd := c.findBreak(body, pos, end)

		raw = append(raw, prefix+body[pos:actualEnd])

		nextStart := actualEnd - c.overlap
		if nextStart <= pos {
			// Forward-progress guarantee: if overlap would not advance
			// past the current start, jump straight to actualEnd.
			nextStart = actualEnd
		}
		pos = nextStart
		first = false
	}

	chunks := make([]Chunk, 0, len(raw))
	idx := 0
	for _, r := range raw {
		trimmed := strings.TrimSpace(r)
		if trimmed == "" {
			continue
		}
		chunks = append(chunks, Chunk{Text: trimmed, Index: idx})
		idx++
	}
	return chunks, nil
}

// findBreak looks for the best natural boundary within [start, target],
// scanning backward from target for each preference tier in turn. A
// candidate is only accepted if it lies past 50% of the target chunk
// size; otherwise the hard cut at target is used.
func (c *Chunker) findBreak(text string, start, target int) int {
	if target > len(text) {
		target = len(text)
	}
	minAcceptable := start + c.targetSize/2

	window := text[start:target]

	for _, sep := range boundaryTiers {
		if idx := strings.LastIndex(window, sep); idx >= 0 {
			breakAt := start + idx + len(sep)
			if breakAt >= minAcceptable && breakAt > start {
				return breakAt
			}
		}
	}

	return target
}
