package chunker

import (
	"strings"
	"testing"
)

func TestChunker_BasicChunking(t *testing.T) {
	c := New(500, 100)

	var paragraphs []string
	for i := 0; i < 20; i++ {
		paragraphs = append(paragraphs, "This is a test paragraph with enough content to contribute to the overall character count. It has multiple sentences. Each sentence adds to the overall length of the paragraph.")
	}
	text := strings.Join(paragraphs, "\n\n")

	chunks, err := c.Chunk(text, "", "")
	if err != nil {
		t.Fatalf("Chunk() error: %v", err)
	}

	if len(chunks) < 2 {
		t.Errorf("expected at least 2 chunks, got %d", len(chunks))
	}

	for i, ch := range chunks {
		if ch.Text == "" {
			t.Errorf("chunk[%d] has empty text", i)
		}
		if ch.Index != i {
			t.Errorf("chunk[%d] Index = %d, want %d", i, ch.Index, i)
		}
	}
}

func TestChunker_OverlapApplied(t *testing.T) {
	c := New(200, 50)

	var paragraphs []string
	for i := 0; i < 15; i++ {
		paragraphs = append(paragraphs, "Alpha beta gamma delta epsilon zeta eta theta iota kappa lambda mu nu xi omicron pi rho sigma tau upsilon.")
	}
	text := strings.Join(paragraphs, "\n\n")

	chunks, err := c.Chunk(text, "", "")
	if err != nil {
		t.Fatalf("Chunk() error: %v", err)
	}
	if len(chunks) < 3 {
		t.Fatalf("expected at least 3 chunks for overlap test, got %d", len(chunks))
	}

	words0 := strings.Fields(chunks[0].Text)
	if len(words0) > 5 {
		lastFew := strings.Join(words0[len(words0)-3:], " ")
		if !strings.Contains(chunks[1].Text, lastFew) {
			t.Errorf("chunk[1] should contain overlap from chunk[0], looking for %q", lastFew)
		}
	}
}

func TestChunker_FirstChunkHasHeader(t *testing.T) {
	c := New(2000, 400)

	text := strings.Repeat("This is a document body sentence. ", 50)
	chunks, err := c.Chunk(text, "Quarterly Planning", "alice@example.com")
	if err != nil {
		t.Fatalf("Chunk() error: %v", err)
	}
	if !strings.HasPrefix(chunks[0].Text, "Title: Quarterly Planning / From: alice@example.com") {
		t.Errorf("first chunk missing header, got: %q", chunks[0].Text[:min(80, len(chunks[0].Text))])
	}
	if len(chunks) > 1 && strings.Contains(chunks[1].Text, "Title: Quarterly Planning") {
		t.Error("only the first chunk should carry the header")
	}
}

func TestChunker_EmptyTextErrors(t *testing.T) {
	c := New(2000, 400)
	if _, err := c.Chunk("   ", "", ""); err == nil {
		t.Error("expected error for empty text")
	}
}

func TestChunker_ForwardProgressGuarantee(t *testing.T) {
	// A pathological text with no natural boundaries anywhere must still
	// terminate and make forward progress every iteration.
	c := New(50, 49) // overlap nearly equal to size
	text := strings.Repeat("x", 5000)

	chunks, err := c.Chunk(text, "", "")
	if err != nil {
		t.Fatalf("Chunk() error: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}
	// With size 50 and overlap 49 each chunk advances the start by one
	// character, so thousands of chunks are expected; a chunker that
	// stopped advancing would produce fewer than len(text)/100.
	if len(chunks) < len(text)/100 {
		t.Errorf("suspiciously few chunks (%d) for %d chars, chunker may not be progressing", len(chunks), len(text))
	}
}

func TestChunker_PrefersParagraphBoundary(t *testing.T) {
	c := New(60, 10)
	// The paragraph break (ending at offset 45) lies past the 50% floor
	// (30) and inside the 60-char window, so it wins over a hard cut.
	text := "The first paragraph runs past the midpoint.\n\nSecond paragraph picks up here and continues on for a while to pad out the length of this test case nicely."

	chunks, err := c.Chunk(text, "", "")
	if err != nil {
		t.Fatalf("Chunk() error: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}
	if chunks[0].Text != "The first paragraph runs past the midpoint." {
		t.Errorf("chunk[0] = %q, want it to end at the paragraph break", chunks[0].Text)
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
