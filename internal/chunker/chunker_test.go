package chunker

import (
	"strings"
	"testing"

	"github.com/manualqa/manualqa/internal/document"
)

func testDoc(text string) document.Document {
	return document.Document{
		ID:         "doc-1",
		SourcePath: "data/manual.txt",
		Text:       text,
		Metadata:   map[string]string{"source": "data/manual.txt"},
	}
}

func mustSplitter(t *testing.T, size, overlap int) *Splitter {
	t.Helper()
	s, err := NewSplitter(size, overlap)
	if err != nil {
		t.Fatalf("NewSplitter(%d, %d) error = %v", size, overlap, err)
	}
	return s
}

func TestNewSplitterValidation(t *testing.T) {
	if _, err := NewSplitter(0, 0); err == nil {
		t.Error("NewSplitter(0, 0) succeeded, want error")
	}
	if _, err := NewSplitter(100, 100); err == nil {
		t.Error("NewSplitter(100, 100) succeeded, want error (overlap == size)")
	}
	if _, err := NewSplitter(100, -1); err == nil {
		t.Error("NewSplitter(100, -1) succeeded, want error")
	}
	if _, err := NewSplitter(100, 99); err != nil {
		t.Errorf("NewSplitter(100, 99) error = %v, want nil", err)
	}
}

func TestSplitShortDocumentSingleChunk(t *testing.T) {
	// The canonical one-page example: text well under the chunk size must
	// produce exactly one chunk equal to the full text.
	text := "The Model Z speaker outputs a maximum of 50 watts."
	s := mustSplitter(t, 500, 50)

	chunks := s.Split(testDoc(text))
	if len(chunks) != 1 {
		t.Fatalf("Split() produced %d chunks, want 1", len(chunks))
	}
	if chunks[0].Text != text {
		t.Errorf("chunk text = %q, want full document text", chunks[0].Text)
	}
	if chunks[0].StartOffset != 0 || chunks[0].EndOffset != len(text) {
		t.Errorf("chunk offsets = [%d, %d), want [0, %d)",
			chunks[0].StartOffset, chunks[0].EndOffset, len(text))
	}
}

func TestSplitEmptyDocument(t *testing.T) {
	s := mustSplitter(t, 100, 10)
	if chunks := s.Split(testDoc("")); chunks != nil {
		t.Errorf("Split(empty) = %d chunks, want none", len(chunks))
	}
}

func TestSplitDeterminism(t *testing.T) {
	text := strings.Repeat("Paragraph one with several words.\n\nParagraph two follows here. ", 30)
	s := mustSplitter(t, 200, 40)

	first := s.Split(testDoc(text))
	second := s.Split(testDoc(text))

	if len(first) != len(second) {
		t.Fatalf("chunk count differs between runs: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].StartOffset != second[i].StartOffset || first[i].EndOffset != second[i].EndOffset {
			t.Errorf("chunk %d boundaries differ: [%d,%d) vs [%d,%d)", i,
				first[i].StartOffset, first[i].EndOffset,
				second[i].StartOffset, second[i].EndOffset)
		}
		if first[i].ID != second[i].ID {
			t.Errorf("chunk %d IDs differ: %q vs %q", i, first[i].ID, second[i].ID)
		}
	}
}

func TestSplitSizeInvariant(t *testing.T) {
	texts := []string{
		strings.Repeat("Short sentences here. More of them follow. ", 50),
		strings.Repeat("word ", 500),
		strings.Repeat("x", 2000), // no separators at all
		strings.Repeat("Line one\nLine two\n\nNew paragraph\n", 60),
	}
	s := mustSplitter(t, 120, 20)

	for ti, text := range texts {
		for i, c := range s.Split(testDoc(text)) {
			if got := c.EndOffset - c.StartOffset; got > 120 {
				t.Errorf("text %d chunk %d length = %d, exceeds chunk size 120", ti, i, got)
			}
			if c.Text != text[c.StartOffset:c.EndOffset] {
				t.Errorf("text %d chunk %d text does not match its offsets", ti, i)
			}
		}
	}
}

func TestSplitOverlapInvariant(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 40)
	const size, overlap = 150, 30
	s := mustSplitter(t, size, overlap)

	chunks := s.Split(testDoc(text))
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	for i := 0; i < len(chunks)-1; i++ {
		cur, next := chunks[i], chunks[i+1]
		tail := cur.Text[len(cur.Text)-overlap:]
		head := next.Text[:overlap]
		if tail != head {
			t.Errorf("chunks %d/%d overlap mismatch: tail %q != head %q", i, i+1, tail, head)
		}
		if next.StartOffset != cur.EndOffset-overlap {
			t.Errorf("chunk %d starts at %d, want %d (prev end %d - overlap %d)",
				i+1, next.StartOffset, cur.EndOffset-overlap, cur.EndOffset, overlap)
		}
	}

	// The full text must be covered without gaps.
	if chunks[0].StartOffset != 0 {
		t.Errorf("first chunk starts at %d, want 0", chunks[0].StartOffset)
	}
	if last := chunks[len(chunks)-1]; last.EndOffset != len(text) {
		t.Errorf("last chunk ends at %d, want %d", last.EndOffset, len(text))
	}
}

func TestSplitPrefersParagraphBoundaries(t *testing.T) {
	para1 := strings.Repeat("a", 80)
	para2 := strings.Repeat("b", 80)
	text := para1 + "\n\n" + para2
	s := mustSplitter(t, 100, 10)

	chunks := s.Split(testDoc(text))
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}
	// The first chunk should end at the paragraph break, not at the raw
	// 100-byte position.
	wantEnd := len(para1) + len("\n\n")
	if chunks[0].EndOffset != wantEnd {
		t.Errorf("first chunk ends at %d, want paragraph boundary %d", chunks[0].EndOffset, wantEnd)
	}
}

func TestSplitSentenceFallback(t *testing.T) {
	// One long paragraph, no line breaks: must fall back to sentence splits.
	text := strings.Repeat("This sentence is reasonably long and ends cleanly. ", 10)
	s := mustSplitter(t, 120, 20)

	chunks := s.Split(testDoc(text))
	for i, c := range chunks[:len(chunks)-1] {
		if !strings.HasSuffix(c.Text, ". ") {
			t.Errorf("chunk %d does not end at a sentence boundary: ...%q", i, tailOf(c.Text, 15))
		}
	}
}

func TestSplitAllPreservesDocumentOrder(t *testing.T) {
	s := mustSplitter(t, 500, 50)
	docs := []document.Document{
		{ID: "a", Text: "first document"},
		{ID: "b", Text: "second document"},
	}

	chunks := s.SplitAll(docs)
	if len(chunks) != 2 {
		t.Fatalf("SplitAll() produced %d chunks, want 2", len(chunks))
	}
	if chunks[0].DocumentID != "a" || chunks[1].DocumentID != "b" {
		t.Errorf("chunk order = %q, %q; want a, b", chunks[0].DocumentID, chunks[1].DocumentID)
	}
}

func TestSplitChunkIDsUniqueWithinDocument(t *testing.T) {
	text := strings.Repeat("Some sentence that repeats endlessly. ", 60)
	s := mustSplitter(t, 100, 20)

	seen := make(map[string]bool)
	for _, c := range s.Split(testDoc(text)) {
		if seen[c.ID] {
			t.Errorf("duplicate chunk ID %q", c.ID)
		}
		seen[c.ID] = true
	}
}

func TestSplitMultiByteRunesNotBroken(t *testing.T) {
	text := strings.Repeat("héllo wörld Ünïcode ", 50)
	s := mustSplitter(t, 64, 8)

	for i, c := range s.Split(testDoc(text)) {
		if !utf8ValidString(c.Text) {
			t.Errorf("chunk %d contains a broken rune: %q", i, c.Text)
		}
	}
}

func utf8ValidString(s string) bool {
	for _, r := range s {
		if r == '�' {
			return false
		}
	}
	return true
}

func tailOf(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
