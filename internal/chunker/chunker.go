// Package chunker splits documents into bounded, overlapping text chunks,
// the unit of indexing and retrieval.
//
// Splitting is a pure function of (text, chunk size, chunk overlap):
// the same input always yields byte-identical chunk boundaries.
package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/manualqa/manualqa/internal/document"
)

// Chunk is a contiguous span of a source document's text.
// Invariants: EndOffset-StartOffset <= chunk size, and consecutive chunks
// of the same document overlap by exactly the configured overlap (except
// at the document end).
type Chunk struct {
	ID          string
	DocumentID  string
	Text        string
	StartOffset int
	EndOffset   int
	Metadata    map[string]string
}

// separators, tried coarsest first: paragraph break, line break, sentence
// boundary, word boundary, then raw characters as the last resort.
var separators = []string{"\n\n", "\n", ". ", " ", ""}

// Splitter produces chunks under a size constraint with a fixed overlap.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
}

// NewSplitter creates a Splitter. chunkOverlap must be smaller than
// chunkSize; both are measured in bytes.
func NewSplitter(chunkSize, chunkOverlap int) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", chunkSize, chunkOverlap)
	}
	return &Splitter{chunkSize: chunkSize, chunkOverlap: chunkOverlap}, nil
}

// Split chunks one document. Each chunk ends on the coarsest separator
// boundary that fits within the size limit; each subsequent chunk starts
// exactly chunkOverlap bytes before the previous chunk's end.
func (s *Splitter) Split(doc document.Document) []Chunk {
	text := doc.Text
	if text == "" {
		return nil
	}

	boundaries := make([]int, 0, len(text)/s.chunkSize+4)
	s.appendBoundaries(text, 0, separators, &boundaries)

	var chunks []Chunk
	start, prevEnd := 0, 0
	for start < len(text) {
		end := s.pickEnd(text, start, prevEnd, boundaries)
		chunks = append(chunks, s.newChunk(doc, text, start, end))
		if end >= len(text) {
			break
		}
		start = runeStart(text, end-s.chunkOverlap)
		prevEnd = end
	}
	return chunks
}

// SplitAll chunks documents in order, concatenating their chunks.
func (s *Splitter) SplitAll(docs []document.Document) []Chunk {
	var all []Chunk
	for _, doc := range docs {
		all = append(all, s.Split(doc)...)
	}
	return all
}

func (s *Splitter) newChunk(doc document.Document, text string, start, end int) Chunk {
	meta := make(map[string]string, len(doc.Metadata))
	for k, v := range doc.Metadata {
		meta[k] = v
	}
	return Chunk{
		ID:          chunkID(doc.ID, start),
		DocumentID:  doc.ID,
		Text:        text[start:end],
		StartOffset: start,
		EndOffset:   end,
		Metadata:    meta,
	}
}

// pickEnd returns the largest unit boundary reachable from start within the
// size limit. Only boundaries strictly past the previous chunk's end are
// candidates, so every chunk makes progress; when none fits, it falls back
// to a raw character split.
func (s *Splitter) pickEnd(text string, start, prevEnd int, boundaries []int) int {
	end := -1
	for _, b := range boundaries {
		if b <= prevEnd {
			continue
		}
		if b-start > s.chunkSize {
			break
		}
		end = b
	}
	if end < 0 {
		end = runeStart(text, start+s.chunkSize)
		if end <= prevEnd {
			end = start + s.chunkSize
		}
		if end > len(text) {
			end = len(text)
		}
	}
	return end
}

// appendBoundaries records, in increasing order, the end offset of every
// unit produced by recursive separator splitting. Every gap between
// consecutive boundaries is at most chunkSize.
func (s *Splitter) appendBoundaries(text string, base int, seps []string, out *[]int) {
	if len(text) <= s.chunkSize {
		*out = append(*out, base+len(text))
		return
	}

	sep := seps[0]
	if sep == "" {
		s.appendCharBoundaries(text, base, out)
		return
	}

	start := 0
	for {
		idx := strings.Index(text[start:], sep)
		if idx < 0 {
			break
		}
		end := start + idx + len(sep)
		s.emitUnit(text[start:end], base+start, seps, out)
		start = end
	}
	if start < len(text) {
		s.emitUnit(text[start:], base+start, seps, out)
	}
}

// emitUnit records the unit's end, recursing with the next separator when
// the unit still exceeds the size limit.
func (s *Splitter) emitUnit(unit string, base int, seps []string, out *[]int) {
	if len(unit) <= s.chunkSize {
		*out = append(*out, base+len(unit))
		return
	}
	s.appendBoundaries(unit, base, seps[1:], out)
}

// appendCharBoundaries slices text into chunkSize pieces on rune boundaries.
func (s *Splitter) appendCharBoundaries(text string, base int, out *[]int) {
	start := 0
	for start < len(text) {
		end := start + s.chunkSize
		if end >= len(text) {
			end = len(text)
		} else {
			end = runeStart(text, end)
			if end <= start {
				end = start + s.chunkSize
			}
		}
		*out = append(*out, base+end)
		start = end
	}
}

// runeStart moves pos backward to the nearest UTF-8 rune start.
func runeStart(text string, pos int) int {
	if pos < 0 {
		return 0
	}
	if pos >= len(text) {
		return pos
	}
	for pos > 0 && !utf8.RuneStart(text[pos]) {
		pos--
	}
	return pos
}

// chunkID derives a stable chunk ID from the parent document ID and the
// chunk's start offset.
func chunkID(docID string, start int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", docID, start)))
	return hex.EncodeToString(sum[:])[:16]
}
