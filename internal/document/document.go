// Package document loads source files from a directory into documents for
// ingestion. Loading is a pure read: the loader never writes anything.
//
// Supported formats: PDF (one document per page), plain text and markdown
// (one document per file).
package document

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Document is one logical unit of source text, immutable once loaded.
// Page is 1-based for paginated formats and 0 for whole-file documents.
type Document struct {
	ID         string
	SourcePath string
	Page       int
	Text       string
	Metadata   map[string]string
}

// NewID derives a stable document ID from the source path and page number.
// Re-loading the same file always yields the same IDs.
func NewID(sourcePath string, page int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", sourcePath, page)))
	return hex.EncodeToString(sum[:])[:16]
}
