package document

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/manualqa/manualqa/internal/log"
)

// ErrNoInput indicates the source directory contains no loadable files.
// Ingestion must abort on this error rather than build an empty index.
var ErrNoInput = errors.New("no supported input files found")

// supportedExtensions are the file types the loader recognizes.
var supportedExtensions = map[string]bool{
	".pdf": true,
	".txt": true,
	".md":  true,
}

// Loader reads documents from a directory.
type Loader struct {
	logger log.Logger
}

// NewLoader creates a Loader. A nil logger falls back to a no-op logger.
func NewLoader(logger log.Logger) *Loader {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Loader{logger: logger}
}

// Load enumerates all supported files under dir (recursively, in lexical
// order, so document order is deterministic) and parses each into one or
// more documents. Returns ErrNoInput if no file matches the supported
// extension set.
func (l *Loader) Load(ctx context.Context, dir string) ([]Document, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("reading source directory %q: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source path %q is not a directory", dir)
	}

	var docs []Document
	matched := 0

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if !supportedExtensions[ext] {
			return nil
		}
		matched++

		var fileDocs []Document
		switch ext {
		case ".pdf":
			fileDocs, err = loadPDF(path)
		default:
			fileDocs, err = loadText(path)
		}
		if err != nil {
			return fmt.Errorf("loading %q: %w", path, err)
		}

		l.logger.Debug("loaded file", "path", path, "documents", len(fileDocs))
		docs = append(docs, fileDocs...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if matched == 0 {
		return nil, fmt.Errorf("%w in %q (supported: .pdf, .txt, .md)", ErrNoInput, dir)
	}

	l.logger.Info("loaded documents", "dir", dir, "files", matched, "documents", len(docs))
	return docs, nil
}

// loadText reads a plain text or markdown file as a single document.
func loadText(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	text := string(data)
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	return []Document{{
		ID:         NewID(path, 0),
		SourcePath: path,
		Text:       text,
		Metadata:   map[string]string{"source": path},
	}}, nil
}

// pageMetadata builds the metadata map for one PDF page.
func pageMetadata(path string, page int) map[string]string {
	return map[string]string{
		"source": path,
		"page":   strconv.Itoa(page),
	}
}
