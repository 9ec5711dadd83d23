package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/manualqa/manualqa/internal/chunker"
	"github.com/manualqa/manualqa/internal/document"
	"github.com/manualqa/manualqa/internal/index"
	"github.com/manualqa/manualqa/internal/log"
)

type stubEmbedder struct {
	calls []string
	err   error
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.calls = append(s.calls, text)
	// Deterministic two-dimensional vector derived from the text.
	return []float32{float32(len(text)), float32(strings.Count(text, " "))}, nil
}

func (s *stubEmbedder) ModelName() string { return "stub-embedder" }

func writeDataDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
	return dir
}

func newTestPipeline(t *testing.T, embedder *stubEmbedder) (*Pipeline, *index.Store) {
	t.Helper()
	store, err := index.Open(filepath.Join(t.TempDir(), "index.db"), embedder.ModelName(), log.NewNop())
	if err != nil {
		t.Fatalf("index.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	splitter, err := chunker.NewSplitter(100, 10)
	if err != nil {
		t.Fatalf("NewSplitter() error = %v", err)
	}
	p, err := New(document.NewLoader(log.NewNop()), splitter, embedder, store, log.NewNop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p, store
}

func TestRun(t *testing.T) {
	dir := writeDataDir(t, map[string]string{
		"manual.txt": "The Model Z speaker outputs a maximum of 50 watts.",
		"safety.md":  "Keep the device away from water at all times.",
	})

	embedder := &stubEmbedder{}
	p, store := newTestPipeline(t, embedder)

	stats, err := p.Run(context.Background(), dir, index.ModeReplace)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.Documents != 2 {
		t.Errorf("Documents = %d, want 2", stats.Documents)
	}
	if stats.Chunks != len(embedder.calls) {
		t.Errorf("Chunks = %d but embedder saw %d", stats.Chunks, len(embedder.calls))
	}

	n, err := store.Count(context.Background())
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != stats.Chunks {
		t.Errorf("stored %d chunks, stats say %d", n, stats.Chunks)
	}

	// Stored entries carry their origin.
	results, err := store.Query(context.Background(), []float32{50, 9}, 1)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Query() = %d results", len(results))
	}
	if filepath.Base(results[0].Entry.SourcePath) != "manual.txt" &&
		filepath.Base(results[0].Entry.SourcePath) != "safety.md" {
		t.Errorf("SourcePath = %q", results[0].Entry.SourcePath)
	}
}

func TestRunEmptyDirectory(t *testing.T) {
	embedder := &stubEmbedder{}
	p, _ := newTestPipeline(t, embedder)

	_, err := p.Run(context.Background(), t.TempDir(), index.ModeReplace)
	if !errors.Is(err, document.ErrNoInput) {
		t.Fatalf("Run() error = %v, want ErrNoInput", err)
	}
	if len(embedder.calls) != 0 {
		t.Error("embedder was called with no input documents")
	}
}

func TestRunEmbedderFailureAbortsBeforeWrite(t *testing.T) {
	dir := writeDataDir(t, map[string]string{"a.txt": "some text to index"})

	embedErr := errors.New("rate limited")
	embedder := &stubEmbedder{err: embedErr}
	p, store := newTestPipeline(t, embedder)

	if _, err := p.Run(context.Background(), dir, index.ModeReplace); !errors.Is(err, embedErr) {
		t.Fatalf("Run() error = %v, want wrapped embed error", err)
	}

	n, err := store.Count(context.Background())
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 0 {
		t.Errorf("store has %d chunks after a failed run, want 0", n)
	}
}

func TestRunCanceledContext(t *testing.T) {
	dir := writeDataDir(t, map[string]string{"a.txt": "some text to index"})
	p, _ := newTestPipeline(t, &stubEmbedder{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.Run(ctx, dir, index.ModeReplace); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
}

func TestRunAppendMode(t *testing.T) {
	dirA := writeDataDir(t, map[string]string{"a.txt": "first batch of text"})
	dirB := writeDataDir(t, map[string]string{"b.txt": "second batch of text"})

	p, store := newTestPipeline(t, &stubEmbedder{})

	if _, err := p.Run(context.Background(), dirA, index.ModeReplace); err != nil {
		t.Fatalf("replace Run() error = %v", err)
	}
	first, _ := store.Count(context.Background())

	if _, err := p.Run(context.Background(), dirB, index.ModeAppend); err != nil {
		t.Fatalf("append Run() error = %v", err)
	}
	second, _ := store.Count(context.Background())

	if second <= first {
		t.Errorf("append did not accumulate: %d then %d", first, second)
	}
}

func TestNewValidation(t *testing.T) {
	splitter, _ := chunker.NewSplitter(100, 10)
	if _, err := New(nil, splitter, &stubEmbedder{}, nil, nil); err == nil {
		t.Error("New() accepted missing stages")
	}
}
