// Package index provides the durable nearest-neighbor store over chunk
// embeddings. The store is a single SQLite file (pure-Go driver) at a
// configured path; similarity search is a brute-force cosine scan, which is
// exact and more than fast enough for document-manual corpora.
//
// Invariants: every stored embedding has the same dimensionality, recorded
// at store creation together with the embedding model identity. Opening a
// store with a different embedding model fails; so does querying or
// appending with mismatched dimensionality.
package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"github.com/manualqa/manualqa/internal/log"
)

var (
	// ErrModelMismatch indicates the persisted store was built with a
	// different embedding model than the one configured.
	ErrModelMismatch = errors.New("index was built with a different embedding model")

	// ErrDimensionMismatch indicates an embedding's dimensionality does not
	// match the store's fixed dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrLocked indicates another ingestion run holds the build lock.
	ErrLocked = errors.New("index is locked by another ingestion run")

	// ErrEmptyBuild indicates a build was attempted with zero entries.
	ErrEmptyBuild = errors.New("refusing to build an index with zero chunks")
)

// Mode selects re-ingestion behavior: replace the store atomically or
// append to it. The choice is always explicit, never inferred.
type Mode string

const (
	ModeReplace Mode = "replace"
	ModeAppend  Mode = "append"
)

// ParseMode parses a user-supplied mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeReplace, ModeAppend:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("invalid ingestion mode %q (want replace or append)", s)
	}
}

// Entry is the persisted form of a chunk inside the store.
type Entry struct {
	ID          string
	Position    int
	Content     string
	SourcePath  string
	Page        int
	StartOffset int
	EndOffset   int
	Embedding   []float32
}

// Result pairs a stored entry with its similarity score.
type Result struct {
	Entry Entry
	Score float64
}

const schema = `
CREATE TABLE IF NOT EXISTS chunks (
    id           TEXT PRIMARY KEY,
    position     INTEGER NOT NULL,
    content      TEXT NOT NULL,
    source_path  TEXT NOT NULL,
    page         INTEGER NOT NULL DEFAULT 0,
    start_offset INTEGER NOT NULL,
    end_offset   INTEGER NOT NULL,
    embedding    BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS index_meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

const (
	metaKeyModel     = "embedder_model"
	metaKeyDimension = "dimension"
)

// Exists reports whether a persisted store is present at path.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Store is the SQLite-backed vector index. Safe for concurrent queries;
// Build must not run concurrently with queries from the same process.
type Store struct {
	path   string
	model  string
	db     *sql.DB
	logger log.Logger
}

// Open opens (or creates) the store at path for the given embedding model.
// A persisted store recorded under a different model is rejected: mixing
// embedding models in one index is invalid.
func Open(path, embedderModel string, logger log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.NewNop()
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("creating index directory: %w", err)
		}
	}

	db, err := openDB(path)
	if err != nil {
		return nil, err
	}

	s := &Store{path: path, model: embedderModel, db: db, logger: logger}

	stored, err := s.meta(context.Background(), metaKeyModel)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if stored != "" && stored != embedderModel {
		_ = db.Close()
		return nil, fmt.Errorf("%w: store has %q, configured %q", ErrModelMismatch, stored, embedderModel)
	}

	return s, nil
}

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening index at %q: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensuring index schema: %w", err)
	}
	return db, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the store's file path.
func (s *Store) Path() string { return s.path }

// Model returns the embedding model identity the store is keyed by.
func (s *Store) Model() string { return s.model }

// Count returns the number of persisted chunks.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

// Dimension returns the store's fixed embedding dimension, or 0 for an
// empty store that has not recorded one yet.
func (s *Store) Dimension(ctx context.Context) (int, error) {
	v, err := s.meta(ctx, metaKeyDimension)
	if err != nil || v == "" {
		return 0, err
	}
	dim, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("corrupt dimension metadata %q: %w", v, err)
	}
	return dim, nil
}

// Build persists entries. ModeReplace writes a fresh store to a temporary
// file and atomically renames it over the old one, so a failed build never
// leaves a partial index. ModeAppend inserts transactionally after the
// existing entries. A file lock serializes concurrent ingestion runs.
func (s *Store) Build(ctx context.Context, entries []Entry, mode Mode) error {
	if len(entries) == 0 {
		return ErrEmptyBuild
	}

	dim := len(entries[0].Embedding)
	if dim == 0 {
		return fmt.Errorf("%w: entry %q has an empty embedding", ErrDimensionMismatch, entries[0].ID)
	}
	for _, e := range entries {
		if len(e.Embedding) != dim {
			return fmt.Errorf("%w: entry %q has %d, batch has %d",
				ErrDimensionMismatch, e.ID, len(e.Embedding), dim)
		}
	}

	lock := flock.New(s.path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring index lock: %w", err)
	}
	if !locked {
		return ErrLocked
	}
	defer func() { _ = lock.Unlock() }()

	switch mode {
	case ModeReplace:
		return s.rebuild(ctx, entries, dim)
	case ModeAppend:
		return s.append(ctx, entries, dim)
	default:
		return fmt.Errorf("invalid ingestion mode %q", mode)
	}
}

// rebuild writes a complete new store beside the current one and swaps it
// in with a rename.
func (s *Store) rebuild(ctx context.Context, entries []Entry, dim int) error {
	tmp := s.path + ".tmp"
	_ = os.Remove(tmp)

	db, err := openDB(tmp)
	if err != nil {
		return err
	}
	if err := insertEntries(ctx, db, entries, 0, s.model, dim); err != nil {
		_ = db.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := db.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("closing temporary index: %w", err)
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing current index: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("swapping in new index: %w", err)
	}

	reopened, err := openDB(s.path)
	if err != nil {
		return err
	}
	s.db = reopened

	s.logger.Info("index rebuilt", "path", s.path, "chunks", len(entries), "dimension", dim)
	return nil
}

// append inserts entries after the existing ones in a single transaction.
func (s *Store) append(ctx context.Context, entries []Entry, dim int) error {
	existing, err := s.Dimension(ctx)
	if err != nil {
		return err
	}
	if existing != 0 && existing != dim {
		return fmt.Errorf("%w: store has %d, batch has %d", ErrDimensionMismatch, existing, dim)
	}

	var next int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position)+1, 0) FROM chunks`).Scan(&next); err != nil {
		return fmt.Errorf("reading insertion position: %w", err)
	}

	if err := insertEntries(ctx, s.db, entries, next, s.model, dim); err != nil {
		return err
	}

	s.logger.Info("index appended", "path", s.path, "chunks", len(entries))
	return nil
}

// insertEntries writes entries with consecutive positions starting at base,
// plus the model/dimension metadata, in one transaction.
func insertEntries(ctx context.Context, db *sql.DB, entries []Entry, base int, model string, dim int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning index transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks
		(id, position, content, source_path, page, start_offset, end_offset, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.ID, base+i, e.Content, e.SourcePath,
			e.Page, e.StartOffset, e.EndOffset, encodeEmbedding(e.Embedding)); err != nil {
			return fmt.Errorf("inserting chunk %q: %w", e.ID, err)
		}
	}

	for key, value := range map[string]string{
		metaKeyModel:     model,
		metaKeyDimension: strconv.Itoa(dim),
	} {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO index_meta (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value); err != nil {
			return fmt.Errorf("writing index metadata: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing index transaction: %w", err)
	}
	return nil
}

// Query returns the top-k entries by cosine similarity to vec, scores
// descending, ties broken by insertion position (earlier-ingested chunk
// wins). An empty store yields an empty result, not an error.
func (s *Store) Query(ctx context.Context, vec []float32, k int) ([]Result, error) {
	if k <= 0 {
		return nil, nil
	}

	dim, err := s.Dimension(ctx)
	if err != nil {
		return nil, err
	}
	if dim == 0 {
		return nil, nil
	}
	if len(vec) != dim {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(vec), dim)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, position, content, source_path,
		page, start_offset, end_offset, embedding FROM chunks ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("scanning index: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []Result
	for rows.Next() {
		var e Entry
		var blob []byte
		if err := rows.Scan(&e.ID, &e.Position, &e.Content, &e.SourcePath,
			&e.Page, &e.StartOffset, &e.EndOffset, &blob); err != nil {
			return nil, fmt.Errorf("reading chunk row: %w", err)
		}
		e.Embedding, err = decodeEmbedding(blob)
		if err != nil {
			return nil, fmt.Errorf("chunk %q: %w", e.ID, err)
		}
		if len(e.Embedding) != dim {
			return nil, fmt.Errorf("%w: chunk %q has %d, index has %d",
				ErrDimensionMismatch, e.ID, len(e.Embedding), dim)
		}
		results = append(results, Result{Entry: e, Score: cosineSimilarity(vec, e.Embedding)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scanning index: %w", err)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Entry.Position < results[j].Entry.Position
	})

	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

// meta reads one metadata value, returning "" when absent.
func (s *Store) meta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM index_meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading index metadata %q: %w", key, err)
	}
	return value, nil
}
