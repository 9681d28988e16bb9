package rag

import (
	"cmp"
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// SQLiteStore is a VectorStore backed by a local SQLite database file. Every
// store is bound to one named collection; several collections may share a
// file. Search is a brute-force cosine scan, which is adequate for the few
// hundred documents a local knowledge folder holds.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB

	// collection is the name of the collection this store reads and writes.
	collection string
}

// DefaultDBPath returns the default path for the vector database.
// It resolves to ~/.docchat/vectors.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("rag: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".docchat")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("rag: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "vectors.db"), nil
}

// OpenSQLite opens (or creates) the database at path, runs the schema
// migration and makes sure the named collection exists. Use ":memory:" for
// an in-memory database in tests.
func OpenSQLite(ctx context.Context, path, collection string) (*SQLiteStore, error) {
	if collection == "" {
		return nil, fmt.Errorf("rag: sqlite: collection name must not be empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("rag: sqlite: create directory for %s: %w", path, err)
		}
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("rag: sqlite: open %s: %w", path, err)
	}
	// A single connection serialises writers and keeps ":memory:" databases alive.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, collection: collection}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.ensureCollection(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS collections (
    name        TEXT    PRIMARY KEY,
    dimensions  INTEGER NOT NULL DEFAULT 0,  -- 0 until the first upsert
    created_at  INTEGER NOT NULL              -- Unix timestamp (seconds)
);
CREATE TABLE IF NOT EXISTS documents (
    collection  TEXT    NOT NULL REFERENCES collections(name),
    id          TEXT    NOT NULL,
    content     TEXT    NOT NULL,
    source      TEXT    NOT NULL,
    metadata    TEXT    NOT NULL,  -- JSON object of string values
    embedding   BLOB    NOT NULL,  -- little-endian float32
    updated_at  INTEGER NOT NULL,
    PRIMARY KEY (collection, id)
);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("rag: sqlite: migrate: %w", err)
	}
	return nil
}

// ensureCollection registers the collection if it is not known yet.
func (s *SQLiteStore) ensureCollection(ctx context.Context) error {
	const q = `INSERT OR IGNORE INTO collections (name, dimensions, created_at) VALUES (?, 0, ?)`
	if _, err := s.db.ExecContext(ctx, q, s.collection, time.Now().Unix()); err != nil {
		return fmt.Errorf("rag: sqlite: create collection %q: %w", s.collection, err)
	}
	return nil
}

// dimensions returns the vector size fixed for the collection, or 0 when no
// document has been stored yet.
func dimensions(ctx context.Context, q interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}, collection string) (int, error) {
	var dims int
	err := q.QueryRowContext(ctx, `SELECT dimensions FROM collections WHERE name = ?`, collection).Scan(&dims)
	if err != nil {
		return 0, fmt.Errorf("rag: sqlite: read dimensions of %q: %w", collection, err)
	}
	return dims, nil
}

// Upsert stores or replaces a batch of documents in a single transaction.
// The first upsert into an empty collection fixes its vector size; later
// embeddings of a different size are rejected with ErrDimensionMismatch.
func (s *SQLiteStore) Upsert(ctx context.Context, docs []Document, embeddings [][]float32) error {
	if len(docs) != len(embeddings) {
		return fmt.Errorf("rag: sqlite: upsert: %d documents but %d embeddings", len(docs), len(embeddings))
	}
	if len(docs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("rag: sqlite: begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	dims, err := dimensions(ctx, tx, s.collection)
	if err != nil {
		return err
	}
	if dims == 0 {
		dims = len(embeddings[0])
		if _, err := tx.ExecContext(ctx, `UPDATE collections SET dimensions = ? WHERE name = ?`, dims, s.collection); err != nil {
			return fmt.Errorf("rag: sqlite: set dimensions: %w", err)
		}
	}

	const q = `
INSERT INTO documents (collection, id, content, source, metadata, embedding, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (collection, id) DO UPDATE SET
    content    = excluded.content,
    source     = excluded.source,
    metadata   = excluded.metadata,
    embedding  = excluded.embedding,
    updated_at = excluded.updated_at`

	now := time.Now().Unix()
	for i, doc := range docs {
		if doc.ID == "" {
			return fmt.Errorf("rag: sqlite: upsert: document %d has an empty ID", i)
		}
		vec := embeddings[i]
		if len(vec) == 0 || len(vec) != dims {
			return fmt.Errorf("%w: document %q has %d dimensions, collection %q expects %d",
				ErrDimensionMismatch, doc.ID, len(vec), s.collection, dims)
		}
		meta, err := encodeMetadata(doc.Metadata)
		if err != nil {
			return fmt.Errorf("rag: sqlite: upsert %q: %w", doc.ID, err)
		}
		if _, err := tx.ExecContext(ctx, q, s.collection, doc.ID, doc.Content, doc.Source, meta, encodeVector(vec), now); err != nil {
			return fmt.Errorf("rag: sqlite: upsert %q: %w", doc.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("rag: sqlite: commit upsert: %w", err)
	}
	return nil
}

// Search scores every document of the collection against queryEmbedding and
// returns the topK best by cosine similarity. Ties keep ID order so results
// are deterministic.
func (s *SQLiteStore) Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Document, error) {
	if topK <= 0 {
		return nil, nil
	}

	dims, err := dimensions(ctx, s.db, s.collection)
	if err != nil {
		return nil, err
	}
	if dims == 0 {
		return nil, nil
	}
	if len(queryEmbedding) != dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, collection %q expects %d",
			ErrDimensionMismatch, len(queryEmbedding), s.collection, dims)
	}

	const q = `SELECT id, content, source, metadata, embedding FROM documents WHERE collection = ? ORDER BY id`
	rows, err := s.db.QueryContext(ctx, q, s.collection)
	if err != nil {
		return nil, fmt.Errorf("rag: sqlite: search: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var (
			doc  Document
			meta string
			blob []byte
		)
		if err := rows.Scan(&doc.ID, &doc.Content, &doc.Source, &meta, &blob); err != nil {
			return nil, fmt.Errorf("rag: sqlite: search scan: %w", err)
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("rag: sqlite: search %q: %w", doc.ID, err)
		}
		if len(vec) != dims {
			return nil, fmt.Errorf("%w: stored document %q has %d dimensions, collection %q expects %d",
				ErrDimensionMismatch, doc.ID, len(vec), s.collection, dims)
		}
		if doc.Metadata, err = decodeMetadata(meta); err != nil {
			return nil, fmt.Errorf("rag: sqlite: search %q: %w", doc.ID, err)
		}
		doc.Score = cosine(queryEmbedding, vec)
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rag: sqlite: search rows: %w", err)
	}

	slices.SortStableFunc(docs, func(a, b Document) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if len(docs) > topK {
		docs = docs[:topK]
	}
	return docs, nil
}

// Get returns the stored document with the given ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (Document, error) {
	const q = `SELECT id, content, source, metadata FROM documents WHERE collection = ? AND id = ?`

	var (
		doc  Document
		meta string
	)
	err := s.db.QueryRowContext(ctx, q, s.collection, id).Scan(&doc.ID, &doc.Content, &doc.Source, &meta)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, fmt.Errorf("%w: %q in collection %q", ErrNotFound, id, s.collection)
	}
	if err != nil {
		return Document{}, fmt.Errorf("rag: sqlite: get %q: %w", id, err)
	}
	if doc.Metadata, err = decodeMetadata(meta); err != nil {
		return Document{}, fmt.Errorf("rag: sqlite: get %q: %w", id, err)
	}
	return doc, nil
}

// Count returns the number of documents in the collection.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE collection = ?`, s.collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("rag: sqlite: count: %w", err)
	}
	return n, nil
}

// Delete removes documents from the collection by their IDs.
func (s *SQLiteStore) Delete(ctx context.Context, ids []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("rag: sqlite: begin delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, s.collection, id); err != nil {
			return fmt.Errorf("rag: sqlite: delete %q: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("rag: sqlite: commit delete: %w", err)
	}
	return nil
}

// Name returns the dependency label used in readiness responses.
func (s *SQLiteStore) Name() string { return "sqlite" }

// Ping verifies the database file is still reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("rag: sqlite: ping: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("rag: sqlite: close: %w", err)
	}
	return nil
}

// encodeVector serialises vec as little-endian float32 values.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

// decodeVector is the inverse of encodeVector.
func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("embedding blob has %d bytes, not a multiple of 4", len(buf))
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec, nil
}

func encodeMetadata(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	return string(b), nil
}

func decodeMetadata(s string) (map[string]string, error) {
	m := make(map[string]string)
	if s == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return m, nil
}

// cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector. a and b must have the same length.
func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
