// Package kb implements the knowledge base behind the kb worker: a SQLite
// document store with semantic retrieval. When the sqlite-vec extension is
// compiled in (sqlite_vec build tag), nearest-neighbour search runs inside
// SQLite; otherwise ranking falls back to Go-side cosine similarity over
// stored embeddings, and to keyword matching when no embedder is
// configured.
package kb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Document is one retrievable unit.
type Document struct {
	ID         int64
	Content    string
	Source     string
	Similarity float64
}

// Store is the SQLite-backed document store.
type Store struct {
	mu       sync.RWMutex
	db       *sql.DB
	embedder Embedder
	vectorExt bool
	log      *zap.Logger
}

const storeSchema = `
CREATE TABLE IF NOT EXISTS documents (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    content    TEXT NOT NULL,
    source     TEXT NOT NULL DEFAULT '',
    embedding  TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// OpenStore opens or creates the knowledge base at path. The embedder may
// be nil, in which case retrieval degrades to keyword search.
func OpenStore(path string, embedder Embedder, log *zap.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create kb directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open kb database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set journal_mode: %w", err)
	}
	if _, err := db.Exec(storeSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize kb schema: %w", err)
	}

	s := &Store{db: db, embedder: embedder, log: log}
	s.detectVecExtension()
	return s, nil
}

// detectVecExtension probes for sqlite-vec by creating a vec0 table.
func (s *Store) detectVecExtension() {
	if _, err := s.db.Exec("CREATE VIRTUAL TABLE IF NOT EXISTS vec_probe USING vec0(embedding float[4])"); err == nil {
		s.vectorExt = true
		s.db.Exec("DROP TABLE IF EXISTS vec_probe")
		s.log.Debug("sqlite-vec extension available")
		return
	}
	s.log.Debug("sqlite-vec extension not available, using in-process ranking")
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add stores one document chunk with its source. The embedding is computed
// eagerly when an embedder is configured.
func (s *Store) Add(ctx context.Context, content, source string) error {
	var embeddingJSON sql.NullString
	if s.embedder != nil {
		vec, err := s.embedder.Embed(ctx, content)
		if err != nil {
			return fmt.Errorf("embed document: %w", err)
		}
		data, err := json.Marshal(vec)
		if err != nil {
			return fmt.Errorf("serialize embedding: %w", err)
		}
		embeddingJSON = sql.NullString{String: string(data), Valid: true}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		"INSERT INTO documents (content, source, embedding) VALUES (?, ?, ?)",
		content, source, embeddingJSON)
	if err != nil {
		return fmt.Errorf("store document: %w", err)
	}
	return nil
}

// Count returns the number of stored documents.
func (s *Store) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM documents").Scan(&n)
	return n, err
}

// Search returns the topK most relevant documents for the query.
func (s *Store) Search(ctx context.Context, query string, topK int) ([]Document, error) {
	if topK <= 0 {
		topK = 5
	}

	if s.embedder == nil {
		return s.keywordSearch(query, topK)
	}

	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		s.log.Warn("query embedding failed, falling back to keyword search", zap.Error(err))
		return s.keywordSearch(query, topK)
	}
	if s.vectorExt {
		return s.vecSearch(queryVec, topK)
	}
	return s.cosineSearch(queryVec, topK)
}

// vecSearch ranks documents inside SQLite via sqlite-vec. Embeddings are
// stored as JSON arrays, which vec_distance_cosine accepts directly.
func (s *Store) vecSearch(queryVec []float32, topK int) ([]Document, error) {
	queryJSON, err := json.Marshal(queryVec)
	if err != nil {
		return nil, fmt.Errorf("serialize query embedding: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, content, source, vec_distance_cosine(embedding, ?) AS distance
		FROM documents
		WHERE embedding IS NOT NULL
		ORDER BY distance ASC
		LIMIT ?`, string(queryJSON), topK)
	if err != nil {
		return nil, fmt.Errorf("kb vector search: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		var distance float64
		if err := rows.Scan(&doc.ID, &doc.Content, &doc.Source, &distance); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		// Cosine distance is 1 - similarity.
		doc.Similarity = 1.0 - distance
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// cosineSearch ranks all embedded documents by cosine similarity. Corpora
// here are per-run knowledge bases, small enough for a full scan.
func (s *Store) cosineSearch(queryVec []float32, topK int) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		"SELECT id, content, source, embedding FROM documents WHERE embedding IS NOT NULL")
	if err != nil {
		return nil, fmt.Errorf("kb search: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		var embeddingJSON string
		if err := rows.Scan(&doc.ID, &doc.Content, &doc.Source, &embeddingJSON); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		var vec []float32
		if err := json.Unmarshal([]byte(embeddingJSON), &vec); err != nil {
			s.log.Warn("skipping document with bad embedding", zap.Int64("id", doc.ID))
			continue
		}
		doc.Similarity = cosineSimilarity(queryVec, vec)
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Similarity > docs[j].Similarity })
	if len(docs) > topK {
		docs = docs[:topK]
	}
	return docs, nil
}

// keywordSearch is the degraded path: LIKE matching on query keywords.
func (s *Store) keywordSearch(query string, topK int) ([]Document, error) {
	keywords := strings.Fields(strings.ToLower(query))
	if len(keywords) == 0 {
		return nil, nil
	}

	var conditions []string
	var args []any
	for _, kw := range keywords {
		conditions = append(conditions, "LOWER(content) LIKE ?")
		args = append(args, "%"+kw+"%")
	}
	args = append(args, topK)

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(fmt.Sprintf(
		"SELECT id, content, source FROM documents WHERE %s ORDER BY created_at DESC LIMIT ?",
		strings.Join(conditions, " OR ")), args...)
	if err != nil {
		return nil, fmt.Errorf("kb keyword search: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.ID, &doc.Content, &doc.Source); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
