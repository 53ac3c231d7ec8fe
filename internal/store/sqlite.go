package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/pagesmith/internal/artifact"
)

// SQLiteStore implements Store using SQLite, so artifacts survive restarts.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore creates a new SQLite-backed artifact store.
// Use ":memory:" for an in-memory database, or a file path for persistent storage.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS artifacts (
		key TEXT PRIMARY KEY,
		content BLOB NOT NULL,
		content_type TEXT NOT NULL,
		revision TEXT NOT NULL,
		generated_at INTEGER NOT NULL,
		horizon_ms INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_generated_at ON artifacts(generated_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Get retrieves the artifact for a key.
func (s *SQLiteStore) Get(ctx context.Context, key artifact.Key) (*artifact.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT content, content_type, revision, generated_at, horizon_ms FROM artifacts WHERE key = ?",
		string(key),
	)

	var (
		art         = artifact.Artifact{Key: key}
		generatedNS int64
		horizonMS   int64
	)
	err := row.Scan(&art.Content, &art.ContentType, &art.Revision, &generatedNS, &horizonMS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan artifact: %w", err)
	}

	art.GeneratedAt = time.Unix(0, generatedNS)
	art.Horizon = time.Duration(horizonMS) * time.Millisecond
	return &art, nil
}

// Put upserts the artifact, replacing any previous row for the key.
func (s *SQLiteStore) Put(ctx context.Context, art *artifact.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO artifacts (key, content, content_type, revision, generated_at, horizon_ms)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			content = excluded.content,
			content_type = excluded.content_type,
			revision = excluded.revision,
			generated_at = excluded.generated_at,
			horizon_ms = excluded.horizon_ms`,
		string(art.Key), art.Content, art.ContentType, art.Revision,
		art.GeneratedAt.UnixNano(), art.Horizon.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("upsert artifact: %w", err)
	}
	return nil
}

// Keys lists every key with a stored artifact.
func (s *SQLiteStore) Keys(ctx context.Context) ([]artifact.Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT key FROM artifacts ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("query keys: %w", err)
	}
	defer rows.Close()

	var keys []artifact.Key
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, artifact.Key(k))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return keys, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
