package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS saved_prompts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	prompt TEXT NOT NULL,
	evaluation_criteria TEXT NOT NULL DEFAULT '',
	model TEXT NOT NULL,
	saved_at TEXT NOT NULL
);
`

const cacheSize = 256

// SQLiteStore keeps the library in a SQLite file. Entries read by Get are
// cached until they are saved again or deleted.
type SQLiteStore struct {
	db    *sql.DB
	cache *lru.Cache[int, SavedPromptVariation]
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer avoids SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	cache, err := lru.New[int, SavedPromptVariation](cacheSize)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db, cache: cache}, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]SavedPromptVariation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, prompt, evaluation_criteria, model, saved_at FROM saved_prompts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query saved prompts: %w", err)
	}
	defer rows.Close()

	var out []SavedPromptVariation
	for rows.Next() {
		v, err := scanSaved(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Get(ctx context.Context, id int) (SavedPromptVariation, error) {
	if v, ok := s.cache.Get(id); ok {
		return v, nil
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, prompt, evaluation_criteria, model, saved_at FROM saved_prompts WHERE id = ?`, id)
	v, err := scanSaved(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SavedPromptVariation{}, ErrNotFound
	}
	if err != nil {
		return v, err
	}
	s.cache.Add(id, v)
	return v, nil
}

func (s *SQLiteStore) Save(ctx context.Context, v SavedPromptVariation) (SavedPromptVariation, error) {
	v, err := prepare(v, time.Now())
	if err != nil {
		return v, err
	}
	savedAt := v.SavedAt.Format(time.RFC3339Nano)

	if v.ID == 0 {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO saved_prompts (prompt, evaluation_criteria, model, saved_at) VALUES (?, ?, ?, ?)`,
			v.Prompt, v.EvaluationCriteria, v.Model, savedAt)
		if err != nil {
			return v, fmt.Errorf("insert saved prompt: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return v, fmt.Errorf("read inserted id: %w", err)
		}
		v.ID = int(id)
		return v, nil
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO saved_prompts (id, prompt, evaluation_criteria, model, saved_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET prompt = excluded.prompt, evaluation_criteria = excluded.evaluation_criteria,
		 model = excluded.model, saved_at = excluded.saved_at`,
		v.ID, v.Prompt, v.EvaluationCriteria, v.Model, savedAt)
	if err != nil {
		return v, fmt.Errorf("upsert saved prompt: %w", err)
	}
	s.cache.Remove(v.ID)
	return v, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id int) error {
	s.cache.Remove(id)
	res, err := s.db.ExecContext(ctx, `DELETE FROM saved_prompts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete saved prompt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete saved prompt: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSaved(sc scanner) (SavedPromptVariation, error) {
	var (
		v       SavedPromptVariation
		savedAt string
	)
	if err := sc.Scan(&v.ID, &v.Prompt, &v.EvaluationCriteria, &v.Model, &savedAt); err != nil {
		return v, err
	}
	t, err := time.Parse(time.RFC3339Nano, savedAt)
	if err != nil {
		return v, fmt.Errorf("parse saved_at %q: %w", savedAt, err)
	}
	v.SavedAt = t
	return v, nil
}
