// Package problems holds the practice problem catalogue served by the
// development backend.
package problems

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when no problem matches a query.
var ErrNotFound = errors.New("no matching questions found")

// Problem is a catalogue entry.
type Problem struct {
	ID          int64
	Title       string
	Description string
	Difficulty  string
	Topic       string
}

// Store provides SQLite-backed access to the catalogue.
type Store struct {
	db *sql.DB
}

// New creates the problems table in db if it does not exist.
func New(db *sql.DB) (*Store, error) {
	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &Store{db: db}, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS problems (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL,
		difficulty TEXT NOT NULL,
		topic TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_problems_topic ON problems(topic);
	`
	_, err := db.Exec(schema)
	return err
}

// Seed inserts problems, skipping titles already present, and returns the
// number inserted.
func (s *Store) Seed(ctx context.Context, problems []Problem) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin seed: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO problems (title, description, difficulty, topic)
		 VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare seed: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, p := range problems {
		res, err := stmt.ExecContext(ctx, p.Title, p.Description, p.Difficulty, p.Topic)
		if err != nil {
			return 0, fmt.Errorf("insert problem %q: %w", p.Title, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit seed: %w", err)
	}
	return inserted, nil
}

// Count returns the number of stored problems.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM problems`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count problems: %w", err)
	}
	return n, nil
}

// Topics returns the distinct topics in the catalogue.
func (s *Store) Topics(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT topic FROM problems ORDER BY topic`)
	if err != nil {
		return nil, fmt.Errorf("query topics: %w", err)
	}
	defer rows.Close()

	var topics []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

// Pick resolves query to a catalogue topic and returns a random problem of
// that topic whose difficulty matches case-insensitively.
func (s *Store) Pick(ctx context.Context, query, difficulty string) (*Problem, error) {
	topics, err := s.Topics(ctx)
	if err != nil {
		return nil, err
	}
	topic, ok := MatchTopic(query, topics)
	if !ok {
		return nil, ErrNotFound
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, description, difficulty, topic
		 FROM problems
		 WHERE topic = ? AND LOWER(difficulty) = LOWER(?)
		 ORDER BY RANDOM() LIMIT 1`,
		topic, difficulty,
	)
	var p Problem
	err = row.Scan(&p.ID, &p.Title, &p.Description, &p.Difficulty, &p.Topic)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan problem: %w", err)
	}
	return &p, nil
}

// List returns problems whose topic contains topic (case-insensitive), or
// every problem when topic is empty.
func (s *Store) List(ctx context.Context, topic string) ([]Problem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, description, difficulty, topic
		 FROM problems
		 WHERE ? = '' OR topic LIKE '%' || ? || '%'
		 ORDER BY id`,
		topic, topic,
	)
	if err != nil {
		return nil, fmt.Errorf("query problems: %w", err)
	}
	defer rows.Close()

	var out []Problem
	for rows.Next() {
		var p Problem
		if err := rows.Scan(&p.ID, &p.Title, &p.Description, &p.Difficulty, &p.Topic); err != nil {
			return nil, fmt.Errorf("scan problem: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
