// Package experiment is the relational system of record for experiments.
// The search index is a derived view; this store holds the truth used for
// result hydration, reindexing, and consistency checks.
package experiment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/exphub/searchcore/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS experiments (
	id                INTEGER PRIMARY KEY,
	title             TEXT NOT NULL,
	prompt_text       TEXT NOT NULL DEFAULT '',
	description       TEXT NOT NULL DEFAULT '',
	ai_model          TEXT NOT NULL DEFAULT '',
	tags              TEXT NOT NULL DEFAULT '[]',
	reproduction_rate INTEGER NOT NULL DEFAULT 0,
	created_at        INTEGER NOT NULL
);
`

// Repo persists experiments in SQLite.
type Repo struct {
	db *sql.DB
}

// Open opens (and migrates) the experiment database at path.
// Use ":memory:" for an ephemeral store in tests.
func Open(path string) (*Repo, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite benefits from a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Repo{db: db}, nil
}

// Close releases the underlying database handle.
func (r *Repo) Close() error {
	return r.db.Close()
}

// Ping verifies the database is reachable.
func (r *Repo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Upsert inserts or fully replaces an experiment row.
func (r *Repo) Upsert(ctx context.Context, exp *domain.Experiment) error {
	tags, err := json.Marshal(exp.Tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO experiments (id, title, prompt_text, description, ai_model, tags, reproduction_rate, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			prompt_text = excluded.prompt_text,
			description = excluded.description,
			ai_model = excluded.ai_model,
			tags = excluded.tags,
			reproduction_rate = excluded.reproduction_rate,
			created_at = excluded.created_at`,
		exp.ID, exp.Title, exp.PromptText, exp.Description, exp.AIModel,
		string(tags), exp.ReproductionRate, exp.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert experiment %d: %w", exp.ID, err)
	}
	return nil
}

const selectColumns = `id, title, prompt_text, description, ai_model, tags, reproduction_rate, created_at`

// Get fetches one experiment by id.
func (r *Repo) Get(ctx context.Context, id int64) (*domain.Experiment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM experiments WHERE id = ?`, id)

	exp, err := scanExperiment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrExperimentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get experiment %d: %w", id, err)
	}
	return exp, nil
}

// GetMany fetches experiments by id, preserving the order of ids.
// Missing ids are silently skipped.
func (r *Repo) GetMany(ctx context.Context, ids []int64) ([]*domain.Experiment, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM experiments WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("get experiments: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]*domain.Experiment, len(ids))
	for rows.Next() {
		exp, err := scanExperiment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan experiment: %w", err)
		}
		byID[exp.ID] = exp
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate experiments: %w", err)
	}

	out := make([]*domain.Experiment, 0, len(ids))
	for _, id := range ids {
		if exp, ok := byID[id]; ok {
			out = append(out, exp)
		}
	}
	return out, nil
}

// Delete removes an experiment. Deleting an absent id is not an error.
func (r *Repo) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM experiments WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete experiment %d: %w", id, err)
	}
	return nil
}

// ListAfter returns up to limit experiments with id > afterID, ascending.
// This is the cursor used by bulk reindexing.
func (r *Repo) ListAfter(ctx context.Context, afterID int64, limit int) ([]*domain.Experiment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM experiments WHERE id > ? ORDER BY id ASC LIMIT ?`,
		afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list experiments after %d: %w", afterID, err)
	}
	defer rows.Close()

	return collectExperiments(rows)
}

// Count returns the total number of experiments.
func (r *Repo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM experiments`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count experiments: %w", err)
	}
	return n, nil
}

// Sample returns up to n random experiments, used for consistency spot checks.
func (r *Repo) Sample(ctx context.Context, n int) ([]*domain.Experiment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM experiments ORDER BY RANDOM() LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("sample experiments: %w", err)
	}
	defer rows.Close()

	return collectExperiments(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExperiment(s scanner) (*domain.Experiment, error) {
	var (
		exp     domain.Experiment
		tags    string
		created int64
	)
	if err := s.Scan(&exp.ID, &exp.Title, &exp.PromptText, &exp.Description,
		&exp.AIModel, &tags, &exp.ReproductionRate, &created); err != nil {
		return nil, err
	}
	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &exp.Tags); err != nil {
			return nil, fmt.Errorf("decode tags for experiment %d: %w", exp.ID, err)
		}
	}
	exp.CreatedAt = time.Unix(created, 0).UTC()
	return &exp, nil
}

func collectExperiments(rows *sql.Rows) ([]*domain.Experiment, error) {
	var out []*domain.Experiment
	for rows.Next() {
		exp, err := scanExperiment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan experiment: %w", err)
		}
		out = append(out, exp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate experiments: %w", err)
	}
	return out, nil
}
