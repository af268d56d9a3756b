// Package postgres persists transcription runs, per-file outcomes and the
// sentence units of every transcript in PostgreSQL.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Run describes one invocation of the batch tool.
type Run struct {
	ID        uuid.UUID
	Directory string
	Task      string
	Language  string
	StartedAt time.Time
}

// File is the outcome of one input file within a run.
type File struct {
	ID           uuid.UUID
	RunID        uuid.UUID
	Path         string
	Language     string
	Status       string
	Spans        int
	SkippedSpans int
	Error        string
}

// Sentence is one timed sentence of a transcript, in seconds from the start
// of the file.
type Sentence struct {
	Text  string
	Start float64
	End   float64
}

// Store writes runs and transcripts through a connection pool. It is safe
// for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to the database at dsn, verifies the connection and
// runs [Migrate].
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases all pooled connections.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// BeginRun records the start of a run.
func (s *Store) BeginRun(ctx context.Context, run Run) error {
	const query = `
		INSERT INTO transcript_runs (id, directory, task, language, started_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := s.pool.Exec(ctx, query, run.ID, run.Directory, run.Task, run.Language, run.StartedAt); err != nil {
		return fmt.Errorf("postgres store: begin run: %w", err)
	}
	return nil
}

// FinishRun stamps the end time of a run.
func (s *Store) FinishRun(ctx context.Context, runID uuid.UUID, finishedAt time.Time) error {
	const query = `UPDATE transcript_runs SET finished_at = $2 WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, runID, finishedAt)
	if err != nil {
		return fmt.Errorf("postgres store: finish run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres store: finish run: run %s not found", runID)
	}
	return nil
}

// SaveFile stores a file outcome and its sentences in one transaction. A
// zero f.ID is replaced by a fresh UUID, which is returned.
func (s *Store) SaveFile(ctx context.Context, f File, sentences []Sentence) (uuid.UUID, error) {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("postgres store: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after Commit

	const query = `
		INSERT INTO transcript_files (id, run_id, path, language, status, spans, skipped_spans, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := tx.Exec(ctx, query,
		f.ID, f.RunID, f.Path, f.Language, f.Status, f.Spans, f.SkippedSpans, f.Error,
	); err != nil {
		return uuid.Nil, fmt.Errorf("postgres store: insert file: %w", err)
	}

	if len(sentences) > 0 {
		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"transcript_sentences"},
			[]string{"file_id", "seq", "text", "start_sec", "end_sec"},
			pgx.CopyFromRows(sentenceRows(f.ID, sentences)),
		)
		if err != nil {
			return uuid.Nil, fmt.Errorf("postgres store: copy sentences: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("postgres store: commit: %w", err)
	}
	return f.ID, nil
}

// Sentences returns the stored sentences of a file in transcript order.
func (s *Store) Sentences(ctx context.Context, fileID uuid.UUID) ([]Sentence, error) {
	const query = `
		SELECT text, start_sec, end_sec
		FROM transcript_sentences
		WHERE file_id = $1
		ORDER BY seq`
	rows, err := s.pool.Query(ctx, query, fileID)
	if err != nil {
		return nil, fmt.Errorf("postgres store: query sentences: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Sentence, error) {
		var st Sentence
		err := row.Scan(&st.Text, &st.Start, &st.End)
		return st, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan sentences: %w", err)
	}
	return out, nil
}

// sentenceRows numbers sentences from 1 for COPY.
func sentenceRows(fileID uuid.UUID, sentences []Sentence) [][]any {
	rows := make([][]any, len(sentences))
	for i, st := range sentences {
		rows[i] = []any{fileID, i + 1, st.Text, st.Start, st.End}
	}
	return rows
}
