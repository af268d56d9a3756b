package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the transcript tables. Execute it via [Migrate]
// or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS transcript_runs (
    id          UUID PRIMARY KEY,
    directory   TEXT NOT NULL,
    task        TEXT NOT NULL,
    language    TEXT NOT NULL DEFAULT '',
    started_at  TIMESTAMPTZ NOT NULL,
    finished_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS transcript_files (
    id            UUID PRIMARY KEY,
    run_id        UUID NOT NULL REFERENCES transcript_runs(id) ON DELETE CASCADE,
    path          TEXT NOT NULL,
    language      TEXT NOT NULL DEFAULT '',
    status        TEXT NOT NULL,
    spans         INTEGER NOT NULL DEFAULT 0,
    skipped_spans INTEGER NOT NULL DEFAULT 0,
    error         TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_transcript_files_run ON transcript_files(run_id);
CREATE INDEX IF NOT EXISTS idx_transcript_files_path ON transcript_files(path);

CREATE TABLE IF NOT EXISTS transcript_sentences (
    file_id   UUID NOT NULL REFERENCES transcript_files(id) ON DELETE CASCADE,
    seq       INTEGER NOT NULL,
    text      TEXT NOT NULL,
    start_sec DOUBLE PRECISION NOT NULL,
    end_sec   DOUBLE PRECISION NOT NULL,
    PRIMARY KEY (file_id, seq)
);
`

// Execer is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Migrate executes the [Schema] DDL, creating the tables and indexes if
// they do not already exist.
func Migrate(ctx context.Context, db Execer) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}
