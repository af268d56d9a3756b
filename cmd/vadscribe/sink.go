package main

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/vadscribe/internal/batch"
	"github.com/MrWong99/vadscribe/internal/export"
	"github.com/MrWong99/vadscribe/internal/pipeline"
	"github.com/MrWong99/vadscribe/pkg/provider/stt"
	"github.com/MrWong99/vadscribe/pkg/store/postgres"
)

// transcriptStore is the subset of *postgres.Store used by storeSink.
type transcriptStore interface {
	BeginRun(ctx context.Context, run postgres.Run) error
	SaveFile(ctx context.Context, f postgres.File, sentences []postgres.Sentence) (uuid.UUID, error)
	FinishRun(ctx context.Context, runID uuid.UUID, finishedAt time.Time) error
}

// storeSink adapts a transcript store to batch.Sink.
type storeSink struct {
	store    transcriptStore
	language string
}

var _ batch.Sink = (*storeSink)(nil)

func newStoreSink(store transcriptStore, task stt.Task, language string) *storeSink {
	return &storeSink{store: store, language: export.TargetLanguage(task, language)}
}

func (s *storeSink) BeginRun(ctx context.Context, run batch.RunInfo) error {
	return s.store.BeginRun(ctx, postgres.Run{
		ID:        run.ID,
		Directory: run.Directory,
		Task:      string(run.Task),
		Language:  run.Language,
		StartedAt: run.StartedAt,
	})
}

func (s *storeSink) SaveFile(ctx context.Context, runID uuid.UUID, f batch.FileReport, units []pipeline.SentenceUnit) error {
	row := postgres.File{
		RunID:        runID,
		Path:         f.Path,
		Language:     s.language,
		Status:       string(f.Status),
		Spans:        f.Spans,
		SkippedSpans: len(f.Skips),
	}
	if f.Err != nil {
		row.Error = f.Err.Error()
	}
	sentences := make([]postgres.Sentence, len(units))
	for i, u := range units {
		sentences[i] = postgres.Sentence{Text: u.Text, Start: u.Start, End: u.End}
	}
	_, err := s.store.SaveFile(ctx, row, sentences)
	return err
}

func (s *storeSink) FinishRun(ctx context.Context, runID uuid.UUID, finishedAt time.Time) error {
	return s.store.FinishRun(ctx, runID, finishedAt)
}
