// Package batch walks an input directory and turns every supported media
// file into transcript outputs.
//
// Files are processed one at a time in lexical path order. Each file goes
// through speech detection, the [pipeline.Assembler] and the exporters, and
// ends up with a [FileReport]. Only a missing detector credential or a
// cancelled context stops the run early; every other failure is confined to
// the file it happened in.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/vadscribe/internal/export"
	"github.com/MrWong99/vadscribe/internal/observe"
	"github.com/MrWong99/vadscribe/internal/pipeline"
	"github.com/MrWong99/vadscribe/pkg/audio"
	"github.com/MrWong99/vadscribe/pkg/provider/stt"
	"github.com/MrWong99/vadscribe/pkg/provider/vad"
)

// ErrNoExtractor is returned for container files when the orchestrator has
// no [Extractor].
var ErrNoExtractor = errors.New("batch: no audio extractor configured")

// Status is the outcome of one input file.
type Status string

const (
	// StatusSucceeded means every speech span was transcribed or rejected as
	// quiet and all outputs were written.
	StatusSucceeded Status = "succeeded"

	// StatusPartial means outputs were written but at least one span was
	// dropped because recognition failed.
	StatusPartial Status = "partial"

	// StatusFailed means no outputs were written. Outputs written before
	// the failure are removed again.
	StatusFailed Status = "failed"

	// StatusSkipped marks files with an unsupported extension.
	StatusSkipped Status = "skipped"
)

// sourceKind says how a file's audio is obtained.
type sourceKind int

const (
	sourceUnsupported sourceKind = iota
	sourceAudio                  // decoded directly
	sourceContainer              // extracted with ffmpeg first
)

func classify(path string) sourceKind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".mp3":
		return sourceAudio
	case ".mp4":
		return sourceContainer
	default:
		return sourceUnsupported
	}
}

// Extractor pulls the audio track of a container into a temporary WAV file.
// cleanup removes that file and is called on every exit path.
type Extractor interface {
	Extract(ctx context.Context, input string) (path string, cleanup func(), err error)
}

// RunInfo describes a batch run to a [Sink].
type RunInfo struct {
	ID        uuid.UUID
	Directory string
	Task      stt.Task
	Language  string
	StartedAt time.Time
}

// Sink receives finished files in addition to the file exporters, e.g. to
// persist them in a database. Sink errors are logged and never change a
// file's status.
type Sink interface {
	BeginRun(ctx context.Context, run RunInfo) error
	SaveFile(ctx context.Context, runID uuid.UUID, file FileReport, units []pipeline.SentenceUnit) error
	FinishRun(ctx context.Context, runID uuid.UUID, finishedAt time.Time) error
}

// Observer follows a run file by file. *health.Progress implements it.
type Observer interface {
	Begin(total int)
	FileStarted(path string)
	FileFinished(failed bool)
	End()
}

// FileReport is the result of one input file.
type FileReport struct {
	Path   string
	Status Status

	// Spans is the number of speech spans the detector reported.
	Spans int

	// Sentences is the number of units in the transcript.
	Sentences int

	// Skips lists the dropped spans, quiet ones included.
	Skips []pipeline.Skip

	// Outputs are the files written for this input.
	Outputs []string

	Duration time.Duration
	Err      error
}

// Failed reports the number of spans lost to recognition failures.
func (f FileReport) Failed() int {
	n := 0
	for _, s := range f.Skips {
		if s.Reason != pipeline.SkipQuiet {
			n++
		}
	}
	return n
}

// Report summarises a batch run.
type Report struct {
	RunID      uuid.UUID
	StartedAt  time.Time
	FinishedAt time.Time
	Files      []FileReport
}

// Count returns the number of files with the given status.
func (r *Report) Count(status Status) int {
	n := 0
	for _, f := range r.Files {
		if f.Status == status {
			n++
		}
	}
	return n
}

// Options select what a run reads and writes.
type Options struct {
	// Directory is walked recursively for input files.
	Directory string

	// Task and Language determine the output language tag.
	Task     stt.Task
	Language string

	// Text and Subtitles enable the .txt and .srt outputs.
	Text      bool
	Subtitles bool
}

// Orchestrator runs the whole pipeline over a directory. Detector and
// Assembler are required; the other fields are optional.
type Orchestrator struct {
	Options   Options
	Detector  vad.Detector
	Assembler *pipeline.Assembler
	Extractor Extractor
	Sink      Sink
	Observer  Observer
	Metrics   *observe.Metrics
}

// Collect returns every regular file below dir in lexical order.
func Collect(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("batch: walk %q: %w", dir, err)
	}
	return files, nil
}

// Run processes every file below Options.Directory. The returned report is
// non-nil whenever the directory could be walked, even if Run stops early
// with an error.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	files, err := Collect(o.Options.Directory)
	if err != nil {
		return nil, err
	}

	report := &Report{RunID: uuid.New(), StartedAt: time.Now()}
	log := observe.Logger(ctx).With("run_id", report.RunID.String())
	log.Info("batch started", "directory", o.Options.Directory, "files", len(files))

	if o.Sink != nil {
		err := o.Sink.BeginRun(ctx, RunInfo{
			ID:        report.RunID,
			Directory: o.Options.Directory,
			Task:      o.Options.Task,
			Language:  o.Options.Language,
			StartedAt: report.StartedAt,
		})
		if err != nil {
			return report, fmt.Errorf("batch: begin run: %w", err)
		}
	}
	if o.Observer != nil {
		o.Observer.Begin(len(files))
		defer o.Observer.End()
	}

	var runErr error
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		if o.Observer != nil {
			o.Observer.FileStarted(path)
		}

		fr, units, fatal := o.processFile(ctx, path)
		report.Files = append(report.Files, fr)

		if o.Observer != nil {
			o.Observer.FileFinished(fr.Status == StatusFailed)
		}
		if o.Sink != nil && fr.Status != StatusSkipped {
			if err := o.Sink.SaveFile(ctx, report.RunID, fr, units); err != nil {
				log.Error("failed to store file result", "file", path, "err", err)
			}
		}
		if fatal != nil {
			runErr = fatal
			break
		}
	}

	report.FinishedAt = time.Now()
	if o.Sink != nil {
		// The run context may already be cancelled; the run row is still
		// closed.
		if err := o.Sink.FinishRun(context.WithoutCancel(ctx), report.RunID, report.FinishedAt); err != nil {
			log.Error("failed to finish stored run", "err", err)
		}
	}

	log.Info("batch finished",
		"succeeded", report.Count(StatusSucceeded),
		"partial", report.Count(StatusPartial),
		"failed", report.Count(StatusFailed),
		"skipped", report.Count(StatusSkipped),
		"elapsed", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond),
	)
	if runErr != nil {
		return report, fmt.Errorf("batch: %w", runErr)
	}
	return report, nil
}

// processFile handles one input. The returned error is non-nil only when
// the whole run has to stop.
func (o *Orchestrator) processFile(ctx context.Context, path string) (FileReport, []pipeline.SentenceUnit, error) {
	fr := FileReport{Path: path}
	kind := classify(path)
	if kind == sourceUnsupported {
		observe.Logger(ctx).Debug("skipping unsupported file", "file", path)
		fr.Status = StatusSkipped
		return fr, nil, nil
	}

	start := time.Now()
	ctx, span := observe.StartSpan(ctx, "batch.file", trace.WithAttributes(attribute.String("file", path)))
	defer span.End()
	log := observe.Logger(ctx).With("file", path)
	log.Info("processing file")

	var units []pipeline.SentenceUnit
	res, err := o.transcribe(ctx, path, kind)
	if res != nil {
		fr.Spans = res.Spans
		fr.Skips = res.Skips
		fr.Sentences = res.Transcript.Len()
		units = res.Transcript.Units()
	}
	if err == nil {
		fr.Outputs, err = o.export(path, units)
	}

	switch {
	case err != nil:
		fr.Status = StatusFailed
		fr.Err = err
		observe.FailSpan(span, err)
	case fr.Failed() > 0:
		fr.Status = StatusPartial
	default:
		fr.Status = StatusSucceeded
	}
	fr.Duration = time.Since(start)
	span.SetAttributes(attribute.String("status", string(fr.Status)))

	if o.Metrics != nil {
		o.Metrics.RecordFile(ctx, string(fr.Status), fr.Duration.Seconds())
	}

	attrs := []any{
		"status", fr.Status,
		"spans", fr.Spans,
		"sentences", fr.Sentences,
		"skipped_spans", len(fr.Skips),
		"elapsed", fr.Duration.Round(time.Millisecond),
	}
	if err != nil {
		log.Error("file failed", append(attrs, "err", err)...)
	} else {
		log.Info("file done", attrs...)
	}

	switch {
	case errors.Is(err, vad.ErrMissingCredential):
		return fr, units, err
	case ctx.Err() != nil:
		return fr, units, ctx.Err()
	}
	return fr, units, nil
}

func (o *Orchestrator) transcribe(ctx context.Context, path string, kind sourceKind) (*pipeline.Result, error) {
	stream, err := o.load(ctx, path, kind)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	spans, err := o.Detector.Detect(ctx, stream)
	if o.Metrics != nil {
		o.Metrics.VADDuration.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil {
		return nil, fmt.Errorf("batch: detect speech: %w", err)
	}
	observe.Logger(ctx).Debug("speech detected", "file", path, "spans", len(spans))

	return o.Assembler.Run(ctx, stream, spans)
}

// load decodes path into a pipeline stream. Extracted temporary files are
// removed before load returns.
func (o *Orchestrator) load(ctx context.Context, path string, kind sourceKind) (audio.Stream, error) {
	if kind == sourceAudio {
		return audio.Load(path)
	}
	if o.Extractor == nil {
		return audio.Stream{}, ErrNoExtractor
	}
	wav, cleanup, err := o.Extractor.Extract(ctx, path)
	if cleanup != nil {
		defer cleanup()
	}
	if err != nil {
		return audio.Stream{}, fmt.Errorf("batch: extract audio: %w", err)
	}
	return audio.Load(wav)
}

func (o *Orchestrator) export(path string, units []pipeline.SentenceUnit) ([]string, error) {
	lang := export.TargetLanguage(o.Options.Task, o.Options.Language)
	var kinds []export.Kind
	if o.Options.Text {
		kinds = append(kinds, export.KindText)
	}
	if o.Options.Subtitles {
		kinds = append(kinds, export.KindSubtitles)
	}

	var outputs []string
	for _, kind := range kinds {
		out := export.OutputPath(path, lang, kind)
		if err := export.WriteFile(out, kind, units); err != nil {
			// A failed file has no outputs; drop the ones already written.
			for _, done := range outputs {
				if rmErr := os.Remove(done); rmErr != nil {
					err = errors.Join(err, fmt.Errorf("batch: remove %q: %w", done, rmErr))
				}
			}
			return nil, err
		}
		outputs = append(outputs, out)
	}
	return outputs, nil
}
