// Package media extracts the audio track of container files (such as .mp4)
// into a temporary 16 kHz mono 16-bit WAV using an external ffmpeg binary.
package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"

	"github.com/MrWong99/vadscribe/pkg/audio"
)

var (
	// ErrNotFound is returned when no ffmpeg binary can be located.
	ErrNotFound = errors.New("media: ffmpeg not found")

	// ErrExtractionFailed wraps a non-zero ffmpeg exit.
	ErrExtractionFailed = errors.New("media: audio extraction failed")
)

// commandRunner runs an external command and returns its combined output.
type commandRunner interface {
	CombinedOutput(ctx context.Context, name string, args []string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) CombinedOutput(ctx context.Context, name string, args []string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Extractor converts container audio to pipeline-format WAV files.
type Extractor struct {
	ffmpegPath string
	tempDir    string
	cmd        commandRunner
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithTempDir places extracted files in dir instead of os.TempDir.
func WithTempDir(dir string) Option {
	return func(e *Extractor) { e.tempDir = dir }
}

// WithCommandRunner replaces the process runner. Used in tests.
func WithCommandRunner(r commandRunner) Option {
	return func(e *Extractor) { e.cmd = r }
}

// New returns an Extractor using the ffmpeg binary at ffmpegPath. An empty
// path looks ffmpeg up on PATH.
func New(ffmpegPath string, opts ...Option) (*Extractor, error) {
	e := &Extractor{ffmpegPath: ffmpegPath, cmd: execRunner{}}
	for _, o := range opts {
		o(e)
	}
	if e.ffmpegPath == "" {
		p, err := exec.LookPath("ffmpeg")
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
		}
		e.ffmpegPath = p
	}
	return e, nil
}

// Extract writes the audio of input to a new temporary WAV file and returns
// its path together with a cleanup function that removes it. Cleanup is
// safe to call more than once and must be called on every exit path, which
// is easiest with defer. On error no file is left behind and cleanup is a
// no-op.
func (e *Extractor) Extract(ctx context.Context, input string) (path string, cleanup func(), err error) {
	noop := func() {}

	f, err := os.CreateTemp(e.tempDir, "vadscribe-*.wav")
	if err != nil {
		return "", noop, fmt.Errorf("media: create temp file: %w", err)
	}
	path = f.Name()
	f.Close()

	removed := false
	cleanup = func() {
		if removed {
			return
		}
		removed = true
		if rerr := os.Remove(path); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			slog.Warn("media: failed to remove temp file", "path", path, "err", rerr)
		}
	}

	args := []string{
		"-y",
		"-hide_banner", "-loglevel", "error",
		"-i", input,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(audio.PipelineSampleRate),
		"-c:a", "pcm_s16le",
		"-f", "wav",
		path,
	}
	out, err := e.cmd.CombinedOutput(ctx, e.ffmpegPath, args)
	if err != nil {
		cleanup()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", noop, ctxErr
		}
		return "", noop, fmt.Errorf("%w: %s: %v\nOutput: %s", ErrExtractionFailed, input, err, out)
	}
	return path, cleanup, nil
}
