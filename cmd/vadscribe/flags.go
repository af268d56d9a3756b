package main

import (
	"flag"
	"fmt"
	"strings"

	"github.com/MrWong99/vadscribe/internal/config"
	"github.com/MrWong99/vadscribe/pkg/provider/stt"
)

// cliFlags holds the parsed command line. Only flags given explicitly
// override the configuration file.
type cliFlags struct {
	configPath  string
	metricsAddr string
	dsn         string

	directory   string
	task        string
	language    string
	silence     int
	temperature float64
	beamSize    int
	bestOf      int
	workers     int
	pad         float64
	vocabulary  string

	verbose   bool
	text      bool
	subtitles bool

	set map[string]bool
}

func parseFlags(args []string) (*cliFlags, error) {
	d := config.Default()
	f := &cliFlags{}
	fs := flag.NewFlagSet("vadscribe", flag.ContinueOnError)

	fs.StringVar(&f.configPath, "config", "vadscribe.yaml", "path to the optional YAML configuration file")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "serve /metrics, /healthz and /readyz on this address while running")
	fs.StringVar(&f.dsn, "dsn", "", "PostgreSQL DSN for storing transcripts")

	fs.StringVar(&f.directory, "directory", d.Output.Directory, "directory to search for media files")
	fs.StringVar(&f.task, "task", string(d.Pipeline.Task), "transcribe or translate")
	fs.StringVar(&f.language, "language", d.Pipeline.Language, "spoken language code")
	fs.IntVar(&f.silence, "silence", d.Pipeline.SilenceThreshold, "minimum peak amplitude of a speech span")
	fs.Float64Var(&f.temperature, "temperature", d.Pipeline.Temperature, "sampling temperature; 0 selects beam search")
	fs.IntVar(&f.beamSize, "beam_size", d.Pipeline.BeamSize, "beam width for beam search")
	fs.IntVar(&f.bestOf, "best_of", d.Pipeline.BestOf, "candidates when sampling")
	fs.IntVar(&f.workers, "workers", d.Pipeline.Workers, "concurrent recognition calls per file")
	fs.Float64Var(&f.pad, "pad", d.Pipeline.PadMs, "guard margin around each speech span in milliseconds")
	fs.StringVar(&f.vocabulary, "vocabulary", "", "comma-separated names whose spelling is enforced")

	fs.BoolVar(&f.verbose, "verbose", false, "print span loudness and every sentence as it is recognized")
	fs.BoolVar(&f.text, "text", false, "write name.<lang>.txt")
	fs.BoolVar(&f.subtitles, "subtitles", false, "write name.<lang>.srt")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	f.set = make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })
	return f, nil
}

// apply overrides cfg with every explicitly given flag.
func (f *cliFlags) apply(cfg *config.Config) error {
	if f.set["metrics-addr"] {
		cfg.Server.MetricsAddr = f.metricsAddr
	}
	if f.set["dsn"] {
		cfg.Output.PostgresDSN = f.dsn
	}
	if f.set["directory"] {
		cfg.Output.Directory = f.directory
	}
	if f.set["task"] {
		task, err := stt.ParseTask(f.task)
		if err != nil {
			return fmt.Errorf("--task: %w", err)
		}
		cfg.Pipeline.Task = task
	}
	if f.set["language"] {
		cfg.Pipeline.Language = f.language
	}
	if f.set["silence"] {
		cfg.Pipeline.SilenceThreshold = f.silence
	}
	if f.set["temperature"] {
		cfg.Pipeline.Temperature = f.temperature
	}
	if f.set["beam_size"] {
		cfg.Pipeline.BeamSize = f.beamSize
	}
	if f.set["best_of"] {
		cfg.Pipeline.BestOf = f.bestOf
	}
	if f.set["workers"] {
		cfg.Pipeline.Workers = f.workers
	}
	if f.set["pad"] {
		cfg.Pipeline.PadMs = f.pad
	}
	if f.set["vocabulary"] {
		cfg.Pipeline.Vocabulary = nil
		for term := range strings.SplitSeq(f.vocabulary, ",") {
			if term = strings.TrimSpace(term); term != "" {
				cfg.Pipeline.Vocabulary = append(cfg.Pipeline.Vocabulary, term)
			}
		}
	}
	if f.set["text"] {
		cfg.Output.Text = f.text
	}
	if f.set["subtitles"] {
		cfg.Output.Subtitles = f.subtitles
	}
	if f.verbose {
		cfg.Server.LogLevel = config.LogDebug
	}
	return nil
}
