package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/vadscribe/pkg/provider/stt"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt": {"whisper", "whisper-native", "openai", "deepgram"},
	"vad": {"energy", "remote"},
}

// Load reads the YAML configuration file at path on top of [Default] and
// returns the validated result.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadOptional behaves like [Load] but returns [Default] when path does
// not exist.
func LoadOptional(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Debug("no config file, using defaults", "path", path)
		return Default(), nil
	}
	return cfg, err
}

// LoadFromReader decodes a YAML config from r on top of [Default] and
// validates the result. An empty document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Providers
	if cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt.name is required"))
	}
	if cfg.Providers.VAD.Name == "" {
		errs = append(errs, errors.New("providers.vad.name is required"))
	}
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("vad", cfg.Providers.VAD.Name)
	for i, fb := range cfg.Providers.Fallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.fallbacks[%d].name is required", i))
			continue
		}
		validateProviderName("stt", fb.Name)
	}

	// Pipeline
	p := cfg.Pipeline
	if !p.Task.IsValid() {
		errs = append(errs, fmt.Errorf("pipeline.task %q is invalid; valid values: transcribe, translate", p.Task))
	}
	if p.Language == "" && p.Task == stt.TaskTranscribe {
		errs = append(errs, errors.New("pipeline.language is required for transcribe"))
	}
	if p.SilenceThreshold < 0 || p.SilenceThreshold > 32768 {
		errs = append(errs, fmt.Errorf("pipeline.silence_threshold %d is out of range [0, 32768]", p.SilenceThreshold))
	}
	if p.PadMs < 0 {
		errs = append(errs, fmt.Errorf("pipeline.pad_ms %.0f must not be negative", p.PadMs))
	}
	if p.Temperature < 0 || p.Temperature > 1 {
		errs = append(errs, fmt.Errorf("pipeline.temperature %.2f is out of range [0, 1]", p.Temperature))
	}
	if p.BeamSize < 1 {
		errs = append(errs, fmt.Errorf("pipeline.beam_size %d must be at least 1", p.BeamSize))
	}
	if p.BestOf < 1 {
		errs = append(errs, fmt.Errorf("pipeline.best_of %d must be at least 1", p.BestOf))
	}
	if p.Workers < 1 {
		errs = append(errs, fmt.Errorf("pipeline.workers %d must be at least 1", p.Workers))
	}

	// Output
	if cfg.Output.Directory == "" {
		errs = append(errs, errors.New("output.directory is required"))
	}
	if !cfg.Output.Text && !cfg.Output.Subtitles && cfg.Output.PostgresDSN == "" {
		slog.Warn("no output selected; transcripts will only be logged (enable text, subtitles or postgres_dsn)")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or a custom registration",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
