package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/MrWong99/vadscribe/internal/config"
	"github.com/MrWong99/vadscribe/internal/health"
	"github.com/MrWong99/vadscribe/pkg/audio"
	"github.com/MrWong99/vadscribe/pkg/provider/stt"
	"github.com/MrWong99/vadscribe/pkg/provider/stt/deepgram"
	"github.com/MrWong99/vadscribe/pkg/provider/stt/openai"
	"github.com/MrWong99/vadscribe/pkg/provider/stt/whisper"
	"github.com/MrWong99/vadscribe/pkg/provider/vad"
	"github.com/MrWong99/vadscribe/pkg/provider/vad/energy"
	"github.com/MrWong99/vadscribe/pkg/provider/vad/remote"
)

// defaultWhisperURL is the address of a locally started whisper.cpp server.
const defaultWhisperURL = "http://localhost:8080"

// registerBuiltinProviders wires all built-in engine factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Recognizer, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if d, err := optDuration(entry, "timeout"); err != nil {
			return nil, err
		} else if d > 0 {
			opts = append(opts, whisper.WithTimeout(d))
		}
		return whisper.New(whisperURL(entry), opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Recognizer, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = entry.OptString("model_path")
		}
		opts := []whisper.NativeOption{
			whisper.WithNativeWordTimestamps(entry.OptBool("word_timestamps", true)),
		}
		if n := entry.OptInt("threads", 0); n > 0 {
			opts = append(opts, whisper.WithNativeThreads(uint(n)))
		}
		return whisper.NewNative(modelPath, opts...)
	})

	reg.RegisterSTT("openai", func(entry config.ProviderEntry) (stt.Recognizer, error) {
		var opts []openai.Option
		if entry.Model != "" {
			opts = append(opts, openai.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		return openai.New(apiKey(entry, "OPENAI_API_KEY"), opts...)
	})

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Recognizer, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithEndpoint(entry.BaseURL))
		}
		return deepgram.New(apiKey(entry, "DEEPGRAM_API_KEY"), opts...)
	})

	// ── VAD ───────────────────────────────────────────────────────────────────

	reg.RegisterVAD("energy", func(entry config.ProviderEntry) (vad.Detector, error) {
		cfg := energy.DefaultConfig(audio.PipelineSampleRate)
		cfg.FrameSizeMs = entry.OptInt("frame_ms", cfg.FrameSizeMs)
		cfg.MinSilenceMs = entry.OptInt("min_silence_ms", cfg.MinSilenceMs)
		cfg.MinSpeechMs = entry.OptInt("min_speech_ms", cfg.MinSpeechMs)
		return energy.NewDetector(cfg), nil
	})

	reg.RegisterVAD("remote", func(entry config.ProviderEntry) (vad.Detector, error) {
		var opts []remote.Option
		if path := entry.OptString("token_file"); path != "" {
			opts = append(opts, remote.WithTokenFile(path))
		}
		if d, err := optDuration(entry, "timeout"); err != nil {
			return nil, err
		} else if d > 0 {
			opts = append(opts, remote.WithTimeout(d))
		}
		return remote.New(entry.BaseURL, opts...)
	})

	slog.Debug("registered providers", "stt", reg.STTNames(), "vad", reg.VADNames())
}

func whisperURL(entry config.ProviderEntry) string {
	if entry.BaseURL != "" {
		return entry.BaseURL
	}
	return defaultWhisperURL
}

// apiKey returns the configured key or, when empty, the value of env.
func apiKey(entry config.ProviderEntry, env string) string {
	if entry.APIKey != "" {
		return entry.APIKey
	}
	return os.Getenv(env)
}

// optDuration parses the string option key as a [time.Duration]. An absent
// option yields zero.
func optDuration(entry config.ProviderEntry, key string) (time.Duration, error) {
	s := entry.OptString(key)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s option %q: %w", entry.Name, key, err)
	}
	return d, nil
}

// readinessProbe returns a readiness check for engines served over plain
// HTTP by a local server. Hosted and in-process engines have none.
func readinessProbe(entry config.ProviderEntry) (health.Checker, bool) {
	if entry.Name != "whisper" {
		return health.Checker{}, false
	}
	url := whisperURL(entry)
	return health.Checker{
		Name: "stt",
		Check: func(ctx context.Context) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return err
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			resp.Body.Close()
			if resp.StatusCode >= http.StatusInternalServerError {
				return fmt.Errorf("whisper server at %s answered %s", url, resp.Status)
			}
			return nil
		},
	}, true
}
