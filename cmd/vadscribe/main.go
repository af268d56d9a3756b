// Command vadscribe transcribes every audio and video file below a directory
// into time-aligned text and subtitle files.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/vadscribe/internal/batch"
	"github.com/MrWong99/vadscribe/internal/config"
	"github.com/MrWong99/vadscribe/internal/export"
	"github.com/MrWong99/vadscribe/internal/health"
	"github.com/MrWong99/vadscribe/internal/media"
	"github.com/MrWong99/vadscribe/internal/observe"
	"github.com/MrWong99/vadscribe/internal/pipeline"
	"github.com/MrWong99/vadscribe/internal/resilience"
	"github.com/MrWong99/vadscribe/internal/vocab"
	"github.com/MrWong99/vadscribe/pkg/provider/stt"
	"github.com/MrWong99/vadscribe/pkg/store/postgres"
)

func main() {
	os.Exit(run())
}

func run() int {
	// A missing .env is the common case.
	_ = godotenv.Load()

	// ── CLI flags ──────────────────────────────────────────────────────────────
	flags, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.LoadOptional(flags.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vadscribe: %v\n", err)
		return 1
	}
	if err := flags.apply(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "vadscribe: %v\n", err)
		return 2
	}
	if cfg.Output.PostgresDSN == "" {
		cfg.Output.PostgresDSN = os.Getenv("VADSCRIBE_POSTGRES_DSN")
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	slog.SetDefault(newLogger(cfg.Server.LogLevel))

	if err := config.Validate(cfg); err != nil {
		slog.Error("invalid configuration", "err", err)
		return 1
	}
	slog.Info("vadscribe starting",
		"config", flags.configPath,
		"directory", cfg.Output.Directory,
		"task", cfg.Pipeline.Task,
		"language", cfg.Pipeline.Language,
		"stt", cfg.Providers.STT.Name,
		"vad", cfg.Providers.VAD.Name,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Observability ─────────────────────────────────────────────────────────
	shutdownOTel, err := observe.InitProvider(ctx, observe.ProviderConfig{
		Prometheus: cfg.Server.MetricsAddr != "",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	recognizer, closers, err := buildRecognizer(cfg, reg, metrics)
	defer closeAll(closers)
	if err != nil {
		slog.Error("failed to build recognizer", "err", err)
		return 1
	}
	detector, err := reg.CreateVAD(cfg.Providers.VAD)
	if err != nil {
		slog.Error("failed to build speech detector", "name", cfg.Providers.VAD.Name, "err", err)
		return 1
	}

	var checkers []health.Checker
	if c, ok := readinessProbe(cfg.Providers.STT); ok {
		checkers = append(checkers, c)
	}

	orch := &batch.Orchestrator{
		Options: batch.Options{
			Directory: cfg.Output.Directory,
			Task:      cfg.Pipeline.Task,
			Language:  cfg.Pipeline.Language,
			Text:      cfg.Output.Text,
			Subtitles: cfg.Output.Subtitles,
		},
		Detector: detector,
		Assembler: &pipeline.Assembler{
			Gate:  pipeline.LoudnessGate{Threshold: cfg.Pipeline.SilenceThreshold},
			PadMs: cfg.Pipeline.PadMs,
			Transcriber: &pipeline.Transcriber{
				Recognizer: recognizer,
				Options:    cfg.Pipeline.Options(),
				Provider:   cfg.Providers.STT.Name,
				Metrics:    metrics,
			},
			Workers: cfg.Pipeline.Workers,
			Metrics: metrics,
		},
		Metrics: metrics,
	}
	if terms := cfg.Pipeline.Vocabulary; len(terms) > 0 {
		orch.Assembler.Corrector = vocab.New(terms)
		slog.Info("vocabulary correction enabled", "terms", len(terms))
	}
	if flags.verbose {
		orch.Assembler.Hooks = verboseHooks(os.Stdout)
	}

	// ── Audio extraction (optional) ───────────────────────────────────────────
	if ext, err := media.New(""); err != nil {
		slog.Warn("ffmpeg not available; .mp4 files will fail", "err", err)
	} else {
		orch.Extractor = ext
	}

	// ── Transcript store (optional) ───────────────────────────────────────────
	if dsn := cfg.Output.PostgresDSN; dsn != "" {
		store, err := postgres.NewStore(ctx, dsn)
		if err != nil {
			slog.Error("failed to connect transcript store", "err", err)
			return 1
		}
		defer store.Close()
		orch.Sink = newStoreSink(store, cfg.Pipeline.Task, cfg.Pipeline.Language)
		checkers = append(checkers, health.Checker{Name: "postgres", Check: store.Ping})
	}

	// ── Admin listener (optional) ─────────────────────────────────────────────
	progress := &health.Progress{}
	orch.Observer = progress
	if addr := cfg.Server.MetricsAddr; addr != "" {
		srv := startAdminServer(addr, health.New(progress, checkers...), metrics)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Warn("admin listener shutdown error", "err", err)
			}
		}()
	}

	// ── Run ───────────────────────────────────────────────────────────────────
	report, err := orch.Run(ctx)
	if report != nil {
		printReport(os.Stdout, report)
	}
	if err != nil {
		slog.Error("batch aborted", "err", err)
		return 1
	}
	if report.Count(batch.StatusFailed) > 0 {
		return 1
	}
	return 0
}

// ── Recognizer wiring ─────────────────────────────────────────────────────────

// buildRecognizer creates the primary engine and every fallback and wraps
// them in a failover recognizer. Engines that hold native resources are
// returned as closers, including when an error is returned.
func buildRecognizer(cfg *config.Config, reg *config.Registry, metrics *observe.Metrics) (stt.Recognizer, []io.Closer, error) {
	var closers []io.Closer
	create := func(entry config.ProviderEntry) (stt.Recognizer, error) {
		rec, err := reg.CreateSTT(entry)
		if err != nil {
			return nil, fmt.Errorf("create stt provider %q: %w", entry.Name, err)
		}
		if c, ok := rec.(io.Closer); ok {
			closers = append(closers, c)
		}
		slog.Info("provider created", "kind", "stt", "name", entry.Name)
		return rec, nil
	}

	primary, err := create(cfg.Providers.STT)
	if err != nil {
		return nil, closers, err
	}
	fr := resilience.NewRecognizer(cfg.Providers.STT.Name, primary, resilience.FallbackConfig{
		OnFailure: func(ctx context.Context, name string, err error) {
			observe.Logger(ctx).Warn("recognition engine failed", "engine", name, "err", err)
		},
	}, metrics)
	for _, entry := range cfg.Providers.Fallbacks {
		rec, err := create(entry)
		if err != nil {
			return nil, closers, err
		}
		fr.AddFallback(entry.Name, rec)
	}
	return fr, closers, nil
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		if err := c.Close(); err != nil {
			slog.Warn("close provider", "err", err)
		}
	}
}

// ── Admin listener ────────────────────────────────────────────────────────────

func startAdminServer(addr string, h *health.Handler, metrics *observe.Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	h.Register(mux)

	srv := &http.Server{
		Addr:              addr,
		Handler:           observe.Middleware(metrics)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("admin listener error", "addr", addr, "err", err)
		}
	}()
	slog.Info("admin listener started", "addr", addr)
	return srv
}

// ── Console output ────────────────────────────────────────────────────────────

// verboseHooks prints every span's loudness and every accepted sentence.
func verboseHooks(w io.Writer) pipeline.Hooks {
	return pipeline.Hooks{
		OnSpan: func(r pipeline.SpanReport) {
			verdict := "accepted"
			if !r.Accepted {
				verdict = "too quiet"
			}
			fmt.Fprintf(w, "span %d  %s -> %s  peak %d  %s\n",
				r.Index, clock(r.Span.Start()), clock(r.Span.End()), r.Peak, verdict)
		},
		OnSentence: func(u pipeline.SentenceUnit) {
			fmt.Fprintf(w, "%s ----> %s\n%s\n", clock(u.Start), clock(u.End), u.Text)
		},
	}
}

// clock formats seconds like a subtitle timestamp, falling back to plain
// seconds for values that have none.
func clock(sec float64) string {
	ts, err := export.FormatTimestamp(sec)
	if err != nil {
		return fmt.Sprintf("%.3fs", sec)
	}
	return ts
}

func printReport(w io.Writer, r *batch.Report) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STATUS\tSENTENCES\tSKIPPED SPANS\tFILE")
	for _, f := range r.Files {
		if f.Status == batch.StatusSkipped {
			fmt.Fprintf(tw, "%s\t-\t-\t%s\n", f.Status, f.Path)
			continue
		}
		line := fmt.Sprintf("%s\t%d\t%d/%d\t%s", f.Status, f.Sentences, len(f.Skips), f.Spans, f.Path)
		if f.Err != nil {
			line += "  (" + f.Err.Error() + ")"
		}
		fmt.Fprintln(tw, line)
	}
	tw.Flush()
	fmt.Fprintf(w, "\nrun %s: %d succeeded, %d partial, %d failed, %d skipped in %s\n",
		r.RunID,
		r.Count(batch.StatusSucceeded),
		r.Count(batch.StatusPartial),
		r.Count(batch.StatusFailed),
		r.Count(batch.StatusSkipped),
		r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond),
	)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
