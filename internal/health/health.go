// Package health serves the admin endpoints of a running batch:
//
//   - /healthz: liveness probe; always 200 OK, with the batch progress.
//   - /readyz: readiness probe; 200 only when every registered [Checker]
//     passes.
//
// Responses are JSON objects with a top-level "status" field ("ok" or
// "fail").
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// checkTimeout is the maximum time a single readiness check may take before
// the context is cancelled.
const checkTimeout = 5 * time.Second

// Checker is a named readiness check, e.g. the recognition server or the
// transcript database. Check returns nil when the dependency is usable.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// ProgressSnapshot is a point-in-time view of a batch run.
type ProgressSnapshot struct {
	Total    int    `json:"total"`
	Done     int    `json:"done"`
	Failed   int    `json:"failed"`
	Current  string `json:"current,omitempty"`
	Finished bool   `json:"finished"`
	Elapsed  string `json:"elapsed"`
}

// Progress tracks how far a batch run has come. The zero value is ready to
// use and safe for concurrent use.
type Progress struct {
	mu       sync.Mutex
	total    int
	done     int
	failed   int
	current  string
	started  time.Time
	finished bool
}

// Begin starts a run over total files.
func (p *Progress) Begin(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total, p.done, p.failed = total, 0, 0
	p.current, p.finished = "", false
	p.started = time.Now()
}

// FileStarted marks path as the file being processed.
func (p *Progress) FileStarted(path string) {
	p.mu.Lock()
	p.current = path
	p.mu.Unlock()
}

// FileFinished counts the current file as done.
func (p *Progress) FileFinished(failed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done++
	if failed {
		p.failed++
	}
	p.current = ""
}

// End marks the run as finished.
func (p *Progress) End() {
	p.mu.Lock()
	p.finished = true
	p.current = ""
	p.mu.Unlock()
}

// Snapshot returns the current progress.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	var elapsed time.Duration
	if !p.started.IsZero() {
		elapsed = time.Since(p.started).Round(time.Second)
	}
	return ProgressSnapshot{
		Total:    p.total,
		Done:     p.done,
		Failed:   p.failed,
		Current:  p.current,
		Finished: p.finished,
		Elapsed:  elapsed.String(),
	}
}

// result is the JSON response body for health endpoints.
type result struct {
	Status   string            `json:"status"`
	Checks   map[string]string `json:"checks,omitempty"`
	Progress *ProgressSnapshot `json:"progress,omitempty"`
}

// Handler serves /healthz and /readyz. The checker list is fixed at
// construction time.
type Handler struct {
	progress *Progress
	checkers []Checker
}

// New creates a [Handler]. progress may be nil.
func New(progress *Progress, checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{progress: progress, checkers: c}
}

// Healthz always returns 200 OK together with the batch progress, if any.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	res := result{Status: "ok"}
	if h.progress != nil {
		snap := h.progress.Snapshot()
		res.Progress = &snap
	}
	writeJSON(w, http.StatusOK, res)
}

// Readyz runs every [Checker] concurrently, each bounded by checkTimeout,
// and returns 200 only when all of them pass.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	errs := make([]error, len(h.checkers))
	var g errgroup.Group
	for i, c := range h.checkers {
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			defer cancel()
			errs[i] = c.Check(ctx)
			return nil
		})
	}
	_ = g.Wait()

	res := result{Status: "ok", Checks: make(map[string]string, len(h.checkers))}
	status := http.StatusOK
	for i, c := range h.checkers {
		if errs[i] != nil {
			res.Checks[c.Name] = "fail: " + errs[i].Error()
			res.Status = "fail"
			status = http.StatusServiceUnavailable
			continue
		}
		res.Checks[c.Name] = "ok"
	}
	writeJSON(w, status, res)
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
