package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) result {
	t.Helper()
	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return body
}

func TestHealthz_AlwaysReturns200(t *testing.T) {
	h := New(nil)

	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	h.Healthz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	body := decode(t, rec)
	if body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
	if body.Progress != nil {
		t.Errorf("progress = %+v, want omitted", body.Progress)
	}
}

func TestHealthz_ContentType(t *testing.T) {
	h := New(nil)
	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	h.Healthz(rec, req)

	ct := rec.Header().Get("Content-Type")
	if ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

func TestHealthz_ReportsProgress(t *testing.T) {
	var p Progress
	p.Begin(3)
	p.FileStarted("a.wav")
	p.FileFinished(false)
	p.FileStarted("b.mp4")
	p.FileFinished(true)
	p.FileStarted("c.mp3")

	h := New(&p)
	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest("GET", "/healthz", nil))

	body := decode(t, rec)
	if body.Progress == nil {
		t.Fatal("progress missing")
	}
	got := *body.Progress
	if got.Total != 3 || got.Done != 2 || got.Failed != 1 {
		t.Errorf("progress = %+v, want total=3 done=2 failed=1", got)
	}
	if got.Current != "c.mp3" {
		t.Errorf("current = %q, want c.mp3", got.Current)
	}
	if got.Finished {
		t.Error("finished = true before End")
	}
}

func TestProgress_EndClearsCurrent(t *testing.T) {
	var p Progress
	p.Begin(1)
	p.FileStarted("a.wav")
	p.End()

	snap := p.Snapshot()
	if !snap.Finished {
		t.Error("finished = false after End")
	}
	if snap.Current != "" {
		t.Errorf("current = %q, want empty", snap.Current)
	}
}

func TestProgress_BeginResets(t *testing.T) {
	var p Progress
	p.Begin(2)
	p.FileStarted("a.wav")
	p.FileFinished(true)
	p.End()

	p.Begin(5)
	snap := p.Snapshot()
	if snap.Total != 5 || snap.Done != 0 || snap.Failed != 0 || snap.Finished {
		t.Errorf("snapshot after Begin = %+v", snap)
	}
}

func TestProgress_ZeroValue(t *testing.T) {
	var p Progress
	snap := p.Snapshot()
	if snap.Elapsed != "0s" {
		t.Errorf("elapsed = %q, want 0s", snap.Elapsed)
	}
}

func TestProgress_ConcurrentUpdates(t *testing.T) {
	var p Progress
	p.Begin(100)

	var wg sync.WaitGroup
	for i := range 100 {
		wg.Go(func() {
			p.FileStarted("f")
			p.FileFinished(i%4 == 0)
			_ = p.Snapshot()
		})
	}
	wg.Wait()

	snap := p.Snapshot()
	if snap.Done != 100 || snap.Failed != 25 {
		t.Errorf("done=%d failed=%d, want 100 and 25", snap.Done, snap.Failed)
	}
}

func TestReadyz_AllCheckersPass(t *testing.T) {
	h := New(nil,
		Checker{Name: "postgres", Check: func(_ context.Context) error { return nil }},
		Checker{Name: "whisper", Check: func(_ context.Context) error { return nil }},
	)

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	body := decode(t, rec)
	if body.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Status)
	}
	for _, name := range []string{"postgres", "whisper"} {
		if body.Checks[name] != "ok" {
			t.Errorf("checks[%q] = %q, want ok", name, body.Checks[name])
		}
	}
}

func TestReadyz_OneCheckerFails(t *testing.T) {
	h := New(nil,
		Checker{Name: "postgres", Check: func(_ context.Context) error { return nil }},
		Checker{Name: "whisper", Check: func(_ context.Context) error { return errors.New("connection refused") }},
	)

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	body := decode(t, rec)
	if body.Status != "fail" {
		t.Errorf("status = %q, want fail", body.Status)
	}
	if body.Checks["postgres"] != "ok" {
		t.Errorf("checks[postgres] = %q, want ok", body.Checks["postgres"])
	}
	if !strings.Contains(body.Checks["whisper"], "connection refused") {
		t.Errorf("checks[whisper] = %q, want the failure message", body.Checks["whisper"])
	}
}

func TestReadyz_NoCheckers(t *testing.T) {
	h := New(nil)
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestReadyz_ChecksRunConcurrently(t *testing.T) {
	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(2)
	block := func(_ context.Context) error {
		started.Done()
		<-release
		return nil
	}
	h := New(nil, Checker{Name: "a", Check: block}, Checker{Name: "b", Check: block})

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Readyz(httptest.NewRecorder(), httptest.NewRequest("GET", "/readyz", nil))
	}()

	waited := make(chan struct{})
	go func() {
		started.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(2 * time.Second):
		t.Fatal("checks did not start concurrently")
	}
	close(release)
	<-done
}

func TestReadyz_CheckerReceivesDeadline(t *testing.T) {
	var hasDeadline bool
	h := New(nil, Checker{Name: "x", Check: func(ctx context.Context) error {
		_, hasDeadline = ctx.Deadline()
		return nil
	}})

	h.Readyz(httptest.NewRecorder(), httptest.NewRequest("GET", "/readyz", nil))
	if !hasDeadline {
		t.Error("checker context has no deadline")
	}
}

func TestRegister(t *testing.T) {
	var p Progress
	p.Begin(1)
	mux := http.NewServeMux()
	New(&p).Register(mux)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want %d", path, rec.Code, http.StatusOK)
		}
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("POST", "/healthz", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /healthz = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}
