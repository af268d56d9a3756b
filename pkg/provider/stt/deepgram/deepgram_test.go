package deepgram

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/MrWong99/vadscribe/pkg/provider/stt"
)

// ---- URL / query-param tests ----

func TestBuildURL_Defaults(t *testing.T) {
	p, err := New("test-key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rawURL, err := p.buildURL(stt.Options{Language: "en"})
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse URL: %v", err)
	}
	q := u.Query()

	assertEqual(t, "model", "nova-3", q.Get("model"))
	assertEqual(t, "language", "en", q.Get("language"))
	assertEqual(t, "punctuate", "true", q.Get("punctuate"))
	assertEqual(t, "utterances", "true", q.Get("utterances"))
	assertEqual(t, "detect_language", "", q.Get("detect_language"))
}

func TestBuildURL_DetectLanguage(t *testing.T) {
	p, _ := New("key", WithModel("base"))
	rawURL, err := p.buildURL(stt.Options{})
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}
	u, _ := url.Parse(rawURL)
	q := u.Query()

	assertEqual(t, "model", "base", q.Get("model"))
	assertEqual(t, "detect_language", "true", q.Get("detect_language"))
	assertEqual(t, "language", "", q.Get("language"))
}

func TestNew_EmptyKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty API key")
	}
}

// ---- response parsing ----

func TestParseDeepgramResponse_Utterances(t *testing.T) {
	body := []byte(`{"results": {
		"channels": [{"detected_language": "en", "alternatives": [{"transcript": "hello there. bye."}]}],
		"utterances": [
			{"start": 0.2, "end": 1.1, "transcript": "Hello there.",
			 "words": [{"word": "hello", "punctuated_word": "Hello", "start": 0.2, "end": 0.5, "confidence": 0.98},
			           {"word": "there", "punctuated_word": "there.", "start": 0.6, "end": 1.1, "confidence": 0.97}]},
			{"start": 1.5, "end": 1.9, "transcript": "Bye.", "words": []}
		]}}`)
	res, err := parseDeepgramResponse(body)
	if err != nil {
		t.Fatalf("parseDeepgramResponse: %v", err)
	}
	if res.Language != "en" {
		t.Errorf("Language = %q, want en", res.Language)
	}
	if len(res.Segments) != 2 {
		t.Fatalf("segments = %d, want 2", len(res.Segments))
	}
	if w := res.Segments[0].Words; len(w) != 2 || w[1].Text != "there." {
		t.Errorf("words = %+v", w)
	}
	if res.Segments[1].Words != nil {
		t.Errorf("empty words should map to nil, got %+v", res.Segments[1].Words)
	}
}

func TestParseDeepgramResponse_AlternativeFallback(t *testing.T) {
	body := []byte(`{"results": {"channels": [{"alternatives": [{"transcript": "ok",
		"words": [{"word": "ok", "start": 0.3, "end": 0.6}]}]}]}}`)
	res, err := parseDeepgramResponse(body)
	if err != nil {
		t.Fatalf("parseDeepgramResponse: %v", err)
	}
	if len(res.Segments) != 1 || res.Segments[0].Start != 0.3 || res.Segments[0].End != 0.6 {
		t.Errorf("segments = %+v", res.Segments)
	}
}

func TestParseDeepgramResponse_Silence(t *testing.T) {
	res, err := parseDeepgramResponse([]byte(`{"results": {"channels": [{"alternatives": [{"transcript": ""}]}]}}`))
	if err != nil {
		t.Fatalf("parseDeepgramResponse: %v", err)
	}
	if len(res.Segments) != 0 {
		t.Errorf("segments = %+v, want none", res.Segments)
	}
}

// ---- HTTP round trip ----

func TestRecognize_SendsAuthAndAudio(t *testing.T) {
	var gotAuth, gotType string
	var gotLen int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotLen = len(b)
		_, _ = w.Write([]byte(`{"results": {"utterances": [{"start": 0, "end": 1, "transcript": "Hi."}]}}`))
	}))
	defer srv.Close()

	p, _ := New("secret", WithEndpoint(srv.URL+"/v1/listen"))
	res, err := p.Recognize(context.Background(), make([]byte, 100), stt.Options{Language: "en"})
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	assertEqual(t, "auth", "Token secret", gotAuth)
	assertEqual(t, "content type", "audio/wav", gotType)
	if gotLen != 100 {
		t.Errorf("body length = %d, want 100", gotLen)
	}
	if len(res.Segments) != 1 {
		t.Errorf("segments = %d, want 1", len(res.Segments))
	}
}

func TestRecognize_TranslateUnsupported(t *testing.T) {
	p, _ := New("secret", WithEndpoint("http://127.0.0.1:1"))
	_, err := p.Recognize(context.Background(), nil, stt.Options{Task: stt.TaskTranslate})
	if !errors.Is(err, stt.ErrUnsupportedTask) {
		t.Errorf("err = %v, want ErrUnsupportedTask", err)
	}
}

func TestRecognize_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"err_msg":"Invalid credentials."}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	p, _ := New("bad", WithEndpoint(srv.URL))
	if _, err := p.Recognize(context.Background(), nil, stt.Options{}); err == nil {
		t.Fatal("expected error for HTTP 401")
	}
}

func assertEqual(t *testing.T, field, want, got string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %q, want %q", field, got, want)
	}
}
