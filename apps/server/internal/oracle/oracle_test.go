package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rpg-lite/progression/catalog"
)

func TestNormalizeBaseURL(t *testing.T) {
	cases := map[string]string{
		"":                                   "",
		"https://api.example.com/v1":         "https://api.example.com/v1/",
		"https://api.example.com/v1/":        "https://api.example.com/v1/",
		"https://x.io/v1/chat/completions":   "https://x.io/v1/",
		" https://x.io/v1/chat/completions/": "https://x.io/v1/",
	}
	for in, want := range cases {
		if got := NormalizeBaseURL(in); got != want {
			t.Fatalf("NormalizeBaseURL(%q): want %q got %q", in, want, got)
		}
	}
}

func TestNarrate_Success(t *testing.T) {
	var gotModel string
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotModel, _ = body["model"].(string)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"m",` +
			`"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"  Welcome back. [FAVORABILITY:+2] "}}]}`))
	}))
	defer srv.Close()

	c := New([]catalog.Endpoint{{URL: srv.URL + "/v1/chat/completions", Keys: []string{"k1"}}})
	out, err := c.Narrate(context.Background(), "sys", "hi", Options{})
	if err != nil {
		t.Fatalf("narrate: %v", err)
	}
	if out != "Welcome back. [FAVORABILITY:+2]" {
		t.Fatalf("unexpected text %q", out)
	}
	if gotModel != DefaultModel || gotAuth != "Bearer k1" {
		t.Fatalf("request wrong: model=%q auth=%q", gotModel, gotAuth)
	}
}

func TestNarrate_Failures(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer broken.Close()

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"m","choices":[]}`))
	}))
	defer empty.Close()

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	gone := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	goneURL := gone.URL
	gone.Close()

	cases := []struct {
		name   string
		client *Client
		kind   Kind
		status int
	}{
		{"not configured", New(nil), KindNotConfigured, 0},
		{"server error", New([]catalog.Endpoint{{URL: broken.URL, Keys: []string{"k"}}}), KindBadStatus, 500},
		{"empty choices", New([]catalog.Endpoint{{URL: empty.URL, Keys: []string{"k"}}}), KindBadStatus, 0},
		{"timeout", New([]catalog.Endpoint{{URL: slow.URL, Keys: []string{"k"}}}, WithTimeout(50*time.Millisecond)), KindTimeout, 0},
		{"unreachable", New([]catalog.Endpoint{{URL: goneURL, Keys: []string{"k"}}}), KindConnectionFailed, 0},
	}
	for _, tc := range cases {
		_, err := tc.client.Narrate(context.Background(), "s", "u", Options{})
		if !errors.Is(err, ErrUnavailable) {
			t.Fatalf("%s: expected ErrUnavailable, got %v", tc.name, err)
		}
		var oe *Error
		if !errors.As(err, &oe) {
			t.Fatalf("%s: expected *Error, got %T", tc.name, err)
		}
		if oe.Kind != tc.kind || oe.Status != tc.status {
			t.Fatalf("%s: want kind=%s status=%d, got kind=%s status=%d", tc.name, tc.kind, tc.status, oe.Kind, oe.Status)
		}
	}
}
