package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func testClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.RetryInterval == 0 {
		cfg.RetryInterval = time.Millisecond
	}
	return &Client{UserAgent: "tablepick-test", Config: cfg}
}

func TestGet_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "tablepick-test" {
			t.Errorf("missing user agent, got %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body><table><tr><td>ok</td></tr></table></body></html>"))
	}))
	defer srv.Close()

	body, finalURL, err := testClient(DefaultConfig()).Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(body, "<table>") {
		t.Fatalf("unexpected body: %q", body)
	}
	if !strings.HasPrefix(finalURL, srv.URL) {
		t.Fatalf("final URL = %q, want prefix %q", finalURL, srv.URL)
	}
}

// errThenOKTransport fails with a transport error a fixed number of times
// before delegating to the real transport.
type errThenOKTransport struct {
	failures int
	calls    int
	next     http.RoundTripper
}

func (tr *errThenOKTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	tr.calls++
	if tr.calls <= tr.failures {
		return nil, fmt.Errorf("simulated transport failure %d", tr.calls)
	}
	return tr.next.RoundTrip(req)
}

func TestGet_RetriesTransportFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	tr := &errThenOKTransport{failures: 2, next: http.DefaultTransport}
	c := testClient(Config{Retries: 2, MaxRedirects: 3})
	c.HTTPClient = &http.Client{Transport: tr}

	body, _, err := c.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if tr.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", tr.calls)
	}
	if body == "" {
		t.Fatal("expected non-empty body")
	}
}

func TestGet_RetriesExhausted(t *testing.T) {
	tr := &errThenOKTransport{failures: 10, next: http.DefaultTransport}
	c := testClient(Config{Retries: 2, MaxRedirects: 3})
	c.HTTPClient = &http.Client{Transport: tr}

	_, _, err := c.Get(context.Background(), "https://example.invalid/")
	if err == nil {
		t.Fatal("expected error")
	}
	if tr.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", tr.calls)
	}
}

func TestGet_StatusErrorNotRetried(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := testClient(Config{Retries: 3, MaxRedirects: 3})
	_, _, err := c.Get(context.Background(), srv.URL)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", se.Code)
	}
	if calls != 1 {
		t.Fatalf("status errors must not be retried; got %d calls", calls)
	}
}

func TestGet_FollowsRedirectsAndReportsFinalURL(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/middle", http.StatusFound)
	})
	mux.HandleFunc("/middle", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>done</html>"))
	})

	_, finalURL, err := testClient(DefaultConfig()).Get(context.Background(), srv.URL+"/start")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(finalURL, "/final") {
		t.Fatalf("final URL = %q, want suffix /final", finalURL)
	}
}

func TestGet_RedirectLimit(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()
	for i := 0; i < 6; i++ {
		next := fmt.Sprintf("/hop%d", i+1)
		mux.HandleFunc(fmt.Sprintf("/hop%d", i), func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, next, http.StatusFound)
		})
	}

	c := testClient(Config{MaxRedirects: 2})
	_, _, err := c.Get(context.Background(), srv.URL+"/hop0")
	if !errors.Is(err, ErrTooManyRedirects) {
		t.Fatalf("expected ErrTooManyRedirects, got %v", err)
	}
}

func TestGet_ZeroMaxRedirectsFailsOnFirstHop(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	})

	c := testClient(Config{MaxRedirects: 0})
	_, _, err := c.Get(context.Background(), srv.URL+"/start")
	if !errors.Is(err, ErrTooManyRedirects) {
		t.Fatalf("expected ErrTooManyRedirects with a zero cap, got %v", err)
	}
}

func TestGet_RedirectLoopDetected(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/b", http.StatusFound)
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/a", http.StatusFound)
	})

	c := testClient(Config{MaxRedirects: 10})
	_, _, err := c.Get(context.Background(), srv.URL+"/a")
	if !errors.Is(err, ErrRedirectLoop) {
		t.Fatalf("expected ErrRedirectLoop, got %v", err)
	}
}

func TestGet_EmptyContentTypeStillChecksScriptRendering(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Suppress the implicit Content-Type so the response carries none.
		w.Header()["Content-Type"] = nil
		_, _ = w.Write([]byte(`<html><body>Please enable JavaScript to view this page.</body></html>`))
	}))
	defer srv.Close()

	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	defer func() { log.Logger = prev }()

	_, _, err := testClient(DefaultConfig()).Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "JavaScript") {
		t.Fatalf("expected a JavaScript rendering warning, got %q", buf.String())
	}
}

func TestGet_DecodesLegacyCharset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		// "café" in Latin-1.
		_, _ = w.Write([]byte{'c', 'a', 'f', 0xE9})
	}))
	defer srv.Close()

	body, _, err := testClient(DefaultConfig()).Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(body, "café") {
		t.Fatalf("expected decoded UTF-8 body, got %q", body)
	}
}

func TestNormalizeURL(t *testing.T) {
	cases := map[string]string{
		"example.com":                   "https://example.com/",
		"HTTPS://Example.COM":           "https://example.com/",
		"http://example.com/path?q=1":   "http://example.com/path?q=1",
		"https://example.com/Path/Case": "https://example.com/Path/Case",
	}
	for in, want := range cases {
		if got := NormalizeURL(in); got != want {
			t.Fatalf("NormalizeURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidateURL(t *testing.T) {
	if err := ValidateURL("https://example.com"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateURL("http://example.com/x"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, bad := range []string{"", "example.com", "ftp://example.com", "https://"} {
		if err := ValidateURL(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
