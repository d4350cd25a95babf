// Package fetch retrieves HTML documents over HTTP with bounded retry,
// capped redirect following and charset-aware decoding.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
)

// Policy defaults. The retry interval is deliberately not exposed on the CLI.
const (
	DefaultTimeout       = 10 * time.Second
	DefaultRetries       = 0
	DefaultRetryInterval = 10 * time.Second
	DefaultMaxRedirects  = 3

	DefaultUserAgent = "tablepick/1.0 (+https://github.com/tablepick/tablepick)"
)

var (
	// ErrTooManyRedirects is returned when a redirect chain exceeds the
	// configured hop limit.
	ErrTooManyRedirects = errors.New("too many redirects")
	// ErrRedirectLoop is returned when a redirect revisits a URL already
	// seen in the chain.
	ErrRedirectLoop = errors.New("redirect loop detected")
	// ErrUnsupportedScheme is returned for URLs outside http/https.
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")
)

// StatusError reports a terminal non-2xx response. Status errors are not
// retried.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d for %s", e.Code, e.URL)
}

// Config holds the fetch policy.
type Config struct {
	// Timeout bounds each request attempt.
	Timeout time.Duration
	// Retries is the number of additional attempts after a transport
	// failure. HTTP status errors are never retried.
	Retries int
	// RetryInterval is the fixed delay between attempts.
	RetryInterval time.Duration
	// MaxRedirects caps redirect following. Zero fails on the first
	// redirect; negative means default.
	MaxRedirects int
}

// DefaultConfig returns the stock fetch policy.
func DefaultConfig() Config {
	return Config{
		Timeout:       DefaultTimeout,
		Retries:       DefaultRetries,
		RetryInterval: DefaultRetryInterval,
		MaxRedirects:  DefaultMaxRedirects,
	}
}

// Client wraps http.Client with the tablepick fetch policy.
type Client struct {
	// HTTPClient is cloned per request to attach the redirect policy
	// without mutating the caller's client. Nil means a fresh client.
	HTTPClient *http.Client
	UserAgent  string
	Config     Config
}

// Get normalizes rawURL, applies the retry and redirect policy, and returns
// the UTF-8 decoded body plus the final URL after redirects.
func (c *Client) Get(ctx context.Context, rawURL string) (string, string, error) {
	u := NormalizeURL(rawURL)
	if strings.HasPrefix(u, "http://") {
		log.Warn().Str("url", u).Msg("URL uses plain HTTP; HTTPS is recommended")
	}

	attempts := c.Config.Retries + 1
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		body, finalURL, err := c.tryOnce(ctx, u)
		if err == nil {
			return body, finalURL, nil
		}
		if !isTransient(err) || i == attempts-1 {
			return "", "", err
		}
		lastErr = err
		log.Debug().Err(err).Int("attempt", i+1).Msg("fetch attempt failed; retrying")
		time.Sleep(c.retryInterval())
	}
	return "", "", lastErr
}

func (c *Client) retryInterval() time.Duration {
	if c.Config.RetryInterval > 0 {
		return c.Config.RetryInterval
	}
	return DefaultRetryInterval
}

func (c *Client) tryOnce(ctx context.Context, u string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", "", fmt.Errorf("new request: %w", err)
	}
	if !isHTTPScheme(req.URL) {
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, req.URL.Scheme)
	}
	ua := c.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	req.Header.Set("User-Agent", ua)

	if c.Config.Timeout > 0 {
		tctx, cancel := context.WithTimeout(req.Context(), c.Config.Timeout)
		defer cancel()
		req = req.WithContext(tctx)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	finalURL := resp.Request.URL.String()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", "", &StatusError{Code: resp.StatusCode, URL: finalURL}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("read body: %w", err)
	}
	contentType := resp.Header.Get("Content-Type")
	body, err := decodeBody(raw, contentType)
	if err != nil {
		return "", "", fmt.Errorf("decode body: %w", err)
	}

	if ct := strings.TrimSpace(contentType); ct == "" || isHTMLContentType(ct) {
		warnIfScriptHeavy(body, finalURL)
	} else {
		log.Warn().Str("url", finalURL).Str("contentType", contentType).Msg("response is not text/html")
	}
	return body, finalURL, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		base := *c.HTTPClient
		base.CheckRedirect = c.checkRedirectFunc()
		return &base
	}
	return &http.Client{CheckRedirect: c.checkRedirectFunc()}
}

func (c *Client) checkRedirectFunc() func(req *http.Request, via []*http.Request) error {
	max := c.Config.MaxRedirects
	if max < 0 {
		max = DefaultMaxRedirects
	}
	return func(req *http.Request, via []*http.Request) error {
		if len(via) > max {
			return fmt.Errorf("%w: limit %d exceeded", ErrTooManyRedirects, max)
		}
		if !isHTTPScheme(req.URL) {
			return fmt.Errorf("%w: redirect to %q", ErrUnsupportedScheme, req.URL.Scheme)
		}
		next := req.URL.String()
		for _, prev := range via {
			if prev.URL.String() == next {
				return fmt.Errorf("%w: %s", ErrRedirectLoop, next)
			}
		}
		return nil
	}
}

// isTransient reports whether an attempt failure may succeed on retry.
// Terminal statuses, redirect policy violations and caller cancellation are
// final; everything else is treated as a transport failure.
func isTransient(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return false
	}
	if errors.Is(err, ErrTooManyRedirects) || errors.Is(err, ErrRedirectLoop) || errors.Is(err, ErrUnsupportedScheme) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

// decodeBody converts the response bytes to UTF-8, sniffing the encoding
// from the Content-Type header and the content itself.
func decodeBody(raw []byte, contentType string) (string, error) {
	enc, name, _ := charset.DetermineEncoding(raw, contentType)
	if enc == nil || name == "utf-8" {
		return string(raw), nil
	}
	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(raw), enc.NewDecoder()))
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

// NormalizeURL makes the URL canonical for fetching: https is assumed when
// the scheme is missing, scheme and host are lowercased, an empty path
// becomes "/", and the query is preserved.
func NormalizeURL(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return s
	}
	u, err := url.Parse(s)
	if err != nil {
		return s
	}
	if u.Scheme == "" {
		u, err = url.Parse("https://" + s)
		if err != nil {
			return s
		}
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}

// ValidateURL enforces the strict CLI rules: scheme required, http/https
// only, host required.
func ValidateURL(raw string) error {
	s := strings.TrimSpace(raw)
	if s == "" {
		return errors.New("URL is empty")
	}
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme == "" {
		return errors.New("URL scheme is missing; specify a full URL like https://example.com")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: %q (only http and https are allowed)", ErrUnsupportedScheme, u.Scheme)
	}
	if u.Host == "" {
		return errors.New("URL host is missing")
	}
	return nil
}

func isHTTPScheme(u *url.URL) bool {
	if u == nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

func isHTMLContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	return strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml+xml")
}

var jsRequiredPhrases = []string{
	"enable javascript",
	"requires javascript",
	"please enable javascript",
	"javascript is disabled",
}

// warnIfScriptHeavy flags pages that likely render their content with
// JavaScript, which a static fetch cannot see.
func warnIfScriptHeavy(body, u string) {
	lower := strings.ToLower(body)
	for _, phrase := range jsRequiredPhrases {
		if strings.Contains(lower, phrase) {
			log.Warn().Str("url", u).Msg("page appears to require JavaScript to render content")
			return
		}
	}
	if strings.Count(lower, "<script") >= 10 && len(body) < 30_000 {
		log.Warn().Str("url", u).Msg("page may rely heavily on JavaScript for rendering")
	}
}
