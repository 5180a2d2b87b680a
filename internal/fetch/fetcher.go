// Package fetch retrieves raw page markup over HTTP.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	"pagerag/internal/domain"
)

// MaxRedirects bounds the redirect chain followed for a single page.
const MaxRedirects = 10

// Config configures a Fetcher.
type Config struct {
	Timeout      time.Duration
	Delay        time.Duration
	UserAgent    string
	MaxBodyBytes int64
	// RequireAuth makes every fetch fail until ConfigureHeaders is called.
	RequireAuth bool
}

// Fetcher performs single GET requests for page URLs. It is not safe for
// concurrent use; each source gets its own.
type Fetcher struct {
	client       *http.Client
	limiter      *rate.Limiter
	userAgent    string
	maxBodyBytes int64
	requireAuth  bool
	headers      http.Header
}

// New creates a fetcher. A zero timeout defaults to 30s.
func New(cfg Config) *Fetcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 10 << 20
	}
	f := &Fetcher{
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= MaxRedirects {
					return fmt.Errorf("stopped after %d redirects", MaxRedirects)
				}
				return nil
			},
		},
		userAgent:    cfg.UserAgent,
		maxBodyBytes: cfg.MaxBodyBytes,
		requireAuth:  cfg.RequireAuth,
	}
	if cfg.Delay > 0 {
		f.limiter = rate.NewLimiter(rate.Every(cfg.Delay), 1)
	}
	return f
}

// ConfigureHeaders builds the authorization headers sent with every fetch.
func (f *Fetcher) ConfigureHeaders(token string) {
	f.headers = http.Header{}
	f.headers.Set("Content-Type", "text/html")
	f.headers.Set("Authorization", "Bearer "+token)
}

// HeadersConfigured reports whether ConfigureHeaders has been called.
func (f *Fetcher) HeadersConfigured() bool { return f.headers != nil }

// Client exposes the underlying HTTP client for auxiliary requests such as
// sitemap and robots.txt discovery.
func (f *Fetcher) Client() *http.Client { return f.client }

// Fetch returns the body of pageURL decoded to UTF-8. Failures are reported as
// *domain.PageFetchError.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) ([]byte, error) {
	if f.requireAuth && f.headers == nil {
		return nil, domain.ErrHeadersNotConfigured
	}
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, f.fail(pageURL, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, f.fail(pageURL, fmt.Errorf("create request: %w", err))
	}
	for k, v := range f.headers {
		req.Header[k] = v
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, f.fail(pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, f.fail(pageURL, fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
	}

	var body io.Reader = resp.Body
	if utf8Reader, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type")); err == nil {
		body = utf8Reader
	}

	data, err := io.ReadAll(io.LimitReader(body, f.maxBodyBytes+1))
	if err != nil {
		return nil, f.fail(pageURL, fmt.Errorf("read body: %w", err))
	}
	if int64(len(data)) > f.maxBodyBytes {
		return nil, f.fail(pageURL, fmt.Errorf("content too large (exceeds %d bytes)", f.maxBodyBytes))
	}
	return data, nil
}

func (f *Fetcher) fail(pageURL string, err error) error {
	return &domain.PageFetchError{
		URL:         pageURL,
		ReadableURL: ReadableURL(pageURL),
		Op:          domain.OpFetch,
		Err:         err,
	}
}

// ReadableURL decodes percent escapes and turns '+' into spaces for log and
// error messages. Malformed escapes are kept as written.
func ReadableURL(pageURL string) string {
	spaced := strings.ReplaceAll(pageURL, "+", " ")
	if !strings.Contains(spaced, "%") {
		return spaced
	}
	var b strings.Builder
	b.Grow(len(spaced))
	for i := 0; i < len(spaced); i++ {
		if spaced[i] == '%' && i+2 < len(spaced) {
			if v, err := strconv.ParseUint(spaced[i+1:i+3], 16, 8); err == nil {
				b.WriteByte(byte(v))
				i += 2
				continue
			}
		}
		b.WriteByte(spaced[i])
	}
	return strings.ToValidUTF8(b.String(), "\uFFFD")
}
