// Package source loads input documents from local paths or HTTP(S) URLs.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"os"
	"strings"
	"time"

	apperrors "github.com/crsarena/arena-eval/internal/pkg/errors"
	"github.com/crsarena/arena-eval/internal/pkg/security"
)

// DefaultTimeout bounds a single fetch when the caller sets none.
const DefaultTimeout = 30 * time.Second

// Loader reads documents from files or HTTP(S) URLs.
type Loader struct {
	httpClient *http.Client
	timeout    time.Duration
	maxBytes   int64
}

// Option configures a Loader.
type Option func(*Loader)

// WithHTTPClient overrides the HTTP client used for URLs.
func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) { l.httpClient = c }
}

// WithMaxBytes caps the size of a loaded document. Zero disables the cap.
func WithMaxBytes(n int64) Option {
	return func(l *Loader) { l.maxBytes = n }
}

// NewLoader creates a loader whose fetches are bounded by timeout.
func NewLoader(timeout time.Duration, opts ...Option) *Loader {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	l := &Loader{
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:      10,
				IdleConnTimeout:   90 * time.Second,
				ForceAttemptHTTP2: true,
			},
		},
		timeout: timeout,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// IsURL reports whether location is an HTTP(S) URL.
func IsURL(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// Load returns the content at location, a file path or an HTTP(S) URL.
func (l *Loader) Load(ctx context.Context, location string) ([]byte, error) {
	if location == "" {
		return nil, apperrors.ValidationError("document location is empty")
	}
	if IsURL(location) {
		return l.fetch(ctx, location)
	}
	return l.readFile(location)
}

func (l *Loader) readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.NotFoundError(path).WithDetail("location", path)
		}
		return nil, apperrors.InternalError(fmt.Sprintf("open %s", path), err)
	}
	defer f.Close()
	return l.readAll(f, path)
}

func (l *Loader) fetch(ctx context.Context, url string) ([]byte, error) {
	shown := security.MaskLocation(url)

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperrors.ValidationError(fmt.Sprintf("invalid URL %q", shown))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, apperrors.TimeoutError("fetch " + shown).WithDetail("location", shown)
		}
		return nil, apperrors.New(apperrors.CodeUnavailable, fmt.Sprintf("fetch %s: %s", shown, transportReason(err))).
			WithDetail("location", shown)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, apperrors.New(apperrors.CodeUnavailable, fmt.Sprintf("fetch %s: HTTP %d", shown, resp.StatusCode)).
			WithDetail("location", shown).
			WithDetail("status", fmt.Sprintf("%d", resp.StatusCode))
	}

	data, err := l.readAll(resp.Body, shown)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, apperrors.TimeoutError("fetch " + shown).WithDetail("location", shown)
	}
	return data, err
}

// transportReason returns the cause of a failed request without the request
// URL, which *url.Error embeds verbatim.
func transportReason(err error) string {
	var uerr *neturl.Error
	if errors.As(err, &uerr) && uerr.Err != nil {
		return uerr.Err.Error()
	}
	return "request failed"
}

func (l *Loader) readAll(r io.Reader, location string) ([]byte, error) {
	if l.maxBytes <= 0 {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", location, err)
		}
		return data, nil
	}

	data, err := io.ReadAll(io.LimitReader(r, l.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", location, err)
	}
	if int64(len(data)) > l.maxBytes {
		return nil, apperrors.PayloadTooLargeError(l.maxBytes).WithDetail("location", location)
	}
	return data, nil
}
