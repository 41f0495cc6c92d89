package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/bnema/geppetto/internal/domain"
	"github.com/bnema/geppetto/internal/ports"
)

const defaultMaxBytes = 16 << 20

var ErrTooLarge = errors.New("response exceeds size limit")

// Fetcher downloads model documents over http and https.
type Fetcher struct {
	HTTPClient     *http.Client
	RequestTimeout time.Duration
	MaxBytes       int64
}

var _ ports.Fetcher = (*Fetcher)(nil)

func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse url: %v", domain.ErrInvalidArgument, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("%w: url must use http or https", domain.ErrInvalidArgument)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("%w: url host is required", domain.ErrInvalidArgument)
	}

	requestCtx, cancel := f.requestContext(ctx)
	defer cancel()
	req, err := http.NewRequestWithContext(requestCtx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := f.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", parsed.Redacted(), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("get %s: %w", parsed.Redacted(), domain.ErrNotFound)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("get %s: status %d", parsed.Redacted(), resp.StatusCode)
	}

	limit := f.maxBytes()
	content, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", parsed.Redacted(), err)
	}
	if int64(len(content)) > limit {
		return nil, fmt.Errorf("get %s: %w (%d bytes)", parsed.Redacted(), ErrTooLarge, limit)
	}
	return content, nil
}

func (f *Fetcher) httpClient() *http.Client {
	if f.HTTPClient != nil {
		return f.HTTPClient
	}
	return http.DefaultClient
}

func (f *Fetcher) maxBytes() int64 {
	if f.MaxBytes > 0 {
		return f.MaxBytes
	}
	return defaultMaxBytes
}

func (f *Fetcher) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}

	timeout := f.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}
