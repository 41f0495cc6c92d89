package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/bnema/geppetto/internal/domain"
	"github.com/bnema/geppetto/internal/ports"
)

// Router dispatches a url to the fetcher registered for its scheme. Urls
// without a scheme go to the "file" fetcher.
type Router struct {
	fetchers map[string]ports.Fetcher
}

var _ ports.Fetcher = (*Router)(nil)

func New() *Router {
	return &Router{fetchers: map[string]ports.Fetcher{}}
}

// Handle registers fetcher for each scheme.
func (r *Router) Handle(fetcher ports.Fetcher, schemes ...string) *Router {
	for _, scheme := range schemes {
		r.fetchers[strings.ToLower(scheme)] = fetcher
	}
	return r
}

func (r *Router) Fetch(ctx context.Context, url string) ([]byte, error) {
	scheme := Scheme(url)
	fetcher, ok := r.fetchers[scheme]
	if !ok {
		return nil, fmt.Errorf("%w: no fetcher for scheme %q", domain.ErrInvalidArgument, scheme)
	}
	return fetcher.Fetch(ctx, url)
}

// Scheme returns the lower-cased url scheme, or "file" for bare paths.
func Scheme(url string) string {
	scheme, _, ok := strings.Cut(strings.TrimSpace(url), "://")
	if !ok || scheme == "" || strings.ContainsAny(scheme, "/\\") {
		return "file"
	}
	return strings.ToLower(scheme)
}
