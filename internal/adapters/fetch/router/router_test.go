package router

import (
	"context"
	"testing"

	"github.com/bnema/geppetto/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticFetcher string

func (s staticFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	return []byte(string(s) + ":" + url), nil
}

func TestRouterDispatchesOnScheme(t *testing.T) {
	t.Parallel()

	r := New().
		Handle(staticFetcher("file"), "file").
		Handle(staticFetcher("web"), "http", "https").
		Handle(staticFetcher("s3"), "S3")

	tests := map[string]string{
		"models/a.yaml":            "file:models/a.yaml",
		"/abs/a.yaml":              "file:/abs/a.yaml",
		"file:///abs/a.yaml":       "file:file:///abs/a.yaml",
		"https://example.com/a":    "web:https://example.com/a",
		"HTTP://example.com/a":     "web:HTTP://example.com/a",
		"s3://bucket/key.yaml":     "s3:s3://bucket/key.yaml",
		"dir/with://odd/name.yaml": "file:dir/with://odd/name.yaml",
	}
	for url, want := range tests {
		got, err := r.Fetch(context.Background(), url)
		require.NoError(t, err, url)
		assert.Equal(t, want, string(got))
	}

	_, err := r.Fetch(context.Background(), "ftp://example.com/a")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}
