package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bnema/geppetto/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchResolvesPlainAndFileURLs(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "models"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "models", "cell.yaml"), []byte("id: cell\n"), 0o600))

	fetcher := New(root)
	for _, url := range []string{
		"models/cell.yaml",
		"file://models/cell.yaml",
		"file://" + filepath.Join(root, "models", "cell.yaml"),
		filepath.Join(root, "models", "cell.yaml"),
	} {
		content, err := fetcher.Fetch(context.Background(), url)
		require.NoError(t, err, url)
		assert.Equal(t, "id: cell\n", string(content))
	}
}

func TestFetchErrors(t *testing.T) {
	t.Parallel()

	fetcher := New(t.TempDir())

	_, err := fetcher.Fetch(context.Background(), "missing.yaml")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = fetcher.Fetch(context.Background(), " ")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = fetcher.Fetch(ctx, "missing.yaml")
	assert.ErrorIs(t, err, context.Canceled)
}
