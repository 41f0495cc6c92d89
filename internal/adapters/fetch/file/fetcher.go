package file

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/bnema/geppetto/internal/domain"
	"github.com/bnema/geppetto/internal/ports"
)

// Fetcher reads model documents from the local filesystem. Relative paths
// resolve against Root.
type Fetcher struct {
	Root string
}

var _ ports.Fetcher = (*Fetcher)(nil)

func New(root string) *Fetcher {
	return &Fetcher{Root: root}
}

func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := f.Path(rawURL)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", path, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return content, nil
}

// Path maps a plain path or file:// url onto the filesystem.
func (f *Fetcher) Path(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", fmt.Errorf("%w: file url is required", domain.ErrInvalidArgument)
	}

	path := rawURL
	if strings.HasPrefix(rawURL, "file://") {
		parsed, err := url.Parse(rawURL)
		if err != nil {
			return "", fmt.Errorf("%w: parse file url: %v", domain.ErrInvalidArgument, err)
		}
		path = parsed.Path
		if parsed.Host != "" && parsed.Host != "localhost" {
			// file://models/a.yaml names a relative path
			path = filepath.Join(parsed.Host, parsed.Path)
		}
	}

	if !filepath.IsAbs(path) && f.Root != "" {
		path = filepath.Join(f.Root, path)
	}
	return filepath.Clean(path), nil
}
