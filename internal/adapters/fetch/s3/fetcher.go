package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/bnema/geppetto/internal/domain"
	"github.com/bnema/geppetto/internal/ports"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const maxObjectBytes = 64 << 20

var ErrTooLarge = errors.New("object exceeds size limit")

type Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// Fetcher reads model documents from s3://bucket/key urls.
type Fetcher struct {
	client *minio.Client
}

var _ ports.Fetcher = (*Fetcher)(nil)

func New(cfg Config) (*Fetcher, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("%w: s3 endpoint is required", domain.ErrInvalidArgument)
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	var creds *credentials.Credentials
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	switch {
	case access != "" && secret != "":
		creds = credentials.NewStaticV4(access, secret, "")
	case access == "" && secret == "":
		creds = credentials.NewStatic("", "", "", credentials.SignatureAnonymous)
	default:
		return nil, fmt.Errorf("%w: s3 access key and secret key must be set together", domain.ErrInvalidArgument)
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:        creds,
		Secure:       cfg.UseSSL,
		Region:       region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &Fetcher{client: client}, nil
}

func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	bucket, key, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}

	obj, err := f.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get s3 object %s/%s: %w", bucket, key, err)
	}
	defer obj.Close()

	content, err := io.ReadAll(io.LimitReader(obj, maxObjectBytes+1))
	if err != nil {
		switch minio.ToErrorResponse(err).Code {
		case "NoSuchKey", "NoSuchBucket":
			return nil, fmt.Errorf("get s3 object %s/%s: %w", bucket, key, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("read s3 object %s/%s: %w", bucket, key, err)
	}
	if len(content) > maxObjectBytes {
		return nil, fmt.Errorf("get s3 object %s/%s: %w", bucket, key, ErrTooLarge)
	}
	return content, nil
}

// ParseURL splits s3://bucket/key.
func ParseURL(rawURL string) (bucket, key string, err error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", "", fmt.Errorf("%w: parse s3 url: %v", domain.ErrInvalidArgument, err)
	}
	if parsed.Scheme != "s3" {
		return "", "", fmt.Errorf("%w: url must use s3", domain.ErrInvalidArgument)
	}
	bucket = parsed.Host
	key = strings.TrimLeft(parsed.Path, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: s3 url needs a bucket and a key", domain.ErrInvalidArgument)
	}
	return bucket, key, nil
}
