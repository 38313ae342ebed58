// Package storage resolves object storage image URLs (s3://bucket/key) into
// time-limited presigned HTTP URLs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kozaktomas/photo-curator/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const objectScheme = "s3://"

// Presigner signs GET requests for objects referenced by s3:// URLs.
type Presigner struct {
	client *minio.Client
	expiry time.Duration
}

// NewPresigner builds a MinIO client. No request is made until a URL is
// signed, and with a region configured signing needs no network at all.
func NewPresigner(cfg config.StorageConfig) (*Presigner, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("storage endpoint cannot be empty")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}

	expiry := cfg.URLExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &Presigner{client: client, expiry: expiry}, nil
}

// ParseObjectURL splits s3://bucket/key. ok is false for any other URL.
func ParseObjectURL(raw string) (bucket, key string, ok bool) {
	if !strings.HasPrefix(raw, objectScheme) {
		return "", "", false
	}
	bucket, key, found := strings.Cut(strings.TrimPrefix(raw, objectScheme), "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}

// Resolve returns a presigned URL for s3:// URLs and raw unchanged otherwise.
func (p *Presigner) Resolve(ctx context.Context, raw string) (string, error) {
	bucket, key, ok := ParseObjectURL(raw)
	if !ok {
		return raw, nil
	}
	u, err := p.client.PresignedGetObject(ctx, bucket, key, p.expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presigning %s: %w", raw, err)
	}
	return u.String(), nil
}
