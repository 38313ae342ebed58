package storage

import (
	"context"

	"github.com/kozaktomas/photo-curator/internal/database"
	"github.com/kozaktomas/photo-curator/internal/logging"
	"go.uber.org/zap"
)

// URLResolver maps a stored image URL to one a client can fetch.
type URLResolver interface {
	Resolve(ctx context.Context, raw string) (string, error)
}

// ImageReader decorates a database.ImageReader so every returned URL goes
// through a URLResolver. A URL that fails to resolve is returned as stored.
type ImageReader struct {
	database.ImageReader
	resolver URLResolver
	logger   *zap.Logger
}

func NewImageReader(inner database.ImageReader, resolver URLResolver, logger *zap.Logger) *ImageReader {
	return &ImageReader{ImageReader: inner, resolver: resolver, logger: logging.OrNop(logger).Named("storage")}
}

func (r *ImageReader) GetImagesWithEmbeddings(ctx context.Context, projectID string) ([]database.StoredImage, error) {
	images, err := r.ImageReader.GetImagesWithEmbeddings(ctx, projectID)
	if err != nil {
		return nil, err
	}
	for i := range images {
		images[i].URL = r.resolve(ctx, images[i].ID, images[i].URL)
	}
	return images, nil
}

func (r *ImageReader) GetImageURLs(ctx context.Context, ids []string) (map[string]string, error) {
	urls, err := r.ImageReader.GetImageURLs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for id, u := range urls {
		urls[id] = r.resolve(ctx, id, u)
	}
	return urls, nil
}

func (r *ImageReader) resolve(ctx context.Context, id, raw string) string {
	if raw == "" {
		return raw
	}
	u, err := r.resolver.Resolve(ctx, raw)
	if err != nil {
		r.logger.Warn("keeping unsigned image url", zap.String("image_id", id), zap.Error(err))
		return raw
	}
	return u
}
