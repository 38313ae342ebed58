// Package people resolves person names to the images they all appear in.
package people

import (
	"context"
	"fmt"

	"github.com/kozaktomas/photo-curator/internal/compose"
	"github.com/kozaktomas/photo-curator/internal/database"
	"github.com/kozaktomas/photo-curator/internal/errs"
	"github.com/kozaktomas/photo-curator/internal/logging"
	"go.uber.org/zap"
)

// Store is the part of the identity store the resolver reads.
type Store interface {
	database.AlbumReader
	GetImageURLs(ctx context.Context, ids []string) (map[string]string, error)
}

// Resolver maps person names to the images their albums hold.
type Resolver struct {
	store  Store
	logger *zap.Logger
}

// NewResolver returns a Resolver reading albums from store.
func NewResolver(store Store, logger *zap.Logger) *Resolver {
	return &Resolver{store: store, logger: logging.OrNop(logger).Named("people")}
}

// Resolve returns the images in which every named person appears, in the
// album order of the first name. Each name needs an album in the project;
// a missing one fails the whole call. An empty intersection is a valid
// result.
func (r *Resolver) Resolve(ctx context.Context, projectID string, names []string) (*compose.ImageSet, error) {
	if len(names) == 0 {
		return nil, errs.New(errs.KindValidation, "no people to resolve")
	}

	groups := make([][]string, 0, len(names))
	for _, name := range names {
		key := database.NormalizePersonName(name)
		album, err := r.store.GetAlbumByPerson(ctx, projectID, key)
		if err != nil {
			return nil, errs.Upstream(fmt.Sprintf("loading album for %q", name), err)
		}
		if album == nil {
			return nil, fmt.Errorf("%w for person %q", errs.ErrAlbumNotFound, name)
		}
		r.logger.Debug("album resolved",
			zap.String("person", key),
			zap.String("album_id", album.ID),
			zap.Int("images", len(album.ImageGroup)))
		groups = append(groups, album.ImageGroup)
	}

	ids := compose.IntersectIDs(groups[0], groups[1:]...)
	if len(ids) == 0 {
		return compose.NewImageSet(nil, nil), nil
	}

	urls, err := r.store.GetImageURLs(ctx, ids)
	if err != nil {
		return nil, errs.Upstream("loading image urls", err)
	}
	return compose.NewImageSet(ids, urls), nil
}
