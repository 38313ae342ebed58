// Package albums builds person albums by matching a reference face against
// every stored face of a project.
package albums

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/photo-curator/internal/config"
	"github.com/kozaktomas/photo-curator/internal/database"
	"github.com/kozaktomas/photo-curator/internal/embedding"
	"github.com/kozaktomas/photo-curator/internal/errs"
	"github.com/kozaktomas/photo-curator/internal/logging"
	"github.com/kozaktomas/photo-curator/internal/metrics"
	"go.uber.org/zap"
)

// DefaultThreshold is the minimum cosine similarity for a face match. Inclusive.
const DefaultThreshold = 0.4

// FaceGateway detects and embeds faces.
type FaceGateway interface {
	ExtractFaces(ctx context.Context, imageData []byte) ([]embedding.Face, error)
	EmbedFace(ctx context.Context, face embedding.Face) ([]float32, error)
}

// Store is the part of the identity store the builder needs.
type Store interface {
	database.FaceReader
	database.AlbumWriter
}

// Options configures a Builder. Zero values select the defaults.
type Options struct {
	Threshold    *float64 // nil selects DefaultThreshold
	MergePolicy  string // config.MergeAppend, config.MergeReplace or config.MergeInsert
	MaxImageSize int
}

// Builder turns a reference photo into an album of every image showing the same face.
type Builder struct {
	faces     FaceGateway
	store     Store
	threshold float64
	policy    string
	maxSize   int
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewBuilder returns a Builder. Logger and metrics may be nil.
func NewBuilder(faces FaceGateway, store Store, opts Options, logger *zap.Logger, m *metrics.Metrics) *Builder {
	b := &Builder{
		faces:     faces,
		store:     store,
		threshold: DefaultThreshold,
		policy:    opts.MergePolicy,
		maxSize:   opts.MaxImageSize,
		logger:    logging.OrNop(logger).Named("albums"),
		metrics:   m,
	}
	if opts.Threshold != nil {
		b.threshold = *opts.Threshold
	}
	if b.policy == "" {
		b.policy = config.MergeAppend
	}
	if b.maxSize <= 0 {
		b.maxSize = embedding.MaxReferenceSize
	}
	return b
}

// Result describes a successful build.
type Result struct {
	Album *database.Album
	// Matched holds the image ids found for this reference, in face id order.
	Matched []string
	// Created is true when a new album row was inserted.
	Created bool
}

// Build matches the single face in referenceImage against the stored faces
// of projectID and records the matching images in personName's album.
// Nothing is written when any step fails.
func (b *Builder) Build(ctx context.Context, projectID, personName string, referenceImage []byte) (*Result, error) {
	res, err := b.build(ctx, projectID, personName, referenceImage)
	b.metrics.ObserveAlbumBuild(err == nil)
	if err != nil {
		b.logger.Warn("album build failed",
			zap.String("project_id", projectID),
			zap.String("person", personName),
			zap.Error(err))
	}
	return res, err
}

func (b *Builder) build(ctx context.Context, projectID, personName string, referenceImage []byte) (*Result, error) {
	name := database.NormalizePersonName(personName)
	if projectID == "" {
		return nil, errs.New(errs.KindValidation, "project id is required")
	}
	if name == "" {
		return nil, errs.New(errs.KindValidation, "person name is required")
	}

	reference, err := b.referenceEmbedding(ctx, referenceImage)
	if err != nil {
		return nil, err
	}

	faces, err := b.store.GetFaceEmbeddings(ctx, projectID)
	if err != nil {
		return nil, errs.Upstream("loading face embeddings", err)
	}
	if len(faces) == 0 {
		return nil, errs.ErrNoEmbeddingsAvailable
	}

	matched := b.match(reference, faces)
	if len(matched) == 0 {
		return nil, errs.ErrNoMatchingFaces
	}

	return b.persist(ctx, projectID, name, matched)
}

// referenceEmbedding validates the reference image and embeds its only face.
func (b *Builder) referenceEmbedding(ctx context.Context, data []byte) ([]float64, error) {
	if len(data) == 0 {
		return nil, errs.ErrEmptyImage
	}
	prepared, err := embedding.PrepareReference(data, b.maxSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrUndecodableImage, err)
	}

	faces, err := b.faces.ExtractFaces(ctx, prepared)
	if err != nil {
		return nil, errs.Upstream("extracting faces", err)
	}
	switch {
	case len(faces) == 0:
		return nil, errs.ErrNoFaceDetected
	case len(faces) > 1:
		return nil, errs.ErrMultipleFacesDetected
	}

	vec, err := b.faces.EmbedFace(ctx, faces[0])
	if err != nil {
		return nil, errs.Upstream("embedding reference face", err)
	}
	if len(vec) == 0 {
		return nil, errs.Upstream("embedding reference face", errors.New("empty embedding"))
	}
	return database.NormalizeL2(vec), nil
}

// match returns the distinct image ids whose faces reach the threshold.
func (b *Builder) match(reference []float64, faces []database.FaceRecord) []string {
	var matched []string
	seen := make(map[string]struct{})
	skipped := 0
	for _, f := range faces {
		if len(f.Embedding) != len(reference) {
			skipped++
			continue
		}
		if _, ok := seen[f.ImageID]; ok {
			continue
		}
		if database.Dot(reference, database.NormalizeL2(f.Embedding)) >= b.threshold {
			seen[f.ImageID] = struct{}{}
			matched = append(matched, f.ImageID)
		}
	}
	if skipped > 0 {
		b.logger.Warn("skipped faces with mismatched embedding dimension",
			zap.Int("count", skipped), zap.Int("dim", len(reference)))
	}
	return matched
}

func (b *Builder) persist(ctx context.Context, projectID, name string, matched []string) (*Result, error) {
	var existing *database.Album
	if b.policy != config.MergeInsert {
		var err error
		existing, err = b.store.GetAlbumByPerson(ctx, projectID, name)
		if err != nil {
			return nil, errs.Upstream("loading album", err)
		}
	}

	if existing == nil {
		now := time.Now().UTC()
		album := &database.Album{
			ID:         uuid.NewString(),
			ProjectID:  projectID,
			PersonName: name,
			ImageGroup: matched,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := b.store.InsertAlbum(ctx, album); err != nil {
			return nil, errs.Upstream("inserting album", err)
		}
		b.logger.Info("album created",
			zap.String("album_id", album.ID),
			zap.String("person", name),
			zap.Int("images", len(matched)))
		return &Result{Album: album, Matched: matched, Created: true}, nil
	}

	group := matched
	if b.policy == config.MergeAppend {
		group = Union(existing.ImageGroup, matched)
	}
	if err := b.store.UpdateAlbumImages(ctx, existing.ID, group); err != nil {
		return nil, errs.Upstream("updating album", err)
	}
	existing.ImageGroup = group
	existing.UpdatedAt = time.Now().UTC()
	b.logger.Info("album updated",
		zap.String("album_id", existing.ID),
		zap.String("person", name),
		zap.String("policy", b.policy),
		zap.Int("images", len(group)))
	return &Result{Album: existing, Matched: matched}, nil
}

// Union returns a followed by the ids of b not already present, without duplicates.
func Union(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	seen := make(map[string]struct{}, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
