// Package scene ranks project images against a free-text scene description.
package scene

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/kozaktomas/photo-curator/internal/compose"
	"github.com/kozaktomas/photo-curator/internal/database"
	"github.com/kozaktomas/photo-curator/internal/errs"
	"github.com/kozaktomas/photo-curator/internal/logging"
	"github.com/kozaktomas/photo-curator/internal/metrics"
	"github.com/kozaktomas/photo-curator/internal/vectorindex"
	"go.uber.org/zap"
)

// DefaultThreshold is the minimum cosine similarity for a scene match. Inclusive.
const DefaultThreshold = 0.25

// TextEmbedder embeds text into the same space as the stored image embeddings.
type TextEmbedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// Options configures a Resolver. Zero values select the defaults.
type Options struct {
	Threshold *float64 // nil selects DefaultThreshold
	IndexKind string   // "flat" or "hnsw"
}

// Match is one image above the threshold.
type Match struct {
	ImageID string  `json:"image_id"`
	URL     string  `json:"image_link"`
	Score   float64 `json:"score"`
}

// Result holds the matches ordered by descending score.
type Result struct {
	Matches []Match `json:"matches"`
	Skipped int     `json:"skipped"`
}

// ImageSet converts the matches into a composable set, keeping score order.
func (r *Result) ImageSet() *compose.ImageSet {
	if r == nil {
		return nil
	}
	ids := make([]string, len(r.Matches))
	urls := make(map[string]string, len(r.Matches))
	for i, m := range r.Matches {
		ids[i] = m.ImageID
		urls[m.ImageID] = m.URL
	}
	return compose.NewImageSet(ids, urls)
}

// Resolver answers scene searches from the stored per-image embeddings.
type Resolver struct {
	embedder  TextEmbedder
	images    database.ImageReader
	threshold float64
	indexKind string
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewResolver returns a Resolver. A nil logger or metrics set is allowed.
func NewResolver(embedder TextEmbedder, images database.ImageReader, opts Options, logger *zap.Logger, m *metrics.Metrics) *Resolver {
	r := &Resolver{
		embedder:  embedder,
		images:    images,
		threshold: DefaultThreshold,
		indexKind: opts.IndexKind,
		logger:    logging.OrNop(logger).Named("scene"),
		metrics:   m,
	}
	if opts.Threshold != nil {
		r.threshold = *opts.Threshold
	}
	return r
}

type row struct {
	id  string
	url string
}

// Resolve builds a fresh index over the project's image embeddings, embeds
// the description and returns every image scoring at least the threshold.
// Images with unparseable embeddings are skipped.
func (r *Resolver) Resolve(ctx context.Context, projectID, description string) (*Result, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, errs.New(errs.KindValidation, "empty scene description")
	}

	stored, err := r.images.GetImagesWithEmbeddings(ctx, projectID)
	if err != nil {
		return nil, errs.Upstream("loading image embeddings", err)
	}
	if len(stored) == 0 {
		return nil, errs.ErrNoSceneEmbeddings
	}

	start := time.Now()
	index, err := vectorindex.New(r.indexKind)
	if err != nil {
		return nil, errs.Wrap(errs.KindValidation, "scene index", err)
	}

	rows := make([]row, 0, len(stored))
	skipped := 0
	for _, img := range stored {
		vec, err := database.ParseEmbedding(img.RawEmbedding)
		if err == nil {
			err = index.Add(vec)
		}
		if err != nil {
			skipped++
			r.logger.Warn("skipping image embedding",
				zap.String("image_id", img.ID),
				zap.Error(err))
			continue
		}
		rows = append(rows, row{id: img.ID, url: img.URL})
	}
	r.metrics.AddSkippedEmbeddings(skipped)

	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: all %d stored embeddings are malformed", errs.ErrNoSceneEmbeddings, skipped)
	}

	query, err := r.embedder.EmbedText(ctx, description)
	if err != nil {
		return nil, errs.Upstream("embedding scene description", err)
	}

	hits, err := index.Search(query, index.Len())
	if err != nil {
		return nil, errs.Upstream("searching scene index", err)
	}

	result := &Result{Skipped: skipped}
	for _, h := range hits {
		if math.IsNaN(h.Score) || h.Score < r.threshold {
			continue
		}
		result.Matches = append(result.Matches, Match{
			ImageID: rows[h.Index].id,
			URL:     rows[h.Index].url,
			Score:   h.Score,
		})
	}

	r.logger.Debug("scene resolved",
		zap.String("project_id", projectID),
		zap.String("index", r.indexKind),
		zap.Int("indexed", len(rows)),
		zap.Int("matches", len(result.Matches)),
		zap.Duration("duration", time.Since(start)))
	return result, nil
}
