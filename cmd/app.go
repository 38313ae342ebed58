package cmd

import (
	"context"
	"fmt"

	"github.com/kozaktomas/photo-curator/internal/ai"
	"github.com/kozaktomas/photo-curator/internal/albums"
	"github.com/kozaktomas/photo-curator/internal/config"
	"github.com/kozaktomas/photo-curator/internal/database"
	"github.com/kozaktomas/photo-curator/internal/database/postgres"
	"github.com/kozaktomas/photo-curator/internal/database/sqlite"
	"github.com/kozaktomas/photo-curator/internal/embedding"
	"github.com/kozaktomas/photo-curator/internal/logging"
	"github.com/kozaktomas/photo-curator/internal/metrics"
	"github.com/kozaktomas/photo-curator/internal/people"
	"github.com/kozaktomas/photo-curator/internal/pipeline"
	"github.com/kozaktomas/photo-curator/internal/query"
	"github.com/kozaktomas/photo-curator/internal/scene"
	"github.com/kozaktomas/photo-curator/internal/storage"
	"go.uber.org/zap"
)

// app holds the collaborators shared by the commands.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	store   *catalog
	gateway *embedding.Client
}

// catalog is the identity store with image URLs routed through object
// storage presigning when it is configured.
type catalog struct {
	database.Store
	images database.ImageReader
}

func (c *catalog) GetImagesWithEmbeddings(ctx context.Context, projectID string) ([]database.StoredImage, error) {
	return c.images.GetImagesWithEmbeddings(ctx, projectID)
}

func (c *catalog) GetImageURLs(ctx context.Context, ids []string) (map[string]string, error) {
	return c.images.GetImageURLs(ctx, ids)
}

func loadConfig() (*config.Config, error) {
	cfg := config.Load()
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newApp loads configuration, builds the logger and opens the store.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Sync()
		return nil, err
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.New(),
		store:   store,
		gateway: embedding.NewClient(cfg.Embedding.URL),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing store", zap.Error(err))
	}
	a.logger.Sync()
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*catalog, error) {
	var store database.Store
	switch cfg.Database.Driver {
	case config.DriverSQLite:
		s, err := sqlite.Open(ctx, cfg.Database.SQLitePath())
		if err != nil {
			return nil, err
		}
		store = s
	default:
		s, err := postgres.Open(ctx, &cfg.Database)
		if err != nil {
			return nil, err
		}
		store = s
	}
	logger.Debug("store opened", zap.String("driver", cfg.Database.Driver))

	c := &catalog{Store: store, images: store}
	if cfg.Storage.Enabled() {
		presigner, err := storage.NewPresigner(cfg.Storage)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("object storage: %w", err)
		}
		c.images = storage.NewImageReader(store, presigner, logger)
	}
	return c, nil
}

func newLanguageModel(ctx context.Context, cfg *config.Config) (ai.LanguageModel, error) {
	if err := cfg.ValidateLLM(); err != nil {
		return nil, err
	}

	switch cfg.LLM.Provider {
	case config.ProviderGemini:
		model := modelOrDefault(cfg.Gemini.Model, ai.DefaultGeminiModel)
		return ai.NewGeminiModel(ctx, cfg.Gemini.APIKey, model, cfg.LLM.Temperature, pricing(cfg, model))
	default:
		model := modelOrDefault(cfg.OpenAI.Model, ai.DefaultOpenAIModel)
		return ai.NewOpenAIModel(ai.OpenAIOptions{
			APIKey:      cfg.OpenAI.Token,
			BaseURL:     cfg.OpenAI.BaseURL,
			Model:       model,
			Temperature: cfg.LLM.Temperature,
			Pricing:     pricing(cfg, model),
			JSONMode:    cfg.OpenAI.BaseURL == "",
		}), nil
	}
}

func modelOrDefault(model, def string) string {
	if model == "" {
		return def
	}
	return model
}

func pricing(cfg *config.Config, model string) ai.RequestPricing {
	p := cfg.GetModelPricing(model).Standard
	return ai.RequestPricing{Input: p.Input, Output: p.Output}
}

// newPipeline wires the search state machine. The returned model reports
// token usage.
func (a *app) newPipeline(ctx context.Context) (*pipeline.Pipeline, ai.LanguageModel, error) {
	model, err := newLanguageModel(ctx, a.cfg)
	if err != nil {
		return nil, nil, err
	}

	sceneResolver := scene.NewResolver(a.gateway, a.store, scene.Options{
		Threshold: &a.cfg.Search.SceneThreshold,
		IndexKind: a.cfg.Search.SceneIndex,
	}, a.logger, a.metrics)

	opts := []pipeline.Option{pipeline.WithLogger(a.logger), pipeline.WithMetrics(a.metrics)}
	if a.cfg.OpenAI.Token != "" {
		opts = append(opts, pipeline.WithTranscriber(ai.NewOpenAITranscriber(a.cfg.OpenAI.Token, a.cfg.OpenAI.BaseURL)))
	}

	p := pipeline.New(
		a.store,
		query.NewInterpreter(model, a.logger),
		people.NewResolver(a.store, a.logger),
		sceneResolver,
		opts...,
	)
	return p, model, nil
}

func (a *app) newBuilder() *albums.Builder {
	return albums.NewBuilder(a.gateway, a.store, albums.Options{
		Threshold:   &a.cfg.Search.FaceThreshold,
		MergePolicy: a.cfg.Search.MergePolicy,
	}, a.logger, a.metrics)
}
