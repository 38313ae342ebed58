package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed prices.yaml
var pricesYAML []byte

type Config struct {
	Database  DatabaseConfig
	OpenAI    OpenAIConfig
	Gemini    GeminiConfig
	LLM       LLMConfig
	Embedding EmbeddingConfig
	Storage   StorageConfig
	Search    SearchConfig
	Log       LogConfig
	Web       WebConfig
	Prices    PricesConfig
}

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type DatabaseConfig struct {
	Driver       string // postgres (default) or sqlite
	URL          string // PostgreSQL connection URL or SQLite DSN
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type OpenAIConfig struct {
	Token   string
	BaseURL string // OpenAI-compatible endpoint, e.g. https://openrouter.ai/api/v1
	Model   string
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

// LLM providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

type LLMConfig struct {
	Provider    string
	Temperature float64
}

type EmbeddingConfig struct {
	URL string // defaults to http://localhost:8000
	Dim int    // defaults to 512
}

// StorageConfig configures MinIO/S3 access used to presign s3:// image URLs.
// Storage is disabled when Endpoint is empty.
type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	URLExpiry time.Duration
}

// Enabled reports whether object storage URLs should be presigned.
func (s StorageConfig) Enabled() bool {
	return s.Endpoint != ""
}

// Album merge policies applied when a person already has an album.
const (
	MergeAppend  = "append"
	MergeReplace = "replace"
	MergeInsert  = "insert"
)

// Scene index implementations.
const (
	SceneIndexFlat = "flat"
	SceneIndexHNSW = "hnsw"
)

type SearchConfig struct {
	FaceThreshold  float64
	SceneThreshold float64
	SceneIndex     string
	MergePolicy    string
	BuildWorkers   int // concurrent album builds in "album build-dir"
}

type LogConfig struct {
	Level  string
	Format string // json or console
}

type WebConfig struct {
	Host           string
	Port           int
	APIToken       string
	AllowedOrigins []string
}

type PricesConfig struct {
	Models map[string]ModelPricing `yaml:"models"`
}

type ModelPricing struct {
	Standard RequestPricing `yaml:"standard"`
}

type RequestPricing struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads a non-negative float, falling back to defaultVal.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 {
		return f
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func splitList(s string) []string {
	var out []string
	for v := range strings.SplitSeq(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func Load() *Config {
	var prices PricesConfig
	if err := yaml.Unmarshal(pricesYAML, &prices); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded prices.yaml: " + err.Error())
	}

	return &Config{
		Database: DatabaseConfig{
			Driver:       strings.ToLower(envString("DATABASE_DRIVER", DriverPostgres)),
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		OpenAI: OpenAIConfig{
			Token:   os.Getenv("OPENAI_TOKEN"),
			BaseURL: os.Getenv("OPENAI_BASE_URL"),
			Model:   os.Getenv("OPENAI_MODEL"),
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
			Model:  os.Getenv("GEMINI_MODEL"),
		},
		LLM: LLMConfig{
			Provider:    strings.ToLower(envString("LLM_PROVIDER", ProviderOpenAI)),
			Temperature: envFloat("LLM_TEMPERATURE", 0.5),
		},
		Embedding: EmbeddingConfig{
			URL: os.Getenv("EMBEDDING_URL"),
			Dim: envInt("EMBEDDING_DIM", 512),
		},
		Storage: StorageConfig{
			Endpoint:  os.Getenv("MINIO_ENDPOINT"),
			AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			Region:    envString("MINIO_REGION", "us-east-1"),
			UseSSL:    envBool("MINIO_USE_SSL", true),
			URLExpiry: envDuration("MINIO_URL_EXPIRY", time.Hour),
		},
		Search: SearchConfig{
			FaceThreshold:  envFloat("FACE_MATCH_THRESHOLD", 0.4),
			SceneThreshold: envFloat("SCENE_MATCH_THRESHOLD", 0.25),
			SceneIndex:     strings.ToLower(envString("SCENE_INDEX", SceneIndexFlat)),
			MergePolicy:    strings.ToLower(envString("ALBUM_MERGE_POLICY", MergeAppend)),
			BuildWorkers:   envInt("ALBUM_BUILD_WORKERS", 4),
		},
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: strings.ToLower(envString("LOG_FORMAT", "json")),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", "0.0.0.0"),
			Port:           envInt("WEB_PORT", 8080),
			APIToken:       os.Getenv("WEB_API_TOKEN"),
			AllowedOrigins: splitList(os.Getenv("WEB_ALLOWED_ORIGINS")),
		},
		Prices: prices,
	}
}

// Validate checks the settings every command relies on.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.URL == "" {
			return errors.New("DATABASE_URL environment variable is required")
		}
	case DriverSQLite:
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.Database.Driver)
	}

	switch c.Search.MergePolicy {
	case MergeAppend, MergeReplace, MergeInsert:
	default:
		return fmt.Errorf("unsupported ALBUM_MERGE_POLICY %q", c.Search.MergePolicy)
	}

	switch c.Search.SceneIndex {
	case SceneIndexFlat, SceneIndexHNSW:
	default:
		return fmt.Errorf("unsupported SCENE_INDEX %q", c.Search.SceneIndex)
	}

	if c.Search.FaceThreshold < 0 || c.Search.FaceThreshold > 1 ||
		c.Search.SceneThreshold < 0 || c.Search.SceneThreshold > 1 {
		return errors.New("match thresholds must be within [0, 1]")
	}
	return nil
}

// ValidateLLM checks that the selected language model provider has credentials.
func (c *Config) ValidateLLM() error {
	switch c.LLM.Provider {
	case ProviderOpenAI:
		if c.OpenAI.Token == "" {
			return errors.New("OPENAI_TOKEN environment variable is required")
		}
	case ProviderGemini:
		if c.Gemini.APIKey == "" {
			return errors.New("GEMINI_API_KEY environment variable is required")
		}
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER %q", c.LLM.Provider)
	}
	return nil
}

// SQLitePath returns the SQLite DSN, defaulting to a local file.
func (c *DatabaseConfig) SQLitePath() string {
	if c.URL == "" {
		return "photo-curator.db"
	}
	return c.URL
}

// GetModelPricing returns pricing for a specific model, with fallback defaults
func (c *Config) GetModelPricing(modelName string) ModelPricing {
	if pricing, ok := c.Prices.Models[modelName]; ok {
		return pricing
	}
	// Return zero pricing if model not found
	return ModelPricing{}
}
