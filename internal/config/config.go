package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Defaults match the reference deployment: 512-D embeddings (buffalo_l),
// five enrollment samples, accept threshold 0.5.
const (
	DefaultEmbeddingDim  = 512
	DefaultSampleCount   = 5
	DefaultThreshold     = 0.5
	DefaultEmbeddingsDir = "./data/embeddings"
	DefaultDatabaseDSN   = "./data/facegate.db"
	DefaultExtractorURL  = "http://localhost:8000"
)

type Config struct {
	Extractor ExtractorConfig `yaml:"extractor"`
	Matching  MatchingConfig  `yaml:"matching"`
	Storage   StorageConfig   `yaml:"storage"`
	Log       LogConfig       `yaml:"log"`
}

type ExtractorConfig struct {
	URL string `yaml:"url"` // face detection/embedding service
	Dim int    `yaml:"dim"` // embedding dimensionality the service produces
}

type MatchingConfig struct {
	Threshold   float64 `yaml:"threshold"` // minimum mean similarity to accept a match
	SampleCount int     `yaml:"samples"`   // embeddings captured per enrollment
}

type StorageConfig struct {
	EmbeddingsDir string `yaml:"embeddings_dir"` // one template artifact per user
	DatabaseDSN   string `yaml:"database_dsn"`   // sqlite path or postgres:// / mysql:// DSN
}

type LogConfig struct {
	Level string `yaml:"level"` // logrus level name, defaults to info
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

// envFloat reads an environment variable and parses it as a float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultVal
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// Load builds the configuration from defaults, an optional YAML config file
// (FACEGATE_CONFIG), and environment variables, in increasing precedence.
func Load() (*Config, error) {
	cfg := &Config{
		Extractor: ExtractorConfig{
			URL: DefaultExtractorURL,
			Dim: DefaultEmbeddingDim,
		},
		Matching: MatchingConfig{
			Threshold:   DefaultThreshold,
			SampleCount: DefaultSampleCount,
		},
		Storage: StorageConfig{
			EmbeddingsDir: DefaultEmbeddingsDir,
			DatabaseDSN:   DefaultDatabaseDSN,
		},
		Log: LogConfig{Level: "info"},
	}

	if path := os.Getenv("FACEGATE_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.Extractor.URL = envStr("EXTRACTOR_URL", cfg.Extractor.URL)
	cfg.Extractor.Dim = envInt("EMBEDDING_DIM", cfg.Extractor.Dim)
	cfg.Matching.Threshold = envFloat("SIMILARITY_THRESHOLD", cfg.Matching.Threshold)
	cfg.Matching.SampleCount = envInt("ENROLLMENT_SAMPLES", cfg.Matching.SampleCount)
	cfg.Storage.EmbeddingsDir = envStr("EMBEDDINGS_DIR", cfg.Storage.EmbeddingsDir)
	cfg.Storage.DatabaseDSN = envStr("DATABASE_DSN", cfg.Storage.DatabaseDSN)
	cfg.Log.Level = envStr("LOG_LEVEL", cfg.Log.Level)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges that would otherwise surface as confusing
// failures deep inside the engines.
func (c *Config) Validate() error {
	if c.Extractor.Dim <= 0 {
		return fmt.Errorf("embedding dim must be positive, got %d", c.Extractor.Dim)
	}
	if c.Matching.Threshold < -1 || c.Matching.Threshold > 1 {
		return fmt.Errorf("similarity threshold must be in [-1, 1], got %g", c.Matching.Threshold)
	}
	if c.Matching.SampleCount <= 0 {
		return fmt.Errorf("enrollment sample count must be positive, got %d", c.Matching.SampleCount)
	}
	return nil
}
