package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	Database struct {
		ConnectionString string `yaml:"connection_string"`
		MaxConns         int    `yaml:"max_conns"`
		ConnLifetimeMins int    `yaml:"conn_lifetime_mins"`
		ConnIdleMins     int    `yaml:"conn_idle_mins"`
	} `yaml:"database"`
	Embeddings struct {
		BaseURL     string `yaml:"base_url"`
		Model       string `yaml:"model"`
		Dimensions  int    `yaml:"dimensions"`
		TimeoutSecs int    `yaml:"timeout_secs"`
	} `yaml:"embeddings"`
	Processing struct {
		ChunkSize    int `yaml:"chunk_size"`
		ChunkOverlap int `yaml:"chunk_overlap"`
		MinChunkLen  int `yaml:"min_chunk_len"`
	} `yaml:"processing"`
	Retrieval struct {
		TopK                int     `yaml:"top_k"`
		MinSimilarity       float64 `yaml:"min_similarity"`
		ConfidenceThreshold float64 `yaml:"confidence_threshold"`
		CacheTTLSecs        int     `yaml:"cache_ttl_secs"`
	} `yaml:"retrieval"`
	Gaps struct {
		BufferSize int `yaml:"buffer_size"`
	} `yaml:"gaps"`
	Harness struct {
		Concurrency int `yaml:"concurrency"`
	} `yaml:"harness"`
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
}

// Load loads configuration from file or returns defaults
func Load() (*Config, error) {
	cfg := Default()

	configPath := filepath.Join(os.Getenv("HOME"), ".property-assistant", "config.yaml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(cfg)
	return cfg, nil
}

// Save saves configuration to file
func (c *Config) Save() error {
	configDir := filepath.Join(os.Getenv("HOME"), ".property-assistant")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configPath := filepath.Join(configDir, "config.yaml")
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(configPath, data, 0644)
}

// Default returns default configuration
func Default() *Config {
	cfg := &Config{}

	cfg.Database.ConnectionString = "postgres://postgres@localhost/postgres?sslmode=disable"
	cfg.Database.MaxConns = 10
	cfg.Database.ConnLifetimeMins = 60
	cfg.Database.ConnIdleMins = 30
	cfg.Embeddings.BaseURL = "http://localhost:11434"
	cfg.Embeddings.Model = "nomic-embed-text"
	cfg.Embeddings.Dimensions = 768
	cfg.Embeddings.TimeoutSecs = 30
	cfg.Processing.ChunkSize = 500
	cfg.Processing.ChunkOverlap = 10
	cfg.Processing.MinChunkLen = 20
	cfg.Retrieval.TopK = 5
	cfg.Retrieval.MinSimilarity = 0.35
	cfg.Retrieval.ConfidenceThreshold = 0.55
	cfg.Retrieval.CacheTTLSecs = 0
	cfg.Gaps.BufferSize = 128
	cfg.Harness.Concurrency = 2
	cfg.Server.Addr = ":8080"

	return cfg
}

// applyDefaults backfills zero values after parsing a partial config file.
func applyDefaults(cfg *Config) {
	def := Default()

	if cfg.Database.ConnectionString == "" {
		cfg.Database.ConnectionString = def.Database.ConnectionString
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = def.Database.MaxConns
	}
	if cfg.Database.ConnLifetimeMins == 0 {
		cfg.Database.ConnLifetimeMins = def.Database.ConnLifetimeMins
	}
	if cfg.Database.ConnIdleMins == 0 {
		cfg.Database.ConnIdleMins = def.Database.ConnIdleMins
	}
	if cfg.Embeddings.BaseURL == "" {
		cfg.Embeddings.BaseURL = def.Embeddings.BaseURL
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = def.Embeddings.Model
	}
	if cfg.Embeddings.Dimensions == 0 {
		cfg.Embeddings.Dimensions = def.Embeddings.Dimensions
	}
	if cfg.Embeddings.TimeoutSecs == 0 {
		cfg.Embeddings.TimeoutSecs = def.Embeddings.TimeoutSecs
	}
	if cfg.Processing.ChunkSize == 0 {
		cfg.Processing.ChunkSize = def.Processing.ChunkSize
	}
	if cfg.Processing.MinChunkLen == 0 {
		cfg.Processing.MinChunkLen = def.Processing.MinChunkLen
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = def.Retrieval.TopK
	}
	if cfg.Retrieval.MinSimilarity == 0 {
		cfg.Retrieval.MinSimilarity = def.Retrieval.MinSimilarity
	}
	if cfg.Retrieval.ConfidenceThreshold == 0 {
		cfg.Retrieval.ConfidenceThreshold = def.Retrieval.ConfidenceThreshold
	}
	if cfg.Gaps.BufferSize == 0 {
		cfg.Gaps.BufferSize = def.Gaps.BufferSize
	}
	if cfg.Harness.Concurrency == 0 {
		cfg.Harness.Concurrency = def.Harness.Concurrency
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = def.Server.Addr
	}
}
