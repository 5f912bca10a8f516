package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xxxsen/common/logger"

	"github.com/xxxsen/pdfqa/internal/chunker"
	appErr "github.com/xxxsen/pdfqa/internal/pkg/errors"
)

const (
	defaultPort           = 8000
	defaultTopK           = 3
	defaultPreviewChunks  = 3
	defaultSnippetChars   = 300
	defaultBatchSize      = 32
	defaultMaxUploadBytes = 20 << 20
	defaultCollection     = "pdf_table"
)

type Config struct {
	Port        int               `json:"port"`
	LogConfig   logger.LogConfig  `json:"log_config"`
	Chunk       ChunkConfig       `json:"chunk"`
	Retrieval   RetrievalConfig   `json:"retrieval"`
	Ingest      IngestConfig      `json:"ingest"`
	AI          AIConfig          `json:"ai"`
	VectorStore VectorStoreConfig `json:"vector_store"`
	StatsCron   string            `json:"stats_cron"`
	CORSOrigins []string          `json:"cors_origins"`
	RateLimitMS int               `json:"rate_limit_ms"`
}

type ChunkConfig struct {
	Size      int    `json:"size"`
	Overlap   *int   `json:"overlap"`
	Separator string `json:"separator"`
}

func (c ChunkConfig) Options() chunker.Options {
	opts := chunker.Options{Size: c.Size, Separator: c.Separator}
	if c.Overlap != nil {
		opts.Overlap = *c.Overlap
	}
	return opts
}

type RetrievalConfig struct {
	TopK          int `json:"top_k"`
	PreviewChunks int `json:"preview_chunks"`
	SnippetChars  int `json:"snippet_chars"`
}

type IngestConfig struct {
	BatchSize      int   `json:"batch_size"`
	MaxUploadBytes int64 `json:"max_upload_bytes"`
}

type AIConfig struct {
	Provider       string `json:"provider"`
	Model          string `json:"model"`
	EmbedProvider  string `json:"embed_provider"`
	EmbedModel     string `json:"embed_model"`
	BaseURL        string `json:"base_url"`
	Timeout        int    `json:"timeout"`
	EmbedCacheSize int    `json:"embed_cache_size"`
	EmbedCacheTTL  int    `json:"embed_cache_ttl"`
}

type VectorStoreConfig struct {
	Type       string      `json:"type"`
	Collection string      `json:"collection"`
	Data       interface{} `json:"data"`
}

var defaultModels = map[string][2]string{
	"openai":     {"gpt-4o-mini", "text-embedding-3-small"},
	"gemini":     {"gemini-2.0-flash", "text-embedding-004"},
	"openrouter": {"openai/gpt-4o-mini", "openai/text-embedding-3-small"},
}

// Default returns a config with every field at its default.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a JSON config file. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.LogConfig.Level == "" {
		c.LogConfig.Level = "info"
	}
	if c.Chunk.Size == 0 {
		c.Chunk.Size = chunker.DefaultSize
	}
	if c.Chunk.Overlap == nil {
		overlap := chunker.DefaultOverlap
		c.Chunk.Overlap = &overlap
	}
	if c.Chunk.Separator == "" {
		c.Chunk.Separator = chunker.DefaultSeparator
	}
	if c.Retrieval.TopK == 0 {
		c.Retrieval.TopK = defaultTopK
	}
	if c.Retrieval.PreviewChunks == 0 {
		c.Retrieval.PreviewChunks = defaultPreviewChunks
	}
	if c.Retrieval.SnippetChars == 0 {
		c.Retrieval.SnippetChars = defaultSnippetChars
	}
	if c.Ingest.BatchSize == 0 {
		c.Ingest.BatchSize = defaultBatchSize
	}
	if c.Ingest.MaxUploadBytes == 0 {
		c.Ingest.MaxUploadBytes = defaultMaxUploadBytes
	}
	c.AI.Provider = strings.ToLower(strings.TrimSpace(c.AI.Provider))
	if c.AI.Provider == "" {
		c.AI.Provider = "openai"
	}
	c.AI.EmbedProvider = strings.ToLower(strings.TrimSpace(c.AI.EmbedProvider))
	if c.AI.EmbedProvider == "" {
		c.AI.EmbedProvider = c.AI.Provider
	}
	if c.AI.Model == "" {
		c.AI.Model = defaultModels[c.AI.Provider][0]
	}
	if c.AI.EmbedModel == "" {
		c.AI.EmbedModel = defaultModels[c.AI.EmbedProvider][1]
	}
	if c.AI.Timeout == 0 {
		c.AI.Timeout = 60
	}
	if c.VectorStore.Type == "" {
		c.VectorStore.Type = "pgvector"
	}
	if c.VectorStore.Collection == "" {
		c.VectorStore.Collection = defaultCollection
	}
}

func (c *Config) Validate() error {
	if err := c.Chunk.Options().Validate(); err != nil {
		return err
	}
	if c.Retrieval.TopK < 0 || c.Retrieval.PreviewChunks < 0 || c.Retrieval.SnippetChars < 0 {
		return fmt.Errorf("%w: retrieval values must not be negative", appErr.ErrInvalidConfig)
	}
	if c.Ingest.BatchSize < 0 || c.Ingest.MaxUploadBytes < 0 {
		return fmt.Errorf("%w: ingest values must not be negative", appErr.ErrInvalidConfig)
	}
	if c.RateLimitMS < 0 {
		return fmt.Errorf("%w: rate_limit_ms must not be negative", appErr.ErrInvalidConfig)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port out of range", appErr.ErrInvalidConfig)
	}
	return nil
}
