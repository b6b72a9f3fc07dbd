// Package config loads PolyRAG configuration from environment variables.
// A .env file in the working directory is honored when present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the PolyRAG server.
type Config struct {
	Port        int
	Version     string
	Environment string

	Language    LanguageConfig
	Generation  GenerationConfig
	Embedding   EmbeddingConfig
	VectorStore VectorStoreConfig
	Ingest      IngestConfig
	Pipeline    PipelineConfig
	Telemetry   TelemetryConfig
}

type LanguageConfig struct {
	Supported           []string
	Default             string
	ConfidenceThreshold float64
}

// IsSupported reports whether code is in the supported language list.
func (l LanguageConfig) IsSupported(code string) bool {
	for _, c := range l.Supported {
		if c == code {
			return true
		}
	}
	return false
}

type GenerationConfig struct {
	Endpoint       string
	Model          string
	Temperature    float64
	TopP           float64
	MaxTokens      int
	TimeoutSeconds int
	MaxRetries     int
}

type EmbeddingConfig struct {
	Driver    string // "ollama" or "openai"
	Endpoint  string
	Model     string
	APIKey    string
	BatchSize int
}

type VectorStoreConfig struct {
	Driver       string // "embedded", "qdrant", or "pgvector"
	QdrantURL    string
	QdrantAPIKey string
	Collection   string
	Dimensions   int
	PostgresURL  string
}

type IngestConfig struct {
	ChunkSize          int
	ChunkOverlap       int
	MaxFileSizeMB      int
	SupportedFileTypes []string
}

type PipelineConfig struct {
	DefaultTopK      int
	EnableValidation bool
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	_ = godotenv.Load() // best-effort; absence of .env is not an error

	return &Config{
		Port:        envInt("POLYRAG_PORT", 8080),
		Version:     envStr("POLYRAG_VERSION", "0.2.0"),
		Environment: envStr("POLYRAG_ENV", "development"),
		Language: LanguageConfig{
			Supported:           envList("POLYRAG_SUPPORTED_LANGUAGES", []string{"en", "es", "fr", "zh", "ar"}),
			Default:             envStr("POLYRAG_DEFAULT_LANGUAGE", "en"),
			ConfidenceThreshold: envFloat("POLYRAG_LANG_CONFIDENCE_THRESHOLD", 0.5),
		},
		Generation: GenerationConfig{
			Endpoint:       envStr("OLLAMA_BASE_URL", "http://localhost:11434"),
			Model:          envStr("OLLAMA_MODEL", "mistral"),
			Temperature:    envFloat("OLLAMA_TEMPERATURE", 0.7),
			TopP:           envFloat("OLLAMA_TOP_P", 0.9),
			MaxTokens:      envInt("OLLAMA_MAX_TOKENS", 2048),
			TimeoutSeconds: envInt("OLLAMA_TIMEOUT", 120),
			MaxRetries:     envInt("OLLAMA_RETRY_ATTEMPTS", 3),
		},
		Embedding: EmbeddingConfig{
			Driver:    envStr("POLYRAG_EMBEDDING_DRIVER", "ollama"),
			Endpoint:  envStr("POLYRAG_EMBEDDING_ENDPOINT", "http://localhost:11434"),
			Model:     envStr("POLYRAG_EMBEDDING_MODEL", "mxbai-embed-large"),
			APIKey:    envStr("OPENAI_API_KEY", ""),
			BatchSize: envInt("POLYRAG_EMBEDDING_BATCH_SIZE", 32),
		},
		VectorStore: VectorStoreConfig{
			Driver:       envStr("POLYRAG_VECTORSTORE_DRIVER", "embedded"),
			QdrantURL:    envStr("QDRANT_URL", "http://localhost:6333"),
			QdrantAPIKey: envStr("QDRANT_API_KEY", ""),
			Collection:   envStr("QDRANT_COLLECTION_NAME", "documents"),
			Dimensions:   envInt("QDRANT_VECTOR_SIZE", 1024),
			PostgresURL:  envStr("POLYRAG_PGVECTOR_URL", ""),
		},
		Ingest: IngestConfig{
			ChunkSize:          envInt("POLYRAG_CHUNK_SIZE", 512),
			ChunkOverlap:       envInt("POLYRAG_CHUNK_OVERLAP", 51),
			MaxFileSizeMB:      envInt("POLYRAG_MAX_FILE_SIZE_MB", 50),
			SupportedFileTypes: envList("POLYRAG_SUPPORTED_FILE_TYPES", []string{"txt", "md", "json", "csv"}),
		},
		Pipeline: PipelineConfig{
			DefaultTopK:      envInt("POLYRAG_DEFAULT_TOP_K", 5),
			EnableValidation: envBool("POLYRAG_ENABLE_VALIDATION", true),
		},
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", false),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "polyrag"),
		},
	}
}

// Validate checks cross-field constraints on startup.
func (c *Config) Validate() error {
	if !c.Language.IsSupported(c.Language.Default) {
		return fmt.Errorf("default language %q not in supported languages %v", c.Language.Default, c.Language.Supported)
	}
	if c.Ingest.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.Ingest.ChunkSize)
	}
	if c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("chunk overlap %d must be less than chunk size %d", c.Ingest.ChunkOverlap, c.Ingest.ChunkSize)
	}
	if c.Ingest.MaxFileSizeMB <= 0 {
		return fmt.Errorf("max file size must be positive, got %d", c.Ingest.MaxFileSizeMB)
	}
	if c.Pipeline.DefaultTopK <= 0 {
		return fmt.Errorf("default top_k must be positive, got %d", c.Pipeline.DefaultTopK)
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return fallback
}
