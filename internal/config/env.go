package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom log forwarding configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// ReaderConfig controls the answer-context window and page rendering.
type ReaderConfig struct {
	ContextPagesBefore int
	ContextPagesAfter  int
	ImageDPI           int
	JPEGQuality        int
	ColorMode          string // "rgb"|"gray"
	DefaultPage        int
}

// RetrievalConfig controls embedding, search and the chat model.
type RetrievalConfig struct {
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	ChatModel      string
	EmbeddingModel string
	Temperature    float64
	TopK           int
	TextThreshold  int // min sampled chars for the extractable-text check
}

// SessionConfig defines session persistence and rate limits.
type SessionConfig struct {
	RedisURL   string
	TTL        time.Duration
	Cooldown   time.Duration
	MaxQueries int
}

// StorageConfig selects where uploaded documents are kept.
type StorageConfig struct {
	Backend    string // "local"|"s3"
	UploadDir  string
	S3Bucket   string
	S3Prefix   string
	Passphrase string // enables at-rest encryption for the s3 backend
}

// Config is the top-level configuration.
type Config struct {
	Logging   LoggingConfig
	Axiom     AxiomConfig
	Reader    ReaderConfig
	Retrieval RetrievalConfig
	Session   SessionConfig
	Storage   StorageConfig
}

// FromEnv loads configuration from environment with sensible defaults.
// A .env file in the working directory is honored when present.
func FromEnv() Config {
	_ = godotenv.Load()

	cfg := Config{}

	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", "logs/docreader.log"),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_docreader",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	cfg.Reader = ReaderConfig{
		ContextPagesBefore: parseInt(getEnv("CONTEXT_PAGES_BEFORE", "2"), 2),
		ContextPagesAfter:  parseInt(getEnv("CONTEXT_PAGES_AFTER", "2"), 2),
		ImageDPI:           parseInt(getEnv("IMAGE_DPI", "150"), 150),
		JPEGQuality:        parseInt(getEnv("JPEG_QUALITY", "85"), 85),
		ColorMode:          getEnv("IMAGE_COLOR_MODE", "rgb"),
		DefaultPage:        parseInt(getEnv("DEFAULT_PAGE", "0"), 0),
	}

	cfg.Retrieval = RetrievalConfig{
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:  getEnv("OPENAI_BASE_URL", ""),
		ChatModel:      getEnv("CHAT_MODEL", "gpt-4o-mini"),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		Temperature:    parseFloat(getEnv("LLM_TEMPERATURE", "0.2"), 0.2),
		TopK:           parseInt(getEnv("RETRIEVAL_K", "2"), 2),
		TextThreshold:  parseInt(getEnv("TEXT_THRESHOLD", "300"), 300),
	}

	cfg.Session = SessionConfig{
		RedisURL:   getEnv("REDIS_URL", "redis://localhost:6379"),
		TTL:        parseDuration(getEnv("SESSION_TTL", "24h"), 24*time.Hour),
		Cooldown:   parseDuration(getEnv("QUERY_COOLDOWN", "3s"), 3*time.Second),
		MaxQueries: parseInt(getEnv("MAX_QUERIES_PER_SESSION", "50"), 50),
	}

	cfg.Storage = StorageConfig{
		Backend:    getEnv("STORAGE_BACKEND", "local"),
		UploadDir:  getEnv("UPLOAD_DIR", "uploads"),
		S3Bucket:   getEnv("AWS_S3_BUCKET", ""),
		S3Prefix:   getEnv("AWS_S3_PREFIX", "docreader"),
		Passphrase: getEnv("STORAGE_PASSPHRASE", ""),
	}

	return cfg
}

// Validate fails fast on configuration the service cannot run with.
func (c Config) Validate() error {
	if c.Retrieval.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY missing in environment config")
	}
	if c.Reader.ContextPagesBefore < 0 || c.Reader.ContextPagesAfter < 0 {
		return fmt.Errorf("context window sizes must be non-negative")
	}
	if c.Reader.ImageDPI < 1 {
		return fmt.Errorf("IMAGE_DPI must be positive")
	}
	if c.Storage.Backend == "s3" && c.Storage.S3Bucket == "" {
		return fmt.Errorf("AWS_S3_BUCKET required for s3 storage backend")
	}
	return nil
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseFloat(s string, def float64) float64 {
	if s == "" {
		return def
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}
