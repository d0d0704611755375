package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

// Vector store backends. The memory backend lives only as long as the process.
const (
	VectorBackendWeaviate = "weaviate"
	VectorBackendMemory   = "memory"
)

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"studypartner"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"studypartner"`

	VectorBackend  string `envconfig:"VECTOR_BACKEND" default:"weaviate"` // weaviate | memory
	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`

	NSQLookupd string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost   string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP   string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`

	RedisURL    string `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`
	KeyPoolName string `envconfig:"KEY_POOL_NAME" default:"api_keys"`

	// Credentials rotated for generation, loaded once.
	APIKeys      []string `envconfig:"API_KEYS"`
	GeminiAPIKey string   `envconfig:"GEMINI_API_KEY"`

	EmbeddingModel      string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-004"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"768"`
	GenerationModel     string `envconfig:"GENERATION_MODEL" default:"gemini-2.5-flash"`
	GenerationRPM       int    `envconfig:"GENERATION_RPM" default:"60"`

	RetrievalTopK int `envconfig:"RETRIEVAL_TOP_K" default:"15"`
	KeywordTopK   int `envconfig:"KEYWORD_TOP_K" default:"5"`
	PageOffset    int `envconfig:"PAGE_OFFSET" default:"1"`

	EmbedTimeoutSeconds    int `envconfig:"EMBED_TIMEOUT_SECONDS" default:"30"`
	SearchTimeoutSeconds   int `envconfig:"SEARCH_TIMEOUT_SECONDS" default:"15"`
	GenerateTimeoutSeconds int `envconfig:"GENERATE_TIMEOUT_SECONDS" default:"60"`
	IngestTimeoutSeconds   int `envconfig:"INGEST_TIMEOUT_SECONDS" default:"600"`

	CoursesFile string `envconfig:"COURSES_FILE"`

	// Server
	ServerPort    int    `envconfig:"SERVER_PORT" default:"8081"`
	QueryLogPath  string `envconfig:"QUERY_LOG_PATH" default:"data/logs/query.log"`
	UploadDir     string `envconfig:"UPLOAD_DIR" default:"data/uploads"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"file://migrations"`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat     string `envconfig:"LOG_FORMAT" default:"json"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Env vars set in the shell win over .env, so load errors are ignored.
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	_ = godotenv.Load(filepath.Join(cwd, "../../.env"))

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	cfg.APIKeys = cleanKeys(cfg.APIKeys)
	if cfg.GeminiAPIKey == "" && len(cfg.APIKeys) > 0 {
		cfg.GeminiAPIKey = cfg.APIKeys[0]
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if len(c.APIKeys) == 0 {
		return fmt.Errorf("%w: API_KEYS", ErrMissingRequired)
	}
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}
	if c.EmbeddingModel == "" {
		return fmt.Errorf("%w: EMBEDDING_MODEL", ErrMissingRequired)
	}
	if c.EmbeddingDimensions <= 0 {
		return fmt.Errorf("EMBEDDING_DIMENSIONS must be positive, got %d", c.EmbeddingDimensions)
	}
	if c.RetrievalTopK <= 0 {
		return fmt.Errorf("RETRIEVAL_TOP_K must be positive, got %d", c.RetrievalTopK)
	}
	switch c.VectorBackend {
	case VectorBackendWeaviate, VectorBackendMemory:
	default:
		return fmt.Errorf("VECTOR_BACKEND must be weaviate or memory, got %q", c.VectorBackend)
	}
	return nil
}

func (c *Config) EmbedTimeout() time.Duration {
	return time.Duration(c.EmbedTimeoutSeconds) * time.Second
}

func (c *Config) SearchTimeout() time.Duration {
	return time.Duration(c.SearchTimeoutSeconds) * time.Second
}

func (c *Config) GenerateTimeout() time.Duration {
	return time.Duration(c.GenerateTimeoutSeconds) * time.Second
}

func (c *Config) IngestTimeout() time.Duration {
	return time.Duration(c.IngestTimeoutSeconds) * time.Second
}

func cleanKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}
