package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/nsqio/go-nsq"
	goredis "github.com/redis/go-redis/v9"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"studypartner/internal/adapter/memory"
	"studypartner/internal/adapter/redis"
	wstore "studypartner/internal/adapter/weaviate"
	"studypartner/internal/config"
	"studypartner/internal/ingest"
	"studypartner/internal/keys"
)

// VectorStore is the full index surface the services and stats need.
type VectorStore = ingest.VectorStore

type Dependencies struct {
	DB          *sql.DB
	VectorStore VectorStore
	NSQProducer *nsq.Producer
	Redis       *goredis.Client
	KeyStore    keys.Store
}

// Close releases every connection Bootstrap opened.
func (d *Dependencies) Close() {
	if d.NSQProducer != nil {
		d.NSQProducer.Stop()
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			slog.Warn("failed to close redis client", "error", err)
		}
	}
	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			slog.Warn("failed to close database", "error", err)
		}
	}
}

// Bootstrap connects to Postgres (running migrations), the vector backend,
// NSQ and Redis, retrying each according to config.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	db, err := OpenDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	deps := &Dependencies{DB: db}

	if deps.VectorStore, err = NewVectorStore(ctx, cfg); err != nil {
		deps.Close()
		return nil, err
	}

	producer, err := nsq.NewProducer(cfg.NSQDHost, nsq.NewConfig())
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("nsq producer error: %w", err)
	}
	deps.NSQProducer = producer
	createTopics(cfg.NSQDHTTP)

	if deps.Redis, err = ConnectRedis(ctx, cfg); err != nil {
		deps.Close()
		return nil, err
	}
	deps.KeyStore = redis.NewKeyPool(deps.Redis, cfg.KeyPoolName)

	return deps, nil
}

func retryDelay(cfg *config.Config) time.Duration {
	return time.Duration(cfg.BootstrapRetryDelaySeconds) * time.Second
}

// OpenDatabase connects to Postgres and applies migrations.
func OpenDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPass, cfg.DBName)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	err = WithRetry(ctx, "postgres", cfg.BootstrapRetryAttempts, retryDelay(cfg), db.PingContext)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	if err := Migrate(db, cfg.MigrationPath); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func Migrate(db *sql.DB, path string) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("migration driver error: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(path, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migration instance error: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up error: %w", err)
	}
	slog.Info("migrations applied", "path", path)
	return nil
}

// NewVectorStore builds the configured backend. Weaviate classes are created
// lazily per index, so only readiness is checked here.
func NewVectorStore(ctx context.Context, cfg *config.Config) (VectorStore, error) {
	if cfg.VectorBackend == config.VectorBackendMemory {
		slog.Warn("using in-memory vector store; indexes are lost on exit")
		return memory.NewStore(), nil
	}

	client, err := weaviate.NewClient(weaviate.Config{Host: cfg.WeaviateHost, Scheme: cfg.WeaviateScheme})
	if err != nil {
		return nil, fmt.Errorf("weaviate client error: %w", err)
	}

	err = WithRetry(ctx, "weaviate", cfg.BootstrapRetryAttempts, retryDelay(cfg), func(ctx context.Context) error {
		ready, err := client.Misc().ReadyChecker().Do(ctx)
		if err != nil {
			return err
		}
		if !ready {
			return errors.New("weaviate not ready")
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("weaviate readiness error: %w", err)
	}
	return wstore.NewStore(client), nil
}

func ConnectRedis(ctx context.Context, cfg *config.Config) (*goredis.Client, error) {
	var client *goredis.Client
	err := WithRetry(ctx, "redis", cfg.BootstrapRetryAttempts, retryDelay(cfg), func(ctx context.Context) error {
		c, err := redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		client = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis connection error: %w", err)
	}
	return client, nil
}

// WithRetry runs fn up to attempts times, sleeping delay between failures.
func WithRetry(ctx context.Context, name string, attempts int, delay time.Duration, fn func(context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		slog.Warn("dependency not ready, retrying", "dependency", name, "attempt", i+1, "max_attempts", attempts, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

func createTopics(nsqdHTTP string) {
	go func() {
		time.Sleep(2 * time.Second)
		url := fmt.Sprintf("http://%s/topic/create?topic=%s", nsqdHTTP, config.TopicIngestDocument)
		resp, err := http.Post(url, "application/json", nil) // #nosec G107 -- URL is built from internal NSQ config, not user input
		if err != nil {
			slog.Warn("failed to create NSQ topic", "topic", config.TopicIngestDocument, "error", err)
			return
		}
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close NSQ topic creation response body", "error", closeErr)
		}
	}()
}
