package app

import (
	"fmt"
	"log/slog"
	"os"

	"google.golang.org/api/option"

	"studypartner/internal/adapter/gemini"
	"studypartner/internal/answer"
	"studypartner/internal/config"
	"studypartner/internal/ingest"
	"studypartner/internal/keyphrase"
	"studypartner/internal/keys"
	"studypartner/internal/metrics"
	"studypartner/internal/retrieval"
	"studypartner/internal/text"
)

// Services is the domain core shared by the server, the worker and the CLI.
type Services struct {
	Courses   config.Courses
	Embedder  *gemini.Embedder
	Generator *gemini.Generator
	Keys      *keys.Rotator
	Retrieval *retrieval.Service
	Pipeline  *ingest.Pipeline
	Answers   *answer.Synthesizer
	Metrics   *metrics.Metrics
	Store     VectorStore

	queryLog *retrieval.QueryLogger
}

// NewServices builds the domain services over store and keyStore. A nil
// keyStore falls back to an in-process pool. Client options are passed to
// both Gemini clients.
func NewServices(cfg *config.Config, store VectorStore, keyStore keys.Store, m *metrics.Metrics, opts ...option.ClientOption) (*Services, error) {
	courses, err := config.LoadCourses(cfg.CoursesFile)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = metrics.Default
	}
	if keyStore == nil {
		slog.Warn("no shared key store configured; rotating keys in process")
		keyStore = keys.NewMemoryStore()
	}

	embedder, err := gemini.NewEmbedder(gemini.EmbedderConfig{
		APIKey:     cfg.GeminiAPIKey,
		Model:      cfg.EmbeddingModel,
		Dimensions: cfg.EmbeddingDimensions,
		Timeout:    cfg.EmbedTimeout(),
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}

	generator := gemini.NewGenerator(gemini.GeneratorConfig{
		Model:   cfg.GenerationModel,
		Timeout: cfg.GenerateTimeout(),
		RPM:     cfg.GenerationRPM,
	}, opts...)

	queryLogger := retrieval.NewQueryLogger(os.Stdout)
	if cfg.QueryLogPath != "" {
		fileLogger, err := retrieval.NewFileQueryLogger(cfg.QueryLogPath)
		if err != nil {
			slog.Warn("failed to create query logger, falling back to stdout", "error", err)
		} else {
			queryLogger = fileLogger
		}
	}

	rotator := keys.NewRotator(keyStore, cfg.APIKeys, m)
	retriever := retrieval.NewService(embedder, store, courses,
		retrieval.WithTopK(cfg.RetrievalTopK),
		retrieval.WithTimeout(cfg.SearchTimeout()),
		retrieval.WithQueryLogger(queryLogger),
		retrieval.WithMetrics(m),
	)
	pipeline := ingest.NewPipeline(
		text.NewSegmenter(cfg.PageOffset),
		embedder,
		keyphrase.NewExtractor(cfg.KeywordTopK),
		store,
		courses,
		m,
	)

	return &Services{
		Courses:   courses,
		Embedder:  embedder,
		Generator: generator,
		Keys:      rotator,
		Retrieval: retriever,
		Pipeline:  pipeline,
		Answers:   answer.NewSynthesizer(retriever, rotator, generator, m),
		Metrics:   m,
		Store:     store,
		queryLog:  queryLogger,
	}, nil
}

func (s *Services) Close() {
	s.Embedder.Close()
	s.Generator.Close()
	if err := s.queryLog.Close(); err != nil {
		slog.Warn("failed to close query log", "error", err)
	}
}
