package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"studypartner/internal/apperr"
	"studypartner/internal/metrics"
	"studypartner/internal/middleware"
)

// DefaultTopK is the number of units fetched per question.
const DefaultTopK = 15

// Result is one retrieved unit with the metadata stored next to it.
type Result struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Source   string   `json:"source"`
	Page     int      `json:"page"`
	Keywords []string `json:"keywords"`
	Distance float64  `json:"distance"`
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorStore answers top-k similarity queries against one index, closest first.
type VectorStore interface {
	Query(ctx context.Context, index string, vector []float32, k int) ([]Result, error)
}

type CourseResolver interface {
	Resolve(course string) (string, error)
}

type Service struct {
	embedder Embedder
	store    VectorStore
	courses  CourseResolver
	topK     int
	timeout  time.Duration
	logger   *QueryLogger
	metrics  *metrics.Metrics
}

type Option func(*Service)

func WithTopK(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.topK = k
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

func WithQueryLogger(l *QueryLogger) Option {
	return func(s *Service) { s.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(e Embedder, store VectorStore, courses CourseResolver, opts ...Option) *Service {
	s := &Service{embedder: e, store: store, courses: courses, topK: DefaultTopK}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) TopK() int { return s.topK }

// Retrieve embeds question and returns the nearest units of the course's
// index in the store's native order. No re-ranking is applied.
func (s *Service) Retrieve(ctx context.Context, question, course string) ([]Result, error) {
	start := time.Now()
	var (
		index   string
		results []Result
		err     error
	)

	defer func() {
		s.metrics.ObserveStage("retrieve", start)
		if s.logger == nil {
			return
		}
		rec := QueryRecord{
			CorrelationID: middleware.GetCorrelationID(ctx),
			Course:        course,
			Index:         index,
			Question:      question,
			TopK:          s.topK,
			Hits:          hits(results),
			LatencyMs:     time.Since(start).Milliseconds(),
		}
		if err != nil {
			rec.ErrorKind = apperr.Kind(err)
			rec.Error = err.Error()
		}
		s.logger.Log(rec)
	}()

	index, err = s.courses.Resolve(course)
	if err != nil {
		return nil, err
	}

	vec, err := s.embedder.Embed(ctx, question)
	if err != nil {
		if !errors.Is(err, apperr.ErrEmbeddingFailure) {
			err = fmt.Errorf("%w: %v", apperr.ErrEmbeddingFailure, err)
		}
		return nil, err
	}

	queryCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		queryCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	results, err = s.store.Query(queryCtx, index, vec, s.topK)
	if err != nil {
		if !errors.Is(err, apperr.ErrVectorStoreFailure) {
			err = fmt.Errorf("%w: %v", apperr.ErrVectorStoreFailure, err)
		}
		return nil, err
	}

	slog.DebugContext(ctx, "retrieved units", "index", index, "count", len(results))
	return results, nil
}
