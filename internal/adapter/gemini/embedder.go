package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"studypartner/internal/apperr"
)

// Embedder is the single embedding handle shared by ingestion and retrieval,
// so documents and questions always go through the same model.
type Embedder struct {
	clients    *clientCache
	apiKey     string
	model      string
	dimensions int
	timeout    time.Duration
}

type EmbedderConfig struct {
	APIKey     string
	Model      string
	Dimensions int
	Timeout    time.Duration
}

func NewEmbedder(cfg EmbedderConfig, opts ...option.ClientOption) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key not configured")
	}
	if cfg.Model == "" {
		return nil, errors.New("embedding model not configured")
	}
	return &Embedder{
		clients:    newClientCache(opts...),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		timeout:    cfg.Timeout,
	}, nil
}

func (e *Embedder) Model() string   { return e.model }
func (e *Embedder) Dimensions() int { return e.dimensions }

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	client, err := e.clients.get(ctx, e.apiKey)
	if err != nil {
		return nil, fmt.Errorf("%w: client: %v", apperr.ErrEmbeddingFailure, err)
	}

	slog.DebugContext(ctx, "embedding content", "model", e.model, "length", len(text))
	res, err := client.EmbeddingModel(e.model).EmbedContent(ctx, genai.Text(text))
	if err != nil {
		slog.ErrorContext(ctx, "embedding failed", "model", e.model, "error", err)
		return nil, fmt.Errorf("%w: %v", apperr.ErrEmbeddingFailure, err)
	}
	if res == nil || res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("%w: empty embedding received", apperr.ErrEmbeddingFailure)
	}

	values := res.Embedding.Values
	if e.dimensions > 0 && len(values) != e.dimensions {
		return nil, fmt.Errorf("%w: model %s returned %d dimensions, expected %d",
			apperr.ErrEmbeddingFailure, e.model, len(values), e.dimensions)
	}
	return values, nil
}

func (e *Embedder) Close() {
	e.clients.close()
}
