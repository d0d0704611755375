package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"studypartner/internal/apperr"
)

// Generator calls the generative model with whichever API key the caller
// acquired from the key rotator.
type Generator struct {
	clients *clientCache
	model   string
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

type GeneratorConfig struct {
	Model   string
	Timeout time.Duration
	// RPM caps requests per minute across all keys. Zero disables the limit.
	RPM int
}

func NewGenerator(cfg GeneratorConfig, opts ...option.ClientOption) *Generator {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiGenerate",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RPM > 0 {
		burst := cfg.RPM / 10
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RPM)/60.0), burst)
	}

	return &Generator{
		clients: newClientCache(opts...),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		breaker: breaker,
		limiter: limiter,
	}
}

func (g *Generator) Generate(ctx context.Context, apiKey, prompt string) (string, error) {
	tracer := otel.Tracer("gemini-generator")
	ctx, span := tracer.Start(ctx, "gemini.generate_content")
	defer span.End()
	span.SetAttributes(
		attribute.String("gemini.model", g.model),
		attribute.Int("gemini.prompt_length", len(prompt)),
	)

	fail := func(err error) (string, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("%w: %v", apperr.ErrGenerationFailure, err)
	}

	if apiKey == "" {
		return fail(errors.New("api key is empty"))
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	if err := g.limiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return fail(err)
	}

	result, err := g.breaker.Execute(func() (interface{}, error) {
		client, err := g.clients.get(ctx, apiKey)
		if err != nil {
			return nil, err
		}
		resp, err := client.GenerativeModel(g.model).GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return nil, err
		}
		return responseText(resp)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			span.SetAttributes(attribute.Bool("gemini.circuit_breaker_open", true))
		}
		slog.ErrorContext(ctx, "generation failed", "model", g.model, "error", err)
		return fail(err)
	}

	text := result.(string)
	span.SetAttributes(attribute.Int("gemini.response_length", len(text)))
	return text, nil
}

func (g *Generator) Close() {
	g.clients.close()
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("no candidates in response")
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		if b.Len() > 0 {
			break
		}
	}
	if b.Len() == 0 {
		return "", errors.New("empty response text")
	}
	return b.String(), nil
}
