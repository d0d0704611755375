// Package answer builds grounded, cited answers from retrieved lecture units.
package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"studypartner/internal/apperr"
	"studypartner/internal/metrics"
	"studypartner/internal/retrieval"
)

type Retriever interface {
	Retrieve(ctx context.Context, question, course string) ([]retrieval.Result, error)
}

type KeySource interface {
	NextKey(ctx context.Context) (string, error)
}

type Generator interface {
	Generate(ctx context.Context, apiKey, prompt string) (string, error)
}

// Response is what the question-answering surface returns. Failures are
// reported in Text with ErrorKind set, never as a Go error.
type Response struct {
	Text      string   `json:"answer"`
	Citations []string `json:"citations"`
	ErrorKind string   `json:"error_kind,omitempty"`
}

type Synthesizer struct {
	retriever Retriever
	keys      KeySource
	generator Generator
	metrics   *metrics.Metrics
}

func NewSynthesizer(r Retriever, k KeySource, g Generator, m *metrics.Metrics) *Synthesizer {
	return &Synthesizer{retriever: r, keys: k, generator: g, metrics: m}
}

// Answer runs retrieve, prompt, generate and cite for one question. Any
// failure along the way becomes a readable message in the response.
func (s *Synthesizer) Answer(ctx context.Context, question, course string) Response {
	results, err := s.retriever.Retrieve(ctx, question, course)
	if err != nil {
		return s.fail(ctx, course, 0, err)
	}

	prompt := BuildPrompt(BuildContext(results), question)

	key, err := s.keys.NextKey(ctx)
	if err != nil {
		return s.fail(ctx, course, len(results), err)
	}

	start := time.Now()
	generated, err := s.generator.Generate(ctx, key, prompt)
	s.metrics.ObserveStage("generate", start)
	if err != nil {
		if !errors.Is(err, apperr.ErrGenerationFailure) {
			err = fmt.Errorf("%w: %v", apperr.ErrGenerationFailure, err)
		}
		return s.fail(ctx, course, len(results), err)
	}

	citations := Citations(results)
	s.metrics.RecordAnswer(course, "ok", len(results))
	return Response{
		Text:      WithSources(StripCitationMarkers(generated), citations),
		Citations: citations,
	}
}

func (s *Synthesizer) fail(ctx context.Context, course string, retrieved int, err error) Response {
	kind := apperr.Kind(err)
	slog.ErrorContext(ctx, "answer failed", "kind", kind, "error", err)
	s.metrics.RecordAnswer(course, kind, retrieved)
	return Response{Text: Message(course, err), Citations: []string{}, ErrorKind: kind}
}

// Message is the user-visible text for an answer-time failure.
func Message(course string, err error) string {
	switch {
	case errors.Is(err, apperr.ErrUnknownCourse):
		return fmt.Sprintf("Error: No collection found for course '%s'.", course)
	case errors.Is(err, apperr.ErrGenerationFailure):
		return fmt.Sprintf("An error occurred with the Gemini API: %s", reason(err, apperr.ErrGenerationFailure))
	default:
		return fmt.Sprintf("An error occurred while answering: %s", err)
	}
}

// reason drops the kind prefix fmt.Errorf("%w: ...") put in front of the cause.
func reason(err, kind error) string {
	msg := err.Error()
	if trimmed := strings.TrimPrefix(msg, kind.Error()+": "); trimmed != "" {
		return trimmed
	}
	return msg
}
