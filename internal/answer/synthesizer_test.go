package answer_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"studypartner/internal/answer"
	"studypartner/internal/apperr"
	"studypartner/internal/keys"
	"studypartner/internal/retrieval"
)

type MockRetriever struct{ mock.Mock }

func (m *MockRetriever) Retrieve(ctx context.Context, question, course string) ([]retrieval.Result, error) {
	args := m.Called(ctx, question, course)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]retrieval.Result), args.Error(1)
}

type MockGenerator struct{ mock.Mock }

func (m *MockGenerator) Generate(ctx context.Context, apiKey, prompt string) (string, error) {
	args := m.Called(ctx, apiKey, prompt)
	return args.String(0), args.Error(1)
}

func TestSynthesizer_Answer(t *testing.T) {
	results := []retrieval.Result{
		{Text: "A simple reflex agent acts on the current percept.", Source: "AI-Week2.pdf", Page: 4},
		{Text: "Condition-action rules map percepts to actions.", Source: "AI-Week2.pdf", Page: 4},
		{Text: "Agents perceive through sensors.", Source: "AI-Week1.pdf", Page: 7},
	}

	r := new(MockRetriever)
	r.On("Retrieve", mock.Anything, "Explain Simple Reflex Agent", "operating-systems").Return(results, nil)

	g := new(MockGenerator)
	g.On("Generate", mock.Anything, "key-1", mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, results[0].Text+answer.ContextSeparator+results[1].Text) &&
			strings.Contains(p, "USER QUESTION: Explain Simple Reflex Agent")
	})).Return("**Simple reflex agents** act on percepts.[cite: 4]\n", nil)

	s := answer.NewSynthesizer(r, keys.NewRotator(keys.NewMemoryStore(), []string{"key-1", "key-2"}, nil), g, nil)
	resp := s.Answer(context.Background(), "Explain Simple Reflex Agent", "operating-systems")

	assert.Empty(t, resp.ErrorKind)
	assert.Equal(t, []string{"(Source: AI-Week1.pdf, Page: 7)", "(Source: AI-Week2.pdf, Page: 4)"}, resp.Citations)
	assert.Equal(t, "**Simple reflex agents** act on percepts.\n\nSources:\n(Source: AI-Week1.pdf, Page: 7)\n(Source: AI-Week2.pdf, Page: 4)", resp.Text)
	assert.Equal(t, 1, strings.Count(resp.Text, "(Source: AI-Week2.pdf, Page: 4)"))
	r.AssertExpectations(t)
	g.AssertExpectations(t)
}

func TestSynthesizer_NoResults(t *testing.T) {
	r := new(MockRetriever)
	r.On("Retrieve", mock.Anything, "q", "aws").Return([]retrieval.Result{}, nil)
	g := new(MockGenerator)
	g.On("Generate", mock.Anything, "k", mock.Anything).Return(answer.InsufficientContext, nil)

	s := answer.NewSynthesizer(r, keys.NewRotator(keys.NewMemoryStore(), []string{"k"}, nil), g, nil)
	resp := s.Answer(context.Background(), "q", "aws")

	assert.Equal(t, answer.InsufficientContext, resp.Text)
	assert.Empty(t, resp.Citations)
	assert.Empty(t, resp.ErrorKind)
}

func TestSynthesizer_Failures(t *testing.T) {
	ok := []retrieval.Result{{Text: "t", Source: "S", Page: 1}}

	tests := []struct {
		name     string
		course   string
		retrErr  error
		keys     []string
		genErr   error
		wantKind string
		wantText string
		wantGen  bool
	}{
		{
			name:     "Unknown Course",
			course:   "basket-weaving",
			retrErr:  fmt.Errorf("%w: no collection", apperr.ErrUnknownCourse),
			keys:     []string{"k"},
			wantKind: "unknown_course",
			wantText: "Error: No collection found for course 'basket-weaving'.",
		},
		{
			name:     "Vector Store Down",
			course:   "aws",
			retrErr:  fmt.Errorf("%w: connection refused", apperr.ErrVectorStoreFailure),
			keys:     []string{"k"},
			wantKind: "vector_store_failure",
			wantText: "An error occurred while answering: vector store failure: connection refused",
		},
		{
			name:     "No Keys",
			course:   "aws",
			keys:     nil,
			wantKind: "no_keys_available",
			wantText: "An error occurred while answering: no api keys available: key pool is empty",
		},
		{
			name:     "Generation Fails",
			course:   "aws",
			keys:     []string{"k"},
			genErr:   fmt.Errorf("%w: quota exhausted", apperr.ErrGenerationFailure),
			wantKind: "generation_failure",
			wantText: "An error occurred with the Gemini API: quota exhausted",
			wantGen:  true,
		},
		{
			name:     "Unclassified Generator Error",
			course:   "aws",
			keys:     []string{"k"},
			genErr:   errors.New("deadline exceeded"),
			wantKind: "generation_failure",
			wantText: "An error occurred with the Gemini API: deadline exceeded",
			wantGen:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := new(MockRetriever)
			if tt.retrErr != nil {
				r.On("Retrieve", mock.Anything, "q", tt.course).Return(nil, tt.retrErr)
			} else {
				r.On("Retrieve", mock.Anything, "q", tt.course).Return(ok, nil)
			}
			g := new(MockGenerator)
			if tt.wantGen {
				g.On("Generate", mock.Anything, "k", mock.Anything).Return("", tt.genErr)
			}

			s := answer.NewSynthesizer(r, keys.NewRotator(keys.NewMemoryStore(), tt.keys, nil), g, nil)
			resp := s.Answer(context.Background(), "q", tt.course)

			assert.Equal(t, tt.wantKind, resp.ErrorKind)
			assert.Equal(t, tt.wantText, resp.Text)
			assert.Empty(t, resp.Citations)
			if !tt.wantGen {
				g.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}
