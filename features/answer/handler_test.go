package answer_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"studypartner/features/answer"
	core "studypartner/internal/answer"
	"studypartner/internal/apperr"
	"studypartner/internal/config"
	"studypartner/internal/middleware"
	"studypartner/internal/retrieval"
)

type MockAnswerer struct{ mock.Mock }

func (m *MockAnswerer) Answer(ctx context.Context, question, course string) core.Response {
	args := m.Called(ctx, question, course)
	return args.Get(0).(core.Response)
}

type MockSearcher struct{ mock.Mock }

func (m *MockSearcher) Retrieve(ctx context.Context, question, course string) ([]retrieval.Result, error) {
	args := m.Called(ctx, question, course)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]retrieval.Result), args.Error(1)
}

func newMux(a *MockAnswerer, s *MockSearcher) *http.ServeMux {
	h := answer.NewHandler(a, s, config.DefaultCourses())
	mux := http.NewServeMux()
	mux.HandleFunc("POST /courses/{course}/answer", h.Ask)
	mux.HandleFunc("GET /courses/{course}/search", h.Search)
	mux.HandleFunc("GET /courses", h.ListCourses)
	return mux
}

func TestHandler_Ask(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		resp       core.Response
		wantStatus int
		wantKind   string
	}{
		{
			name:       "Answered",
			body:       `{"question":"Explain Simple Reflex Agent"}`,
			resp:       core.Response{Text: "Acts on percepts.\n\nSources:\n(Source: AI.pdf, Page: 4)", Citations: []string{"(Source: AI.pdf, Page: 4)"}},
			wantStatus: http.StatusOK,
		},
		{
			name:       "Degraded Answer Still 200",
			body:       `{"question":"Explain Simple Reflex Agent"}`,
			resp:       core.Response{Text: "An error occurred with the Gemini API: quota", Citations: []string{}, ErrorKind: "generation_failure"},
			wantStatus: http.StatusOK,
			wantKind:   "generation_failure",
		},
		{name: "Blank Question", body: `{"question":"   "}`, wantStatus: http.StatusBadRequest},
		{name: "Bad JSON", body: `{`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := new(MockAnswerer)
			a.On("Answer", mock.MatchedBy(func(ctx context.Context) bool {
				return middleware.GetCourse(ctx) == "operating-systems"
			}), "Explain Simple Reflex Agent", "operating-systems").Return(tt.resp).Maybe()

			w := httptest.NewRecorder()
			newMux(a, new(MockSearcher)).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/courses/operating-systems/answer", strings.NewReader(tt.body)))

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus != http.StatusOK {
				a.AssertNotCalled(t, "Answer", mock.Anything, mock.Anything, mock.Anything)
				return
			}
			var got struct {
				Data core.Response `json:"data"`
			}
			require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
			assert.Equal(t, tt.resp.Text, got.Data.Text)
			assert.Equal(t, tt.wantKind, got.Data.ErrorKind)
		})
	}
}

func TestHandler_Search(t *testing.T) {
	s := new(MockSearcher)
	s.On("Retrieve", mock.Anything, "normal forms", "database-systems").Return([]retrieval.Result{
		{ID: "DB-Week4_chunk_002", Text: "3NF removes transitive dependencies.", Source: "DB-Week4.pdf", Page: 2, Distance: 0.12},
	}, nil)
	s.On("Retrieve", mock.Anything, "x", "basket-weaving").Return(nil, fmt.Errorf("%w: basket-weaving", apperr.ErrUnknownCourse))
	s.On("Retrieve", mock.Anything, "x", "cloud-computing").Return(nil, fmt.Errorf("%w: timeout", apperr.ErrVectorStoreFailure))
	mux := newMux(new(MockAnswerer), s)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/courses/database-systems/search?q=normal+forms", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":[{"id":"DB-Week4_chunk_002","text":"3NF removes transitive dependencies.","source":"DB-Week4.pdf","page":2,"keywords":[],"distance":0.12,"citation":"(Source: DB-Week4.pdf, Page: 2)"}],"meta":{"count":1}}`, w.Body.String())

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/courses/basket-weaving/search?q=x", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "No collection found for course 'basket-weaving'")

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/courses/cloud-computing/search?q=x", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "VECTOR_STORE_FAILURE")

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/courses/cloud-computing/search", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_ListCourses(t *testing.T) {
	w := httptest.NewRecorder()
	newMux(new(MockAnswerer), new(MockSearcher)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/courses", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":[
		{"slug":"cloud-computing","index":"aws"},
		{"slug":"database-systems","index":"database"},
		{"slug":"operating-systems","index":"operating_systems"}
	],"meta":{"count":3}}`, w.Body.String())
}
