// Package answer serves the question-answering HTTP surface.
package answer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	core "studypartner/internal/answer"
	"studypartner/internal/apperr"
	"studypartner/internal/middleware"
	"studypartner/internal/retrieval"
)

type Answerer interface {
	Answer(ctx context.Context, question, course string) core.Response
}

type Searcher interface {
	Retrieve(ctx context.Context, question, course string) ([]retrieval.Result, error)
}

type Courses interface {
	Slugs() []string
	Resolve(course string) (string, error)
}

type Handler struct {
	answerer Answerer
	searcher Searcher
	courses  Courses
}

func NewHandler(a Answerer, s Searcher, c Courses) *Handler {
	return &Handler{answerer: a, searcher: s, courses: c}
}

type askRequest struct {
	Question string `json:"question"`
}

// Ask serves POST /courses/{course}/answer. Answer-time failures still return
// 200 with the message in the answer and error_kind set.
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	course := r.PathValue("course")
	ctx := middleware.WithCourse(r.Context(), course)

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, "VALIDATION_ERROR", "invalid JSON body", http.StatusBadRequest)
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		h.writeError(ctx, w, "VALIDATION_ERROR", "question is required", http.StatusBadRequest)
		return
	}

	slog.InfoContext(ctx, "answering question")
	resp := h.answerer.Answer(ctx, req.Question, course)
	h.writeJSON(ctx, w, http.StatusOK, map[string]interface{}{"data": resp})
}

type searchResult struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Source   string   `json:"source"`
	Page     int      `json:"page"`
	Keywords []string `json:"keywords"`
	Distance float64  `json:"distance"`
	Citation string   `json:"citation"`
}

// Search serves GET /courses/{course}/search?q=...
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	course := r.PathValue("course")
	ctx := middleware.WithCourse(r.Context(), course)

	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		h.writeError(ctx, w, "VALIDATION_ERROR", "q is required", http.StatusBadRequest)
		return
	}

	results, err := h.searcher.Retrieve(ctx, q, course)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrUnknownCourse):
			h.writeError(ctx, w, "UNKNOWN_COURSE", core.Message(course, err), http.StatusNotFound)
		default:
			slog.ErrorContext(ctx, "search failed", "error", err)
			h.writeError(ctx, w, strings.ToUpper(apperr.Kind(err)), err.Error(), http.StatusBadGateway)
		}
		return
	}

	out := make([]searchResult, len(results))
	for i, res := range results {
		keywords := res.Keywords
		if keywords == nil {
			keywords = []string{}
		}
		out[i] = searchResult{
			ID:       res.ID,
			Text:     res.Text,
			Source:   res.Source,
			Page:     res.Page,
			Keywords: keywords,
			Distance: res.Distance,
			Citation: core.Citation(res),
		}
	}
	h.writeJSON(ctx, w, http.StatusOK, map[string]interface{}{
		"data": out,
		"meta": map[string]int{"count": len(out)},
	})
}

type courseInfo struct {
	Slug  string `json:"slug"`
	Index string `json:"index"`
}

// ListCourses serves GET /courses.
func (h *Handler) ListCourses(w http.ResponseWriter, r *http.Request) {
	slugs := h.courses.Slugs()
	out := make([]courseInfo, 0, len(slugs))
	for _, slug := range slugs {
		index, err := h.courses.Resolve(slug)
		if err != nil {
			continue
		}
		out = append(out, courseInfo{Slug: slug, Index: index})
	}
	h.writeJSON(r.Context(), w, http.StatusOK, map[string]interface{}{
		"data": out,
		"meta": map[string]int{"count": len(out)},
	})
}

func (h *Handler) writeJSON(ctx context.Context, w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	h.writeJSON(ctx, w, status, map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	})
}
