package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"studypartner/internal/middleware"
)

type DocumentRepo interface {
	Count(ctx context.Context) (int, error)
}

type JobRepo interface {
	Count(ctx context.Context) (int, error)
}

type UnitCounter interface {
	Count(ctx context.Context, index string) (int, error)
}

type Courses interface {
	Slugs() []string
	Resolve(course string) (string, error)
}

type Handler struct {
	documents DocumentRepo
	jobs      JobRepo
	units     UnitCounter
	courses   Courses
}

func NewHandler(d DocumentRepo, j JobRepo, u UnitCounter, c Courses) *Handler {
	return &Handler{documents: d, jobs: j, units: u, courses: c}
}

type StatsResponse struct {
	Documents  int            `json:"documents"`
	FailedJobs int            `json:"failed_jobs"`
	Units      map[string]int `json:"units"`
	TotalUnits int            `json:"total_units"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	docs, err := h.documents.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count documents", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count documents", http.StatusInternalServerError)
		return
	}

	jobs, err := h.jobs.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count jobs", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count jobs", http.StatusInternalServerError)
		return
	}

	resp := StatsResponse{Documents: docs, FailedJobs: jobs, Units: map[string]int{}}
	for _, course := range h.courses.Slugs() {
		index, err := h.courses.Resolve(course)
		if err != nil {
			continue
		}
		n, err := h.units.Count(ctx, index)
		if err != nil {
			slog.ErrorContext(ctx, "failed to count units", "error", err, "course", course, "index", index)
			h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count units", http.StatusInternalServerError)
			return
		}
		resp.Units[course] = n
		resp.TotalUnits += n
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
