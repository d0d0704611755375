package document

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"studypartner/internal/apperr"
	"studypartner/internal/extract"
	"studypartner/internal/middleware"
)

const maxUploadBytes = 50 << 20

type Handler struct {
	service   *Service
	uploadDir string
}

func NewHandler(service *Service, uploadDir string) *Handler {
	return &Handler{service: service, uploadDir: uploadDir}
}

// Upload accepts a multipart form with "file" and "course" and queues the file.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.writeError(ctx, w, "BAD_REQUEST", "File too large", http.StatusBadRequest)
		return
	}

	course := r.FormValue("course")
	if course == "" {
		h.writeError(ctx, w, "VALIDATION_ERROR", "course is required", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(ctx, w, "BAD_REQUEST", "Unable to retrieve file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if err := extract.Supported(name); err != nil {
		h.writeError(ctx, w, "UNSUPPORTED_FORMAT", err.Error(), http.StatusBadRequest)
		return
	}

	// Each upload gets its own directory so the stored file keeps its original
	// name, which is the source document name in citations.
	dir := filepath.Join(h.uploadDir, uuid.New().String())
	if err := os.MkdirAll(dir, 0o750); err != nil {
		slog.ErrorContext(ctx, "failed to create upload directory", "error", err, "path", dir)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Failed to create upload directory", http.StatusInternalServerError)
		return
	}

	path := filepath.Join(dir, name)
	if err := save(path, file); err != nil {
		slog.ErrorContext(ctx, "failed to save upload", "error", err, "path", path)
		removeUpload(ctx, dir)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Failed to save file", http.StatusInternalServerError)
		return
	}

	doc, err := h.service.Submit(ctx, path, course)
	if err != nil {
		removeUpload(ctx, dir)
		h.writeSubmitError(ctx, w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": doc}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func removeUpload(ctx context.Context, dir string) {
	if err := os.RemoveAll(dir); err != nil {
		slog.WarnContext(ctx, "failed to clean up uploaded file", "error", err, "path", dir)
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docs, err := h.service.List(ctx, r.URL.Query().Get("course"))
	if err != nil {
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}
	if docs == nil {
		docs = []Document{}
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"data": docs,
		"meta": map[string]int{"count": len(docs)},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	doc, err := h.service.Get(ctx, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.writeError(ctx, w, "NOT_FOUND", "Document not found", http.StatusNotFound)
			return
		}
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": doc}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// ListCourseFiles lists the lecture files stored for the course in the path.
func (h *Handler) ListCourseFiles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	files, err := h.service.CourseFiles(ctx, r.PathValue("course"))
	if err != nil {
		if errors.Is(err, apperr.ErrUnknownCourse) {
			h.writeError(ctx, w, "UNKNOWN_COURSE", err.Error(), http.StatusNotFound)
			return
		}
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"data": files,
		"meta": map[string]int{"count": len(files)},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// File streams the stored lecture file so a cited source can be opened.
func (h *Handler) File(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	doc, err := h.service.Get(ctx, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.writeError(ctx, w, "NOT_FOUND", "Document not found", http.StatusNotFound)
			return
		}
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	info, err := os.Stat(doc.Path)
	if err != nil || info.IsDir() {
		slog.WarnContext(ctx, "stored document file missing", "id", doc.ID, "path", doc.Path)
		h.writeError(ctx, w, "NOT_FOUND", "File not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": doc.Name}))
	http.ServeFile(w, r, doc.Path)
}

func (h *Handler) writeSubmitError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrDuplicate):
		h.writeError(ctx, w, "CONFLICT", err.Error(), http.StatusConflict)
	case errors.Is(err, apperr.ErrUnknownCourse):
		h.writeError(ctx, w, "UNKNOWN_COURSE", err.Error(), http.StatusNotFound)
	case errors.Is(err, apperr.ErrUnsupportedFormat):
		h.writeError(ctx, w, "UNSUPPORTED_FORMAT", err.Error(), http.StatusBadRequest)
	default:
		slog.ErrorContext(ctx, "document submit failed", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
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

func save(path string, src io.Reader) error {
	dst, err := os.Create(path) // #nosec G304 -- path is uuid-prefixed inside the upload dir
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}
