// Package worker holds the NSQ consumers that run ingestion off the request path.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nsqio/go-nsq"

	"studypartner/features/job"
	"studypartner/internal/apperr"
	"studypartner/internal/middleware"
)

const handlerName = "ingest-worker"

// DefaultMaxAttempts matches the nsq consumer default.
const DefaultMaxAttempts = 5

type IngestConsumer struct {
	ingester    Ingester
	documents   DocumentTracker
	jobs        FailedJobs
	timeout     time.Duration
	maxAttempts uint16
}

func NewIngestConsumer(i Ingester, d DocumentTracker, j FailedJobs, timeout time.Duration) *IngestConsumer {
	return &IngestConsumer{
		ingester:    i,
		documents:   d,
		jobs:        j,
		timeout:     timeout,
		maxAttempts: DefaultMaxAttempts,
	}
}

// WithMaxAttempts sets how many deliveries a transient failure gets before the
// task is recorded as a failed job.
func (h *IngestConsumer) WithMaxAttempts(n uint16) *IngestConsumer {
	h.maxAttempts = n
	return h
}

func (h *IngestConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var task IngestTask
	err := json.Unmarshal(m.Body, &task)

	correlationID := task.CorrelationID
	if correlationID == "" {
		correlationID = uuid.New().String()
	}
	ctx := middleware.WithCorrelationID(context.Background(), correlationID)

	if err != nil {
		// Poison pill: a body that never decodes is never retried.
		slog.ErrorContext(ctx, "invalid ingest task, dropping", "error", err)
		return nil
	}
	if task.DocumentID == "" || task.Path == "" || task.Course == "" {
		slog.ErrorContext(ctx, "ingest task missing fields, dropping", "document_id", task.DocumentID, "path", task.Path, "course", task.Course)
		return nil
	}
	ctx = middleware.WithCourse(ctx, task.Course)

	if err := h.documents.UpdateStatus(ctx, task.DocumentID, StatusProcessing, ""); err != nil {
		slog.WarnContext(ctx, "failed to mark document processing", "error", err, "document_id", task.DocumentID)
	}

	runCtx, cancel := h.withTimeout(ctx)
	defer cancel()

	units, err := h.ingester.IngestFile(runCtx, task.Path, task.Course)
	if err != nil {
		if !permanent(err) && m.Attempts < h.maxAttempts {
			slog.WarnContext(ctx, "ingestion failed, requeueing", "error", err, "document_id", task.DocumentID, "attempt", m.Attempts)
			return err
		}
		h.fail(ctx, task, m, err)
		return nil
	}

	if err := h.documents.MarkCompleted(ctx, task.DocumentID, len(units)); err != nil {
		slog.ErrorContext(ctx, "failed to mark document completed", "error", err, "document_id", task.DocumentID)
		return err
	}
	slog.InfoContext(ctx, "document ingested", "document_id", task.DocumentID, "units", len(units))
	return nil
}

func (h *IngestConsumer) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, h.timeout)
}

func (h *IngestConsumer) fail(ctx context.Context, task IngestTask, m *nsq.Message, cause error) {
	slog.ErrorContext(ctx, "ingestion failed", "error", cause, "kind", apperr.Kind(cause), "document_id", task.DocumentID)

	if err := h.documents.UpdateStatus(ctx, task.DocumentID, StatusFailed, cause.Error()); err != nil {
		slog.WarnContext(ctx, "failed to mark document failed", "error", err, "document_id", task.DocumentID)
	}

	failed := &job.Job{
		DocumentID: task.DocumentID,
		Course:     task.Course,
		Handler:    handlerName,
		Payload:    json.RawMessage(m.Body),
		ErrorKind:  apperr.Kind(cause),
		Error:      cause.Error(),
		Retries:    int(m.Attempts),
	}
	if err := h.jobs.Save(ctx, failed); err != nil {
		slog.ErrorContext(ctx, "failed to save failed job", "error", err, "document_id", task.DocumentID)
	}
}

// permanent reports failures that another delivery cannot fix.
func permanent(err error) bool {
	return errors.Is(err, apperr.ErrUnknownCourse) || errors.Is(err, apperr.ErrUnsupportedFormat)
}
