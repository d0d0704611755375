package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"studypartner/internal/config"
)

var ErrPublishTimeout = errors.New("timeout waiting for NSQ publish")

const defaultPublishTimeout = 5 * time.Second

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

// DocumentStatus is the document repository's status setter. document.PostgresRepo
// satisfies it.
type DocumentStatus interface {
	UpdateStatus(ctx context.Context, id, status, errMsg string) error
}

type Service struct {
	repo           Repository
	pub            EventPublisher
	documents      DocumentStatus
	logger         *slog.Logger
	publishTimeout time.Duration
}

func NewService(repo Repository, pub EventPublisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, pub: pub, logger: logger, publishTimeout: defaultPublishTimeout}
}

// WithPublishTimeout bounds how long Retry waits for the broker.
func (s *Service) WithPublishTimeout(d time.Duration) *Service {
	s.publishTimeout = d
	return s
}

// WithDocuments lets Retry move the job's document back to queued.
func (s *Service) WithDocuments(d DocumentStatus) *Service {
	s.documents = d
	return s
}

func (s *Service) List(ctx context.Context, course string) ([]Job, error) {
	return s.repo.List(ctx, course)
}

// Retry re-publishes a failed job's original task and removes the job. The
// document goes back to queued before the publish, never after it.
func (s *Service) Retry(ctx context.Context, id string) error {
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	var probe map[string]interface{}
	if err := json.Unmarshal(job.Payload, &probe); err != nil {
		return fmt.Errorf("invalid job payload: %w", err)
	}

	s.setDocumentStatus(ctx, job, "queued", "")
	if err := s.publish(ctx, job.Payload); err != nil {
		s.setDocumentStatus(ctx, job, "failed", job.Error)
		return err
	}

	s.logger.InfoContext(ctx, "re-published failed job", "id", id, "document_id", job.DocumentID, "course", job.Course)
	return s.repo.Delete(ctx, id)
}

// Discard removes a failed job without retrying it.
func (s *Service) Discard(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "discarded failed job", "id", id)
	return nil
}

func (s *Service) setDocumentStatus(ctx context.Context, job *Job, status, errMsg string) {
	if s.documents == nil || job.DocumentID == "" {
		return
	}
	if err := s.documents.UpdateStatus(ctx, job.DocumentID, status, errMsg); err != nil {
		s.logger.WarnContext(ctx, "failed to update document status", "document_id", job.DocumentID, "status", status, "error", err)
	}
}

func (s *Service) publish(ctx context.Context, payload []byte) error {
	done := make(chan error, 1)
	go func() {
		done <- s.pub.Publish(config.TopicIngestDocument, payload)
	}()

	timer := time.NewTimer(s.publishTimeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			return err
		}
	case <-timer.C:
		return ErrPublishTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
