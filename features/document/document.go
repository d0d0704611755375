package document

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"studypartner/internal/config"
	"studypartner/internal/extract"
	"studypartner/internal/middleware"
	"studypartner/internal/worker"
)

const (
	StatusQueued     = worker.StatusQueued
	StatusProcessing = worker.StatusProcessing
	StatusCompleted  = worker.StatusCompleted
	StatusFailed     = worker.StatusFailed
)

// ErrDuplicate is returned when the same file was already submitted for a course.
var ErrDuplicate = errors.New("document already submitted for this course")

type Document struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Course      string    `json:"course"`
	Index       string    `json:"index"`
	Path        string    `json:"path"`
	ContentHash string    `json:"-"`
	Status      string    `json:"status"`
	Units       int       `json:"units"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// File is the listing entry for one stored lecture file.
type File struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Status string `json:"status"`
}

// fileType reports "pdf" or "ppt" from the original file name, ignoring the
// ".txt" extraction suffix.
func fileType(name string) string {
	switch strings.ToLower(filepath.Ext(strings.TrimSuffix(name, ".txt"))) {
	case ".pdf":
		return "pdf"
	case ".ppt", ".pptx":
		return "ppt"
	}
	return "other"
}

type Repository interface {
	Save(ctx context.Context, doc *Document) error
	ExistsByHash(ctx context.Context, course, hash string) (bool, error)
	Get(ctx context.Context, id string) (*Document, error)
	List(ctx context.Context, course string) ([]Document, error)
	Count(ctx context.Context) (int, error)
	UpdateStatus(ctx context.Context, id, status, errMsg string) error
	MarkCompleted(ctx context.Context, id string, units int) error
}

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type CourseResolver interface {
	Resolve(course string) (string, error)
}

type Service struct {
	repo    Repository
	pub     EventPublisher
	courses CourseResolver
}

func NewService(repo Repository, pub EventPublisher, courses CourseResolver) *Service {
	return &Service{repo: repo, pub: pub, courses: courses}
}

// Submit records a lecture file for ingestion into course and queues it for
// the ingest workers.
func (s *Service) Submit(ctx context.Context, path, course string) (*Document, error) {
	index, err := s.courses.Resolve(course)
	if err != nil {
		return nil, err
	}
	if err := extract.Supported(path); err != nil {
		return nil, err
	}

	hash, err := hashFile(path)
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsByHash(ctx, course, hash)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicate
	}

	doc := &Document{
		Name:        filepath.Base(path),
		Course:      course,
		Index:       index,
		Path:        path,
		ContentHash: hash,
		Status:      StatusQueued,
	}
	if err := s.repo.Save(ctx, doc); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(worker.IngestTask{
		DocumentID:    doc.ID,
		Path:          doc.Path,
		Course:        course,
		CorrelationID: middleware.GetCorrelationID(ctx),
	})
	if err != nil {
		return nil, err
	}
	if err := s.pub.Publish(config.TopicIngestDocument, payload); err != nil {
		slog.ErrorContext(ctx, "failed to publish ingest task", "error", err, "id", doc.ID)
		if uerr := s.repo.UpdateStatus(ctx, doc.ID, StatusFailed, err.Error()); uerr != nil {
			slog.WarnContext(ctx, "failed to mark document failed", "error", uerr, "id", doc.ID)
		}
		return nil, fmt.Errorf("publish ingest task: %w", err)
	}

	slog.InfoContext(ctx, "queued document for ingestion", "id", doc.ID, "name", doc.Name, "course", course)
	return doc, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Document, error) {
	return s.repo.Get(ctx, id)
}

// List returns documents newest first, optionally restricted to one course.
func (s *Service) List(ctx context.Context, course string) ([]Document, error) {
	return s.repo.List(ctx, course)
}

// CourseFiles lists the lecture files submitted for course, newest first.
func (s *Service) CourseFiles(ctx context.Context, course string) ([]File, error) {
	if _, err := s.courses.Resolve(course); err != nil {
		return nil, err
	}
	docs, err := s.repo.List(ctx, course)
	if err != nil {
		return nil, err
	}
	files := make([]File, 0, len(docs))
	for _, d := range docs {
		files = append(files, File{ID: d.ID, Name: d.Name, Type: fileType(d.Name), Status: d.Status})
	}
	return files, nil
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path) // #nosec G304 -- path comes from the uploader or operator
	if err != nil {
		return "", fmt.Errorf("open document: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash document: %w", err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
