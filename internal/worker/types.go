package worker

import (
	"context"

	"studypartner/features/job"
	"studypartner/internal/text"
)

type Ingester interface {
	IngestFile(ctx context.Context, path, course string) ([]text.Unit, error)
}

type DocumentTracker interface {
	UpdateStatus(ctx context.Context, id, status, errMsg string) error
	MarkCompleted(ctx context.Context, id string, units int) error
}

// FailedJobs parks tasks that will not be retried automatically.
type FailedJobs interface {
	Save(ctx context.Context, j *job.Job) error
}
