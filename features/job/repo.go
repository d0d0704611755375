package job

import (
	"context"
	"database/sql"
	"encoding/json"
)

type Repository interface {
	Save(ctx context.Context, job *Job) error
	List(ctx context.Context, course string) ([]Job, error)
	Get(ctx context.Context, id string) (*Job, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

const jobColumns = `id, COALESCE(document_id::text, ''), course, handler, payload, error_kind, error, retries, created_at`

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Save(ctx context.Context, job *Job) error {
	query := `INSERT INTO failed_jobs (document_id, course, handler, payload, error_kind, error, retries) VALUES (NULLIF($1, '')::uuid, $2, $3, $4, $5, $6, $7) RETURNING id, created_at`
	return r.db.QueryRowContext(ctx, query,
		job.DocumentID, job.Course, job.Handler, []byte(job.Payload), job.ErrorKind, job.Error, job.Retries,
	).Scan(&job.ID, &job.CreatedAt)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(s scanner) (Job, error) {
	var j Job
	var payload []byte
	err := s.Scan(&j.ID, &j.DocumentID, &j.Course, &j.Handler, &payload, &j.ErrorKind, &j.Error, &j.Retries, &j.CreatedAt)
	j.Payload = json.RawMessage(payload)
	return j, err
}

// List returns failed jobs newest first, all courses when course is empty.
func (r *PostgresRepo) List(ctx context.Context, course string) ([]Job, error) {
	query := `SELECT ` + jobColumns + ` FROM failed_jobs WHERE ($1 = '' OR course = $1) ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, course)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Job, error) {
	j, err := scanJob(r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM failed_jobs WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// Delete returns sql.ErrNoRows when no job has that id.
func (r *PostgresRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM failed_jobs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM failed_jobs`).Scan(&count)
	return count, err
}
