package document

import (
	"context"
	"database/sql"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const documentColumns = `id, name, course, index_name, path, status, units, error, created_at, updated_at`

func (r *PostgresRepo) ExistsByHash(ctx context.Context, course, hash string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM documents WHERE course = $1 AND content_hash = $2)`
	if err := r.db.QueryRowContext(ctx, query, course, hash).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *PostgresRepo) Save(ctx context.Context, doc *Document) error {
	query := `INSERT INTO documents (name, course, index_name, path, content_hash, status) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at, updated_at`
	return r.db.QueryRowContext(ctx, query, doc.Name, doc.Course, doc.Index, doc.Path, doc.ContentHash, doc.Status).
		Scan(&doc.ID, &doc.CreatedAt, &doc.UpdatedAt)
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Document, error) {
	d := &Document{}
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&d.ID, &d.Name, &d.Course, &d.Index, &d.Path, &d.Status, &d.Units, &d.Error, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *PostgresRepo) List(ctx context.Context, course string) ([]Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE ($1 = '' OR course = $1) ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, course)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Name, &d.Course, &d.Index, &d.Path, &d.Status, &d.Units, &d.Error, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

func (r *PostgresRepo) UpdateStatus(ctx context.Context, id, status, errMsg string) error {
	query := `UPDATE documents SET status = $1, error = $2, updated_at = NOW() WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, status, errMsg, id)
	return err
}

func (r *PostgresRepo) MarkCompleted(ctx context.Context, id string, units int) error {
	query := `UPDATE documents SET status = $1, units = $2, error = '', updated_at = NOW() WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, StatusCompleted, units, id)
	return err
}
