package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/internship-portal-api/internal/models"
)

const batchColumns = `id, name, start_date, end_date, faculty_id, created_at, updated_at`

// BatchRepository persists internship cohorts.
type BatchRepository struct {
	db *sqlx.DB
}

// NewBatchRepository constructs the repository.
func NewBatchRepository(db *sqlx.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// Create inserts a batch.
func (r *BatchRepository) Create(ctx context.Context, batch *models.Batch) error {
	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	batch.CreatedAt = now
	batch.UpdatedAt = now
	const query = `INSERT INTO batches (` + batchColumns + `)
	VALUES (:id, :name, :start_date, :end_date, :faculty_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, batch); err != nil {
		return fmt.Errorf("create batch: %w", err)
	}
	return nil
}

// Update replaces the mutable columns of a batch.
func (r *BatchRepository) Update(ctx context.Context, batch *models.Batch) error {
	batch.UpdatedAt = time.Now().UTC()
	const query = `UPDATE batches SET name = :name, start_date = :start_date, end_date = :end_date,
	faculty_id = :faculty_id, updated_at = :updated_at WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, batch)
	if err != nil {
		return fmt.Errorf("update batch: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check batch update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// FindByID returns a batch by identifier.
func (r *BatchRepository) FindByID(ctx context.Context, id string) (*models.Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM batches WHERE id = $1`
	var batch models.Batch
	if err := r.db.GetContext(ctx, &batch, query, id); err != nil {
		return nil, err
	}
	return &batch, nil
}

// List returns batches ordered by start date, newest first.
func (r *BatchRepository) List(ctx context.Context, filter models.BatchFilter) ([]models.Batch, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + batchColumns + ` FROM batches`)
	args := make([]interface{}, 0, len(filter.IDs)+1)
	conditions := make([]string, 0, 2)
	if filter.IDs != nil {
		if len(filter.IDs) == 0 {
			return []models.Batch{}, nil
		}
		placeholders := make([]string, len(filter.IDs))
		for i, id := range filter.IDs {
			args = append(args, id)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("id IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.FacultyID != "" {
		args = append(args, filter.FacultyID)
		conditions = append(conditions, fmt.Sprintf("faculty_id = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY start_date DESC, name")

	var batches []models.Batch
	if err := r.db.SelectContext(ctx, &batches, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	return batches, nil
}

// IDsByFaculty returns the batches assigned to a faculty member.
func (r *BatchRepository) IDsByFaculty(ctx context.Context, facultyID string) ([]string, error) {
	ids := []string{}
	if err := r.db.SelectContext(ctx, &ids, `SELECT id FROM batches WHERE faculty_id = $1 ORDER BY id`, facultyID); err != nil {
		return nil, fmt.Errorf("list faculty batches: %w", err)
	}
	return ids, nil
}
