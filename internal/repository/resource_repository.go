package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/internship-portal-api/internal/models"
)

const resourceColumns = `id, batch_id, title, description, kind, storage_path, due_date, created_by, created_at`

// ResourceRepository persists batch resources.
type ResourceRepository struct {
	db *sqlx.DB
}

// NewResourceRepository constructs the repository.
func NewResourceRepository(db *sqlx.DB) *ResourceRepository {
	return &ResourceRepository{db: db}
}

// Create inserts a resource record.
func (r *ResourceRepository) Create(ctx context.Context, resource *models.Resource) error {
	if resource.ID == "" {
		resource.ID = uuid.NewString()
	}
	if resource.CreatedAt.IsZero() {
		resource.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO resources (` + resourceColumns + `)
	VALUES (:id, :batch_id, :title, :description, :kind, :storage_path, :due_date, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, resource); err != nil {
		return fmt.Errorf("create resource: %w", err)
	}
	return nil
}

// ListByBatches returns resources of the given batches, newest first. A nil
// slice lists every batch.
func (r *ResourceRepository) ListByBatches(ctx context.Context, batchIDs []string, kind models.ResourceKind) ([]models.Resource, error) {
	if batchIDs != nil && len(batchIDs) == 0 {
		return []models.Resource{}, nil
	}
	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + resourceColumns + ` FROM resources`)
	args := make([]interface{}, 0, len(batchIDs)+1)
	conditions := make([]string, 0, 2)
	if batchIDs != nil {
		placeholders := make([]string, len(batchIDs))
		for i, id := range batchIDs {
			args = append(args, id)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("batch_id IN (%s)", strings.Join(placeholders, ",")))
	}
	if kind != "" {
		args = append(args, kind)
		conditions = append(conditions, fmt.Sprintf("kind = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	var resources []models.Resource
	if err := r.db.SelectContext(ctx, &resources, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	return resources, nil
}
