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

const queryColumns = `id, user_id, title, description, is_resolved, response, resolved_by, resolved_at, created_at`

// AdminQueryRepository persists admin query tickets.
type AdminQueryRepository struct {
	db *sqlx.DB
}

// NewAdminQueryRepository constructs the repository.
func NewAdminQueryRepository(db *sqlx.DB) *AdminQueryRepository {
	return &AdminQueryRepository{db: db}
}

// Create inserts an open query for an approved student.
func (r *AdminQueryRepository) Create(ctx context.Context, query *models.AdminQuery) error {
	if query.ID == "" {
		query.ID = uuid.NewString()
	}
	if query.CreatedAt.IsZero() {
		query.CreatedAt = time.Now().UTC()
	}
	query.IsResolved = false

	return inTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := requireApproved(ctx, tx, query.UserID); err != nil {
			return err
		}
		const insert = `INSERT INTO admin_queries (` + queryColumns + `)
		VALUES (:id, :user_id, :title, :description, :is_resolved, :response, :resolved_by, :resolved_at, :created_at)`
		if _, err := tx.NamedExecContext(ctx, insert, query); err != nil {
			return fmt.Errorf("create admin query: %w", err)
		}
		return nil
	})
}

// FindByID returns a query ticket.
func (r *AdminQueryRepository) FindByID(ctx context.Context, id string) (*models.AdminQuery, error) {
	var query models.AdminQuery
	if err := r.db.GetContext(ctx, &query, `SELECT `+queryColumns+` FROM admin_queries WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &query, nil
}

// List returns query tickets matching the filter, newest first.
func (r *AdminQueryRepository) List(ctx context.Context, filter models.TicketFilter) ([]models.AdminQuery, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + queryColumns + ` FROM admin_queries`)
	args := make([]interface{}, 0, 2)
	conditions := make([]string, 0, 2)
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Resolved != nil {
		args = append(args, *filter.Resolved)
		conditions = append(conditions, fmt.Sprintf("is_resolved = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	limit, offset := normalizeLimit(filter.Limit, filter.Offset)
	builder.WriteString(fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d OFFSET %d", limit, offset))

	var queries []models.AdminQuery
	if err := r.db.SelectContext(ctx, &queries, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list admin queries: %w", err)
	}
	return queries, nil
}

// CountOpen counts the owner's unresolved queries.
func (r *AdminQueryRepository) CountOpen(ctx context.Context, userID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM admin_queries WHERE user_id = $1 AND is_resolved = FALSE`, userID); err != nil {
		return 0, fmt.Errorf("count open queries: %w", err)
	}
	return count, nil
}

// Resolve flips is_resolved once. It returns sql.ErrNoRows when the query is
// missing or already resolved.
func (r *AdminQueryRepository) Resolve(ctx context.Context, id string, response *string, resolverID string, resolvedAt time.Time) error {
	const update = `UPDATE admin_queries SET is_resolved = TRUE, response = :response, resolved_by = :resolved_by, resolved_at = :resolved_at
	WHERE id = :id AND is_resolved = FALSE`
	result, err := r.db.NamedExecContext(ctx, update, map[string]interface{}{
		"id":          id,
		"response":    response,
		"resolved_by": resolverID,
		"resolved_at": resolvedAt,
	})
	if err != nil {
		return fmt.Errorf("resolve admin query: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check query resolve rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
