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

const leaveColumns = `id, user_id, start_date, end_date, reason, status, reviewed_by, reviewed_at, created_at`

// LeaveRepository persists leave requests.
type LeaveRepository struct {
	db *sqlx.DB
}

// NewLeaveRepository constructs the repository.
func NewLeaveRepository(db *sqlx.DB) *LeaveRepository {
	return &LeaveRepository{db: db}
}

// Create inserts a pending leave request for an approved student.
func (r *LeaveRepository) Create(ctx context.Context, leave *models.LeaveRequest) error {
	if leave.ID == "" {
		leave.ID = uuid.NewString()
	}
	if leave.CreatedAt.IsZero() {
		leave.CreatedAt = time.Now().UTC()
	}
	leave.Status = models.LeavePending

	return inTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := requireApproved(ctx, tx, leave.UserID); err != nil {
			return err
		}
		const query = `INSERT INTO leave_requests (` + leaveColumns + `)
		VALUES (:id, :user_id, :start_date, :end_date, :reason, :status, :reviewed_by, :reviewed_at, :created_at)`
		if _, err := tx.NamedExecContext(ctx, query, leave); err != nil {
			return fmt.Errorf("create leave request: %w", err)
		}
		return nil
	})
}

// FindByID returns a leave request.
func (r *LeaveRepository) FindByID(ctx context.Context, id string) (*models.LeaveRequest, error) {
	var leave models.LeaveRequest
	if err := r.db.GetContext(ctx, &leave, `SELECT `+leaveColumns+` FROM leave_requests WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &leave, nil
}

// List returns leave requests matching the filter, newest first.
func (r *LeaveRepository) List(ctx context.Context, filter models.TicketFilter) ([]models.LeaveRequest, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + leaveColumns + ` FROM leave_requests`)
	args := make([]interface{}, 0, 2)
	conditions := make([]string, 0, 2)
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.LeaveStatus != "" {
		args = append(args, filter.LeaveStatus)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	limit, offset := normalizeLimit(filter.Limit, filter.Offset)
	builder.WriteString(fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d OFFSET %d", limit, offset))

	var leaves []models.LeaveRequest
	if err := r.db.SelectContext(ctx, &leaves, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list leave requests: %w", err)
	}
	return leaves, nil
}

// CountPending counts the owner's unreviewed requests.
func (r *LeaveRepository) CountPending(ctx context.Context, userID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM leave_requests WHERE user_id = $1 AND status = 'pending'`, userID); err != nil {
		return 0, fmt.Errorf("count pending leave: %w", err)
	}
	return count, nil
}

// Review stamps a decision only while the request is pending. It returns
// sql.ErrNoRows when the request is missing or already reviewed.
func (r *LeaveRepository) Review(ctx context.Context, id string, status models.LeaveStatus, reviewerID string, reviewedAt time.Time) error {
	const query = `UPDATE leave_requests SET status = :status, reviewed_by = :reviewed_by, reviewed_at = :reviewed_at
	WHERE id = :id AND status = 'pending'`
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":          id,
		"status":      status,
		"reviewed_by": reviewerID,
		"reviewed_at": reviewedAt,
	})
	if err != nil {
		return fmt.Errorf("review leave request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check leave review rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
