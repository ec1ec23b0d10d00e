package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/internship-portal-api/internal/models"
)

// Sentinel errors raised by atomic check-and-write statements.
var (
	ErrDuplicate     = errors.New("record already exists")
	ErrAlreadyMember = errors.New("subject already a project member")
	ErrProjectFull   = errors.New("project at capacity")
	ErrNotApproved   = errors.New("student is not approved")
	// ErrRequesterNotApproved is returned when the student acting on behalf
	// of another is no longer approved.
	ErrRequesterNotApproved = errors.New("requesting student is not approved")
	ErrRoleMismatch  = errors.New("subject holds a different role")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// inTx runs fn inside a transaction, rolling back when fn fails.
func inTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// requireApproved share-locks the subject's profile so an approval review
// cannot interleave with the write that depends on it.
func requireApproved(ctx context.Context, tx *sqlx.Tx, userID string) error {
	const query = `SELECT status FROM student_profiles WHERE user_id = $1 FOR SHARE`
	var status models.ApprovalStatus
	if err := tx.GetContext(ctx, &status, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotApproved
		}
		return fmt.Errorf("check approval: %w", err)
	}
	if status != models.StatusApproved {
		return ErrNotApproved
	}
	return nil
}

// NormalizePage clamps a page number to at least 1 and a page size to
// 1..200, defaulting to 20.
func NormalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 200 {
		size = 20
	}
	return page, size
}

func normalizeLimit(limit, offset int) (int, int) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
