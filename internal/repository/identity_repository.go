package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/internship-portal-api/internal/models"
)

// IdentityRepository persists subject roles.
type IdentityRepository struct {
	db *sqlx.DB
}

// NewIdentityRepository constructs the repository.
func NewIdentityRepository(db *sqlx.DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

// FindSubject loads the role and student profile state for a subject. It
// returns sql.ErrNoRows when no role was ever assigned.
func (r *IdentityRepository) FindSubject(ctx context.Context, subjectID string) (*models.SubjectRecord, error) {
	const query = `SELECT r.user_id, r.role, p.id AS profile_id, p.status, p.batch_id
	FROM user_roles r
	LEFT JOIN student_profiles p ON p.user_id = r.user_id
	WHERE r.user_id = $1`
	var record models.SubjectRecord
	if err := r.db.GetContext(ctx, &record, query, subjectID); err != nil {
		return nil, err
	}
	return &record, nil
}

// FindRole returns the identity bound to subjectID.
func (r *IdentityRepository) FindRole(ctx context.Context, subjectID string) (*models.Identity, error) {
	const query = `SELECT user_id, role, created_at FROM user_roles WHERE user_id = $1`
	var identity models.Identity
	if err := r.db.GetContext(ctx, &identity, query, subjectID); err != nil {
		return nil, err
	}
	return &identity, nil
}

// AssignRole binds a role once; a second assignment returns ErrDuplicate.
func (r *IdentityRepository) AssignRole(ctx context.Context, identity *models.Identity) error {
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO user_roles (user_id, role, created_at)
	VALUES (:user_id, :role, :created_at)
	ON CONFLICT (user_id) DO NOTHING`
	result, err := r.db.NamedExecContext(ctx, query, identity)
	if err != nil {
		return fmt.Errorf("assign role: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check role assign rows: %w", err)
	}
	if rows == 0 {
		return ErrDuplicate
	}
	return nil
}
