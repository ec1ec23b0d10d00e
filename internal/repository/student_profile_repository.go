package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/internship-portal-api/internal/models"
)

const profileColumns = `id, user_id, batch_id, full_name, phone, student_code, status, reviewed_by, reviewed_at, created_at, updated_at`

// StudentProfileRepository persists student registrations.
type StudentProfileRepository struct {
	db *sqlx.DB
}

// NewStudentProfileRepository constructs the repository.
func NewStudentProfileRepository(db *sqlx.DB) *StudentProfileRepository {
	return &StudentProfileRepository{db: db}
}

// Register binds the student role (if unassigned) and inserts a pending
// profile in one transaction. A subject holding another role gets
// ErrRoleMismatch; a second registration gets ErrDuplicate.
func (r *StudentProfileRepository) Register(ctx context.Context, profile *models.StudentProfile) error {
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = profile.CreatedAt
	profile.Status = models.StatusPending

	return inTx(ctx, r.db, func(tx *sqlx.Tx) error {
		const insertRole = `INSERT INTO user_roles (user_id, role, created_at) VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO NOTHING`
		if _, err := tx.ExecContext(ctx, insertRole, profile.UserID, models.RoleStudent, now); err != nil {
			return fmt.Errorf("bind student role: %w", err)
		}
		var role models.Role
		if err := tx.GetContext(ctx, &role, `SELECT role FROM user_roles WHERE user_id = $1 FOR UPDATE`, profile.UserID); err != nil {
			return fmt.Errorf("load role: %w", err)
		}
		if role != models.RoleStudent {
			return ErrRoleMismatch
		}

		const insertProfile = `INSERT INTO student_profiles (` + profileColumns + `)
		VALUES (:id, :user_id, :batch_id, :full_name, :phone, :student_code, :status, :reviewed_by, :reviewed_at, :created_at, :updated_at)`
		if _, err := tx.NamedExecContext(ctx, insertProfile, profile); err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return fmt.Errorf("insert student profile: %w", err)
		}
		return nil
	})
}

// FindByID returns a profile by its identifier.
func (r *StudentProfileRepository) FindByID(ctx context.Context, id string) (*models.StudentProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM student_profiles WHERE id = $1`
	var profile models.StudentProfile
	if err := r.db.GetContext(ctx, &profile, query, id); err != nil {
		return nil, err
	}
	return &profile, nil
}

// FindByUserID returns the profile owned by a subject.
func (r *StudentProfileRepository) FindByUserID(ctx context.Context, userID string) (*models.StudentProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM student_profiles WHERE user_id = $1`
	var profile models.StudentProfile
	if err := r.db.GetContext(ctx, &profile, query, userID); err != nil {
		return nil, err
	}
	return &profile, nil
}

// List returns profiles matching the filter and the total count.
func (r *StudentProfileRepository) List(ctx context.Context, filter models.StudentProfileFilter) ([]models.StudentProfile, int, error) {
	conditions := make([]string, 0, 3)
	args := make([]interface{}, 0, 5)
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.BatchIDs != nil {
		if len(filter.BatchIDs) == 0 {
			return []models.StudentProfile{}, 0, nil
		}
		placeholders := make([]string, len(filter.BatchIDs))
		for i, id := range filter.BatchIDs {
			args = append(args, id)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("batch_id IN (%s)", strings.Join(placeholders, ",")))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+strings.ToLower(search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(full_name) LIKE $%d OR LOWER(student_code) LIKE $%d)", len(args), len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM student_profiles"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count student profiles: %w", err)
	}

	page, size := NormalizePage(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s FROM student_profiles%s ORDER BY created_at DESC LIMIT %d OFFSET %d",
		profileColumns, where, size, (page-1)*size)
	var profiles []models.StudentProfile
	if err := r.db.SelectContext(ctx, &profiles, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list student profiles: %w", err)
	}
	return profiles, total, nil
}

// SearchByPhone returns approved students whose phone matches exactly.
func (r *StudentProfileRepository) SearchByPhone(ctx context.Context, phone string) ([]models.StudentProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM student_profiles WHERE phone = $1 AND status = 'approved' ORDER BY full_name`
	var profiles []models.StudentProfile
	if err := r.db.SelectContext(ctx, &profiles, query, phone); err != nil {
		return nil, fmt.Errorf("search student by phone: %w", err)
	}
	return profiles, nil
}

// UpdateStatus applies a review decision only while the profile is pending.
// It returns sql.ErrNoRows when the profile is missing or already reviewed.
func (r *StudentProfileRepository) UpdateStatus(ctx context.Context, id string, status models.ApprovalStatus, reviewerID string, reviewedAt time.Time) error {
	const query = `UPDATE student_profiles
	SET status = :status, reviewed_by = :reviewed_by, reviewed_at = :reviewed_at, updated_at = :reviewed_at
	WHERE id = :id AND status = 'pending'`
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":          id,
		"status":      status,
		"reviewed_by": reviewerID,
		"reviewed_at": reviewedAt,
	})
	if err != nil {
		return fmt.Errorf("update student status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check student status rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ExistsCode reports whether a student code is taken.
func (r *StudentProfileRepository) ExistsCode(ctx context.Context, code string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM student_profiles WHERE student_code = $1)`, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check student code: %w", err)
	}
	return exists, nil
}
