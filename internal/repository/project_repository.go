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

const projectSelect = `SELECT p.id, p.name, p.description, p.lead_id, p.created_at,
	(SELECT COUNT(*) FROM project_members m WHERE m.project_id = p.id) AS member_count,
	COALESCE((SELECT s.batch_id::text FROM student_profiles s WHERE s.user_id = p.lead_id), '') AS lead_batch_id
	FROM projects p`

// ProjectRepository persists projects and their membership.
type ProjectRepository struct {
	db *sqlx.DB
}

// NewProjectRepository constructs the repository.
func NewProjectRepository(db *sqlx.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// CreateWithLead inserts the project and the lead's membership atomically.
func (r *ProjectRepository) CreateWithLead(ctx context.Context, project *models.Project) error {
	if project.ID == "" {
		project.ID = uuid.NewString()
	}
	if project.CreatedAt.IsZero() {
		project.CreatedAt = time.Now().UTC()
	}

	return inTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := requireApproved(ctx, tx, project.LeadID); err != nil {
			return err
		}
		const insertProject = `INSERT INTO projects (id, name, description, lead_id, created_at)
		VALUES (:id, :name, :description, :lead_id, :created_at)`
		if _, err := tx.NamedExecContext(ctx, insertProject, project); err != nil {
			return fmt.Errorf("insert project: %w", err)
		}
		const insertLead = `INSERT INTO project_members (project_id, user_id, joined_at) VALUES ($1, $2, $3)`
		if _, err := tx.ExecContext(ctx, insertLead, project.ID, project.LeadID, project.CreatedAt); err != nil {
			return fmt.Errorf("insert project lead: %w", err)
		}
		project.MemberCount = 1
		return nil
	})
}

// AddMember inserts a membership on behalf of requesterID while holding the
// project row lock, so the duplicate and capacity checks cannot race another
// insert. It returns sql.ErrNoRows for an unknown project,
// ErrRequesterNotApproved when a requester adding someone else is not an
// approved student, ErrNotApproved when the member is not, ErrAlreadyMember
// or ErrProjectFull.
func (r *ProjectRepository) AddMember(ctx context.Context, member *models.ProjectMember, requesterID string, maxMembers int) error {
	if member.JoinedAt.IsZero() {
		member.JoinedAt = time.Now().UTC()
	}

	return inTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var locked string
		if err := tx.GetContext(ctx, &locked, `SELECT id FROM projects WHERE id = $1 FOR UPDATE`, member.ProjectID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return sql.ErrNoRows
			}
			return fmt.Errorf("lock project: %w", err)
		}
		if requesterID != "" && requesterID != member.UserID {
			if err := requireApproved(ctx, tx, requesterID); err != nil {
				if errors.Is(err, ErrNotApproved) {
					return ErrRequesterNotApproved
				}
				return err
			}
		}
		if err := requireApproved(ctx, tx, member.UserID); err != nil {
			return err
		}

		var exists bool
		const existsQuery = `SELECT EXISTS(SELECT 1 FROM project_members WHERE project_id = $1 AND user_id = $2)`
		if err := tx.GetContext(ctx, &exists, existsQuery, member.ProjectID, member.UserID); err != nil {
			return fmt.Errorf("check membership: %w", err)
		}
		if exists {
			return ErrAlreadyMember
		}

		var count int
		if err := tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM project_members WHERE project_id = $1`, member.ProjectID); err != nil {
			return fmt.Errorf("count members: %w", err)
		}
		if count >= maxMembers {
			return ErrProjectFull
		}

		const insert = `INSERT INTO project_members (project_id, user_id, joined_at) VALUES (:project_id, :user_id, :joined_at)`
		if _, err := tx.NamedExecContext(ctx, insert, member); err != nil {
			if isUniqueViolation(err) {
				return ErrAlreadyMember
			}
			return fmt.Errorf("insert project member: %w", err)
		}
		return nil
	})
}

// FindByID returns a project with its member count.
func (r *ProjectRepository) FindByID(ctx context.Context, id string) (*models.Project, error) {
	var project models.Project
	if err := r.db.GetContext(ctx, &project, projectSelect+` WHERE p.id = $1`, id); err != nil {
		return nil, err
	}
	return &project, nil
}

// Members returns the roster of a project in join order.
func (r *ProjectRepository) Members(ctx context.Context, projectID string) ([]models.ProjectMember, error) {
	const query = `SELECT m.project_id, m.user_id, s.full_name, m.joined_at
	FROM project_members m
	LEFT JOIN student_profiles s ON s.user_id = m.user_id
	WHERE m.project_id = $1 ORDER BY m.joined_at`
	var members []models.ProjectMember
	if err := r.db.SelectContext(ctx, &members, query, projectID); err != nil {
		return nil, fmt.Errorf("list project members: %w", err)
	}
	return members, nil
}

// ListAvailable returns projects led by batch-mates of the subject that the
// subject neither leads nor belongs to and that still have a free seat.
func (r *ProjectRepository) ListAvailable(ctx context.Context, subjectID, batchID string, maxMembers int) ([]models.Project, error) {
	query := `SELECT * FROM (` + projectSelect + `
	JOIN student_profiles lp ON lp.user_id = p.lead_id
	WHERE lp.batch_id = $2 AND p.lead_id <> $1
	AND NOT EXISTS (SELECT 1 FROM project_members x WHERE x.project_id = p.id AND x.user_id = $1)
	) available WHERE member_count < $3 ORDER BY created_at DESC`
	var projects []models.Project
	if err := r.db.SelectContext(ctx, &projects, query, subjectID, batchID, maxMembers); err != nil {
		return nil, fmt.Errorf("list available projects: %w", err)
	}
	return projects, nil
}

// ListByBatches returns projects whose lead belongs to one of the batches. A
// nil slice means every batch.
func (r *ProjectRepository) ListByBatches(ctx context.Context, batchIDs []string) ([]models.Project, error) {
	if batchIDs != nil && len(batchIDs) == 0 {
		return []models.Project{}, nil
	}
	query := `SELECT * FROM (` + projectSelect + `) scoped`
	args := make([]interface{}, 0, len(batchIDs))
	if batchIDs != nil {
		placeholders := make([]string, len(batchIDs))
		for i, id := range batchIDs {
			args = append(args, id)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		query += fmt.Sprintf(" WHERE lead_batch_id IN (%s)", strings.Join(placeholders, ","))
	}
	query += " ORDER BY created_at DESC"
	var projects []models.Project
	if err := r.db.SelectContext(ctx, &projects, query, args...); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

// ListByMember returns the projects a subject belongs to, including led ones.
func (r *ProjectRepository) ListByMember(ctx context.Context, subjectID string) ([]models.Project, error) {
	query := projectSelect + ` WHERE EXISTS (SELECT 1 FROM project_members x WHERE x.project_id = p.id AND x.user_id = $1)
	ORDER BY p.created_at DESC`
	var projects []models.Project
	if err := r.db.SelectContext(ctx, &projects, query, subjectID); err != nil {
		return nil, fmt.Errorf("list member projects: %w", err)
	}
	return projects, nil
}
