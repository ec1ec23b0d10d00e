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

const diaryColumns = `id, user_id, entry_date, week_number, hours, work_summary, learnings, blockers, is_locked, created_at, updated_at`

// WeekAssigner picks the week of a new entry from the owner's current cursor.
type WeekAssigner func(models.WeekCursor) int

// DiaryRepository persists diary entries.
type DiaryRepository struct {
	db *sqlx.DB
}

// NewDiaryRepository constructs the repository.
func NewDiaryRepository(db *sqlx.DB) *DiaryRepository {
	return &DiaryRepository{db: db}
}

// Create assigns the week and inserts the entry while holding a per-owner
// advisory lock, so concurrent creates observe each other's week counts. The
// owner's approval is re-checked inside the same transaction.
func (r *DiaryRepository) Create(ctx context.Context, entry *models.DiaryEntry, assign WeekAssigner) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.UpdatedAt = entry.CreatedAt
	entry.IsLocked = false

	return inTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, entry.UserID); err != nil {
			return fmt.Errorf("lock diary owner: %w", err)
		}
		if err := requireApproved(ctx, tx, entry.UserID); err != nil {
			return err
		}

		const cursorQuery = `SELECT latest.week AS latest_week,
		(SELECT COUNT(*) FROM diary_entries d WHERE d.user_id = $1 AND d.week_number = latest.week) AS count_in_week
		FROM (SELECT COALESCE(MAX(week_number), 1) AS week FROM diary_entries WHERE user_id = $1) latest`
		var cursor models.WeekCursor
		if err := tx.GetContext(ctx, &cursor, cursorQuery, entry.UserID); err != nil {
			return fmt.Errorf("load week cursor: %w", err)
		}
		entry.WeekNumber = assign(cursor)

		const insert = `INSERT INTO diary_entries (` + diaryColumns + `)
		VALUES (:id, :user_id, :entry_date, :week_number, :hours, :work_summary, :learnings, :blockers, :is_locked, :created_at, :updated_at)`
		if _, err := tx.NamedExecContext(ctx, insert, entry); err != nil {
			return fmt.Errorf("insert diary entry: %w", err)
		}
		return nil
	})
}

// FindByID returns a diary entry.
func (r *DiaryRepository) FindByID(ctx context.Context, id string) (*models.DiaryEntry, error) {
	query := `SELECT ` + diaryColumns + ` FROM diary_entries WHERE id = $1`
	var entry models.DiaryEntry
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Update rewrites the text, date and hours of an entry only while it is
// unlocked, owned by entry.UserID and created at or after editableSince. The
// owner must still be an approved student. Week number and owner are never written. It returns sql.ErrNoRows when the
// guard rejects the write.
func (r *DiaryRepository) Update(ctx context.Context, entry *models.DiaryEntry, editableSince time.Time) error {
	entry.UpdatedAt = time.Now().UTC()
	const query = `UPDATE diary_entries
	SET entry_date = :entry_date, hours = :hours, work_summary = :work_summary, learnings = :learnings,
	    blockers = :blockers, updated_at = :updated_at
	WHERE id = :id AND user_id = :user_id AND is_locked = FALSE AND created_at >= :editable_since
	  AND EXISTS (SELECT 1 FROM student_profiles WHERE user_id = :user_id AND status = 'approved')`
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":             entry.ID,
		"user_id":        entry.UserID,
		"entry_date":     entry.EntryDate,
		"hours":          entry.Hours,
		"work_summary":   entry.WorkSummary,
		"learnings":      entry.Learnings,
		"blockers":       entry.Blockers,
		"updated_at":     entry.UpdatedAt,
		"editable_since": editableSince,
	})
	if err != nil {
		return fmt.Errorf("update diary entry: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check diary update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Lock marks an entry immutable.
func (r *DiaryRepository) Lock(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE diary_entries SET is_locked = TRUE, updated_at = $2 WHERE id = $1`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("lock diary entry: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check diary lock rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns entries ordered by week then insertion.
func (r *DiaryRepository) List(ctx context.Context, filter models.DiaryFilter) ([]models.DiaryEntry, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT d.id, d.user_id, d.entry_date, d.week_number, d.hours, d.work_summary, d.learnings,
	d.blockers, d.is_locked, d.created_at, d.updated_at FROM diary_entries d`)
	args := make([]interface{}, 0, len(filter.BatchIDs)+2)
	conditions := make([]string, 0, 3)
	if filter.BatchIDs != nil {
		if len(filter.BatchIDs) == 0 {
			return []models.DiaryEntry{}, nil
		}
		builder.WriteString(" JOIN student_profiles p ON p.user_id = d.user_id")
		placeholders := make([]string, len(filter.BatchIDs))
		for i, id := range filter.BatchIDs {
			args = append(args, id)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("p.batch_id IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conditions = append(conditions, fmt.Sprintf("d.user_id = $%d", len(args)))
	}
	if filter.Week > 0 {
		args = append(args, filter.Week)
		conditions = append(conditions, fmt.Sprintf("d.week_number = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	limit, offset := normalizeLimit(filter.Limit, filter.Offset)
	builder.WriteString(fmt.Sprintf(" ORDER BY d.user_id, d.week_number, d.created_at LIMIT %d OFFSET %d", limit, offset))

	var entries []models.DiaryEntry
	if err := r.db.SelectContext(ctx, &entries, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list diary entries: %w", err)
	}
	return entries, nil
}

// Aggregate sums hours and counts entries for an owner.
func (r *DiaryRepository) Aggregate(ctx context.Context, userID string) (*models.DiaryAggregate, error) {
	const query = `SELECT $1::text AS user_id, COALESCE(SUM(hours), 0) AS total_hours, COUNT(*) AS entry_count,
	COALESCE(MAX(week_number), 0) AS weeks FROM diary_entries WHERE user_id = $1`
	var aggregate models.DiaryAggregate
	if err := r.db.GetContext(ctx, &aggregate, query, userID); err != nil {
		return nil, fmt.Errorf("aggregate diary: %w", err)
	}
	return &aggregate, nil
}
