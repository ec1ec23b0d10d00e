package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/internship-portal-api/internal/models"
)

func TestDiaryRepositoryCreateAssignsWeekUnderLock(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewDiaryRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WithArgs("stu-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	expectApproval(mock, "stu-1", "approved")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT latest.week AS latest_week")).
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"latest_week", "count_in_week"}).AddRow(3, 7))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO diary_entries")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var seen models.WeekCursor
	entry := &models.DiaryEntry{UserID: "stu-1", EntryDate: time.Now(), Hours: 6, WorkSummary: "api", Learnings: "sql"}
	err := repo.Create(context.Background(), entry, func(c models.WeekCursor) int {
		seen = c
		return c.LatestWeek + 1
	})
	require.NoError(t, err)
	require.Equal(t, models.WeekCursor{LatestWeek: 3, CountInWeek: 7}, seen)
	require.Equal(t, 4, entry.WeekNumber)
	require.False(t, entry.IsLocked)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDiaryRepositoryCreateRequiresApproval(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewDiaryRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	expectApproval(mock, "stu-1", "rejected")
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.DiaryEntry{UserID: "stu-1"}, func(models.WeekCursor) int { return 1 })
	require.ErrorIs(t, err, ErrNotApproved)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDiaryRepositoryUpdateGuarded(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewDiaryRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE diary_entries")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &models.DiaryEntry{ID: "d-1", UserID: "stu-1"}, time.Now().Add(-7*24*time.Hour))
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDiaryRepositoryUpdateRequiresApprovedOwner(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewDiaryRepository(db)
	mock.ExpectExec(`AND EXISTS \(SELECT 1 FROM student_profiles WHERE user_id = \$\d+ AND status = 'approved'\)`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &models.DiaryEntry{ID: "d-1", UserID: "stu-1"}, time.Now().Add(-7*24*time.Hour))
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDiaryRepositoryListByBatches(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewDiaryRepository(db)
	rows := sqlmock.NewRows([]string{"id", "user_id", "entry_date", "week_number", "hours", "work_summary", "learnings", "blockers", "is_locked", "created_at", "updated_at"}).
		AddRow("d-1", "stu-1", time.Now(), 1, 7.5, "api", "sql", "", false, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("JOIN student_profiles p ON p.user_id = d.user_id WHERE p.batch_id IN ($1) AND d.week_number = $2")).
		WithArgs("b1", 1).
		WillReturnRows(rows)

	entries, err := repo.List(context.Background(), models.DiaryFilter{BatchIDs: []string{"b1"}, Week: 1})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, 7.5, entries[0].Hours)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDiaryRepositoryAggregate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewDiaryRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("COALESCE(SUM(hours), 0) AS total_hours")).
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "total_hours", "entry_count", "weeks"}).AddRow("stu-1", 42.5, 8, 2))

	agg, err := repo.Aggregate(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Equal(t, 42.5, agg.TotalHours)
	require.Equal(t, 8, agg.EntryCount)
	require.Equal(t, 2, agg.Weeks)
	require.NoError(t, mock.ExpectationsWereMet())
}
