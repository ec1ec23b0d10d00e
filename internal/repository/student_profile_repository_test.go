package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/internship-portal-api/internal/models"
)

func TestStudentProfileRepositoryRegister(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewStudentProfileRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO user_roles")).
		WithArgs("stu-1", "student", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT role FROM user_roles WHERE user_id = $1 FOR UPDATE")).
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("student"))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO student_profiles")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	profile := &models.StudentProfile{UserID: "stu-1", BatchID: "batch-1", FullName: "Ana", Phone: "0812", StudentCode: "STU-2026-ABC123"}
	require.NoError(t, repo.Register(context.Background(), profile))
	require.NotEmpty(t, profile.ID)
	require.Equal(t, models.StatusPending, profile.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentProfileRepositoryRegisterRejectsOtherRole(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewStudentProfileRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO user_roles")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT role FROM user_roles")).
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("faculty"))
	mock.ExpectRollback()

	err := repo.Register(context.Background(), &models.StudentProfile{UserID: "fac-1"})
	require.ErrorIs(t, err, ErrRoleMismatch)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentProfileRepositoryRegisterTwice(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewStudentProfileRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO user_roles")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT role FROM user_roles")).
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("student"))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO student_profiles")).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	err := repo.Register(context.Background(), &models.StudentProfile{UserID: "stu-1"})
	require.ErrorIs(t, err, ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentProfileRepositoryUpdateStatusOnlyFromPending(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewStudentProfileRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE student_profiles")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE student_profiles")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	now := time.Now()
	require.NoError(t, repo.UpdateStatus(context.Background(), "prof-1", models.StatusApproved, "admin-1", now))
	err := repo.UpdateStatus(context.Background(), "prof-1", models.StatusRejected, "admin-1", now)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentProfileRepositoryListScopedToBatches(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewStudentProfileRepository(db)
	status := models.StatusPending
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM student_profiles WHERE status = $1 AND batch_id IN ($2,$3)")).
		WithArgs("pending", "b1", "b2").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	rows := sqlmock.NewRows([]string{"id", "user_id", "batch_id", "full_name", "phone", "student_code", "status", "reviewed_by", "reviewed_at", "created_at", "updated_at"}).
		AddRow("prof-1", "stu-1", "b1", "Ana", "0812", "STU-1", "pending", nil, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, batch_id")).
		WithArgs("pending", "b1", "b2").
		WillReturnRows(rows)

	list, total, err := repo.List(context.Background(), models.StudentProfileFilter{Status: &status, BatchIDs: []string{"b1", "b2"}})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, list, 1)
	require.NoError(t, mock.ExpectationsWereMet())

	empty, total, err := repo.List(context.Background(), models.StudentProfileFilter{BatchIDs: []string{}})
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, empty)
}

func TestStudentProfileRepositoryListClampsPage(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewStudentProfileRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM student_profiles")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC LIMIT 20 OFFSET 20")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, _, err := repo.List(context.Background(), models.StudentProfileFilter{Page: 2, PageSize: 500})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNormalizePage(t *testing.T) {
	cases := []struct {
		page, size         int
		wantPage, wantSize int
	}{
		{0, 0, 1, 20},
		{-3, 201, 1, 20},
		{4, 200, 4, 200},
		{2, 15, 2, 15},
	}
	for _, tc := range cases {
		page, size := NormalizePage(tc.page, tc.size)
		require.Equal(t, tc.wantPage, page)
		require.Equal(t, tc.wantSize, size)
	}
}
