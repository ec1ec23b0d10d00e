package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/internship-portal-api/internal/models"
)

func TestIdentityRepositoryAssignRoleOnce(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewIdentityRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO user_roles")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO user_roles")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.AssignRole(context.Background(), &models.Identity{SubjectID: "sub-1", Role: models.RoleFaculty}))
	err := repo.AssignRole(context.Background(), &models.Identity{SubjectID: "sub-1", Role: models.RoleAdmin})
	require.ErrorIs(t, err, ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIdentityRepositoryFindSubjectWithProfile(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewIdentityRepository(db)
	rows := sqlmock.NewRows([]string{"user_id", "role", "profile_id", "status", "batch_id"}).
		AddRow("stu-1", "student", "prof-1", "approved", "batch-1")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT r.user_id, r.role, p.id AS profile_id")).
		WithArgs("stu-1").
		WillReturnRows(rows)

	record, err := repo.FindSubject(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Equal(t, models.RoleStudent, record.Role)
	require.NotNil(t, record.StudentStatus)
	require.Equal(t, models.StatusApproved, *record.StudentStatus)
	require.Equal(t, "batch-1", *record.BatchID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIdentityRepositoryFindSubjectWithoutProfile(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewIdentityRepository(db)
	rows := sqlmock.NewRows([]string{"user_id", "role", "profile_id", "status", "batch_id"}).
		AddRow("fac-1", "faculty", nil, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM user_roles r")).
		WithArgs("fac-1").
		WillReturnRows(rows)

	record, err := repo.FindSubject(context.Background(), "fac-1")
	require.NoError(t, err)
	require.Equal(t, models.RoleFaculty, record.Role)
	require.Nil(t, record.StudentStatus)
	require.Nil(t, record.ProfileID)
	require.NoError(t, mock.ExpectationsWereMet())
}
