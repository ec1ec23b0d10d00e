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

func expectProjectLock(mock sqlmock.Sqlmock, projectID string) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM projects WHERE id = $1 FOR UPDATE")).
		WithArgs(projectID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(projectID))
}

func TestProjectRepositoryCreateWithLeadIsAtomic(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewProjectRepository(db)
	mock.ExpectBegin()
	expectApproval(mock, "lead-1", "approved")
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO projects")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO project_members")).
		WithArgs(sqlmock.AnyArg(), "lead-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	project := &models.Project{Name: "Portal", LeadID: "lead-1"}
	require.NoError(t, repo.CreateWithLead(context.Background(), project))
	require.NotEmpty(t, project.ID)
	require.Equal(t, 1, project.MemberCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepositoryCreateRollsBackWhenLeadInsertFails(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewProjectRepository(db)
	mock.ExpectBegin()
	expectApproval(mock, "lead-1", "approved")
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO projects")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO project_members")).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := repo.CreateWithLead(context.Background(), &models.Project{Name: "Portal", LeadID: "lead-1"})
	require.ErrorIs(t, err, sql.ErrConnDone)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepositoryAddMember(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewProjectRepository(db)
	mock.ExpectBegin()
	expectProjectLock(mock, "p-1")
	expectApproval(mock, "stu-2", "approved")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM project_members")).
		WithArgs("p-1", "stu-2").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM project_members")).
		WithArgs("p-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO project_members")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.AddMember(context.Background(), &models.ProjectMember{ProjectID: "p-1", UserID: "stu-2"}, "stu-2", 5))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepositoryAddMemberFull(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewProjectRepository(db)
	mock.ExpectBegin()
	expectProjectLock(mock, "p-1")
	expectApproval(mock, "stu-6", "approved")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM project_members")).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM project_members")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
	mock.ExpectRollback()

	err := repo.AddMember(context.Background(), &models.ProjectMember{ProjectID: "p-1", UserID: "stu-6"}, "stu-6", 5)
	require.ErrorIs(t, err, ErrProjectFull)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepositoryAddMemberDuplicate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewProjectRepository(db)
	mock.ExpectBegin()
	expectProjectLock(mock, "p-1")
	expectApproval(mock, "stu-2", "approved")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM project_members")).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	err := repo.AddMember(context.Background(), &models.ProjectMember{ProjectID: "p-1", UserID: "stu-2"}, "stu-2", 5)
	require.ErrorIs(t, err, ErrAlreadyMember)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepositoryAddMemberUniqueViolation(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewProjectRepository(db)
	mock.ExpectBegin()
	expectProjectLock(mock, "p-1")
	expectApproval(mock, "stu-2", "approved")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM project_members")).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM project_members")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO project_members")).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	err := repo.AddMember(context.Background(), &models.ProjectMember{ProjectID: "p-1", UserID: "stu-2"}, "stu-2", 5)
	require.ErrorIs(t, err, ErrAlreadyMember)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepositoryAddMemberUnknownProject(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewProjectRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM projects WHERE id = $1 FOR UPDATE")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := repo.AddMember(context.Background(), &models.ProjectMember{ProjectID: "missing", UserID: "stu-2"}, "stu-2", 5)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepositoryAddMemberByLead(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewProjectRepository(db)
	mock.ExpectBegin()
	expectProjectLock(mock, "p-1")
	expectApproval(mock, "lead-1", "approved")
	expectApproval(mock, "stu-2", "approved")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM project_members")).
		WithArgs("p-1", "stu-2").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM project_members")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO project_members")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.AddMember(context.Background(), &models.ProjectMember{ProjectID: "p-1", UserID: "stu-2"}, "lead-1", 5))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepositoryAddMemberRequiresApprovedLead(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewProjectRepository(db)
	mock.ExpectBegin()
	expectProjectLock(mock, "p-1")
	expectApproval(mock, "lead-1", "rejected")
	mock.ExpectRollback()

	err := repo.AddMember(context.Background(), &models.ProjectMember{ProjectID: "p-1", UserID: "stu-2"}, "lead-1", 5)
	require.ErrorIs(t, err, ErrRequesterNotApproved)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepositoryListAvailable(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewProjectRepository(db)
	rows := sqlmock.NewRows([]string{"id", "name", "description", "lead_id", "created_at", "member_count", "lead_batch_id"}).
		AddRow("p-2", "Chatbot", "", "lead-2", time.Now(), 3, "b1")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE member_count < $3")).
		WithArgs("stu-1", "b1", 5).
		WillReturnRows(rows)

	projects, err := repo.ListAvailable(context.Background(), "stu-1", "b1", 5)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	require.Equal(t, 3, projects[0].MemberCount)
	require.NoError(t, mock.ExpectationsWereMet())
}
