package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "postgres"), mock, func() { db.Close() }
}

func expectApproval(mock sqlmock.Sqlmock, userID, status string) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM student_profiles WHERE user_id = $1 FOR SHARE")).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(status))
}

func TestIsUniqueViolation(t *testing.T) {
	require.True(t, isUniqueViolation(&pq.Error{Code: "23505"}))
	require.False(t, isUniqueViolation(&pq.Error{Code: "23503"}))
	require.False(t, isUniqueViolation(errors.New("boom")))
}

func TestInTxRollsBackOnError(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectRollback()

	sentinel := errors.New("stop")
	err := inTx(context.Background(), db, func(tx *sqlx.Tx) error { return sentinel })
	require.ErrorIs(t, err, sentinel)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequireApprovedRejectsPending(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	expectApproval(mock, "stu-1", "pending")
	mock.ExpectRollback()

	err := inTx(context.Background(), db, func(tx *sqlx.Tx) error {
		return requireApproved(context.Background(), tx, "stu-1")
	})
	require.ErrorIs(t, err, ErrNotApproved)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequireApprovedMissingProfile(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM student_profiles")).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"status"}))
	mock.ExpectRollback()

	err := inTx(context.Background(), db, func(tx *sqlx.Tx) error {
		return requireApproved(context.Background(), tx, "ghost")
	})
	require.ErrorIs(t, err, ErrNotApproved)
	require.NoError(t, mock.ExpectationsWereMet())
}
