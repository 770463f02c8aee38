// internal/model/user_test.go

package model

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var userCols = []string{
	"id", "email", "password_hash", "display_name", "role", "created_at", "updated_at",
}

func testUsers(t *testing.T) (*Users, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	u := newUsers(newAccessor(Builtin()[0], sqlx.NewDb(db, "mysql")))
	u.cost = bcrypt.MinCost
	return u, mock
}

func TestVerifyCredentials(t *testing.T) {
	u, mock := testUsers(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)

	q := regexp.QuoteMeta("SELECT * FROM `users` WHERE email = ? LIMIT 1")
	now := time.Now()
	row := func() *sqlmock.Rows {
		return sqlmock.NewRows(userCols).
			AddRow(7, "dr@clinic.test", string(hash), "Dr. Who", "clinician", now, now)
	}

	mock.ExpectQuery(q).WithArgs("dr@clinic.test").WillReturnRows(row())
	got, err := u.VerifyCredentials(context.Background(), "dr@clinic.test", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.ID)

	mock.ExpectQuery(q).WithArgs("dr@clinic.test").WillReturnRows(row())
	_, err = u.VerifyCredentials(context.Background(), "dr@clinic.test", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	mock.ExpectQuery(q).WithArgs("nobody@clinic.test").WillReturnRows(sqlmock.NewRows(userCols))
	_, err = u.VerifyCredentials(context.Background(), "nobody@clinic.test", "x")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsersCreateHashesPassword(t *testing.T) {
	u, mock := testUsers(t)

	mock.ExpectExec(regexp.QuoteMeta(
		"INSERT INTO `users` (email, password_hash, display_name, role) VALUES (?, ?, ?, ?)",
	)).
		WithArgs("p@clinic.test", sqlmock.AnyArg(), "Pat", "patient").
		WillReturnResult(sqlmock.NewResult(11, 1))

	id, err := u.Create(context.Background(), "p@clinic.test", "Pat", "patient", "pw")
	require.NoError(t, err)
	assert.Equal(t, int64(11), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccessorCountAndDelete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	a := newAccessor(Builtin()[3], sqlx.NewDb(db, "mysql"))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM `moods`")).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `moods` WHERE id = ?")).
		WithArgs(int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := a.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	ok, err := a.Delete(context.Background(), 2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
