// internal/tenant/meta/repository_test.go
//
// Unit-tests for the tenant directory helpers using sqlmock.
//
// Run: go test ./internal/tenant/meta -v

package meta

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var recordCols = []string{
	"id", "display_name", "db_name", "active", "database_created", "config",
	"created_at", "updated_at",
}

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(sqlx.NewDb(db, "mysql")), mock
}

func TestByID(t *testing.T) {
	s, mock := newTestStore(t)
	now := time.Now()
	branding := `{"logo":"/t1.png","color":"#0a0"}`

	mock.ExpectQuery(regexp.QuoteMeta("FROM tenant WHERE id = ? LIMIT 1")).
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows(recordCols).
			AddRow("t1", "Clinic One", "db_t1", true, false, []byte(branding), now, now))

	rec, err := s.ByID(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "db_t1", rec.DBName)
	assert.True(t, rec.Active)
	assert.False(t, rec.DatabaseCreated)
	assert.Equal(t, branding, rec.Config.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestByIDNotFoundVersusUnavailable(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery("FROM tenant").WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(recordCols))
	_, err := s.ByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, errors.Is(err, ErrUnavailable))

	mock.ExpectQuery("FROM tenant").WithArgs("t1").
		WillReturnError(errors.New("dial tcp: connection refused"))
	_, err = s.ByID(context.Background(), "t1")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, errors.Is(err, ErrNotFound))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAllActive(t *testing.T) {
	s, mock := newTestStore(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE active = TRUE ORDER BY id")).
		WillReturnRows(sqlmock.NewRows(recordCols).
			AddRow("t1", "One", "db_t1", true, true, nil, now, now).
			AddRow("t3", "Three", "db_t3", true, false, nil, now, now))

	rows, err := s.AllActive(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "t3", rows[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertRejectsDBNameCollision(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery("SELECT COALESCE").
		WithArgs("t9", "db_t1", "t9", "db_t1").
		WillReturnRows(sqlmock.NewRows([]string{"id_taken", "db_taken"}).AddRow(0, 1))

	err := s.Insert(context.Background(), &Record{ID: "t9", DBName: "db_t1"})
	assert.ErrorIs(t, err, ErrDBNameTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery("SELECT COALESCE").
		WillReturnRows(sqlmock.NewRows([]string{"id_taken", "db_taken"}).AddRow(0, 0))
	mock.ExpectExec("INSERT INTO tenant").
		WithArgs("t1", "Clinic One", "db_t1", true, false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := &Record{ID: "t1", DisplayName: "Clinic One", DBName: "db_t1", Active: true}
	require.NoError(t, s.Insert(context.Background(), rec))
	assert.Equal(t, "{}", rec.Config.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertDuplicateKeyRace(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery("SELECT COALESCE").
		WillReturnRows(sqlmock.NewRows([]string{"id_taken", "db_taken"}).AddRow(0, 0))
	mock.ExpectExec("INSERT INTO tenant").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	err := s.Insert(context.Background(), &Record{ID: "t1", DBName: "db_t1"})
	assert.ErrorIs(t, err, ErrDBNameTaken)
}

func TestMarkHelpers(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE tenant SET database_created = TRUE WHERE id = ?")).
		WithArgs("t1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE tenant SET active = FALSE WHERE id = ?")).
		WithArgs("t1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM tenant WHERE id = ?")).
		WithArgs("t1").WillReturnError(errors.New("gone away"))

	require.NoError(t, s.MarkDatabaseCreated(context.Background(), "t1"))
	require.NoError(t, s.MarkInactive(context.Background(), "t1"))
	assert.ErrorIs(t, s.Delete(context.Background(), "t1"), ErrUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}
