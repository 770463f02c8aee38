// internal/model/migrate_test.go

package model

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateAppliesPendingVersions(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	users := Builtin()[0]
	users.Migrations = append(users.Migrations, "ALTER TABLE users ADD COLUMN phone VARCHAR(32) NULL")
	moods := Schema{
		Name:       MoodModel,
		Table:      "moods",
		Migrations: []string{"CREATE TABLE IF NOT EXISTS moods (id BIGINT)"},
	}
	r, err := NewRegistry(users, moods)
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT model, version FROM schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"model", "version"}).AddRow(UserModel, 1))
	mock.ExpectExec(regexp.QuoteMeta("ALTER TABLE users ADD COLUMN phone")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO schema_migrations").
		WithArgs(UserModel, 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS moods")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO schema_migrations").
		WithArgs(MoodModel, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := r.Migrate(context.Background(), sqlx.NewDb(db, "mysql"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateUpToDateIsNoop(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	r, err := NewRegistry(Builtin()[0])
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT model, version FROM schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"model", "version"}).AddRow(UserModel, 1))

	n, err := r.Migrate(context.Background(), sqlx.NewDb(db, "mysql"))
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
