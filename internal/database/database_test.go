// internal/database/database_test.go
//
// Unit-tests for the connection factory, admin DDL, and Handle bindings.
// Pools are backed by go-sqlmock: the factory is pointed at the "sqlmock"
// driver and each test registers the exact DSN the factory will build.

package database

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFactory(creds Credentials) *Factory {
	return NewFactory("127.0.0.1:3306", creds, Options{
		Driver:         "sqlmock",
		ConnectTimeout: time.Second,
	})
}

func TestValidName(t *testing.T) {
	for _, ok := range []string{"db_t1", "clinic42", "A_b_C"} {
		assert.NoError(t, ValidName(ok), ok)
	}
	for _, bad := range []string{"", "db-t1", "db`; DROP", "a.b"} {
		assert.ErrorIs(t, ValidName(bad), ErrInvalidName, bad)
	}
}

func TestFactoryDSN(t *testing.T) {
	f := testFactory(StaticCredentials{User: "clinic", Password: "pw"})
	dsn, err := f.DSN(context.Background(), "db_t1")
	require.NoError(t, err)

	assert.Contains(t, dsn, "clinic:pw@tcp(127.0.0.1:3306)/db_t1?")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "timeout=1s")
}

type fakeKV struct {
	path, key string
	err       error
}

func (f *fakeKV) GetKV(_ context.Context, path, key string, _ time.Duration) (string, error) {
	f.path, f.key = path, key
	return "s3cret", f.err
}

func TestVaultCredentials(t *testing.T) {
	kv := &fakeKV{}
	creds := VaultCredentials{Client: kv, Path: "secret/clinic/tenants/"}

	user, pw, err := creds.Credentials(context.Background(), "db_t1")
	require.NoError(t, err)
	assert.Equal(t, "db_t1", user)
	assert.Equal(t, "s3cret", pw)
	assert.Equal(t, "secret/clinic/tenants/db_t1", kv.path)
	assert.Equal(t, "password", kv.key)

	_, _, err = creds.Credentials(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "secret/clinic/tenants/admin", kv.path)
}

func TestFactoryOpen(t *testing.T) {
	f := testFactory(StaticCredentials{User: "clinic", Password: "open"})
	dsn, err := f.DSN(context.Background(), "db_open")
	require.NoError(t, err)

	mockDB, _, err := sqlmock.NewWithDSN(dsn)
	require.NoError(t, err)
	defer mockDB.Close()

	h, err := f.Open(context.Background(), "db_open")
	require.NoError(t, err)
	assert.Equal(t, "db_open", h.Name())
	assert.NotNil(t, h.DB())
}

func TestFactoryOpenPingFailure(t *testing.T) {
	f := testFactory(StaticCredentials{User: "clinic", Password: "ping"})
	dsn, err := f.DSN(context.Background(), "db_ping")
	require.NoError(t, err)

	mockDB, mock, err := sqlmock.NewWithDSN(dsn, sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer mockDB.Close()
	mock.ExpectPing().WillReturnError(&mysql.MySQLError{Number: 1049, Message: "Unknown database"})

	_, err = f.Open(context.Background(), "db_ping")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectFailed)
	assert.True(t, IsUnknownDatabase(err))
}

func TestFactoryOpenTimesOut(t *testing.T) {
	f := NewFactory("127.0.0.1:3306", StaticCredentials{User: "clinic", Password: "slow"}, Options{
		Driver:         "sqlmock",
		ConnectTimeout: 50 * time.Millisecond,
	})
	dsn, err := f.DSN(context.Background(), "db_slow")
	require.NoError(t, err)

	mockDB, mock, err := sqlmock.NewWithDSN(dsn, sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer mockDB.Close()
	mock.ExpectPing().WillDelayFor(time.Second)

	start := time.Now()
	_, err = f.Open(context.Background(), "db_slow")
	assert.ErrorIs(t, err, ErrConnectFailed)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestFactoryOpenRejectsBadInput(t *testing.T) {
	f := testFactory(StaticCredentials{})
	_, err := f.Open(context.Background(), "bad-name")
	assert.ErrorIs(t, err, ErrInvalidName)

	f = testFactory(VaultCredentials{Client: &fakeKV{err: errors.New("sealed")}, Path: "secret"})
	_, err = f.Open(context.Background(), "db_t1")
	assert.ErrorIs(t, err, ErrConnectFailed)
}

func TestAdminCreateDrop(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	a := NewAdmin(sqlx.NewDb(db, "sqlmock"))

	mock.ExpectExec(regexp.QuoteMeta("CREATE DATABASE IF NOT EXISTS `db_t1`")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DROP DATABASE IF EXISTS `db_t1`")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM   information_schema.schemata")).
		WithArgs("db_t1").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))

	require.NoError(t, a.CreateDatabase(context.Background(), "db_t1"))
	require.NoError(t, a.DropDatabase(context.Background(), "db_t1"))
	ok, err := a.DatabaseExists(context.Background(), "db_t1")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, a.DropDatabase(context.Background(), "x;y"), ErrInvalidName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleBindOnce(t *testing.T) {
	h := NewHandle("db_t1", nil)

	var wg sync.WaitGroup
	winners := make(chan any, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, _ := h.BindOnce("User", i)
			winners <- v
		}(i)
	}
	wg.Wait()
	close(winners)

	first := <-winners
	for v := range winners {
		assert.Equal(t, first, v)
	}
	assert.Equal(t, 1, h.Bindings())

	require.NoError(t, h.Close())
	require.NoError(t, h.Close())
	assert.True(t, h.Closed())
}
