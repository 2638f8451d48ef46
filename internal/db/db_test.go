package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starkescrow/starkescrow/internal/db/dbtest"
)

func TestParseDataSourceName(t *testing.T) {
	testCases := []struct {
		dsn        string
		wantDriver string
		wantSource string
	}{
		{dsn: "postgres://postgres@localhost:5432/starkescrow?sslmode=disable", wantDriver: DriverPostgres, wantSource: "postgres://postgres@localhost:5432/starkescrow?sslmode=disable"},
		{dsn: "sqlite3:///var/lib/starkescrow.db", wantDriver: DriverSQLite, wantSource: "/var/lib/starkescrow.db"},
		{dsn: "file:/tmp/starkescrow.db", wantDriver: DriverSQLite, wantSource: "file:/tmp/starkescrow.db"},
	}

	for _, tc := range testCases {
		t.Run(tc.dsn, func(t *testing.T) {
			driver, source := ParseDataSourceName(tc.dsn)
			assert.Equal(t, tc.wantDriver, driver)
			assert.Equal(t, tc.wantSource, source)
		})
	}
}

func TestOpenDBConnectionPool(t *testing.T) {
	dbt := dbtest.Open(t)
	defer dbt.Close()

	dbConnectionPool, err := OpenDBConnectionPool(dbt.DSN)
	require.NoError(t, err)
	defer dbConnectionPool.Close()

	assert.Equal(t, DriverSQLite, dbConnectionPool.DriverName())

	ctx := context.Background()
	err = dbConnectionPool.Ping(ctx)
	require.NoError(t, err)

	sqlxDB, err := dbConnectionPool.SqlxDB(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sqlxDB.Stats().MaxOpenConnections)
}

func TestRunInTransactionWithResult(t *testing.T) {
	dbt := dbtest.Open(t)
	defer dbt.Close()

	dbConnectionPool, err := OpenDBConnectionPool(dbt.DSN)
	require.NoError(t, err)
	defer dbConnectionPool.Close()

	ctx := context.Background()
	const insert = `INSERT INTO transaction_attempts (id, action, phase, stage, updated_at) VALUES (?, 'create', 'PENDING', 'SUBMITTED', CURRENT_TIMESTAMP)`

	t.Run("commits", func(t *testing.T) {
		inserted, err := RunInTransactionWithResult(ctx, dbConnectionPool, nil, func(dbTx Transaction) (int64, error) {
			result, err := dbTx.ExecContext(ctx, dbTx.Rebind(insert), "committed")
			if err != nil {
				return 0, err
			}
			return result.RowsAffected()
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), inserted)

		var count int
		require.NoError(t, dbConnectionPool.GetContext(ctx, &count, `SELECT COUNT(*) FROM transaction_attempts WHERE id = 'committed'`))
		assert.Equal(t, 1, count)
	})

	t.Run("rolls_back_on_error", func(t *testing.T) {
		boom := errors.New("boom")
		result, err := RunInTransactionWithResult(ctx, dbConnectionPool, nil, func(dbTx Transaction) (string, error) {
			if _, err := dbTx.ExecContext(ctx, dbTx.Rebind(insert), "rolled-back"); err != nil {
				return "", err
			}
			return "rolled-back", boom
		})
		require.ErrorIs(t, err, boom)
		assert.Empty(t, result)

		var count int
		require.NoError(t, dbConnectionPool.GetContext(ctx, &count, `SELECT COUNT(*) FROM transaction_attempts WHERE id = 'rolled-back'`))
		assert.Equal(t, 0, count)
	})

	t.Run("returns_result", func(t *testing.T) {
		id, err := RunInTransactionWithResult(ctx, dbConnectionPool, &sql.TxOptions{}, func(dbTx Transaction) (string, error) {
			var id string
			err := dbTx.GetContext(ctx, &id, `SELECT id FROM transaction_attempts WHERE id = 'committed'`)
			return id, err
		})
		require.NoError(t, err)
		assert.Equal(t, "committed", id)
	})

	t.Run("begin_fails_on_cancelled_context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := RunInTransactionWithResult(cancelled, dbConnectionPool, nil, func(dbTx Transaction) (int, error) {
			t.Fatal("atomic function must not run")
			return 0, nil
		})
		require.ErrorIs(t, err, context.Canceled)
	})
}
