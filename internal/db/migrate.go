package db

import (
	"context"
	"fmt"
	"net/http"

	migrate "github.com/rubenv/sql-migrate"

	"github.com/starkescrow/starkescrow/internal/db/migrations"
	"github.com/starkescrow/starkescrow/internal/utils"
)

func Migrate(ctx context.Context, databaseURL string, direction migrate.MigrationDirection, count int) (int, error) {
	dbConnectionPool, err := OpenDBConnectionPool(databaseURL)
	if err != nil {
		return 0, fmt.Errorf("connecting to the database: %w", err)
	}
	defer utils.DeferredClose(ctx, dbConnectionPool, "closing dbConnectionPool in the Migrate function")

	return MigratePool(ctx, dbConnectionPool, direction, count)
}

// MigratePool applies up to count migrations on an open pool. A count of 0 applies all of them.
func MigratePool(ctx context.Context, dbConnectionPool ConnectionPool, direction migrate.MigrationDirection, count int) (int, error) {
	sqlDB, err := dbConnectionPool.SqlDB(ctx)
	if err != nil {
		return 0, fmt.Errorf("getting sql.DB: %w", err)
	}

	m := migrate.HttpFileSystemMigrationSource{FileSystem: http.FS(migrations.FS)}
	appliedMigrationsCount, err := migrate.ExecMax(sqlDB, dbConnectionPool.DriverName(), m, direction, count)
	if err != nil {
		return appliedMigrationsCount, fmt.Errorf("applying migrations: %w", err)
	}
	return appliedMigrationsCount, nil
}
