package serve

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/starkescrow/starkescrow/internal/db"
	"github.com/starkescrow/starkescrow/internal/serve/auth"
	"github.com/starkescrow/starkescrow/internal/serve/middleware"
)

// databaseProvider implements DatabaseProvider
type databaseProvider struct {
	connectionPool db.ConnectionPool
}

// NewDatabaseProvider opens the journal database and brings its schema up to date.
func NewDatabaseProvider(ctx context.Context, databaseURL string) (*databaseProvider, error) {
	connectionPool, err := db.OpenDBConnectionPool(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening database connection pool: %w", err)
	}

	applied, err := db.MigratePool(ctx, connectionPool, migrate.Up, 0)
	if err != nil {
		_ = connectionPool.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	if applied > 0 {
		log.Ctx(ctx).Infof("Applied %d migrations to the %s journal", applied, connectionPool.DriverName())
	}

	return &databaseProvider{
		connectionPool: connectionPool,
	}, nil
}

func (p *databaseProvider) GetConnectionPool() db.ConnectionPool {
	return p.connectionPool
}

func (p *databaseProvider) GetDB(ctx context.Context) (*sqlx.DB, error) {
	db, err := p.connectionPool.SqlxDB(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting sqlx DB: %w", err)
	}
	return db, nil
}

func (p *databaseProvider) Close() error {
	if err := p.connectionPool.Close(); err != nil {
		return fmt.Errorf("closing database connection pool: %w", err)
	}
	return nil
}

// httpClientProvider implements HTTPClientProvider
type httpClientProvider struct {
	client *http.Client
}

func NewHTTPClientProvider() *httpClientProvider {
	return &httpClientProvider{
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *httpClientProvider) GetClient() *http.Client {
	return p.client
}

// authProvider implements AuthProvider
type authProvider struct {
	requestVerifier middleware.RequestVerifier
}

func NewAuthProvider(clientAuthPublicKey string, maxTimeout time.Duration) (*authProvider, error) {
	jwtManager, err := auth.NewJWTManager(clientAuthPublicKey, maxTimeout)
	if err != nil {
		return nil, fmt.Errorf("creating JWT manager: %w", err)
	}

	return &authProvider{
		requestVerifier: jwtManager,
	}, nil
}

func (p *authProvider) GetRequestVerifier() middleware.RequestVerifier {
	return p.requestVerifier
}
