package serve

import (
	"context"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/starkescrow/starkescrow/internal/apptracker"
	"github.com/starkescrow/starkescrow/internal/data"
	"github.com/starkescrow/starkescrow/internal/db"
	"github.com/starkescrow/starkescrow/internal/escrow"
	"github.com/starkescrow/starkescrow/internal/metrics"
	"github.com/starkescrow/starkescrow/internal/serve/middleware"
	"github.com/starkescrow/starkescrow/internal/services"
	"github.com/starkescrow/starkescrow/internal/tracker"
	"github.com/starkescrow/starkescrow/internal/wallet"
)

// DatabaseProvider provides the connection pool backing the attempt journal
type DatabaseProvider interface {
	GetConnectionPool() db.ConnectionPool
	GetDB(ctx context.Context) (*sqlx.DB, error)
	Close() error
}

// HTTPClientProvider provides HTTP clients
type HTTPClientProvider interface {
	GetClient() *http.Client
}

// AuthProvider provides authentication components
type AuthProvider interface {
	GetRequestVerifier() middleware.RequestVerifier
}

// ServiceDependencies holds the basic dependencies needed for service creation. DatabaseProvider is nil when
// the journal is disabled.
type ServiceDependencies struct {
	DatabaseProvider      DatabaseProvider
	HTTPClientProvider    HTTPClientProvider
	RPCURL                string
	Network               escrow.Network
	EscrowContractAddress string
	TokenAddress          string
	WalletType            wallet.SessionType
	WalletBridgeURL       string
	PollInterval          time.Duration
	MaxObservers          int
	ReaderWorkers         int
	EscrowCacheTTL        time.Duration
	SubmitRateLimit       middleware.RateLimit
	OriginPatterns        []string
	AppTracker            apptracker.AppTracker
}

// ServiceContainer manages all business services
type ServiceContainer interface {
	GetRPCService() services.RPCService
	GetEscrowService() *escrow.Service
	GetAttemptManager() *tracker.Manager
	GetSession() wallet.Session
	GetNetwork() escrow.Network
	GetMetricsService() metrics.MetricsService
	// GetModels returns nil when no database is configured.
	GetModels() *data.Models
	GetSubmitRateLimit() middleware.RateLimit
	GetOriginPatterns() []string
	GetAppTracker() apptracker.AppTracker
	Shutdown()
}

// HandlerDependencies represents all dependencies needed for HTTP handlers
type HandlerDependencies struct {
	ServiceContainer ServiceContainer
	AuthProvider     AuthProvider
}
