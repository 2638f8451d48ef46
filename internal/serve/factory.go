package serve

import (
	"context"
	"fmt"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/jmoiron/sqlx"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/starkescrow/starkescrow/internal/apptracker"
	"github.com/starkescrow/starkescrow/internal/data"
	"github.com/starkescrow/starkescrow/internal/escrow"
	"github.com/starkescrow/starkescrow/internal/metrics"
	"github.com/starkescrow/starkescrow/internal/serve/middleware"
	"github.com/starkescrow/starkescrow/internal/services"
	"github.com/starkescrow/starkescrow/internal/tracker"
	"github.com/starkescrow/starkescrow/internal/wallet"
)

const (
	readerPoolName         = "escrow_reader"
	defaultReaderWorkers   = 8
	walletConnectAttempts  = 5
	walletConnectRetryWait = 2 * time.Second
)

// serviceContainer implements ServiceContainer
type serviceContainer struct {
	rpcService      services.RPCService
	escrowService   *escrow.Service
	manager         *tracker.Manager
	readerPool      pond.Pool
	session         wallet.Session
	network         escrow.Network
	metricsService  metrics.MetricsService
	models          *data.Models
	dbProvider      DatabaseProvider
	submitRateLimit middleware.RateLimit
	originPatterns  []string
	appTracker      apptracker.AppTracker
}

func (c *serviceContainer) GetRPCService() services.RPCService {
	return c.rpcService
}

func (c *serviceContainer) GetEscrowService() *escrow.Service {
	return c.escrowService
}

func (c *serviceContainer) GetAttemptManager() *tracker.Manager {
	return c.manager
}

func (c *serviceContainer) GetSession() wallet.Session {
	return c.session
}

func (c *serviceContainer) GetNetwork() escrow.Network {
	return c.network
}

func (c *serviceContainer) GetMetricsService() metrics.MetricsService {
	return c.metricsService
}

func (c *serviceContainer) GetModels() *data.Models {
	return c.models
}

func (c *serviceContainer) GetSubmitRateLimit() middleware.RateLimit {
	return c.submitRateLimit
}

func (c *serviceContainer) GetOriginPatterns() []string {
	return c.originPatterns
}

func (c *serviceContainer) GetAppTracker() apptracker.AppTracker {
	return c.appTracker
}

// Shutdown stops every observation and releases the worker pools and the database. Pending transactions keep
// their state on the network; only the local observation ends.
func (c *serviceContainer) Shutdown() {
	c.manager.Shutdown()
	c.readerPool.StopAndWait()
	if c.dbProvider != nil {
		if err := c.dbProvider.Close(); err != nil {
			log.Errorf("closing journal database: %v", err)
		}
	}
}

// NewServiceContainer creates a new service container with all required services
func NewServiceContainer(ctx context.Context, deps ServiceDependencies) (*serviceContainer, error) {
	var sqlxDB *sqlx.DB
	if deps.DatabaseProvider != nil {
		var err error
		sqlxDB, err = deps.DatabaseProvider.GetDB(ctx)
		if err != nil {
			return nil, fmt.Errorf("getting database: %w", err)
		}
	}

	metricsService := metrics.NewMetricsService(sqlxDB)

	models, err := createModels(deps, metricsService)
	if err != nil {
		return nil, fmt.Errorf("creating models: %w", err)
	}

	rpcService, err := createRPCService(deps, metricsService)
	if err != nil {
		return nil, fmt.Errorf("creating RPC service: %w", err)
	}

	session, err := createSession(ctx, deps, metricsService)
	if err != nil {
		return nil, fmt.Errorf("creating wallet session: %w", err)
	}

	manager, err := createAttemptManager(deps, rpcService, models, metricsService)
	if err != nil {
		return nil, fmt.Errorf("creating attempt manager: %w", err)
	}

	readerPool := pond.NewPool(readerWorkers(deps))
	metricsService.RegisterPoolMetrics(readerPoolName, readerPool)

	escrowService, err := createEscrowService(deps, manager, rpcService, readerPool)
	if err != nil {
		manager.Shutdown()
		readerPool.StopAndWait()
		return nil, fmt.Errorf("creating escrow service: %w", err)
	}

	return &serviceContainer{
		rpcService:      rpcService,
		escrowService:   escrowService,
		manager:         manager,
		readerPool:      readerPool,
		session:         session,
		network:         deps.Network,
		metricsService:  metricsService,
		models:          models,
		dbProvider:      deps.DatabaseProvider,
		submitRateLimit: deps.SubmitRateLimit,
		originPatterns:  deps.OriginPatterns,
		appTracker:      deps.AppTracker,
	}, nil
}

func readerWorkers(deps ServiceDependencies) int {
	if deps.ReaderWorkers <= 0 {
		return defaultReaderWorkers
	}
	return deps.ReaderWorkers
}

func createModels(deps ServiceDependencies, metricsService metrics.MetricsService) (*data.Models, error) {
	if deps.DatabaseProvider == nil {
		return nil, nil
	}
	models, err := data.NewModels(deps.DatabaseProvider.GetConnectionPool(), metricsService)
	if err != nil {
		return nil, fmt.Errorf("creating data models: %w", err)
	}
	return models, nil
}

func createRPCService(deps ServiceDependencies, metricsService metrics.MetricsService) (services.RPCService, error) {
	httpClient := deps.HTTPClientProvider.GetClient()
	rpcService, err := services.NewRPCService(deps.RPCURL, httpClient, metricsService)
	if err != nil {
		return nil, fmt.Errorf("creating RPC service: %w", err)
	}
	return rpcService, nil
}

func createSession(ctx context.Context, deps ServiceDependencies, metricsService metrics.MetricsService) (wallet.Session, error) {
	session, err := wallet.ResolveSession(ctx, wallet.SessionOptions{
		Type:              deps.WalletType,
		BridgeURL:         deps.WalletBridgeURL,
		HTTPClient:        deps.HTTPClientProvider.GetClient(),
		MetricsService:    metricsService,
		ConnectAttempts:   walletConnectAttempts,
		ConnectRetryDelay: walletConnectRetryWait,
	})
	if err != nil {
		return nil, fmt.Errorf("resolving session: %w", err)
	}
	return session, nil
}

func createAttemptManager(deps ServiceDependencies, rpcService services.RPCService, models *data.Models, metricsService metrics.MetricsService) (*tracker.Manager, error) {
	cfg := tracker.ManagerConfigs{
		Receipts:       rpcService,
		PollInterval:   deps.PollInterval,
		MaxObservers:   deps.MaxObservers,
		MetricsService: metricsService,
		AppTracker:     deps.AppTracker,
	}
	if models != nil {
		cfg.Journal = models.Attempts
	}

	manager, err := tracker.NewManager(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating attempt manager: %w", err)
	}
	return manager, nil
}

func createEscrowService(deps ServiceDependencies, manager *tracker.Manager, rpcService services.RPCService, pool pond.Pool) (*escrow.Service, error) {
	tokenAddress := deps.TokenAddress
	if tokenAddress == "" {
		tokenAddress = deps.Network.Token.Address
	}
	calls, err := escrow.NewCallBuilder(deps.EscrowContractAddress, tokenAddress)
	if err != nil {
		return nil, fmt.Errorf("creating call builder: %w", err)
	}

	reader, err := escrow.NewReader(escrow.ReaderConfigs{
		Caller:   rpcService,
		Calls:    calls,
		Pool:     pool,
		CacheTTL: deps.EscrowCacheTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating escrow reader: %w", err)
	}

	escrowService, err := escrow.NewService(escrow.ServiceConfigs{
		Manager: manager,
		Reader:  reader,
		Calls:   calls,
		Network: deps.Network,
	})
	if err != nil {
		return nil, fmt.Errorf("creating escrow service: %w", err)
	}
	return escrowService, nil
}
