package serve

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	supporthttp "github.com/stellar/go-stellar-sdk/support/http"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/starkescrow/starkescrow/internal/apptracker"
	"github.com/starkescrow/starkescrow/internal/escrow"
	"github.com/starkescrow/starkescrow/internal/serve/middleware"
	"github.com/starkescrow/starkescrow/internal/services"
	"github.com/starkescrow/starkescrow/internal/utils"
	"github.com/starkescrow/starkescrow/internal/wallet"
)

const defaultRPCReadyAttempts = 10

type Configs struct {
	Port     int
	LogLevel logrus.Level

	// Starknet
	RPCURL                string
	Network               escrow.Network
	EscrowContractAddress string
	// TokenAddress overrides the network's STRK token when set.
	TokenAddress     string
	RPCReadyAttempts uint

	// Wallet
	WalletType      wallet.SessionType
	WalletBridgeURL string

	// Attempts
	DatabaseURL    string
	PollInterval   time.Duration
	MaxObservers   int
	ReaderWorkers  int
	EscrowCacheTTL time.Duration

	// HTTP
	SubmitRateLimit             middleware.RateLimit
	ClientAuthPublicKey         string
	ClientAuthMaxTimeoutSeconds int
	OriginPatterns              []string

	AppTracker apptracker.AppTracker
}

func Serve(cfg Configs) error {
	ctx := context.Background()

	if err := validateConfigs(cfg); err != nil {
		return fmt.Errorf("validating configs: %w", err)
	}

	deps, err := initHandlerDeps(ctx, cfg)
	if err != nil {
		return fmt.Errorf("setting up handler dependencies: %w", err)
	}
	container := deps.ServiceContainer

	rpcService := container.GetRPCService()
	if err := waitForRPC(ctx, rpcService, cfg); err != nil {
		container.Shutdown()
		return err
	}

	healthCtx, stopHealth := context.WithCancel(ctx)
	go func() {
		if err := rpcService.TrackRPCServiceHealth(healthCtx, nil); err != nil && !errors.Is(err, context.Canceled) {
			log.Ctx(ctx).Errorf("tracking RPC service health: %v", err)
		}
	}()

	addr := fmt.Sprintf(":%d", cfg.Port)
	supporthttp.Run(supporthttp.Config{
		ListenAddr: addr,
		Handler:    NewHandler(deps),
		OnStarting: func() {
			log.Infof("Starting StarkEscrow server on port %d (%s)", cfg.Port, cfg.Network.Name)
		},
		OnStopping: func() {
			log.Info("Stopping StarkEscrow server")
			stopHealth()
			container.Shutdown()
		},
	})

	return nil
}

func validateConfigs(cfg Configs) error {
	if cfg.Network.ChainID == "" {
		return errors.New("network is required")
	}
	if _, err := utils.NormalizeAddress(cfg.EscrowContractAddress); err != nil {
		return fmt.Errorf("invalid escrow contract address %q: %w", cfg.EscrowContractAddress, err)
	}
	if cfg.TokenAddress != "" {
		if _, err := utils.NormalizeAddress(cfg.TokenAddress); err != nil {
			return fmt.Errorf("invalid token address %q: %w", cfg.TokenAddress, err)
		}
	}
	if cfg.WalletType == wallet.BridgeSessionType && cfg.WalletBridgeURL == "" {
		return errors.New("wallet-bridge-url is required when wallet-type is BRIDGE")
	}
	return nil
}

// waitForRPC blocks until the node answers for the configured network.
func waitForRPC(ctx context.Context, rpcService services.RPCService, cfg Configs) error {
	attempts := cfg.RPCReadyAttempts
	if attempts == 0 {
		attempts = defaultRPCReadyAttempts
	}
	if err := rpcService.WaitUntilReady(ctx, cfg.Network.ChainID, attempts); err != nil {
		return fmt.Errorf("waiting for %s RPC: %w", cfg.Network.Name, err)
	}
	return nil
}

func initHandlerDeps(ctx context.Context, cfg Configs) (HandlerDependencies, error) {
	var dbProvider DatabaseProvider
	if cfg.DatabaseURL != "" {
		provider, err := NewDatabaseProvider(ctx, cfg.DatabaseURL)
		if err != nil {
			return HandlerDependencies{}, fmt.Errorf("creating database provider: %w", err)
		}
		dbProvider = provider
	} else {
		log.Ctx(ctx).Warn("No database-url configured, attempt history is disabled")
	}

	container, err := NewServiceContainer(ctx, ServiceDependencies{
		DatabaseProvider:      dbProvider,
		HTTPClientProvider:    NewHTTPClientProvider(),
		RPCURL:                cfg.RPCURL,
		Network:               cfg.Network,
		EscrowContractAddress: cfg.EscrowContractAddress,
		TokenAddress:          cfg.TokenAddress,
		WalletType:            cfg.WalletType,
		WalletBridgeURL:       cfg.WalletBridgeURL,
		PollInterval:          cfg.PollInterval,
		MaxObservers:          cfg.MaxObservers,
		ReaderWorkers:         cfg.ReaderWorkers,
		EscrowCacheTTL:        cfg.EscrowCacheTTL,
		SubmitRateLimit:       cfg.SubmitRateLimit,
		OriginPatterns:        cfg.OriginPatterns,
		AppTracker:            cfg.AppTracker,
	})
	if err != nil {
		if dbProvider != nil {
			_ = dbProvider.Close()
		}
		return HandlerDependencies{}, fmt.Errorf("creating service container: %w", err)
	}

	var authProvider AuthProvider
	if cfg.ClientAuthPublicKey != "" {
		provider, err := NewAuthProvider(cfg.ClientAuthPublicKey, time.Duration(cfg.ClientAuthMaxTimeoutSeconds)*time.Second)
		if err != nil {
			container.Shutdown()
			return HandlerDependencies{}, fmt.Errorf("creating auth provider: %w", err)
		}
		authProvider = provider
	}

	return HandlerDependencies{
		ServiceContainer: container,
		AuthProvider:     authProvider,
	}, nil
}
