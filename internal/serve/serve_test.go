// Tests for serve package initialization and routing.
package serve

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/starkescrow/starkescrow/internal/apptracker"
	"github.com/starkescrow/starkescrow/internal/data"
	"github.com/starkescrow/starkescrow/internal/entities"
	"github.com/starkescrow/starkescrow/internal/escrow"
	"github.com/starkescrow/starkescrow/internal/metrics"
	"github.com/starkescrow/starkescrow/internal/serve/middleware"
	"github.com/starkescrow/starkescrow/internal/services"
	"github.com/starkescrow/starkescrow/internal/tracker"
	"github.com/starkescrow/starkescrow/internal/wallet"
)

const testEscrowContract = "0x000000000000000000000000000000000000000000000000000000000000e5c0"

func sepolia(t *testing.T) escrow.Network {
	t.Helper()
	network, err := escrow.GetNetwork("sepolia")
	require.NoError(t, err)
	return network
}

func TestValidateConfigs(t *testing.T) {
	valid := func() Configs {
		return Configs{
			Network:               sepolia(t),
			EscrowContractAddress: testEscrowContract,
			WalletType:            wallet.BridgeSessionType,
			WalletBridgeURL:       "http://localhost:8788",
		}
	}

	testCases := []struct {
		name            string
		mutate          func(cfg *Configs)
		wantErrContains string
	}{
		{
			name:   "🟢valid",
			mutate: func(cfg *Configs) {},
		},
		{
			name: "🟢disconnected_without_bridge",
			mutate: func(cfg *Configs) {
				cfg.WalletType = wallet.DisconnectedSessionType
				cfg.WalletBridgeURL = ""
			},
		},
		{
			name:            "🔴missing_network",
			mutate:          func(cfg *Configs) { cfg.Network = escrow.Network{} },
			wantErrContains: "network is required",
		},
		{
			name:            "🔴invalid_contract",
			mutate:          func(cfg *Configs) { cfg.EscrowContractAddress = "escrow" },
			wantErrContains: "invalid escrow contract address",
		},
		{
			name:            "🔴invalid_token",
			mutate:          func(cfg *Configs) { cfg.TokenAddress = "strk" },
			wantErrContains: "invalid token address",
		},
		{
			name:            "🔴bridge_without_url",
			mutate:          func(cfg *Configs) { cfg.WalletBridgeURL = "" },
			wantErrContains: "wallet-bridge-url is required",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)
			err := validateConfigs(cfg)
			if tc.wantErrContains == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErrContains)
		})
	}
}

func TestWaitForRPC(t *testing.T) {
	ctx := context.Background()
	cfg := Configs{Network: sepolia(t)}

	t.Run("ready", func(t *testing.T) {
		rpcService := services.NewRPCServiceMock(t)
		rpcService.On("WaitUntilReady", ctx, "SN_SEPOLIA", uint(defaultRPCReadyAttempts)).Return(nil).Once()

		require.NoError(t, waitForRPC(ctx, rpcService, cfg))
	})

	t.Run("wrong_chain", func(t *testing.T) {
		rpcService := services.NewRPCServiceMock(t)
		rpcService.On("WaitUntilReady", ctx, "SN_SEPOLIA", uint(3)).
			Return(errors.New("RPC serves chain SN_MAIN, expected SN_SEPOLIA")).Once()

		withAttempts := cfg
		withAttempts.RPCReadyAttempts = 3
		err := waitForRPC(ctx, rpcService, withAttempts)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "waiting for sepolia RPC")
	})
}

type testContainer struct {
	rpcService     *services.RPCServiceMock
	escrowService  *escrow.Service
	manager        *tracker.Manager
	session        wallet.Session
	network        escrow.Network
	metricsService metrics.MetricsService
	rateLimit      middleware.RateLimit
}

var _ ServiceContainer = (*testContainer)(nil)

func (c *testContainer) GetRPCService() services.RPCService { return c.rpcService }
func (c *testContainer) GetEscrowService() *escrow.Service { return c.escrowService }
func (c *testContainer) GetAttemptManager() *tracker.Manager { return c.manager }
func (c *testContainer) GetSession() wallet.Session { return c.session }
func (c *testContainer) GetNetwork() escrow.Network { return c.network }
func (c *testContainer) GetMetricsService() metrics.MetricsService { return c.metricsService }
func (c *testContainer) GetModels() *data.Models { return nil }
func (c *testContainer) GetSubmitRateLimit() middleware.RateLimit { return c.rateLimit }
func (c *testContainer) GetOriginPatterns() []string { return nil }
func (c *testContainer) GetAppTracker() apptracker.AppTracker { return &apptracker.MockAppTracker{} }
func (c *testContainer) Shutdown() { c.manager.Shutdown() }

func newTestContainer(t *testing.T, rateLimit middleware.RateLimit) *testContainer {
	t.Helper()
	rpcService := services.NewRPCServiceMock(t)
	network := sepolia(t)

	manager, err := tracker.NewManager(tracker.ManagerConfigs{Receipts: rpcService, MaxObservers: 1})
	require.NoError(t, err)
	t.Cleanup(manager.Shutdown)

	pool := pond.NewPool(1)
	t.Cleanup(pool.StopAndWait)

	calls, err := escrow.NewCallBuilder(testEscrowContract, network.Token.Address)
	require.NoError(t, err)
	reader, err := escrow.NewReader(escrow.ReaderConfigs{Caller: rpcService, Calls: calls, Pool: pool})
	require.NoError(t, err)
	escrowService, err := escrow.NewService(escrow.ServiceConfigs{Manager: manager, Reader: reader, Calls: calls, Network: network})
	require.NoError(t, err)

	return &testContainer{
		rpcService:     rpcService,
		escrowService:  escrowService,
		manager:        manager,
		session:        wallet.NewDisconnectedSession(),
		network:        network,
		metricsService: metrics.NewMetricsService(nil),
		rateLimit:      rateLimit,
	}
}

func TestNewHandler(t *testing.T) {
	do := func(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, strings.NewReader(body))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	t.Run("not_found", func(t *testing.T) {
		container := newTestContainer(t, middleware.RateLimit{})
		h := NewHandler(HandlerDependencies{ServiceContainer: container})

		rr := do(h, http.MethodGet, "/nope", "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.JSONEq(t, `{"error":"The resource at the url requested was not found."}`, rr.Body.String())
	})

	t.Run("health", func(t *testing.T) {
		container := newTestContainer(t, middleware.RateLimit{})
		container.rpcService.On("GetHealth", mock.Anything).
			Return(entities.RPCHealth{Status: "healthy", LatestBlock: 812345, ChainID: "SN_SEPOLIA"}, nil).Once()
		h := NewHandler(HandlerDependencies{ServiceContainer: container})

		rr := do(h, http.MethodGet, "/health", "")
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.Contains(t, rr.Body.String(), `"rpc_latest_block":812345`)
	})

	t.Run("metrics", func(t *testing.T) {
		container := newTestContainer(t, middleware.RateLimit{})
		h := NewHandler(HandlerDependencies{ServiceContainer: container})

		_ = do(h, http.MethodGet, "/attempts", "")
		rr := do(h, http.MethodGet, "/api-metrics", "")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "http_requests_total")
	})

	t.Run("submissions_are_rate_limited", func(t *testing.T) {
		container := newTestContainer(t, middleware.RateLimit{RequestsPerMinute: 1, Burst: 1})
		h := NewHandler(HandlerDependencies{ServiceContainer: container})

		rr := do(h, http.MethodPost, "/fees/estimate", `{"action":"burn"}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)

		rr = do(h, http.MethodPost, "/fees/estimate", `{"action":"burn"}`)
		assert.Equal(t, http.StatusTooManyRequests, rr.Code)

		rr = do(h, http.MethodGet, "/attempts", "")
		assert.Equal(t, http.StatusOK, rr.Code, "reads are not rate limited")
	})

	t.Run("submissions_require_auth_when_configured", func(t *testing.T) {
		container := newTestContainer(t, middleware.RateLimit{})
		authProvider, err := NewAuthProvider(testClientPublicKey, 15*time.Second)
		require.NoError(t, err)
		h := NewHandler(HandlerDependencies{ServiceContainer: container, AuthProvider: authProvider})

		rr := do(h, http.MethodPost, "/escrows", `{}`)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)

		rr = do(h, http.MethodGet, "/attempts", "")
		assert.Equal(t, http.StatusOK, rr.Code)
	})
}
