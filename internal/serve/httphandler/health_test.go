package httphandler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stellar/go-stellar-sdk/support/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/starkescrow/starkescrow/internal/apptracker"
	"github.com/starkescrow/starkescrow/internal/entities"
	"github.com/starkescrow/starkescrow/internal/escrow"
	"github.com/starkescrow/starkescrow/internal/services"
	"github.com/starkescrow/starkescrow/internal/wallet"
)

func TestHealthHandler_GetHealth(t *testing.T) {
	log.DefaultLogger.StartTest(log.ErrorLevel)
	network, err := escrow.GetNetwork("sepolia")
	require.NoError(t, err)

	testCases := []struct {
		name               string
		rpcHealthResult    entities.RPCHealth
		rpcHealthError     error
		expectedStatusCode int
	}{
		{
			name:               "🟢healthy",
			rpcHealthResult:    entities.RPCHealth{Status: "healthy", LatestBlock: 812345, ChainID: "SN_SEPOLIA"},
			expectedStatusCode: http.StatusOK,
		},
		{
			name:               "🔴rpc_error",
			rpcHealthError:     errors.New("RPC connection failed"),
			expectedStatusCode: http.StatusInternalServerError,
		},
		{
			name:               "🔴rpc_not_healthy",
			rpcHealthResult:    entities.RPCHealth{Status: "unhealthy", ChainID: "SN_SEPOLIA"},
			expectedStatusCode: http.StatusInternalServerError,
		},
		{
			name:               "🔴wrong_chain",
			rpcHealthResult:    entities.RPCHealth{Status: "healthy", LatestBlock: 10, ChainID: "SN_MAIN"},
			expectedStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mockRPCService := services.NewRPCServiceMock(t)
			mockRPCService.On("GetHealth", mock.Anything).Return(tc.rpcHealthResult, tc.rpcHealthError).Once()

			mockAppTracker := &apptracker.MockAppTracker{}
			mockAppTracker.On("CaptureException", mock.Anything).Return().Maybe()
			defer mockAppTracker.AssertExpectations(t)

			handler := HealthHandler{
				RPCService: mockRPCService,
				Session:    wallet.NewDisconnectedSession(),
				Network:    network,
				AppTracker: mockAppTracker,
			}

			rr := httptest.NewRecorder()
			handler.GetHealth(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
			assert.Equal(t, tc.expectedStatusCode, rr.Code)

			if tc.expectedStatusCode != http.StatusOK {
				mockAppTracker.AssertNumberOfCalls(t, "CaptureException", 1)
				return
			}

			var response map[string]interface{}
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
			assert.Equal(t, "ok", response["status"])
			assert.Equal(t, "sepolia", response["network"])
			assert.Equal(t, "SN_SEPOLIA", response["chain_id"])
			assert.Equal(t, float64(812345), response["rpc_latest_block"])
			assert.Equal(t, map[string]interface{}{"status": "disconnected", "type": "DISCONNECTED"}, response["wallet"])
		})
	}
}
