package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/starkescrow/starkescrow/internal/entities"
	"github.com/starkescrow/starkescrow/internal/metrics"
	"github.com/starkescrow/starkescrow/internal/utils"
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// newRPCServer serves JSON-RPC requests with the given handler, which returns either a result or an error object.
func newRPCServer(t *testing.T, handler func(req rpcRequest) (any, *entities.RPCError)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		result, rpcErr := handler(req)
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestRPCService(t *testing.T, url string, client utils.HTTPClient) *rpcService {
	t.Helper()
	svc, err := NewRPCService(url, client, metrics.NewMetricsService(nil))
	require.NoError(t, err)
	return svc
}

func TestNewRPCService(t *testing.T) {
	metricsService := metrics.NewMockMetricsService()

	testCases := []struct {
		name       string
		url        string
		httpClient utils.HTTPClient
		metrics    metrics.MetricsService
		wantErr    string
	}{
		{name: "missing_url", httpClient: http.DefaultClient, metrics: metricsService, wantErr: "rpcURL is required"},
		{name: "missing_http_client", url: "http://localhost", metrics: metricsService, wantErr: "httpClient is required"},
		{name: "missing_metrics", url: "http://localhost", httpClient: http.DefaultClient, wantErr: "metricsService is required"},
		{name: "ok", url: "http://localhost", httpClient: http.DefaultClient, metrics: metricsService},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc, err := NewRPCService(tc.url, tc.httpClient, tc.metrics)
			if tc.wantErr != "" {
				assert.EqualError(t, err, tc.wantErr)
				assert.Nil(t, svc)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, defaultHealthCheckTickInterval, svc.HealthCheckTickInterval())
		})
	}
}

func TestGetTransactionReceipt(t *testing.T) {
	const txHash = "0x5a1b"

	t.Run("success", func(t *testing.T) {
		server := newRPCServer(t, func(req rpcRequest) (any, *entities.RPCError) {
			assert.Equal(t, "2.0", req.JSONRPC)
			assert.Equal(t, methodGetTransactionReceipt, req.Method)
			assert.JSONEq(t, `{"transaction_hash":"0x5a1b"}`, string(req.Params))
			return map[string]any{
				"type":             "INVOKE",
				"transaction_hash": txHash,
				"actual_fee":       map[string]string{"amount": "0x2386f26fc10000", "unit": "FRI"},
				"execution_status": "SUCCEEDED",
				"finality_status":  "ACCEPTED_ON_L2",
				"block_number":     812345,
			}, nil
		})
		svc := newTestRPCService(t, server.URL, server.Client())

		receipt, err := svc.GetTransactionReceipt(context.Background(), txHash)
		require.NoError(t, err)
		assert.Equal(t, txHash, receipt.TransactionHash)
		assert.Equal(t, entities.OutcomeSucceeded, receipt.Outcome())
		assert.Equal(t, uint64(812345), receipt.BlockNumber)
		assert.Equal(t, "FRI", receipt.ActualFee.Unit)
	})

	t.Run("not_found_is_recognisable", func(t *testing.T) {
		server := newRPCServer(t, func(req rpcRequest) (any, *entities.RPCError) {
			return nil, &entities.RPCError{Code: entities.RPCErrTxnHashNotFound, Message: "Transaction hash not found"}
		})
		svc := newTestRPCService(t, server.URL, server.Client())

		_, err := svc.GetTransactionReceipt(context.Background(), txHash)
		require.Error(t, err)
		assert.ErrorIs(t, err, entities.ErrTransactionNotFound)

		var rpcErr *entities.RPCError
		require.ErrorAs(t, err, &rpcErr)
		assert.Equal(t, entities.RPCErrTxnHashNotFound, rpcErr.Code)
	})

	t.Run("transport_error", func(t *testing.T) {
		httpClient := &utils.MockHTTPClient{}
		httpClient.On("Do", mock.AnythingOfType("*http.Request")).Return(nil, errors.New("connection refused")).Once()
		svc := newTestRPCService(t, "http://rpc.invalid", httpClient)

		_, err := svc.GetTransactionReceipt(context.Background(), txHash)
		assert.ErrorContains(t, err, "sending POST request to RPC: connection refused")
		assert.NotErrorIs(t, err, entities.ErrTransactionNotFound)
		httpClient.AssertExpectations(t)
	})
}

func TestSendRPCRequestFailures(t *testing.T) {
	t.Run("non_200_status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("upstream down"))
		}))
		defer server.Close()
		svc := newTestRPCService(t, server.URL, server.Client())

		_, err := svc.sendRPCRequest(context.Background(), methodBlockNumber, nil)
		assert.EqualError(t, err, "RPC returned status code=502, body=upstream down")
	})

	t.Run("invalid_json", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{invalid-json`))
		}))
		defer server.Close()
		svc := newTestRPCService(t, server.URL, server.Client())

		_, err := svc.sendRPCRequest(context.Background(), methodBlockNumber, nil)
		assert.ErrorContains(t, err, "parsing RPC response JSON body {invalid-json")
	})

	t.Run("missing_result", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1}`))
		}))
		defer server.Close()
		svc := newTestRPCService(t, server.URL, server.Client())

		_, err := svc.sendRPCRequest(context.Background(), methodBlockNumber, nil)
		assert.EqualError(t, err, `response {"jsonrpc":"2.0","id":1} missing result field`)
	})

	t.Run("params_omitted_when_nil", func(t *testing.T) {
		server := newRPCServer(t, func(req rpcRequest) (any, *entities.RPCError) {
			assert.Empty(t, req.Params)
			return 7, nil
		})
		svc := newTestRPCService(t, server.URL, server.Client())

		block, err := svc.BlockNumber(context.Background())
		require.NoError(t, err)
		assert.Equal(t, uint64(7), block)
	})
}

func TestCall(t *testing.T) {
	const contract = "0x04718f5a0fc34cc1af16a1cdee98ffb20c31f5cd61d6ab07201858f4287c938d"

	server := newRPCServer(t, func(req rpcRequest) (any, *entities.RPCError) {
		assert.Equal(t, methodCall, req.Method)
		var params entities.RPCCallParams
		assert.NoError(t, json.Unmarshal(req.Params, &params))
		assert.Equal(t, entities.LatestBlock, params.BlockID)
		assert.Equal(t, contract, params.Request.ContractAddress)
		assert.Equal(t, utils.SelectorFromName("balanceOf"), params.Request.EntryPointSelector)
		assert.Equal(t, []string{"0x1"}, params.Request.Calldata)
		return []string{"0x64", "0x0"}, nil
	})
	svc := newTestRPCService(t, server.URL, server.Client())

	felts, err := svc.Call(context.Background(), entities.Call{ContractAddress: contract, Entrypoint: "balanceOf", Calldata: []string{"0x1"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"0x64", "0x0"}, felts)
}

func TestCallContractError(t *testing.T) {
	server := newRPCServer(t, func(req rpcRequest) (any, *entities.RPCError) {
		return nil, &entities.RPCError{Code: entities.RPCErrContractError, Message: "Contract error", Data: json.RawMessage(`"Input too long for arguments"`)}
	})
	svc := newTestRPCService(t, server.URL, server.Client())

	_, err := svc.Call(context.Background(), entities.Call{ContractAddress: "0x1", Entrypoint: "get_escrow"})
	assert.ErrorContains(t, err, "calling get_escrow on 0x1: starknet_call: rpc error 40: Contract error")
}

func TestChainIDAndHealth(t *testing.T) {
	server := newRPCServer(t, func(req rpcRequest) (any, *entities.RPCError) {
		switch req.Method {
		case methodChainID:
			return "0x534e5f5345504f4c4941", nil
		case methodBlockNumber:
			return 1200, nil
		}
		return nil, &entities.RPCError{Code: -32601, Message: "Method not found"}
	})
	svc := newTestRPCService(t, server.URL, server.Client())

	chainID, err := svc.ChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "SN_SEPOLIA", chainID)

	health, err := svc.GetHealth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, entities.RPCHealth{Status: "healthy", LatestBlock: 1200, ChainID: "SN_SEPOLIA"}, health)
}

func TestTrackRPCServiceHealth(t *testing.T) {
	var blocks atomic.Int64
	blocks.Store(42)
	server := newRPCServer(t, func(req rpcRequest) (any, *entities.RPCError) {
		if req.Method == methodChainID {
			return "0x534e5f4d41494e", nil
		}
		return blocks.Load(), nil
	})

	checks := make(chan int64, 4)
	metricsService := metrics.NewMockMetricsService()
	metricsService.On("IncRPCMethodCalls", mock.Anything).Return()
	metricsService.On("ObserveRPCMethodDuration", mock.Anything, mock.Anything).Return()
	metricsService.On("SetRPCServiceHealth", true).Return()
	metricsService.On("SetRPCLatestBlock", mock.AnythingOfType("int64")).Run(func(args mock.Arguments) {
		checks <- args.Get(0).(int64)
	}).Return()

	svc, err := NewRPCService(server.URL, server.Client(), metricsService)
	require.NoError(t, err)
	svc.healthCheckTickInterval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	trigger := make(chan any)
	done := make(chan error, 1)
	go func() { done <- svc.TrackRPCServiceHealth(ctx, trigger) }()

	select {
	case block := <-checks:
		assert.Equal(t, int64(42), block)
	case <-time.After(5 * time.Second):
		t.Fatal("no health check performed")
	}

	blocks.Store(43)
	trigger <- struct{}{}
	select {
	case block := <-checks:
		assert.Equal(t, int64(43), block)
	case <-time.After(5 * time.Second):
		t.Fatal("triggered health check not performed")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("tracker did not stop")
	}
}

func TestWaitUntilReady(t *testing.T) {
	t.Run("retries_until_available", func(t *testing.T) {
		var calls atomic.Int32
		server := newRPCServer(t, func(req rpcRequest) (any, *entities.RPCError) {
			if calls.Add(1) < 3 {
				return nil, &entities.RPCError{Code: -32603, Message: "Internal error"}
			}
			return "0x534e5f5345504f4c4941", nil
		})
		svc := newTestRPCService(t, server.URL, server.Client())
		svc.readyRetryDelay = time.Millisecond

		require.NoError(t, svc.WaitUntilReady(context.Background(), "SN_SEPOLIA", 5))
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("wrong_chain_is_not_retried", func(t *testing.T) {
		var calls atomic.Int32
		server := newRPCServer(t, func(req rpcRequest) (any, *entities.RPCError) {
			calls.Add(1)
			return "0x534e5f4d41494e", nil
		})
		svc := newTestRPCService(t, server.URL, server.Client())
		svc.readyRetryDelay = time.Millisecond

		err := svc.WaitUntilReady(context.Background(), "SN_SEPOLIA", 5)
		assert.ErrorContains(t, err, "RPC serves chain SN_MAIN, expected SN_SEPOLIA")
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("gives_up", func(t *testing.T) {
		server := newRPCServer(t, func(req rpcRequest) (any, *entities.RPCError) {
			return nil, &entities.RPCError{Code: -32603, Message: "Internal error"}
		})
		svc := newTestRPCService(t, server.URL, server.Client())
		svc.readyRetryDelay = time.Millisecond

		err := svc.WaitUntilReady(context.Background(), "", 2)
		assert.ErrorContains(t, err, "waiting for RPC service")
		assert.ErrorContains(t, err, "rpc error -32603: Internal error")
	})
}
