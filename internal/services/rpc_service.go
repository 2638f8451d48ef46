package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/starkescrow/starkescrow/internal/entities"
	"github.com/starkescrow/starkescrow/internal/metrics"
	"github.com/starkescrow/starkescrow/internal/utils"
)

const (
	defaultHealthCheckTickInterval    = 5 * time.Second
	defaultHealthCheckWarningInterval = 60 * time.Second
	defaultReadyRetryDelay            = 2 * time.Second

	methodGetTransactionReceipt = "starknet_getTransactionReceipt"
	methodGetTransactionStatus  = "starknet_getTransactionStatus"
	methodCall                  = "starknet_call"
	methodBlockNumber           = "starknet_blockNumber"
	methodChainID               = "starknet_chainId"
)

type RPCService interface {
	GetTransactionReceipt(ctx context.Context, transactionHash string) (entities.TransactionReceipt, error)
	GetTransactionStatus(ctx context.Context, transactionHash string) (entities.RPCTransactionStatus, error)
	Call(ctx context.Context, call entities.Call) ([]string, error)
	BlockNumber(ctx context.Context) (uint64, error)
	ChainID(ctx context.Context) (string, error)
	GetHealth(ctx context.Context) (entities.RPCHealth, error)
	TrackRPCServiceHealth(ctx context.Context, triggerHeartbeat <-chan any) error
	WaitUntilReady(ctx context.Context, expectedChainID string, attempts uint) error
}

type rpcService struct {
	rpcURL                     string
	httpClient                 utils.HTTPClient
	metricsService             metrics.MetricsService
	healthCheckWarningInterval time.Duration
	healthCheckTickInterval    time.Duration
	readyRetryDelay            time.Duration
	requestID                  atomic.Int64
}

var _ RPCService = (*rpcService)(nil)

func NewRPCService(rpcURL string, httpClient utils.HTTPClient, metricsService metrics.MetricsService) (*rpcService, error) {
	if rpcURL == "" {
		return nil, errors.New("rpcURL is required")
	}
	if httpClient == nil {
		return nil, errors.New("httpClient is required")
	}
	if metricsService == nil {
		return nil, errors.New("metricsService is required")
	}

	return &rpcService{
		rpcURL:                     rpcURL,
		httpClient:                 httpClient,
		metricsService:             metricsService,
		healthCheckWarningInterval: defaultHealthCheckWarningInterval,
		healthCheckTickInterval:    defaultHealthCheckTickInterval,
		readyRetryDelay:            defaultReadyRetryDelay,
	}, nil
}

// GetTransactionReceipt fetches the receipt of a submitted transaction. A hash the node does not know
// yet yields an error matching entities.ErrTransactionNotFound.
func (r *rpcService) GetTransactionReceipt(ctx context.Context, transactionHash string) (entities.TransactionReceipt, error) {
	startTime := time.Now()
	r.metricsService.IncRPCMethodCalls("GetTransactionReceipt")
	defer func() {
		r.metricsService.ObserveRPCMethodDuration("GetTransactionReceipt", time.Since(startTime).Seconds())
	}()

	resultBytes, err := r.sendRPCRequest(ctx, methodGetTransactionReceipt, entities.RPCTransactionHashParams{TransactionHash: transactionHash})
	if err != nil {
		r.metricsService.IncRPCMethodErrors("GetTransactionReceipt", "rpc_error")
		return entities.TransactionReceipt{}, fmt.Errorf("sending getTransactionReceipt request: %w", err)
	}

	var receipt entities.TransactionReceipt
	if err := json.Unmarshal(resultBytes, &receipt); err != nil {
		r.metricsService.IncRPCMethodErrors("GetTransactionReceipt", "json_unmarshal_error")
		return entities.TransactionReceipt{}, fmt.Errorf("parsing getTransactionReceipt result JSON: %w", err)
	}
	if receipt.TransactionHash == "" {
		receipt.TransactionHash = transactionHash
	}

	return receipt, nil
}

func (r *rpcService) GetTransactionStatus(ctx context.Context, transactionHash string) (entities.RPCTransactionStatus, error) {
	startTime := time.Now()
	r.metricsService.IncRPCMethodCalls("GetTransactionStatus")
	defer func() {
		r.metricsService.ObserveRPCMethodDuration("GetTransactionStatus", time.Since(startTime).Seconds())
	}()

	resultBytes, err := r.sendRPCRequest(ctx, methodGetTransactionStatus, entities.RPCTransactionHashParams{TransactionHash: transactionHash})
	if err != nil {
		r.metricsService.IncRPCMethodErrors("GetTransactionStatus", "rpc_error")
		return entities.RPCTransactionStatus{}, fmt.Errorf("sending getTransactionStatus request: %w", err)
	}

	var status entities.RPCTransactionStatus
	if err := json.Unmarshal(resultBytes, &status); err != nil {
		r.metricsService.IncRPCMethodErrors("GetTransactionStatus", "json_unmarshal_error")
		return entities.RPCTransactionStatus{}, fmt.Errorf("parsing getTransactionStatus result JSON: %w", err)
	}

	return status, nil
}

// Call runs a read-only contract invocation against the latest block and returns the raw felts.
func (r *rpcService) Call(ctx context.Context, call entities.Call) ([]string, error) {
	startTime := time.Now()
	r.metricsService.IncRPCMethodCalls("Call")
	defer func() {
		r.metricsService.ObserveRPCMethodDuration("Call", time.Since(startTime).Seconds())
	}()

	calldata := call.Calldata
	if calldata == nil {
		calldata = []string{}
	}
	params := entities.RPCCallParams{
		Request: entities.RPCFunctionCall{
			ContractAddress:    call.ContractAddress,
			EntryPointSelector: utils.SelectorFromName(call.Entrypoint),
			Calldata:           calldata,
		},
		BlockID: entities.LatestBlock,
	}

	resultBytes, err := r.sendRPCRequest(ctx, methodCall, params)
	if err != nil {
		r.metricsService.IncRPCMethodErrors("Call", "rpc_error")
		return nil, fmt.Errorf("calling %s on %s: %w", call.Entrypoint, call.ContractAddress, err)
	}

	var felts []string
	if err := json.Unmarshal(resultBytes, &felts); err != nil {
		r.metricsService.IncRPCMethodErrors("Call", "json_unmarshal_error")
		return nil, fmt.Errorf("parsing call result JSON: %w", err)
	}

	return felts, nil
}

func (r *rpcService) BlockNumber(ctx context.Context) (uint64, error) {
	startTime := time.Now()
	r.metricsService.IncRPCMethodCalls("BlockNumber")
	defer func() {
		r.metricsService.ObserveRPCMethodDuration("BlockNumber", time.Since(startTime).Seconds())
	}()

	resultBytes, err := r.sendRPCRequest(ctx, methodBlockNumber, nil)
	if err != nil {
		r.metricsService.IncRPCMethodErrors("BlockNumber", "rpc_error")
		return 0, fmt.Errorf("sending blockNumber request: %w", err)
	}

	var blockNumber uint64
	if err := json.Unmarshal(resultBytes, &blockNumber); err != nil {
		r.metricsService.IncRPCMethodErrors("BlockNumber", "json_unmarshal_error")
		return 0, fmt.Errorf("parsing blockNumber result JSON: %w", err)
	}

	return blockNumber, nil
}

// ChainID returns the decoded chain id, e.g. SN_SEPOLIA.
func (r *rpcService) ChainID(ctx context.Context) (string, error) {
	startTime := time.Now()
	r.metricsService.IncRPCMethodCalls("ChainID")
	defer func() {
		r.metricsService.ObserveRPCMethodDuration("ChainID", time.Since(startTime).Seconds())
	}()

	resultBytes, err := r.sendRPCRequest(ctx, methodChainID, nil)
	if err != nil {
		r.metricsService.IncRPCMethodErrors("ChainID", "rpc_error")
		return "", fmt.Errorf("sending chainId request: %w", err)
	}

	var encoded string
	if err := json.Unmarshal(resultBytes, &encoded); err != nil {
		r.metricsService.IncRPCMethodErrors("ChainID", "json_unmarshal_error")
		return "", fmt.Errorf("parsing chainId result JSON: %w", err)
	}

	chainID, err := utils.DecodeShortString(encoded)
	if err != nil {
		r.metricsService.IncRPCMethodErrors("ChainID", "decode_error")
		return "", fmt.Errorf("decoding chain id %s: %w", encoded, err)
	}

	return chainID, nil
}

func (r *rpcService) GetHealth(ctx context.Context) (entities.RPCHealth, error) {
	blockNumber, err := r.BlockNumber(ctx)
	if err != nil {
		return entities.RPCHealth{}, fmt.Errorf("getting latest block: %w", err)
	}
	chainID, err := r.ChainID(ctx)
	if err != nil {
		return entities.RPCHealth{}, fmt.Errorf("getting chain id: %w", err)
	}

	return entities.RPCHealth{
		Status:      "healthy",
		LatestBlock: blockNumber,
		ChainID:     chainID,
	}, nil
}

// TrackRPCServiceHealth polls the node until ctx is done, keeping the health and latest block gauges
// current. A receive on triggerHeartbeat forces an immediate check.
func (r *rpcService) TrackRPCServiceHealth(ctx context.Context, triggerHeartbeat <-chan any) error {
	healthCheckTicker := time.NewTicker(r.HealthCheckTickInterval())
	warningTicker := time.NewTicker(r.HealthCheckWarningInterval())
	defer func() {
		healthCheckTicker.Stop()
		warningTicker.Stop()
	}()

	performHealthCheck := func() {
		health, err := r.GetHealth(ctx)
		if err != nil {
			log.Ctx(ctx).Warnf("RPC health check failed: %v", err)
			r.metricsService.SetRPCServiceHealth(false)
			return
		}

		warningTicker.Reset(r.HealthCheckWarningInterval())
		r.metricsService.SetRPCServiceHealth(true)
		r.metricsService.SetRPCLatestBlock(int64(health.LatestBlock))
	}

	performHealthCheck()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("tracking RPC service health: %w", ctx.Err())
		case <-warningTicker.C:
			log.Ctx(ctx).Warnf("RPC service has not been healthy for over %s", r.HealthCheckWarningInterval())
			r.metricsService.SetRPCServiceHealth(false)
		case <-healthCheckTicker.C:
			performHealthCheck()
		case <-triggerHeartbeat:
			performHealthCheck()
		}
	}
}

// WaitUntilReady blocks until the node answers and reports the expected chain id.
func (r *rpcService) WaitUntilReady(ctx context.Context, expectedChainID string, attempts uint) error {
	err := retry.Do(
		func() error {
			chainID, err := r.ChainID(ctx)
			if err != nil {
				return err
			}
			if expectedChainID != "" && chainID != expectedChainID {
				return retry.Unrecoverable(fmt.Errorf("RPC serves chain %s, expected %s", chainID, expectedChainID))
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(r.readyRetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Ctx(ctx).Warnf("RPC not ready (attempt %d/%d): %v", n+1, attempts, err)
		}),
	)
	if err != nil {
		return fmt.Errorf("waiting for RPC service: %w", err)
	}
	return nil
}

func (r *rpcService) HealthCheckWarningInterval() time.Duration {
	if utils.IsEmpty(r.healthCheckWarningInterval) {
		return defaultHealthCheckWarningInterval
	}
	return r.healthCheckWarningInterval
}

func (r *rpcService) HealthCheckTickInterval() time.Duration {
	if utils.IsEmpty(r.healthCheckTickInterval) {
		return defaultHealthCheckTickInterval
	}
	return r.healthCheckTickInterval
}

func (r *rpcService) sendRPCRequest(ctx context.Context, method string, params any) (json.RawMessage, error) {
	startTime := time.Now()
	r.metricsService.IncRPCRequests(method)
	defer func() {
		r.metricsService.ObserveRPCRequestDuration(method, time.Since(startTime).Seconds())
	}()

	payload := map[string]any{
		"jsonrpc": "2.0",
		"id":      r.requestID.Add(1),
		"method":  method,
	}
	// Methods without arguments reject an empty params object on some nodes.
	if params != nil {
		payload["params"] = params
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		r.metricsService.IncRPCEndpointFailure(method)
		return nil, fmt.Errorf("marshaling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.rpcURL, bytes.NewReader(jsonData))
	if err != nil {
		r.metricsService.IncRPCEndpointFailure(method)
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		r.metricsService.IncRPCEndpointFailure(method)
		return nil, fmt.Errorf("sending POST request to RPC: %w", err)
	}
	defer utils.DeferredClose(ctx, resp.Body, "closing response body in the sendRPCRequest function")

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		r.metricsService.IncRPCEndpointFailure(method)
		return nil, fmt.Errorf("reading RPC response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		r.metricsService.IncRPCEndpointFailure(method)
		return nil, fmt.Errorf("RPC returned status code=%d, body=%s", resp.StatusCode, string(body))
	}

	var res entities.RPCResponse
	if err := json.Unmarshal(body, &res); err != nil {
		r.metricsService.IncRPCEndpointFailure(method)
		return nil, fmt.Errorf("parsing RPC response JSON body %v: %w", string(body), err)
	}

	if res.Error != nil {
		r.metricsService.IncRPCEndpointFailure(method)
		return nil, fmt.Errorf("%s: %w", method, res.Error)
	}

	if res.Result == nil {
		r.metricsService.IncRPCEndpointFailure(method)
		return nil, fmt.Errorf("response %s missing result field", string(body))
	}

	r.metricsService.IncRPCEndpointSuccess(method)
	return res.Result, nil
}
