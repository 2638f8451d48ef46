package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/starkescrow/starkescrow/internal/entities"
	"github.com/starkescrow/starkescrow/internal/metrics"
	"github.com/starkescrow/starkescrow/internal/utils"
)

const (
	accountPath     = "/account"
	executePath     = "/execute"
	estimateFeePath = "/estimate-fee"

	defaultConnectAttempts   = 5
	defaultConnectRetryDelay = time.Second
)

// BridgeError is a rejection reported by the wallet bridge, e.g. the user declining to sign.
type BridgeError struct {
	StatusCode int
	Message    string
}

func (e *BridgeError) Error() string {
	return e.Message
}

type accountResponse struct {
	Address string `json:"address"`
	Status  Status `json:"status"`
}

type callsRequest struct {
	Calls []entities.Call `json:"calls"`
}

type executeResponse struct {
	TransactionHash string `json:"transaction_hash"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type BridgeSessionOptions struct {
	BaseURL           string
	HTTPClient        utils.HTTPClient
	MetricsService    metrics.MetricsService
	ConnectAttempts   uint
	ConnectRetryDelay time.Duration
}

func (o *BridgeSessionOptions) Validate() error {
	if o.BaseURL == "" {
		return errors.New("wallet bridge URL is required")
	}
	if o.HTTPClient == nil {
		return errors.New("httpClient is required")
	}
	if o.MetricsService == nil {
		return errors.New("metricsService is required")
	}
	return nil
}

// BridgeSession talks to a wallet bridge that holds the user's keys and prompts for every signature.
type BridgeSession struct {
	baseURL           string
	httpClient        utils.HTTPClient
	metricsService    metrics.MetricsService
	connectAttempts   uint
	connectRetryDelay time.Duration

	mu      sync.RWMutex
	address string
	status  Status
}

var _ Session = (*BridgeSession)(nil)

func NewBridgeSession(opts BridgeSessionOptions) (*BridgeSession, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("validating bridge session options: %w", err)
	}
	if opts.ConnectAttempts == 0 {
		opts.ConnectAttempts = defaultConnectAttempts
	}
	if opts.ConnectRetryDelay == 0 {
		opts.ConnectRetryDelay = defaultConnectRetryDelay
	}

	return &BridgeSession{
		baseURL:           strings.TrimRight(opts.BaseURL, "/"),
		httpClient:        opts.HTTPClient,
		metricsService:    opts.MetricsService,
		connectAttempts:   opts.ConnectAttempts,
		connectRetryDelay: opts.ConnectRetryDelay,
		status:            StatusDisconnected,
	}, nil
}

func (s *BridgeSession) Type() SessionType { return BridgeSessionType }

func (s *BridgeSession) Address() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.address
}

func (s *BridgeSession) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *BridgeSession) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status == StatusConnected && s.address != ""
}

// Connect asks the bridge for the active account, retrying while the bridge is unreachable.
func (s *BridgeSession) Connect(ctx context.Context) error {
	s.setState("", StatusConnecting)

	var account accountResponse
	err := retry.Do(
		func() error {
			var err error
			account, err = s.fetchAccount(ctx)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(s.connectAttempts),
		retry.Delay(s.connectRetryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var bridgeErr *BridgeError
			return !errors.As(err, &bridgeErr) || bridgeErr.StatusCode >= http.StatusInternalServerError
		}),
		retry.OnRetry(func(n uint, err error) {
			log.Ctx(ctx).Warnf("wallet bridge not reachable (attempt %d/%d): %v", n+1, s.connectAttempts, err)
		}),
	)
	if err != nil {
		s.setState("", StatusDisconnected)
		return fmt.Errorf("connecting to wallet bridge: %w", err)
	}

	if account.Status != StatusConnected || account.Address == "" {
		s.setState("", StatusDisconnected)
		return ErrNotConnected
	}

	address, err := utils.NormalizeAddress(account.Address)
	if err != nil {
		s.setState("", StatusDisconnected)
		return fmt.Errorf("wallet bridge returned invalid address %q: %w", account.Address, err)
	}
	s.setState(address, StatusConnected)
	log.Ctx(ctx).Infof("wallet connected: %s", utils.ShortenHex(address, 4))
	return nil
}

// Disconnect forgets the account locally.
func (s *BridgeSession) Disconnect() {
	s.setState("", StatusDisconnected)
}

func (s *BridgeSession) Execute(ctx context.Context, calls []entities.Call) (txHash string, err error) {
	defer func() {
		s.metricsService.IncWalletRequests(string(BridgeSessionType), "execute", err == nil)
	}()

	if !s.Connected() {
		return "", ErrNotConnected
	}

	var resp executeResponse
	if err = s.post(ctx, executePath, callsRequest{Calls: calls}, &resp); err != nil {
		return "", err
	}
	return resp.TransactionHash, nil
}

func (s *BridgeSession) EstimateFee(ctx context.Context, calls []entities.Call) (fee entities.FeeEstimate, err error) {
	defer func() {
		s.metricsService.IncWalletRequests(string(BridgeSessionType), "estimate_fee", err == nil)
	}()

	if !s.Connected() {
		return entities.FeeEstimate{}, ErrNotConnected
	}

	if err = s.post(ctx, estimateFeePath, callsRequest{Calls: calls}, &fee); err != nil {
		return entities.FeeEstimate{}, err
	}
	return fee, nil
}

func (s *BridgeSession) fetchAccount(ctx context.Context) (account accountResponse, err error) {
	defer func() {
		s.metricsService.IncWalletRequests(string(BridgeSessionType), "account", err == nil)
	}()

	resp, err := s.request(ctx, http.MethodGet, accountPath, nil)
	if err != nil {
		return accountResponse{}, err
	}
	if err = decodeResponse(ctx, resp, &account); err != nil {
		return accountResponse{}, err
	}
	return account, nil
}

func (s *BridgeSession) post(ctx context.Context, path string, body, out any) error {
	resp, err := s.request(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	return decodeResponse(ctx, resp, out)
}

func (s *BridgeSession) request(ctx context.Context, method, path string, bodyObj any) (*http.Response, error) {
	var body io.Reader
	if bodyObj != nil {
		reqBody, err := json.Marshal(bodyObj)
		if err != nil {
			return nil, fmt.Errorf("marshalling request body: %w", err)
		}
		body = bytes.NewReader(reqBody)
	}

	u, err := url.JoinPath(s.baseURL, path)
	if err != nil {
		return nil, fmt.Errorf("joining path: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if bodyObj != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request to wallet bridge: %w", err)
	}
	return resp, nil
}

func (s *BridgeSession) setState(address string, status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.address = address
	s.status = status
}

// decodeResponse turns error statuses into a BridgeError carrying the bridge's message.
func decodeResponse(ctx context.Context, resp *http.Response, out any) error {
	defer utils.DeferredClose(ctx, resp.Body, "closing wallet bridge response body")

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var errResp errorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &BridgeError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return &BridgeError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("unexpected statusCode=%d, body=%v", resp.StatusCode, string(respBody))}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshalling response body: %w", err)
	}
	return nil
}
