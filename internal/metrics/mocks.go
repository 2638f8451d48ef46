package metrics

import (
	"github.com/alitto/pond/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
)

// MockMetricsService is a mock implementation of MetricsService
type MockMetricsService struct {
	mock.Mock
}

var _ MetricsService = (*MockMetricsService)(nil)

// NewMockMetricsService creates a new mock metrics service
func NewMockMetricsService() *MockMetricsService {
	return &MockMetricsService{}
}

func (m *MockMetricsService) RegisterPoolMetrics(channel string, pool pond.Pool) {
	m.Called(channel, pool)
}

func (m *MockMetricsService) GetRegistry() *prometheus.Registry {
	args := m.Called()
	return args.Get(0).(*prometheus.Registry)
}

func (m *MockMetricsService) IncRPCRequests(endpoint string) {
	m.Called(endpoint)
}

func (m *MockMetricsService) ObserveRPCRequestDuration(endpoint string, duration float64) {
	m.Called(endpoint, duration)
}

func (m *MockMetricsService) IncRPCEndpointFailure(endpoint string) {
	m.Called(endpoint)
}

func (m *MockMetricsService) IncRPCEndpointSuccess(endpoint string) {
	m.Called(endpoint)
}

func (m *MockMetricsService) SetRPCServiceHealth(healthy bool) {
	m.Called(healthy)
}

func (m *MockMetricsService) SetRPCLatestBlock(block int64) {
	m.Called(block)
}

func (m *MockMetricsService) IncRPCMethodCalls(method string) {
	m.Called(method)
}

func (m *MockMetricsService) ObserveRPCMethodDuration(method string, duration float64) {
	m.Called(method, duration)
}

func (m *MockMetricsService) IncRPCMethodErrors(method, errorType string) {
	m.Called(method, errorType)
}

func (m *MockMetricsService) IncNumRequests(endpoint, method string, statusCode int) {
	m.Called(endpoint, method, statusCode)
}

func (m *MockMetricsService) ObserveRequestDuration(endpoint, method string, duration float64) {
	m.Called(endpoint, method, duration)
}

func (m *MockMetricsService) IncRateLimitedRequests(endpoint string) {
	m.Called(endpoint)
}

func (m *MockMetricsService) ObserveDBQueryDuration(queryType, table string, duration float64) {
	m.Called(queryType, table, duration)
}

func (m *MockMetricsService) IncDBQuery(queryType, table string) {
	m.Called(queryType, table)
}

func (m *MockMetricsService) IncDBQueryError(queryType, table, errorType string) {
	m.Called(queryType, table, errorType)
}

func (m *MockMetricsService) IncAttemptTransitions(event, phase string) {
	m.Called(event, phase)
}

func (m *MockMetricsService) IncAttemptOutcomes(actionKind, outcome string) {
	m.Called(actionKind, outcome)
}

func (m *MockMetricsService) ObserveAttemptDuration(actionKind, outcome string, duration float64) {
	m.Called(actionKind, outcome, duration)
}

func (m *MockMetricsService) IncPendingAttempts() {
	m.Called()
}

func (m *MockMetricsService) DecPendingAttempts() {
	m.Called()
}

func (m *MockMetricsService) IncWalletRequests(sessionType, operation string, success bool) {
	m.Called(sessionType, operation, success)
}
