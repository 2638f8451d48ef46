package metrics

import (
	"strconv"

	"github.com/alitto/pond/v2"
	"github.com/dlmiddlecote/sqlstats"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
)

type MetricsService interface {
	RegisterPoolMetrics(channel string, pool pond.Pool)
	GetRegistry() *prometheus.Registry
	// RPC transport metrics
	IncRPCRequests(endpoint string)
	ObserveRPCRequestDuration(endpoint string, duration float64)
	IncRPCEndpointFailure(endpoint string)
	IncRPCEndpointSuccess(endpoint string)
	SetRPCServiceHealth(healthy bool)
	SetRPCLatestBlock(block int64)
	// RPC method metrics
	IncRPCMethodCalls(method string)
	ObserveRPCMethodDuration(method string, duration float64)
	IncRPCMethodErrors(method, errorType string)
	// HTTP metrics
	IncNumRequests(endpoint, method string, statusCode int)
	ObserveRequestDuration(endpoint, method string, duration float64)
	IncRateLimitedRequests(endpoint string)
	// DB metrics
	ObserveDBQueryDuration(queryType, table string, duration float64)
	IncDBQuery(queryType, table string)
	IncDBQueryError(queryType, table, errorType string)
	// Attempt lifecycle metrics
	IncAttemptTransitions(event, phase string)
	IncAttemptOutcomes(actionKind, outcome string)
	ObserveAttemptDuration(actionKind, outcome string, duration float64)
	IncPendingAttempts()
	DecPendingAttempts()
	// Wallet session metrics
	IncWalletRequests(sessionType, operation string, success bool)
}

// metricsService handles all metrics for the escrow service
type metricsService struct {
	registry *prometheus.Registry
	db       *sqlx.DB

	// RPC Service Metrics (transport-level)
	rpcRequestsTotal     *prometheus.CounterVec
	rpcRequestsDuration  *prometheus.SummaryVec
	rpcEndpointFailures  *prometheus.CounterVec
	rpcEndpointSuccesses *prometheus.CounterVec
	rpcServiceHealth     prometheus.Gauge
	rpcLatestBlock       prometheus.Gauge

	// RPC Method Metrics (application-level)
	rpcMethodCallsTotal  *prometheus.CounterVec
	rpcMethodDuration    *prometheus.SummaryVec
	rpcMethodErrorsTotal *prometheus.CounterVec

	// HTTP Request Metrics
	numRequestsTotal    *prometheus.CounterVec
	requestsDuration    *prometheus.SummaryVec
	rateLimitedRequests *prometheus.CounterVec

	// DB Query Metrics
	dbQueryDuration *prometheus.SummaryVec
	dbQueriesTotal  *prometheus.CounterVec
	dbQueryErrors   *prometheus.CounterVec

	// Attempt Metrics
	attemptTransitions *prometheus.CounterVec
	attemptOutcomes    *prometheus.CounterVec
	attemptDuration    *prometheus.HistogramVec
	pendingAttempts    prometheus.Gauge

	// Wallet Metrics
	walletRequests *prometheus.CounterVec
}

// NewMetricsService creates a new metrics service with all metrics registered. The db is optional: the
// connection pool collector is only registered when the attempt journal is enabled.
func NewMetricsService(db *sqlx.DB) MetricsService {
	m := &metricsService{
		registry: prometheus.NewRegistry(),
		db:       db,
	}

	// RPC Service Metrics
	m.rpcRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rpc_requests_total",
			Help: "Total number of RPC requests",
		},
		[]string{"endpoint"},
	)
	m.rpcRequestsDuration = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "rpc_requests_duration_seconds",
			Help:       "Duration of RPC requests in seconds",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"endpoint"},
	)
	m.rpcEndpointFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rpc_endpoint_failures_total",
			Help: "Total number of RPC endpoint failures",
		},
		[]string{"endpoint"},
	)
	m.rpcEndpointSuccesses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rpc_endpoint_successes_total",
			Help: "Total number of successful RPC requests",
		},
		[]string{"endpoint"},
	)
	m.rpcServiceHealth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rpc_service_health",
			Help: "RPC service health status (1 for healthy, 0 for unhealthy)",
		},
	)
	m.rpcLatestBlock = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rpc_latest_block",
			Help: "Latest block number reported by the Starknet RPC node",
		},
	)

	// RPC Method Metrics (application-level)
	m.rpcMethodCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rpc_method_calls_total",
			Help: "Total number of RPC method calls at the application level",
		},
		[]string{"method"},
	)
	m.rpcMethodDuration = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "rpc_method_duration_seconds",
			Help:       "Duration of RPC method execution including parsing",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"method"},
	)
	m.rpcMethodErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rpc_method_errors_total",
			Help: "Total number of RPC method errors by error type",
		},
		[]string{"method", "error_type"},
	)

	// HTTP Request Metrics
	m.numRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"endpoint", "method", "status_code"},
	)
	m.requestsDuration = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "http_request_duration_seconds",
			Help:       "Duration of HTTP requests in seconds",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"endpoint", "method"},
	)
	m.rateLimitedRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_rate_limited_requests_total",
			Help: "Total number of HTTP requests rejected by the rate limiter",
		},
		[]string{"endpoint"},
	)

	// DB Query Metrics
	m.dbQueryDuration = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "db_query_duration_seconds",
			Help:       "Duration of database queries",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"query_type", "table"},
	)
	m.dbQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"query_type", "table"},
	)
	m.dbQueryErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_query_errors_total",
			Help: "Total number of database query errors",
		},
		[]string{"query_type", "table", "error_type"},
	)

	// Attempt Metrics
	m.attemptTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attempt_transitions_total",
			Help: "Total number of applied attempt transitions by event and resulting phase",
		},
		[]string{"event", "phase"},
	)
	m.attemptOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attempt_outcomes_total",
			Help: "Total number of attempts that reached a terminal phase",
		},
		[]string{"action_kind", "outcome"},
	)
	m.attemptDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "attempt_duration_seconds",
			Help:    "Time from submission to terminal phase",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300, 600},
		},
		[]string{"action_kind", "outcome"},
	)
	m.pendingAttempts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "attempts_pending",
			Help: "Number of attempts currently pending",
		},
	)

	// Wallet Metrics
	m.walletRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_requests_total",
			Help: "Total number of wallet session requests",
		},
		[]string{"session_type", "operation", "success"},
	)

	m.registerMetrics()
	return m
}

func (m *metricsService) registerMetrics() {
	if m.db != nil {
		m.registry.MustRegister(sqlstats.NewStatsCollector("starkescrow-db", m.db))
	}
	m.registry.MustRegister(
		m.rpcRequestsTotal,
		m.rpcRequestsDuration,
		m.rpcEndpointFailures,
		m.rpcEndpointSuccesses,
		m.rpcServiceHealth,
		m.rpcLatestBlock,
		m.rpcMethodCallsTotal,
		m.rpcMethodDuration,
		m.rpcMethodErrorsTotal,
		m.numRequestsTotal,
		m.requestsDuration,
		m.rateLimitedRequests,
		m.dbQueryDuration,
		m.dbQueriesTotal,
		m.dbQueryErrors,
		m.attemptTransitions,
		m.attemptOutcomes,
		m.attemptDuration,
		m.pendingAttempts,
		m.walletRequests,
	)
}

// RegisterPoolMetrics registers a worker pool for metrics collection
func (m *metricsService) RegisterPoolMetrics(channel string, pool pond.Pool) {
	labels := prometheus.Labels{"channel": channel}

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name:        "pool_workers_running",
			Help:        "Number of running worker goroutines",
			ConstLabels: labels,
		},
		func() float64 { return float64(pool.RunningWorkers()) },
	))
	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name:        "pool_tasks_submitted_total",
			Help:        "Number of tasks submitted",
			ConstLabels: labels,
		},
		func() float64 { return float64(pool.SubmittedTasks()) },
	))
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name:        "pool_tasks_waiting",
			Help:        "Number of tasks currently waiting in the queue",
			ConstLabels: labels,
		},
		func() float64 { return float64(pool.WaitingTasks()) },
	))
	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name:        "pool_tasks_successful_total",
			Help:        "Number of tasks that completed successfully",
			ConstLabels: labels,
		},
		func() float64 { return float64(pool.SuccessfulTasks()) },
	))
	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name:        "pool_tasks_failed_total",
			Help:        "Number of tasks that completed with panic",
			ConstLabels: labels,
		},
		func() float64 { return float64(pool.FailedTasks()) },
	))
	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name:        "pool_tasks_completed_total",
			Help:        "Number of tasks that completed either successfully or with panic",
			ConstLabels: labels,
		},
		func() float64 { return float64(pool.CompletedTasks()) },
	))
}

// GetRegistry returns the prometheus registry
func (m *metricsService) GetRegistry() *prometheus.Registry {
	return m.registry
}

// RPC Service Metrics
func (m *metricsService) IncRPCRequests(endpoint string) {
	m.rpcRequestsTotal.WithLabelValues(endpoint).Inc()
}

func (m *metricsService) ObserveRPCRequestDuration(endpoint string, duration float64) {
	m.rpcRequestsDuration.WithLabelValues(endpoint).Observe(duration)
}

func (m *metricsService) IncRPCEndpointFailure(endpoint string) {
	m.rpcEndpointFailures.WithLabelValues(endpoint).Inc()
}

func (m *metricsService) IncRPCEndpointSuccess(endpoint string) {
	m.rpcEndpointSuccesses.WithLabelValues(endpoint).Inc()
}

func (m *metricsService) SetRPCServiceHealth(healthy bool) {
	if healthy {
		m.rpcServiceHealth.Set(1)
	} else {
		m.rpcServiceHealth.Set(0)
	}
}

func (m *metricsService) SetRPCLatestBlock(block int64) {
	m.rpcLatestBlock.Set(float64(block))
}

// RPC Method Metrics
func (m *metricsService) IncRPCMethodCalls(method string) {
	m.rpcMethodCallsTotal.WithLabelValues(method).Inc()
}

func (m *metricsService) ObserveRPCMethodDuration(method string, duration float64) {
	m.rpcMethodDuration.WithLabelValues(method).Observe(duration)
}

func (m *metricsService) IncRPCMethodErrors(method, errorType string) {
	m.rpcMethodErrorsTotal.WithLabelValues(method, errorType).Inc()
}

// HTTP Request Metrics
func (m *metricsService) IncNumRequests(endpoint, method string, statusCode int) {
	m.numRequestsTotal.WithLabelValues(endpoint, method, strconv.Itoa(statusCode)).Inc()
}

func (m *metricsService) ObserveRequestDuration(endpoint, method string, duration float64) {
	m.requestsDuration.WithLabelValues(endpoint, method).Observe(duration)
}

func (m *metricsService) IncRateLimitedRequests(endpoint string) {
	m.rateLimitedRequests.WithLabelValues(endpoint).Inc()
}

// DB Query Metrics
func (m *metricsService) ObserveDBQueryDuration(queryType, table string, duration float64) {
	m.dbQueryDuration.WithLabelValues(queryType, table).Observe(duration)
}

func (m *metricsService) IncDBQuery(queryType, table string) {
	m.dbQueriesTotal.WithLabelValues(queryType, table).Inc()
}

func (m *metricsService) IncDBQueryError(queryType, table, errorType string) {
	m.dbQueryErrors.WithLabelValues(queryType, table, errorType).Inc()
}

// Attempt Metrics
func (m *metricsService) IncAttemptTransitions(event, phase string) {
	m.attemptTransitions.WithLabelValues(event, phase).Inc()
}

func (m *metricsService) IncAttemptOutcomes(actionKind, outcome string) {
	m.attemptOutcomes.WithLabelValues(actionKind, outcome).Inc()
}

func (m *metricsService) ObserveAttemptDuration(actionKind, outcome string, duration float64) {
	m.attemptDuration.WithLabelValues(actionKind, outcome).Observe(duration)
}

func (m *metricsService) IncPendingAttempts() {
	m.pendingAttempts.Inc()
}

func (m *metricsService) DecPendingAttempts() {
	m.pendingAttempts.Dec()
}

// Wallet Metrics
func (m *metricsService) IncWalletRequests(sessionType, operation string, success bool) {
	m.walletRequests.WithLabelValues(sessionType, operation, strconv.FormatBool(success)).Inc()
}
