package serve

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	supporthttp "github.com/stellar/go-stellar-sdk/support/http"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/starkescrow/starkescrow/internal/serve/httperror"
	"github.com/starkescrow/starkescrow/internal/serve/httphandler"
	"github.com/starkescrow/starkescrow/internal/serve/middleware"
)

// NewHandler creates the main HTTP handler with all routes configured
func NewHandler(deps HandlerDependencies) http.Handler {
	container := deps.ServiceContainer
	authProvider := deps.AuthProvider

	mux := supporthttp.NewAPIMux(log.DefaultLogger)
	mux.NotFound(httperror.ErrorHandler{Error: httperror.NotFound}.ServeHTTP)
	mux.MethodNotAllowed(httperror.ErrorHandler{Error: httperror.MethodNotAllowed}.ServeHTTP)

	setupMiddleware(mux, container)
	setupPublicRoutes(mux, container)
	setupAttemptRoutes(mux, container)
	setupSubmissionRoutes(mux, container, authProvider)

	return mux
}

func setupMiddleware(mux *chi.Mux, container ServiceContainer) {
	mux.Use(middleware.MetricsMiddleware(container.GetMetricsService()))
	mux.Use(middleware.RecoverHandler(container.GetAppTracker()))
}

func setupPublicRoutes(mux *chi.Mux, container ServiceContainer) {
	mux.Get("/health", httphandler.HealthHandler{
		RPCService: container.GetRPCService(),
		Session:    container.GetSession(),
		Network:    container.GetNetwork(),
		AppTracker: container.GetAppTracker(),
	}.GetHealth)

	mux.Get("/api-metrics", promhttp.HandlerFor(
		container.GetMetricsService().GetRegistry(),
		promhttp.HandlerOpts{},
	).ServeHTTP)

	accountHandler := httphandler.AccountHandler{
		EscrowService: container.GetEscrowService(),
		Session:       container.GetSession(),
		AppTracker:    container.GetAppTracker(),
	}
	mux.Route("/account", func(r chi.Router) {
		r.Get("/", accountHandler.GetAccount)
		r.Get("/balance", accountHandler.GetBalance)
	})

	escrowHandler := newEscrowHandler(container)
	mux.Get("/escrows/stats", escrowHandler.GetStats)
	mux.Get("/escrows/{id}", escrowHandler.GetEscrow)
	mux.Get("/escrows/{id}/actions", escrowHandler.GetEscrowActions)
	mux.Get("/accounts/{address}/escrows", escrowHandler.GetAccountEscrows)
}

func setupAttemptRoutes(mux *chi.Mux, container ServiceContainer) {
	handler := httphandler.AttemptHandler{
		Manager:        container.GetAttemptManager(),
		Network:        container.GetNetwork(),
		AppTracker:     container.GetAppTracker(),
		OriginPatterns: container.GetOriginPatterns(),
	}
	if models := container.GetModels(); models != nil {
		handler.History = models.Attempts
	}

	mux.Route("/attempts", func(r chi.Router) {
		r.Get("/", handler.ListAttempts)
		r.Get("/history", handler.GetHistory)
		r.Get("/{action}", handler.GetAttempt)
		r.Delete("/{action}", handler.CloseAttempt)
		r.Get("/{action}/stream", handler.StreamAttempt)
	})
}

// setupSubmissionRoutes registers the routes that reach the wallet. They are rate limited per client and, when a
// client key is configured, authenticated.
func setupSubmissionRoutes(mux *chi.Mux, container ServiceContainer, authProvider AuthProvider) {
	limiter := middleware.NewRateLimiter(container.GetSubmitRateLimit(), container.GetMetricsService())

	mux.Group(func(r chi.Router) {
		r.Use(limiter.Middleware)
		if authProvider != nil {
			r.Use(middleware.AuthenticationMiddleware(authProvider.GetRequestVerifier()))
		}

		escrowHandler := newEscrowHandler(container)
		r.Post("/escrows", escrowHandler.CreateEscrow)
		r.Post("/escrows/{id}/actions/{action}", escrowHandler.PerformAction)

		feeHandler := httphandler.FeeHandler{
			EscrowService: container.GetEscrowService(),
			Session:       container.GetSession(),
			AppTracker:    container.GetAppTracker(),
		}
		r.Post("/fees/estimate", feeHandler.EstimateFee)
	})
}

func newEscrowHandler(container ServiceContainer) httphandler.EscrowHandler {
	return httphandler.EscrowHandler{
		EscrowService: container.GetEscrowService(),
		Manager:       container.GetAttemptManager(),
		Session:       container.GetSession(),
		AppTracker:    container.GetAppTracker(),
	}
}
