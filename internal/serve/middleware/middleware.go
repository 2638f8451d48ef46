package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/starkescrow/starkescrow/internal/apptracker"
	"github.com/starkescrow/starkescrow/internal/serve/auth"
	"github.com/starkescrow/starkescrow/internal/serve/httperror"
)

// RequestVerifier authenticates an incoming request. Implementations must leave the body readable.
type RequestVerifier interface {
	VerifyRequest(req *http.Request) error
}

var _ RequestVerifier = (*auth.JWTManager)(nil)

// AuthenticationMiddleware rejects requests whose bearer token does not verify.
func AuthenticationMiddleware(verifier RequestVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
			ctx := req.Context()
			if err := verifier.VerifyRequest(req); err != nil {
				if errors.Is(err, auth.ErrBodyTooLarge) {
					httperror.BadRequest("Request body is too large.", nil).Render(rw)
					return
				}
				log.Ctx(ctx).Warnf("authenticating request: %v", err)
				httperror.Unauthorized("", nil).Render(rw)
				return
			}

			next.ServeHTTP(rw, req)
		})
	}
}

// RecoverHandler turns a panicking handler into a 500 response and reports the panic.
func RecoverHandler(appTracker apptracker.AppTracker) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				//nolint:errorlint
				if r == http.ErrAbortHandler {
					panic(r)
				}

				ctx := req.Context()
				var err error
				if rErr, ok := r.(error); ok {
					err = fmt.Errorf("panic: %w", rErr)
				} else {
					err = fmt.Errorf("panic: %v", r)
				}
				log.Ctx(ctx).Errorf("recovered from %v", err)
				httperror.InternalServerError(ctx, "", err, nil, appTracker).Render(rw)
			}()

			next.ServeHTTP(rw, req)
		})
	}
}
