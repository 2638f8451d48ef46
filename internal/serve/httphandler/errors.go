package httphandler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/starkescrow/starkescrow/internal/apptracker"
	"github.com/starkescrow/starkescrow/internal/escrow"
	"github.com/starkescrow/starkescrow/internal/serve/httperror"
	"github.com/starkescrow/starkescrow/internal/tracker"
	"github.com/starkescrow/starkescrow/internal/validators"
	"github.com/starkescrow/starkescrow/internal/wallet"
)

// renderDomainError maps escrow, tracker and wallet errors to their HTTP response. Anything unknown is an
// internal error and is reported to the app tracker.
func renderDomainError(ctx context.Context, w http.ResponseWriter, err error, appTracker apptracker.AppTracker) {
	switch {
	case errors.Is(err, escrow.ErrInvalidInput):
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) {
			httperror.BadRequest("Validation error.", validators.ParseValidationError(vErrs)).Render(w)
			return
		}
		httperror.BadRequest(err.Error(), nil).Render(w)
	case errors.Is(err, escrow.ErrInvalidAction), errors.Is(err, tracker.ErrEmptyCallSequence):
		httperror.BadRequest(err.Error(), nil).Render(w)
	case errors.Is(err, wallet.ErrNotConnected):
		httperror.BadRequest("Wallet not connected.", nil).Render(w)
	case errors.Is(err, escrow.ErrNotParticipant):
		httperror.Forbidden("The connected account is not a participant in this escrow.", nil).Render(w)
	case errors.Is(err, escrow.ErrEscrowNotFound):
		httperror.NotFoundError("Escrow not found.", nil).Render(w)
	case errors.Is(err, tracker.ErrAttemptNotFound):
		httperror.NotFoundError("No attempt for this action.", nil).Render(w)
	case errors.Is(err, escrow.ErrActionNotAvailable):
		httperror.Conflict(err.Error(), nil).Render(w)
	case errors.Is(err, tracker.ErrAttemptInFlight):
		httperror.Conflict("A transaction for this action is already pending.", nil).Render(w)
	case errors.Is(err, tracker.ErrCloseWhilePending):
		httperror.Conflict("The transaction is still pending. Use force=true to close it anyway.", nil).Render(w)
	case errors.Is(err, tracker.ErrManagerStopped):
		httperror.ServiceUnavailable("The server is shutting down.").Render(w)
	default:
		httperror.InternalServerError(ctx, "", err, nil, appTracker).Render(w)
	}
}
