package httphandler

import (
	"net/http"

	"github.com/stellar/go-stellar-sdk/support/render/httpjson"

	"github.com/starkescrow/starkescrow/internal/apptracker"
	"github.com/starkescrow/starkescrow/internal/entities"
	"github.com/starkescrow/starkescrow/internal/escrow"
	"github.com/starkescrow/starkescrow/internal/serve/httperror"
	"github.com/starkescrow/starkescrow/internal/wallet"
)

type FeeHandler struct {
	EscrowService *escrow.Service
	Session       wallet.Session
	AppTracker    apptracker.AppTracker
}

// FeeEstimateRequest names the operation to price. Create needs the escrow fields, every other action needs
// the escrow id.
type FeeEstimateRequest struct {
	Action   string                    `json:"action" validate:"required,oneof=create release refund dispute resolve-seller resolve-buyer"`
	EscrowID uint64                    `json:"escrow_id"`
	Create   *escrow.CreateEscrowInput `json:"create"`
}

type FeeEstimateResponse struct {
	Calls        []entities.Call      `json:"calls"`
	Estimate     entities.FeeEstimate `json:"estimate"`
	EstimatedFee string               `json:"estimated_fee"`
}

// EstimateFee is advisory: it never creates or touches an attempt.
func (h FeeHandler) EstimateFee(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var reqBody FeeEstimateRequest
	httpErr := DecodeJSONAndValidate(ctx, r, &reqBody, h.AppTracker)
	if httpErr != nil {
		httpErr.Render(w)
		return
	}

	var (
		calls []entities.Call
		err   error
	)
	if escrow.ActionType(reqBody.Action) == escrow.ActionCreate {
		if reqBody.Create == nil {
			httperror.BadRequest("Validation error.", map[string]interface{}{"create": "This field is required"}).Render(w)
			return
		}
		calls, err = h.EscrowService.CreateCalls(*reqBody.Create)
	} else {
		if reqBody.EscrowID == 0 {
			httperror.BadRequest("Validation error.", map[string]interface{}{"escrow_id": "This field is required"}).Render(w)
			return
		}
		calls, err = h.EscrowService.ActionCalls(ctx, h.Session, reqBody.EscrowID, escrow.ActionType(reqBody.Action))
	}
	if err != nil {
		renderDomainError(ctx, w, err, h.AppTracker)
		return
	}

	estimate, err := h.EscrowService.EstimateFee(ctx, h.Session, calls)
	if err != nil {
		renderDomainError(ctx, w, err, h.AppTracker)
		return
	}

	httpjson.Render(w, FeeEstimateResponse{
		Calls:        calls,
		Estimate:     estimate,
		EstimatedFee: escrow.EstimatedFee(estimate),
	}, httpjson.JSON)
}
