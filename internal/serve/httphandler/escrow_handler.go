package httphandler

import (
	"net/http"
	"sort"
	"time"

	set "github.com/deckarep/golang-set/v2"
	"github.com/stellar/go-stellar-sdk/support/render/httpjson"

	"github.com/starkescrow/starkescrow/internal/apptracker"
	"github.com/starkescrow/starkescrow/internal/escrow"
	"github.com/starkescrow/starkescrow/internal/serve/httperror"
	"github.com/starkescrow/starkescrow/internal/tracker"
	"github.com/starkescrow/starkescrow/internal/wallet"
)

type EscrowHandler struct {
	EscrowService *escrow.Service
	Manager       *tracker.Manager
	Session       wallet.Session
	AppTracker    apptracker.AppTracker
	Now           func() time.Time
}

type EscrowPathParams struct {
	ID uint64 `path:"id" validate:"required,gt=0"`
}

type EscrowActionPathParams struct {
	ID     uint64 `path:"id" validate:"required,gt=0"`
	Action string `path:"action" validate:"required,oneof=release refund dispute resolve-seller resolve-buyer"`
}

type AccountEscrowsPathParams struct {
	Address string `path:"address" validate:"required,felt"`
}

type AccountEscrowsQuery struct {
	Role string `query:"role" validate:"omitempty,oneof=buyer seller arbiter"`
}

type EscrowResponse struct {
	Escrow      escrow.Escrow `json:"escrow"`
	Roles       []escrow.Role `json:"roles"`
	ContractURL string        `json:"contract_url"`
}

type ActionOption struct {
	Action        escrow.ActionType `json:"action"`
	Key           string            `json:"key"`
	Label         string            `json:"label"`
	Message       string            `json:"message"`
	ConfirmPrompt string            `json:"confirm_prompt"`
	Attempt       *AttemptView      `json:"attempt,omitempty"`
}

type EscrowActionsResponse struct {
	EscrowID uint64         `json:"escrow_id"`
	Status   escrow.Status  `json:"status"`
	Roles    []escrow.Role  `json:"roles"`
	Actions  []ActionOption `json:"actions"`
}

type AccountEscrowsResponse struct {
	Address string          `json:"address"`
	Roles   []escrow.Role   `json:"roles"`
	Escrows []escrow.Escrow `json:"escrows"`
}

func (h EscrowHandler) now() time.Time {
	if h.Now == nil {
		return time.Now()
	}
	return h.Now()
}

func (h EscrowHandler) address() string {
	if h.Session == nil {
		return ""
	}
	return h.Session.Address()
}

func (h EscrowHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := h.EscrowService.Reader().GetStats(ctx)
	if err != nil {
		renderDomainError(ctx, w, err, h.AppTracker)
		return
	}
	httpjson.Render(w, stats, httpjson.JSON)
}

func (h EscrowHandler) GetEscrow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var reqParams EscrowPathParams
	httpErr := DecodePathAndValidate(ctx, r, &reqParams, h.AppTracker)
	if httpErr != nil {
		httpErr.Render(w)
		return
	}

	e, err := h.EscrowService.Reader().GetEscrow(ctx, reqParams.ID)
	if err != nil {
		renderDomainError(ctx, w, err, h.AppTracker)
		return
	}

	httpjson.Render(w, EscrowResponse{
		Escrow:      e,
		Roles:       sortedRoles(escrow.RolesOf(e, h.address())),
		ContractURL: h.EscrowService.Network().ContractURL(h.EscrowService.ContractAddress()),
	}, httpjson.JSON)
}

// GetEscrowActions lists what the connected account can do on the escrow, with the attempt already running
// for each action if any.
func (h EscrowHandler) GetEscrowActions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var reqParams EscrowPathParams
	httpErr := DecodePathAndValidate(ctx, r, &reqParams, h.AppTracker)
	if httpErr != nil {
		httpErr.Render(w)
		return
	}

	e, err := h.EscrowService.Reader().GetEscrow(ctx, reqParams.ID)
	if err != nil {
		renderDomainError(ctx, w, err, h.AppTracker)
		return
	}

	now := h.now()
	network := h.EscrowService.Network()
	available := escrow.AvailableActions(e, h.address())
	options := make([]ActionOption, 0, len(available))
	for _, action := range available {
		option := ActionOption{
			Action:        action,
			Key:           escrow.ActionKey(e.ID, action),
			Label:         action.Label(),
			Message:       action.Message(),
			ConfirmPrompt: action.ConfirmPrompt(),
		}
		if a, err := h.Manager.Get(option.Key); err == nil {
			view := NewAttemptView(a, now, network)
			option.Attempt = &view
		}
		options = append(options, option)
	}

	httpjson.Render(w, EscrowActionsResponse{
		EscrowID: e.ID,
		Status:   e.Status,
		Roles:    sortedRoles(escrow.RolesOf(e, h.address())),
		Actions:  options,
	}, httpjson.JSON)
}

// GetAccountEscrows lists the escrows an address takes part in. Without a role filter the escrows of every
// role are merged.
func (h EscrowHandler) GetAccountEscrows(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var reqParams AccountEscrowsPathParams
	httpErr := DecodePathAndValidate(ctx, r, &reqParams, h.AppTracker)
	if httpErr != nil {
		httpErr.Render(w)
		return
	}
	var reqQuery AccountEscrowsQuery
	httpErr = DecodeQueryAndValidate(ctx, r, &reqQuery, h.AppTracker)
	if httpErr != nil {
		httpErr.Render(w)
		return
	}

	roles := []escrow.Role{escrow.RoleBuyer, escrow.RoleSeller, escrow.RoleArbiter}
	if reqQuery.Role != "" {
		roles = []escrow.Role{escrow.Role(reqQuery.Role)}
	}

	seen := set.NewThreadUnsafeSet[uint64]()
	escrows := []escrow.Escrow{}
	for _, role := range roles {
		list, err := h.EscrowService.Reader().ListEscrows(ctx, role, reqParams.Address)
		if err != nil {
			renderDomainError(ctx, w, err, h.AppTracker)
			return
		}
		for _, e := range list {
			if seen.Add(e.ID) {
				escrows = append(escrows, e)
			}
		}
	}
	sort.Slice(escrows, func(i, j int) bool { return escrows[i].ID > escrows[j].ID })

	httpjson.Render(w, AccountEscrowsResponse{
		Address: reqParams.Address,
		Roles:   roles,
		Escrows: escrows,
	}, httpjson.JSON)
}

// CreateEscrow submits the approve + create_escrow sequence. The response is the attempt as it stands
// once the wallet answered; progress is followed on /attempts/create.
func (h EscrowHandler) CreateEscrow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var reqBody escrow.CreateEscrowInput
	httpErr := DecodeJSONAndValidate(ctx, r, &reqBody, h.AppTracker)
	if httpErr != nil {
		httpErr.Render(w)
		return
	}

	attempt, err := h.EscrowService.Create(ctx, h.Session, reqBody)
	if err != nil {
		renderDomainError(ctx, w, err, h.AppTracker)
		return
	}
	httpjson.RenderStatus(w, http.StatusAccepted, NewAttemptView(attempt, h.now(), h.EscrowService.Network()), httpjson.JSON)
}

func (h EscrowHandler) PerformAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var reqParams EscrowActionPathParams
	httpErr := DecodePathAndValidate(ctx, r, &reqParams, h.AppTracker)
	if httpErr != nil {
		httpErr.Render(w)
		return
	}

	action, err := escrow.ParseAction(reqParams.Action)
	if err != nil {
		httperror.BadRequest(err.Error(), nil).Render(w)
		return
	}

	attempt, err := h.EscrowService.Perform(ctx, h.Session, reqParams.ID, action)
	if err != nil {
		renderDomainError(ctx, w, err, h.AppTracker)
		return
	}
	httpjson.RenderStatus(w, http.StatusAccepted, NewAttemptView(attempt, h.now(), h.EscrowService.Network()), httpjson.JSON)
}

func sortedRoles(roles set.Set[escrow.Role]) []escrow.Role {
	out := roles.ToSlice()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
