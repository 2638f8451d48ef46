package httphandler

import (
	"net/http"

	"github.com/stellar/go-stellar-sdk/support/render/httpjson"

	"github.com/starkescrow/starkescrow/internal/apptracker"
	"github.com/starkescrow/starkescrow/internal/escrow"
	"github.com/starkescrow/starkescrow/internal/utils"
	"github.com/starkescrow/starkescrow/internal/wallet"
)

type AccountHandler struct {
	EscrowService *escrow.Service
	Session       wallet.Session
	AppTracker    apptracker.AppTracker
}

type AccountResponse struct {
	wallet.Account
	Network escrow.Network `json:"network"`
}

type BalanceResponse struct {
	Address          string       `json:"address"`
	Balance          string       `json:"balance"`
	BalanceFormatted string       `json:"balance_formatted"`
	Token            escrow.Token `json:"token"`
}

func (h AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	httpjson.Render(w, AccountResponse{
		Account: wallet.AccountOf(h.Session),
		Network: h.EscrowService.Network(),
	}, httpjson.JSON)
}

func (h AccountHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.Session == nil || !h.Session.Connected() {
		renderDomainError(ctx, w, wallet.ErrNotConnected, h.AppTracker)
		return
	}

	address := h.Session.Address()
	balance, err := h.EscrowService.Reader().BalanceOf(ctx, address)
	if err != nil {
		renderDomainError(ctx, w, err, h.AppTracker)
		return
	}

	token := h.EscrowService.Network().Token
	httpjson.Render(w, BalanceResponse{
		Address:          address,
		Balance:          balance.Dec(),
		BalanceFormatted: utils.FormatUnits(balance, token.Decimals) + " " + token.Symbol,
		Token:            token,
	}, httpjson.JSON)
}
