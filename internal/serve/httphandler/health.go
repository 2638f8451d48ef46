package httphandler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/stellar/go-stellar-sdk/support/render/httpjson"

	"github.com/starkescrow/starkescrow/internal/apptracker"
	"github.com/starkescrow/starkescrow/internal/escrow"
	"github.com/starkescrow/starkescrow/internal/serve/httperror"
	"github.com/starkescrow/starkescrow/internal/services"
	"github.com/starkescrow/starkescrow/internal/wallet"
)

type HealthHandler struct {
	RPCService services.RPCService
	Session    wallet.Session
	Network    escrow.Network
	AppTracker apptracker.AppTracker
}

func (h HealthHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rpcHealth, err := h.RPCService.GetHealth(ctx)
	if err != nil {
		httperror.InternalServerError(ctx, "", err, nil, h.AppTracker).Render(w)
		return
	}
	if rpcHealth.Status != "healthy" {
		httperror.InternalServerError(ctx, "", errors.New("RPC is not healthy"), nil, h.AppTracker).Render(w)
		return
	}
	if h.Network.ChainID != "" && rpcHealth.ChainID != h.Network.ChainID {
		err = fmt.Errorf("RPC serves chain %s, expected %s", rpcHealth.ChainID, h.Network.ChainID)
		httperror.InternalServerError(ctx, "", err, nil, h.AppTracker).Render(w)
		return
	}

	httpjson.Render(w, map[string]interface{}{
		"status":           "ok",
		"network":          h.Network.Name,
		"chain_id":         rpcHealth.ChainID,
		"rpc_latest_block": rpcHealth.LatestBlock,
		"wallet":           wallet.AccountOf(h.Session),
	}, httpjson.JSON)
}
