package httphandler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/stellar/go-stellar-sdk/support/log"
	"github.com/stellar/go-stellar-sdk/support/render/httpjson"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/starkescrow/starkescrow/internal/apptracker"
	"github.com/starkescrow/starkescrow/internal/data"
	"github.com/starkescrow/starkescrow/internal/escrow"
	"github.com/starkescrow/starkescrow/internal/serve/httperror"
	"github.com/starkescrow/starkescrow/internal/tracker"
)

const wsWriteTimeout = 10 * time.Second

// AttemptHistory reads the attempt journal.
type AttemptHistory interface {
	History(ctx context.Context, filter data.HistoryFilter) ([]data.AttemptRecord, error)
}

type AttemptHandler struct {
	Manager    *tracker.Manager
	History    AttemptHistory
	Network    escrow.Network
	AppTracker apptracker.AppTracker
	Now        func() time.Time
	// OriginPatterns lists the hosts allowed to open a stream from a browser. Empty only allows same origin.
	OriginPatterns []string
}

type AttemptPathParams struct {
	Action string `path:"action" validate:"required"`
}

type CloseAttemptQuery struct {
	Force bool `query:"force"`
}

type AttemptHistoryQuery struct {
	Action string         `query:"action"`
	Phase  string         `query:"phase" validate:"omitempty,oneof=IDLE PENDING SUCCESS ERROR"`
	Limit  int            `query:"limit" validate:"omitempty,gt=0,lte=200"`
	Order  data.SortOrder `query:"order" validate:"omitempty,oneof=ASC DESC"`
}

type AttemptHistoryResponse struct {
	Attempts []data.AttemptRecord `json:"attempts"`
}

func (h AttemptHandler) now() time.Time {
	if h.Now == nil {
		return time.Now()
	}
	return h.Now()
}

// decodeAction reads the action key from the path. Only keys naming a create or an escrow action are
// accepted.
func (h AttemptHandler) decodeAction(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, bool) {
	var reqParams AttemptPathParams
	httpErr := DecodePathAndValidate(ctx, r, &reqParams, h.AppTracker)
	if httpErr != nil {
		httpErr.Render(w)
		return "", false
	}
	if _, _, err := escrow.ParseActionKey(reqParams.Action); err != nil {
		httperror.BadRequest("Invalid action key.", map[string]interface{}{"action": err.Error()}).Render(w)
		return "", false
	}
	return reqParams.Action, true
}

func (h AttemptHandler) ListAttempts(w http.ResponseWriter, r *http.Request) {
	httpjson.Render(w, newAttemptViews(h.Manager.List(), h.now(), h.Network), httpjson.JSON)
}

func (h AttemptHandler) GetAttempt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	action, ok := h.decodeAction(ctx, w, r)
	if !ok {
		return
	}

	attempt, err := h.Manager.Get(action)
	if err != nil {
		renderDomainError(ctx, w, err, h.AppTracker)
		return
	}
	httpjson.Render(w, NewAttemptView(attempt, h.now(), h.Network), httpjson.JSON)
}

// CloseAttempt dismisses the attempt of an action. A pending attempt is only dismissed with force=true, which
// stops watching it without cancelling the transaction on the network.
func (h AttemptHandler) CloseAttempt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	action, ok := h.decodeAction(ctx, w, r)
	if !ok {
		return
	}
	var reqQuery CloseAttemptQuery
	httpErr := DecodeQueryAndValidate(ctx, r, &reqQuery, h.AppTracker)
	if httpErr != nil {
		httpErr.Render(w)
		return
	}

	attempt, err := h.Manager.Close(ctx, action, reqQuery.Force)
	if err != nil {
		renderDomainError(ctx, w, err, h.AppTracker)
		return
	}
	httpjson.Render(w, NewAttemptView(attempt, h.now(), h.Network), httpjson.JSON)
}

func (h AttemptHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.History == nil {
		httperror.ServiceUnavailable("Attempt history is not enabled on this server.").Render(w)
		return
	}

	var reqQuery AttemptHistoryQuery
	httpErr := DecodeQueryAndValidate(ctx, r, &reqQuery, h.AppTracker)
	if httpErr != nil {
		httpErr.Render(w)
		return
	}

	filter := data.HistoryFilter{
		Phase: tracker.Phase(reqQuery.Phase),
		Limit: reqQuery.Limit,
		Order: reqQuery.Order,
	}
	if reqQuery.Action != "" {
		filter.Actions = []string{reqQuery.Action}
	}

	records, err := h.History.History(ctx, filter)
	if err != nil {
		httperror.InternalServerError(ctx, "", err, nil, h.AppTracker).Render(w)
		return
	}
	httpjson.Render(w, AttemptHistoryResponse{Attempts: records}, httpjson.JSON)
}

// StreamAttempt upgrades to a websocket and sends the action's attempt every time it changes, starting with
// the current one. Actions that were never submitted answer 404. The stream ends when the client goes away
// or the server shuts down.
func (h AttemptHandler) StreamAttempt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	action, ok := h.decodeAction(ctx, w, r)
	if !ok {
		return
	}

	updates, cancel, err := h.Manager.Subscribe(action)
	if err != nil {
		renderDomainError(ctx, w, err, h.AppTracker)
		return
	}
	defer cancel()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.OriginPatterns})
	if err != nil {
		log.Ctx(ctx).Warnf("accepting attempt stream for %s: %v", action, err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	// The stream is write only; CloseRead answers pings and cancels ctx once the client closes.
	ctx = conn.CloseRead(ctx)
	if err := h.streamAttempt(ctx, conn, updates); err != nil {
		if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
			log.Ctx(ctx).Warnf("streaming attempt %s: %v", action, err)
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func (h AttemptHandler) streamAttempt(ctx context.Context, conn *websocket.Conn, updates <-chan tracker.Attempt) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case a, ok := <-updates:
			if !ok {
				return nil
			}
			writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := wsjson.Write(writeCtx, conn, NewAttemptView(a, h.now(), h.Network))
			cancel()
			if err != nil {
				return err
			}
		}
	}
}
