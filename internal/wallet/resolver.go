package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/starkescrow/starkescrow/internal/metrics"
	"github.com/starkescrow/starkescrow/internal/utils"
)

type SessionOptions struct {
	Type           SessionType
	BridgeURL      string
	HTTPClient     utils.HTTPClient
	MetricsService metrics.MetricsService

	ConnectAttempts   uint
	ConnectRetryDelay time.Duration
}

// ResolveSession builds the session for the configured type. A bridge session is connected before it is
// returned.
//
//nolint:wrapcheck // defer is used to wrap the error
func ResolveSession(ctx context.Context, opts SessionOptions) (session Session, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("resolving wallet session: %w", err)
		}
	}()

	switch opts.Type {
	case DisconnectedSessionType:
		return NewDisconnectedSession(), nil
	case BridgeSessionType:
		bridge, err := NewBridgeSession(BridgeSessionOptions{
			BaseURL:           opts.BridgeURL,
			HTTPClient:        opts.HTTPClient,
			MetricsService:    opts.MetricsService,
			ConnectAttempts:   opts.ConnectAttempts,
			ConnectRetryDelay: opts.ConnectRetryDelay,
		})
		if err != nil {
			return nil, err
		}
		if err := bridge.Connect(ctx); err != nil {
			return nil, err
		}
		return bridge, nil
	}

	return nil, ErrInvalidSessionType
}
