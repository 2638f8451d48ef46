package wallet

import (
	"context"
	"errors"

	"github.com/starkescrow/starkescrow/internal/entities"
)

var (
	ErrNotConnected       = errors.New("wallet not connected")
	ErrInvalidSessionType = errors.New("invalid wallet session type")
)

type SessionType string

const (
	BridgeSessionType       SessionType = "BRIDGE"
	DisconnectedSessionType SessionType = "DISCONNECTED"
)

func (t SessionType) IsValid() bool {
	switch t {
	case BridgeSessionType, DisconnectedSessionType:
		return true
	default:
		return false
	}
}

type Status string

const (
	StatusConnected    Status = "connected"
	StatusConnecting   Status = "connecting"
	StatusDisconnected Status = "disconnected"
)

// Session is the user's connected wallet: it owns the account and signs and sends call sequences.
type Session interface {
	Type() SessionType
	Address() string
	Status() Status
	Connected() bool
	// Execute signs and sends the calls as one transaction and returns the transaction hash.
	Execute(ctx context.Context, calls []entities.Call) (string, error)
	EstimateFee(ctx context.Context, calls []entities.Call) (entities.FeeEstimate, error)
}

// Account is the public view of a session.
type Account struct {
	Address string      `json:"address,omitempty"`
	Status  Status      `json:"status"`
	Type    SessionType `json:"type"`
}

func AccountOf(s Session) Account {
	if s == nil {
		return Account{Status: StatusDisconnected, Type: DisconnectedSessionType}
	}
	return Account{Address: s.Address(), Status: s.Status(), Type: s.Type()}
}

type disconnectedSession struct{}

var _ Session = disconnectedSession{}

// NewDisconnectedSession returns a session that never has an account. Every submission through it fails.
func NewDisconnectedSession() Session {
	return disconnectedSession{}
}

func (disconnectedSession) Type() SessionType { return DisconnectedSessionType }
func (disconnectedSession) Address() string   { return "" }
func (disconnectedSession) Status() Status    { return StatusDisconnected }
func (disconnectedSession) Connected() bool   { return false }

func (disconnectedSession) Execute(context.Context, []entities.Call) (string, error) {
	return "", ErrNotConnected
}

func (disconnectedSession) EstimateFee(context.Context, []entities.Call) (entities.FeeEstimate, error) {
	return entities.FeeEstimate{}, ErrNotConnected
}
