package escrow

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/go-playground/validator/v10"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/starkescrow/starkescrow/internal/entities"
	"github.com/starkescrow/starkescrow/internal/tracker"
	"github.com/starkescrow/starkescrow/internal/utils"
	"github.com/starkescrow/starkescrow/internal/validators"
	"github.com/starkescrow/starkescrow/internal/wallet"
)

var ErrInvalidInput = errors.New("invalid escrow input")

type ServiceConfigs struct {
	Manager   *tracker.Manager
	Reader    *Reader
	Calls     CallBuilder
	Network   Network
	Validator *validator.Validate
}

// Service submits escrow operations through the attempt manager, one attempt slot per action.
type Service struct {
	manager   *tracker.Manager
	reader    *Reader
	calls     CallBuilder
	network   Network
	validator *validator.Validate
}

func NewService(cfg ServiceConfigs) (*Service, error) {
	if cfg.Manager == nil {
		return nil, errors.New("manager is required")
	}
	if cfg.Reader == nil {
		return nil, errors.New("reader is required")
	}
	if cfg.Validator == nil {
		cfg.Validator = validators.NewValidator()
	}
	return &Service{
		manager:   cfg.Manager,
		reader:    cfg.Reader,
		calls:     cfg.Calls,
		network:   cfg.Network,
		validator: cfg.Validator,
	}, nil
}

func (s *Service) Network() Network {
	return s.network
}

func (s *Service) Reader() *Reader {
	return s.reader
}

func (s *Service) ContractAddress() string {
	return s.calls.EscrowContract
}

func (s *Service) ValidateCreate(input CreateEscrowInput) error {
	if err := s.validator.Struct(input); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return nil
}

// CreateCalls validates input and returns the approve + create_escrow sequence.
func (s *Service) CreateCalls(input CreateEscrowInput) ([]entities.Call, error) {
	if err := s.ValidateCreate(input); err != nil {
		return nil, err
	}
	calls, err := s.calls.CreateEscrow(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return calls, nil
}

// Create funds a new escrow from the session's account.
func (s *Service) Create(ctx context.Context, session wallet.Session, input CreateEscrowInput) (tracker.Attempt, error) {
	calls, err := s.CreateCalls(input)
	if err != nil {
		return tracker.Attempt{}, err
	}

	logCtx := context.WithoutCancel(ctx)
	attempt, err := s.manager.Submit(ctx, CreateActionKey, session, calls, func(a tracker.Attempt) {
		log.Ctx(logCtx).Infof("escrow for %s created in transaction %s", utils.ShortenHex(input.Seller, 4), a.TransactionHash)
	})
	if err != nil {
		return attempt, fmt.Errorf("submitting escrow creation: %w", err)
	}
	return attempt, nil
}

// ActionCalls checks that the session may perform action on escrow id and returns the call to send.
func (s *Service) ActionCalls(ctx context.Context, session wallet.Session, id uint64, action ActionType) ([]entities.Call, error) {
	if !action.IsValid() {
		return nil, fmt.Errorf("%w %q", ErrInvalidAction, action)
	}

	if session != nil && session.Connected() {
		e, err := s.reader.GetEscrow(ctx, id)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(AvailableActions(e, session.Address()), action) {
			if RolesOf(e, session.Address()).IsEmpty() {
				return nil, ErrNotParticipant
			}
			return nil, fmt.Errorf("%w: cannot %s while escrow is %s", ErrActionNotAvailable, action, e.Status)
		}
	}

	return s.calls.Action(id, action)
}

// Perform runs action on escrow id. It is refused with tracker.ErrAttemptInFlight while any action on the
// same escrow is pending. A disconnected session still produces an attempt, failed with a submission error.
func (s *Service) Perform(ctx context.Context, session wallet.Session, id uint64, action ActionType) (tracker.Attempt, error) {
	calls, err := s.ActionCalls(ctx, session, id, action)
	if err != nil {
		return tracker.Attempt{}, err
	}

	logCtx := context.WithoutCancel(ctx)
	attempt, err := s.manager.SubmitInGroup(ctx, ActionGroup(id), ActionKey(id, action), session, calls, func(a tracker.Attempt) {
		s.reader.Invalidate(id)
		log.Ctx(logCtx).Infof("escrow %d: %s confirmed in transaction %s", id, action, a.TransactionHash)
	})
	if err != nil {
		return attempt, fmt.Errorf("submitting %s on escrow %d: %w", action, id, err)
	}
	return attempt, nil
}

// EstimateFee asks the wallet what calls would cost. The estimate is advisory and never touches attempts.
func (s *Service) EstimateFee(ctx context.Context, session wallet.Session, calls []entities.Call) (entities.FeeEstimate, error) {
	if session == nil || !session.Connected() {
		return entities.FeeEstimate{}, wallet.ErrNotConnected
	}
	if len(calls) == 0 {
		return entities.FeeEstimate{}, tracker.ErrEmptyCallSequence
	}
	fee, err := session.EstimateFee(ctx, calls)
	if err != nil {
		return entities.FeeEstimate{}, fmt.Errorf("estimating fee: %w", err)
	}
	return fee, nil
}
