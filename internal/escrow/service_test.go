package escrow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/starkescrow/starkescrow/internal/entities"
	"github.com/starkescrow/starkescrow/internal/tracker"
	"github.com/starkescrow/starkescrow/internal/wallet"
)

type confirmingReceipts struct{}

func (confirmingReceipts) GetTransactionReceipt(_ context.Context, hash string) (entities.TransactionReceipt, error) {
	return entities.TransactionReceipt{
		TransactionHash: hash,
		ExecutionStatus: entities.ExecutionSucceeded,
		FinalityStatus:  entities.FinalityAcceptedOnL2,
	}, nil
}

// unknownReceipts never finds the transaction, so attempts stay pending.
type unknownReceipts struct{}

func (unknownReceipts) GetTransactionReceipt(_ context.Context, _ string) (entities.TransactionReceipt, error) {
	return entities.TransactionReceipt{}, &entities.RPCError{Code: entities.RPCErrTxnHashNotFound, Message: "Transaction hash not found"}
}

func newTestService(t *testing.T, caller *fakeCaller) *Service {
	t.Helper()
	return newTestServiceWithReceipts(t, caller, confirmingReceipts{})
}

func newTestServiceWithReceipts(t *testing.T, caller *fakeCaller, receipts tracker.ReceiptSource) *Service {
	t.Helper()
	manager, err := tracker.NewManager(tracker.ManagerConfigs{
		Receipts:     receipts,
		PollInterval: time.Millisecond,
		MaxObservers: 2,
	})
	require.NoError(t, err)
	t.Cleanup(manager.Shutdown)

	network, err := GetNetwork("sepolia")
	require.NoError(t, err)

	svc, err := NewService(ServiceConfigs{
		Manager: manager,
		Reader:  newTestReader(t, caller, nil),
		Calls:   newTestCallBuilder(t),
		Network: network,
	})
	require.NoError(t, err)
	return svc
}

func waitForPhase(t *testing.T, svc *Service, action string, phase tracker.Phase) tracker.Attempt {
	t.Helper()
	var attempt tracker.Attempt
	require.Eventually(t, func() bool {
		a, err := svc.manager.Get(action)
		if err != nil {
			return false
		}
		attempt = a
		return a.Phase == phase
	}, 5*time.Second, 5*time.Millisecond)
	return attempt
}

func TestNewService_Validation(t *testing.T) {
	_, err := NewService(ServiceConfigs{})
	assert.EqualError(t, err, "manager is required")
}

func TestService_Create(t *testing.T) {
	svc := newTestService(t, newFakeCaller())
	ctx := context.Background()

	t.Run("invalid_input", func(t *testing.T) {
		session := wallet.NewSessionMock(t)
		_, err := svc.Create(ctx, session, CreateEscrowInput{Seller: "0x1", Arbiter: arbiter, Amount: "1", Description: "Logo design"})
		require.ErrorIs(t, err, ErrInvalidInput)

		var vErrs validator.ValidationErrors
		require.ErrorAs(t, err, &vErrs)
		assert.Equal(t, "Seller", vErrs[0].Field())
	})

	t.Run("confirmed", func(t *testing.T) {
		input := CreateEscrowInput{Seller: seller, Arbiter: arbiter, Amount: "2", Description: "Website"}
		expectedCalls, err := svc.CreateCalls(input)
		require.NoError(t, err)

		session := wallet.NewSessionMock(t)
		session.On("Connected").Return(true)
		session.On("Execute", mock.Anything, expectedCalls).Return("0xfeed", nil).Once()

		attempt, err := svc.Create(ctx, session, input)
		require.NoError(t, err)
		assert.Equal(t, "0xfeed", attempt.TransactionHash)
		assert.Equal(t, tracker.PhasePending, attempt.Phase)

		done := waitForPhase(t, svc, CreateActionKey, tracker.PhaseSuccess)
		assert.Equal(t, tracker.StageConfirmed, done.Stage)
	})
}

func TestService_Perform(t *testing.T) {
	caller := newFakeCaller()
	caller.set(callKey("get_escrow", "7"), withLength(escrowFelts(7, StatusFunded)))
	svc := newTestService(t, caller)
	ctx := context.Background()

	t.Run("invalid_action", func(t *testing.T) {
		_, err := svc.Perform(ctx, nil, 7, ActionType("burn"))
		assert.ErrorIs(t, err, ErrInvalidAction)
	})

	t.Run("not_participant", func(t *testing.T) {
		session := wallet.NewSessionMock(t)
		session.On("Connected").Return(true)
		session.On("Address").Return(stranger)

		_, err := svc.Perform(ctx, session, 7, ActionRelease)
		assert.ErrorIs(t, err, ErrNotParticipant)
	})

	t.Run("wrong_role", func(t *testing.T) {
		session := wallet.NewSessionMock(t)
		session.On("Connected").Return(true)
		session.On("Address").Return(seller)

		_, err := svc.Perform(ctx, session, 7, ActionRelease)
		assert.ErrorIs(t, err, ErrActionNotAvailable)
		assert.ErrorContains(t, err, "cannot release while escrow is Funded")
	})

	t.Run("disconnected_session_fails_the_attempt", func(t *testing.T) {
		attempt, err := svc.Perform(ctx, wallet.NewDisconnectedSession(), 7, ActionDispute)
		require.NoError(t, err)
		assert.Equal(t, tracker.PhaseError, attempt.Phase)
		assert.Equal(t, tracker.ErrorKindSubmission, attempt.ErrorKind)
		assert.Equal(t, tracker.MsgWalletNotConnected, attempt.ErrorMessage)
	})

	t.Run("release_confirmed_invalidates_cache", func(t *testing.T) {
		session := wallet.NewSessionMock(t)
		session.On("Connected").Return(true)
		session.On("Address").Return(buyer)
		session.On("Execute", mock.Anything, []entities.Call{{ContractAddress: escrowContract, Entrypoint: "release", Calldata: []string{"7"}}}).
			Return("0xbeef", nil).Once()

		before := caller.count(callKey("get_escrow", "7"))
		_, err := svc.Perform(ctx, session, 7, ActionRelease)
		require.NoError(t, err)

		waitForPhase(t, svc, ActionKey(7, ActionRelease), tracker.PhaseSuccess)

		require.Eventually(t, func() bool {
			_, err := svc.Reader().GetEscrow(ctx, 7)
			return err == nil && caller.count(callKey("get_escrow", "7")) > before
		}, 5*time.Second, 5*time.Millisecond)
	})

	t.Run("read_failure", func(t *testing.T) {
		caller.fail(callKey("get_escrow", "99"), errors.New("node down"))
		session := wallet.NewSessionMock(t)
		session.On("Connected").Return(true)

		_, err := svc.Perform(ctx, session, 99, ActionRelease)
		assert.ErrorContains(t, err, "node down")
	})
}

func TestService_Perform_OneActionPerEscrow(t *testing.T) {
	caller := newFakeCaller()
	caller.set(callKey("get_escrow", "7"), withLength(escrowFelts(7, StatusFunded)))
	caller.set(callKey("get_escrow", "8"), withLength(escrowFelts(8, StatusFunded)))
	svc := newTestServiceWithReceipts(t, caller, unknownReceipts{})
	ctx := context.Background()

	session := wallet.NewSessionMock(t)
	session.On("Connected").Return(true)
	session.On("Address").Return(buyer)
	session.On("Execute", mock.Anything, []entities.Call{{ContractAddress: escrowContract, Entrypoint: "release", Calldata: []string{"7"}}}).
		Return("0xaaa", nil).Once()
	session.On("Execute", mock.Anything, []entities.Call{{ContractAddress: escrowContract, Entrypoint: "release", Calldata: []string{"8"}}}).
		Return("0xccc", nil).Once()

	release, err := svc.Perform(ctx, session, 7, ActionRelease)
	require.NoError(t, err)
	require.Equal(t, tracker.PhasePending, release.Phase)

	blocking, err := svc.Perform(ctx, session, 7, ActionDispute)
	assert.ErrorIs(t, err, tracker.ErrAttemptInFlight)
	assert.Equal(t, "0xaaa", blocking.TransactionHash)

	dispute, err := svc.manager.Get(ActionKey(7, ActionDispute))
	require.NoError(t, err)
	assert.Equal(t, tracker.PhaseIdle, dispute.Phase)

	other, err := svc.Perform(ctx, session, 8, ActionRelease)
	require.NoError(t, err)
	assert.Equal(t, "0xccc", other.TransactionHash)
}

func TestService_EstimateFee(t *testing.T) {
	svc := newTestService(t, newFakeCaller())
	ctx := context.Background()
	calls := []entities.Call{{ContractAddress: escrowContract, Entrypoint: "dispute", Calldata: []string{"1"}}}

	_, err := svc.EstimateFee(ctx, wallet.NewDisconnectedSession(), calls)
	assert.ErrorIs(t, err, wallet.ErrNotConnected)

	session := wallet.NewSessionMock(t)
	session.On("Connected").Return(true)
	_, err = svc.EstimateFee(ctx, session, nil)
	assert.ErrorIs(t, err, tracker.ErrEmptyCallSequence)

	session.On("EstimateFee", ctx, calls).Return(entities.FeeEstimate{OverallFee: "0x2386f26fc10000", Unit: "FRI"}, nil).Once()
	fee, err := svc.EstimateFee(ctx, session, calls)
	require.NoError(t, err)
	assert.Equal(t, "0.01 STRK", EstimatedFee(fee))
}
