package tracker

import "errors"

var (
	ErrSubmission         = errors.New("transaction submission failed")
	ErrExecutionReverted  = errors.New(MsgTransactionReverted)
	ErrExecutionFailed    = errors.New(MsgExecutionFailed)
	ErrReceiptUnavailable = errors.New(MsgReceiptUnavailable)

	ErrWalletNotConnected = errors.New(MsgWalletNotConnected)
	ErrEmptyCallSequence  = errors.New("call sequence is empty")
	ErrAttemptInFlight    = errors.New("an attempt for this action is already pending")
	ErrCloseWhilePending  = errors.New("attempt is pending, closing requires force")
	ErrAttemptNotFound    = errors.New("no attempt for this action")
	ErrManagerStopped     = errors.New("attempt manager is stopped")
)

// AttemptError describes why an attempt ended in the error phase. It matches the sentinel of its kind with
// errors.Is.
type AttemptError struct {
	Kind            ErrorKind
	Message         string
	TransactionHash string
}

func (e *AttemptError) Error() string {
	return e.Message
}

func (e *AttemptError) Is(target error) bool {
	switch e.Kind {
	case ErrorKindSubmission:
		return target == ErrSubmission
	case ErrorKindExecutionRevert:
		return target == ErrExecutionReverted
	case ErrorKindExecutionFailure:
		return target == ErrExecutionFailed
	case ErrorKindReceiptUnavailable:
		return target == ErrReceiptUnavailable
	}
	return false
}
