package tracker

import (
	"time"

	"github.com/google/uuid"

	"github.com/starkescrow/starkescrow/internal/entities"
)

// Phase is the overall status of an attempt.
type Phase string

const (
	PhaseIdle    Phase = "IDLE"
	PhasePending Phase = "PENDING"
	PhaseSuccess Phase = "SUCCESS"
	PhaseError   Phase = "ERROR"
)

// Stage is the fine grained progress of an attempt. Stages only move forward.
type Stage string

const (
	StageSubmitted            Stage = "SUBMITTED"
	StageAccepted             Stage = "ACCEPTED"
	StageAwaitingConfirmation Stage = "AWAITING_CONFIRMATION"
	StageConfirmed            Stage = "CONFIRMED"
)

var stageOrder = map[Stage]int{
	StageSubmitted:            0,
	StageAccepted:             1,
	StageAwaitingConfirmation: 2,
	StageConfirmed:            3,
}

// Index is the position of the stage in the stepper, starting at 0.
func (s Stage) Index() int {
	return stageOrder[s]
}

// Before reports whether s comes strictly before other.
func (s Stage) Before(other Stage) bool {
	return s.Index() < other.Index()
}

type ErrorKind string

const (
	ErrorKindSubmission         ErrorKind = "SUBMISSION_ERROR"
	ErrorKindExecutionRevert    ErrorKind = "EXECUTION_REVERT"
	ErrorKindExecutionFailure   ErrorKind = "EXECUTION_FAILURE"
	ErrorKindReceiptUnavailable ErrorKind = "RECEIPT_UNAVAILABLE"
)

const (
	MsgTransactionReverted = "Transaction was reverted"
	MsgExecutionFailed     = "Transaction failed during execution"
	MsgReceiptUnavailable  = "Failed to get transaction receipt"
	MsgWalletNotConnected  = "Wallet not connected"
	MsgSubmissionFailed    = "Failed to submit transaction"
)

// Attempt is one instance of the lifecycle of a user submitted transaction.
type Attempt struct {
	ID              uuid.UUID                    `json:"id"`
	Action          string                       `json:"action"`
	Phase           Phase                        `json:"phase"`
	Stage           Stage                        `json:"stage"`
	TransactionHash string                       `json:"transaction_hash,omitempty"`
	StartedAt       time.Time                    `json:"started_at,omitzero"`
	UpdatedAt       time.Time                    `json:"updated_at,omitzero"`
	ErrorKind       ErrorKind                    `json:"error_kind,omitempty"`
	ErrorMessage    string                       `json:"error_message,omitempty"`
	Receipt         *entities.TransactionReceipt `json:"receipt,omitempty"`
}

// NewAttempt returns a fresh idle attempt for the given action.
func NewAttempt(id uuid.UUID, action string) Attempt {
	return Attempt{
		ID:     id,
		Action: action,
		Phase:  PhaseIdle,
		Stage:  StageSubmitted,
	}
}

func (a Attempt) IsPending() bool {
	return a.Phase == PhasePending
}

func (a Attempt) IsTerminal() bool {
	return a.Phase == PhaseSuccess || a.Phase == PhaseError
}

// HasHandle reports whether the network accepted the attempt's transaction.
func (a Attempt) HasHandle() bool {
	return a.TransactionHash != ""
}

// Err returns the sentinel error matching the attempt's error kind, or nil when the attempt did not fail.
func (a Attempt) Err() error {
	if a.Phase != PhaseError {
		return nil
	}
	return &AttemptError{Kind: a.ErrorKind, Message: a.ErrorMessage, TransactionHash: a.TransactionHash}
}

type EventType string

const (
	EventSubmitted        EventType = "Submitted"
	EventAccepted         EventType = "Accepted"
	EventSubmissionFailed EventType = "SubmissionFailed"
	EventObserved         EventType = "Observed"
	EventReceiptReceived  EventType = "ReceiptReceived"
	EventReceiptFailed    EventType = "ReceiptFailed"
	EventReset            EventType = "Reset"
)

// Event is an input to Transition. AttemptID identifies the attempt the event was produced for; for
// EventReset it is the id of the fresh attempt.
type Event struct {
	Type            EventType
	AttemptID       uuid.UUID
	TransactionHash string
	At              time.Time
	Receipt         *entities.TransactionReceipt
	Err             error
}

// Transition applies an event to an attempt. It returns the resulting attempt and whether the event
// changed anything. Events that do not belong to the attempt, or that are not valid in its current
// phase and stage, leave it untouched.
func Transition(a Attempt, e Event) (Attempt, bool) {
	if e.Type == EventReset {
		fresh := NewAttempt(e.AttemptID, a.Action)
		fresh.UpdatedAt = e.At
		return fresh, true
	}
	if e.AttemptID != a.ID {
		return a, false
	}

	switch e.Type {
	case EventSubmitted:
		if a.Phase != PhaseIdle {
			return a, false
		}
		a.Phase = PhasePending
		a.Stage = StageSubmitted
		a.StartedAt = e.At

	case EventAccepted:
		if !a.IsPending() || a.HasHandle() || e.TransactionHash == "" {
			return a, false
		}
		a.TransactionHash = e.TransactionHash
		a.Stage = StageAccepted

	case EventSubmissionFailed:
		if !a.IsPending() || a.HasHandle() {
			return a, false
		}
		a.Phase = PhaseError
		a.ErrorKind = ErrorKindSubmission
		a.ErrorMessage = submissionMessage(e.Err)

	case EventObserved:
		if !a.ownsHandle(e) || a.Stage != StageAccepted {
			return a, false
		}
		a.Stage = StageAwaitingConfirmation

	case EventReceiptReceived:
		if !a.ownsHandle(e) || e.Receipt == nil {
			return a, false
		}
		switch e.Receipt.Outcome() {
		case entities.OutcomeSucceeded:
			a.Phase = PhaseSuccess
			a.Stage = StageConfirmed
		case entities.OutcomeReverted:
			a.fail(ErrorKindExecutionRevert, MsgTransactionReverted)
		case entities.OutcomeRejected:
			a.fail(ErrorKindExecutionFailure, MsgExecutionFailed)
		default:
			return a, false
		}
		a.Receipt = e.Receipt

	case EventReceiptFailed:
		if !a.ownsHandle(e) {
			return a, false
		}
		a.fail(ErrorKindReceiptUnavailable, MsgReceiptUnavailable)

	default:
		return a, false
	}

	a.UpdatedAt = e.At
	return a, true
}

// ownsHandle reports whether a receipt side event targets this pending attempt's transaction.
func (a Attempt) ownsHandle(e Event) bool {
	return a.IsPending() && a.HasHandle() && a.TransactionHash == e.TransactionHash
}

func (a *Attempt) fail(kind ErrorKind, msg string) {
	a.Phase = PhaseError
	a.ErrorKind = kind
	a.ErrorMessage = msg
}

func submissionMessage(err error) string {
	if err == nil || err.Error() == "" {
		return MsgSubmissionFailed
	}
	return err.Error()
}
