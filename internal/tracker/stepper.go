package tracker

import (
	"time"

	"github.com/starkescrow/starkescrow/internal/utils"
)

// TxLinker builds block explorer links for transactions.
type TxLinker interface {
	TransactionURL(transactionHash string) string
}

type Step struct {
	Stage     Stage  `json:"stage"`
	Label     string `json:"label"`
	Active    bool   `json:"active"`
	Completed bool   `json:"completed"`
}

// StepperView is the display model of an attempt: the four progress steps plus the status line.
type StepperView struct {
	Action          string    `json:"action"`
	Phase           Phase     `json:"phase"`
	Steps           []Step    `json:"steps"`
	Progress        float64   `json:"progress"`
	Elapsed         string    `json:"elapsed,omitempty"`
	TransactionHash string    `json:"transaction_hash,omitempty"`
	ExplorerURL     string    `json:"explorer_url,omitempty"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	Attempt         Attempt   `json:"attempt"`
	RenderedAt      time.Time `json:"rendered_at"`
}

var stepLabels = []struct {
	stage Stage
	label string
}{
	{StageSubmitted, "Submitted"},
	{StageAccepted, "Accepted on L2"},
	{StageAwaitingConfirmation, "Pending"},
	{StageConfirmed, "Confirmed"},
}

// NewStepperView derives the stepper from an attempt. The elapsed time keeps running while the attempt is
// pending and freezes once it is terminal. linker may be nil.
func NewStepperView(a Attempt, now time.Time, linker TxLinker) StepperView {
	current := a.Stage.Index()
	steps := make([]Step, 0, len(stepLabels))
	for i, s := range stepLabels {
		steps = append(steps, Step{
			Stage:     s.stage,
			Label:     s.label,
			Active:    i == current,
			Completed: i < current || (s.stage == StageConfirmed && a.Stage == StageConfirmed),
		})
	}

	view := StepperView{
		Action:          a.Action,
		Phase:           a.Phase,
		Steps:           steps,
		Progress:        float64(current+1) / float64(len(stepLabels)) * 100,
		TransactionHash: a.TransactionHash,
		ErrorMessage:    a.ErrorMessage,
		Attempt:         a,
		RenderedAt:      now,
	}

	if !a.StartedAt.IsZero() {
		end := now
		if a.IsTerminal() && !a.UpdatedAt.IsZero() {
			end = a.UpdatedAt
		}
		view.Elapsed = utils.FormatElapsed(end.Sub(a.StartedAt))
	}
	if linker != nil && a.HasHandle() {
		view.ExplorerURL = linker.TransactionURL(a.TransactionHash)
	}
	return view
}
