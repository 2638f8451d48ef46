package httphandler

import (
	"time"

	"github.com/starkescrow/starkescrow/internal/escrow"
	"github.com/starkescrow/starkescrow/internal/tracker"
)

// AttemptView is the response body of every endpoint returning an attempt: the stepper plus, once the
// transaction is settled, what it cost.
type AttemptView struct {
	tracker.StepperView
	Gas *escrow.GasBreakdown `json:"gas,omitempty"`
}

func NewAttemptView(a tracker.Attempt, now time.Time, network escrow.Network) AttemptView {
	view := AttemptView{StepperView: tracker.NewStepperView(a, now, network)}
	if a.Receipt != nil {
		gas := escrow.NewGasBreakdown(*a.Receipt)
		view.Gas = &gas
	}
	return view
}

func newAttemptViews(attempts []tracker.Attempt, now time.Time, network escrow.Network) []AttemptView {
	views := make([]AttemptView, 0, len(attempts))
	for _, a := range attempts {
		views = append(views, NewAttemptView(a, now, network))
	}
	return views
}
