package tracker

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type linkerFunc func(string) string

func (f linkerFunc) TransactionURL(hash string) string { return f(hash) }

func TestNewStepperView(t *testing.T) {
	start := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	linker := linkerFunc(func(hash string) string { return "https://sepolia.starkscan.co/tx/" + hash })

	type flags struct{ active, completed bool }
	testCases := []struct {
		name         string
		stage        Stage
		phase        Phase
		wantFlags    []flags
		wantProgress float64
	}{
		{
			name:         "submitted",
			stage:        StageSubmitted,
			phase:        PhasePending,
			wantFlags:    []flags{{true, false}, {false, false}, {false, false}, {false, false}},
			wantProgress: 25,
		},
		{
			name:         "accepted",
			stage:        StageAccepted,
			phase:        PhasePending,
			wantFlags:    []flags{{false, true}, {true, false}, {false, false}, {false, false}},
			wantProgress: 50,
		},
		{
			name:         "awaiting_confirmation",
			stage:        StageAwaitingConfirmation,
			phase:        PhasePending,
			wantFlags:    []flags{{false, true}, {false, true}, {true, false}, {false, false}},
			wantProgress: 75,
		},
		{
			name:         "confirmed",
			stage:        StageConfirmed,
			phase:        PhaseSuccess,
			wantFlags:    []flags{{false, true}, {false, true}, {false, true}, {true, true}},
			wantProgress: 100,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a := NewAttempt(uuid.New(), "create")
			a.Phase = tc.phase
			a.Stage = tc.stage
			a.StartedAt = start

			view := NewStepperView(a, start.Add(75*time.Second), nil)
			assert.Equal(t, tc.wantProgress, view.Progress)
			assert.Len(t, view.Steps, 4)
			for i, step := range view.Steps {
				assert.Equal(t, tc.wantFlags[i].active, step.Active, "step %d active", i)
				assert.Equal(t, tc.wantFlags[i].completed, step.Completed, "step %d completed", i)
			}
			assert.Equal(t, []string{"Submitted", "Accepted on L2", "Pending", "Confirmed"},
				[]string{view.Steps[0].Label, view.Steps[1].Label, view.Steps[2].Label, view.Steps[3].Label})
		})
	}

	t.Run("elapsed_runs_while_pending", func(t *testing.T) {
		a := NewAttempt(uuid.New(), "create")
		a.Phase = PhasePending
		a.StartedAt = start
		a.UpdatedAt = start.Add(time.Second)

		assert.Equal(t, "1:15", NewStepperView(a, start.Add(75*time.Second), nil).Elapsed)
	})

	t.Run("elapsed_freezes_when_terminal", func(t *testing.T) {
		a := NewAttempt(uuid.New(), "create")
		a.Phase = PhaseError
		a.ErrorMessage = MsgTransactionReverted
		a.TransactionHash = testHash
		a.StartedAt = start
		a.UpdatedAt = start.Add(9 * time.Second)

		view := NewStepperView(a, start.Add(time.Hour), linker)
		assert.Equal(t, "0:09", view.Elapsed)
		assert.Equal(t, "https://sepolia.starkscan.co/tx/"+testHash, view.ExplorerURL)
		assert.Equal(t, MsgTransactionReverted, view.ErrorMessage)
	})

	t.Run("idle_has_no_elapsed_or_link", func(t *testing.T) {
		view := NewStepperView(NewAttempt(uuid.New(), "create"), start, linker)
		assert.Empty(t, view.Elapsed)
		assert.Empty(t, view.ExplorerURL)
	})
}
