package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/starkescrow/starkescrow/internal/tracker"
)

var ErrUpdatesClosed = errors.New("attempt updates closed before the attempt finished")

// StepperPrinter renders attempt progress on a terminal.
type StepperPrinter struct {
	out    io.Writer
	linker tracker.TxLinker
	now    func() time.Time

	done    *color.Color
	active  *color.Color
	failed  *color.Color
	waiting *color.Color
}

func NewStepperPrinter(out io.Writer, linker tracker.TxLinker) *StepperPrinter {
	return &StepperPrinter{
		out:     out,
		linker:  linker,
		now:     time.Now,
		done:    color.New(color.FgGreen),
		active:  color.New(color.FgYellow, color.Bold),
		failed:  color.New(color.FgRed, color.Bold),
		waiting: color.New(color.Faint),
	}
}

func (p *StepperPrinter) Print(a tracker.Attempt) {
	view := tracker.NewStepperView(a, p.now(), p.linker)

	for _, step := range view.Steps {
		switch {
		case step.Completed:
			p.done.Fprintf(p.out, "  ✔ %s\n", step.Label)
		case step.Active && view.Phase == tracker.PhaseError:
			p.failed.Fprintf(p.out, "  ✘ %s\n", step.Label)
		case step.Active && view.Phase == tracker.PhasePending:
			p.active.Fprintf(p.out, "  ● %s\n", step.Label)
		default:
			p.waiting.Fprintf(p.out, "  ○ %s\n", step.Label)
		}
	}

	status := fmt.Sprintf("  %s %.0f%%", view.Phase, view.Progress)
	if view.Elapsed != "" {
		status += fmt.Sprintf(" (%s)", view.Elapsed)
	}
	fmt.Fprintln(p.out, status)

	if view.TransactionHash != "" {
		fmt.Fprintf(p.out, "  Transaction: %s\n", view.TransactionHash)
	}
	if view.ExplorerURL != "" {
		fmt.Fprintf(p.out, "  Explorer: %s\n", view.ExplorerURL)
	}
	if view.ErrorMessage != "" {
		p.failed.Fprintf(p.out, "  Error: %s\n", view.ErrorMessage)
	}
}

// Follow prints every change of phase or stage of attempt id until it is terminal. Snapshots of other
// attempts of the same action are skipped.
func (p *StepperPrinter) Follow(ctx context.Context, updates <-chan tracker.Attempt, id uuid.UUID) (tracker.Attempt, error) {
	var last tracker.Attempt
	printed := false
	for {
		select {
		case <-ctx.Done():
			return last, fmt.Errorf("following attempt %s: %w", id, ctx.Err())
		case a, ok := <-updates:
			if !ok {
				return last, ErrUpdatesClosed
			}
			if a.ID != id {
				continue
			}
			if !printed || a.Phase != last.Phase || a.Stage != last.Stage {
				p.Print(a)
				printed = true
			}
			last = a
			if a.IsTerminal() {
				return a, nil
			}
		}
	}
}

func (p *StepperPrinter) Success(format string, args ...any) {
	p.done.Fprintf(p.out, format+"\n", args...)
}

func (p *StepperPrinter) Failure(format string, args ...any) {
	p.failed.Fprintf(p.out, format+"\n", args...)
}
