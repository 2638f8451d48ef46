package utils

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"golang.org/x/term"
)

// ErrNotInteractive is returned when a confirmation is needed but stdin is not a terminal.
var ErrNotInteractive = errors.New("stdin is not a terminal, pass --yes to confirm non-interactively")

type Confirmer interface {
	Confirm(label string) (bool, error)
}

// AutoConfirmer accepts every prompt. It backs the --yes flag.
type AutoConfirmer struct{}

var _ Confirmer = AutoConfirmer{}

func (AutoConfirmer) Confirm(string) (bool, error) {
	return true, nil
}

type promptConfirmer struct {
	stdin  *os.File
	stdout *os.File
}

var _ Confirmer = (*promptConfirmer)(nil)

// Confirm asks a yes/no question. Answering no, or aborting with Ctrl+C, returns false without an error.
func (pc *promptConfirmer) Confirm(label string) (bool, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return false, fmt.Errorf("confirmation label cannot be empty")
	}
	if !term.IsTerminal(int(pc.stdin.Fd())) {
		return false, ErrNotInteractive
	}

	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
		Stdin:     pc.stdin,
		Stdout:    pc.stdout,
	}
	if _, err := prompt.Run(); err != nil {
		if errors.Is(err, promptui.ErrAbort) || errors.Is(err, promptui.ErrInterrupt) {
			return false, nil
		}
		return false, fmt.Errorf("running confirmation prompt: %w", err)
	}
	return true, nil
}

func NewPromptConfirmer(stdin *os.File, stdout *os.File) (*promptConfirmer, error) {
	if stdin == nil {
		return nil, fmt.Errorf("stdin cannot be nil")
	}

	if stdout == nil {
		return nil, fmt.Errorf("stdout cannot be nil")
	}

	return &promptConfirmer{
		stdin:  stdin,
		stdout: stdout,
	}, nil
}
