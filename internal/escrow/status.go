package escrow

import (
	"fmt"
	"strings"
)

// Status mirrors the on-chain EscrowStatus enum; the numeric value is the Cairo variant index.
type Status uint8

const (
	StatusEmpty Status = iota
	StatusFunded
	StatusCompleted
	StatusRefunded
	StatusDisputed
	StatusResolved
)

var statusLabels = [...]string{
	StatusEmpty:     "Empty",
	StatusFunded:    "Funded",
	StatusCompleted: "Completed",
	StatusRefunded:  "Refunded",
	StatusDisputed:  "Disputed",
	StatusResolved:  "Resolved",
}

func (s Status) IsValid() bool {
	return int(s) < len(statusLabels)
}

func (s Status) String() string {
	if !s.IsValid() {
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
	return statusLabels[s]
}

// IsClosed reports whether funds have left the escrow.
func (s Status) IsClosed() bool {
	return s == StatusCompleted || s == StatusRefunded || s == StatusResolved
}

func (s Status) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("invalid escrow status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func ParseStatus(label string) (Status, error) {
	for i, l := range statusLabels {
		if strings.EqualFold(l, label) {
			return Status(i), nil
		}
	}
	return StatusEmpty, fmt.Errorf("unknown escrow status %q", label)
}
