package escrow

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	set "github.com/deckarep/golang-set/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/starkescrow/starkescrow/internal/utils"
)

// CreateActionKey identifies the escrow creation attempt of a session.
const CreateActionKey = "create"

var (
	ErrInvalidAction      = errors.New("invalid escrow action")
	ErrActionNotAvailable = errors.New("action not available for this escrow")
	ErrNotParticipant     = errors.New("not a participant in this escrow")
)

type Role string

const (
	RoleBuyer   Role = "buyer"
	RoleSeller  Role = "seller"
	RoleArbiter Role = "arbiter"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleBuyer, RoleSeller, RoleArbiter:
		return true
	default:
		return false
	}
}

type ActionType string

const (
	ActionCreate        ActionType = "create"
	ActionRelease       ActionType = "release"
	ActionRefund        ActionType = "refund"
	ActionDispute       ActionType = "dispute"
	ActionResolveSeller ActionType = "resolve-seller"
	ActionResolveBuyer  ActionType = "resolve-buyer"
)

// escrowActions is the display order of actions on an existing escrow.
var escrowActions = []ActionType{ActionRelease, ActionRefund, ActionDispute, ActionResolveSeller, ActionResolveBuyer}

var actionMessages = map[ActionType]string{
	ActionCreate:        "create escrow",
	ActionRelease:       "release funds",
	ActionRefund:        "refund the buyer",
	ActionDispute:       "dispute this escrow",
	ActionResolveSeller: "resolve in favor of the seller",
	ActionResolveBuyer:  "resolve in favor of the buyer",
}

var titleCaser = cases.Title(language.English)

// IsValid reports whether a is an action on an existing escrow.
func (a ActionType) IsValid() bool {
	for _, action := range escrowActions {
		if a == action {
			return true
		}
	}
	return false
}

func (a ActionType) Label() string {
	return titleCaser.String(strings.ReplaceAll(string(a), "-", " "))
}

func (a ActionType) Message() string {
	if msg, ok := actionMessages[a]; ok {
		return msg
	}
	return string(a)
}

func (a ActionType) ConfirmPrompt() string {
	return fmt.Sprintf("Are you sure you want to %s?", a.Message())
}

// FailureMessage is shown when a submission fails without a message of its own.
func (a ActionType) FailureMessage() string {
	return fmt.Sprintf("Failed to %s", a.Message())
}

func ParseAction(s string) (ActionType, error) {
	a := ActionType(strings.ToLower(strings.TrimSpace(s)))
	if !a.IsValid() {
		return "", fmt.Errorf("%w %q", ErrInvalidAction, s)
	}
	return a, nil
}

// RolesOf returns the roles address holds in e. Addresses are compared in normalized form.
func RolesOf(e Escrow, address string) set.Set[Role] {
	roles := set.NewSet[Role]()
	if address == "" {
		return roles
	}
	if utils.SameAddress(e.Buyer, address) {
		roles.Add(RoleBuyer)
	}
	if utils.SameAddress(e.Seller, address) {
		roles.Add(RoleSeller)
	}
	if utils.SameAddress(e.Arbiter, address) {
		roles.Add(RoleArbiter)
	}
	return roles
}

// AvailableActions lists what address may do on e right now, in display order.
func AvailableActions(e Escrow, address string) []ActionType {
	roles := RolesOf(e, address)
	allowed := set.NewSet[ActionType]()

	if e.Status == StatusFunded {
		if roles.Contains(RoleBuyer) {
			allowed.Append(ActionRelease, ActionDispute)
		}
		if roles.Contains(RoleSeller) {
			allowed.Append(ActionRefund, ActionDispute)
		}
	}
	if e.Status == StatusDisputed && roles.Contains(RoleArbiter) {
		allowed.Append(ActionResolveSeller, ActionResolveBuyer)
	}

	actions := make([]ActionType, 0, allowed.Cardinality())
	for _, a := range escrowActions {
		if allowed.Contains(a) {
			actions = append(actions, a)
		}
	}
	return actions
}

// ActionGroup is the prefix shared by the attempt slots of every action on an escrow. Only one of them may
// be pending at a time.
func ActionGroup(id uint64) string {
	return fmt.Sprintf("escrow:%d:", id)
}

// ActionKey names the attempt slot of an action on an escrow, e.g. escrow:7:release.
func ActionKey(id uint64, action ActionType) string {
	return ActionGroup(id) + string(action)
}

func ParseActionKey(key string) (uint64, ActionType, error) {
	if key == CreateActionKey {
		return 0, ActionCreate, nil
	}
	parts := strings.Split(key, ":")
	if len(parts) != 3 || parts[0] != "escrow" {
		return 0, "", fmt.Errorf("malformed action key %q", key)
	}
	id, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("malformed escrow id in action key %q: %w", key, err)
	}
	action, err := ParseAction(parts[2])
	if err != nil {
		return 0, "", err
	}
	return id, action, nil
}
