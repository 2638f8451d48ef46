package escrow

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvailableActions(t *testing.T) {
	base := Escrow{ID: 1, Buyer: buyer, Seller: seller, Arbiter: arbiter}

	testCases := []struct {
		name    string
		status  Status
		address string
		want    []ActionType
	}{
		{name: "buyer_funded", status: StatusFunded, address: buyer, want: []ActionType{ActionRelease, ActionDispute}},
		{name: "seller_funded", status: StatusFunded, address: seller, want: []ActionType{ActionRefund, ActionDispute}},
		{name: "arbiter_funded", status: StatusFunded, address: arbiter, want: []ActionType{}},
		{name: "arbiter_disputed", status: StatusDisputed, address: arbiter, want: []ActionType{ActionResolveSeller, ActionResolveBuyer}},
		{name: "buyer_disputed", status: StatusDisputed, address: buyer, want: []ActionType{}},
		{name: "buyer_completed", status: StatusCompleted, address: buyer, want: []ActionType{}},
		{name: "stranger", status: StatusFunded, address: stranger, want: []ActionType{}},
		{name: "no_address", status: StatusFunded, address: "", want: []ActionType{}},
		{name: "unpadded_mixed_case_buyer", status: StatusFunded, address: "0xB0B", want: []ActionType{ActionRelease, ActionDispute}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			e := base
			e.Status = tc.status
			assert.Equal(t, tc.want, AvailableActions(e, tc.address))
		})
	}
}

func TestAvailableActions_BuyerAndSeller(t *testing.T) {
	e := Escrow{ID: 1, Buyer: buyer, Seller: buyer, Arbiter: arbiter, Status: StatusFunded}
	assert.Equal(t, []ActionType{ActionRelease, ActionRefund, ActionDispute}, AvailableActions(e, buyer))
	assert.ElementsMatch(t, []Role{RoleBuyer, RoleSeller}, RolesOf(e, buyer).ToSlice())
}

func TestActionText(t *testing.T) {
	assert.Equal(t, "Release", ActionRelease.Label())
	assert.Equal(t, "Resolve Seller", ActionResolveSeller.Label())
	assert.Equal(t, "Are you sure you want to release funds?", ActionRelease.ConfirmPrompt())
	assert.Equal(t, "Failed to refund the buyer", ActionRefund.FailureMessage())
	assert.Equal(t, "Are you sure you want to create escrow?", ActionCreate.ConfirmPrompt())
	assert.False(t, ActionCreate.IsValid())
}

func TestActionKeys(t *testing.T) {
	key := ActionKey(42, ActionResolveBuyer)
	assert.Equal(t, "escrow:42:resolve-buyer", key)
	assert.Equal(t, "escrow:42:", ActionGroup(42))
	assert.True(t, strings.HasPrefix(key, ActionGroup(42)))
	assert.False(t, strings.HasPrefix(ActionKey(420, ActionRelease), ActionGroup(42)))

	id, action, err := ParseActionKey(key)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)
	assert.Equal(t, ActionResolveBuyer, action)

	_, action, err = ParseActionKey(CreateActionKey)
	require.NoError(t, err)
	assert.Equal(t, ActionCreate, action)

	for _, bad := range []string{"escrow:1", "order:1:release", "escrow:x:release", "escrow:1:burn"} {
		_, _, err := ParseActionKey(bad)
		assert.Error(t, err, bad)
	}

	parsed, err := ParseAction(" Dispute ")
	require.NoError(t, err)
	assert.Equal(t, ActionDispute, parsed)

	_, err = ParseAction("burn")
	assert.ErrorIs(t, err, ErrInvalidAction)
}
