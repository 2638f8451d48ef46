package escrow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starkescrow/starkescrow/internal/entities"
)

func newTestCallBuilder(t *testing.T) CallBuilder {
	t.Helper()
	b, err := NewCallBuilder("0xE5C0", StrkTokenAddress)
	require.NoError(t, err)
	return b
}

func TestNewCallBuilder(t *testing.T) {
	b := newTestCallBuilder(t)
	assert.Equal(t, escrowContract, b.EscrowContract)
	assert.Equal(t, StrkTokenAddress, b.TokenContract)

	_, err := NewCallBuilder("escrow", StrkTokenAddress)
	assert.ErrorContains(t, err, "escrow contract address")
}

func TestCallBuilder_CreateEscrow(t *testing.T) {
	b := newTestCallBuilder(t)

	calls, err := b.CreateEscrow(CreateEscrowInput{Seller: seller, Arbiter: arbiter, Amount: "1.5", Description: "Logo design"})
	require.NoError(t, err)
	assert.Equal(t, []entities.Call{
		{
			ContractAddress: StrkTokenAddress,
			Entrypoint:      "approve",
			Calldata:        []string{escrowContract, "0x14d1120d7b160000", "0x0"},
		},
		{
			ContractAddress: escrowContract,
			Entrypoint:      "create_escrow",
			Calldata:        []string{seller, arbiter, "0x14d1120d7b160000", "0x0", "0x4c6f676f2064657369676e"},
		},
	}, calls)

	_, err = b.CreateEscrow(CreateEscrowInput{Seller: seller, Arbiter: arbiter, Amount: "0", Description: "Logo design"})
	assert.ErrorContains(t, err, "amount must be greater than 0")

	_, err = b.CreateEscrow(CreateEscrowInput{Seller: seller, Arbiter: arbiter, Amount: "1", Description: "this description does not fit in a felt"})
	assert.ErrorContains(t, err, "encoding description")
}

func TestCallBuilder_Action(t *testing.T) {
	b := newTestCallBuilder(t)

	testCases := []struct {
		action     ActionType
		entrypoint string
		calldata   []string
	}{
		{ActionRelease, "release", []string{"9"}},
		{ActionRefund, "refund", []string{"9"}},
		{ActionDispute, "dispute", []string{"9"}},
		{ActionResolveSeller, "resolve", []string{"9", "1"}},
		{ActionResolveBuyer, "resolve", []string{"9", "0"}},
	}

	for _, tc := range testCases {
		t.Run(string(tc.action), func(t *testing.T) {
			calls, err := b.Action(9, tc.action)
			require.NoError(t, err)
			require.Len(t, calls, 1)
			assert.Equal(t, escrowContract, calls[0].ContractAddress)
			assert.Equal(t, tc.entrypoint, calls[0].Entrypoint)
			assert.Equal(t, tc.calldata, calls[0].Calldata)
		})
	}

	_, err := b.Action(9, ActionCreate)
	assert.ErrorIs(t, err, ErrInvalidAction)
}

func TestCallBuilder_Reads(t *testing.T) {
	b := newTestCallBuilder(t)
	assert.Equal(t, entities.Call{ContractAddress: escrowContract, Entrypoint: "get_escrow", Calldata: []string{"12"}}, b.GetEscrow(12))
	assert.Equal(t, "get_escrow_count", b.GetEscrowCount().Entrypoint)
	assert.Equal(t, "get_arbiter_escrows", b.GetEscrowsByRole(RoleArbiter, arbiter).Entrypoint)
	assert.Equal(t, entities.Call{ContractAddress: StrkTokenAddress, Entrypoint: "balanceOf", Calldata: []string{buyer}}, b.BalanceOf(buyer))
}
