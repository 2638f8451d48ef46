package entities

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionReceipt_Outcome(t *testing.T) {
	testCases := []struct {
		name    string
		receipt TransactionReceipt
		want    ReceiptOutcome
	}{
		{
			name:    "succeeded on L2",
			receipt: TransactionReceipt{ExecutionStatus: ExecutionSucceeded, FinalityStatus: FinalityAcceptedOnL2},
			want:    OutcomeSucceeded,
		},
		{
			name:    "reverted",
			receipt: TransactionReceipt{ExecutionStatus: ExecutionReverted, FinalityStatus: FinalityAcceptedOnL2},
			want:    OutcomeReverted,
		},
		{
			name:    "rejected wins over execution status",
			receipt: TransactionReceipt{ExecutionStatus: ExecutionSucceeded, FinalityStatus: FinalityRejected},
			want:    OutcomeRejected,
		},
		{
			name:    "received only",
			receipt: TransactionReceipt{FinalityStatus: FinalityReceived},
			want:    OutcomeUnknown,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.receipt.Outcome())
		})
	}
}

func TestTransactionReceipt_UnmarshalRPCPayload(t *testing.T) {
	payload := `{
		"type": "INVOKE",
		"transaction_hash": "0x1234",
		"actual_fee": {"amount": "0x2386f26fc10000", "unit": "FRI"},
		"execution_status": "SUCCEEDED",
		"finality_status": "ACCEPTED_ON_L2",
		"block_number": 42,
		"execution_resources": {
			"steps": 1500,
			"range_check_builtin_applications": 30,
			"data_availability": {"l1_gas": 0, "l1_data_gas": 128}
		}
	}`

	var receipt TransactionReceipt
	require.NoError(t, json.Unmarshal([]byte(payload), &receipt))

	assert.Equal(t, "0x1234", receipt.TransactionHash)
	assert.Equal(t, "FRI", receipt.ActualFee.Unit)
	assert.Equal(t, uint64(1500), receipt.ExecutionResources.Steps)
	require.NotNil(t, receipt.ExecutionResources.DataAvailability)
	assert.Equal(t, uint64(128), receipt.ExecutionResources.DataAvailability.L1DataGas)
	assert.Equal(t, OutcomeSucceeded, receipt.Outcome())
}

func TestRPCError_Unwrap(t *testing.T) {
	notFound := &RPCError{Code: RPCErrTxnHashNotFound, Message: "Transaction hash not found"}
	assert.True(t, errors.Is(notFound, ErrTransactionNotFound))
	assert.Equal(t, "rpc error 29: Transaction hash not found", notFound.Error())

	other := &RPCError{Code: RPCErrContractError, Message: "Contract error", Data: json.RawMessage(`"boom"`)}
	assert.False(t, errors.Is(other, ErrTransactionNotFound))
	assert.Equal(t, `rpc error 40: Contract error ("boom")`, other.Error())
}
