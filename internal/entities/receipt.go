package entities

type ExecutionStatus string

const (
	ExecutionSucceeded ExecutionStatus = "SUCCEEDED"
	ExecutionReverted  ExecutionStatus = "REVERTED"
)

type FinalityStatus string

const (
	FinalityReceived     FinalityStatus = "RECEIVED"
	FinalityRejected     FinalityStatus = "REJECTED"
	FinalityPreConfirmed FinalityStatus = "PRE_CONFIRMED"
	FinalityAcceptedOnL2 FinalityStatus = "ACCEPTED_ON_L2"
	FinalityAcceptedOnL1 FinalityStatus = "ACCEPTED_ON_L1"
)

// ReceiptOutcome is the coarse classification of a receipt used by the attempt tracker.
type ReceiptOutcome string

const (
	// OutcomeUnknown means the receipt does not carry an execution result yet.
	OutcomeUnknown   ReceiptOutcome = "UNKNOWN"
	OutcomeSucceeded ReceiptOutcome = "SUCCEEDED"
	OutcomeReverted  ReceiptOutcome = "REVERTED"
	OutcomeRejected  ReceiptOutcome = "REJECTED"
)

type ActualFee struct {
	Amount string `json:"amount"`
	Unit   string `json:"unit"`
}

type DataAvailability struct {
	L1Gas     uint64 `json:"l1_gas"`
	L1DataGas uint64 `json:"l1_data_gas"`
}

type ExecutionResources struct {
	Steps                         uint64            `json:"steps,omitempty"`
	MemoryHoles                   uint64            `json:"memory_holes,omitempty"`
	RangeCheckBuiltinApplications uint64            `json:"range_check_builtin_applications,omitempty"`
	PedersenBuiltinApplications   uint64            `json:"pedersen_builtin_applications,omitempty"`
	PoseidonBuiltinApplications   uint64            `json:"poseidon_builtin_applications,omitempty"`
	ECOPBuiltinApplications       uint64            `json:"ec_op_builtin_applications,omitempty"`
	ECDSABuiltinApplications      uint64            `json:"ecdsa_builtin_applications,omitempty"`
	BitwiseBuiltinApplications    uint64            `json:"bitwise_builtin_applications,omitempty"`
	KeccakBuiltinApplications     uint64            `json:"keccak_builtin_applications,omitempty"`
	SegmentArenaBuiltin           uint64            `json:"segment_arena_builtin,omitempty"`
	DataAvailability              *DataAvailability `json:"data_availability,omitempty"`
	L1Gas                         uint64            `json:"l1_gas,omitempty"`
	L1DataGas                     uint64            `json:"l1_data_gas,omitempty"`
	L2Gas                         uint64            `json:"l2_gas,omitempty"`
}

type TransactionReceipt struct {
	Type               string             `json:"type"`
	TransactionHash    string             `json:"transaction_hash"`
	ActualFee          ActualFee          `json:"actual_fee"`
	ExecutionStatus    ExecutionStatus    `json:"execution_status"`
	FinalityStatus     FinalityStatus     `json:"finality_status"`
	BlockHash          string             `json:"block_hash,omitempty"`
	BlockNumber        uint64             `json:"block_number,omitempty"`
	RevertReason       string             `json:"revert_reason,omitempty"`
	ExecutionResources ExecutionResources `json:"execution_resources"`
}

// Outcome classifies the receipt. A rejected transaction never executed; a receipt
// without an execution status is still in flight.
func (r TransactionReceipt) Outcome() ReceiptOutcome {
	if r.FinalityStatus == FinalityRejected {
		return OutcomeRejected
	}
	switch r.ExecutionStatus {
	case ExecutionSucceeded:
		return OutcomeSucceeded
	case ExecutionReverted:
		return OutcomeReverted
	default:
		return OutcomeUnknown
	}
}
