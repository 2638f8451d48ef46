package entities

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Starknet JSON-RPC error codes the service reacts to.
const (
	RPCErrContractNotFound  = 20
	RPCErrBlockNotFound     = 24
	RPCErrTxnHashNotFound   = 29
	RPCErrContractError     = 40
	RPCErrTransactionFailed = 41
)

var ErrTransactionNotFound = errors.New("transaction hash not found")

type BlockTag string

const (
	LatestBlock  BlockTag = "latest"
	PendingBlock BlockTag = "pending"
)

type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("rpc error %d: %s (%s)", e.Code, e.Message, string(e.Data))
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Unwrap maps well known RPC error codes onto sentinel errors.
func (e *RPCError) Unwrap() error {
	if e.Code == RPCErrTxnHashNotFound {
		return ErrTransactionNotFound
	}
	return nil
}

type RPCResponse struct {
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error,omitempty"`
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
}

type RPCFunctionCall struct {
	ContractAddress    string   `json:"contract_address"`
	EntryPointSelector string   `json:"entry_point_selector"`
	Calldata           []string `json:"calldata"`
}

type RPCCallParams struct {
	Request RPCFunctionCall `json:"request"`
	BlockID BlockTag        `json:"block_id"`
}

type RPCTransactionHashParams struct {
	TransactionHash string `json:"transaction_hash"`
}

type RPCTransactionStatus struct {
	FinalityStatus  FinalityStatus  `json:"finality_status"`
	ExecutionStatus ExecutionStatus `json:"execution_status,omitempty"`
	FailureReason   string          `json:"failure_reason,omitempty"`
}
