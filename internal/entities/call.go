package entities

// Call is a single contract invocation. A call sequence is submitted as one
// multicall transaction by the wallet session.
type Call struct {
	ContractAddress string   `json:"contract_address" validate:"required"`
	Entrypoint      string   `json:"entrypoint" validate:"required"`
	Calldata        []string `json:"calldata"`
}

type FeeEstimate struct {
	OverallFee      string `json:"overall_fee"`
	Unit            string `json:"unit"`
	L1GasConsumed   string `json:"l1_gas_consumed,omitempty"`
	L1GasPrice      string `json:"l1_gas_price,omitempty"`
	L1DataGasUsed   string `json:"l1_data_gas_consumed,omitempty"`
	L1DataGasPrice  string `json:"l1_data_gas_price,omitempty"`
	L2GasConsumed   string `json:"l2_gas_consumed,omitempty"`
	L2GasPrice      string `json:"l2_gas_price,omitempty"`
	SuggestedMaxFee string `json:"suggested_max_fee,omitempty"`
}
