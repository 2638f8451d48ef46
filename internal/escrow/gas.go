package escrow

import (
	"github.com/holiman/uint256"

	"github.com/starkescrow/starkescrow/internal/entities"
	"github.com/starkescrow/starkescrow/internal/utils"
)

// GasBreakdown summarizes what a confirmed transaction cost.
type GasBreakdown struct {
	Fee          string            `json:"fee"`
	FeeFormatted string            `json:"fee_formatted"`
	Unit         string            `json:"unit"`
	Steps        uint64            `json:"steps"`
	MemoryHoles  uint64            `json:"memory_holes"`
	Builtins     map[string]uint64 `json:"builtins,omitempty"`
	L1Gas        uint64            `json:"l1_gas"`
	L1DataGas    uint64            `json:"l1_data_gas"`
	L2Gas        uint64            `json:"l2_gas,omitempty"`
}

func NewGasBreakdown(receipt entities.TransactionReceipt) GasBreakdown {
	res := receipt.ExecutionResources
	fee, err := utils.ParseFelt(receipt.ActualFee.Amount)
	if err != nil {
		fee = new(uint256.Int)
	}

	builtins := map[string]uint64{}
	for name, count := range map[string]uint64{
		"range_check":   res.RangeCheckBuiltinApplications,
		"pedersen":      res.PedersenBuiltinApplications,
		"poseidon":      res.PoseidonBuiltinApplications,
		"ec_op":         res.ECOPBuiltinApplications,
		"ecdsa":         res.ECDSABuiltinApplications,
		"bitwise":       res.BitwiseBuiltinApplications,
		"keccak":        res.KeccakBuiltinApplications,
		"segment_arena": res.SegmentArenaBuiltin,
	} {
		if count > 0 {
			builtins[name] = count
		}
	}

	l1Gas, l1DataGas := res.L1Gas, res.L1DataGas
	if res.DataAvailability != nil {
		if l1Gas == 0 {
			l1Gas = res.DataAvailability.L1Gas
		}
		if l1DataGas == 0 {
			l1DataGas = res.DataAvailability.L1DataGas
		}
	}

	return GasBreakdown{
		Fee:          fee.Dec(),
		FeeFormatted: FormatFee(fee, receipt.ActualFee.Unit),
		Unit:         receipt.ActualFee.Unit,
		Steps:        res.Steps,
		MemoryHoles:  res.MemoryHoles,
		Builtins:     builtins,
		L1Gas:        l1Gas,
		L1DataGas:    l1DataGas,
		L2Gas:        res.L2Gas,
	}
}

// FormatFee renders a fee in whole tokens. Fees paid in FRI are STRK, WEI are ETH.
func FormatFee(fee *uint256.Int, unit string) string {
	symbol := TokenSymbol
	if unit == "WEI" {
		symbol = "ETH"
	}
	return utils.FormatUnits(fee, TokenDecimals) + " " + symbol
}

// EstimatedFee formats an advisory fee estimate, preferring the suggested max fee when present.
func EstimatedFee(estimate entities.FeeEstimate) string {
	raw := estimate.OverallFee
	if estimate.SuggestedMaxFee != "" {
		raw = estimate.SuggestedMaxFee
	}
	fee, err := utils.ParseFelt(raw)
	if err != nil {
		return raw
	}
	return FormatFee(fee, estimate.Unit)
}
