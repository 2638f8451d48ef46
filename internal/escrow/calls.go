package escrow

import (
	"fmt"
	"strconv"

	"github.com/holiman/uint256"

	"github.com/starkescrow/starkescrow/internal/entities"
	"github.com/starkescrow/starkescrow/internal/utils"
)

// CallBuilder turns escrow operations into contract calls.
type CallBuilder struct {
	EscrowContract string
	TokenContract  string
}

func NewCallBuilder(escrowContract, tokenContract string) (CallBuilder, error) {
	escrowAddr, err := utils.NormalizeAddress(escrowContract)
	if err != nil {
		return CallBuilder{}, fmt.Errorf("escrow contract address: %w", err)
	}
	tokenAddr, err := utils.NormalizeAddress(tokenContract)
	if err != nil {
		return CallBuilder{}, fmt.Errorf("token contract address: %w", err)
	}
	return CallBuilder{EscrowContract: escrowAddr, TokenContract: tokenAddr}, nil
}

func (b CallBuilder) Approve(amount *uint256.Int) entities.Call {
	low, high := utils.SplitU256(amount)
	return entities.Call{
		ContractAddress: b.TokenContract,
		Entrypoint:      "approve",
		Calldata:        []string{b.EscrowContract, low, high},
	}
}

// CreateEscrow returns the approve + create_escrow sequence that funds a new escrow. The input is
// expected to be validated already.
func (b CallBuilder) CreateEscrow(input CreateEscrowInput) ([]entities.Call, error) {
	amount, err := utils.ParsePositiveUnits(input.Amount, TokenDecimals)
	if err != nil {
		return nil, fmt.Errorf("parsing amount: %w", err)
	}
	description, err := utils.EncodeShortString(input.Description)
	if err != nil {
		return nil, fmt.Errorf("encoding description: %w", err)
	}
	seller, err := utils.NormalizeAddress(input.Seller)
	if err != nil {
		return nil, fmt.Errorf("seller address: %w", err)
	}
	arbiter, err := utils.NormalizeAddress(input.Arbiter)
	if err != nil {
		return nil, fmt.Errorf("arbiter address: %w", err)
	}

	low, high := utils.SplitU256(amount)
	return []entities.Call{
		b.Approve(amount),
		{
			ContractAddress: b.EscrowContract,
			Entrypoint:      "create_escrow",
			Calldata:        []string{seller, arbiter, low, high, description},
		},
	}, nil
}

// Action returns the single call performing action on escrow id.
func (b CallBuilder) Action(id uint64, action ActionType) ([]entities.Call, error) {
	idFelt := strconv.FormatUint(id, 10)
	call := entities.Call{ContractAddress: b.EscrowContract}

	switch action {
	case ActionRelease, ActionRefund, ActionDispute:
		call.Entrypoint = string(action)
		call.Calldata = []string{idFelt}
	case ActionResolveSeller:
		call.Entrypoint = "resolve"
		call.Calldata = []string{idFelt, "1"}
	case ActionResolveBuyer:
		call.Entrypoint = "resolve"
		call.Calldata = []string{idFelt, "0"}
	default:
		return nil, fmt.Errorf("%w %q", ErrInvalidAction, action)
	}
	return []entities.Call{call}, nil
}

func (b CallBuilder) GetEscrow(id uint64) entities.Call {
	return entities.Call{ContractAddress: b.EscrowContract, Entrypoint: "get_escrow", Calldata: []string{strconv.FormatUint(id, 10)}}
}

func (b CallBuilder) GetEscrowCount() entities.Call {
	return entities.Call{ContractAddress: b.EscrowContract, Entrypoint: "get_escrow_count"}
}

func (b CallBuilder) GetEscrowsByRole(role Role, address string) entities.Call {
	return entities.Call{
		ContractAddress: b.EscrowContract,
		Entrypoint:      fmt.Sprintf("get_%s_escrows", role),
		Calldata:        []string{address},
	}
}

func (b CallBuilder) BalanceOf(address string) entities.Call {
	return entities.Call{ContractAddress: b.TokenContract, Entrypoint: "balanceOf", Calldata: []string{address}}
}
