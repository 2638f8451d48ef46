package escrow

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/holiman/uint256"

	"github.com/starkescrow/starkescrow/internal/utils"
)

// getEscrowFelts is the length of a Some(EscrowData) payload.
const getEscrowFelts = 10

var ErrEscrowNotFound = errors.New("escrow not found")

type Escrow struct {
	ID          uint64       `json:"id"`
	Buyer       string       `json:"buyer"`
	Seller      string       `json:"seller"`
	Arbiter     string       `json:"arbiter"`
	Amount      *uint256.Int `json:"amount"`
	Status      Status       `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	Description string       `json:"description"`
}

// FormattedAmount renders the amount in whole tokens, e.g. "1.5 STRK".
func (e Escrow) FormattedAmount() string {
	return fmt.Sprintf("%s %s", utils.FormatUnits(e.Amount, TokenDecimals), TokenSymbol)
}

func (e Escrow) MarshalJSON() ([]byte, error) {
	type escrowAlias Escrow
	amount := "0"
	if e.Amount != nil {
		amount = e.Amount.Dec()
	}
	//nolint:wrapcheck
	return json.Marshal(struct {
		escrowAlias
		Amount          string `json:"amount"`
		AmountFormatted string `json:"amount_formatted"`
	}{
		escrowAlias:     escrowAlias(e),
		Amount:          amount,
		AmountFormatted: e.FormattedAmount(),
	})
}

// DecodeEscrow parses the get_escrow payload. The first felt is the Option tag: 0 is Some, 1 is None.
// A None, or a payload shorter than a full record, yields ErrEscrowNotFound.
func DecodeEscrow(felts []string) (Escrow, error) {
	if len(felts) == 0 {
		return Escrow{}, ErrEscrowNotFound
	}
	tag, err := utils.FeltToUint64(felts[0])
	if err != nil {
		return Escrow{}, fmt.Errorf("decoding option tag: %w", err)
	}
	if tag == 1 || len(felts) < getEscrowFelts {
		return Escrow{}, ErrEscrowNotFound
	}

	id, err := utils.FeltToUint64(felts[1])
	if err != nil {
		return Escrow{}, fmt.Errorf("decoding escrow id: %w", err)
	}

	var parties [3]string
	for i := range parties {
		parties[i], err = utils.NormalizeAddress(felts[2+i])
		if err != nil {
			return Escrow{}, fmt.Errorf("decoding escrow %d address %d: %w", id, i, err)
		}
	}

	amount, err := utils.JoinU256(felts[5], felts[6])
	if err != nil {
		return Escrow{}, fmt.Errorf("decoding escrow %d amount: %w", id, err)
	}

	rawStatus, err := utils.FeltToUint64(felts[7])
	if err != nil {
		return Escrow{}, fmt.Errorf("decoding escrow %d status: %w", id, err)
	}
	if rawStatus > uint64(StatusResolved) {
		return Escrow{}, fmt.Errorf("decoding escrow %d: unknown status %d", id, rawStatus)
	}

	createdAt, err := utils.FeltToUint64(felts[8])
	if err != nil {
		return Escrow{}, fmt.Errorf("decoding escrow %d creation time: %w", id, err)
	}

	description, err := utils.DecodeShortString(felts[9])
	if err != nil {
		description = felts[9]
	}

	return Escrow{
		ID:          id,
		Buyer:       parties[0],
		Seller:      parties[1],
		Arbiter:     parties[2],
		Amount:      amount,
		Status:      Status(rawStatus),
		CreatedAt:   time.Unix(int64(createdAt), 0).UTC(),
		Description: description,
	}, nil
}

// DecodeArray strips the length prefix of a serialized Cairo Array or Span.
func DecodeArray(felts []string) ([]string, error) {
	if len(felts) == 0 {
		return nil, errors.New("decoding array: empty payload")
	}
	n, err := utils.FeltToUint64(felts[0])
	if err != nil {
		return nil, fmt.Errorf("decoding array length: %w", err)
	}
	if uint64(len(felts)-1) < n {
		return nil, fmt.Errorf("decoding array: declared %d elements, got %d", n, len(felts)-1)
	}
	return felts[1 : 1+n], nil
}

// DecodeIDs decodes a Span<u64> of escrow ids.
func DecodeIDs(felts []string) ([]uint64, error) {
	elems, err := DecodeArray(felts)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(elems))
	for _, e := range elems {
		id, err := utils.FeltToUint64(e)
		if err != nil {
			return nil, fmt.Errorf("decoding escrow id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// CreateEscrowInput is what a buyer fills in to open an escrow. Amount is in whole tokens.
type CreateEscrowInput struct {
	Seller      string `json:"seller" validate:"required,felt_address"`
	Arbiter     string `json:"arbiter" validate:"required,felt_address"`
	Amount      string `json:"amount" validate:"required,token_amount"`
	Description string `json:"description" validate:"required,min=3,max=31,short_string"`
}
