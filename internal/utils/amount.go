package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/holiman/uint256"
)

var (
	ErrInvalidAmount = errors.New("invalid amount")

	decimalAmountRegex = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)
	mask128            = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 128), uint256.NewInt(1))
)

// ParseUnits converts a decimal string such as "1.5" into base units with the given number of decimals,
// without going through floating point.
func ParseUnits(amount string, decimals int) (*uint256.Int, error) {
	amount = strings.TrimSpace(amount)
	if !decimalAmountRegex.MatchString(amount) {
		return nil, fmt.Errorf("%w %q: not a decimal number", ErrInvalidAmount, amount)
	}

	whole, frac, _ := strings.Cut(amount, ".")
	if len(frac) > decimals {
		return nil, fmt.Errorf("%w %q: more than %d decimal places", ErrInvalidAmount, amount, decimals)
	}

	digits := strings.TrimLeft(whole+frac+strings.Repeat("0", decimals-len(frac)), "0")
	if digits == "" {
		return new(uint256.Int), nil
	}
	v, err := uint256.FromDecimal(digits)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidAmount, amount, err)
	}
	return v, nil
}

// ParsePositiveUnits is ParseUnits rejecting zero.
func ParsePositiveUnits(amount string, decimals int) (*uint256.Int, error) {
	v, err := ParseUnits(amount, decimals)
	if err != nil {
		return nil, err
	}
	if v.IsZero() {
		return nil, fmt.Errorf("%w: amount must be greater than 0", ErrInvalidAmount)
	}
	return v, nil
}

// FormatUnits renders base units as a decimal string with trailing fractional zeros removed.
func FormatUnits(v *uint256.Int, decimals int) string {
	if v == nil {
		return "0"
	}
	divisor := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(decimals)))
	whole, frac := new(uint256.Int).DivMod(v, divisor, new(uint256.Int))
	if frac.IsZero() {
		return whole.Dec()
	}
	fracStr := frac.Dec()
	fracStr = strings.Repeat("0", decimals-len(fracStr)) + fracStr
	return whole.Dec() + "." + strings.TrimRight(fracStr, "0")
}

// SplitU256 returns the low and high 128-bit limbs of a Cairo u256 as hex felts.
func SplitU256(v *uint256.Int) (low, high string) {
	l := new(uint256.Int).And(v, mask128)
	h := new(uint256.Int).Rsh(v, 128)
	return l.Hex(), h.Hex()
}

// JoinU256 rebuilds a u256 from its low and high limbs.
func JoinU256(low, high string) (*uint256.Int, error) {
	l, err := ParseFelt(low)
	if err != nil {
		return nil, fmt.Errorf("parsing u256 low limb: %w", err)
	}
	h, err := ParseFelt(high)
	if err != nil {
		return nil, fmt.Errorf("parsing u256 high limb: %w", err)
	}
	if l.Gt(mask128) || h.Gt(mask128) {
		return nil, fmt.Errorf("%w: u256 limb exceeds 128 bits", ErrInvalidFelt)
	}
	return new(uint256.Int).Or(new(uint256.Int).Lsh(h, 128), l), nil
}
