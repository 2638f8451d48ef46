package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// MaxShortStringLength is the number of ASCII characters that fit in a single felt252.
const MaxShortStringLength = 31

var (
	// fieldPrime is the Starknet field modulus 2^251 + 17*2^192 + 1.
	fieldPrime = uint256.MustFromHex("0x800000000000011000000000000000000000000000000000000000000000001")
	mask250    = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 250), uint256.NewInt(1))

	feltAddressRegex = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

	ErrInvalidFelt = errors.New("invalid felt")
)

// ParseFelt parses a hex (0x-prefixed) or decimal field element.
func ParseFelt(s string) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty value", ErrInvalidFelt)
	}

	var (
		v   *uint256.Int
		err error
	)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		digits := strings.TrimLeft(s[2:], "0")
		if digits == "" {
			return new(uint256.Int), nil
		}
		v, err = uint256.FromHex("0x" + digits)
	} else {
		v, err = uint256.FromDecimal(s)
	}
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidFelt, s, err)
	}
	if !v.Lt(fieldPrime) {
		return nil, fmt.Errorf("%w %q: exceeds field prime", ErrInvalidFelt, s)
	}
	return v, nil
}

// FeltToUint64 parses a felt that is expected to fit in 64 bits (ids, timestamps, enum variants).
func FeltToUint64(s string) (uint64, error) {
	v, err := ParseFelt(s)
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("%w %q: does not fit in 64 bits", ErrInvalidFelt, s)
	}
	return v.Uint64(), nil
}

// IsFeltAddress reports whether s is a fully padded contract address (0x followed by 64 hex digits).
func IsFeltAddress(s string) bool {
	return feltAddressRegex.MatchString(s)
}

// NormalizeAddress returns the lower case, zero padded form of an address so that addresses can be
// compared as strings.
func NormalizeAddress(s string) (string, error) {
	v, err := ParseFelt(s)
	if err != nil {
		return "", err
	}
	return PadFelt(v), nil
}

// PadFelt renders a felt as 0x followed by 64 lower case hex digits.
func PadFelt(v *uint256.Int) string {
	return fmt.Sprintf("0x%064s", strings.TrimPrefix(v.Hex(), "0x"))
}

// SameAddress compares two addresses ignoring case and zero padding. Invalid addresses never match.
func SameAddress(a, b string) bool {
	na, err := NormalizeAddress(a)
	if err != nil {
		return false
	}
	nb, err := NormalizeAddress(b)
	if err != nil {
		return false
	}
	return na == nb
}

// SelectorFromName computes the entry point selector of a Cairo function: keccak256 truncated to 250 bits.
func SelectorFromName(name string) string {
	v := new(uint256.Int).SetBytes(crypto.Keccak256([]byte(name)))
	return v.And(v, mask250).Hex()
}

// EncodeShortString packs an ASCII string of at most 31 characters into a felt.
func EncodeShortString(s string) (string, error) {
	if len(s) > MaxShortStringLength {
		return "", fmt.Errorf("short string %q is longer than %d characters", s, MaxShortStringLength)
	}
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7f {
			return "", fmt.Errorf("short string %q is not ASCII", s)
		}
	}
	return new(uint256.Int).SetBytes([]byte(s)).Hex(), nil
}

// DecodeShortString unpacks a felt into the ASCII string it encodes.
func DecodeShortString(felt string) (string, error) {
	v, err := ParseFelt(felt)
	if err != nil {
		return "", err
	}
	b := v.Bytes()
	for _, c := range b {
		if c > 0x7f {
			return "", fmt.Errorf("felt %s does not encode an ASCII short string", felt)
		}
	}
	return string(b), nil
}
