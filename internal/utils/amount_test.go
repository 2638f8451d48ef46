package utils

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUnits(t *testing.T) {
	testCases := []struct {
		name    string
		in      string
		want    string
		wantErr string
	}{
		{name: "whole", in: "2", want: "2000000000000000000"},
		{name: "fraction", in: "1.5", want: "1500000000000000000"},
		{name: "smallest_unit", in: "0.000000000000000001", want: "1"},
		{name: "zero", in: "0.0", want: "0"},
		{name: "padded", in: " 007.25 ", want: "7250000000000000000"},
		{name: "too_many_decimals", in: "0.0000000000000000001", wantErr: "more than 18 decimal places"},
		{name: "negative", in: "-1", wantErr: "not a decimal number"},
		{name: "scientific", in: "1e18", wantErr: "not a decimal number"},
		{name: "empty", in: "", wantErr: "not a decimal number"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := ParseUnits(tc.in, 18)
			if tc.wantErr != "" {
				assert.ErrorIs(t, err, ErrInvalidAmount)
				assert.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, v.Dec())
		})
	}
}

func TestParsePositiveUnits(t *testing.T) {
	_, err := ParsePositiveUnits("0", 18)
	assert.ErrorContains(t, err, "amount must be greater than 0")

	v, err := ParsePositiveUnits("10", 18)
	require.NoError(t, err)
	assert.Equal(t, "10000000000000000000", v.Dec())
}

func TestFormatUnits(t *testing.T) {
	assert.Equal(t, "0", FormatUnits(nil, 18))
	assert.Equal(t, "0", FormatUnits(uint256.NewInt(0), 18))
	assert.Equal(t, "1.5", FormatUnits(uint256.MustFromDecimal("1500000000000000000"), 18))
	assert.Equal(t, "0.000000000000000001", FormatUnits(uint256.NewInt(1), 18))
	assert.Equal(t, "42", FormatUnits(uint256.MustFromDecimal("42000000000000000000"), 18))
	assert.Equal(t, "0.01", FormatUnits(uint256.MustFromHex("0x2386f26fc10000"), 18))
}

func TestU256Limbs(t *testing.T) {
	v := uint256.MustFromDecimal("1500000000000000000")
	low, high := SplitU256(v)
	assert.Equal(t, "0x14d1120d7b160000", low)
	assert.Equal(t, "0x0", high)

	joined, err := JoinU256(low, high)
	require.NoError(t, err)
	assert.True(t, joined.Eq(v))

	big := new(uint256.Int).Lsh(uint256.NewInt(3), 128)
	big.Add(big, uint256.NewInt(5))
	low, high = SplitU256(big)
	assert.Equal(t, "0x5", low)
	assert.Equal(t, "0x3", high)

	_, err = JoinU256("0x100000000000000000000000000000000", "0x0")
	assert.ErrorContains(t, err, "exceeds 128 bits")
}
