package units

import (
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToBaseUnit(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{"1000", "1000"},
		{"0x3e8", "1000"},
		{"1e18", "1000000000000000000"},
		{"12.9", "12"},
		{int64(7), "7"},
		{3.99, "3"},
		{big.NewInt(42), "42"},
		{"", "0"},
		{"abc", "0"},
		{"0x", "0"},
		{"NaN", "0"},
		{math.NaN(), "0"},
		{"-5", "0"},
		{"0x-1", "0"},
		{"0.5", "0"},
		{struct{}{}, "0"},
		{nil, "0"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ToBaseUnit(c.in).String(), "input %v", c.in)
	}
}

func TestToBaseUnitHugeExponents(t *testing.T) {
	uint256Max := "115792089237316195423570985008687907853269984665640564039457584007913129639935"
	assert.Equal(t, uint256Max, ToBaseUnit(uint256Max).String())
	for _, in := range []string{"1e999999999", "1e-999999999", "1e78", "9.9e-2147483648"} {
		done := make(chan string, 1)
		go func() { done <- ToBaseUnit(in).String() }()
		select {
		case got := <-done:
			assert.Equal(t, "0", got, "input %s", in)
		case <-time.After(5 * time.Second):
			t.Fatalf("ToBaseUnit(%q) did not return", in)
		}
	}
	assert.Equal(t, "0", ParseUnits("1e999999999", 18).String())
	assert.Equal(t, "0", ParseUnits("1e-999999999", 18).String())
	assert.Equal(t, "0", ParseUnits("1", 1000).String())
}

func TestFormatFromBaseUnit(t *testing.T) {
	assert.Equal(t, "1.000000", FormatFromBaseUnit("1000000000000000000", 18))
	assert.Equal(t, "0.500000", FormatFromBaseUnit("500000000000000000", 18))
	assert.Equal(t, "0.000001", FormatFromBaseUnit("1234567890123", 18))
	assert.Equal(t, "123456789012345678901.234567", FormatFromBaseUnit("123456789012345678901234567890123456789", 18))
	assert.Equal(t, "12.340000", FormatFromBaseUnit("12340000", 6))
	assert.Equal(t, "0.000000", FormatFromBaseUnit("", 18))
	assert.Equal(t, "0.000000", FormatFromBaseUnit("abc", 18))
	assert.Equal(t, "0.000000", FormatFromBaseUnit("0x10", 18))
	assert.Equal(t, "0.000000", FormatBig(nil, 18))
}

func TestParseDecimalToBaseUnit(t *testing.T) {
	assert.Equal(t, "1000000000000000000", ParseDecimalToBaseUnit("1.0"))
	assert.Equal(t, "1500000000000000000", ParseDecimalToBaseUnit("1.5"))
	assert.Equal(t, "123456000000000000", ParseDecimalToBaseUnit("0.123456789"))
	assert.Equal(t, "500000000000000000", ParseDecimalToBaseUnit(".5"))
	for _, bad := range []string{"", "abc", "0x", "NaN", "-1", "1.2.3", "."} {
		assert.Equal(t, "0", ParseDecimalToBaseUnit(bad), "input %q", bad)
	}
}

func TestFormatRoundTrip(t *testing.T) {
	for _, x := range []string{"0.000000", "1.000000", "42.123456", "98765432109876543210.000001"} {
		assert.Equal(t, x, FormatFromBaseUnit(ParseDecimalToBaseUnit(x), 18))
	}
}

func TestParseUnits(t *testing.T) {
	assert.Equal(t, "20000000000", ParseUnits("20", 9).String())
	assert.Equal(t, "1500000000", ParseUnits("1.5", 9).String())
	assert.Equal(t, "1", ParseUnits("1.9", 0).String())
	assert.Equal(t, "0", ParseUnits("-3", 18).String())
	assert.Equal(t, "0", ParseUnits("x", 18).String())
	assert.Equal(t, "20.00", FormatGwei(big.NewInt(20_000_000_000)))
}

func TestAddressValidation(t *testing.T) {
	const checksummed = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	require.True(t, IsValidAddress(checksummed))
	assert.True(t, IsValidAddress("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"))
	assert.True(t, IsValidAddress("0x5AAEB6053F3E94C9B9A09F33669435E7EF1BEAED"))
	assert.False(t, IsValidAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAeD"))
	assert.False(t, IsValidAddress("5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"))
	assert.False(t, IsValidAddress("0x1234"))
	assert.False(t, IsValidAddress(""))

	assert.Equal(t, checksummed, NormalizeAddress("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"))
	assert.Equal(t, "not-an-address", NormalizeAddress("not-an-address"))
}
