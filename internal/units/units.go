// Package units converts between human decimal amounts and integer base units.
// Nothing in here returns an error: malformed input maps to a zero value.
package units

import (
	"math"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// NativeDecimals is the precision of the native currency.
const NativeDecimals = 18

// displayDecimals is how many fraction digits FormatFromBaseUnit keeps.
const displayDecimals = 6

const zeroDisplay = "0.000000"

// maxIntDigits bounds the integer part of parsed amounts; a uint256 has 78.
const maxIntDigits = 78

// ToBaseUnit turns a base-unit quantity of any loose shape into a big integer.
// Hex strings, decimal strings, scientific notation and Go numbers are accepted.
// Fractions are floored. Failures and negative values give 0.
func ToBaseUnit(amount any) *big.Int {
	var d decimal.Decimal
	switch v := amount.(type) {
	case nil:
		return new(big.Int)
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return new(big.Int)
		}
		if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
			n, ok := new(big.Int).SetString(s[2:], 16)
			if !ok || n.Sign() < 0 {
				return new(big.Int)
			}
			return n
		}
		var err error
		if d, err = decimal.NewFromString(s); err != nil {
			return new(big.Int)
		}
	case *big.Int:
		if v == nil || v.Sign() < 0 {
			return new(big.Int)
		}
		return new(big.Int).Set(v)
	case decimal.Decimal:
		d = v
	case int:
		d = decimal.NewFromInt(int64(v))
	case int64:
		d = decimal.NewFromInt(v)
	case uint64:
		d = decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return new(big.Int)
		}
		d = decimal.NewFromFloat(v)
	default:
		return new(big.Int)
	}
	return floorInt(d)
}

// floorInt floors a non-negative decimal, giving 0 for negatives and for
// values whose integer part would not fit in maxIntDigits digits.
func floorInt(d decimal.Decimal) *big.Int {
	if d.Sign() <= 0 {
		return new(big.Int)
	}
	digits := int64(len(new(big.Int).Abs(d.Coefficient()).String()))
	magnitude := digits + int64(d.Exponent())
	if magnitude <= 0 || magnitude > maxIntDigits {
		return new(big.Int)
	}
	return d.Floor().BigInt()
}

// FormatFromBaseUnit renders a base-unit integer string with six truncated
// fraction digits. The split is done on the digit string so precision is
// never lost to floats.
func FormatFromBaseUnit(wei string, decimals int) string {
	s := strings.TrimSpace(wei)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	if s == "" || decimals < 0 || !allDigits(s) {
		return zeroDisplay
	}
	s = strings.TrimLeft(s, "0")
	if len(s) <= decimals {
		s = strings.Repeat("0", decimals-len(s)+1) + s
	}
	intPart, frac := s[:len(s)-decimals], s[len(s)-decimals:]
	if len(frac) > displayDecimals {
		frac = frac[:displayDecimals]
	} else {
		frac += strings.Repeat("0", displayDecimals-len(frac))
	}
	out := intPart + "." + frac
	if neg && strings.Trim(out, "0.") != "" {
		out = "-" + out
	}
	return out
}

// FormatBig is FormatFromBaseUnit for a big integer; nil renders as zero.
func FormatBig(v *big.Int, decimals int) string {
	if v == nil {
		return zeroDisplay
	}
	return FormatFromBaseUnit(v.String(), decimals)
}

// ParseDecimalToBaseUnit scales a native decimal string to base units.
// Only the first six fraction digits count; they are scaled by 10^12 as an
// integer. Malformed or negative input gives "0".
func ParseDecimalToBaseUnit(amount string) string {
	s := strings.TrimSpace(amount)
	if s == "" || strings.HasPrefix(s, "-") {
		return "0"
	}
	s = strings.TrimPrefix(s, "+")
	intPart, frac, _ := strings.Cut(s, ".")
	if intPart == "" && frac == "" {
		return "0"
	}
	if intPart == "" {
		intPart = "0"
	}
	if !allDigits(intPart) || (frac != "" && !allDigits(frac)) {
		return "0"
	}
	if len(frac) > displayDecimals {
		frac = frac[:displayDecimals]
	}
	frac += strings.Repeat("0", displayDecimals-len(frac))

	whole, _ := new(big.Int).SetString(intPart, 10)
	whole.Mul(whole, pow10(NativeDecimals))
	fr, _ := new(big.Int).SetString(frac, 10)
	fr.Mul(fr, pow10(NativeDecimals-displayDecimals))
	return whole.Add(whole, fr).String()
}

// ParseUnits scales a decimal string by 10^decimals, truncating extra
// precision. Used for gwei gas prices and native values. Failure gives 0.
func ParseUnits(amount string, decimals int) *big.Int {
	s := strings.TrimSpace(amount)
	if s == "" || decimals < 0 {
		return new(big.Int)
	}
	d, err := decimal.NewFromString(s)
	if err != nil || decimals > maxIntDigits {
		return new(big.Int)
	}
	return floorInt(d.Shift(int32(decimals)))
}

// FormatGwei renders wei as gwei with two decimals.
func FormatGwei(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return new(big.Rat).SetFrac(v, pow10(9)).FloatString(2)
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
