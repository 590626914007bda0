package units

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// IsValidAddress reports whether s is 0x plus 40 hex digits. All-lower and
// all-upper spellings are accepted; mixed case must match EIP-55.
func IsValidAddress(s string) bool {
	if len(s) != 42 || !strings.HasPrefix(s, "0x") || !common.IsHexAddress(s) {
		return false
	}
	body := s[2:]
	if body == strings.ToLower(body) || body == strings.ToUpper(body) {
		return true
	}
	return common.HexToAddress(s).Hex() == s
}

// NormalizeAddress returns the checksummed form, or s untouched when invalid.
func NormalizeAddress(s string) string {
	if !IsValidAddress(s) {
		return s
	}
	return common.HexToAddress(s).Hex()
}
