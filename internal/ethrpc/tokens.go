package ethrpc

import (
	"context"
	"math/big"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// TokenMeta is what an ERC-20 contract says about itself. Empty fields mean
// the call failed or the method is absent.
type TokenMeta struct {
	Address  common.Address `json:"address"`
	Name     string         `json:"name,omitempty"`
	Symbol   string         `json:"symbol,omitempty"`
	Decimals int            `json:"decimals"`
}

func sel(sig string) []byte {
	return crypto.Keccak256([]byte(sig))[:4]
}

// TokenMetadata reads name(), symbol() and decimals(). Missing methods are
// tolerated; decimals defaults to 18.
func (c *Client) TokenMetadata(ctx context.Context, token common.Address) TokenMeta {
	meta := TokenMeta{Address: token, Decimals: 18}
	read := func(sig string) []byte {
		out, err := c.Call(ctx, CallArgs{To: &token, Data: sel(sig)}, "latest", nil)
		if err != nil {
			c.log.Debug("Token read failed", "token", token, "method", sig, "err", err)
			return nil
		}
		return out
	}
	if res := read("decimals()"); len(res) >= 32 {
		if d := new(big.Int).SetBytes(res[len(res)-32:]); d.IsInt64() && d.Int64() <= 255 {
			meta.Decimals = int(d.Int64())
		}
	}
	meta.Symbol = decodeStringOrBytes32(read("symbol()"))
	meta.Name = decodeStringOrBytes32(read("name()"))
	return meta
}

// decodeStringOrBytes32 handles both the ABI dynamic string return and the
// older bytes32 style.
func decodeStringOrBytes32(res []byte) string {
	if len(res) >= 64 {
		off := new(big.Int).SetBytes(res[:32])
		if off.IsUint64() && off.Uint64()+32 <= uint64(len(res)) {
			o := off.Uint64()
			n := new(big.Int).SetBytes(res[o : o+32])
			if n.IsUint64() && o+32+n.Uint64() <= uint64(len(res)) {
				s := string(res[o+32 : o+32+n.Uint64()])
				if utf8.ValidString(s) {
					return s
				}
			}
		}
	}
	if len(res) == 32 {
		s := strings.TrimRight(string(res), "\x00")
		if utf8.ValidString(s) {
			return s
		}
	}
	return ""
}
