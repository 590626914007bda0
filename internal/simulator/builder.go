package simulator

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"

	"github.com/ligun0805/txsim/internal/ethrpc"
	"github.com/ligun0805/txsim/internal/units"
)

const (
	// DefaultGasLimit is the cost of a plain value transfer.
	DefaultGasLimit uint64 = 21000
	// fallbackGasPriceGwei is used when no pricing field is given.
	fallbackGasPriceGwei = "20"
	gweiDecimals         = 9
)

// Build normalizes a request. It never fails: bad fields fall back to zero
// or their defaults and are reported on the debug log.
func Build(req SimulationRequest, logger log.Logger) *BuiltTransaction {
	if logger == nil {
		logger = log.Root()
	}
	tx := &BuiltTransaction{
		From:       parseAddress(req.From, "from", logger),
		Data:       parseData(req.Data, logger),
		Value:      new(big.Int),
		GasLimit:   DefaultGasLimit,
		AccessList: req.AccessList,
	}
	if len(req.StateOverrides) > 0 {
		tx.StateOverrides = req.StateOverrides.Copy()
	}
	if to := strings.TrimSpace(req.To); to != "" {
		a := parseAddress(to, "to", logger)
		if a != (common.Address{}) || common.IsHexAddress(to) {
			tx.To = &a
		}
	}

	if v := strings.TrimSpace(string(req.Value)); v != "" && v != "0" && v != "0.0" {
		tx.Value = units.ParseUnits(v, units.NativeDecimals)
	}

	maxFee := strings.TrimSpace(string(req.MaxFeePerGas))
	maxTip := strings.TrimSpace(string(req.MaxPriorityFeePerGas))
	switch gp := strings.TrimSpace(string(req.GasPrice)); {
	case maxFee != "" && maxTip != "":
		tx.MaxFeePerGas = units.ParseUnits(maxFee, gweiDecimals)
		tx.MaxPriorityFeePerGas = units.ParseUnits(maxTip, gweiDecimals)
	case gp != "":
		tx.GasPrice = units.ParseUnits(gp, gweiDecimals)
	default:
		tx.GasPrice = units.ParseUnits(fallbackGasPriceGwei, gweiDecimals)
	}

	if gl := strings.TrimSpace(string(req.GasLimit)); gl != "" {
		n := units.ToBaseUnit(gl)
		if n.IsUint64() && n.Uint64() > 0 {
			tx.GasLimit, tx.explicitGas = n.Uint64(), true
		} else {
			logger.Debug("Unparsable gas limit, degrading to zero", "gasLimit", gl)
			tx.GasLimit = 0
		}
	}

	logger.Debug("Built transaction",
		"from", tx.From, "to", tx.To, "value", tx.Value, "data", len(tx.Data),
		"gas", tx.GasLimit, "dynamicFee", tx.IsDynamicFee(), "deploy", tx.IsDeployment())
	return tx
}

func parseAddress(s, field string, logger log.Logger) common.Address {
	s = strings.TrimSpace(s)
	if s == "" {
		return common.Address{}
	}
	if !common.IsHexAddress(s) {
		logger.Debug("Invalid address, using zero address", "field", field, "value", s)
		return common.Address{}
	}
	if !units.IsValidAddress(s) {
		logger.Debug("Address checksum mismatch", "field", field, "value", s, "want", units.NormalizeAddress(strings.ToLower(s)))
	}
	return common.HexToAddress(s)
}

func parseData(s string, logger log.Logger) []byte {
	s = strings.TrimSpace(s)
	if s == "" || s == "0x" {
		return []byte{}
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		logger.Debug("Invalid calldata, using empty data", "err", err)
		return []byte{}
	}
	return b
}

// mergeOverrides lays the user's per-account patches over base. Fields the
// user set win; base only fills the gaps.
func mergeOverrides(base, user ethrpc.StateOverride) ethrpc.StateOverride {
	out := base.Copy()
	for addr, u := range user {
		b, ok := out[addr]
		if !ok {
			out[addr] = u
			continue
		}
		if u.Balance != nil {
			b.Balance = u.Balance
		}
		if u.Nonce != nil {
			b.Nonce = u.Nonce
		}
		if u.Code != nil {
			b.Code = u.Code
		}
		if u.State != nil {
			b.State = u.State
		}
		if u.StateDiff != nil {
			b.StateDiff = u.StateDiff
		}
		out[addr] = b
	}
	return out
}
