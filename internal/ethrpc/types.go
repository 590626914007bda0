package ethrpc

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// CallArgs is the transaction object accepted by eth_call, eth_estimateGas,
// eth_createAccessList and debug_traceCall.
type CallArgs struct {
	From                 common.Address    `json:"from"`
	To                   *common.Address   `json:"to,omitempty"`
	Gas                  *hexutil.Uint64   `json:"gas,omitempty"`
	GasPrice             *hexutil.Big      `json:"gasPrice,omitempty"`
	MaxFeePerGas         *hexutil.Big      `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas *hexutil.Big      `json:"maxPriorityFeePerGas,omitempty"`
	Value                *hexutil.Big      `json:"value,omitempty"`
	Data                 hexutil.Bytes     `json:"data,omitempty"`
	AccessList           *types.AccessList `json:"accessList,omitempty"`
}

// OverrideAccount patches one account for the duration of a single call.
type OverrideAccount struct {
	Nonce     *hexutil.Uint64             `json:"nonce,omitempty"`
	Code      *hexutil.Bytes              `json:"code,omitempty"`
	Balance   *hexutil.Big                `json:"balance,omitempty"`
	State     map[common.Hash]common.Hash `json:"state,omitempty"`
	StateDiff map[common.Hash]common.Hash `json:"stateDiff,omitempty"`
}

// StateOverride is the optional trailing parameter of the call family.
type StateOverride map[common.Address]OverrideAccount

// Copy returns a shallow copy; the per-account values are copied by value.
func (so StateOverride) Copy() StateOverride {
	out := make(StateOverride, len(so))
	for k, v := range so {
		out[k] = v
	}
	return out
}

// BlockInfo is the subset of eth_getBlockByNumber the simulator reads.
type BlockInfo struct {
	Number    hexutil.Uint64 `json:"number"`
	Hash      common.Hash    `json:"hash"`
	Timestamp hexutil.Uint64 `json:"timestamp"`
	GasLimit  hexutil.Uint64 `json:"gasLimit"`
	BaseFee   *hexutil.Big   `json:"baseFeePerGas,omitempty"`
}

// AccessListResult is the eth_createAccessList response.
type AccessListResult struct {
	AccessList types.AccessList `json:"accessList"`
	GasUsed    hexutil.Uint64   `json:"gasUsed"`
	Error      string           `json:"error,omitempty"`
}

// TraceConfig selects a tracer for debug_traceCall.
type TraceConfig struct {
	Tracer         string        `json:"tracer,omitempty"`
	TracerConfig   any           `json:"tracerConfig,omitempty"`
	Timeout        string        `json:"timeout,omitempty"`
	StateOverrides StateOverride `json:"stateOverrides,omitempty"`
}

// CallFrame is one node of the callTracer tree.
type CallFrame struct {
	Type         string          `json:"type"`
	From         common.Address  `json:"from"`
	To           *common.Address `json:"to,omitempty"`
	Value        *hexutil.Big    `json:"value,omitempty"`
	Gas          hexutil.Uint64  `json:"gas"`
	GasUsed      hexutil.Uint64  `json:"gasUsed"`
	Input        hexutil.Bytes   `json:"input"`
	Output       hexutil.Bytes   `json:"output,omitempty"`
	Error        string          `json:"error,omitempty"`
	RevertReason string          `json:"revertReason,omitempty"`
	Calls        []CallFrame     `json:"calls,omitempty"`
	Logs         []CallLog       `json:"logs,omitempty"`
}

// CallLog is a log captured by callTracer with withLog enabled.
type CallLog struct {
	Address  common.Address `json:"address"`
	Topics   []common.Hash  `json:"topics"`
	Data     hexutil.Bytes  `json:"data"`
	Position hexutil.Uint   `json:"position"`
}

// PrestateAccount is one side of a prestateTracer diff.
type PrestateAccount struct {
	Balance *hexutil.Big                `json:"balance,omitempty"`
	Nonce   uint64                      `json:"nonce,omitempty"`
	Code    hexutil.Bytes               `json:"code,omitempty"`
	Storage map[common.Hash]common.Hash `json:"storage,omitempty"`
}

// PrestateDiff is the prestateTracer output in diffMode.
type PrestateDiff struct {
	Pre  map[common.Address]PrestateAccount `json:"pre"`
	Post map[common.Address]PrestateAccount `json:"post"`
}
