// Package rpctest runs a scripted JSON-RPC node in process for tests.
package rpctest

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/require"

	"github.com/ligun0805/txsim/internal/ethrpc"
)

// Request is one recorded call against the node.
type Request struct {
	Method    string
	Args      ethrpc.CallArgs
	Block     string
	Overrides ethrpc.StateOverride
}

type (
	CallFunc     func(args ethrpc.CallArgs, block string, so ethrpc.StateOverride) (hexutil.Bytes, error)
	EstimateFunc func(args ethrpc.CallArgs, block string, so ethrpc.StateOverride) (uint64, error)
	TraceFunc    func(args ethrpc.CallArgs, block string, cfg *ethrpc.TraceConfig) (json.RawMessage, error)
)

// Node answers the eth_* methods the simulator uses. The hooks replace the
// default answers; a nil TraceFn leaves the debug namespace unregistered.
type Node struct {
	ChainID   uint64
	Head      uint64
	Timestamp uint64
	GasPrice  *big.Int
	Gas       uint64
	Balances  map[common.Address]*big.Int
	Nonces    map[common.Address]uint64

	CallFn     CallFunc
	EstimateFn EstimateFunc
	TraceFn    TraceFunc

	mu       sync.Mutex
	requests []Request
}

func NewNode() *Node {
	return &Node{
		ChainID:   999,
		Head:      0x1234,
		Timestamp: 1_700_000_000,
		GasPrice:  big.NewInt(1_000_000_000),
		Gas:       50_000,
		Balances:  map[common.Address]*big.Int{},
		Nonces:    map[common.Address]uint64{},
	}
}

// Dial starts an in-process server and returns a client bound to it.
func (n *Node) Dial(t testing.TB) *rpc.Client {
	t.Helper()
	srv := rpc.NewServer()
	require.NoError(t, srv.RegisterName("eth", &ethService{n}))
	if n.TraceFn != nil {
		require.NoError(t, srv.RegisterName("debug", &debugService{n}))
	}
	c := rpc.DialInProc(srv)
	t.Cleanup(func() {
		c.Close()
		srv.Stop()
	})
	return c
}

func (n *Node) record(r Request) {
	n.mu.Lock()
	n.requests = append(n.requests, r)
	n.mu.Unlock()
}

// Requests returns a copy of everything received so far.
func (n *Node) Requests() []Request {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Request(nil), n.requests...)
}

// Count returns how many calls of method were received.
func (n *Node) Count(method string) int {
	c := 0
	for _, r := range n.Requests() {
		if r.Method == method {
			c++
		}
	}
	return c
}

// SentTo returns how many call-family requests targeted addr.
func (n *Node) SentTo(addr common.Address) int {
	c := 0
	for _, r := range n.Requests() {
		if r.Args.To != nil && *r.Args.To == addr {
			c++
		}
	}
	return c
}

// Error is a JSON-RPC error with optional revert data.
type Error struct {
	Code int
	Msg  string
	Data string
}

func (e *Error) Error() string  { return e.Msg }
func (e *Error) ErrorCode() int { return e.Code }
func (e *Error) ErrorData() interface{} {
	if e.Data == "" {
		return nil
	}
	return e.Data
}

// Revert builds the error geth returns for a Error(string) revert.
func Revert(reason string) *Error {
	strType, _ := abi.NewType("string", "", nil)
	packed, _ := abi.Arguments{{Type: strType}}.Pack(reason)
	data := append(crypto.Keccak256([]byte("Error(string)"))[:4], packed...)
	return &Error{Code: 3, Msg: "execution reverted: " + reason, Data: hexutil.Encode(data)}
}

// RevertData builds a revert carrying arbitrary payload bytes.
func RevertData(payload []byte) *Error {
	return &Error{Code: 3, Msg: "execution reverted", Data: hexutil.Encode(payload)}
}

// InsufficientFunds mimics the node's balance check failure.
func InsufficientFunds(addr common.Address) *Error {
	return &Error{Code: -32000, Msg: fmt.Sprintf("insufficient funds for gas * price + value: address %s have 0 want 1", addr.Hex())}
}

// TransferLog returns a callTracer log for an ERC-20 Transfer.
func TransferLog(token, from, to common.Address, amount *big.Int) ethrpc.CallLog {
	return ethrpc.CallLog{
		Address: token,
		Topics: []common.Hash{
			crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)")),
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
		},
		Data: common.LeftPadBytes(amount.Bytes(), 32),
	}
}

func deref(s *string) string {
	if s == nil {
		return "latest"
	}
	return *s
}

func derefOverrides(so *ethrpc.StateOverride) ethrpc.StateOverride {
	if so == nil {
		return nil
	}
	return *so
}

type ethService struct{ n *Node }

func (s *ethService) ChainId() *hexutil.Big {
	return (*hexutil.Big)(new(big.Int).SetUint64(s.n.ChainID))
}

func (s *ethService) BlockNumber() hexutil.Uint64 {
	s.n.record(Request{Method: "eth_blockNumber"})
	return hexutil.Uint64(s.n.Head)
}

func (s *ethService) GasPrice() *hexutil.Big {
	return (*hexutil.Big)(s.n.GasPrice)
}

func (s *ethService) GetBalance(addr common.Address, block string) *hexutil.Big {
	s.n.record(Request{Method: "eth_getBalance", Block: block})
	if b, ok := s.n.Balances[addr]; ok {
		return (*hexutil.Big)(b)
	}
	return (*hexutil.Big)(new(big.Int))
}

func (s *ethService) GetTransactionCount(addr common.Address, block string) hexutil.Uint64 {
	s.n.record(Request{Method: "eth_getTransactionCount", Block: block})
	return hexutil.Uint64(s.n.Nonces[addr])
}

func (s *ethService) GetBlockByNumber(block string, full bool) (map[string]interface{}, error) {
	s.n.record(Request{Method: "eth_getBlockByNumber", Block: block})
	num := s.n.Head
	if block != "latest" && block != "pending" {
		v, err := hexutil.DecodeUint64(block)
		if err != nil {
			return nil, err
		}
		if v > s.n.Head {
			return nil, nil
		}
		num = v
	}
	return map[string]interface{}{
		"number":        hexutil.Uint64(num),
		"hash":          common.BigToHash(new(big.Int).SetUint64(num)),
		"timestamp":     hexutil.Uint64(s.n.Timestamp - (s.n.Head - num)),
		"gasLimit":      hexutil.Uint64(30_000_000),
		"baseFeePerGas": (*hexutil.Big)(big.NewInt(100_000_000)),
	}, nil
}

func (s *ethService) Call(ctx context.Context, args ethrpc.CallArgs, block *string, so *ethrpc.StateOverride) (hexutil.Bytes, error) {
	s.n.record(Request{Method: "eth_call", Args: args, Block: deref(block), Overrides: derefOverrides(so)})
	if s.n.CallFn != nil {
		return s.n.CallFn(args, deref(block), derefOverrides(so))
	}
	return hexutil.Bytes{}, nil
}

func (s *ethService) EstimateGas(ctx context.Context, args ethrpc.CallArgs, block *string, so *ethrpc.StateOverride) (hexutil.Uint64, error) {
	s.n.record(Request{Method: "eth_estimateGas", Args: args, Block: deref(block), Overrides: derefOverrides(so)})
	if s.n.EstimateFn != nil {
		g, err := s.n.EstimateFn(args, deref(block), derefOverrides(so))
		return hexutil.Uint64(g), err
	}
	return hexutil.Uint64(s.n.Gas), nil
}

func (s *ethService) CreateAccessList(ctx context.Context, args ethrpc.CallArgs, block *string, so *ethrpc.StateOverride) (*ethrpc.AccessListResult, error) {
	s.n.record(Request{Method: "eth_createAccessList", Args: args, Block: deref(block), Overrides: derefOverrides(so)})
	res := &ethrpc.AccessListResult{GasUsed: hexutil.Uint64(s.n.Gas)}
	if args.To != nil {
		res.AccessList = types.AccessList{{Address: *args.To, StorageKeys: []common.Hash{}}}
	}
	return res, nil
}

func (s *ethService) FeeHistory(count hexutil.Uint64, last string, percentiles []float64) map[string]interface{} {
	s.n.record(Request{Method: "eth_feeHistory", Block: last})
	rewards := make([][]*hexutil.Big, 0, count)
	fees := make([]*hexutil.Big, 0, count+1)
	ratios := make([]float64, 0, count)
	for i := uint64(0); i < uint64(count); i++ {
		row := make([]*hexutil.Big, len(percentiles))
		for j, p := range percentiles {
			row[j] = (*hexutil.Big)(big.NewInt(int64(p)*1_000_000 + int64(i)))
		}
		rewards = append(rewards, row)
		fees = append(fees, (*hexutil.Big)(big.NewInt(100_000_000)))
		ratios = append(ratios, 0.5)
	}
	fees = append(fees, (*hexutil.Big)(big.NewInt(110_000_000)))
	return map[string]interface{}{
		"oldestBlock":   (*hexutil.Big)(new(big.Int).SetUint64(s.n.Head - uint64(count) + 1)),
		"reward":        rewards,
		"baseFeePerGas": fees,
		"gasUsedRatio":  ratios,
	}
}

type debugService struct{ n *Node }

func (s *debugService) TraceCall(ctx context.Context, args ethrpc.CallArgs, block string, cfg *ethrpc.TraceConfig) (json.RawMessage, error) {
	var so ethrpc.StateOverride
	if cfg != nil {
		so = cfg.StateOverrides
	}
	s.n.record(Request{Method: "debug_traceCall", Args: args, Block: block, Overrides: so})
	return s.n.TraceFn(args, block, cfg)
}
