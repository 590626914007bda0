package simulator

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"

	"github.com/ligun0805/txsim/internal/ethrpc"
)

// Backend is the JSON-RPC surface the simulator needs. *ethrpc.Client
// implements it.
type Backend interface {
	Call(ctx context.Context, args ethrpc.CallArgs, block string, so ethrpc.StateOverride) (hexutil.Bytes, error)
	EstimateGas(ctx context.Context, args ethrpc.CallArgs, block string, so ethrpc.StateOverride) (uint64, error)
	CreateAccessList(ctx context.Context, args ethrpc.CallArgs, block string, so ethrpc.StateOverride) (*ethrpc.AccessListResult, error)
	TraceCall(ctx context.Context, args ethrpc.CallArgs, block string, cfg *ethrpc.TraceConfig, result any) error
	BlockByTag(ctx context.Context, tag string) (*ethrpc.BlockInfo, error)
	TokenMetadata(ctx context.Context, token common.Address) ethrpc.TokenMeta

	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	GasPrice(ctx context.Context) (*big.Int, error)
	Balance(ctx context.Context, addr common.Address) (*big.Int, error)
	Nonce(ctx context.Context, addr common.Address) (uint64, error)
	FeeHistoryStats(ctx context.Context, blocks uint64, percentiles []int) (map[int]ethrpc.RewardStats, *big.Int, error)
}

// executor runs one built transaction against the node.
type executor struct {
	backend Backend
	cfg     Config
	log     log.Logger
}

// execute simulates tx at block. In live mode a zero sender becomes the whale
// and the sender is funded through a balance override. It returns the
// transaction as actually sent together with the raw outcome.
func (e *executor) execute(ctx context.Context, tx *BuiltTransaction, block string, live bool) (*BuiltTransaction, *RawResult) {
	overrides := tx.StateOverrides
	if live {
		tx = e.liveSender(tx)
		overrides = e.fundedOverrides(tx)
	}

	args := tx.callArgs()
	estArgs := args
	estArgs.Gas = nil

	var (
		gas     uint64
		ret     hexutil.Bytes
		estErr  error
		callErr error
		blk     *ethrpc.BlockInfo
	)
	var g errgroup.Group
	g.Go(func() error {
		gas, estErr = e.backend.EstimateGas(ctx, estArgs, block, overrides)
		return estErr
	})
	g.Go(func() error {
		ret, callErr = e.backend.Call(ctx, args, block, overrides)
		return callErr
	})
	g.Go(func() error {
		b, err := e.backend.BlockByTag(ctx, block)
		if err != nil {
			e.log.Debug("Block lookup failed", "block", block, "err", err)
			return nil
		}
		blk = b
		return nil
	})

	raw := &RawResult{Timestamp: time.Now().Unix()}
	if err := g.Wait(); err != nil {
		raw.Err = combineErrors(estErr, callErr)
		e.log.Debug("Simulation failed", "from", tx.From, "kind", raw.Err.Kind, "err", raw.Err.Message)
	} else {
		raw.GasUsed = gas
		raw.ReturnData = ret
	}
	if blk != nil {
		raw.BlockNumber = uint64(blk.Number)
		raw.Timestamp = int64(blk.Timestamp)
	}

	if e.cfg.Trace {
		e.trace(ctx, raw, args, block, overrides)
	}
	if raw.Success() && e.cfg.AccessList {
		if al, err := e.backend.CreateAccessList(ctx, args, block, overrides); err != nil {
			e.log.Debug("Access list unavailable", "err", err)
		} else {
			raw.AccessList = al.AccessList
		}
	}
	if raw.Success() && e.cfg.ResolveTokens {
		raw.Tokens = e.resolveTokens(ctx, raw.Logs)
	}
	return tx, raw
}

// liveSender replaces a zero sender with the whale.
func (e *executor) liveSender(tx *BuiltTransaction) *BuiltTransaction {
	if tx.From != (common.Address{}) {
		return tx
	}
	e.log.Debug("Zero sender, substituting whale", "whale", e.cfg.Whale)
	return tx.withFrom(e.cfg.Whale)
}

// fundedOverrides gives the sender the fixed auto balance underneath the
// caller's own overrides.
func (e *executor) fundedOverrides(tx *BuiltTransaction) ethrpc.StateOverride {
	return mergeOverrides(ethrpc.StateOverride{
		tx.From: {Balance: (*hexutil.Big)(new(big.Int).Set(e.cfg.AutoBalance))},
	}, tx.StateOverrides)
}

// trace asks the node for a call tree and a state diff. Both are optional:
// any failure leaves the trace empty.
func (e *executor) trace(ctx context.Context, raw *RawResult, args ethrpc.CallArgs, block string, overrides ethrpc.StateOverride) {
	var frame ethrpc.CallFrame
	err := e.backend.TraceCall(ctx, args, block, &ethrpc.TraceConfig{
		Tracer:         "callTracer",
		TracerConfig:   map[string]any{"withLog": true},
		StateOverrides: overrides,
	}, &frame)
	if err != nil {
		e.log.Debug("Tracing unavailable", "err", err)
		return
	}
	raw.Trace = &frame
	if raw.Success() {
		raw.Logs = ethrpc.FlattenLogs(&frame)
	}

	var diff ethrpc.PrestateDiff
	err = e.backend.TraceCall(ctx, args, block, &ethrpc.TraceConfig{
		Tracer:         "prestateTracer",
		TracerConfig:   map[string]any{"diffMode": true},
		StateOverrides: overrides,
	}, &diff)
	if err != nil {
		e.log.Debug("State diff unavailable", "err", err)
		return
	}
	raw.StateDiff = &diff
}

// resolveTokens reads metadata once per Transfer emitter.
func (e *executor) resolveTokens(ctx context.Context, logs []ethrpc.CallLog) map[common.Address]ethrpc.TokenMeta {
	tokens := make(map[common.Address]ethrpc.TokenMeta)
	for _, l := range logs {
		if !isTransfer(l) {
			continue
		}
		if _, ok := tokens[l.Address]; ok {
			continue
		}
		tokens[l.Address] = e.backend.TokenMetadata(ctx, l.Address)
	}
	return tokens
}
