// Package simulator builds, executes and analyzes EVM transaction
// simulations against a JSON-RPC node.
package simulator

import (
	"context"
	"errors"
	"math/big"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ligun0805/txsim/internal/ethrpc"
	"github.com/ligun0805/txsim/internal/units"
)

// DefaultWhale is the funded sender substituted for a zero or broke sender.
var DefaultWhale = common.HexToAddress("0x2222222222222222222222222222222222222222")

// DefaultAutoBalance is the balance override given to the sender: 10,000
// native units, independent of the transferred value.
var DefaultAutoBalance, _ = new(big.Int).SetString("21e19e0c9bab2400000", 16)

var tracer = otel.Tracer("github.com/ligun0805/txsim/internal/simulator")

// Config is fixed for the lifetime of a Simulator.
type Config struct {
	Network       string
	ChainID       uint64
	NativeSymbol  string
	Whale         common.Address
	AutoBalance   *big.Int
	Trace         bool
	AccessList    bool
	ResolveTokens bool
}

func (c Config) withDefaults() Config {
	if c.Whale == (common.Address{}) {
		c.Whale = DefaultWhale
	}
	if c.AutoBalance == nil || c.AutoBalance.Sign() <= 0 {
		c.AutoBalance = new(big.Int).Set(DefaultAutoBalance)
	}
	if c.NativeSymbol == "" {
		c.NativeSymbol = "HYPE"
	}
	return c
}

// Simulator is immutable after New and safe for concurrent use.
type Simulator struct {
	cfg     Config
	backend Backend
	exec    *executor
	log     log.Logger
}

// New binds a simulator to a backend.
func New(backend Backend, cfg Config) (*Simulator, error) {
	if backend == nil {
		return nil, errors.New("simulator: nil backend")
	}
	cfg = cfg.withDefaults()
	logger := log.Root().New("module", "simulator", "network", cfg.Network)
	return &Simulator{
		cfg:     cfg,
		backend: backend,
		exec:    &executor{backend: backend, cfg: cfg, log: logger},
		log:     logger,
	}, nil
}

func (s *Simulator) Config() Config { return s.cfg }

func (s *Simulator) chain() ChainInfo {
	return ChainInfo{ChainID: s.cfg.ChainID, Network: s.cfg.Network, NativeSymbol: s.cfg.NativeSymbol}
}

// retryState tracks the insufficient-funds fallback of SimulateTransaction.
type retryState int

const (
	stateInitial retryState = iota
	stateRetriedWithWhale
)

// SimulateTransaction runs req against the latest (or pending) state, or
// against a historical req.BlockNumber. A live first attempt failing on
// insufficient funds is retried once from the whale.
func (s *Simulator) SimulateTransaction(ctx context.Context, req SimulationRequest) *SimulationResult {
	if req.Fake {
		return s.fake(req)
	}
	tag := blockTag(string(req.BlockNumber))
	if tag != "latest" && tag != "pending" {
		return s.SimulateHistorical(ctx, req, tag)
	}

	ctx, span := tracer.Start(ctx, "simulator.SimulateTransaction")
	defer span.End()

	tx := Build(req, s.log)
	originalFrom := tx.From
	state := stateInitial
	for {
		sent, raw := s.exec.execute(ctx, tx, tag, true)
		retry := state == stateInitial &&
			raw.Err != nil && raw.Err.Kind == KindInsufficientFunds &&
			sent.From != s.cfg.Whale
		if !retry {
			res := Analyze(raw, sent, s.chain())
			if state == stateRetriedWithWhale {
				whale := s.cfg.Whale
				res.AutoBalanceUsed = true
				res.OriginalFrom = &originalFrom
				res.WhaleFrom = &whale
			}
			finishSpan(span, res)
			return res
		}
		s.log.Info("Insufficient funds, retrying with whale", "from", tx.From, "whale", s.cfg.Whale)
		state = stateRetriedWithWhale
		tx = tx.withFrom(s.cfg.Whale)
	}
}

// SimulateHistorical runs req against a fixed block. No whale substitution
// or balance override is applied; only the caller's overrides are sent.
func (s *Simulator) SimulateHistorical(ctx context.Context, req SimulationRequest, block string) *SimulationResult {
	ctx, span := tracer.Start(ctx, "simulator.SimulateHistorical", trace.WithAttributes(attribute.String("block", block)))
	defer span.End()

	tx := Build(req, s.log)
	sent, raw := s.exec.execute(ctx, tx, blockTag(block), false)
	res := Analyze(raw, sent, s.chain())
	finishSpan(span, res)
	return res
}

// SimulateBundle runs reqs one at a time in order. After the first failure
// the remaining requests are not sent and are reported as aborted.
func (s *Simulator) SimulateBundle(ctx context.Context, reqs []SimulationRequest) []*SimulationResult {
	ctx, span := tracer.Start(ctx, "simulator.SimulateBundle", trace.WithAttributes(attribute.Int("size", len(reqs))))
	defer span.End()

	results := make([]*SimulationResult, 0, len(reqs))
	for i, req := range reqs {
		res := s.SimulateTransaction(ctx, req)
		results = append(results, res)
		if res.Success {
			continue
		}
		s.log.Warn("Bundle transaction failed, aborting rest", "index", i, "reason", res.ExecutionResult.RevertReason, "skipped", len(reqs)-i-1)
		span.SetAttributes(attribute.Int("failedIndex", i))
		for _, rest := range reqs[i+1:] {
			results = append(results, s.aborted(rest))
		}
		break
	}
	return results
}

func (s *Simulator) aborted(req SimulationRequest) *SimulationResult {
	tx := Build(req, s.log)
	raw := &RawResult{
		Timestamp: time.Now().Unix(),
		Err:       &SimError{Kind: KindBundleAborted, Message: ErrBundleAborted, RevertReason: ErrBundleAborted},
	}
	return Analyze(raw, tx, s.chain())
}

// fake synthesizes a successful result without touching the network.
func (s *Simulator) fake(req SimulationRequest) *SimulationResult {
	tx := Build(req, s.log)
	if tx.From == (common.Address{}) {
		tx = tx.withFrom(s.cfg.Whale)
	}
	raw := &RawResult{
		GasUsed:     21000 + uint64(rand.IntN(50000)),
		BlockNumber: 1 + uint64(rand.IntN(10_000_000)),
		Timestamp:   time.Now().Unix(),
		ReturnData:  []byte{},
	}
	res := Analyze(raw, tx, s.chain())
	res.Fake = true
	return res
}

func finishSpan(span trace.Span, res *SimulationResult) {
	span.SetAttributes(
		attribute.Bool("success", res.Success),
		attribute.Int64("gasUsed", int64(res.GasUsed)),
		attribute.Bool("autoBalanceUsed", res.AutoBalanceUsed),
	)
	if res.Error != nil {
		span.SetStatus(codes.Error, res.Error.Error())
	}
}

// blockTag normalizes a block selector: named tags pass through, decimal and
// hex numbers become hex, anything else means latest.
func blockTag(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "latest":
		return "latest"
	case "pending", "earliest", "safe", "finalized":
		return s
	}
	if strings.HasPrefix(s, "0x") {
		if n, err := hexutil.DecodeUint64(s); err == nil {
			return hexutil.EncodeUint64(n)
		}
		return "latest"
	}
	n := units.ToBaseUnit(s)
	if !n.IsUint64() || (n.Sign() == 0 && s != "0") {
		return "latest"
	}
	return hexutil.EncodeUint64(n.Uint64())
}

// NetworkStatus is a snapshot of the node's view of the chain.
type NetworkStatus struct {
	Network         string                     `json:"network"`
	ChainID         uint64                     `json:"chainId"`
	ExpectedChainID uint64                     `json:"expectedChainId"`
	ChainIDMatches  bool                       `json:"chainIdMatches"`
	BlockNumber     uint64                     `json:"blockNumber"`
	GasPrice        *big.Int                   `json:"gasPrice"`
	BaseFee         *big.Int                   `json:"baseFee,omitempty"`
	PriorityFees    map[int]ethrpc.RewardStats `json:"priorityFees,omitempty"`
}

// NetworkStatus reads chain id, head, gas price and recent priority fees.
// Fee history is optional.
func (s *Simulator) NetworkStatus(ctx context.Context) (*NetworkStatus, error) {
	id, err := s.backend.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	head, err := s.backend.BlockNumber(ctx)
	if err != nil {
		return nil, err
	}
	gp, err := s.backend.GasPrice(ctx)
	if err != nil {
		return nil, err
	}
	st := &NetworkStatus{
		Network:         s.cfg.Network,
		ChainID:         id.Uint64(),
		ExpectedChainID: s.cfg.ChainID,
		ChainIDMatches:  s.cfg.ChainID == 0 || id.Uint64() == s.cfg.ChainID,
		BlockNumber:     head,
		GasPrice:        gp,
	}
	if fees, baseFee, err := s.backend.FeeHistoryStats(ctx, 20, nil); err != nil {
		s.log.Debug("Fee history unavailable", "err", err)
	} else {
		st.PriorityFees, st.BaseFee = fees, baseFee
	}
	return st, nil
}

func (s *Simulator) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	return s.backend.Balance(ctx, addr)
}

func (s *Simulator) Nonce(ctx context.Context, addr common.Address) (uint64, error) {
	return s.backend.Nonce(ctx, addr)
}

// CreateAccessList asks the node which slots req would touch, using the
// same sender substitution and funding as a live simulation.
func (s *Simulator) CreateAccessList(ctx context.Context, req SimulationRequest) (*ethrpc.AccessListResult, error) {
	tx := s.exec.liveSender(Build(req, s.log))
	return s.backend.CreateAccessList(ctx, tx.callArgs(), blockTag(string(req.BlockNumber)), s.exec.fundedOverrides(tx))
}
