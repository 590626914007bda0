// Package ethrpc wraps a go-ethereum RPC client with per-call timeouts,
// rate-limit backoff and the override-capable call family.
package ethrpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
)

const (
	DefaultTimeout  = 15 * time.Second
	defaultAttempts = 3
	defaultBackoff  = 200 * time.Millisecond
)

// ErrBlockNotFound is returned when the node answers null for a block tag.
var ErrBlockNotFound = errors.New("block not found")

// Client is safe for concurrent use.
type Client struct {
	rc       *rpc.Client
	ec       *ethclient.Client
	timeout  time.Duration
	attempts int
	backoff  time.Duration
	log      log.Logger
}

type Option func(*Client)

// WithTimeout bounds every individual RPC round trip.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetry sets how often a rate-limited call is attempted and the first backoff.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.attempts = attempts
		}
		c.backoff = backoff
	}
}

func WithLogger(l log.Logger) Option {
	return func(c *Client) { c.log = l }
}

// Dial connects to an http(s), ws(s) or ipc endpoint.
func Dial(ctx context.Context, rawurl string, opts ...Option) (*Client, error) {
	rc, err := rpc.DialContext(ctx, rawurl)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rawurl, err)
	}
	return NewClient(rc, opts...), nil
}

func NewClient(rc *rpc.Client, opts ...Option) *Client {
	c := &Client{
		rc:       rc,
		ec:       ethclient.NewClient(rc),
		timeout:  DefaultTimeout,
		attempts: defaultAttempts,
		backoff:  defaultBackoff,
		log:      log.Root().New("module", "ethrpc"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Close() { c.rc.Close() }

// IsRateLimit reports a provider throttling response (HTTP 429 or -32005).
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusTooManyRequests {
		return true
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == -32005 {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "Too Many Requests") || strings.Contains(s, "-32005")
}

// call performs one JSON-RPC request under the per-call timeout. Only
// rate-limit failures are retried; everything else is returned as is.
func (c *Client) call(ctx context.Context, result any, method string, args ...any) error {
	backoff := c.backoff
	var err error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		cctx, cancel := context.WithTimeout(ctx, c.timeout)
		err = c.rc.CallContext(cctx, result, method, args...)
		cancel()
		if err == nil || !IsRateLimit(err) || attempt == c.attempts {
			break
		}
		c.log.Debug("Rate limited, backing off", "method", method, "attempt", attempt, "wait", backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

func callParams(args CallArgs, block string, overrides StateOverride) []any {
	if block == "" {
		block = "latest"
	}
	params := []any{args, block}
	if len(overrides) > 0 {
		params = append(params, overrides)
	}
	return params
}

// Call runs eth_call and returns the raw return data.
func (c *Client) Call(ctx context.Context, args CallArgs, block string, overrides StateOverride) (hexutil.Bytes, error) {
	var out hexutil.Bytes
	if err := c.call(ctx, &out, "eth_call", callParams(args, block, overrides)...); err != nil {
		return nil, err
	}
	return out, nil
}

// EstimateGas runs eth_estimateGas.
func (c *Client) EstimateGas(ctx context.Context, args CallArgs, block string, overrides StateOverride) (uint64, error) {
	var out hexutil.Uint64
	if err := c.call(ctx, &out, "eth_estimateGas", callParams(args, block, overrides)...); err != nil {
		return 0, err
	}
	return uint64(out), nil
}

// CreateAccessList runs eth_createAccessList.
func (c *Client) CreateAccessList(ctx context.Context, args CallArgs, block string, overrides StateOverride) (*AccessListResult, error) {
	var out AccessListResult
	if err := c.call(ctx, &out, "eth_createAccessList", callParams(args, block, overrides)...); err != nil {
		return nil, err
	}
	return &out, nil
}

// TraceCall runs debug_traceCall and decodes the tracer output into result.
func (c *Client) TraceCall(ctx context.Context, args CallArgs, block string, cfg *TraceConfig, result any) error {
	if block == "" {
		block = "latest"
	}
	return c.call(ctx, result, "debug_traceCall", args, block, cfg)
}

// BlockByTag reads a block header by tag ("latest", "pending") or hex number.
func (c *Client) BlockByTag(ctx context.Context, tag string) (*BlockInfo, error) {
	if tag == "" {
		tag = "latest"
	}
	var blk *BlockInfo
	if err := c.call(ctx, &blk, "eth_getBlockByNumber", tag, false); err != nil {
		return nil, err
	}
	if blk == nil {
		return nil, fmt.Errorf("%w: %s", ErrBlockNotFound, tag)
	}
	return blk, nil
}

func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.ec.ChainID(ctx)
}

func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.ec.BlockNumber(ctx)
}

func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.ec.SuggestGasPrice(ctx)
}

// Balance reads eth_getBalance at the latest block.
func (c *Client) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.ec.BalanceAt(ctx, addr, nil)
}

// Nonce reads eth_getTransactionCount at the latest block.
func (c *Client) Nonce(ctx context.Context, addr common.Address) (uint64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.ec.NonceAt(ctx, addr, nil)
}
