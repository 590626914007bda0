package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Network is a known HyperEVM deployment.
type Network struct {
	Name         string
	ChainID      uint64
	RPCURL       string
	ExplorerURL  string
	NativeSymbol string
}

var Networks = map[string]Network{
	"mainnet": {
		Name:         "mainnet",
		ChainID:      999,
		RPCURL:       "https://rpc.hyperliquid.xyz/evm",
		ExplorerURL:  "https://www.hyperscan.com",
		NativeSymbol: "HYPE",
	},
	"testnet": {
		Name:         "testnet",
		ChainID:      998,
		RPCURL:       "https://rpc.hyperliquid-testnet.xyz/evm",
		ExplorerURL:  "https://testnet.purrsec.com",
		NativeSymbol: "HYPE",
	},
}

// Settings keeps all configuration options.
// Naming mirrors the env keys.
type Settings struct {
	Network     string
	RPCURL      string
	ChainID     uint64
	WhaleHex    string
	AutoBalance string // wei, decimal
	RPCTimeout  time.Duration
	RPCAttempts int

	TraceEnabled      bool
	AccessListEnabled bool
	ResolveTokens     bool

	GlueXAPIURL    string
	GlueXRatesURL  string
	GlueXAPIKey    string
	ExplorerAPIURL string
	GoldRushAPIURL string
	GoldRushAPIKey string
	GoldRushChain  string

	LogLevel string
}

// Load reads settings from environment supporting both UPPER_CASE and lower_case keys.
// An explicit network argument wins over NETWORK.
func Load(network string) (Settings, error) {
	get := func(keys []string, def string) string {
		for _, k := range keys {
			if v := strings.TrimSpace(os.Getenv(k)); v != "" {
				return v
			}
		}
		return def
	}
	getInt := func(keys []string, def int) int {
		s := get(keys, "")
		if s == "" {
			return def
		}
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
		return def
	}
	getUint := func(keys []string, def uint64) uint64 {
		s := get(keys, "")
		if s == "" {
			return def
		}
		if n, err := strconv.ParseUint(s, 10, 64); err == nil {
			return n
		}
		return def
	}
	getBool := func(keys []string, def bool) bool {
		s := strings.ToLower(get(keys, ""))
		if s == "" {
			return def
		}
		return s == "1" || s == "true" || s == "yes" || s == "on"
	}
	getDuration := func(keys []string, def time.Duration) time.Duration {
		s := get(keys, "")
		if s == "" {
			return def
		}
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
		// bare numbers are seconds
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
		return def
	}

	st := Settings{}
	st.Network = strings.ToLower(strings.TrimSpace(network))
	if st.Network == "" {
		st.Network = strings.ToLower(get([]string{"network", "NETWORK"}, "mainnet"))
	}
	preset, ok := Networks[st.Network]
	if !ok {
		return Settings{}, fmt.Errorf("unknown network %q (want mainnet or testnet)", st.Network)
	}

	st.RPCURL = get([]string{"rpc_url", "RPC_URL"}, preset.RPCURL)
	st.ChainID = getUint([]string{"chain_id", "CHAIN_ID"}, preset.ChainID)
	st.WhaleHex = get([]string{"whale_address", "WHALE_ADDRESS"}, "")
	st.AutoBalance = get([]string{"auto_balance_wei", "AUTO_BALANCE_WEI"}, "")
	st.RPCTimeout = getDuration([]string{"rpc_timeout", "RPC_TIMEOUT"}, 15*time.Second)
	st.RPCAttempts = getInt([]string{"rpc_attempts", "RPC_ATTEMPTS"}, 3)

	st.TraceEnabled = getBool([]string{"trace_enabled", "TRACE_ENABLED"}, true)
	st.AccessListEnabled = getBool([]string{"access_list_enabled", "ACCESS_LIST_ENABLED"}, false)
	st.ResolveTokens = getBool([]string{"resolve_tokens", "RESOLVE_TOKENS"}, true)

	st.GlueXAPIURL = get([]string{"gluex_api_url", "GLUEX_API_URL"}, "https://yield-api.gluex.xyz")
	st.GlueXRatesURL = get([]string{"gluex_rates_url", "GLUEX_RATES_URL"}, "https://exchange-rates.gluex.xyz")
	st.GlueXAPIKey = get([]string{"gluex_api_key", "GLUEX_API_KEY"}, "")
	st.ExplorerAPIURL = get([]string{"explorer_api_url", "EXPLORER_API_URL"}, preset.ExplorerURL)
	st.GoldRushAPIURL = get([]string{"goldrush_api_url", "GOLDRUSH_API_URL"}, "https://api.covalenthq.com")
	st.GoldRushAPIKey = get([]string{"goldrush_api_key", "GOLDRUSH_API_KEY"}, "")
	st.GoldRushChain = get([]string{"goldrush_chain", "GOLDRUSH_CHAIN"}, "hyperevm-"+st.Network)

	st.LogLevel = strings.ToLower(get([]string{"log_level", "LOG_LEVEL"}, "info"))

	if st.WhaleHex != "" && !common.IsHexAddress(st.WhaleHex) {
		return Settings{}, fmt.Errorf("WHALE_ADDRESS is not an address: %q", st.WhaleHex)
	}
	if st.AutoBalance != "" {
		if n, ok := new(big.Int).SetString(st.AutoBalance, 10); !ok || n.Sign() <= 0 {
			return Settings{}, fmt.Errorf("AUTO_BALANCE_WEI must be a positive integer: %q", st.AutoBalance)
		}
	}
	return st, nil
}

// Whale returns the configured whale, or the zero address when unset.
func (s Settings) Whale() common.Address {
	if s.WhaleHex == "" {
		return common.Address{}
	}
	return common.HexToAddress(s.WhaleHex)
}

// AutoBalanceWei returns the configured balance override, or nil when unset.
func (s Settings) AutoBalanceWei() *big.Int {
	if s.AutoBalance == "" {
		return nil
	}
	n, _ := new(big.Int).SetString(s.AutoBalance, 10)
	return n
}

// NativeSymbol of the selected network.
func (s Settings) NativeSymbol() string {
	return Networks[s.Network].NativeSymbol
}
