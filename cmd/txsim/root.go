package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/spf13/cobra"

	"github.com/ligun0805/txsim/internal/config"
	"github.com/ligun0805/txsim/internal/ethrpc"
	"github.com/ligun0805/txsim/internal/simulator"
)

var (
	networkFlag string
	rpcFlag     string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "txsim",
	Short: "Simulate HyperEVM transactions before sending them",
	Long: `txsim runs a transaction or a bundle against a HyperEVM node without
broadcasting it and reports gas, events, asset movements, state changes and
recommendations.

A zero or unfunded sender is replaced by a funded whale so that the call can
still be simulated. Historical blocks are replayed as-is.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupLogging,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&networkFlag, "network", "n", "", "HyperEVM network (mainnet, testnet); default from NETWORK")
	rootCmd.PersistentFlags().StringVar(&rpcFlag, "rpc", "", "JSON-RPC endpoint; default from RPC_URL or the network preset")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(bundleCmd)
	rootCmd.AddCommand(networkCmd)
	rootCmd.AddCommand(partnerCmd)
	rootCmd.AddCommand(versionCmd)
}

func setupLogging(cmd *cobra.Command, args []string) error {
	lvl := log.LevelWarn
	if s := os.Getenv("LOG_LEVEL"); s != "" {
		parsed, err := log.LvlFromString(s)
		if err != nil {
			return fmt.Errorf("LOG_LEVEL: %w", err)
		}
		lvl = parsed
	}
	if verbose {
		lvl = log.LevelDebug
	}
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, lvl, true)))
	return nil
}

// loadSettings applies the command line on top of the environment.
func loadSettings() (config.Settings, error) {
	st, err := config.Load(networkFlag)
	if err != nil {
		return st, err
	}
	if rpcFlag != "" {
		st.RPCURL = rpcFlag
	}
	return st, nil
}

func dial(ctx context.Context, st config.Settings) (*ethrpc.Client, error) {
	return ethrpc.Dial(ctx, st.RPCURL,
		ethrpc.WithTimeout(st.RPCTimeout),
		ethrpc.WithRetry(st.RPCAttempts, 200*time.Millisecond),
	)
}

// newSimulator dials the node and builds a simulator for the selected network.
func newSimulator(ctx context.Context, st config.Settings, mut func(*simulator.Config)) (*simulator.Simulator, *ethrpc.Client, error) {
	client, err := dial(ctx, st)
	if err != nil {
		return nil, nil, err
	}
	cfg := simulator.Config{
		Network:       st.Network,
		ChainID:       st.ChainID,
		NativeSymbol:  st.NativeSymbol(),
		Whale:         st.Whale(),
		AutoBalance:   st.AutoBalanceWei(),
		Trace:         st.TraceEnabled,
		AccessList:    st.AccessListEnabled,
		ResolveTokens: st.ResolveTokens,
	}
	if mut != nil {
		mut(&cfg)
	}
	sim, err := simulator.New(client, cfg)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return sim, client, nil
}
