package main

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ligun0805/txsim/internal/units"
)

var networkCmd = &cobra.Command{
	Use:   "network [address]",
	Short: "Show chain id, head block and fees; with an address also its balance and nonce",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runNetwork,
}

func runNetwork(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, err := loadSettings()
	if err != nil {
		return err
	}
	sim, client, err := newSimulator(ctx, st, nil)
	if err != nil {
		return err
	}
	defer client.Close()

	ns, err := sim.NetworkStatus(ctx)
	if err != nil {
		return fmt.Errorf("network status: %w", err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Network      : %s\n", ns.Network)
	fmt.Fprintf(out, "RPC          : %s\n", st.RPCURL)
	if ns.ChainIDMatches {
		fmt.Fprintf(out, "Chain ID     : %d\n", ns.ChainID)
	} else {
		color.New(color.FgRed).Fprintf(out, "Chain ID     : %d (expected %d)\n", ns.ChainID, ns.ExpectedChainID)
	}
	fmt.Fprintf(out, "Head block   : %d\n", ns.BlockNumber)
	fmt.Fprintf(out, "Gas price    : %s gwei\n", units.FormatGwei(ns.GasPrice))
	if ns.BaseFee != nil {
		fmt.Fprintf(out, "Next base fee: %s gwei\n", units.FormatGwei(ns.BaseFee))
	}
	pcts := make([]int, 0, len(ns.PriorityFees))
	for p := range ns.PriorityFees {
		pcts = append(pcts, p)
	}
	sort.Ints(pcts)
	for _, p := range pcts {
		s := ns.PriorityFees[p]
		fmt.Fprintf(out, "Tip p%-2d      : min %s / avg %s / max %s gwei\n",
			p, units.FormatGwei(s.Min), units.FormatGwei(s.Avg), units.FormatGwei(s.Max))
	}

	if len(args) == 1 {
		addr, err := addressArg(args[0])
		if err != nil {
			return err
		}
		bal, err := sim.Balance(ctx, addr)
		if err != nil {
			return fmt.Errorf("balance: %w", err)
		}
		nonce, err := sim.Nonce(ctx, addr)
		if err != nil {
			return fmt.Errorf("nonce: %w", err)
		}
		fmt.Fprintf(out, "\n%s\n", addr.Hex())
		fmt.Fprintf(out, "  balance : %s %s\n", units.FormatBig(bal, units.NativeDecimals), st.NativeSymbol())
		fmt.Fprintf(out, "  nonce   : %d\n", nonce)
	}
	return nil
}
