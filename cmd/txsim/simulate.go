package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ligun0805/txsim/internal/ethrpc"
	"github.com/ligun0805/txsim/internal/simulator"
)

type simulateFlags struct {
	from, to, data, value    string
	gasLimit, gasPrice       string
	maxFee, maxPriorityFee   string
	block, overridesFile     string
	fake, asJSON, accessList bool
	noTrace                  bool
}

var simFlags simulateFlags

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Simulate one transaction",
	Long: `Simulate one transaction against the latest state or a historical block.

Example:
  txsim simulate --to 0x... --data 0xa9059cbb... --from 0x...
  txsim simulate --to 0x... --value 1.5 --block 0x10 --json
  txsim simulate --to 0x... --fake`,
	Args: cobra.NoArgs,
	RunE: runSimulate,
}

func init() {
	f := simulateCmd.Flags()
	f.StringVar(&simFlags.from, "from", "", "Sender address (default: whale)")
	f.StringVar(&simFlags.to, "to", "", "Recipient address; empty for contract deployment")
	f.StringVar(&simFlags.data, "data", "", "Hex calldata")
	f.StringVar(&simFlags.value, "value", "", "Native value in whole units, e.g. 0.25")
	f.StringVar(&simFlags.gasLimit, "gas-limit", "", "Gas limit (decimal or hex)")
	f.StringVar(&simFlags.gasPrice, "gas-price", "", "Legacy gas price in gwei")
	f.StringVar(&simFlags.maxFee, "max-fee", "", "EIP-1559 max fee per gas in gwei")
	f.StringVar(&simFlags.maxPriorityFee, "max-priority-fee", "", "EIP-1559 max priority fee per gas in gwei")
	f.StringVar(&simFlags.block, "block", "", "Block number or tag; a number replays history")
	f.StringVar(&simFlags.overridesFile, "overrides", "", "JSON file with state overrides keyed by address")
	f.BoolVar(&simFlags.fake, "fake", false, "Synthesize a result without touching the network")
	f.BoolVar(&simFlags.asJSON, "json", false, "Print the full result as JSON")
	f.BoolVar(&simFlags.accessList, "access-list", false, "Attach the access list the node generates")
	f.BoolVar(&simFlags.noTrace, "no-trace", false, "Skip debug_traceCall")
}

func (f simulateFlags) request() (simulator.SimulationRequest, error) {
	req := simulator.SimulationRequest{
		From:                 f.from,
		To:                   f.to,
		Data:                 f.data,
		Value:                simulator.Quantity(f.value),
		GasLimit:             simulator.Quantity(f.gasLimit),
		GasPrice:             simulator.Quantity(f.gasPrice),
		MaxFeePerGas:         simulator.Quantity(f.maxFee),
		MaxPriorityFeePerGas: simulator.Quantity(f.maxPriorityFee),
		BlockNumber:          simulator.Quantity(f.block),
		Fake:                 f.fake,
	}
	if f.overridesFile != "" {
		so, err := readOverrides(f.overridesFile)
		if err != nil {
			return req, err
		}
		req.StateOverrides = so
	}
	return req, nil
}

func readOverrides(path string) (ethrpc.StateOverride, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var so ethrpc.StateOverride
	if err := json.Unmarshal(b, &so); err != nil {
		return nil, fmt.Errorf("parse overrides %s: %w", path, err)
	}
	return so, nil
}

func runSimulate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	req, err := simFlags.request()
	if err != nil {
		return err
	}
	st, err := loadSettings()
	if err != nil {
		return err
	}
	sim, client, err := newSimulator(ctx, st, func(c *simulator.Config) {
		if simFlags.noTrace {
			c.Trace = false
		}
		if simFlags.accessList {
			c.AccessList = true
		}
	})
	if err != nil {
		return err
	}
	defer client.Close()

	res := sim.SimulateTransaction(ctx, req)
	out := cmd.OutOrStdout()
	if simFlags.asJSON {
		return printJSON(out, res)
	}
	printResult(out, res, st.NativeSymbol())
	if !res.Success {
		return fmt.Errorf("simulation failed: %s", res.ExecutionResult.RevertReason)
	}
	return nil
}
