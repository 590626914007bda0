package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ligun0805/txsim/internal/simulator"
)

var bundleJSON bool

var bundleCmd = &cobra.Command{
	Use:   "bundle <file.json|file.yaml>",
	Short: "Simulate an ordered bundle, stopping at the first failure",
	Long: `Simulate transactions in order. Once one fails the rest are reported as
aborted and never sent to the node.

The file holds either a list of requests or {"transactions": [...]}, in JSON
or YAML. Request fields match the simulate flags (from, to, data, value,
gasLimit, gasPrice, maxFeePerGas, maxPriorityFeePerGas, stateOverrides).
Quote hex values in YAML, otherwise short ones are read as numbers.`,
	Args: cobra.ExactArgs(1),
	RunE: runBundle,
}

func init() {
	bundleCmd.Flags().BoolVar(&bundleJSON, "json", false, "Print the results as JSON")
}

// readBundle loads requests from a JSON or YAML file. YAML goes through a
// generic decode and back to JSON so both share the request's JSON tags.
func readBundle(path string) ([]simulator.SimulationRequest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(b, &doc); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if b, err = json.Marshal(doc); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return decodeBundle(b)
}

func decodeBundle(b []byte) ([]simulator.SimulationRequest, error) {
	var reqs []simulator.SimulationRequest
	if err := json.Unmarshal(b, &reqs); err == nil {
		return reqs, nil
	}
	var wrapped struct {
		Transactions []simulator.SimulationRequest `json:"transactions"`
	}
	if err := json.Unmarshal(b, &wrapped); err != nil {
		return nil, fmt.Errorf("bundle: %w", err)
	}
	if wrapped.Transactions == nil {
		return nil, fmt.Errorf("bundle: no transactions")
	}
	return wrapped.Transactions, nil
}

func runBundle(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	reqs, err := readBundle(args[0])
	if err != nil {
		return err
	}
	st, err := loadSettings()
	if err != nil {
		return err
	}
	sim, client, err := newSimulator(ctx, st, nil)
	if err != nil {
		return err
	}
	defer client.Close()

	results := sim.SimulateBundle(ctx, reqs)
	out := cmd.OutOrStdout()
	if bundleJSON {
		return printJSON(out, results)
	}
	failed := printBundle(out, results)
	if failed >= 0 {
		return fmt.Errorf("bundle failed at transaction %d", failed+1)
	}
	return nil
}
