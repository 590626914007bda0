package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/ligun0805/txsim/internal/simulator"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
	headColor = color.New(color.FgCyan)
	warnColor = color.New(color.FgYellow)
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printResult(w io.Writer, res *simulator.SimulationResult, symbol string) {
	if res.Fake {
		warnColor.Fprintln(w, "FAKE RESULT (no network call was made)")
	}
	if res.Success {
		okColor.Fprintln(w, "✓ Simulation succeeded")
	} else {
		failColor.Fprintf(w, "✗ Simulation %s: %s\n", res.ExecutionResult.Status, friendlySimErr(res.ExecutionResult.RevertReason))
	}
	if res.AutoBalanceUsed && res.OriginalFrom != nil && res.WhaleFrom != nil {
		warnColor.Fprintf(w, "  sender %s lacked funds; simulated from %s\n", res.OriginalFrom.Hex(), res.WhaleFrom.Hex())
	}

	gb := res.ExecutionResult.GasBreakdown
	eff := res.ExecutionResult.Efficiency
	fmt.Fprintf(w, "Block        : %d (%s block, %s)\n", res.BlockNumber, res.ChainSpecific.BlockKind, res.ChainSpecific.Confirmation)
	fmt.Fprintf(w, "Gas used     : %d / %d\n", res.GasUsed, res.GasLimit)
	fmt.Fprintf(w, "  intrinsic %d | calldata %d | execution %d\n", gb.Intrinsic, gb.Calldata, gb.Execution)
	fmt.Fprintf(w, "Efficiency   : %s (score %d, %.0f%%)\n", eff.Rating, eff.Score, eff.Ratio*100)
	if len(res.ExecutionResult.ReturnData) > 0 {
		fmt.Fprintf(w, "Return data  : %s\n", res.ExecutionResult.ReturnData)
	}
	fmt.Fprintf(w, "Risk level   : %s\n", res.SecurityAnalysis.RiskLevel)

	if len(res.AssetChanges) > 0 {
		headColor.Fprintln(w, "Asset changes:")
		for _, ac := range res.AssetChanges {
			sym := symbol
			if ac.TokenInfo != nil && ac.TokenInfo.Symbol != "" {
				sym = ac.TokenInfo.Symbol
			} else if ac.Type != simulator.AssetNative {
				sym = ac.Address.Hex()
			}
			fmt.Fprintf(w, "  %-8s %s %s  %s -> %s\n", ac.ChangeType, ac.Formatted, sym, ac.From.Hex(), ac.To.Hex())
		}
	}
	if len(res.Events) > 0 {
		headColor.Fprintln(w, "Events:")
		for _, ev := range res.Events {
			fmt.Fprintf(w, "  %s\n", ev.HumanReadable)
		}
	}
	if len(res.StateChanges) > 0 {
		headColor.Fprintln(w, "State changes:")
		for _, sc := range res.StateChanges {
			fmt.Fprintf(w, "  %s %s\n", sc.Address.Hex(), sc.HumanReadable)
		}
	}
	if res.Trace.Depth > 0 {
		fmt.Fprintf(w, "Call depth   : %d\n", res.Trace.Depth)
	}
	if len(res.Recommendations) > 0 {
		headColor.Fprintln(w, "Recommendations:")
		for _, r := range res.Recommendations {
			c := warnColor
			if r.Severity == simulator.SeverityError || r.Severity == simulator.SeverityCritical {
				c = failColor
			}
			c.Fprintf(w, "  [%s] %s\n", r.Severity, r.Title)
			if r.Solution != "" {
				fmt.Fprintf(w, "      %s\n", r.Solution)
			}
		}
	}
}

// printBundle prints one line per result and returns the index of the first
// failure, or -1.
func printBundle(w io.Writer, results []*simulator.SimulationResult) int {
	failed := -1
	for i, res := range results {
		switch {
		case res.Success:
			okColor.Fprintf(w, "#%d ok    ", i+1)
			fmt.Fprintf(w, "gas %d (%s), %d events\n", res.GasUsed, res.ExecutionResult.Efficiency.Rating, len(res.Events))
		case res.Error != nil && res.Error.Kind == simulator.KindBundleAborted:
			warnColor.Fprintf(w, "#%d skip  %s\n", i+1, res.ExecutionResult.RevertReason)
		default:
			failColor.Fprintf(w, "#%d FAIL  %s\n", i+1, friendlySimErr(res.ExecutionResult.RevertReason))
			if failed < 0 {
				failed = i
			}
		}
	}
	return failed
}
