package simulator

import (
	"bytes"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ligun0805/txsim/internal/ethrpc"
	"github.com/ligun0805/txsim/internal/units"
)

const (
	IntrinsicGas      uint64 = 21000
	zeroByteGas       uint64 = 4
	nonZeroByteGas    uint64 = 16
	estimateBufferPct        = 20

	// smallBlockGasLimit is the HyperEVM fast block capacity; larger
	// transactions wait for a big block.
	smallBlockGasLimit uint64 = 2_000_000
)

const transferSignature = "Transfer(address,address,uint256)"

var transferTopic = crypto.Keccak256Hash([]byte(transferSignature))

// Analyze derives the full report from a raw execution outcome. It is pure:
// the same inputs always give the same result.
func Analyze(raw *RawResult, tx *BuiltTransaction, chain ChainInfo) *SimulationResult {
	limit := effectiveGasLimit(tx, raw.GasUsed)
	breakdown := GasBreakdownFor(raw.GasUsed, tx.Data)
	eff := Efficiency(raw.GasUsed, limit)

	res := &SimulationResult{
		Success:     raw.Success(),
		GasUsed:     raw.GasUsed,
		GasLimit:    limit,
		BlockNumber: raw.BlockNumber,
		Timestamp:   raw.Timestamp,
		ExecutionResult: ExecutionResult{
			Status:       executionStatus(raw.Err),
			ReturnData:   raw.ReturnData,
			GasBreakdown: breakdown,
			Efficiency:   eff,
		},
		StateChanges: stateChanges(raw.StateDiff, chain.NativeSymbol),
		Events:       decodeEvents(raw.Logs, raw.Tokens),
		Trace:        summarizeTrace(raw.Trace),
		AccessList:   raw.AccessList,
		Error:        raw.Err,
	}
	if raw.Err != nil {
		res.ExecutionResult.RevertReason = raw.Err.Reason()
	}
	res.AssetChanges = assetChanges(tx, res.Events, raw.Tokens, chain.NativeSymbol)
	res.SecurityAnalysis = securityAnalysis(tx, chain.NativeSymbol)
	res.Recommendations = recommendations(eff, res.SecurityAnalysis, raw.Err)

	chain.BlockKind, chain.Confirmation = "small", "~1s"
	if limit > smallBlockGasLimit {
		chain.BlockKind, chain.Confirmation = "big", "~60s"
	}
	res.ChainSpecific = chain
	return res
}

// effectiveGasLimit is the caller's limit, or the estimate plus a buffer the
// way a wallet would fill it in.
func effectiveGasLimit(tx *BuiltTransaction, gasUsed uint64) uint64 {
	if tx.explicitGas {
		return tx.GasLimit
	}
	buffered := gasUsed + gasUsed*estimateBufferPct/100
	return max(tx.GasLimit, buffered, DefaultGasLimit)
}

func executionStatus(err *SimError) string {
	switch {
	case err == nil:
		return "success"
	case err.Kind == KindRevert || err.Kind == KindUnpredictableGas:
		return "reverted"
	}
	return "failed"
}

// CalldataGas charges 4 gas per zero byte and 16 per non-zero byte.
func CalldataGas(data []byte) uint64 {
	var g uint64
	for _, b := range data {
		if b == 0 {
			g += zeroByteGas
		} else {
			g += nonZeroByteGas
		}
	}
	return g
}

// GasBreakdownFor splits gasUsed into intrinsic, calldata and execution.
// When gasUsed is below the static costs the parts are capped in that order,
// so they always sum to gasUsed.
func GasBreakdownFor(gasUsed uint64, data []byte) GasBreakdown {
	intrinsic := min(IntrinsicGas, gasUsed)
	calldata := min(CalldataGas(data), gasUsed-intrinsic)
	return GasBreakdown{
		Intrinsic: intrinsic,
		Calldata:  calldata,
		Execution: gasUsed - intrinsic - calldata,
	}
}

// Efficiency rates gasUsed against gasLimit.
func Efficiency(gasUsed, gasLimit uint64) GasEfficiency {
	var ratio float64
	switch {
	case gasLimit > 0:
		ratio = float64(gasUsed) / float64(gasLimit)
	case gasUsed > 0:
		ratio = 1
	}
	switch {
	case ratio < 0.70:
		return GasEfficiency{Ratio: ratio, Rating: RatingOptimal, Score: 95,
			Suggestion: "Gas usage is well within the limit"}
	case ratio < 0.85:
		return GasEfficiency{Ratio: ratio, Rating: RatingGood, Score: 80,
			Suggestion: "Consider reducing the gas limit closer to actual usage"}
	case ratio < 0.95:
		return GasEfficiency{Ratio: ratio, Rating: RatingModerate, Score: 65,
			PotentialSavings: (gasLimit - gasUsed) / 10,
			Suggestion:       "Review contract logic for gas optimizations"}
	default:
		return GasEfficiency{Ratio: ratio, Rating: RatingPoor, Score: 40,
			PotentialSavings: gasUsed * 15 / 100,
			Suggestion:       "Significant optimization needed: gas usage is at or above the limit"}
	}
}

func isTransfer(l ethrpc.CallLog) bool {
	return len(l.Topics) == 3 && l.Topics[0] == transferTopic && len(l.Data) >= 32
}

// decodeEvents decodes ERC-20 Transfers and tags every other log UnknownEvent.
func decodeEvents(logs []ethrpc.CallLog, tokens map[common.Address]ethrpc.TokenMeta) []DecodedEvent {
	events := make([]DecodedEvent, 0, len(logs))
	for _, l := range logs {
		ev := DecodedEvent{
			Address:         l.Address,
			ContractAddress: l.Address,
			Topics:          l.Topics,
			Data:            l.Data,
		}
		if !isTransfer(l) {
			ev.EventName = "UnknownEvent"
			if len(l.Topics) > 0 {
				ev.Signature = l.Topics[0].Hex()
			}
			ev.HumanReadable = fmt.Sprintf("Unknown event emitted by %s", l.Address.Hex())
			events = append(events, ev)
			continue
		}
		from := common.BytesToAddress(l.Topics[1].Bytes())
		to := common.BytesToAddress(l.Topics[2].Bytes())
		value := new(big.Int).SetBytes(l.Data[:32])

		decimals, symbol := 18, "tokens"
		if meta, ok := tokens[l.Address]; ok {
			decimals = meta.Decimals
			if meta.Symbol != "" {
				symbol = meta.Symbol
			}
		}
		ev.EventName = "Transfer"
		ev.Signature = transferSignature
		ev.Decoded = true
		ev.Args = map[string]string{
			"from":  from.Hex(),
			"to":    to.Hex(),
			"value": value.String(),
		}
		ev.HumanReadable = fmt.Sprintf("Transfer %s %s from %s to %s",
			units.FormatBig(value, decimals), symbol, from.Hex(), to.Hex())
		ev.Category = &EventCategory{Type: "transfer", Impact: "asset_movement"}
		events = append(events, ev)
	}
	return events
}

func assetChanges(tx *BuiltTransaction, events []DecodedEvent, tokens map[common.Address]ethrpc.TokenMeta, nativeSymbol string) []AssetChange {
	changes := []AssetChange{}
	if tx.Value != nil && tx.Value.Sign() > 0 {
		var to common.Address
		if tx.To != nil {
			to = *tx.To
		}
		changes = append(changes, AssetChange{
			Address:    tx.From,
			From:       tx.From,
			To:         to,
			Amount:     tx.Value.String(),
			Formatted:  units.FormatBig(tx.Value, units.NativeDecimals),
			Type:       AssetNative,
			TokenInfo:  &ethrpc.TokenMeta{Symbol: nativeSymbol, Name: nativeSymbol, Decimals: units.NativeDecimals},
			ChangeType: Sent,
		})
	}
	for _, ev := range events {
		if !ev.Decoded {
			continue
		}
		from := common.HexToAddress(ev.Args["from"])
		to := common.HexToAddress(ev.Args["to"])
		amount, _ := new(big.Int).SetString(ev.Args["value"], 10)

		ac := AssetChange{
			Address:   ev.Address,
			From:      from,
			To:        to,
			Amount:    amount.String(),
			Formatted: units.FormatBig(amount, 18),
			Type:      AssetERC20,
		}
		if meta, ok := tokens[ev.Address]; ok {
			m := meta
			ac.TokenInfo = &m
			ac.Formatted = units.FormatBig(amount, meta.Decimals)
		}
		switch {
		case from == (common.Address{}):
			ac.ChangeType = Minted
		case to == (common.Address{}):
			ac.ChangeType = Burned
		case from == tx.From:
			ac.ChangeType = Sent
		default:
			ac.ChangeType = Received
		}
		changes = append(changes, ac)
	}
	return changes
}

func securityAnalysis(tx *BuiltTransaction, nativeSymbol string) SecurityAnalysis {
	sa := SecurityAnalysis{RiskLevel: SeverityLow, Vulnerabilities: []Vulnerability{}}
	if tx.Value != nil && tx.Value.Sign() > 0 {
		sa.Vulnerabilities = append(sa.Vulnerabilities, Vulnerability{
			Type:     "high_value_transfer",
			Severity: SeverityMedium,
			Title:    "High Value Transfer",
			Description: fmt.Sprintf("Transaction transfers %s %s",
				units.FormatBig(tx.Value, units.NativeDecimals), nativeSymbol),
			Recommendation: "Verify the recipient address before sending",
		})
	}
	for _, v := range sa.Vulnerabilities {
		if v.Severity.rank() > sa.RiskLevel.rank() {
			sa.RiskLevel = v.Severity
		}
	}
	return sa
}

func recommendations(eff GasEfficiency, sa SecurityAnalysis, simErr *SimError) []Recommendation {
	recs := []Recommendation{}
	if eff.Rating != RatingOptimal {
		recs = append(recs, Recommendation{
			Category:    CategoryGas,
			Severity:    SeverityWarning,
			Title:       fmt.Sprintf("Gas efficiency is %s", eff.Rating),
			Description: fmt.Sprintf("Gas used is %.0f%% of the limit", eff.Ratio*100),
			Solution:    eff.Suggestion,
			Impact:      fmt.Sprintf("Potential savings: %d gas", eff.PotentialSavings),
		})
	}
	if sa.RiskLevel != SeverityLow {
		sev := SeverityWarning
		if sa.RiskLevel == SeverityHigh || sa.RiskLevel == SeverityCritical {
			sev = SeverityCritical
		}
		titles := make([]string, 0, len(sa.Vulnerabilities))
		fixes := make([]string, 0, len(sa.Vulnerabilities))
		for _, v := range sa.Vulnerabilities {
			titles = append(titles, v.Title)
			fixes = append(fixes, v.Recommendation)
		}
		recs = append(recs, Recommendation{
			Category:    CategorySecurity,
			Severity:    sev,
			Title:       fmt.Sprintf("Security risk: %s", sa.RiskLevel),
			Description: strings.Join(titles, "; "),
			Solution:    strings.Join(fixes, "; "),
		})
	}
	if simErr != nil {
		recs = append(recs, Recommendation{
			Category:    CategoryBestPractice,
			Severity:    SeverityError,
			Title:       "Transaction failed",
			Description: "Execution failed: " + simErr.Reason(),
			Solution:    failureSolution(simErr.Kind),
		})
	}
	return recs
}

func failureSolution(kind ErrorKind) string {
	switch kind {
	case KindInsufficientFunds:
		return "Fund the sender account or simulate with a funded address"
	case KindUnpredictableGas:
		return "The transaction would revert; check contract state and input parameters"
	case KindTimeout, KindTransport:
		return "Check RPC connectivity and retry"
	case KindBundleAborted:
		return "Fix the earlier failing transaction in the bundle"
	}
	return "Inspect the revert reason and the contract's requirements"
}

func summarizeTrace(frame *ethrpc.CallFrame) TraceSummary {
	if frame == nil {
		return TraceSummary{Calls: []ethrpc.CallFrame{}}
	}
	return TraceSummary{Calls: []ethrpc.CallFrame{*frame}, Depth: ethrpc.Depth(frame)}
}

// stateChanges flattens a prestate diff into one entry per changed field.
// Diff mode leaves zeroed slots and destroyed accounts out of post, so
// anything only in pre is reported as going to zero.
func stateChanges(diff *ethrpc.PrestateDiff, nativeSymbol string) []StateChange {
	changes := []StateChange{}
	if diff == nil {
		return changes
	}
	seen := make(map[common.Address]bool, len(diff.Post)+len(diff.Pre))
	addrs := make([]common.Address, 0, len(diff.Post)+len(diff.Pre))
	for _, m := range []map[common.Address]ethrpc.PrestateAccount{diff.Post, diff.Pre} {
		for a := range m {
			if !seen[a] {
				seen[a] = true
				addrs = append(addrs, a)
			}
		}
	}
	sort.Slice(addrs, func(i, j int) bool { return bytes.Compare(addrs[i][:], addrs[j][:]) < 0 })

	for _, addr := range addrs {
		pre := diff.Pre[addr]
		post, alive := diff.Post[addr]
		if !alive {
			post = ethrpc.PrestateAccount{Balance: (*hexutil.Big)(new(big.Int))}
		}
		if post.Balance != nil {
			oldBal := new(big.Int)
			if pre.Balance != nil {
				oldBal = pre.Balance.ToInt()
			}
			newBal := post.Balance.ToInt()
			if oldBal.Cmp(newBal) != 0 {
				changes = append(changes, StateChange{
					Address:  addr,
					OldValue: oldBal.String(),
					NewValue: newBal.String(),
					Type:     ChangeBalance,
					HumanReadable: fmt.Sprintf("Balance %s -> %s %s",
						units.FormatBig(oldBal, units.NativeDecimals), units.FormatBig(newBal, units.NativeDecimals), nativeSymbol),
				})
			}
		}
		if (post.Nonce != 0 || !alive) && post.Nonce != pre.Nonce {
			changes = append(changes, StateChange{
				Address:       addr,
				OldValue:      fmt.Sprint(pre.Nonce),
				NewValue:      fmt.Sprint(post.Nonce),
				Type:          ChangeNonce,
				HumanReadable: fmt.Sprintf("Nonce %d -> %d", pre.Nonce, post.Nonce),
			})
		}
		switch {
		case len(post.Code) > 0 && !bytes.Equal(pre.Code, post.Code):
			changes = append(changes, StateChange{
				Address:       addr,
				OldValue:      hexutil.Encode(pre.Code),
				NewValue:      hexutil.Encode(post.Code),
				Type:          ChangeCode,
				HumanReadable: fmt.Sprintf("Code set (%d bytes)", len(post.Code)),
			})
		case !alive && len(pre.Code) > 0:
			changes = append(changes, StateChange{
				Address:       addr,
				OldValue:      hexutil.Encode(pre.Code),
				NewValue:      "0x",
				Type:          ChangeCode,
				HumanReadable: "Code removed",
			})
		}
		changes = append(changes, storageChanges(addr, pre.Storage, post.Storage)...)
	}
	return changes
}

// storageChanges lists slots that differ; a slot missing from post is zero.
func storageChanges(addr common.Address, pre, post map[common.Hash]common.Hash) []StateChange {
	slots := make([]common.Hash, 0, len(post)+len(pre))
	for k := range post {
		slots = append(slots, k)
	}
	for k := range pre {
		if _, ok := post[k]; !ok {
			slots = append(slots, k)
		}
	}
	sort.Slice(slots, func(i, j int) bool { return bytes.Compare(slots[i][:], slots[j][:]) < 0 })

	var out []StateChange
	for _, slot := range slots {
		oldV, newV := pre[slot], post[slot]
		if oldV == newV {
			continue
		}
		out = append(out, StateChange{
			Address:       addr,
			Slot:          slot.Hex(),
			OldValue:      oldV.Hex(),
			NewValue:      newV.Hex(),
			Type:          ChangeStorage,
			HumanReadable: fmt.Sprintf("Slot %s changed", slot.TerminalString()),
		})
	}
	return out
}
