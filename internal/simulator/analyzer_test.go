package simulator

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ligun0805/txsim/internal/ethrpc"
	"github.com/ligun0805/txsim/internal/ethrpc/rpctest"
)

var testChain = ChainInfo{ChainID: 999, Network: "mainnet", NativeSymbol: "HYPE"}

func TestGasBreakdownExample(t *testing.T) {
	tx := Build(SimulationRequest{GasLimit: "100000", Data: "0x"}, nil)
	res := Analyze(&RawResult{GasUsed: 50000}, tx, testChain)

	gb := res.ExecutionResult.GasBreakdown
	assert.Equal(t, GasBreakdown{Intrinsic: 21000, Calldata: 0, Execution: 29000}, gb)
	eff := res.ExecutionResult.Efficiency
	assert.InDelta(t, 0.5, eff.Ratio, 1e-9)
	assert.Equal(t, RatingOptimal, eff.Rating)
	assert.Equal(t, 95, eff.Score)
	assert.Equal(t, uint64(0), eff.PotentialSavings)
	assert.Equal(t, uint64(100000), res.GasLimit)
}

func TestCalldataGas(t *testing.T) {
	assert.Equal(t, uint64(0), CalldataGas(nil))
	assert.Equal(t, uint64(4+16+16+4), CalldataGas([]byte{0, 1, 0xff, 0}))
}

func TestGasBreakdownAdditivity(t *testing.T) {
	datas := [][]byte{nil, {0, 0, 0}, {1, 2, 3, 4, 5, 6, 7, 8}, make([]byte, 600)}
	for _, data := range datas {
		for _, used := range []uint64{0, 1, 20999, 21000, 21011, 21100, 30000, 1_000_000} {
			gb := GasBreakdownFor(used, data)
			assert.Equal(t, used, gb.Total(), "gasUsed=%d len=%d", used, len(data))
		}
	}
	gb := GasBreakdownFor(21010, []byte{1, 1})
	assert.Equal(t, GasBreakdown{Intrinsic: 21000, Calldata: 10, Execution: 0}, gb)
}

func TestEfficiencyThresholds(t *testing.T) {
	cases := []struct {
		used    uint64
		rating  EfficiencyRating
		score   int
		savings uint64
	}{
		{69_999, RatingOptimal, 95, 0},
		{70_000, RatingGood, 80, 0},
		{84_999, RatingGood, 80, 0},
		{85_000, RatingModerate, 65, 1_500},
		{94_999, RatingModerate, 65, 500},
		{95_000, RatingPoor, 40, 14_250},
		{120_000, RatingPoor, 40, 18_000},
	}
	for _, c := range cases {
		eff := Efficiency(c.used, 100_000)
		assert.Equal(t, c.rating, eff.Rating, "used=%d", c.used)
		assert.Equal(t, c.score, eff.Score, "used=%d", c.used)
		assert.Equal(t, c.savings, eff.PotentialSavings, "used=%d", c.used)
	}
}

func TestEfficiencyMonotonic(t *testing.T) {
	const limit = 50_000
	prev := Efficiency(0, limit).Score
	for used := uint64(0); used <= 2*limit; used += 250 {
		score := Efficiency(used, limit).Score
		assert.LessOrEqual(t, score, prev, "used=%d", used)
		prev = score
	}
}

func TestTransferEventDecoding(t *testing.T) {
	sender := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	other := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	token := common.HexToAddress("0x00000000000000000000000000000000000000cc")
	tx := Build(SimulationRequest{From: sender.Hex(), To: token.Hex()}, nil)

	raw := &RawResult{
		GasUsed: 52_000,
		Logs: []ethrpc.CallLog{
			rpctest.TransferLog(token, sender, other, big.NewInt(1_500_000)),
			rpctest.TransferLog(token, other, sender, big.NewInt(7)),
			rpctest.TransferLog(token, common.Address{}, sender, big.NewInt(9)),
			{Address: token, Topics: []common.Hash{common.HexToHash("0x1234")}, Data: hexutil.Bytes{}},
		},
		Tokens: map[common.Address]ethrpc.TokenMeta{token: {Address: token, Symbol: "USDC", Decimals: 6}},
	}
	res := Analyze(raw, tx, testChain)

	require.Len(t, res.Events, 4)
	ev := res.Events[0]
	assert.Equal(t, "Transfer", ev.EventName)
	assert.True(t, ev.Decoded)
	assert.Equal(t, "1500000", ev.Args["value"])
	assert.Equal(t, other.Hex(), ev.Args["to"])
	assert.Contains(t, ev.HumanReadable, "1.500000 USDC")
	assert.Equal(t, "UnknownEvent", res.Events[3].EventName)
	assert.False(t, res.Events[3].Decoded)

	require.Len(t, res.AssetChanges, 3)
	assert.Equal(t, AssetERC20, res.AssetChanges[0].Type)
	assert.Equal(t, Sent, res.AssetChanges[0].ChangeType)
	assert.Equal(t, Received, res.AssetChanges[1].ChangeType)
	assert.Equal(t, Minted, res.AssetChanges[2].ChangeType)
	require.NotNil(t, res.AssetChanges[0].TokenInfo)
	assert.Equal(t, "USDC", res.AssetChanges[0].TokenInfo.Symbol)
}

func TestFourTopicTransferIsNotERC20(t *testing.T) {
	token := common.HexToAddress("0xcc")
	l := rpctest.TransferLog(token, common.HexToAddress("0x01"), common.HexToAddress("0x02"), big.NewInt(1))
	l.Topics = append(l.Topics, common.BigToHash(big.NewInt(1)))
	res := Analyze(&RawResult{GasUsed: 21000, Logs: []ethrpc.CallLog{l}}, Build(SimulationRequest{}, nil), testChain)

	require.Len(t, res.Events, 1)
	assert.Equal(t, "UnknownEvent", res.Events[0].EventName)
	assert.Empty(t, res.AssetChanges)
}

func TestNativeValueSecurity(t *testing.T) {
	tx := Build(SimulationRequest{From: "0x00000000000000000000000000000000000000aa", To: "0x00000000000000000000000000000000000000bb", Value: "2.5"}, nil)
	res := Analyze(&RawResult{GasUsed: 21000}, tx, testChain)

	require.Len(t, res.AssetChanges, 1)
	ac := res.AssetChanges[0]
	assert.Equal(t, AssetNative, ac.Type)
	assert.Equal(t, Sent, ac.ChangeType)
	assert.Equal(t, "2500000000000000000", ac.Amount)
	assert.Equal(t, "2.500000", ac.Formatted)

	assert.Equal(t, SeverityMedium, res.SecurityAnalysis.RiskLevel)
	require.Len(t, res.SecurityAnalysis.Vulnerabilities, 1)
	assert.Equal(t, "High Value Transfer", res.SecurityAnalysis.Vulnerabilities[0].Title)

	var sec *Recommendation
	for i := range res.Recommendations {
		if res.Recommendations[i].Category == CategorySecurity {
			sec = &res.Recommendations[i]
		}
	}
	require.NotNil(t, sec)
	assert.Equal(t, SeverityWarning, sec.Severity)
}

func TestNoValueIsLowRisk(t *testing.T) {
	res := Analyze(&RawResult{GasUsed: 21000}, Build(SimulationRequest{}, nil), testChain)
	assert.Equal(t, SeverityLow, res.SecurityAnalysis.RiskLevel)
	assert.Empty(t, res.SecurityAnalysis.Vulnerabilities)
	assert.Empty(t, res.AssetChanges)
	assert.Empty(t, res.Trace.Calls)
	assert.Equal(t, 0, res.Trace.Depth)
}

func TestFailedExecutionRecommendation(t *testing.T) {
	raw := &RawResult{Err: &SimError{Kind: KindRevert, Message: "execution reverted: nope", RevertReason: "nope"}}
	res := Analyze(raw, Build(SimulationRequest{}, nil), testChain)

	assert.False(t, res.Success)
	assert.Equal(t, "reverted", res.ExecutionResult.Status)
	assert.Equal(t, "nope", res.ExecutionResult.RevertReason)
	assert.Equal(t, uint64(0), res.ExecutionResult.GasBreakdown.Total())
	require.NotEmpty(t, res.Recommendations)
	last := res.Recommendations[len(res.Recommendations)-1]
	assert.Equal(t, CategoryBestPractice, last.Category)
	assert.Equal(t, SeverityError, last.Severity)
	assert.Contains(t, last.Description, "nope")
}

func TestGasRecommendationCarriesSavings(t *testing.T) {
	tx := Build(SimulationRequest{GasLimit: "100000"}, nil)
	res := Analyze(&RawResult{GasUsed: 90_000}, tx, testChain)
	require.Len(t, res.Recommendations, 1)
	rec := res.Recommendations[0]
	assert.Equal(t, CategoryGas, rec.Category)
	assert.Equal(t, SeverityWarning, rec.Severity)
	assert.Equal(t, "Potential savings: 1000 gas", rec.Impact)
}

func TestImplicitGasLimitAddsBuffer(t *testing.T) {
	res := Analyze(&RawResult{GasUsed: 100_000}, Build(SimulationRequest{}, nil), testChain)
	assert.Equal(t, uint64(120_000), res.GasLimit)
	assert.Equal(t, "small", res.ChainSpecific.BlockKind)

	res = Analyze(&RawResult{GasUsed: 3_000_000}, Build(SimulationRequest{}, nil), testChain)
	assert.Equal(t, "big", res.ChainSpecific.BlockKind)
}

func TestStateChangesFromDiff(t *testing.T) {
	acct := common.HexToAddress("0xaa")
	slot := common.HexToHash("0x01")
	diff := &ethrpc.PrestateDiff{
		Pre: map[common.Address]ethrpc.PrestateAccount{
			acct: {Balance: (*hexutil.Big)(big.NewInt(1e18)), Nonce: 1, Storage: map[common.Hash]common.Hash{slot: common.HexToHash("0x05")}},
		},
		Post: map[common.Address]ethrpc.PrestateAccount{
			acct: {Balance: (*hexutil.Big)(big.NewInt(2e18)), Nonce: 2, Storage: map[common.Hash]common.Hash{slot: common.HexToHash("0x06")}},
		},
	}
	res := Analyze(&RawResult{GasUsed: 30000, StateDiff: diff}, Build(SimulationRequest{}, nil), testChain)

	require.Len(t, res.StateChanges, 3)
	assert.Equal(t, ChangeBalance, res.StateChanges[0].Type)
	assert.Equal(t, "Balance 1.000000 -> 2.000000 HYPE", res.StateChanges[0].HumanReadable)
	assert.Equal(t, ChangeNonce, res.StateChanges[1].Type)
	assert.Equal(t, ChangeStorage, res.StateChanges[2].Type)
	assert.Equal(t, slot.Hex(), res.StateChanges[2].Slot)
}

func TestStateChangesFromPreOnlyEntries(t *testing.T) {
	live := common.HexToAddress("0xaa")
	gone := common.HexToAddress("0xbb")
	kept, cleared := common.HexToHash("0x01"), common.HexToHash("0x02")
	diff := &ethrpc.PrestateDiff{
		Pre: map[common.Address]ethrpc.PrestateAccount{
			live: {Storage: map[common.Hash]common.Hash{kept: common.HexToHash("0x05"), cleared: common.HexToHash("0x07")}},
			gone: {Balance: (*hexutil.Big)(big.NewInt(1e18)), Nonce: 1, Code: hexutil.Bytes{0x60, 0x00}},
		},
		Post: map[common.Address]ethrpc.PrestateAccount{
			live: {Storage: map[common.Hash]common.Hash{kept: common.HexToHash("0x06")}},
		},
	}
	res := Analyze(&RawResult{GasUsed: 30000, StateDiff: diff}, Build(SimulationRequest{}, nil), testChain)

	require.Len(t, res.StateChanges, 5)
	assert.Equal(t, kept.Hex(), res.StateChanges[0].Slot)
	assert.Equal(t, cleared.Hex(), res.StateChanges[1].Slot)
	assert.Equal(t, common.Hash{}.Hex(), res.StateChanges[1].NewValue)

	assert.Equal(t, gone, res.StateChanges[2].Address)
	assert.Equal(t, ChangeBalance, res.StateChanges[2].Type)
	assert.Equal(t, "0", res.StateChanges[2].NewValue)
	assert.Equal(t, ChangeNonce, res.StateChanges[3].Type)
	assert.Equal(t, "0", res.StateChanges[3].NewValue)
	assert.Equal(t, ChangeCode, res.StateChanges[4].Type)
	assert.Equal(t, "0x", res.StateChanges[4].NewValue)
}

func TestEfficiencyWithoutExplicitLimitIsGood(t *testing.T) {
	res := Analyze(&RawResult{GasUsed: 100_000}, Build(SimulationRequest{}, nil), testChain)
	assert.Equal(t, RatingGood, res.ExecutionResult.Efficiency.Rating)

	res = Analyze(&RawResult{GasUsed: 100_000}, Build(SimulationRequest{GasLimit: "500000"}, nil), testChain)
	assert.Equal(t, RatingOptimal, res.ExecutionResult.Efficiency.Rating)
}
