package simulator

import (
	"encoding/json"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ligun0805/txsim/internal/ethrpc"
)

// Quantity is a loose numeric input. JSON numbers and strings both decode.
type Quantity string

func (q *Quantity) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*q = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		s = str
	}
	*q = Quantity(strings.TrimSpace(s))
	return nil
}

// SimulationRequest is the loose user input for one simulation.
type SimulationRequest struct {
	To                   string               `json:"to,omitempty"`
	From                 string               `json:"from,omitempty"`
	Data                 string               `json:"data,omitempty"`
	Value                Quantity             `json:"value,omitempty"`
	GasLimit             Quantity             `json:"gasLimit,omitempty"`
	GasPrice             Quantity             `json:"gasPrice,omitempty"`
	MaxFeePerGas         Quantity             `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas Quantity             `json:"maxPriorityFeePerGas,omitempty"`
	BlockNumber          Quantity             `json:"blockNumber,omitempty"`
	StateOverrides       ethrpc.StateOverride `json:"stateOverrides,omitempty"`
	AccessList           types.AccessList     `json:"accessList,omitempty"`
	Fake                 bool                 `json:"fake,omitempty"`
}

// BuiltTransaction is a normalized request. Exactly one of GasPrice or the
// MaxFeePerGas/MaxPriorityFeePerGas pair is set.
type BuiltTransaction struct {
	From                 common.Address
	To                   *common.Address
	Data                 []byte
	Value                *big.Int
	GasLimit             uint64
	GasPrice             *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	AccessList           types.AccessList
	StateOverrides       ethrpc.StateOverride

	explicitGas bool
}

// IsDeployment reports a contract creation.
func (tx *BuiltTransaction) IsDeployment() bool {
	return tx.To == nil && len(tx.Data) > 0
}

func (tx *BuiltTransaction) IsDynamicFee() bool {
	return tx.MaxFeePerGas != nil
}

// GasLimitExplicit reports whether the caller set the gas limit.
func (tx *BuiltTransaction) GasLimitExplicit() bool { return tx.explicitGas }

func (tx *BuiltTransaction) withFrom(from common.Address) *BuiltTransaction {
	cp := *tx
	cp.From = from
	return &cp
}

// callArgs renders the transaction for the eth_call family. The gas field is
// only sent when the caller chose a limit.
func (tx *BuiltTransaction) callArgs() ethrpc.CallArgs {
	args := ethrpc.CallArgs{
		From:  tx.From,
		To:    tx.To,
		Value: (*hexutil.Big)(tx.Value),
		Data:  tx.Data,
	}
	if tx.explicitGas {
		g := hexutil.Uint64(tx.GasLimit)
		args.Gas = &g
	}
	if tx.IsDynamicFee() {
		args.MaxFeePerGas = (*hexutil.Big)(tx.MaxFeePerGas)
		args.MaxPriorityFeePerGas = (*hexutil.Big)(tx.MaxPriorityFeePerGas)
	} else {
		args.GasPrice = (*hexutil.Big)(tx.GasPrice)
	}
	if len(tx.AccessList) > 0 {
		al := tx.AccessList
		args.AccessList = &al
	}
	return args
}

// RawResult is what the execution strategy hands to the analyzer. The
// execution succeeded exactly when Err is nil.
type RawResult struct {
	GasUsed     uint64
	ReturnData  []byte
	Logs        []ethrpc.CallLog
	Trace       *ethrpc.CallFrame
	StateDiff   *ethrpc.PrestateDiff
	AccessList  types.AccessList
	Tokens      map[common.Address]ethrpc.TokenMeta
	BlockNumber uint64
	Timestamp   int64
	Err         *SimError
}

func (r *RawResult) Success() bool { return r.Err == nil }

type (
	EfficiencyRating string
	Severity         string
	StateChangeType  string
	AssetType        string
	ChangeType       string
	Category         string
)

const (
	RatingOptimal  EfficiencyRating = "optimal"
	RatingGood     EfficiencyRating = "good"
	RatingModerate EfficiencyRating = "moderate"
	RatingPoor     EfficiencyRating = "poor"
)

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"

	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

func (s Severity) rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

const (
	ChangeStorage StateChangeType = "storage"
	ChangeBalance StateChangeType = "balance"
	ChangeNonce   StateChangeType = "nonce"
	ChangeCode    StateChangeType = "code"
)

const (
	AssetNative  AssetType = "ETH"
	AssetERC20   AssetType = "ERC20"
	AssetERC721  AssetType = "ERC721"
	AssetERC1155 AssetType = "ERC1155"
)

const (
	Sent     ChangeType = "sent"
	Received ChangeType = "received"
	Minted   ChangeType = "minted"
	Burned   ChangeType = "burned"
)

const (
	CategoryGas          Category = "gas"
	CategorySecurity     Category = "security"
	CategoryPerformance  Category = "performance"
	CategoryBestPractice Category = "best-practice"
)

type GasBreakdown struct {
	Intrinsic uint64 `json:"intrinsic"`
	Execution uint64 `json:"execution"`
	Calldata  uint64 `json:"calldata"`
}

func (g GasBreakdown) Total() uint64 { return g.Intrinsic + g.Execution + g.Calldata }

// GasEfficiency rates gas used against the gas limit. Without an explicit
// limit the limit is the estimate plus the wallet buffer, so the rating is
// always "good" and only tells something when the caller sets gasLimit.
type GasEfficiency struct {
	Ratio            float64          `json:"ratio"`
	Rating           EfficiencyRating `json:"rating"`
	Score            int              `json:"score"`
	PotentialSavings uint64           `json:"potentialSavings"`
	Suggestion       string           `json:"suggestion"`
}

type ExecutionResult struct {
	Status       string        `json:"status"`
	ReturnData   hexutil.Bytes `json:"returnData,omitempty"`
	RevertReason string        `json:"revertReason,omitempty"`
	GasBreakdown GasBreakdown  `json:"gasBreakdown"`
	Efficiency   GasEfficiency `json:"gasEfficiency"`
}

type StateChange struct {
	Address       common.Address  `json:"address"`
	Slot          string          `json:"slot,omitempty"`
	OldValue      string          `json:"oldValue"`
	NewValue      string          `json:"newValue"`
	Type          StateChangeType `json:"type"`
	HumanReadable string          `json:"humanReadable,omitempty"`
}

type EventCategory struct {
	Type   string `json:"type"`
	Impact string `json:"impact"`
}

// DecodedEvent is either a decoded ERC-20 Transfer (Decoded is true) or a raw
// log tagged UnknownEvent.
type DecodedEvent struct {
	Address         common.Address    `json:"address"`
	ContractAddress common.Address    `json:"contractAddress"`
	Topics          []common.Hash     `json:"topics"`
	Data            hexutil.Bytes     `json:"data"`
	EventName       string            `json:"eventName"`
	Signature       string            `json:"signature"`
	Args            map[string]string `json:"args,omitempty"`
	HumanReadable   string            `json:"humanReadable"`
	Category        *EventCategory    `json:"category,omitempty"`
	Decoded         bool              `json:"decoded"`
}

type AssetChange struct {
	Address    common.Address    `json:"address"`
	From       common.Address    `json:"from"`
	To         common.Address    `json:"to"`
	Amount     string            `json:"amount"`
	Formatted  string            `json:"formatted"`
	Type       AssetType         `json:"type"`
	TokenInfo  *ethrpc.TokenMeta `json:"tokenInfo,omitempty"`
	ChangeType ChangeType        `json:"changeType"`
}

type Vulnerability struct {
	Type           string   `json:"type"`
	Severity       Severity `json:"severity"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Recommendation string   `json:"recommendation"`
}

type SecurityAnalysis struct {
	RiskLevel       Severity        `json:"riskLevel"`
	Vulnerabilities []Vulnerability `json:"vulnerabilities"`
}

type Recommendation struct {
	Category    Category `json:"category"`
	Severity    Severity `json:"severity"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Solution    string   `json:"solution"`
	Impact      string   `json:"impact,omitempty"`
}

type TraceSummary struct {
	Calls []ethrpc.CallFrame `json:"calls"`
	Depth int                `json:"depth"`
}

// ChainInfo describes the network the simulation ran against.
type ChainInfo struct {
	ChainID      uint64 `json:"chainId"`
	Network      string `json:"network"`
	NativeSymbol string `json:"nativeSymbol"`
	BlockKind    string `json:"blockKind"`
	Confirmation string `json:"estimatedConfirmation"`
}

// SimulationResult is the complete outcome of one simulation. Every entry
// point returns a fully populated value, failed or not.
type SimulationResult struct {
	Success          bool             `json:"success"`
	GasUsed          uint64           `json:"gasUsed"`
	GasLimit         uint64           `json:"gasLimit"`
	BlockNumber      uint64           `json:"blockNumber"`
	Timestamp        int64            `json:"timestamp"`
	ExecutionResult  ExecutionResult  `json:"executionResult"`
	StateChanges     []StateChange    `json:"stateChanges"`
	Events           []DecodedEvent   `json:"events"`
	AssetChanges     []AssetChange    `json:"assetChanges"`
	Trace            TraceSummary     `json:"trace"`
	SecurityAnalysis SecurityAnalysis `json:"securityAnalysis"`
	Recommendations  []Recommendation `json:"recommendations"`
	ChainSpecific    ChainInfo        `json:"hyperevmSpecific"`
	AccessList       types.AccessList `json:"accessList,omitempty"`
	AutoBalanceUsed  bool             `json:"autoBalanceUsed,omitempty"`
	OriginalFrom     *common.Address  `json:"originalFrom,omitempty"`
	WhaleFrom        *common.Address  `json:"whaleFrom,omitempty"`
	Fake             bool             `json:"fake,omitempty"`
	Error            *SimError        `json:"error,omitempty"`
}
