package simulator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// ErrorKind classifies a failed simulation.
type ErrorKind int

const (
	KindRevert ErrorKind = iota + 1
	KindUnpredictableGas
	KindInsufficientFunds
	KindTimeout
	KindTransport
	KindBundleAborted
)

var kindNames = map[ErrorKind]string{
	KindRevert:            "revert",
	KindUnpredictableGas:  "unpredictable_gas_limit",
	KindInsufficientFunds: "insufficient_funds",
	KindTimeout:           "timeout",
	KindTransport:         "transport",
	KindBundleAborted:     "bundle_aborted",
}

func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func (k ErrorKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *ErrorKind) UnmarshalText(b []byte) error {
	for kind, name := range kindNames {
		if name == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown error kind %q", b)
}

// ErrBundleAborted is the reason recorded for bundle entries never sent.
const ErrBundleAborted = "previous transaction in bundle failed"

// SimError is the typed failure carried by a result.
type SimError struct {
	Kind         ErrorKind     `json:"kind"`
	Message      string        `json:"message"`
	RevertReason string        `json:"revertReason,omitempty"`
	Data         hexutil.Bytes `json:"data,omitempty"`
}

func (e *SimError) Error() string {
	if e.RevertReason != "" && e.RevertReason != e.Message {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.RevertReason)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Retryable reports failures that may pass on a plain resend.
func (e *SimError) Retryable() bool {
	return e.Kind == KindTimeout || e.Kind == KindTransport
}

// Reason is the most specific human text available.
func (e *SimError) Reason() string {
	if e.RevertReason != "" {
		return e.RevertReason
	}
	return e.Message
}

// combineErrors folds the eth_estimateGas and eth_call outcomes into one
// classification. The call error wins since it carries revert data; an
// estimate-only revert means the gas limit cannot be predicted.
func combineErrors(estErr, callErr error) *SimError {
	est, call := classify(estErr), classify(callErr)
	switch {
	case est == nil && call == nil:
		return nil
	case est != nil && est.Kind == KindInsufficientFunds:
		return est
	case call != nil:
		return call
	}
	if est.Kind == KindRevert {
		est.Kind = KindUnpredictableGas
	}
	return est
}

// errcodeTimeout is the code geth uses for a request that timed out server side.
const errcodeTimeout = -32002

// classify maps a transport-level error onto an ErrorKind. Reverts are
// recognized first, so a revert reason never decides the kind by its text.
func classify(err error) *SimError {
	if err == nil {
		return nil
	}
	msg := err.Error()
	lower := strings.ToLower(msg)

	var rpcErr rpc.Error
	isRPC := errors.As(err, &rpcErr)
	if payload := dataPayload(err); len(payload) > 0 || (isRPC && strings.Contains(lower, "execution reverted")) {
		se := &SimError{Kind: KindRevert, Message: msg}
		if len(payload) > 0 {
			se.Data = payload
			se.RevertReason = decodeRevert(payload)
		}
		if se.RevertReason == "" {
			se.RevertReason = reasonFromMessage(msg)
		}
		return se
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) ||
		(isRPC && rpcErr.ErrorCode() == errcodeTimeout) {
		return &SimError{Kind: KindTimeout, Message: "request timed out: " + msg}
	}
	switch {
	case strings.Contains(lower, "insufficient funds"):
		return &SimError{Kind: KindInsufficientFunds, Message: msg}
	case strings.Contains(lower, "gas required exceeds"),
		strings.Contains(lower, "cannot estimate gas"),
		strings.Contains(lower, "unpredictable gas limit"):
		return &SimError{Kind: KindUnpredictableGas, Message: msg, RevertReason: reasonFromMessage(msg)}
	}

	if !isRPC || rpcErr.ErrorCode() == -32601 || rpcErr.ErrorCode() == -32005 {
		return &SimError{Kind: KindTransport, Message: msg}
	}
	return &SimError{Kind: KindRevert, Message: msg, RevertReason: reasonFromMessage(msg)}
}

func dataPayload(err error) []byte {
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return nil
	}
	return revertPayload(dataErr.ErrorData())
}

func revertPayload(data interface{}) []byte {
	s, ok := data.(string)
	if !ok {
		return nil
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil
	}
	return b
}

// decodeRevert turns revert data into text: the standard Error(string) and
// Panic(uint256) encodings first, then a printable UTF-8 tail, else the hex.
func decodeRevert(payload []byte) string {
	if reason, err := abi.UnpackRevert(payload); err == nil && reason != "" {
		return reason
	}
	tail := payload
	if len(tail) > 4 {
		tail = tail[4:]
	}
	if len(tail) > 64 {
		tail = tail[64:]
	}
	if s := strings.TrimRight(string(tail), "\x00"); s != "" && isPrintable(s) {
		return s
	}
	return hexutil.Encode(payload)
}

func isPrintable(s string) bool {
	if !utf8.ValidString(s) {
		return false
	}
	for _, r := range s {
		if !unicode.IsPrint(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// reasonFromMessage keeps the node's text starting at "execution reverted".
func reasonFromMessage(msg string) string {
	const marker = "execution reverted"
	i := strings.Index(msg, marker)
	if i < 0 {
		return msg
	}
	rest := strings.TrimSpace(strings.TrimPrefix(msg[i+len(marker):], ":"))
	if rest == "" {
		return msg[i:]
	}
	return rest
}
