package main

import "strings"

// friendlySimErr normalizes common node and transport errors for readable CLI.
func friendlySimErr(s string) string {
	ls := strings.ToLower(strings.TrimSpace(s))
	switch {
	case ls == "":
		return "unknown error"
	case strings.Contains(ls, "debug_tracecall"), strings.Contains(ls, "method not found"), strings.Contains(ls, "does not exist/is not available"):
		return "method not supported by this RPC endpoint"
	case strings.Contains(ls, "insufficient funds for gas"):
		return "insufficient HYPE for gas * price + value"
	case strings.Contains(ls, "invalid character '<'"):
		return "non-JSON/HTML response (proxy/cf?)"
	case strings.Contains(ls, "429"), strings.Contains(ls, "too many requests"):
		return "rate limited by RPC provider"
	case strings.Contains(ls, "request timed out"), strings.Contains(ls, "context deadline exceeded"):
		return "RPC request timed out"
	case strings.Contains(ls, "dial tcp"), strings.Contains(ls, "lookup "), strings.Contains(ls, "connection refused"):
		return "network/DNS error"
	}
	return s
}
