package integrity

import (
	"net/url"
	"strings"
)

// ExplorerTxURL guesses a block explorer link for txHash from the RPC
// endpoint's hostname. It returns "" when no network can be inferred.
func ExplorerTxURL(rpcURL, txHash string) string {
	if rpcURL == "" || txHash == "" {
		return ""
	}
	host := rpcURL
	if u, err := url.Parse(rpcURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	host = strings.ToLower(host)

	switch {
	case strings.Contains(host, "polygon"), strings.Contains(host, "matic"):
		return "https://polygonscan.com/tx/" + txHash
	case strings.Contains(host, "sepolia"), strings.Contains(host, "ethereum"):
		return "https://sepolia.etherscan.io/tx/" + txHash
	case strings.Contains(host, "mainnet"):
		return "https://etherscan.io/tx/" + txHash
	default:
		return ""
	}
}
