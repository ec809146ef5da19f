package solana

import (
	"fmt"
	"strings"
)

// Environment is the JSON RPC endpoint of a cluster.
type Environment string

const (
	EnvironmentDev  Environment = "https://api.devnet.solana.com"
	EnvironmentTest Environment = "https://api.testnet.solana.com"
	EnvironmentProd Environment = "https://api.mainnet-beta.solana.com"
)

// EnvironmentFromString accepts a cluster moniker (devnet, testnet,
// mainnet-beta) or an endpoint URL.
func EnvironmentFromString(s string) Environment {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "devnet", "dev":
		return EnvironmentDev
	case "testnet", "test":
		return EnvironmentTest
	case "mainnet-beta", "mainnet", "prod":
		return EnvironmentProd
	default:
		return Environment(strings.TrimSpace(s))
	}
}

// Cluster is the explorer's name for the environment, or the endpoint
// itself for custom clusters.
func (e Environment) Cluster() string {
	switch e {
	case EnvironmentDev:
		return "devnet"
	case EnvironmentTest:
		return "testnet"
	case EnvironmentProd:
		return "mainnet-beta"
	default:
		return string(e)
	}
}

// ExplorerURL links to sig on the Solana explorer.
func (e Environment) ExplorerURL(sig Signature) string {
	switch e {
	case EnvironmentProd:
		return fmt.Sprintf("https://explorer.solana.com/tx/%s", sig)
	case EnvironmentDev, EnvironmentTest:
		return fmt.Sprintf("https://explorer.solana.com/tx/%s?cluster=%s", sig, e.Cluster())
	default:
		return fmt.Sprintf("https://explorer.solana.com/tx/%s?cluster=custom&customUrl=%s", sig, e)
	}
}
