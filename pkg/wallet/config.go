package wallet

import (
	"time"

	"github.com/code-payments/solana-prereq/pkg/config"
	"github.com/code-payments/solana-prereq/pkg/config/env"
	"github.com/code-payments/solana-prereq/pkg/config/memory"
	"github.com/code-payments/solana-prereq/pkg/config/wrapper"
)

const (
	envConfigPrefix = "WALLET_SERVICE_"

	CommitmentConfigEnvName = envConfigPrefix + "COMMITMENT"
	defaultCommitment       = "confirmed"

	AirdropLamportsConfigEnvName = envConfigPrefix + "AIRDROP_LAMPORTS"
	defaultAirdropLamports       = 2_000_000_000

	ConfirmationTimeoutConfigEnvName = envConfigPrefix + "CONFIRMATION_TIMEOUT"
	defaultConfirmationTimeout       = 30 * time.Second
)

type conf struct {
	commitment          config.String
	airdropLamports     config.Uint64
	confirmationTimeout config.Duration
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			commitment:          env.NewStringConfig(CommitmentConfigEnvName, defaultCommitment),
			airdropLamports:     env.NewUint64Config(AirdropLamportsConfigEnvName, defaultAirdropLamports),
			confirmationTimeout: env.NewDurationConfig(ConfirmationTimeoutConfigEnvName, defaultConfirmationTimeout),
		}
	}
}

type testOverrides struct {
	commitment          string
	airdropLamports     uint64
	confirmationTimeout time.Duration
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	return func() *conf {
		return &conf{
			commitment:          wrapper.NewStringConfig(memory.NewConfig(overrides.commitment), defaultCommitment),
			airdropLamports:     wrapper.NewUint64Config(memory.NewConfig(overrides.airdropLamports), defaultAirdropLamports),
			confirmationTimeout: wrapper.NewDurationConfig(memory.NewConfig(overrides.confirmationTimeout), defaultConfirmationTimeout),
		}
	}
}
