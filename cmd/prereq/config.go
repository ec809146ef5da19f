package main

import (
	"strings"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/code-payments/solana-prereq/pkg/metrics"
	"github.com/code-payments/solana-prereq/pkg/rate"
)

// Config is the command line configuration. Values come from flags, then
// environment variables (a .env file is loaded first), then the optional
// config file.
type Config struct {
	LogLevel string `mapstructure:"log_level"`

	AppName string `mapstructure:"app_name"`

	// Cluster is a cluster moniker (devnet, testnet, mainnet-beta) or a JSON
	// RPC endpoint URL.
	Cluster string `mapstructure:"solana_rpc_endpoint"`

	// RPCRateLimit caps requests per second for each RPC method. Zero
	// disables throttling.
	RPCRateLimit float64 `mapstructure:"solana_rpc_rate_limit"`

	// WalletPath is the keypair file used by commands that sign.
	WalletPath string `mapstructure:"wallet_path"`

	NewRelicLicenseKey string `mapstructure:"new_relic_license_key"`
}

var defaultConfig = Config{
	LogLevel:   "warn",
	AppName:    "solana-prereq",
	Cluster:    "devnet",
	WalletPath: "dev-wallet.json",
}

func newViper() *viper.Viper {
	v := viper.New()

	_ = v.BindEnv("log_level", "LOG_LEVEL")
	_ = v.BindEnv("app_name", "APP_NAME")
	_ = v.BindEnv("solana_rpc_endpoint", "SOLANA_RPC_ENDPOINT")
	_ = v.BindEnv("solana_rpc_rate_limit", "SOLANA_RPC_RATE_LIMIT")
	_ = v.BindEnv("wallet_path", "WALLET_PATH")
	_ = v.BindEnv("new_relic_license_key", "NEW_RELIC_LICENSE_KEY")

	v.SetDefault("log_level", defaultConfig.LogLevel)
	v.SetDefault("app_name", defaultConfig.AppName)
	v.SetDefault("solana_rpc_endpoint", defaultConfig.Cluster)
	v.SetDefault("solana_rpc_rate_limit", defaultConfig.RPCRateLimit)
	v.SetDefault("wallet_path", defaultConfig.WalletPath)

	return v
}

func loadConfig(v *viper.Viper, configPath string) (Config, error) {
	// viper.ReadInConfig only returns ConfigFileNotFoundError if it has to search
	// for a default config file. An explicitly set file that does not exist is
	// reported as a plain error.
	if configPath != "" {
		v.SetConfigFile(configPath)

		if err := v.ReadInConfig(); err != nil {
			if _, isConfigNotFound := err.(viper.ConfigFileNotFoundError); !isConfigNotFound {
				return Config{}, errors.Wrap(err, "failed to load config")
			}
		}
	}

	config := defaultConfig
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, errors.Wrap(err, "failed to unmarshal config")
	}
	return config, nil
}

func newLimiter(config Config) rate.Limiter {
	if config.RPCRateLimit <= 0 {
		return rate.NoLimiter{}
	}
	return rate.NewLocalLimiter(config.RPCRateLimit)
}

func newMetricsProvider(config Config) *newrelic.Application {
	if config.NewRelicLicenseKey == "" {
		return nil
	}

	nr, err := newrelic.NewApplication(
		newrelic.ConfigFromEnvironment(),
		newrelic.ConfigAppName(config.AppName),
		newrelic.ConfigLicense(config.NewRelicLicenseKey),
		newrelic.ConfigAppLogForwardingEnabled(true),
	)
	if err != nil {
		logrus.WithError(err).Error("error connecting to new relic")
		return nil
	}
	return nr
}

func configureLogger(config Config, metricsProvider *newrelic.Application) {
	if metricsProvider != nil {
		logrus.SetFormatter(metrics.NewLogFormatter(metricsProvider, &logrus.JSONFormatter{}))
	} else {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(strings.ToLower(config.LogLevel))
	if err != nil {
		logrus.StandardLogger().WithField("log_level", config.LogLevel).Warn("unknown log level, ignoring")
	} else {
		logrus.SetLevel(level)
	}
}
