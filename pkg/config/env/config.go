// Package env provides configs sourced from environment variables.
package env

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/code-payments/solana-prereq/pkg/config"
	"github.com/code-payments/solana-prereq/pkg/config/wrapper"
)

type variable string

// NewConfig returns a config backed by the upper cased key in the process
// environment. The variable is looked up on every Get, and an empty value
// counts as unset.
func NewConfig(key string) config.Config {
	return variable(strings.ToUpper(key))
}

func (v variable) Get(_ context.Context) (interface{}, error) {
	if raw := os.Getenv(string(v)); raw != "" {
		return []byte(raw), nil
	}
	return nil, config.ErrNoValue
}

func (variable) Shutdown() {}

func NewUint64Config(key string, defaultValue uint64) config.Uint64 {
	return wrapper.NewUint64Config(NewConfig(key), defaultValue)
}

func NewStringConfig(key string, defaultValue string) config.String {
	return wrapper.NewStringConfig(NewConfig(key), defaultValue)
}

// NewDurationConfig parses the variable with time.ParseDuration, e.g. "30s".
func NewDurationConfig(key string, defaultValue time.Duration) config.Duration {
	return wrapper.NewDurationConfig(NewConfig(key), defaultValue)
}
