// Package config has the runtime settings abstraction used by services. A
// Config is an untyped source, such as the process environment, and a Value
// is a typed view over a source with a default.
package config

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrNoValue  = errors.New("config: no value set")
	ErrShutdown = errors.New("config: shutdown")
)

// Config is a source of raw configuration values.
type Config interface {
	// Get returns the current raw value, or ErrNoValue when the source has
	// none.
	Get(ctx context.Context) (interface{}, error)

	Shutdown()
}

// Value is a typed view over a Config.
type Value[T any] interface {
	// Get returns the latest value, falling back to the last known or default
	// value when the underlying config fails.
	Get(ctx context.Context) T

	// GetSafe is Get, but surfaces the error from the underlying config.
	GetSafe(ctx context.Context) (T, error)

	Shutdown()
}

type (
	Duration = Value[time.Duration]
	Uint64   = Value[uint64]
	String   = Value[string]
)
