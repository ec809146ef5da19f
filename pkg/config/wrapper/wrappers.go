package wrapper

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/code-payments/solana-prereq/pkg/config"
)

// ErrUnsuportedConversion indicates the wrapper does not implement conversion from the source type
var ErrUnsuportedConversion = errors.New("config: wrapper conversion from source type not implemented")

type converter[T any] func(raw interface{}) (T, error)

// valueConfig adapts an untyped config.Config into a config.Value. Values
// read from env arrive as []byte and are parsed, while in memory configs may
// hold the target type directly.
type valueConfig[T any] struct {
	override     config.Config
	defaultValue T
	convert      converter[T]

	stateMu   sync.RWMutex
	lastValue T
}

func newValueConfig[T any](override config.Config, defaultValue T, convert converter[T]) *valueConfig[T] {
	return &valueConfig[T]{
		override:     override,
		defaultValue: defaultValue,
		convert:      convert,
		lastValue:    defaultValue,
	}
}

// GetSafe gets a config value and propagates any errors that arise. A best-effort
// attempt is made to return the last known value
func (c *valueConfig[T]) GetSafe(ctx context.Context) (T, error) {
	raw, err := c.override.Get(ctx)

	c.stateMu.RLock()
	lastValue := c.lastValue
	c.stateMu.RUnlock()

	if errors.Is(err, config.ErrNoValue) {
		c.set(c.defaultValue)
		return c.defaultValue, nil
	} else if err != nil {
		return lastValue, err
	}

	value, err := c.convert(raw)
	if err != nil {
		return lastValue, err
	}

	c.set(value)
	return value, nil
}

// Get is a wrapper for GetSafe that ignores the returned error
func (c *valueConfig[T]) Get(ctx context.Context) T {
	val, _ := c.GetSafe(ctx)
	return val
}

// Shutdown signals the config to stop all underlying resources
func (c *valueConfig[T]) Shutdown() {
	c.override.Shutdown()
}

func (c *valueConfig[T]) set(value T) {
	c.stateMu.Lock()
	c.lastValue = value
	c.stateMu.Unlock()
}

// NewUint64Config returns a new uint64 config utility wrapper
func NewUint64Config(override config.Config, defaultValue uint64) config.Uint64 {
	return newValueConfig(override, defaultValue, func(raw interface{}) (uint64, error) {
		switch typed := raw.(type) {
		case []byte:
			return strconv.ParseUint(strings.TrimSpace(string(typed)), 10, 64)
		case uint64:
			return typed, nil
		case uint:
			return uint64(typed), nil
		case int:
			if typed < 0 {
				return 0, errors.Errorf("config: negative value %d for uint64", typed)
			}
			return uint64(typed), nil
		default:
			return 0, ErrUnsuportedConversion
		}
	})
}

// NewStringConfig returns a new string config utility wrapper
func NewStringConfig(override config.Config, defaultValue string) config.String {
	return newValueConfig(override, defaultValue, func(raw interface{}) (string, error) {
		switch typed := raw.(type) {
		case []byte:
			return string(typed), nil
		case string:
			return typed, nil
		default:
			return "", ErrUnsuportedConversion
		}
	})
}

// NewDurationConfig returns a new time.Duration config utility wrapper.
// Byte values are parsed with time.ParseDuration, with a bare integer taken
// as seconds.
func NewDurationConfig(override config.Config, defaultValue time.Duration) config.Duration {
	return newValueConfig(override, defaultValue, func(raw interface{}) (time.Duration, error) {
		switch typed := raw.(type) {
		case []byte:
			s := strings.TrimSpace(string(typed))
			if seconds, err := strconv.ParseUint(s, 10, 32); err == nil {
				return time.Duration(seconds) * time.Second, nil
			}
			return time.ParseDuration(s)
		case time.Duration:
			return typed, nil
		default:
			return 0, ErrUnsuportedConversion
		}
	})
}
