// Package memory provides an in memory config for tests.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/code-payments/solana-prereq/pkg/config"
)

var errDeveloperInduced = errors.New("in memory config: developer induced error")

// Config is an in memory config used for testing
type Config struct {
	mu       sync.RWMutex
	value    interface{}
	err      error
	shutdown bool
}

// NewConfig returns a new in memory config. Use an initial nil value to indicate
// no value is set
func NewConfig(value interface{}) *Config {
	return &Config{value: value}
}

// Get implements Config.Get
func (c *Config) Get(_ context.Context) (interface{}, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch {
	case c.shutdown:
		return nil, config.ErrShutdown
	case c.err != nil:
		return nil, c.err
	case c.value == nil:
		return nil, config.ErrNoValue
	default:
		return c.value, nil
	}
}

// Shutdown implements Config.Shutdown
func (c *Config) Shutdown() {
	c.update(func() { c.shutdown = true })
}

// SetValue sets the value that should be returned on subsequent Get calls
func (c *Config) SetValue(value interface{}) {
	c.update(func() { c.value = value })
}

// ClearValue results in ErrNoValue being returned on subsequent Get calls
func (c *Config) ClearValue() {
	c.update(func() { c.value = nil })
}

// InduceErrors simulates a failing config source until StopInducingErrors
// is called.
func (c *Config) InduceErrors() {
	c.update(func() { c.err = errDeveloperInduced })
}

func (c *Config) StopInducingErrors() {
	c.update(func() { c.err = nil })
}

func (c *Config) update(fn func()) {
	c.mu.Lock()
	fn()
	c.mu.Unlock()
}
