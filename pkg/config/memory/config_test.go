package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/code-payments/solana-prereq/pkg/config"
)

func TestConfig_Transitions(t *testing.T) {
	c := NewConfig(nil)

	for _, step := range []struct {
		name        string
		apply       func()
		expected    interface{}
		expectedErr error
	}{
		{name: "initially unset", apply: func() {}, expectedErr: config.ErrNoValue},
		{name: "set", apply: func() { c.SetValue("finalized") }, expected: "finalized"},
		{name: "overwritten", apply: func() { c.SetValue(uint64(42)) }, expected: uint64(42)},
		{name: "induced error", apply: c.InduceErrors, expectedErr: errDeveloperInduced},
		{name: "error cleared", apply: c.StopInducingErrors, expected: uint64(42)},
		{name: "cleared", apply: c.ClearValue, expectedErr: config.ErrNoValue},
		{name: "shutdown wins", apply: func() { c.SetValue("value"); c.InduceErrors(); c.Shutdown() }, expectedErr: config.ErrShutdown},
	} {
		step.apply()

		actual, err := c.Get(context.Background())
		assert.Equal(t, step.expectedErr, err, step.name)
		assert.Equal(t, step.expected, actual, step.name)
	}
}
