package rate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoLimiter(t *testing.T) {
	var l Limiter = NoLimiter{}
	for i := 0; i < 10000; i++ {
		assert.True(t, l.Allow("getBalance"))
	}
}

func TestLocalLimiter(t *testing.T) {
	l := NewLocalLimiter(2)

	for _, method := range []string{"getBalance", "sendTransaction"} {
		assert.True(t, l.Allow(method))
		assert.True(t, l.Allow(method))
		assert.False(t, l.Allow(method), method)
	}
}

func TestLocalLimiter_FractionalRate(t *testing.T) {
	l := NewLocalLimiter(0.5)

	assert.True(t, l.Allow("getSlot"))
	assert.False(t, l.Allow("getSlot"))
}
