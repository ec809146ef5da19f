package testutil

import (
	"crypto/ed25519"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
)

func TestSeededKeypair(t *testing.T) {
	key := SeededKeypair(1)
	assert.Equal(t, "9C6hybhQ6Aycep9jaUnP6uL9ZYvDjUp1aSkFWPUFJtpj", base58.Encode(PublicKey(key)))
	assert.Equal(t, key, SeededKeypair(1))
	assert.NotEqual(t, key, SeededKeypair(2))
}

func TestGenerateSolanaKeys(t *testing.T) {
	keys := GenerateSolanaKeys(t, 3)
	for _, key := range keys {
		assert.Len(t, key, ed25519.PublicKeySize)
	}
	assert.NotEqual(t, keys[0], keys[1])
}
