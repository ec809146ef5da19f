// Package keyfile decodes and encodes wallet keys in the two forms the
// Solana tooling uses: the CLI's JSON byte array and base58 text.
package keyfile

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"os"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

var ErrInvalidKey = errors.New("invalid private key")

// Load reads a key file written by `solana-keygen`: a JSON array of the 64
// key bytes, seed followed by public key.
func Load(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read key file %s", path)
	}

	key, err := Unmarshal(data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode key file %s", path)
	}
	return key, nil
}

// Unmarshal decodes the JSON byte array form of a key.
func Unmarshal(data []byte) (ed25519.PrivateKey, error) {
	var values []int
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, errors.Wrap(ErrInvalidKey, err.Error())
	}

	raw := make([]byte, len(values))
	for i, v := range values {
		if v < 0 || v > 255 {
			return nil, errors.Wrapf(ErrInvalidKey, "value %d at %d is not a byte", v, i)
		}
		raw[i] = byte(v)
	}

	return fromBytes(raw)
}

// Marshal encodes key in the JSON byte array form read by Load.
func Marshal(key ed25519.PrivateKey) ([]byte, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, errors.Wrapf(ErrInvalidKey, "invalid size: %d", len(key))
	}

	values := make([]int, len(key))
	for i, b := range key {
		values[i] = int(b)
	}
	return json.Marshal(values)
}

// FromBase58 decodes the base58 form of a 64 byte key, as exported by
// browser wallets.
func FromBase58(s string) (ed25519.PrivateKey, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidKey, err.Error())
	}
	return fromBytes(raw)
}

func ToBase58(key ed25519.PrivateKey) string {
	return base58.Encode(key)
}

func fromBytes(raw []byte) (ed25519.PrivateKey, error) {
	if len(raw) != ed25519.PrivateKeySize {
		return nil, errors.Wrapf(ErrInvalidKey, "invalid size: %d", len(raw))
	}

	key := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
	if !bytes.Equal(key[ed25519.SeedSize:], raw[ed25519.SeedSize:]) {
		return nil, errors.Wrap(ErrInvalidKey, "public key does not match seed")
	}
	return key, nil
}
