package solana

import (
	"crypto/ed25519"
	"crypto/sha256"

	"github.com/jdgcs/ed25519/edwards25519"
	"github.com/pkg/errors"
)

const (
	maxSeeds      = 16
	maxSeedLength = 32

	pdaMarker = "ProgramDerivedAddress"
)

var (
	ErrTooManySeeds          = errors.New("too many seeds")
	ErrMaxSeedLengthExceeded = errors.New("max seed length exceeded")

	// ErrInvalidPublicKey is returned when the derived address lies on the
	// ed25519 curve and so may have a private key.
	ErrInvalidPublicKey = errors.New("invalid public key")

	// ErrDerivationExhausted is returned when no bump in [0, 255] yields an
	// address off the ed25519 curve.
	ErrDerivationExhausted = errors.New("no viable program address found")
)

var programHashCtor = sha256.New

// CreateProgramAddress returns sha256(seeds || program || "ProgramDerivedAddress"),
// rejecting digests that decode to a point on the ed25519 curve.
//
// Reference: https://github.com/solana-labs/solana/blob/5548e599fe4920b71766e0ad1d121755ce9c63d5/sdk/program/src/pubkey.rs#L158
func CreateProgramAddress(program ed25519.PublicKey, seeds ...[]byte) (ed25519.PublicKey, error) {
	if len(seeds) > maxSeeds {
		return nil, ErrTooManySeeds
	}
	for _, s := range seeds {
		if len(s) > maxSeedLength {
			return nil, ErrMaxSeedLengthExceeded
		}
	}

	h := programHashCtor()
	for _, s := range seeds {
		h.Write(s)
	}
	h.Write(program)
	h.Write([]byte(pdaMarker))

	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	if onCurve(&digest) {
		return nil, ErrInvalidPublicKey
	}

	return digest[:], nil
}

// FindProgramAddressAndBump searches bumps from 255 down to 0 and returns the
// first off-curve address derived from seeds plus the single bump byte.
//
// Reference: https://github.com/solana-labs/solana/blob/5548e599fe4920b71766e0ad1d121755ce9c63d5/sdk/program/src/pubkey.rs#L234
func FindProgramAddressAndBump(program ed25519.PublicKey, seeds ...[]byte) (ed25519.PublicKey, uint8, error) {
	bump := []byte{0}
	bumped := append(append(make([][]byte, 0, len(seeds)+1), seeds...), bump)

	for candidate := 255; candidate >= 0; candidate-- {
		bump[0] = byte(candidate)

		address, err := CreateProgramAddress(program, bumped...)
		switch {
		case err == nil:
			return address, bump[0], nil
		case !errors.Is(err, ErrInvalidPublicKey):
			return nil, 0, err
		}
	}

	return nil, 0, ErrDerivationExhausted
}

func FindProgramAddress(program ed25519.PublicKey, seeds ...[]byte) (ed25519.PublicKey, error) {
	address, _, err := FindProgramAddressAndBump(program, seeds...)
	return address, err
}

// onCurve reports whether b decompresses to a valid edwards25519 point.
func onCurve(b *[32]byte) bool {
	var p edwards25519.ExtendedGroupElement
	return p.FromBytes(b)
}
