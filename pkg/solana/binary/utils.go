// Package binary has offset-tracking little endian helpers for program
// instruction and account data.
package binary

import (
	"crypto/ed25519"
	"encoding/binary"

	"github.com/pkg/errors"
)

// ErrShortBuffer is returned when a length prefixed field runs past the end
// of the source buffer.
var ErrShortBuffer = errors.New("buffer too short")

func PutKey32(dst []byte, src []byte, offset *int) {
	copy(dst, src)
	*offset += ed25519.PublicKeySize
}

func PutUint64(dst []byte, v uint64, offset *int) {
	binary.LittleEndian.PutUint64(dst, v)
	*offset += 8
}

func PutUint32(dst []byte, v uint32, offset *int) {
	binary.LittleEndian.PutUint32(dst, v)
	*offset += 4
}

// PutBytes writes v as a borsh Vec<u8>: a u32 length followed by the raw
// bytes.
func PutBytes(dst []byte, v []byte, offset *int) {
	PutUint32(dst, uint32(len(v)), offset)
	copy(dst[4:], v)
	*offset += len(v)
}

// BytesSize is the encoded size of v when written with PutBytes.
func BytesSize(v []byte) int {
	return 4 + len(v)
}

func GetKey32(src []byte, dst *ed25519.PublicKey, offset *int) {
	*dst = make([]byte, ed25519.PublicKeySize)
	copy(*dst, src)
	*offset += ed25519.PublicKeySize
}

func GetUint64(src []byte, dst *uint64, offset *int) {
	*dst = binary.LittleEndian.Uint64(src)
	*offset += 8
}

func GetUint32(src []byte, dst *uint32, offset *int) {
	*dst = binary.LittleEndian.Uint32(src)
	*offset += 4
}

// GetBytes reads a borsh Vec<u8> written by PutBytes.
func GetBytes(src []byte, dst *[]byte, offset *int) error {
	if len(src) < 4 {
		return errors.Wrap(ErrShortBuffer, "missing length prefix")
	}

	var size uint32
	GetUint32(src, &size, offset)

	if uint64(len(src)-4) < uint64(size) {
		return errors.Wrapf(ErrShortBuffer, "expected %d bytes, have %d", size, len(src)-4)
	}

	*dst = make([]byte, size)
	copy(*dst, src[4:4+size])
	*offset += int(size)
	return nil
}
