// Package shortvec implements the compact-u16 length prefix used throughout
// the Solana wire format: seven bits per byte, least significant first,
// with the high bit marking a continuation.
package shortvec

import (
	"io"
	"math"

	"github.com/pkg/errors"
)

const maxEncodedSize = 3

// EncodeLen writes length to w and returns the number of bytes written.
// Lengths outside [0, math.MaxUint16] are rejected.
func EncodeLen(w io.Writer, length int) (int, error) {
	if length < 0 || length > math.MaxUint16 {
		return 0, errors.Errorf("len must be in [0, %d]", math.MaxUint16)
	}

	var encoded [maxEncodedSize]byte
	size := 0
	for {
		encoded[size] = byte(length & 0x7f)
		length >>= 7
		if length == 0 {
			size++
			break
		}

		encoded[size] |= 0x80
		size++
	}

	return w.Write(encoded[:size])
}

// DecodeLen reads a length written by EncodeLen.
func DecodeLen(r io.Reader) (int, error) {
	var next [1]byte

	val := 0
	for i := 0; i < maxEncodedSize; i++ {
		if _, err := io.ReadFull(r, next[:]); err != nil {
			return 0, err
		}

		val |= int(next[0]&0x7f) << (7 * i)
		if next[0]&0x80 != 0 {
			continue
		}

		if val > math.MaxUint16 {
			return 0, errors.Errorf("value exceeds %d", math.MaxUint16)
		}
		return val, nil
	}

	return 0, errors.Errorf("invalid size (max %d)", maxEncodedSize)
}
