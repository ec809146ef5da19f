package shortvec

import (
	"bytes"
	"math"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShortVec_Stream(t *testing.T) {
	buf := &bytes.Buffer{}
	for length := 0; length <= math.MaxUint16; length++ {
		n, err := EncodeLen(buf, length)
		require.NoError(t, err)

		switch {
		case length < 1<<7:
			require.Equal(t, 1, n)
		case length < 1<<14:
			require.Equal(t, 2, n)
		default:
			require.Equal(t, 3, n)
		}
	}

	for expected := 0; expected <= math.MaxUint16; expected++ {
		actual, err := DecodeLen(buf)
		require.NoError(t, err)
		require.Equal(t, expected, actual)
	}
	assert.Zero(t, buf.Len())
}

func TestShortVec_CrossImpl(t *testing.T) {
	for _, tc := range []struct {
		val     int
		encoded []byte
	}{
		{0x0, []byte{0x0}},
		{0x7f, []byte{0x7f}},
		{0x80, []byte{0x80, 0x01}},
		{0xff, []byte{0xff, 0x01}},
		{0x100, []byte{0x80, 0x02}},
		{0x7fff, []byte{0xff, 0xff, 0x01}},
		{0xffff, []byte{0xff, 0xff, 0x03}},
	} {
		buf := &bytes.Buffer{}
		n, err := EncodeLen(buf, tc.val)
		require.NoError(t, err)
		assert.Equal(t, len(tc.encoded), n)
		assert.Equal(t, tc.encoded, buf.Bytes())

		var expected []byte
		bin.EncodeCompactU16Length(&expected, tc.val)
		assert.Equal(t, expected, buf.Bytes())

		decoded, err := bin.NewBinDecoder(buf.Bytes()).ReadCompactU16()
		require.NoError(t, err)
		assert.Equal(t, tc.val, decoded)
	}
}

func TestShortVec_Invalid(t *testing.T) {
	_, err := EncodeLen(&bytes.Buffer{}, math.MaxUint16+1)
	assert.Error(t, err)

	_, err = EncodeLen(&bytes.Buffer{}, -1)
	assert.Error(t, err)

	for _, encoded := range [][]byte{
		{},
		{0x80},
		{0xff, 0xff},
		{0x80, 0x80, 0x80, 0x01},
		{0xff, 0xff, 0x04},
	} {
		_, err := DecodeLen(bytes.NewBuffer(encoded))
		assert.Error(t, err, "%x", encoded)
	}
}
