package tlv_test

import (
	"math"
	"testing"

	"github.com/horockey/fit/pkg/tlv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_EncodeVarint_Sizes(t *testing.T) {
	cases := map[uint32]int{
		0:              1,
		1:              1,
		127:            1,
		128:            2,
		32767:          3,
		16383:          2,
		8388607:        4,
		2097151:        3,
		math.MaxUint32: 5,
	}

	for v, size := range cases {
		enc := tlv.EncodeVarint(v)
		assert.Len(t, enc, size, "value %d", v)
		assert.Equal(t, size, tlv.VarintSize(v))
	}
}

func Test_EncodeVarint_GroupOrder(t *testing.T) {
	assert.Equal(t, []byte{0x00}, tlv.EncodeVarint(0))
	assert.Equal(t, []byte{0x7f}, tlv.EncodeVarint(127))
	assert.Equal(t, []byte{0x81, 0x00}, tlv.EncodeVarint(128))
	assert.Equal(t, []byte{0x81, 0x80, 0x00}, tlv.EncodeVarint(1<<14))
}

func Test_DecodeVarint_RoundTrip(t *testing.T) {
	values := []uint32{
		0, 1, 127, 128, 255, 300, 16383, 16384, 32767,
		8388607, 1 << 28, uint32(4294936296 % (1 << 32)), math.MaxUint32,
	}

	for _, v := range values {
		enc := tlv.EncodeVarint(v)
		dec, n, err := tlv.DecodeVarint(enc)
		require.NoError(t, err)
		assert.Equal(t, v, dec)
		assert.Equal(t, len(enc), n)
		assert.LessOrEqual(t, n, tlv.MaxVarintLen)
	}
}

func Test_DecodeVarint_StopsAtLastGroup(t *testing.T) {
	buf := append(tlv.EncodeVarint(300), 0xff, 0xff)

	v, n, err := tlv.DecodeVarint(buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(300), v)
	assert.Equal(t, 2, n)
}

func Test_DecodeVarint_Truncated(t *testing.T) {
	_, _, err := tlv.DecodeVarint([]byte{0x81, 0x80})
	assert.ErrorIs(t, err, tlv.ErrVarintTruncated)

	_, _, err = tlv.DecodeVarint(nil)
	assert.ErrorIs(t, err, tlv.ErrVarintTruncated)
}

func Test_DecodeVarint_Overflow(t *testing.T) {
	_, _, err := tlv.DecodeVarint([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0x01})
	assert.ErrorIs(t, err, tlv.ErrVarintOverflow)

	_, _, err = tlv.DecodeVarint([]byte{0x9f, 0xff, 0xff, 0xff, 0x7f})
	assert.ErrorIs(t, err, tlv.ErrVarintOverflow)
}
