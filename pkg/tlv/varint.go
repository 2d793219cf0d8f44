package tlv

import (
	"errors"
	"fmt"
)

// MaxVarintLen is the maximum encoded size of a uint32 varint.
const MaxVarintLen = 5

var (
	ErrVarintTruncated = errors.New("tlv: varint truncated")
	ErrVarintOverflow  = errors.New("tlv: varint overflows uint32")
)

// VarintSize returns the number of bytes EncodeVarint(v) produces.
func VarintSize(v uint32) int {
	n := 1
	for v >>= 7; v != 0; v >>= 7 {
		n++
	}
	return n
}

// EncodeVarint encodes v as base-128 groups, most significant group first.
// Every group except the last carries the continuation bit.
func EncodeVarint(v uint32) []byte {
	return AppendVarint(make([]byte, 0, VarintSize(v)), v)
}

// AppendVarint appends the encoding of v to buf.
func AppendVarint(buf []byte, v uint32) []byte {
	size := VarintSize(v)
	for i := size - 1; i >= 0; i-- {
		b := byte(v>>(7*uint(i))) & 0x7f
		if i != 0 {
			b |= 0x80
		}
		buf = append(buf, b)
	}
	return buf
}

// DecodeVarint reads a varint from the head of buf and returns the value
// together with the number of consumed bytes.
func DecodeVarint(buf []byte) (uint32, int, error) {
	var acc uint64
	for i, b := range buf {
		if i >= MaxVarintLen {
			return 0, 0, ErrVarintOverflow
		}
		acc = acc<<7 | uint64(b&0x7f)
		if b&0x80 == 0 {
			if acc > 0xFFFFFFFF {
				return 0, 0, ErrVarintOverflow
			}
			return uint32(acc), i + 1, nil
		}
	}
	return 0, 0, fmt.Errorf("decoding %d bytes: %w", len(buf), ErrVarintTruncated)
}
