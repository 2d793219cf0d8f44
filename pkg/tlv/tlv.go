// Package tlv implements the tag-length-value metadata codec used by message
// headers. Tags and lengths are encoded with the big-endian group varint of
// EncodeVarint.
package tlv

import (
	"bytes"
	"fmt"
	"maps"
	"slices"
)

var _ error = DeserializeError{}

type DeserializeError struct {
	Offset int
	Reason string
}

func (err DeserializeError) Error() string {
	return fmt.Sprintf("tlv: deserialize at offset %d: %s", err.Offset, err.Reason)
}

// TLV is a tag ordered map of byte string values.
// The zero value is ready to use.
type TLV struct {
	values map[uint32][]byte
}

func New() *TLV {
	return &TLV{values: map[uint32][]byte{}}
}

// SetTagValue upserts value under tag. The value is copied.
func (t *TLV) SetTagValue(tag uint32, value []byte) {
	if t.values == nil {
		t.values = map[uint32][]byte{}
	}
	t.values[tag] = bytes.Clone(value)
}

func (t *TLV) GetTagValue(tag uint32) ([]byte, bool) {
	v, found := t.values[tag]
	return v, found
}

func (t *TLV) Remove(tag uint32) {
	delete(t.values, tag)
}

func (t *TLV) Len() int {
	if t == nil {
		return 0
	}
	return len(t.values)
}

// Tags returns all tags in ascending order.
func (t *TLV) Tags() []uint32 {
	return slices.Sorted(maps.Keys(t.values))
}

// Equal reports whether both maps hold the same tag set and values.
// A nil map equals an empty one.
func (t *TLV) Equal(other *TLV) bool {
	if t == nil || other == nil {
		return t.Len() == 0 && other.Len() == 0
	}
	return maps.EqualFunc(t.values, other.values, bytes.Equal)
}

// Size is the exact length of Serialize output.
func (t *TLV) Size() int {
	size := 0
	for tag, v := range t.values {
		size += VarintSize(tag) + VarintSize(uint32(len(v))) + len(v)
	}
	return size
}

// Serialize emits varint(tag) || varint(len) || value for each entry
// in ascending tag order.
func (t *TLV) Serialize() []byte {
	buf := make([]byte, 0, t.Size())
	for _, tag := range t.Tags() {
		v := t.values[tag]
		buf = AppendVarint(buf, tag)
		buf = AppendVarint(buf, uint32(len(v)))
		buf = append(buf, v...)
	}
	return buf
}

// Deserialize parses buf. Unknown tags are kept as is.
func Deserialize(buf []byte) (*TLV, error) {
	res := New()
	offset := 0
	for offset < len(buf) {
		tag, n, err := DecodeVarint(buf[offset:])
		if err != nil {
			return nil, DeserializeError{Offset: offset, Reason: fmt.Sprintf("reading tag: %s", err)}
		}
		offset += n

		size, n, err := DecodeVarint(buf[offset:])
		if err != nil {
			return nil, DeserializeError{Offset: offset, Reason: fmt.Sprintf("reading length: %s", err)}
		}
		offset += n

		if uint64(size) > uint64(len(buf)-offset) {
			return nil, DeserializeError{
				Offset: offset,
				Reason: fmt.Sprintf("declared length %d exceeds remaining %d bytes", size, len(buf)-offset),
			}
		}

		res.values[tag] = bytes.Clone(buf[offset : offset+int(size)])
		offset += int(size)
	}
	return res, nil
}
