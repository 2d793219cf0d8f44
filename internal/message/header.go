// Package message implements the request/response envelope:
// a fixed preamble, a varint-prefixed meta section with a TLV extension
// block, then the formatter body.
package message

import (
	"encoding/binary"
	"fmt"
	"maps"
	"slices"

	"github.com/horockey/fit/internal/model"
	"github.com/horockey/fit/pkg/tlv"
)

const (
	// MessageHeaderLen is the size of the fixed preamble:
	// version u16 | format u8 | kind u8 | code u32 | bodyLen u32.
	MessageHeaderLen = 12

	ProtocolVersion uint16 = 2
)

// Reserved extension tags.
const (
	TagGlobalContext    uint32 = 1
	TagExceptionContext uint32 = 2
)

type Kind uint8

const (
	KindRequest Kind = iota
	KindResponse
)

type Header struct {
	Version        uint16
	Format         model.Format
	Kind           Kind
	Code           model.Code
	GenericVersion string
	GenericID      string
	FitableID      string
	AccessToken    string
	Ext            *tlv.TLV
}

func NewRequestHeader(f model.Fitable, format model.Format, token string) Header {
	return Header{
		Version:        ProtocolVersion,
		Format:         format,
		Kind:           KindRequest,
		GenericVersion: f.GenericVersion,
		GenericID:      f.GenericID,
		FitableID:      f.FitableID,
		AccessToken:    token,
		Ext:            tlv.New(),
	}
}

// NewResponseHeader mirrors req. A non-nil err sets the code and the
// exception context.
func NewResponseHeader(req Header, err error) Header {
	h := Header{
		Version:        ProtocolVersion,
		Format:         req.Format,
		Kind:           KindResponse,
		Code:           model.CodeOf(err),
		GenericVersion: req.GenericVersion,
		GenericID:      req.GenericID,
		FitableID:      req.FitableID,
		Ext:            tlv.New(),
	}
	if err != nil {
		h.SetException(err.Error())
	}
	return h
}

func (h *Header) ext() *tlv.TLV {
	if h.Ext == nil {
		h.Ext = tlv.New()
	}
	return h.Ext
}

func (h *Header) SetGlobalContext(gc map[string]string) {
	h.ext().SetTagValue(TagGlobalContext, EncodeStringMap(gc))
}

func (h *Header) GlobalContext() (map[string]string, error) {
	raw, found := h.ext().GetTagValue(TagGlobalContext)
	if !found {
		return map[string]string{}, nil
	}
	return DecodeStringMap(raw)
}

func (h *Header) SetException(msg string) {
	h.ext().SetTagValue(TagExceptionContext, []byte(msg))
}

func (h *Header) Exception() string {
	raw, _ := h.ext().GetTagValue(TagExceptionContext)
	return string(raw)
}

// Err rebuilds the error carried by a response header.
func (h *Header) Err() error {
	return model.ErrorOf(h.Code, h.Exception())
}

func (h *Header) meta() []byte {
	ext := h.ext().Serialize()
	buf := []byte{}
	for _, s := range []string{h.GenericVersion, h.GenericID, h.FitableID, h.AccessToken} {
		buf = appendString(buf, s)
	}
	buf = tlv.AppendVarint(buf, uint32(len(ext)))
	return append(buf, ext...)
}

// Build lays out the envelope. The built buffer is checked against
// MessageHeaderLen + meta + body before it is handed to a transport.
func Build(h Header, body []byte) ([]byte, error) {
	meta := h.meta()
	expected := MessageHeaderLen + len(meta) + len(body)

	buf := make([]byte, MessageHeaderLen, expected)
	binary.BigEndian.PutUint16(buf[0:2], h.Version)
	buf[2] = byte(h.Format)
	buf[3] = byte(h.Kind)
	binary.BigEndian.PutUint32(buf[4:8], uint32(h.Code))
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(body)))
	buf = append(buf, meta...)
	buf = append(buf, body...)

	if len(buf) != expected {
		return nil, model.NewError(model.CodeInternal, "malformed header: built %d bytes, expected %d", len(buf), expected)
	}
	return buf, nil
}

// Parse splits buf into header and body.
func Parse(buf []byte) (Header, []byte, error) {
	if len(buf) < MessageHeaderLen {
		return Header{}, nil, model.NewError(model.CodeDeserialize, "message of %d bytes is shorter than header", len(buf))
	}

	h := Header{
		Version: binary.BigEndian.Uint16(buf[0:2]),
		Format:  model.Format(buf[2]),
		Kind:    Kind(buf[3]),
		Code:    model.Code(binary.BigEndian.Uint32(buf[4:8])),
	}
	bodyLen := binary.BigEndian.Uint32(buf[8:12])

	rest := buf[MessageHeaderLen:]
	for _, dst := range []*string{&h.GenericVersion, &h.GenericID, &h.FitableID, &h.AccessToken} {
		s, n, err := consumeString(rest)
		if err != nil {
			return Header{}, nil, model.NewError(model.CodeDeserialize, "reading header meta: %s", err)
		}
		*dst = s
		rest = rest[n:]
	}

	extBuf, n, err := consumeBytes(rest)
	if err != nil {
		return Header{}, nil, model.NewError(model.CodeDeserialize, "reading extension block: %s", err)
	}
	rest = rest[n:]

	h.Ext, err = tlv.Deserialize(extBuf)
	if err != nil {
		return Header{}, nil, model.NewError(model.CodeDeserialize, "%s", err)
	}

	if uint64(len(rest)) != uint64(bodyLen) {
		return Header{}, nil, model.NewError(model.CodeDeserialize, "body size mismatch: declared %d, got %d", bodyLen, len(rest))
	}
	return h, rest, nil
}

// EncodeStringMap writes varint(count) followed by key ordered
// length-prefixed pairs.
func EncodeStringMap(m map[string]string) []byte {
	buf := tlv.AppendVarint(nil, uint32(len(m)))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		buf = appendString(buf, k)
		buf = appendString(buf, m[k])
	}
	return buf
}

func DecodeStringMap(buf []byte) (map[string]string, error) {
	count, n, err := tlv.DecodeVarint(buf)
	if err != nil {
		return nil, fmt.Errorf("reading map size: %w", err)
	}
	buf = buf[n:]

	res := make(map[string]string, min(int(count), len(buf)))
	for range count {
		k, n, err := consumeString(buf)
		if err != nil {
			return nil, fmt.Errorf("reading key: %w", err)
		}
		buf = buf[n:]

		v, n, err := consumeString(buf)
		if err != nil {
			return nil, fmt.Errorf("reading value of %s: %w", k, err)
		}
		buf = buf[n:]
		res[k] = v
	}
	return res, nil
}

func appendString(buf []byte, s string) []byte {
	buf = tlv.AppendVarint(buf, uint32(len(s)))
	return append(buf, s...)
}

func consumeString(buf []byte) (string, int, error) {
	b, n, err := consumeBytes(buf)
	return string(b), n, err
}

func consumeBytes(buf []byte) ([]byte, int, error) {
	size, n, err := tlv.DecodeVarint(buf)
	if err != nil {
		return nil, 0, err
	}
	if uint64(size) > uint64(len(buf)-n) {
		return nil, 0, fmt.Errorf("declared length %d exceeds remaining %d bytes", size, len(buf)-n)
	}
	return buf[n : n+int(size)], n + int(size), nil
}
