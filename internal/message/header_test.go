package message_test

import (
	"errors"
	"testing"

	"github.com/horockey/fit/internal/message"
	"github.com/horockey/fit/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testFitable = model.Fitable{
	GenericID:      "gen-1",
	GenericVersion: "1.0.0",
	FitableID:      "fit-1",
	FitableVersion: "1.0.0",
}

func Test_BuildParse_Request(t *testing.T) {
	h := message.NewRequestHeader(testFitable, model.FormatJSON, "token-abc")
	h.SetGlobalContext(map[string]string{"trace": "t-1", "tenant": "acme"})
	h.Ext.SetTagValue(42, []byte("unknown-tag"))

	body := []byte(`[1,2,3]`)
	buf, err := message.Build(h, body)
	require.NoError(t, err)

	got, gotBody, err := message.Parse(buf)
	require.NoError(t, err)

	assert.Equal(t, message.ProtocolVersion, got.Version)
	assert.Equal(t, model.FormatJSON, got.Format)
	assert.Equal(t, message.KindRequest, got.Kind)
	assert.Equal(t, "gen-1", got.GenericID)
	assert.Equal(t, "1.0.0", got.GenericVersion)
	assert.Equal(t, "fit-1", got.FitableID)
	assert.Equal(t, "token-abc", got.AccessToken)
	assert.Equal(t, body, gotBody)

	gc, err := got.GlobalContext()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"trace": "t-1", "tenant": "acme"}, gc)

	v, found := got.Ext.GetTagValue(42)
	require.True(t, found)
	assert.Equal(t, []byte("unknown-tag"), v)
}

func Test_BuildParse_ResponseError(t *testing.T) {
	req := message.NewRequestHeader(testFitable, model.FormatProtobuf, "")
	resp := message.NewResponseHeader(req, model.NewError(model.CodeNotFound, "no such fitable"))

	buf, err := message.Build(resp, nil)
	require.NoError(t, err)

	got, body, err := message.Parse(buf)
	require.NoError(t, err)
	assert.Empty(t, body)
	assert.Equal(t, message.KindResponse, got.Kind)
	assert.Equal(t, model.CodeNotFound, got.Code)
	assert.Contains(t, got.Exception(), "no such fitable")
	assert.True(t, errors.Is(got.Err(), model.ErrNotFound))
}

func Test_Parse_BodySizeMismatch(t *testing.T) {
	h := message.NewRequestHeader(testFitable, model.FormatJSON, "")
	buf, err := message.Build(h, []byte("body"))
	require.NoError(t, err)

	_, _, err = message.Parse(buf[:len(buf)-1])
	assert.ErrorIs(t, err, model.ErrDeserialize)

	_, _, err = message.Parse(append(buf, 0x00))
	assert.ErrorIs(t, err, model.ErrDeserialize)
}

func Test_Parse_ShortBuffer(t *testing.T) {
	_, _, err := message.Parse(make([]byte, message.MessageHeaderLen-1))
	assert.ErrorIs(t, err, model.ErrDeserialize)
}

func Test_Parse_TruncatedMeta(t *testing.T) {
	h := message.NewRequestHeader(testFitable, model.FormatJSON, "token")
	buf, err := message.Build(h, nil)
	require.NoError(t, err)

	_, _, err = message.Parse(buf[:message.MessageHeaderLen+3])
	assert.ErrorIs(t, err, model.ErrDeserialize)
}

func Test_StringMap_RoundTrip(t *testing.T) {
	src := map[string]string{"a": "1", "b": "", "": "empty-key"}

	dst, err := message.DecodeStringMap(message.EncodeStringMap(src))
	require.NoError(t, err)
	assert.Equal(t, src, dst)

	_, err = message.DecodeStringMap([]byte{0x02, 0x01, 'a'})
	assert.Error(t, err)
}
