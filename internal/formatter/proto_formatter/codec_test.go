package proto_formatter_test

import (
	"context"
	"testing"

	"github.com/horockey/fit/internal/formatter"
	"github.com/horockey/fit/internal/formatter/proto_formatter"
	"github.com/horockey/fit/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID string `json:"id"`
}

var meta = formatter.Meta{
	GenericID:  "mixed",
	Signature:  model.Signature{Out: []model.Kind{model.KindObject}},
	OutObjects: map[int]formatter.ObjectFactory{0: formatter.ObjectFactoryFor[item]()},
}

func Test_RequestRoundTrip(t *testing.T) {
	c := proto_formatter.New()
	ctx := context.Background()
	args := model.Arguments{
		model.Null(),
		model.Bool(false),
		model.Int(-7),
		model.Double(2),
		model.String("AQI="),
		model.Bytes([]byte{1, 2}),
		model.List(model.Double(3), model.List()),
		model.Map(map[string]model.Value{"b": model.Bytes([]byte{0}), "i": model.Int(1)}),
	}

	data, err := c.EncodeRequest(ctx, meta, args)
	require.NoError(t, err)

	got, err := c.DecodeRequest(ctx, meta, data)
	require.NoError(t, err)
	assert.Equal(t, args, got)
}

func Test_ResponseRoundTrip(t *testing.T) {
	c := proto_formatter.New()
	ctx := context.Background()
	resp := formatter.Response{Args: model.Arguments{model.Object(item{ID: "i1"})}}

	data, err := c.EncodeResponse(ctx, meta, resp)
	require.NoError(t, err)

	got, err := c.DecodeResponse(ctx, meta, data)
	require.NoError(t, err)
	assert.Equal(t, resp, got)
}

func Test_EmptyArgsDecodeAsNil(t *testing.T) {
	c := proto_formatter.New()
	ctx := context.Background()

	data, err := c.EncodeResponse(ctx, meta, formatter.Response{Code: model.CodeInternal, Msg: "boom"})
	require.NoError(t, err)

	got, err := c.DecodeResponse(ctx, meta, data)
	require.NoError(t, err)
	assert.Nil(t, got.Args)
	assert.Equal(t, model.CodeInternal, got.Code)

	args, err := c.DecodeRequest(ctx, meta, nil)
	require.NoError(t, err)
	assert.Nil(t, args)
}

func Test_TruncatedInput(t *testing.T) {
	c := proto_formatter.New()
	ctx := context.Background()

	data, err := c.EncodeRequest(ctx, meta, model.Arguments{model.String("hello")})
	require.NoError(t, err)

	_, err = c.DecodeRequest(ctx, meta, data[:len(data)-2])
	assert.ErrorIs(t, err, model.ErrDeserialize)
}
