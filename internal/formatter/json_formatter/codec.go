package json_formatter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/horockey/fit/internal/formatter"
	"github.com/horockey/fit/internal/model"
)

var _ formatter.Codec = &jsonCodec{}

type jsonCodec struct{}

func New() *jsonCodec {
	return &jsonCodec{}
}

type responseDTO struct {
	Code model.Code        `json:"code"`
	Msg  string            `json:"msg,omitempty"`
	Args []json.RawMessage `json:"args"`
}

func (c *jsonCodec) Format() model.Format {
	return model.FormatJSON
}

func (c *jsonCodec) EncodeRequest(_ context.Context, meta formatter.Meta, args model.Arguments) ([]byte, error) {
	raws, err := encodeArgs(args, meta.InKind)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	return json.Marshal(raws)
}

func (c *jsonCodec) DecodeRequest(_ context.Context, meta formatter.Meta, data []byte) (model.Arguments, error) {
	raws := []json.RawMessage{}
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, model.NewError(model.CodeDeserialize, "unmarshaling request: %s", err)
	}
	return decodeArgs(raws, meta.InKind, meta.InObjects)
}

func (c *jsonCodec) EncodeResponse(_ context.Context, meta formatter.Meta, resp formatter.Response) ([]byte, error) {
	raws, err := encodeArgs(resp.Args, meta.OutKind)
	if err != nil {
		return nil, fmt.Errorf("encoding response: %w", err)
	}
	return json.Marshal(responseDTO{Code: resp.Code, Msg: resp.Msg, Args: raws})
}

func (c *jsonCodec) DecodeResponse(_ context.Context, meta formatter.Meta, data []byte) (formatter.Response, error) {
	dto := responseDTO{}
	if err := json.Unmarshal(data, &dto); err != nil {
		return formatter.Response{}, model.NewError(model.CodeDeserialize, "unmarshaling response: %s", err)
	}

	args, err := decodeArgs(dto.Args, meta.OutKind, meta.OutObjects)
	if err != nil {
		return formatter.Response{}, err
	}
	return formatter.Response{Code: dto.Code, Msg: dto.Msg, Args: args}, nil
}

// encodeArgs writes values of KindAny slots in tagged form so that their
// kind survives decoding.
func encodeArgs(args model.Arguments, kindOf func(int) model.Kind) ([]json.RawMessage, error) {
	res := make([]json.RawMessage, 0, len(args))
	for idx, arg := range args {
		encode := formatter.ToJSON
		if kindOf(idx) == model.KindAny {
			encode = formatter.ToTaggedJSON
		}
		tree, err := encode(arg)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", idx, err)
		}
		raw, err := json.Marshal(tree)
		if err != nil {
			return nil, fmt.Errorf("marshaling argument %d: %w", idx, err)
		}
		res = append(res, raw)
	}
	return res, nil
}

func decodeArgs(
	raws []json.RawMessage,
	kindOf func(int) model.Kind,
	factories map[int]formatter.ObjectFactory,
) (model.Arguments, error) {
	if len(raws) == 0 {
		return nil, nil
	}

	res := make(model.Arguments, 0, len(raws))
	for idx, raw := range raws {
		v, err := formatter.FromJSON(raw, kindOf(idx), factories[idx])
		if err != nil {
			return nil, model.NewError(model.CodeDeserialize, "argument %d: %s", idx, err)
		}
		res = append(res, v)
	}
	return res, nil
}
