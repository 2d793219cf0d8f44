// Package proto_formatter encodes arguments with the protobuf wire format:
//
//	message Arguments { repeated Value values = 1; }
//	message Value {
//	  oneof kind {
//	    bool      null   = 1;
//	    bool      bool   = 2;
//	    sint64    int    = 3;
//	    double    double = 4;
//	    string    string = 5;
//	    bytes     bytes  = 6;
//	    Arguments list   = 7;
//	    Map       map    = 8;
//	    bytes     object = 9; // JSON
//	  }
//	}
//	message Map { repeated Entry entries = 1; }
//	message Entry { string key = 1; Value value = 2; }
//	message Response { uint32 code = 1; string msg = 2; Arguments args = 3; }
package proto_formatter

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/horockey/fit/internal/formatter"
	"github.com/horockey/fit/internal/model"
	"google.golang.org/protobuf/encoding/protowire"
)

var _ formatter.Codec = &protoCodec{}

const (
	fieldValues protowire.Number = 1

	fieldNull   protowire.Number = 1
	fieldBool   protowire.Number = 2
	fieldInt    protowire.Number = 3
	fieldDouble protowire.Number = 4
	fieldString protowire.Number = 5
	fieldBytes  protowire.Number = 6
	fieldList   protowire.Number = 7
	fieldMap    protowire.Number = 8
	fieldObject protowire.Number = 9

	fieldEntries    protowire.Number = 1
	fieldEntryKey   protowire.Number = 1
	fieldEntryValue protowire.Number = 2

	fieldRespCode protowire.Number = 1
	fieldRespMsg  protowire.Number = 2
	fieldRespArgs protowire.Number = 3
)

type protoCodec struct{}

func New() *protoCodec {
	return &protoCodec{}
}

func (c *protoCodec) Format() model.Format {
	return model.FormatProtobuf
}

func (c *protoCodec) EncodeRequest(_ context.Context, _ formatter.Meta, args model.Arguments) ([]byte, error) {
	return appendArguments(nil, args)
}

func (c *protoCodec) DecodeRequest(_ context.Context, meta formatter.Meta, data []byte) (model.Arguments, error) {
	args, err := consumeArguments(data, meta.InObjects)
	if err != nil {
		return nil, model.NewError(model.CodeDeserialize, "decoding request: %s", err)
	}
	return args, nil
}

func (c *protoCodec) EncodeResponse(_ context.Context, _ formatter.Meta, resp formatter.Response) ([]byte, error) {
	buf := protowire.AppendTag(nil, fieldRespCode, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(resp.Code))
	if resp.Msg != "" {
		buf = protowire.AppendTag(buf, fieldRespMsg, protowire.BytesType)
		buf = protowire.AppendString(buf, resp.Msg)
	}

	args, err := appendArguments(nil, resp.Args)
	if err != nil {
		return nil, err
	}
	buf = protowire.AppendTag(buf, fieldRespArgs, protowire.BytesType)
	return protowire.AppendBytes(buf, args), nil
}

func (c *protoCodec) DecodeResponse(_ context.Context, meta formatter.Meta, data []byte) (formatter.Response, error) {
	resp := formatter.Response{}
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == fieldRespCode && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			resp.Code = model.Code(v)
			return n, nil
		case num == fieldRespMsg && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			resp.Msg = v
			return n, nil
		case num == fieldRespArgs && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			args, err := consumeArguments(v, meta.OutObjects)
			if err != nil {
				return 0, err
			}
			resp.Args = args
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	if err != nil {
		return formatter.Response{}, model.NewError(model.CodeDeserialize, "decoding response: %s", err)
	}
	return resp, nil
}

func appendArguments(buf []byte, args model.Arguments) ([]byte, error) {
	for idx, arg := range args {
		v, err := appendValue(nil, arg)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", idx, err)
		}
		buf = protowire.AppendTag(buf, fieldValues, protowire.BytesType)
		buf = protowire.AppendBytes(buf, v)
	}
	return buf, nil
}

func appendValue(buf []byte, v model.Value) ([]byte, error) {
	switch v.Kind() {
	case model.KindNull:
		buf = protowire.AppendTag(buf, fieldNull, protowire.VarintType)
		return protowire.AppendVarint(buf, 1), nil
	case model.KindBool:
		b, _ := v.AsBool()
		buf = protowire.AppendTag(buf, fieldBool, protowire.VarintType)
		return protowire.AppendVarint(buf, protowire.EncodeBool(b)), nil
	case model.KindInt:
		i, _ := v.AsInt()
		buf = protowire.AppendTag(buf, fieldInt, protowire.VarintType)
		return protowire.AppendVarint(buf, protowire.EncodeZigZag(i)), nil
	case model.KindDouble:
		f, _ := v.AsDouble()
		buf = protowire.AppendTag(buf, fieldDouble, protowire.Fixed64Type)
		return protowire.AppendFixed64(buf, math.Float64bits(f)), nil
	case model.KindString:
		s, _ := v.AsString()
		buf = protowire.AppendTag(buf, fieldString, protowire.BytesType)
		return protowire.AppendString(buf, s), nil
	case model.KindBytes:
		b, _ := v.AsBytes()
		buf = protowire.AppendTag(buf, fieldBytes, protowire.BytesType)
		return protowire.AppendBytes(buf, b), nil
	case model.KindList:
		l, _ := v.AsList()
		inner, err := appendArguments(nil, l)
		if err != nil {
			return nil, err
		}
		buf = protowire.AppendTag(buf, fieldList, protowire.BytesType)
		return protowire.AppendBytes(buf, inner), nil
	case model.KindMap:
		m, _ := v.AsMap()
		inner := []byte{}
		for _, k := range slices.Sorted(maps.Keys(m)) {
			val, err := appendValue(nil, m[k])
			if err != nil {
				return nil, fmt.Errorf("map entry %s: %w", k, err)
			}
			entry := protowire.AppendTag(nil, fieldEntryKey, protowire.BytesType)
			entry = protowire.AppendString(entry, k)
			entry = protowire.AppendTag(entry, fieldEntryValue, protowire.BytesType)
			entry = protowire.AppendBytes(entry, val)

			inner = protowire.AppendTag(inner, fieldEntries, protowire.BytesType)
			inner = protowire.AppendBytes(inner, entry)
		}
		buf = protowire.AppendTag(buf, fieldMap, protowire.BytesType)
		return protowire.AppendBytes(buf, inner), nil
	case model.KindObject:
		raw, err := json.Marshal(v.Raw())
		if err != nil {
			return nil, fmt.Errorf("marshaling object: %w", err)
		}
		buf = protowire.AppendTag(buf, fieldObject, protowire.BytesType)
		return protowire.AppendBytes(buf, raw), nil
	default:
		return nil, fmt.Errorf("unsupported kind %s", v.Kind())
	}
}

// consumeArguments returns nil when data holds no values.
func consumeArguments(data []byte, factories map[int]formatter.ObjectFactory) (model.Arguments, error) {
	var res model.Arguments
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != fieldValues || typ != protowire.BytesType {
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
		raw, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return n, nil
		}
		v, err := consumeValue(raw, factories[len(res)])
		if err != nil {
			return 0, fmt.Errorf("argument %d: %w", len(res), err)
		}
		res = append(res, v)
		return n, nil
	})
	return res, err
}

func consumeValue(data []byte, factory formatter.ObjectFactory) (model.Value, error) {
	res := model.Null()
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == fieldNull && typ == protowire.VarintType:
			_, n := protowire.ConsumeVarint(b)
			res = model.Null()
			return n, nil
		case num == fieldBool && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			res = model.Bool(protowire.DecodeBool(v))
			return n, nil
		case num == fieldInt && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			res = model.Int(protowire.DecodeZigZag(v))
			return n, nil
		case num == fieldDouble && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			res = model.Double(math.Float64frombits(v))
			return n, nil
		case num == fieldString && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			res = model.String(v)
			return n, nil
		case num == fieldBytes && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			res = model.Bytes(slices.Clone(v))
			return n, nil
		case num == fieldList && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			l, err := consumeArguments(v, nil)
			if err != nil {
				return 0, err
			}
			res = model.List(l...)
			return n, nil
		case num == fieldMap && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			m, err := consumeMap(v)
			if err != nil {
				return 0, err
			}
			res = model.Map(m)
			return n, nil
		case num == fieldObject && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			obj, err := formatter.FromJSON(slices.Clone(v), model.KindObject, factory)
			if err != nil {
				return 0, err
			}
			res = obj
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	return res, err
}

func consumeMap(data []byte) (map[string]model.Value, error) {
	res := map[string]model.Value{}
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != fieldEntries || typ != protowire.BytesType {
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
		entry, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return n, nil
		}

		var (
			key string
			val = model.Null()
		)
		if err := walkFields(entry, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			switch {
			case num == fieldEntryKey && typ == protowire.BytesType:
				v, n := protowire.ConsumeString(b)
				key = v
				return n, nil
			case num == fieldEntryValue && typ == protowire.BytesType:
				v, n := protowire.ConsumeBytes(b)
				if n < 0 {
					return n, nil
				}
				decoded, err := consumeValue(v, nil)
				if err != nil {
					return 0, err
				}
				val = decoded
				return n, nil
			}
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}); err != nil {
			return 0, fmt.Errorf("map entry: %w", err)
		}

		res[key] = val
		return n, nil
	})
	return res, err
}

// walkFields iterates top level fields of data. fn receives the bytes right
// after the tag and returns how many of them the field value occupies.
func walkFields(data []byte, fn func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if err := protowire.ParseError(n); err != nil {
			return fmt.Errorf("consuming tag: %w", err)
		}
		data = data[n:]

		m, err := fn(num, typ, data)
		if err != nil {
			return err
		}
		if err := protowire.ParseError(m); err != nil {
			return fmt.Errorf("consuming field %d: %w", num, err)
		}
		data = data[m:]
	}
	return nil
}
