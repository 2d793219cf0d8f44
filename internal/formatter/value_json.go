package formatter

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/horockey/fit/internal/model"
	"github.com/samber/lo"
)

// taggedValue keeps the kind of values whose slot does not fix one: KindAny
// slots, list elements and map values.
type taggedValue struct {
	Kind  string          `json:"kind"`
	Value json.RawMessage `json:"value,omitempty"`
}

var kindsByName = lo.SliceToMap([]model.Kind{
	model.KindNull, model.KindBool, model.KindInt, model.KindDouble, model.KindString,
	model.KindBytes, model.KindList, model.KindMap, model.KindObject,
}, func(k model.Kind) (string, model.Kind) { return k.String(), k })

// ToJSON converts v into a tree encoding/json can marshal.
func ToJSON(v model.Value) (any, error) {
	switch v.Kind() {
	case model.KindNull:
		return nil, nil
	case model.KindBytes:
		b, _ := v.AsBytes()
		return base64.StdEncoding.EncodeToString(b), nil
	case model.KindList:
		l, _ := v.AsList()
		res := make([]any, 0, len(l))
		for idx, el := range l {
			j, err := ToTaggedJSON(el)
			if err != nil {
				return nil, fmt.Errorf("list element %d: %w", idx, err)
			}
			res = append(res, j)
		}
		return res, nil
	case model.KindMap:
		m, _ := v.AsMap()
		res := make(map[string]any, len(m))
		for k, el := range m {
			j, err := ToTaggedJSON(el)
			if err != nil {
				return nil, fmt.Errorf("map entry %s: %w", k, err)
			}
			res[k] = j
		}
		return res, nil
	default:
		return v.Raw(), nil
	}
}

// ToTaggedJSON converts v into a {"kind", "value"} tree.
func ToTaggedJSON(v model.Value) (any, error) {
	tree, err := ToJSON(v)
	if err != nil {
		return nil, err
	}
	if tree == nil {
		return taggedValue{Kind: v.Kind().String()}, nil
	}
	raw, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s: %w", v.Kind(), err)
	}
	return taggedValue{Kind: v.Kind().String(), Value: raw}, nil
}

// FromJSON decodes raw into a value of the expected kind. KindAny slots
// are expected in the tagged form of ToTaggedJSON.
// factory is used for KindObject slots and may be nil.
func FromJSON(raw json.RawMessage, kind model.Kind, factory ObjectFactory) (model.Value, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return model.Null(), nil
	}

	switch kind {
	case model.KindAny:
		return fromTagged(raw, factory)
	case model.KindBool:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return model.Value{}, fmt.Errorf("decoding bool: %w", err)
		}
		return model.Bool(b), nil
	case model.KindInt:
		var i int64
		if err := json.Unmarshal(raw, &i); err != nil {
			return model.Value{}, fmt.Errorf("decoding int: %w", err)
		}
		return model.Int(i), nil
	case model.KindDouble:
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return model.Value{}, fmt.Errorf("decoding double: %w", err)
		}
		return model.Double(f), nil
	case model.KindString:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return model.Value{}, fmt.Errorf("decoding string: %w", err)
		}
		return model.String(s), nil
	case model.KindBytes:
		var b []byte
		if err := json.Unmarshal(raw, &b); err != nil {
			return model.Value{}, fmt.Errorf("decoding bytes: %w", err)
		}
		return model.Bytes(b), nil
	case model.KindList:
		raws := []json.RawMessage{}
		if err := json.Unmarshal(raw, &raws); err != nil {
			return model.Value{}, fmt.Errorf("decoding list: %w", err)
		}
		var res []model.Value
		for idx, el := range raws {
			v, err := fromTagged(el, nil)
			if err != nil {
				return model.Value{}, fmt.Errorf("list element %d: %w", idx, err)
			}
			res = append(res, v)
		}
		return model.List(res...), nil
	case model.KindMap:
		raws := map[string]json.RawMessage{}
		if err := json.Unmarshal(raw, &raws); err != nil {
			return model.Value{}, fmt.Errorf("decoding map: %w", err)
		}
		res := make(map[string]model.Value, len(raws))
		for k, el := range raws {
			v, err := fromTagged(el, nil)
			if err != nil {
				return model.Value{}, fmt.Errorf("map entry %s: %w", k, err)
			}
			res[k] = v
		}
		return model.Map(res), nil
	case model.KindObject:
		if factory != nil {
			obj, err := ObjectOf(factory, func(ptr any) error { return json.Unmarshal(raw, ptr) })
			if err != nil {
				return model.Value{}, fmt.Errorf("decoding object: %w", err)
			}
			return model.Object(obj), nil
		}

		var tree any
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&tree); err != nil {
			return model.Value{}, fmt.Errorf("decoding object: %w", err)
		}
		return model.Object(tree), nil
	default:
		return model.Value{}, model.NewError(model.CodeParameter, "unsupported kind %s", kind)
	}
}

func fromTagged(raw json.RawMessage, factory ObjectFactory) (model.Value, error) {
	tv := taggedValue{}
	if err := json.Unmarshal(raw, &tv); err != nil {
		return model.Value{}, fmt.Errorf("decoding tagged value: %w", err)
	}
	kind, found := kindsByName[tv.Kind]
	if !found {
		return model.Value{}, fmt.Errorf("unknown value kind %q", tv.Kind)
	}
	if kind == model.KindNull {
		return model.Null(), nil
	}
	return FromJSON(tv.Value, kind, factory)
}
