package model

import (
	"fmt"
	"slices"
)

type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindDouble
	KindString
	KindBytes
	KindList
	KindMap
	KindObject
	// KindAny accepts every kind in a Signature slot.
	KindAny Kind = 0xFF
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindObject:
		return "object"
	case KindAny:
		return "any"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a closed variant carried by Arguments.
// The zero value is null.
type Value struct {
	kind Kind
	raw  any
}

func Null() Value {
	return Value{}
}

func Bool(v bool) Value {
	return Value{kind: KindBool, raw: v}
}

func Int(v int64) Value {
	return Value{kind: KindInt, raw: v}
}

func Double(v float64) Value {
	return Value{kind: KindDouble, raw: v}
}

func String(v string) Value {
	return Value{kind: KindString, raw: v}
}

func Bytes(v []byte) Value {
	return Value{kind: KindBytes, raw: v}
}

func List(v ...Value) Value {
	return Value{kind: KindList, raw: v}
}

func Map(v map[string]Value) Value {
	return Value{kind: KindMap, raw: v}
}

// Object wraps an arbitrary Go value. Formatters carry it as JSON.
func Object(v any) Value {
	if v == nil {
		return Null()
	}
	return Value{kind: KindObject, raw: v}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

// Raw returns the underlying Go value.
func (v Value) Raw() any { return v.raw }

func (v Value) AsBool() (bool, bool) {
	r, ok := v.raw.(bool)
	return r, ok
}

func (v Value) AsInt() (int64, bool) {
	r, ok := v.raw.(int64)
	return r, ok
}

func (v Value) AsDouble() (float64, bool) {
	r, ok := v.raw.(float64)
	return r, ok
}

func (v Value) AsString() (string, bool) {
	r, ok := v.raw.(string)
	return r, ok
}

func (v Value) AsBytes() ([]byte, bool) {
	r, ok := v.raw.([]byte)
	return r, ok
}

func (v Value) AsList() ([]Value, bool) {
	r, ok := v.raw.([]Value)
	return r, ok
}

func (v Value) AsMap() (map[string]Value, bool) {
	r, ok := v.raw.(map[string]Value)
	return r, ok
}

// ObjectAs extracts an object value of type T.
func ObjectAs[T any](v Value) (T, bool) {
	r, ok := v.raw.(T)
	return r, ok
}

func (v Value) String() string {
	if v.kind == KindNull {
		return "null"
	}
	return fmt.Sprintf("%s(%v)", v.kind, v.raw)
}

// Arguments is an ordered fixed-arity list of values.
type Arguments []Value

func (args Arguments) Clone() Arguments {
	return slices.Clone(args)
}

// Signature fixes arity and kinds of a generic's inputs and outputs.
type Signature struct {
	In  []Kind
	Out []Kind
}

func (s Signature) ValidateIn(args Arguments) error {
	return validate("argument", s.In, args)
}

func (s Signature) ValidateOut(args Arguments) error {
	return validate("result", s.Out, args)
}

// NewOut allocates null result slots.
func (s Signature) NewOut() Arguments {
	return make(Arguments, len(s.Out))
}

func validate(what string, kinds []Kind, args Arguments) error {
	if len(kinds) != len(args) {
		return NewError(CodeParameter, "expected %d %ss, got %d", len(kinds), what, len(args))
	}
	for idx, k := range kinds {
		got := args[idx].Kind()
		if k == KindAny || got == k || got == KindNull {
			continue
		}
		return NewError(CodeParameter, "%s %d: expected %s, got %s", what, idx, k, got)
	}
	return nil
}
