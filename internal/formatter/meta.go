package formatter

import (
	"reflect"

	"github.com/horockey/fit/internal/model"
)

// ObjectFactory allocates a pointer to decode an object slot into.
type ObjectFactory func() any

// Meta describes the calling convention of a generic.
// In and Out factories are keyed by slot index of KindObject slots.
type Meta struct {
	GenericID  string
	Signature  model.Signature
	InObjects  map[int]ObjectFactory
	OutObjects map[int]ObjectFactory
}

func (m Meta) InKind(idx int) model.Kind {
	return kindAt(m.Signature.In, idx)
}

func (m Meta) OutKind(idx int) model.Kind {
	return kindAt(m.Signature.Out, idx)
}

func kindAt(kinds []model.Kind, idx int) model.Kind {
	if idx < 0 || idx >= len(kinds) {
		return model.KindAny
	}
	return kinds[idx]
}

// ObjectOf allocates a factory value, fills it with decode and returns the
// pointed-to value.
func ObjectOf(factory ObjectFactory, decode func(ptr any) error) (any, error) {
	ptr := factory()
	if err := decode(ptr); err != nil {
		return nil, err
	}
	return reflect.Indirect(reflect.ValueOf(ptr)).Interface(), nil
}

// ObjectFactoryFor is a typed helper for Meta declarations.
func ObjectFactoryFor[T any]() ObjectFactory {
	return func() any { return new(T) }
}
