package model

import (
	"cmp"
	"context"
	"fmt"
)

// Fitable identifies a versioned implementation of a genericable.
type Fitable struct {
	GenericID      string `json:"genericableId"`
	GenericVersion string `json:"genericableVersion"`
	FitableID      string `json:"fitableId"`
	FitableVersion string `json:"fitableVersion"`
}

func (f Fitable) Compare(other Fitable) int {
	return cmp.Or(
		cmp.Compare(f.GenericID, other.GenericID),
		cmp.Compare(f.GenericVersion, other.GenericVersion),
		cmp.Compare(f.FitableID, other.FitableID),
		cmp.Compare(f.FitableVersion, other.FitableVersion),
	)
}

func (f Fitable) String() string {
	return fmt.Sprintf("%s@%s/%s@%s", f.GenericID, f.GenericVersion, f.FitableID, f.FitableVersion)
}

func (f Fitable) Validate() error {
	if f.GenericID == "" {
		return NewError(CodeParameter, "empty generic id")
	}
	if f.FitableID == "" {
		return NewError(CodeParameter, "empty fitable id for generic %s", f.GenericID)
	}
	return nil
}

type FitableType uint8

const (
	FitableTypeMain FitableType = iota
	// FitableTypeDegraded serves a generic locally when its main
	// implementation fails.
	FitableTypeDegraded
)

func (ft FitableType) String() string {
	switch ft {
	case FitableTypeMain:
		return "main"
	case FitableTypeDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// FitableFunc is the type-erased calling convention of every fitable.
type FitableFunc func(ctx context.Context, in Arguments) (Arguments, error)

// FitableDetail binds a fitable identity to its implementation.
type FitableDetail struct {
	Fitable
	Type      FitableType
	Signature Signature
	Aliases   []string
	Tags      []string
	Func      FitableFunc
}

// Call validates arity and kinds around fn.
func (fd *FitableDetail) Call(ctx context.Context, in Arguments) (Arguments, error) {
	if fd.Func == nil {
		return nil, NewError(CodeInternal, "fitable %s has no implementation", fd.Fitable)
	}
	if err := fd.Signature.ValidateIn(in); err != nil {
		return nil, fmt.Errorf("calling %s: %w", fd.Fitable, err)
	}

	out, err := fd.Func(ctx, in)
	if err != nil {
		return nil, err
	}

	if err := fd.Signature.ValidateOut(out); err != nil {
		return nil, fmt.Errorf("returned by %s: %w", fd.Fitable, NewError(CodeInternal, "%s", err))
	}
	return out, nil
}
