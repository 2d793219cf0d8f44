package message

import (
	"context"
	"maps"
)

type globalContextKey struct{}

// WithGlobalContext attaches values propagated in the global context tag of
// outgoing requests.
func WithGlobalContext(ctx context.Context, gc map[string]string) context.Context {
	merged := maps.Clone(GlobalContextFrom(ctx))
	if merged == nil {
		merged = map[string]string{}
	}
	maps.Copy(merged, gc)
	return context.WithValue(ctx, globalContextKey{}, merged)
}

func GlobalContextFrom(ctx context.Context) map[string]string {
	gc, _ := ctx.Value(globalContextKey{}).(map[string]string)
	return gc
}
