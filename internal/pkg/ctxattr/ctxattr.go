// Package ctxattr stores OpenTelemetry attributes in the context.Context.
// Attributes are attached to each log message written with the context.
package ctxattr

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
)

type ctxKey string

const attributesCtxKey = ctxKey("ctxattr")

// ContextWith returns a new context with the attributes merged to the attributes already present in the parent.
// If a key is already present, the new value wins.
func ContextWith(ctx context.Context, attrs ...attribute.KeyValue) context.Context {
	merged := append(Attributes(ctx).ToSlice(), attrs...)
	set := attribute.NewSet(merged...)
	return context.WithValue(ctx, attributesCtxKey, &set)
}

// Attributes returns the set of attributes stored in the context, the set is empty if there is none.
func Attributes(ctx context.Context) *attribute.Set {
	if set, ok := ctx.Value(attributesCtxKey).(*attribute.Set); ok {
		return set
	}
	empty := attribute.NewSet()
	return &empty
}
