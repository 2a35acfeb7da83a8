// Package correlation carries a per-request correlation ID through context
// so audit entries and error responses can be tied back to server logs.
package correlation

import "context"

type contextKey struct{}

// WithID returns a context carrying the correlation ID.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the correlation ID stored in ctx, or "" when the
// request never passed through the correlation middleware.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}
