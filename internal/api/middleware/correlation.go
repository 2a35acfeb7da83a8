package middleware

import (
	"context"
	"net/http"

	"github.com/rs/xid"

	"github.com/adgate/adgate/internal/correlation"
)

// CorrelationIDHeader carries the request correlation ID in both directions:
// clients may supply one, and the server always echoes it back.
const CorrelationIDHeader = "X-Correlation-ID"

// CorrelationIDMiddleware ensures every request has a correlation ID. A
// caller-supplied ID is kept so upstream systems can trace calls through
// this service; otherwise a fresh xid is minted.
func CorrelationIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get(CorrelationIDHeader)
		if correlationID == "" {
			correlationID = xid.New().String()
		}

		// echo it back even on error responses
		w.Header().Set(CorrelationIDHeader, correlationID)

		ctx := correlation.WithID(r.Context(), correlationID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CorrelationCtx returns the correlation ID stored in ctx, or "" when the
// request did not pass through CorrelationIDMiddleware.
func CorrelationCtx(ctx context.Context) string {
	return correlation.FromContext(ctx)
}
