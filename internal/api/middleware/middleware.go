package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/adgate/adgate/internal/correlation"
)

// LoggingMiddleware attaches a request-scoped zerolog logger to the context
// and emits one line per handled request. Handlers must never log raw
// platform tokens; log output carries fingerprints only.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		correlationID := correlation.FromContext(r.Context())

		reqLogger := log.With().
			Str("correlation_id", correlationID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Logger()

		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(reqLogger.WithContext(r.Context())))

		// liveness probes are noise unless they fail
		if r.URL.Path == "/healthz" && rec.status < 400 {
			return
		}

		evt := reqLogger.Info()
		if rec.status >= 500 {
			evt = reqLogger.Error()
		}
		evt.
			Int("status", rec.status).
			Int("bytes", rec.written).
			Dur("duration", time.Since(start)).
			Msg("request.handled")
	})
}

// RecoverMiddleware converts handler panics into 500 responses so a single
// bad request cannot take the credential service down.
func RecoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				log.Ctx(r.Context()).Error().
					Interface("panic", v).
					Bytes("stack", debug.Stack()).
					Msg("panic.recovered")

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error": "internal server error"}`))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// responseRecorder captures the status and body size for the access log.
type responseRecorder struct {
	http.ResponseWriter
	status  int
	written int
}

func (rec *responseRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *responseRecorder) Write(p []byte) (int, error) {
	n, err := rec.ResponseWriter.Write(p)
	rec.written += n
	return n, err
}
