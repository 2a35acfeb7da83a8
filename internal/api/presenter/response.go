package presenter

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/adgate/adgate/internal/core"
	"github.com/adgate/adgate/internal/correlation"
)

type ErrorResponse struct {
	Error         string `json:"error"`
	CorrelationID string `json:"correlation_id"`
}

func JSON(w http.ResponseWriter, r *http.Request, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("failed to write json response")
	}
}

func Error(w http.ResponseWriter, r *http.Request, msg string, status int) {
	correlationID := correlation.FromContext(r.Context())
	resp := ErrorResponse{
		Error:         msg,
		CorrelationID: correlationID,
	}
	JSON(w, r, resp, status)
}

// Err maps a domain error to its HTTP status. Missing workspace context and
// missing permissions produce the identical 403 response so callers cannot
// probe which workspaces exist.
func Err(w http.ResponseWriter, r *http.Request, err error, short string) {
	switch {
	case errors.Is(err, core.ErrAuthenticationRequired):
		Error(w, r, "authentication required", http.StatusUnauthorized)
	case errors.Is(err, core.ErrPermissionDenied), errors.Is(err, core.ErrWorkspaceContextMissing):
		Error(w, r, "forbidden", http.StatusForbidden)
	case errors.Is(err, core.ErrNotFound):
		Error(w, r, short+": not found", http.StatusNotFound)
	case errors.Is(err, core.ErrUnsupportedPlatform):
		Error(w, r, short+": "+err.Error(), http.StatusBadRequest)
	case errors.Is(err, core.ErrRequestTooLarge):
		Error(w, r, short+": "+err.Error(), http.StatusRequestEntityTooLarge)
	case errors.Is(err, core.ErrCredentialExpired),
		errors.Is(err, core.ErrCredentialRevoked),
		errors.Is(err, core.ErrDelegationNotVerified),
		errors.Is(err, core.ErrVersionConflict):
		Error(w, r, short+": "+err.Error(), http.StatusConflict)
	case core.IsRetryable(err):
		Error(w, r, short+": platform temporarily unavailable", http.StatusBadGateway)
	default:
		Error(w, r, short+": "+err.Error(), http.StatusInternalServerError)
	}
}
