package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/adgate/adgate/internal/core"
)

func DecodePayload(r *http.Request, dest any, allowEmpty bool) error {
	switch r.Header.Get("Content-Type") {
	case "application/json", "":
		// strict encoding for JSON
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(dest); err != nil {
			if !errors.Is(err, io.EOF) || !allowEmpty {
				return err
			}
		}
		// ensure there's no extra data
		if dec.More() {
			return errors.New("extra data in request body")
		}
		return nil
	default:
		return errors.New("unsupported content type")
	}
}

// principalInWorkspace loads a principal and verifies it belongs to the
// workspace the request was authorized for. A principal in another workspace
// is reported as not found, so callers cannot enumerate foreign principals.
func (s *Server) principalInWorkspace(r *http.Request, principalID, workspaceID string) (*core.Principal, error) {
	principal, err := s.principals.GetByID(r.Context(), principalID)
	if err != nil {
		return nil, err
	}
	if workspaceID != "" && principal.WorkspaceID != workspaceID {
		return nil, fmt.Errorf("principal %s: %w", principalID, core.ErrNotFound)
	}
	return principal, nil
}

// credentialInWorkspace loads a credential and verifies its owning principal
// belongs to the authorized workspace.
func (s *Server) credentialInWorkspace(r *http.Request, credentialID, workspaceID string) (*core.Credential, error) {
	cred, err := s.creds.GetByID(r.Context(), credentialID)
	if err != nil {
		return nil, err
	}
	if _, err := s.principalInWorkspace(r, cred.PrincipalID, workspaceID); err != nil {
		return nil, fmt.Errorf("credential %s: %w", credentialID, core.ErrNotFound)
	}
	return cred, nil
}
