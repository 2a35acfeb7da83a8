package audit

import (
	"crypto/sha256"
	"encoding/base64"
)

// Fingerprint returns a stable, non-reversible digest of a provider token.
// Audit entries and admin listings carry the fingerprint so operators can
// correlate credentials without ever seeing token material.
func Fingerprint(token string) string {
	if token == "" {
		return "(n/a)"
	}
	hash := sha256.Sum256([]byte(token))
	return base64.StdEncoding.EncodeToString(hash[:])
}
