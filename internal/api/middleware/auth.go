package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/adgate/adgate/internal/api/presenter"
)

const adminRole = "admin"

// AdminAuth guards the operator plane. Admin sessions are HMAC-signed JWTs
// carrying a "roles" claim; they are separate from end-user identity and
// never go through the workspace permission model.
func AdminAuth(signingKey []byte) func(handler http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if tokenStr == "" {
				presenter.Error(w, r, "login required", http.StatusUnauthorized)
				return
			}

			claims, err := parseAdminSession(tokenStr, signingKey)
			if err != nil {
				presenter.Error(w, r, "invalid session token", http.StatusUnauthorized)
				return
			}
			if !hasRole(claims, adminRole) {
				presenter.Error(w, r, "insufficient privileges", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func parseAdminSession(tokenStr string, signingKey []byte) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return signingKey, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is not valid")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type %T", token.Claims)
	}
	return claims, nil
}

func hasRole(claims jwt.MapClaims, want string) bool {
	roles, ok := claims["roles"].([]any)
	if !ok {
		return false
	}
	for _, roleAny := range roles {
		if role, ok := roleAny.(string); ok && role == want {
			return true
		}
	}
	return false
}
