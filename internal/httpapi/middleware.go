package httpapi

import (
	"net/http"
	"strings"
)

// authedHandler receives the authenticated owner id, already checked against
// the user_id path segment.
type authedHandler func(w http.ResponseWriter, r *http.Request, ownerID string)

// withAuth verifies the bearer token and requires the token subject to match
// the user_id in the path. A mismatch is forbidden; a missing or bad token
// is unauthorized.
func (s *Server) withAuth(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "Missing or invalid authorization header")
			return
		}

		claims, err := s.tokens.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		if r.PathValue("user_id") != claims.Subject {
			writeError(w, http.StatusForbidden, "Access denied")
			return
		}

		next(w, r, claims.Subject)
	}
}
