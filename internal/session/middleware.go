package session

import (
	"context"
	"encoding/json"
	"net/http"
)

type contextKey string

const identityKey contextKey = "gatehouse-identity"

// Identity describes the authenticated caller attached to the request
// context by Guard.
type Identity struct {
	UserID  int64
	TokenID string
}

// Guard admits only requests bearing a valid session cookie. A missing
// cookie is rejected with 403 and the configured denied message; a cookie
// that fails verification with 401 and the unauthorized message. On success
// the identity lands in the request context and control passes to next.
// One synchronous check per request, no retry.
func (m *Manager) Guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := ReadCookie(r)
		if err != nil {
			m.logger.Debugw("session cookie missing", "path", r.URL.Path)
			writeMsg(w, http.StatusForbidden, m.msgDenied)
			return
		}
		claims, err := m.Parse(raw)
		if err != nil {
			m.logger.Debugw("session token rejected", "err", err, "path", r.URL.Path)
			writeMsg(w, http.StatusUnauthorized, m.msgUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), identityKey, Identity{
			UserID:  claims.UserID,
			TokenID: claims.ID,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// FromContext extracts the identity set by Guard.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

func writeMsg(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"msg": msg})
}
