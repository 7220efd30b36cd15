package session

import (
	"net/http"
	"strings"
	"time"
)

// CookieName is the fixed name of the session cookie.
const CookieName = "token"

// SetCookie attaches the signed token to the response. HttpOnly always, so
// client-side script can never read it; Secure only in production-like
// environments; Max-Age matches the token TTL so cookie and signature
// expire together.
func (m *Manager) SetCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.ttl / time.Second),
		HttpOnly: true,
		Secure:   m.production,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie on the client.
func (m *Manager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.production,
		SameSite: http.SameSiteLaxMode,
	})
}

// ReadCookie extracts the raw session token from the request cookie store.
// A missing or blank cookie yields ErrTokenMissing.
func ReadCookie(r *http.Request) (string, error) {
	c, err := r.Cookie(CookieName)
	if err != nil || c == nil {
		return "", ErrTokenMissing
	}
	value := strings.TrimSpace(c.Value)
	if value == "" {
		return "", ErrTokenMissing
	}
	return value, nil
}
