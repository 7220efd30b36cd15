package user

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/gatehouse/internal/session"
	userrepo "github.com/ovaphlow/gatehouse/internal/user/repo"
)

// Handler exposes HTTP endpoints for account and session operations.
type Handler struct {
	svc      *Service
	sessions *session.Manager
	logger   *zap.SugaredLogger
}

func NewHandler(svc *Service, sessions *session.Manager, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, sessions: sessions, logger: logger}
}

// LoginRequest login payload. Identifier is an email address or a
// national id; the service decides which by shape.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// Register creates an account and signs the caller in, issuing the
// session cookie alongside the 201 response.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.logger.Debugw("invalid register payload", "err", err)
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	u, err := h.svc.Register(r.Context(), in)
	if err != nil {
		h.respondServiceError(w, "register", err)
		return
	}
	token, err := h.sessions.Issue(u.ID)
	if err != nil {
		h.logger.Warnw("token issue failed", "user_id", u.ID, "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "register failed"})
		return
	}
	h.sessions.SetCookie(w, token)
	h.writeJSON(w, http.StatusCreated, u.Redacted())
}

// Login verifies credentials and issues a session cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid login payload", "err", err)
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	u, err := h.svc.Authenticate(r.Context(), req.Identifier, req.Password)
	if err != nil {
		h.logger.Debugw("login failed", "err", err)
		h.respondServiceError(w, "login", err)
		return
	}
	token, err := h.sessions.Issue(u.ID)
	if err != nil {
		h.logger.Warnw("token issue failed", "user_id", u.ID, "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "login failed"})
		return
	}
	h.sessions.SetCookie(w, token)
	h.writeJSON(w, http.StatusOK, u.Redacted())
}

// Logout expires the session cookie. Tokens are not revoked server
// side; they age out on their own.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.ClearCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the restricted record of the authenticated user.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	ident, ok := session.FromContext(r.Context())
	if !ok {
		h.writeJSON(w, http.StatusForbidden, map[string]string{"error": "no session"})
		return
	}
	u, found, err := h.svc.GetByID(r.Context(), ident.UserID, true)
	if err != nil {
		h.logger.Warnw("profile lookup failed", "user_id", ident.UserID, "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "profile lookup failed"})
		return
	}
	if !found {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "user not found"})
		return
	}
	h.writeJSON(w, http.StatusOK, u)
}

// Update applies the fields present in the payload to the authenticated
// user and returns the restricted record.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	ident, ok := session.FromContext(r.Context())
	if !ok {
		h.writeJSON(w, http.StatusForbidden, map[string]string{"error": "no session"})
		return
	}
	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.logger.Debugw("invalid update payload", "err", err)
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	u, err := h.svc.UpdateByID(r.Context(), ident.UserID, in)
	if err != nil {
		h.respondServiceError(w, "update", err)
		return
	}
	h.writeJSON(w, http.StatusOK, u.Redacted())
}

// respondServiceError maps service errors to status codes. Anything not
// recognized surfaces as 500 without detail.
func (h *Handler) respondServiceError(w http.ResponseWriter, op string, err error) {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		h.logger.Debugw(op+" input rejected", "err", err)
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "validation failed",
			"fields": ve.Fields,
		})
	case errors.Is(err, userrepo.ErrDuplicate):
		h.logger.Debugw(op+" conflict", "err", err)
		h.writeJSON(w, http.StatusConflict, map[string]string{"error": "email or national id already registered"})
	case errors.Is(err, ErrBadCredentials):
		h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
	case errors.Is(err, ErrUserNotFound):
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "user not found"})
	default:
		h.logger.Warnw(op+" failed", "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": op + " failed"})
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
