package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ovaphlow/gatehouse/internal/config"
)

const issuer = "gatehouse"

var (
	ErrTokenMissing = errors.New("session token missing")
	ErrTokenInvalid = errors.New("session token invalid")
)

// Claims bind a session token to a user identity.
type Claims struct {
	UserID int64 `json:"uid"`
	jwt.RegisteredClaims
}

// Manager issues and verifies session tokens against a single HS256 secret.
// Expiry is the only invalidation mechanism; there is no revocation list.
type Manager struct {
	secret          []byte
	ttl             time.Duration
	production      bool
	msgDenied       string
	msgUnauthorized string
	logger          *zap.SugaredLogger
}

func NewManager(cfg *config.Config, logger *zap.SugaredLogger) *Manager {
	return &Manager{
		secret:          []byte(cfg.TokenSecret),
		ttl:             cfg.TokenTTL,
		production:      cfg.IsProduction(),
		msgDenied:       cfg.MsgDenied,
		msgUnauthorized: cfg.MsgUnauthorized,
		logger:          logger,
	}
}

// Issue signs a token for the user, expiring after the configured TTL.
func (m *Manager) Issue(userID int64) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Parse verifies signature and expiry in one shot. Bad signature, expired
// and malformed tokens all come back as ErrTokenInvalid with the cause
// attached.
func (m *Manager) Parse(raw string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
