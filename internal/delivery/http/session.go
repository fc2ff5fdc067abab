package http

import (
	"crypto/rand"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pricelens/backend/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

const (
	// SessionCookieName holds the signed session token
	SessionCookieName = "auth"

	sessionSubject = "pricelens"
)

// SessionConfig configures the shared-password session
type SessionConfig struct {
	Password string
	Secret   string // HMAC key; a random key is generated when empty
	TTL      time.Duration
	Secure   bool // mark the cookie Secure (HTTPS deployments)
}

// SessionManager checks the shared password and issues the session cookie
type SessionManager struct {
	passwordHash []byte
	secret       []byte
	ttl          time.Duration
	secure       bool
	now          func() time.Time
}

// NewSessionManager hashes the configured password. It returns nil when no password is set,
// which leaves the API open.
func NewSessionManager(cfg SessionConfig) (*SessionManager, error) {
	if cfg.Password == "" {
		return nil, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	secret := []byte(cfg.Secret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &SessionManager{
		passwordHash: hash,
		secret:       secret,
		ttl:          ttl,
		secure:       cfg.Secure,
		now:          time.Now,
	}, nil
}

// CheckPassword reports whether password matches the configured one
func (m *SessionManager) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword(m.passwordHash, []byte(password)) == nil
}

// Issue signs a new session token
func (m *SessionManager) Issue() (string, error) {
	now := m.now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   sessionSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Validate checks a session token's signature, expiry and subject
func (m *SessionManager) Validate(token string) error {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	if err != nil || !parsed.Valid {
		return fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	if claims.Subject != sessionSubject {
		return fmt.Errorf("%w: unexpected subject", domain.ErrUnauthorized)
	}
	return nil
}

// Authenticated reports whether the request carries a valid session cookie
func (m *SessionManager) Authenticated(c *gin.Context) bool {
	token, err := c.Cookie(SessionCookieName)
	if err != nil || token == "" {
		return false
	}
	return m.Validate(token) == nil
}

// SetCookie writes the session cookie: httpOnly, SameSite=Strict, valid for the session TTL
func (m *SessionManager) SetCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(SessionCookieName, token, int(m.ttl/time.Second), "/", "", m.secure, true)
}

// ClearCookie expires the session cookie
func (m *SessionManager) ClearCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(SessionCookieName, "", -1, "/", "", m.secure, true)
}
