// Package session verifies the signed session tokens that mark a visitor as
// logged in.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultCookieName is the cookie checked when none is configured.
const DefaultCookieName = "unprotect_session"

// minKeyLen is the shortest accepted HMAC key.
const minKeyLen = 32

// ErrNoToken is returned when a request carries no session token.
var ErrNoToken = errors.New("session: no token")

// Manager issues and verifies HS256 session tokens.
//
// A nil *Manager treats every request as logged out.
type Manager struct {
	key        []byte
	cookieName string
	issuer     string
	ttl        time.Duration
	now        func() time.Time
}

// NewManager creates a session manager. The key must be at least 32 bytes.
func NewManager(key []byte, cookieName, issuer string, ttl time.Duration) (*Manager, error) {
	if len(key) < minKeyLen {
		return nil, fmt.Errorf("session key must be at least %d bytes, got %d", minKeyLen, len(key))
	}
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive, got %s", ttl)
	}

	return &Manager{
		key:        append([]byte(nil), key...),
		cookieName: cookieName,
		issuer:     issuer,
		ttl:        ttl,
		now:        time.Now,
	}, nil
}

// CookieName returns the name of the session cookie.
func (m *Manager) CookieName() string {
	return m.cookieName
}

// Issue signs a token for subject. A non-positive ttl uses the manager's
// default.
func (m *Manager) Issue(subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("session subject must not be empty")
	}
	if ttl <= 0 {
		ttl = m.ttl
	}

	now := m.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    m.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates token, returning its subject.
func (m *Manager) Verify(token string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return m.key, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("invalid session token: %w", err)
	}
	if claims.Subject == "" {
		return "", errors.New("invalid session token: missing subject")
	}
	return claims.Subject, nil
}

// Subject returns the subject of the request's session token. The cookie is
// checked first, then an Authorization Bearer token.
func (m *Manager) Subject(r *http.Request) (string, error) {
	token := m.tokenFromRequest(r)
	if token == "" {
		return "", ErrNoToken
	}
	return m.Verify(token)
}

// LoggedIn reports whether r carries a valid session token.
func (m *Manager) LoggedIn(r *http.Request) bool {
	if m == nil || r == nil {
		return false
	}
	_, err := m.Subject(r)
	return err == nil
}

// SetCookie writes token as the session cookie.
func (m *Manager) SetCookie(w http.ResponseWriter, token string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *Manager) tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(m.cookieName); err == nil && c.Value != "" {
		return c.Value
	}

	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
