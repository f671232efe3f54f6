// Package session keeps small string attributes in a signed cookie.
//
// The cookie holds an HS256 token whose expiry is pushed forward on every
// Save, so a session lapses after TTL without a write.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const CookieName = "SESSIONID"

// ErrNoSession is returned when the request carries no usable session.
var ErrNoSession = errors.New("no session")

type claims struct {
	Attrs map[string]string `json:"attrs"`
	jwt.RegisteredClaims
}

type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewManager(secret []byte, ttl time.Duration) *Manager {
	return &Manager{secret: secret, ttl: ttl, now: time.Now}
}

// Save writes attrs into a fresh session cookie.
func (m *Manager) Save(w http.ResponseWriter, attrs map[string]string) error {
	now := m.now()
	exp := now.Add(m.ttl)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Attrs: attrs,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}).SignedString(m.secret)
	if err != nil {
		return fmt.Errorf("sign session: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  exp,
		MaxAge:   int(m.ttl / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Get returns the attributes stored in the request's session cookie.
func (m *Manager) Get(r *http.Request) (map[string]string, error) {
	ck, err := r.Cookie(CookieName)
	if err != nil {
		return nil, ErrNoSession
	}

	var c claims
	_, err = jwt.ParseWithClaims(ck.Value, &c, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	if c.Attrs == nil {
		c.Attrs = map[string]string{}
	}
	return c.Attrs, nil
}
