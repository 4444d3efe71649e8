// Package session mints and verifies signed, time-bounded session tokens
// and describes how the transport must deliver them.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/taskmanager/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTTL is the validity window of a session token.
const DefaultTTL = 24 * time.Hour

// Claims is the token payload: the registered claims plus the account
// identity, its privilege flag and the credential version the token was
// minted against.
type Claims struct {
	jwt.RegisteredClaims
	Identity          string `json:"identity"`
	Privileged        bool   `json:"isAdmin"`
	CredentialVersion int64  `json:"cv"`
}

// AccountID is the subject of the token.
func (c *Claims) AccountID() string { return c.Subject }

// Cookie is the delivery descriptor handed to the transport. The issuer
// never touches transport state itself.
type Cookie struct {
	Name     string
	Path     string
	HTTPOnly bool
	Secure   bool
	SameSite http.SameSite
	MaxAge   time.Duration
}

// HTTPCookie renders the descriptor for value.
func (c Cookie) HTTPCookie(value string) *http.Cookie {
	return &http.Cookie{
		Name:     c.Name,
		Value:    value,
		Path:     c.Path,
		HttpOnly: c.HTTPOnly,
		Secure:   c.Secure,
		SameSite: c.SameSite,
		MaxAge:   int(c.MaxAge / time.Second),
	}
}

// Expired renders a cookie that makes the browser drop the session.
func (c Cookie) Expired() *http.Cookie {
	return &http.Cookie{
		Name:     c.Name,
		Value:    "",
		Path:     c.Path,
		HttpOnly: c.HTTPOnly,
		Secure:   c.Secure,
		SameSite: c.SameSite,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	}
}

// Session is what a successful login returns.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Cookie    Cookie
}

// Config configures an Issuer.
type Config struct {
	Secret       []byte
	TTL          time.Duration
	InsecureHTTP bool // drop the Secure cookie attribute for plain-HTTP development
	Now          func() time.Time
}

type Issuer struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

func NewIssuer(cfg Config) (*Issuer, error) {
	if len(cfg.Secret) == 0 {
		return nil, fmt.Errorf("%w: session secret is not set", common.ErrConfigurationFatal)
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Issuer{secret: cfg.Secret, ttl: ttl, secure: !cfg.InsecureHTTP, now: now}, nil
}

// Cookie returns the delivery descriptor for tokens of this issuer.
func (i *Issuer) Cookie() Cookie {
	return Cookie{
		Name:     common.SessionCookieName,
		Path:     "/",
		HTTPOnly: true,
		Secure:   i.secure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   i.ttl,
	}
}

// Issue mints a token for the account. credentialVersion is the account's
// last credential change; tokens minted before a later change are rejected
// by CheckCredentialVersion.
func (i *Issuer) Issue(accountID, identity string, privileged bool, credentialVersion time.Time) (*Session, error) {
	now := i.now()
	expires := now.Add(i.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Identity:          identity,
		Privileged:        privileged,
		CredentialVersion: credentialVersion.UnixNano(),
	})

	signed, err := token.SignedString(i.secret)
	if err != nil {
		return nil, err
	}

	return &Session{Token: signed, ExpiresAt: expires, Cookie: i.Cookie()}, nil
}

// Verify parses and validates a token. Any signature, algorithm or expiry
// failure rejects the token entirely.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, common.ErrInvalidToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}

// CheckCredentialVersion rejects claims minted before the account's last
// credential change.
func CheckCredentialVersion(c *Claims, lastCredentialChange time.Time) error {
	if c.CredentialVersion < lastCredentialChange.UnixNano() {
		return common.ErrInvalidToken
	}
	return nil
}
