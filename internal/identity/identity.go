// Package identity reads the caller's identity from HS256 bearer tokens.
// Tokens are issued elsewhere; this package only verifies them.
package identity

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const contextKey = "principal"

var ErrUnauthenticated = errors.New("unauthenticated")

// Principal is the authenticated caller.
type Principal struct {
	UserID string
	Name   string
	Admin  bool
}

// Owns reports whether the principal may act on a resource owned by userID.
func (p Principal) Owns(userID string) bool {
	return p.Admin || (p.UserID != "" && p.UserID == userID)
}

type claims struct {
	Name  string `json:"name,omitempty"`
	Admin bool   `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Parse validates the token signature and expiry and returns its principal.
func (v *Verifier) Parse(token string) (Principal, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if c.Subject == "" {
		return Principal{}, fmt.Errorf("%w: token has no subject", ErrUnauthenticated)
	}
	return Principal{UserID: c.Subject, Name: c.Name, Admin: c.Admin}, nil
}

// NewToken signs a token for p. Used by tests and local tooling.
func (v *Verifier) NewToken(p Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Name:  p.Name,
		Admin: p.Admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return t.SignedString(v.secret)
}

// Middleware rejects requests without a valid bearer token and stores the
// principal on the gin context.
func (v *Verifier) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "login required"})
			return
		}

		p, err := v.Parse(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid session"})
			return
		}
		c.Set(contextKey, p)
		c.Next()
	}
}

// RequireAdmin must run after Middleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if p, ok := FromContext(c); !ok || !p.Admin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin only"})
			return
		}
		c.Next()
	}
}

// FromContext returns the principal stored by Middleware.
func FromContext(c *gin.Context) (Principal, bool) {
	v, ok := c.Get(contextKey)
	if !ok {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}
