package middleware

import (
	"net/http"
	"strings"

	"github.com/aq2208/gorder-storefront/internal/usecase"
	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

// TokenParser turns a session token into the caller's identity.
type TokenParser interface {
	Parse(raw string) (usecase.Principal, error)
}

// Authn resolves the session from the session cookie or an
// "Authorization: Bearer" header.
type Authn struct {
	tokens     TokenParser
	cookieName string
}

func NewAuthn(tokens TokenParser, cookieName string) *Authn {
	if cookieName == "" {
		cookieName = "session"
	}
	return &Authn{tokens: tokens, cookieName: cookieName}
}

// Require rejects requests without a valid session.
func (a *Authn) Require() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := a.token(c)
		if raw == "" {
			unauth(c, "invalid_request", "missing session")
			return
		}
		p, err := a.tokens.Parse(raw)
		if err != nil {
			unauth(c, "invalid_token", "invalid or expired session")
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

// RequireAdmin must run after Require.
func (a *Authn) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !Principal(c).IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Administrator access required"})
			return
		}
		c.Next()
	}
}

func (a *Authn) token(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if v, err := c.Cookie(a.cookieName); err == nil {
		return v
	}
	return ""
}

// Principal returns the caller attached by Require; the zero
// value is an anonymous caller.
func Principal(c *gin.Context) usecase.Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(usecase.Principal); ok {
			return p
		}
	}
	return usecase.Principal{}
}

func unauth(c *gin.Context, code, desc string) {
	c.Header("WWW-Authenticate", `Bearer error="`+code+`", error_description="`+desc+`"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "error_description": desc})
}
