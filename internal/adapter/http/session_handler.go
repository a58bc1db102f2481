package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aq2208/gorder-storefront/internal/adapter/http/middleware"
	"github.com/aq2208/gorder-storefront/internal/logging"
	"github.com/aq2208/gorder-storefront/internal/security"
	"github.com/aq2208/gorder-storefront/internal/usecase"
	"github.com/gin-gonic/gin"
)

const requestTimeout = 5 * time.Second

// requestCtx bounds a use case call by requestTimeout.
func requestCtx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), requestTimeout)
}

type Authenticator interface {
	Authenticate(email, password string) (usecase.Principal, error)
}

type TokenIssuer interface {
	Issue(p usecase.Principal) (string, time.Time, error)
}

type CookieOptions struct {
	Name   string
	Secure bool
}

type SessionHandler struct {
	accounts Authenticator
	tokens   TokenIssuer
	cookie   CookieOptions
}

func NewSessionHandler(accounts Authenticator, tokens TokenIssuer, cookie CookieOptions) *SessionHandler {
	if cookie.Name == "" {
		cookie.Name = "session"
	}
	return &SessionHandler{accounts: accounts, tokens: tokens, cookie: cookie}
}

type loginReq struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type sessionUser struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
}

type sessionResp struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      sessionUser `json:"user"`
}

// POST /api/session
func (h *SessionHandler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Email and password are required")
		return
	}
	p, err := h.accounts.Authenticate(req.Email, req.Password)
	if errors.Is(err, security.ErrBadCredentials) {
		logging.From(c).Warn("login failed", "email", req.Email)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	token, exp, err := h.tokens.Issue(p)
	if err != nil {
		writeError(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, token, int(time.Until(exp).Seconds()), "/", "", h.cookie.Secure, true)
	c.JSON(http.StatusOK, sessionResp{
		Token:     token,
		ExpiresAt: exp,
		User:      sessionUser{ID: p.UserID, Email: p.Email, Role: p.Role},
	})
}

// DELETE /api/session
func (h *SessionHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, "", -1, "/", "", h.cookie.Secure, true)
	c.Status(http.StatusNoContent)
}

// GET /api/session
func (h *SessionHandler) Current(c *gin.Context) {
	p := middleware.Principal(c)
	c.JSON(http.StatusOK, sessionUser{ID: p.UserID, Email: p.Email, Role: p.Role})
}
