package middleware

import (
	"bytes"
	"encoding/base64"
	"io"
	"net/http"

	"github.com/aq2208/gorder-storefront/internal/logging"
	"github.com/aq2208/gorder-storefront/internal/security"
	"github.com/gin-gonic/gin"
)

const (
	SignatureHeader  = "X-Signature"
	maxSignedBodyLen = 1 << 20
)

// VerifySignature accepts the request only if SignatureHeader carries a
// base64 signature of the raw body. The body is restored for the handler.
func VerifySignature(v security.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if v == nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "webhook verification not configured"})
			return
		}
		rawBody, err := io.ReadAll(io.LimitReader(c.Request.Body, maxSignedBodyLen+1))
		_ = c.Request.Body.Close()
		if err != nil || len(rawBody) > maxSignedBodyLen {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
			return
		}

		sig, err := base64.StdEncoding.DecodeString(c.GetHeader(SignatureHeader))
		if err != nil || len(sig) == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid signature encoding"})
			return
		}
		if err := v.Verify(rawBody, sig); err != nil {
			logging.From(c).Warn("webhook signature rejected", "err", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "signature verification failed"})
			return
		}

		c.Request.Body = io.NopCloser(bytes.NewReader(rawBody))
		c.Request.ContentLength = int64(len(rawBody))
		c.Next()
	}
}
