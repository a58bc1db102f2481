package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aq2208/gorder-storefront/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	RequestIDHeader = "X-Request-Id"
	bodyLogLimit    = 8 * 1024 // 8KB
	redacted        = "***redacted***"
	truncated       = "...truncated..."
)

// Keys masked in logged bodies: credentials and shopper PII.
var redactedKeys = map[string]bool{
	"password":      true,
	"password_hash": true,
	"authorization": true,
	"token":         true,
	"secret":        true,
	"phone":         true,
	"address1":      true,
	"address2":      true,
	"email":         true,
}

// Probes are served but not logged.
var quietPaths = map[string]bool{
	"/healthz": true,
	"/metrics": true,
}

// cappedRecorder tees up to limit bytes of the response body.
type cappedRecorder struct {
	gin.ResponseWriter
	limit int
	buf   bytes.Buffer
}

func (w *cappedRecorder) Write(b []byte) (int, error) {
	if room := w.limit - w.buf.Len(); room > 0 {
		w.buf.Write(b[:min(room, len(b))])
	}
	return w.ResponseWriter.Write(b)
}

func (w *cappedRecorder) full() bool { return w.buf.Len() >= w.limit }

func scrub(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			if redactedKeys[strings.ToLower(k)] {
				t[k] = redacted
			} else {
				t[k] = scrub(val)
			}
		}
	case []any:
		for i := range t {
			t[i] = scrub(t[i])
		}
	}
	return v
}

// redactJSON masks sensitive keys; non-JSON input is returned unchanged.
func redactJSON(raw []byte) []byte {
	var v any
	if len(raw) == 0 || json.Unmarshal(raw, &v) != nil {
		return raw
	}
	out, err := json.Marshal(scrub(v))
	if err != nil {
		return raw
	}
	return out
}

// peekBody reads up to n bytes. rest is nil when the whole body fit,
// otherwise it still holds the unread remainder.
func peekBody(rc io.ReadCloser, n int) (head []byte, rest io.ReadCloser) {
	var buf bytes.Buffer
	_, _ = io.CopyN(&buf, rc, int64(n+1))
	if buf.Len() <= n {
		_ = rc.Close()
		return buf.Bytes(), nil
	}
	return buf.Bytes(), rc
}

func restoreBody(head []byte, rest io.ReadCloser) io.ReadCloser {
	if rest == nil {
		return io.NopCloser(bytes.NewReader(head))
	}
	return struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(head), rest), rest}
}

func isJSON(contentType string) bool {
	return strings.Contains(contentType, "application/json")
}

// Logging tags each request with an id, stores a request-scoped logger for
// handlers and use cases, and writes one access line when the request ends.
// Handlers always see the original, unredacted body.
func Logging(base *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		reqID := c.GetHeader(RequestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
			c.Request.Header.Set(RequestIDHeader, reqID)
		}
		c.Header(RequestIDHeader, reqID)

		l := base.With("req_id", reqID, "method", c.Request.Method, "path", c.FullPath())
		logging.With(c, l)

		var reqBody string
		if isJSON(c.GetHeader("Content-Type")) && c.Request.Body != nil {
			head, rest := peekBody(c.Request.Body, bodyLogLimit)
			if rest == nil {
				reqBody = string(redactJSON(head))
			} else {
				reqBody = truncated // a partial document cannot be redacted
			}
			c.Request.Body = restoreBody(head, rest)
		}

		rec := &cappedRecorder{ResponseWriter: c.Writer, limit: bodyLogLimit}
		c.Writer = rec

		c.Next()

		if quietPaths[c.Request.URL.Path] {
			return
		}
		status := c.Writer.Status()
		attrs := []any{
			"status", status,
			"dur_ms", time.Since(start).Milliseconds(),
			"remote", c.ClientIP(),
			"resp_bytes", c.Writer.Size(),
		}
		if p := Principal(c); p.Authenticated() {
			attrs = append(attrs, "user_id", p.UserID)
		}
		if key := c.GetHeader("X-Idempotency-Key"); key != "" {
			attrs = append(attrs, "idempotency_key", key)
		}
		if reqBody != "" {
			attrs = append(attrs, "req_body", reqBody)
		}
		if isJSON(c.Writer.Header().Get("Content-Type")) && rec.buf.Len() > 0 {
			if rec.full() {
				attrs = append(attrs, "resp_body", truncated)
			} else {
				attrs = append(attrs, "resp_body", string(redactJSON(rec.buf.Bytes())))
			}
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "error", c.Errors.String())
		}

		switch {
		case status >= http.StatusInternalServerError:
			l.Error("http_request", attrs...)
		case status >= http.StatusBadRequest:
			l.Warn("http_request", attrs...)
		default:
			l.Info("http_request", attrs...)
		}
	}
}
