package middleware

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aq2208/gorder-storefront/internal/logging"
	"github.com/aq2208/gorder-storefront/internal/security"
	"github.com/aq2208/gorder-storefront/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

type stubTokens map[string]usecase.Principal

func (s stubTokens) Parse(raw string) (usecase.Principal, error) {
	if p, ok := s[raw]; ok {
		return p, nil
	}
	return usecase.Principal{}, errors.New("bad token")
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthn(t *testing.T) {
	authn := NewAuthn(stubTokens{
		"cust":  {UserID: "u1", Role: usecase.RoleCustomer},
		"admin": {UserID: "a1", Role: usecase.RoleAdmin},
	}, "")

	r := gin.New()
	r.GET("/me", authn.Require(), func(c *gin.Context) { c.String(http.StatusOK, Principal(c).UserID) })
	r.GET("/admin", authn.Require(), authn.RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	w := serve(r, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Header().Get("WWW-Authenticate"), `error="invalid_request"`)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer nope")
	w = serve(r, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Header().Get("WWW-Authenticate"), `error="invalid_token"`)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: "cust"})
	w = serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer cust")
	assert.Equal(t, http.StatusForbidden, serve(r, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer admin")
	assert.Equal(t, http.StatusNoContent, serve(r, req).Code)
}

func TestVerifySignature(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	signer := security.NewRSASigner(key)

	newRouter := func(v security.Verifier) *gin.Engine {
		r := gin.New()
		r.POST("/hook", VerifySignature(v), func(c *gin.Context) {
			body, _ := io.ReadAll(c.Request.Body)
			c.String(http.StatusOK, string(body))
		})
		return r
	}
	body := []byte(`{"orderId":"o1","status":"COMPLETED"}`)
	sig, err := signer.Sign(body)
	require.NoError(t, err)

	post := func(r *gin.Engine, sigHeader string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/hook", bytes.NewReader(body))
		if sigHeader != "" {
			req.Header.Set(SignatureHeader, sigHeader)
		}
		return serve(r, req)
	}

	r := newRouter(security.NewRSAVerifier(&key.PublicKey))
	w := post(r, base64.StdEncoding.EncodeToString(sig))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, string(body), w.Body.String(), "handler reads the original body")

	assert.Equal(t, http.StatusUnauthorized, post(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, post(r, "%%%").Code)
	assert.Equal(t, http.StatusUnauthorized, post(r, base64.StdEncoding.EncodeToString([]byte("forged"))).Code)

	assert.Equal(t, http.StatusServiceUnavailable, post(newRouter(nil), base64.StdEncoding.EncodeToString(sig)).Code)
}

func TestRedactJSON(t *testing.T) {
	in := `{"email":"a@b.c","password":"pw","items":[{"productId":"p1","quantity":2}],"address":{"Address1":"1 Main","city":"X"}}`
	var out map[string]any
	require.NoError(t, json.Unmarshal(redactJSON([]byte(in)), &out))

	assert.Equal(t, redacted, out["email"])
	assert.Equal(t, redacted, out["password"])
	assert.Equal(t, redacted, out["address"].(map[string]any)["Address1"])
	assert.Equal(t, "X", out["address"].(map[string]any)["city"])
	assert.Equal(t, "p1", out["items"].([]any)[0].(map[string]any)["productId"])

	assert.Equal(t, "not json", string(redactJSON([]byte("not json"))))
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	r := gin.New()
	r.Use(Logging(base))
	r.POST("/api/session", func(c *gin.Context) {
		var in map[string]string
		require.NoError(t, c.ShouldBindJSON(&in))
		assert.NotNil(t, logging.From(c))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password", "echo": in["password"]})
	})
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/api/session", strings.NewReader(`{"email":"a@b.c","password":"hunter2"}`))
	req.Header.Set("Content-Type", "application/json")
	w := serve(r, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "hunter2", "handler saw the raw body")
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "/api/session", line["path"])
	assert.Equal(t, float64(http.StatusUnauthorized), line["status"])
	assert.NotContains(t, line["req_body"], "hunter2")
	assert.Equal(t, w.Header().Get(RequestIDHeader), line["req_id"])

	buf.Reset()
	serve(r, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Zero(t, buf.Len(), "probes are not logged")

}

func TestLogging_TruncatesLargeBodies(t *testing.T) {
	var buf bytes.Buffer
	r := gin.New()
	r.Use(Logging(slog.New(slog.NewJSONHandler(&buf, nil))))
	var got int
	r.POST("/bulk", func(c *gin.Context) {
		b, _ := io.ReadAll(c.Request.Body)
		got = len(b)
		c.Status(http.StatusAccepted)
	})

	big := `{"blob":"` + strings.Repeat("x", 3*bodyLogLimit) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/bulk", strings.NewReader(big))
	req.Header.Set("Content-Type", "application/json")
	serve(r, req)

	assert.Equal(t, len(big), got)
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, truncated, line["req_body"])
}
