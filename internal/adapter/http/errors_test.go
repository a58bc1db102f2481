package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aq2208/gorder-storefront/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{usecase.ErrUnauthorized, http.StatusUnauthorized},
		{usecase.ErrForbidden, http.StatusForbidden},
		{&usecase.Error{Kind: usecase.ErrBadRequest, Msg: "bad"}, http.StatusBadRequest},
		{&usecase.Error{Kind: usecase.ErrNotFound, Msg: "gone"}, http.StatusNotFound},
		{usecase.ErrDuplicate, http.StatusConflict},
		{fmt.Errorf("load: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusOf(tc.err), tc.err.Error())
	}
}

func TestWriteError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	render := func(detail bool, err error) (int, map[string]string) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		c.Set(detailKey, detail)
		writeError(c, err)
		var body map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		return w.Code, body
	}

	code, body := render(true, &usecase.Error{Kind: usecase.ErrNotFound, Msg: "Order not found", Err: errors.New("sql: no rows")})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, map[string]string{"error": "Order not found"}, body)

	code, body = render(false, errors.New("dial tcp: refused"))
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "Internal server error", body["error"])
	assert.NotContains(t, body, "detail")

	_, body = render(true, errors.New("dial tcp: refused"))
	assert.Equal(t, "dial tcp: refused", body["detail"])
}
