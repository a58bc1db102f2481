package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aq2208/gorder-storefront/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendGridNotifier_OrderConfirmation(t *testing.T) {
	var (
		gotPath string
		gotAuth string
		gotBody map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := NewSendGridNotifier("SG.test", "orders@shop.test", "Shop", WithHost(srv.URL))
	err := n.OrderConfirmation(context.Background(), usecase.OrderCreatedMsg{
		OrderID:     "o-1",
		OrderNumber: "ORD-20261018-ABCDEFGH",
		Email:       "alice@shop.test",
		Total:       "2200.00",
		Currency:    "USD",
		ItemCount:   2,
	})
	require.NoError(t, err)

	assert.Equal(t, "/v3/mail/send", gotPath)
	assert.Equal(t, "Bearer SG.test", gotAuth)
	assert.Equal(t, "Order ORD-20261018-ABCDEFGH confirmed", gotBody["subject"])
	from, _ := gotBody["from"].(map[string]any)
	assert.Equal(t, "orders@shop.test", from["email"])
}

func TestSendGridNotifier_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	defer srv.Close()

	n := NewSendGridNotifier("bad", "orders@shop.test", "Shop", WithHost(srv.URL))
	err := n.OrderConfirmation(context.Background(), usecase.OrderCreatedMsg{Email: "a@b.test"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}
