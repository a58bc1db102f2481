package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	domain "github.com/aq2208/gorder-storefront/internal/entity"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI records requests and serves canned storefront responses.
type fakeAPI struct {
	mu         sync.Mutex
	paths      []string
	orderReq   OrderRequest
	addressReq AddressRequest
	idemKey    string
	auth       string
	payStatus  int
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/shipping-methods", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		assert.Equal(t, "true", r.URL.Query().Get("activeOnly"))
		writeJSON(w, http.StatusOK, []domain.ShippingMethod{
			{ID: "m-off", Name: "Pigeon", Cost: decimal.NewFromInt(1), Active: false},
			{ID: "m1", Name: "Courier", Cost: decimal.NewFromInt(200), Active: true},
		})
	})
	mux.HandleFunc("POST /api/addresses", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&f.addressReq))
		writeJSON(w, http.StatusCreated, domain.Address{ID: "addr-1", IsDefault: true})
	})
	mux.HandleFunc("POST /api/orders", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		f.idemKey = r.Header.Get(idempotencyHeader)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&f.orderReq))
		writeJSON(w, http.StatusCreated, domain.Order{ID: "o-1", OrderNumber: "ORD-1", Total: decimal.NewFromInt(2200)})
	})
	mux.HandleFunc("POST /api/orders/{id}/payments", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		if f.payStatus != 0 {
			writeJSON(w, f.payStatus, map[string]string{"error": "Order ORD-1 is cancelled"})
			return
		}
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, http.StatusCreated, domain.Payment{
			ID: "pay-1", OrderID: r.PathValue("id"), PaymentMethod: domain.PaymentMethod(body["paymentMethod"]),
			Status: domain.PaymentCompleted,
		})
	})
	return mux
}

func (f *fakeAPI) record(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, r.Method+" "+r.URL.Path)
	f.auth = r.Header.Get("Authorization")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func newCheckout(t *testing.T, api *fakeAPI) (*Checkout, *Cart) {
	t.Helper()
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)

	cart := NewCart()
	require.NoError(t, cart.AddItem(product("p1", "1000", 5), "", "", 2))
	return New(NewClient(srv.URL, WithBearer("tok")), cart), cart
}

func TestSubmit_NewAddress(t *testing.T) {
	api := &fakeAPI{}
	co, cart := newCheckout(t, api)

	res, err := co.Submit(context.Background(), Form{
		FullName: "Ada King Lovelace", Address1: "12 St James's Square", City: "London",
		PostalCode: "SW1Y 4JH", Country: "GB", PaymentMethod: domain.MethodCard,
	})
	require.NoError(t, err)
	assert.Equal(t, "o-1", res.Order.ID)
	assert.Equal(t, "pay-1", res.Payment.ID)
	assert.Equal(t, "o-1", res.Payment.OrderID)

	assert.Equal(t, []string{
		"GET /api/shipping-methods",
		"POST /api/addresses",
		"POST /api/orders",
		"POST /api/orders/o-1/payments",
	}, api.paths)
	assert.Equal(t, "Bearer tok", api.auth)

	assert.Equal(t, "Ada", api.addressReq.FirstName)
	assert.Equal(t, "King Lovelace", api.addressReq.LastName)
	assert.True(t, api.addressReq.IsDefault)

	assert.Equal(t, "addr-1", api.orderReq.ShippingAddressID)
	assert.Equal(t, "m1", api.orderReq.ShippingMethodID, "first active method is selected")
	require.Len(t, api.orderReq.Items, 1)
	assert.Equal(t, 2, api.orderReq.Items[0].Quantity)
	assert.True(t, api.orderReq.Total.Equal(decimal.NewFromInt(2200)))
	assert.NotEmpty(t, api.idemKey)

	assert.Zero(t, cart.Len(), "cart cleared after success")
}

func TestSubmit_SavedAddressKeepsSelection(t *testing.T) {
	api := &fakeAPI{}
	co, cart := newCheckout(t, api)
	cart.SelectShipping(domain.ShippingMethod{ID: "m-express", Cost: decimal.NewFromInt(500), Active: true})

	_, err := co.Submit(context.Background(), Form{AddressID: "addr-9", PaymentMethod: domain.MethodCash, IdempotencyKey: "k-1"})
	require.NoError(t, err)
	assert.NotContains(t, api.paths, "POST /api/addresses")
	assert.Equal(t, "addr-9", api.orderReq.ShippingAddressID)
	assert.Equal(t, "m-express", api.orderReq.ShippingMethodID)
	assert.True(t, api.orderReq.Shipping.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, "k-1", api.idemKey)
}

func TestSubmit_PaymentFailureKeepsCart(t *testing.T) {
	api := &fakeAPI{payStatus: http.StatusBadRequest}
	co, cart := newCheckout(t, api)

	_, err := co.Submit(context.Background(), Form{AddressID: "addr-9", PaymentMethod: domain.MethodCard})
	var pe *PaymentError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "ORD-1", pe.Order.OrderNumber)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "Order ORD-1 is cancelled", apiErr.Message)

	assert.Equal(t, 1, cart.Len())
}

func TestSubmit_EmptyCart(t *testing.T) {
	co := New(NewClient("http://127.0.0.1:0"), NewCart())
	_, err := co.Submit(context.Background(), Form{})
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestClient_CookieAuthAndErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ck, err := r.Cookie("session")
		if err != nil || ck.Value != "abc" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).CreateAddress(context.Background(), AddressRequest{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "Unauthorized", apiErr.Message)

	_, err = NewClient(srv.URL+"/", WithSessionCookie("session", "abc")).CreateAddress(context.Background(), AddressRequest{})
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "Bad Gateway", apiErr.Message)
}
