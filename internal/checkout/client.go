package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	domain "github.com/aq2208/gorder-storefront/internal/entity"
	"github.com/shopspring/decimal"
)

const idempotencyHeader = "X-Idempotency-Key"

// APIError is a non-2xx response from the storefront API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("storefront api: %d %s", e.Status, e.Message)
}

// Client talks to the storefront JSON API with either a bearer token or a
// session cookie.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
	cookie     *http.Cookie
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption { return func(c *Client) { c.httpClient = hc } }
func WithBearer(token string) ClientOption        { return func(c *Client) { c.token = token } }

// WithSessionCookie authenticates with the cookie set by POST /api/session.
func WithSessionCookie(name, value string) ClientOption {
	return func(c *Client) { c.cookie = &http.Cookie{Name: name, Value: value} }
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type AddressRequest struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Company    string `json:"company,omitempty"`
	Address1   string `json:"address1"`
	Address2   string `json:"address2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
	IsDefault  bool   `json:"isDefault"`
}

type OrderItemRequest struct {
	ProductID string          `json:"productId"`
	VariantID string          `json:"variantId,omitempty"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type OrderRequest struct {
	ShippingAddressID string             `json:"shippingAddressId"`
	ShippingMethodID  string             `json:"shippingMethodId,omitempty"`
	Items             []OrderItemRequest `json:"items"`
	Subtotal          decimal.Decimal    `json:"subtotal"`
	Shipping          decimal.Decimal    `json:"shipping"`
	Total             decimal.Decimal    `json:"total"`
}

func (c *Client) ShippingMethods(ctx context.Context, activeOnly bool) ([]domain.ShippingMethod, error) {
	q := url.Values{}
	if activeOnly {
		q.Set("activeOnly", "true")
	}
	var out []domain.ShippingMethod
	err := c.do(ctx, http.MethodGet, "/api/shipping-methods?"+q.Encode(), nil, nil, &out)
	return out, err
}

func (c *Client) CreateAddress(ctx context.Context, in AddressRequest) (*domain.Address, error) {
	var out domain.Address
	if err := c.do(ctx, http.MethodPost, "/api/addresses", in, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateOrder(ctx context.Context, idemKey string, in OrderRequest) (*domain.Order, error) {
	var hdr http.Header
	if idemKey != "" {
		hdr = http.Header{idempotencyHeader: []string{idemKey}}
	}
	var out domain.Order
	if err := c.do(ctx, http.MethodPost, "/api/orders", in, hdr, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreatePayment(ctx context.Context, orderID string, method domain.PaymentMethod) (*domain.Payment, error) {
	var out domain.Payment
	body := map[string]string{"paymentMethod": string(method)}
	if err := c.do(ctx, http.MethodPost, "/api/orders/"+url.PathEscape(orderID)+"/payments", body, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in any, hdr http.Header, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header[k] = v
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read %s %s: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		msg := http.StatusText(resp.StatusCode)
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
