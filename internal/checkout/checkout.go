package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	domain "github.com/aq2208/gorder-storefront/internal/entity"
	"github.com/aq2208/gorder-storefront/internal/logging"
	"github.com/google/uuid"
)

var (
	ErrEmptyCart         = errors.New("cart is empty")
	ErrNoShippingMethods = errors.New("no active shipping methods")
)

// PaymentError means the order was created but recording the payment failed.
// The order stays in place with no payments.
type PaymentError struct {
	Order *domain.Order
	Err   error
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("order %s created but payment failed: %v", e.Order.OrderNumber, e.Err)
}

func (e *PaymentError) Unwrap() error { return e.Err }

// Form is what the shopper filled in on the checkout page. AddressID picks a
// saved address; when empty the address fields are saved as the new default.
type Form struct {
	AddressID  string
	FullName   string
	Company    string
	Address1   string
	Address2   string
	City       string
	State      string
	PostalCode string
	Country    string
	Phone      string

	PaymentMethod domain.PaymentMethod
	// IdempotencyKey makes a resubmitted form return the same order.
	IdempotencyKey string
}

type Result struct {
	Order   *domain.Order
	Payment *domain.Payment
}

type Checkout struct {
	client *Client
	cart   *Cart
	log    *slog.Logger
}

func New(client *Client, cart *Cart) *Checkout {
	return &Checkout{client: client, cart: cart, log: logging.New("checkout")}
}

// LoadShippingMethods fetches active methods and selects the first one when
// the cart has none selected yet.
func (co *Checkout) LoadShippingMethods(ctx context.Context) ([]domain.ShippingMethod, error) {
	methods, err := co.client.ShippingMethods(ctx, true)
	if err != nil {
		return nil, err
	}
	if _, ok := co.cart.Shipping(); !ok {
		for _, m := range methods {
			if m.Active {
				co.cart.SelectShipping(m)
				break
			}
		}
	}
	return methods, nil
}

// Submit places the order for the cart's contents and pays for it. The cart
// is cleared only when both steps succeed.
func (co *Checkout) Submit(ctx context.Context, f Form) (*Result, error) {
	lines := co.cart.Lines()
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}
	if _, err := co.LoadShippingMethods(ctx); err != nil {
		return nil, fmt.Errorf("load shipping methods: %w", err)
	}
	method, ok := co.cart.Shipping()
	if !ok {
		return nil, ErrNoShippingMethods
	}

	addressID := f.AddressID
	if addressID == "" {
		first, last := domain.SplitFullName(f.FullName)
		addr, err := co.client.CreateAddress(ctx, AddressRequest{
			FirstName:  first,
			LastName:   last,
			Company:    f.Company,
			Address1:   f.Address1,
			Address2:   f.Address2,
			City:       f.City,
			State:      f.State,
			PostalCode: f.PostalCode,
			Country:    f.Country,
			Phone:      f.Phone,
			IsDefault:  true,
		})
		if err != nil {
			return nil, fmt.Errorf("save address: %w", err)
		}
		addressID = addr.ID
	}

	req := OrderRequest{
		ShippingAddressID: addressID,
		ShippingMethodID:  method.ID,
		Subtotal:          co.cart.Total(),
		Shipping:          method.Cost,
	}
	req.Total = req.Subtotal.Add(req.Shipping)
	for _, l := range lines {
		req.Items = append(req.Items, OrderItemRequest{
			ProductID: l.Product.ID,
			VariantID: l.variantID(),
			Quantity:  l.Quantity,
			Price:     l.UnitPrice(),
		})
	}
	key := strings.TrimSpace(f.IdempotencyKey)
	if key == "" {
		key = uuid.NewString()
	}

	order, err := co.client.CreateOrder(ctx, key, req)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	co.log.Info("order placed", "order_id", order.ID, "order_number", order.OrderNumber, "total", order.Total.String())

	pay, err := co.client.CreatePayment(ctx, order.ID, f.PaymentMethod)
	if err != nil {
		co.log.Warn("payment failed after order creation", "order_id", order.ID, "err", err)
		return nil, &PaymentError{Order: order, Err: err}
	}

	co.cart.Clear()
	return &Result{Order: order, Payment: pay}, nil
}
