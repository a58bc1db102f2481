package http

import (
	"net/http"
	"strings"

	"github.com/aq2208/gorder-storefront/internal/adapter/http/middleware"
	domain "github.com/aq2208/gorder-storefront/internal/entity"
	"github.com/aq2208/gorder-storefront/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const IdempotencyHeader = "X-Idempotency-Key"

type OrderHandler struct {
	create *usecase.CreateOrder
	query  *usecase.OrderQuery
	status *usecase.UpdateStatus
}

func NewOrderHandler(create *usecase.CreateOrder, query *usecase.OrderQuery, status *usecase.UpdateStatus) *OrderHandler {
	return &OrderHandler{create: create, query: query, status: status}
}

type createOrderItemReq struct {
	ProductID string           `json:"productId"`
	VariantID string           `json:"variantId"`
	Quantity  int              `json:"quantity"`
	Price     *decimal.Decimal `json:"price"`
}

type createOrderReq struct {
	ShippingAddressID string               `json:"shippingAddressId"`
	ShippingMethodID  string               `json:"shippingMethodId"`
	Items             []createOrderItemReq `json:"items"`

	// display hints from the client; the server recomputes all money
	Subtotal *decimal.Decimal `json:"subtotal"`
	Tax      *decimal.Decimal `json:"tax"`
	Shipping *decimal.Decimal `json:"shipping"`
	Total    *decimal.Decimal `json:"total"`
}

// POST /api/orders
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	in := usecase.CreateOrderInput{
		Principal:         middleware.Principal(c),
		IdempotencyKey:    strings.TrimSpace(c.GetHeader(IdempotencyHeader)), // prevent duplicated requests
		ShippingAddressID: req.ShippingAddressID,
		ShippingMethodID:  req.ShippingMethodID,
		ItemsGiven:        req.Items != nil, // "items": [] is not the same as no items key
		Hint: usecase.TotalsHint{
			Subtotal: req.Subtotal,
			Tax:      req.Tax,
			Shipping: req.Shipping,
			Total:    req.Total,
		},
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, usecase.CreateOrderItem{
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Quantity:  it.Quantity,
			Price:     it.Price,
		})
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	out, err := h.create.Execute(ctx, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

// GET /api/orders?page&limit&userId
func (h *OrderHandler) ListOrders(c *gin.Context) {
	page, limit := pageParams(c)
	ctx, cancel := requestCtx(c)
	defer cancel()

	out, err := h.query.List(ctx, middleware.Principal(c), usecase.ListOrdersInput{
		Page:   page,
		Limit:  limit,
		UserID: c.Query("userId"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// GET /api/orders/:id
func (h *OrderHandler) GetOrderByID(c *gin.Context) {
	ctx, cancel := requestCtx(c)
	defer cancel()

	out, err := h.query.Get(ctx, middleware.Principal(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// GET /api/orders/:id/status
func (h *OrderHandler) Status(c *gin.Context) {
	ctx, cancel := requestCtx(c)
	defer cancel()

	out, err := h.query.Status(ctx, middleware.Principal(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

type updateOrderReq struct {
	Status        string `json:"status"`
	PaymentID     string `json:"paymentId"`
	PaymentStatus string `json:"paymentStatus"`
	TransactionID string `json:"transactionId"`
}

// PATCH /api/orders/:id
// Body carries a new order status, a payment status change, or both; the
// order status is applied first.
func (h *OrderHandler) UpdateOrder(c *gin.Context) {
	var req updateOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	wantStatus := strings.TrimSpace(req.Status) != ""
	wantPayment := req.PaymentID != "" && strings.TrimSpace(req.PaymentStatus) != ""
	if !wantStatus && !wantPayment {
		badRequest(c, "Provide status, or paymentId with paymentStatus")
		return
	}

	ctx, cancel := requestCtx(c)
	defer cancel()
	p := middleware.Principal(c)
	id := c.Param("id")

	var (
		out *domain.Order
		err error
	)
	if wantStatus {
		to := domain.Status(strings.ToUpper(strings.TrimSpace(req.Status)))
		if out, err = h.status.Order(ctx, p, id, to); err != nil {
			writeError(c, err)
			return
		}
	}
	if wantPayment {
		to := domain.PaymentStatus(strings.ToUpper(strings.TrimSpace(req.PaymentStatus)))
		if out, err = h.status.Payment(ctx, p, id, req.PaymentID, to, req.TransactionID); err != nil {
			writeError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, out)
}

// GET /api/orders/:id/history
func (h *OrderHandler) History(c *gin.Context) {
	ctx, cancel := requestCtx(c)
	defer cancel()

	out, err := h.query.History(ctx, middleware.Principal(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
