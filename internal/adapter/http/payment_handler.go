package http

import (
	"net/http"
	"strings"

	"github.com/aq2208/gorder-storefront/internal/adapter/http/middleware"
	domain "github.com/aq2208/gorder-storefront/internal/entity"
	"github.com/aq2208/gorder-storefront/internal/usecase"
	"github.com/gin-gonic/gin"
)

// PaymentProviderActor is recorded for payment changes pushed by the provider.
const PaymentProviderActor = "payment-provider"

type PaymentHandler struct {
	create *usecase.CreatePayment
	status *usecase.UpdateStatus
}

func NewPaymentHandler(create *usecase.CreatePayment, status *usecase.UpdateStatus) *PaymentHandler {
	return &PaymentHandler{create: create, status: status}
}

type createPaymentReq struct {
	PaymentMethod string `json:"paymentMethod" binding:"required"`
}

// POST /api/orders/:id/payments
func (h *PaymentHandler) Create(c *gin.Context) {
	var req createPaymentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Payment method is required")
		return
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	out, err := h.create.Execute(ctx, middleware.Principal(c), c.Param("id"), domain.PaymentMethod(req.PaymentMethod))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

type webhookReq struct {
	OrderID       string `json:"orderId" binding:"required"`
	PaymentID     string `json:"paymentId" binding:"required"`
	Status        string `json:"status" binding:"required"`
	TransactionID string `json:"transactionId"`
}

// POST /api/payments/webhook (behind middleware.VerifySignature)
func (h *PaymentHandler) Webhook(c *gin.Context) {
	var req webhookReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "orderId, paymentId and status are required")
		return
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	provider := usecase.Principal{UserID: PaymentProviderActor, Role: usecase.RoleSystem}
	to := domain.PaymentStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	out, err := h.status.Payment(ctx, provider, req.OrderID, req.PaymentID, to, req.TransactionID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
