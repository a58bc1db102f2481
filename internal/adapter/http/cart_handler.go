package http

import (
	"net/http"

	"github.com/aq2208/gorder-storefront/internal/adapter/http/middleware"
	"github.com/aq2208/gorder-storefront/internal/usecase"
	"github.com/gin-gonic/gin"
)

type CartHandler struct {
	cart *usecase.Cart
}

func NewCartHandler(cart *usecase.Cart) *CartHandler {
	return &CartHandler{cart: cart}
}

// GET /api/cart
func (h *CartHandler) List(c *gin.Context) {
	ctx, cancel := requestCtx(c)
	defer cancel()

	items, err := h.cart.List(ctx, middleware.Principal(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// POST /api/cart/items
func (h *CartHandler) Add(c *gin.Context) {
	var req usecase.AddCartItemInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	item, err := h.cart.Add(ctx, middleware.Principal(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

type cartQtyReq struct {
	Quantity *int `json:"quantity" binding:"required"`
}

// PATCH /api/cart/items/:id
func (h *CartHandler) Update(c *gin.Context) {
	var req cartQtyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Quantity is required")
		return
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	if err := h.cart.UpdateQuantity(ctx, middleware.Principal(c), c.Param("id"), *req.Quantity); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DELETE /api/cart/items/:id
func (h *CartHandler) Remove(c *gin.Context) {
	ctx, cancel := requestCtx(c)
	defer cancel()

	if err := h.cart.Remove(ctx, middleware.Principal(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DELETE /api/cart
func (h *CartHandler) Clear(c *gin.Context) {
	ctx, cancel := requestCtx(c)
	defer cancel()

	if err := h.cart.Clear(ctx, middleware.Principal(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
