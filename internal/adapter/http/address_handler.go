package http

import (
	"net/http"

	"github.com/aq2208/gorder-storefront/internal/adapter/http/middleware"
	"github.com/aq2208/gorder-storefront/internal/usecase"
	"github.com/gin-gonic/gin"
)

type AddressHandler struct {
	addresses *usecase.Addresses
}

func NewAddressHandler(addresses *usecase.Addresses) *AddressHandler {
	return &AddressHandler{addresses: addresses}
}

// GET /api/addresses
func (h *AddressHandler) List(c *gin.Context) {
	ctx, cancel := requestCtx(c)
	defer cancel()

	out, err := h.addresses.List(ctx, middleware.Principal(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// POST /api/addresses
func (h *AddressHandler) Create(c *gin.Context) {
	var req usecase.AddressInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	out, err := h.addresses.Create(ctx, middleware.Principal(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

// GET /api/addresses/:id
func (h *AddressHandler) Get(c *gin.Context) {
	ctx, cancel := requestCtx(c)
	defer cancel()

	out, err := h.addresses.Get(ctx, middleware.Principal(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// PATCH /api/addresses/:id/default
func (h *AddressHandler) SetDefault(c *gin.Context) {
	ctx, cancel := requestCtx(c)
	defer cancel()

	out, err := h.addresses.SetDefault(ctx, middleware.Principal(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// DELETE /api/addresses/:id
func (h *AddressHandler) Delete(c *gin.Context) {
	ctx, cancel := requestCtx(c)
	defer cancel()

	if err := h.addresses.Delete(ctx, middleware.Principal(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
