package http

import (
	"net/http"
	"strconv"

	"github.com/aq2208/gorder-storefront/internal/adapter/http/middleware"
	"github.com/aq2208/gorder-storefront/internal/usecase"
	"github.com/gin-gonic/gin"
)

type ShippingHandler struct {
	methods *usecase.ShippingMethods
}

func NewShippingHandler(methods *usecase.ShippingMethods) *ShippingHandler {
	return &ShippingHandler{methods: methods}
}

// GET /api/shipping-methods?activeOnly=true
func (h *ShippingHandler) List(c *gin.Context) {
	activeOnly, _ := strconv.ParseBool(c.DefaultQuery("activeOnly", "false"))
	ctx, cancel := requestCtx(c)
	defer cancel()

	out, err := h.methods.List(ctx, activeOnly)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// GET /api/shipping-methods/:id
func (h *ShippingHandler) Get(c *gin.Context) {
	ctx, cancel := requestCtx(c)
	defer cancel()

	out, err := h.methods.Get(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// POST /api/shipping-methods
func (h *ShippingHandler) Create(c *gin.Context) {
	var req usecase.ShippingMethodInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	out, err := h.methods.Create(ctx, middleware.Principal(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

// PATCH /api/shipping-methods/:id
func (h *ShippingHandler) Update(c *gin.Context) {
	var req usecase.ShippingMethodInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	out, err := h.methods.Update(ctx, middleware.Principal(c), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
