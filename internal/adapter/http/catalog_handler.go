package http

import (
	"net/http"
	"strconv"

	"github.com/aq2208/gorder-storefront/internal/adapter/http/middleware"
	"github.com/aq2208/gorder-storefront/internal/usecase"
	"github.com/gin-gonic/gin"
)

type CatalogHandler struct {
	catalog *usecase.Catalog
}

func NewCatalogHandler(catalog *usecase.Catalog) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// GET /api/categories?tree=1
func (h *CatalogHandler) ListCategories(c *gin.Context) {
	ctx, cancel := requestCtx(c)
	defer cancel()

	tree, _ := strconv.ParseBool(c.DefaultQuery("tree", "false"))
	out, err := h.catalog.Categories(ctx, tree)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// POST /api/categories
func (h *CatalogHandler) CreateCategory(c *gin.Context) {
	var req usecase.CategoryInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	out, err := h.catalog.CreateCategory(ctx, middleware.Principal(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

// GET /api/products?categoryId&page&limit
func (h *CatalogHandler) ListProducts(c *gin.Context) {
	page, limit := pageParams(c)
	ctx, cancel := requestCtx(c)
	defer cancel()

	out, err := h.catalog.Products(ctx, c.Query("categoryId"), page, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// GET /api/products/:id
func (h *CatalogHandler) GetProduct(c *gin.Context) {
	ctx, cancel := requestCtx(c)
	defer cancel()

	out, err := h.catalog.Product(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// POST /api/products
func (h *CatalogHandler) CreateProduct(c *gin.Context) {
	var req usecase.ProductInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	out, err := h.catalog.CreateProduct(ctx, middleware.Principal(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

// pageParams reads page and limit; bad values fall back to the defaults
// applied by usecase.NormalizePage.
func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	return usecase.NormalizePage(page, limit)
}
