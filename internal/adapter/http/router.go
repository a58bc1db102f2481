package http

import (
	"net/http"

	"github.com/aq2208/gorder-storefront/internal/adapter/http/middleware"
	"github.com/aq2208/gorder-storefront/internal/logging"
	"github.com/aq2208/gorder-storefront/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	Session  *SessionHandler
	Catalog  *CatalogHandler
	Cart     *CartHandler
	Address  *AddressHandler
	Shipping *ShippingHandler
	Order    *OrderHandler
	Payment  *PaymentHandler
}

type RouterOptions struct {
	Authn *middleware.Authn
	// Webhook verifies payment provider signatures; nil disables the webhook.
	Webhook     security.Verifier
	ErrorDetail bool
	// Ready reports whether dependencies are reachable; nil = always ready.
	Ready func() error
}

func NewRouter(h Handlers, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.MetricsMiddleware())
	r.Use(middleware.Logging(logging.New("http")))
	r.Use(exposeErrorDetail(opts.ErrorDetail))

	r.GET("/healthz", func(c *gin.Context) {
		if opts.Ready != nil {
			if err := opts.Ready(); err != nil {
				logging.From(c).Warn("health check failed", "err", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	// Prometheus endpoint (scraped by Prometheus)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authn := opts.Authn
	user := authn.Require()
	admin := []gin.HandlerFunc{authn.Require(), authn.RequireAdmin()}

	api := r.Group("/api")
	{
		api.POST("/session", h.Session.Login)
		api.DELETE("/session", h.Session.Logout)
		api.GET("/session", user, h.Session.Current)

		api.GET("/categories", h.Catalog.ListCategories)
		api.POST("/categories", append(admin, h.Catalog.CreateCategory)...)
		api.GET("/products", h.Catalog.ListProducts)
		api.GET("/products/:id", h.Catalog.GetProduct)
		api.POST("/products", append(admin, h.Catalog.CreateProduct)...)

		api.GET("/shipping-methods", h.Shipping.List)
		api.GET("/shipping-methods/:id", h.Shipping.Get)
		api.POST("/shipping-methods", append(admin, h.Shipping.Create)...)
		api.PATCH("/shipping-methods/:id", append(admin, h.Shipping.Update)...)

		cart := api.Group("/cart", user)
		cart.GET("", h.Cart.List)
		cart.DELETE("", h.Cart.Clear)
		cart.POST("/items", h.Cart.Add)
		cart.PATCH("/items/:id", h.Cart.Update)
		cart.DELETE("/items/:id", h.Cart.Remove)

		addr := api.Group("/addresses", user)
		addr.GET("", h.Address.List)
		addr.POST("", h.Address.Create)
		addr.GET("/:id", h.Address.Get)
		addr.PATCH("/:id/default", h.Address.SetDefault)
		addr.DELETE("/:id", h.Address.Delete)

		orders := api.Group("/orders", user)
		orders.POST("", h.Order.CreateOrder)
		orders.GET("", h.Order.ListOrders)
		orders.GET("/:id", h.Order.GetOrderByID)
		orders.GET("/:id/status", h.Order.Status)
		orders.PATCH("/:id", authn.RequireAdmin(), h.Order.UpdateOrder)
		orders.GET("/:id/history", authn.RequireAdmin(), h.Order.History)
		orders.POST("/:id/payments", h.Payment.Create)

		api.POST("/payments/webhook", middleware.VerifySignature(opts.Webhook), h.Payment.Webhook)
	}

	return r
}
