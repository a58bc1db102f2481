package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	nethttp "net/http"
	"time"

	"github.com/aq2208/gorder-storefront/configs"
	"github.com/aq2208/gorder-storefront/internal/adapter/cache"
	"github.com/aq2208/gorder-storefront/internal/adapter/http"
	"github.com/aq2208/gorder-storefront/internal/adapter/http/middleware"
	"github.com/aq2208/gorder-storefront/internal/adapter/kafka"
	"github.com/aq2208/gorder-storefront/internal/adapter/metrics"
	"github.com/aq2208/gorder-storefront/internal/adapter/notify"
	"github.com/aq2208/gorder-storefront/internal/adapter/queue"
	"github.com/aq2208/gorder-storefront/internal/adapter/repo"
	"github.com/aq2208/gorder-storefront/internal/logging"
	"github.com/aq2208/gorder-storefront/internal/security"
	"github.com/aq2208/gorder-storefront/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// App is the wired service. Workers that are not configured stay nil.
type App struct {
	cfg    configs.Config
	log    *slog.Logger
	Router *gin.Engine

	relay    *queue.Relay
	consumer *queue.Router
	kafka    *kafka.Consumer
}

// OpenDB connects and makes sure the schema is current, migrating first when
// database.auto_migrate is set.
func OpenDB(ctx context.Context, cfg configs.Config, log *slog.Logger) (*sql.DB, error) {
	db, err := repo.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, repo.PoolOptions{
		MaxOpen:     cfg.Database.MaxOpenConns,
		MaxIdle:     cfg.Database.MaxIdleConns,
		MaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	if cfg.Database.AutoMigrate {
		if _, err := repo.Migrate(ctx, db, cfg.Database.Driver, log); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := repo.RequireCurrent(ctx, db, cfg.Database.Driver); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func InitWithConfig(ctx context.Context, cfg configs.Config) (*App, func(), error) {
	log := logging.New("bootstrap")
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*App, func(), error) {
		cleanup()
		return nil, nil, err
	}

	// init database
	db, err := OpenDB(ctx, cfg, log)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, func() { _ = db.Close() })

	// init redis; optional for local runs
	var (
		rdb         *redis.Client
		orderCache  usecase.OrderCache
		shipCache   usecase.ShippingCache
		idempotency usecase.IdempotencyStore
	)
	if cfg.Redis.Addr != "" {
		rdb, err = cache.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func() { _ = rdb.Close() })
		rc := cache.NewRedisCache(rdb, cfg.Cache.TTL)
		orderCache, shipCache = rc, rc
		idempotency = cache.NewRedisIdempotencyStore(rdb, cfg.Idempotency.TTL)
	} else {
		log.Warn("redis not configured: caching and idempotency keys disabled")
	}

	taxRate, err := cfg.TaxRate()
	if err != nil {
		return fail(err)
	}

	// repos + use cases
	orders := repo.NewOrderRepo(db)
	carts := repo.NewCartRepo(db)
	catalogRepo := repo.NewCatalogRepo(db)
	addresses := repo.NewAddressRepo(db)
	shipping := repo.NewShippingRepo(db)
	rec := metrics.NewRecorder(prometheus.DefaultRegisterer)

	createUC := usecase.NewCreateOrder(usecase.CreateOrderDeps{
		Orders:      orders,
		Carts:       carts,
		Catalog:     catalogRepo,
		Addresses:   addresses,
		Shipping:    shipping,
		Idempotency: idempotency,
		Cache:       orderCache,
		Recorder:    rec,
	}, usecase.OrderSettings{
		TaxRate:           taxRate,
		Currency:          cfg.Order.Currency,
		AddressRetryDelay: cfg.Order.AddressRetryDelay,
	})
	statusUC := usecase.NewUpdateStatus(orders, orderCache, rec)

	// security
	tokens := security.NewTokens(cfg.Security.JWTSecret, cfg.Security.Issuer, cfg.Security.Audience, cfg.Security.TTL)
	var webhook security.Verifier
	if cfg.Payments.WebhookPublicKeyPEM != "" {
		v, err := security.NewRSAVerifierFromPEM(cfg.Payments.WebhookPublicKeyPEM)
		if err != nil {
			return fail(fmt.Errorf("payments.webhook_public_key_pem: %w", err))
		}
		webhook = v
	} else {
		log.Warn("payment webhook key not configured: webhook disabled")
	}

	app := &App{cfg: cfg, log: log}

	// messaging: outbox relay publishes, router consumes
	if cfg.Rabbit.URL != "" {
		conn, err := amqp.Dial(cfg.Rabbit.URL)
		if err != nil {
			return fail(fmt.Errorf("dial rabbitmq: %w", err))
		}
		closers = append(closers, func() { _ = conn.Close() })

		pubCh, err := conn.Channel()
		if err != nil {
			return fail(fmt.Errorf("open publish channel: %w", err))
		}
		producer, err := queue.NewRabbitProducer(pubCh, cfg.Rabbit.Exchange)
		if err != nil {
			return fail(err)
		}
		app.relay = queue.NewRelay(repo.NewOutboxRepo(db), producer, queue.RelayOptions{
			PollInterval: cfg.Outbox.PollInterval,
			BatchSize:    cfg.Outbox.BatchSize,
			MaxRetries:   cfg.Outbox.MaxRetries,
			BaseBackoff:  cfg.Outbox.BaseBackoff,
		})

		subCh, err := conn.Channel()
		if err != nil {
			return fail(fmt.Errorf("open consume channel: %w", err))
		}
		app.consumer = setupQueue(subCh, cfg)
	} else {
		log.Warn("rabbitmq not configured: outbox rows stay pending")
	}

	// register kafka-listener
	if cfg.Kafka.Enabled {
		grp, err := kafka.NewGroup(cfg.Kafka.Brokers, cfg.Kafka.GroupID)
		if err != nil {
			return fail(fmt.Errorf("kafka group: %w", err))
		}
		h := kafka.NewFulfillmentHandler(statusUC)
		app.kafka = kafka.NewConsumer(grp, []string{cfg.Kafka.TopicFulfillment}, h.Handle)
	}

	// init handlers + routers + middleware
	handlers := http.Handlers{
		Session:  http.NewSessionHandler(security.NewAccounts(cfg.Security.Accounts), tokens, http.CookieOptions{Name: cfg.Security.CookieName, Secure: cfg.Security.CookieSecure}),
		Catalog:  http.NewCatalogHandler(usecase.NewCatalog(catalogRepo)),
		Cart:     http.NewCartHandler(usecase.NewCart(carts, catalogRepo)),
		Address:  http.NewAddressHandler(usecase.NewAddresses(addresses)),
		Shipping: http.NewShippingHandler(usecase.NewShippingMethods(shipping, shipCache)),
		Order:    http.NewOrderHandler(createUC, usecase.NewOrderQuery(orders, orderCache), statusUC),
		Payment:  http.NewPaymentHandler(usecase.NewCreatePayment(orders, rec), statusUC),
	}
	app.Router = http.NewRouter(handlers, http.RouterOptions{
		Authn:       middleware.NewAuthn(tokens, cfg.Security.CookieName),
		Webhook:     webhook,
		ErrorDetail: !cfg.IsProduction(),
		Ready:       readiness(db, rdb),
	})

	return app, cleanup, nil
}

func setupQueue(ch *amqp.Channel, cfg configs.Config) *queue.Router {
	var n queue.Notifier = notify.NewLogNotifier()
	if cfg.Notify.Enabled {
		n = notify.NewSendGridNotifier(cfg.Notify.SendGridAPIKey, cfg.Notify.FromEmail, cfg.Notify.FromName)
	}
	h := queue.NewOrderCreatedHandler(n)

	router := queue.NewRouter(ch, queue.WithPrefetch(cfg.Rabbit.Prefetch), queue.WithTimeout(cfg.Rabbit.HandlerTimeout))
	router.Register(queue.OrderCreatedQueue, queue.JSONHandler[usecase.OrderCreatedMsg]{HandleFunc: h.HandleCreate})
	return router
}

func readiness(db *sql.DB, rdb *redis.Client) func() error {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
		if rdb != nil {
			if err := rdb.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
		}
		return nil
	}
}

// Run serves HTTP and runs the configured workers until ctx is cancelled or
// one of them fails, then shuts the server down gracefully.
func (a *App) Run(ctx context.Context) error {
	srv := &nethttp.Server{
		Addr:         a.cfg.App.HTTPAddr,
		Handler:      a.Router,
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.Info("http server listening", "addr", srv.Addr, "env", a.cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		a.log.Info("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	})
	if a.relay != nil {
		g.Go(func() error { return a.relay.Run(ctx) })
	}
	if a.consumer != nil {
		g.Go(func() error { return a.consumer.Run(ctx) })
	}
	if a.kafka != nil {
		g.Go(func() error { return a.kafka.Run(ctx) })
	}
	return g.Wait()
}
