package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/cache"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/payment"
	"github.com/xenking/storefront/internal/gateway"
	"github.com/xenking/storefront/internal/handler"
	"github.com/xenking/storefront/internal/notify"
	"github.com/xenking/storefront/pkg/health"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage),
	)
	ctx = zctx.Base(ctx, lg)

	store, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.close()

	healthSvc := health.New()
	healthSvc.AddReadinessCheck(cfg.Storage, 5*time.Second, health.PingCheck(store.db), health.WithThresholds(3, 1))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	// Optional Redis: callback dedup cache and shared rate limit counters.
	var (
		txnCache payment.Cache
		limiter  httpmiddleware.Limiter
	)
	if cfg.Redis.Addr != "" {
		rdb, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return errors.Wrap(err, "connect redis")
		}
		defer func() { _ = rdb.Close() }()

		txnCache = cache.NewTransactions(rdb, cfg.Redis.Prefix, cfg.Redis.CallbackTTL)
		limiter = httpmiddleware.NewRedisLimiter(rdb, cfg.Redis.Prefix, cfg.RateLimit.Max, cfg.RateLimit.Window)
		healthSvc.AddReadinessCheck("redis", 2*time.Second, redisCheck(rdb))
	} else {
		wl := httpmiddleware.NewWindowLimiter(cfg.RateLimit.Max, cfg.RateLimit.Window)
		go wl.RunSweeper(ctx)
		limiter = wl
	}

	var notifier order.Notifier = notify.Log{}
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := notify.NewSyncProducer(cfg.Kafka.Brokers, cfg.Kafka.ClientID)
		if err != nil {
			return errors.Wrap(err, "connect kafka")
		}
		k := notify.NewKafka(producer, cfg.Kafka.Topic)
		defer func() {
			if err := k.Close(); err != nil {
				lg.Warn("Close kafka producer", zap.Error(err))
			}
		}()
		notifier = k
	}

	// Domain services.
	orderService, err := order.NewService(store.db, store.carts, store.catalog, store.stock, store.orders, order.Options{
		Notifier:       notifier,
		Notify:         order.NotifyConfig{AdminEmail: cfg.Notify.AdminEmail, Timeout: cfg.Notify.Timeout},
		TracerProvider: m.TracerProvider(),
		MeterProvider:  m.MeterProvider(),
	})
	if err != nil {
		return errors.Wrap(err, "create order service")
	}
	cartService := cart.NewService(store.carts, store.catalog, store.db)

	signer := gateway.NewSigner(cfg.Gateway.Secret, cfg.Gateway.Excluded...)
	initiator := payment.NewInitiator(payment.GatewayConfig{
		MerchantID:  cfg.Gateway.MerchantID,
		Website:     cfg.Gateway.Website,
		URL:         cfg.Gateway.URL,
		CallbackURL: cfg.Gateway.CallbackURL,
	}, signer, store.orders)
	reconciler, err := payment.NewReconciler(signer, store.db, store.orders, store.payments, payment.ReconcilerOptions{
		Gateway:        "paytm",
		Cache:          txnCache,
		TracerProvider: m.TracerProvider(),
		MeterProvider:  m.MeterProvider(),
	})
	if err != nil {
		return errors.Wrap(err, "create reconciler")
	}

	proxies, err := httpmiddleware.ParseProxies(cfg.RateLimit.TrustedProxies)
	if err != nil {
		return errors.Wrap(err, "parse trusted proxies")
	}

	var keys auth.Verifier
	if cfg.Auth.APIKeyPepper != "" {
		keys = auth.NewAPIKeys(store.keys, []byte(cfg.Auth.APIKeyPepper))
	}
	h := handler.NewHandler(
		handler.Config{
			StorefrontURL: cfg.StorefrontURL,
			RateLimit: httpmiddleware.RateLimit(httpmiddleware.RateLimitConfig{
				Max:     cfg.RateLimit.Max,
				Window:  cfg.RateLimit.Window,
				KeyFunc: httpmiddleware.ForwardedClientIP(proxies),
				Limiter: limiter,
			}),
		},
		handler.NewSecurity(auth.NewJWT([]byte(cfg.Auth.JWTSecret)), keys),
		cartService,
		orderService,
		initiator,
		reconciler,
	)
	router := h.Router(func(r chi.Router) {
		r.Get("/livez", healthSvc.LiveEndpoint)
		r.Get("/readyz", healthSvc.ReadyEndpoint)
	})

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", handler.HeaderAPIKey},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.Instrument("storefront-api", m),
			httpmiddleware.Labeler(),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

func redisCheck(rdb redis.UniversalClient) health.CheckFunc {
	return func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}
}
