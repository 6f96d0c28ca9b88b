package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"

	"github.com/MikeMC777/storefront/internal/database"
	"github.com/MikeMC777/storefront/internal/httpx"
	"github.com/MikeMC777/storefront/internal/order"
	"github.com/MikeMC777/storefront/internal/payment"
	"github.com/MikeMC777/storefront/internal/product"
	"github.com/MikeMC777/storefront/internal/session"
	"github.com/MikeMC777/storefront/internal/user"
)

var (
	serveSkipMigrate bool
	serveCacheTTL    time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveSkipMigrate, "skip-migrate", false, "do not apply pending migrations at boot")
	serveCmd.Flags().DurationVar(&serveCacheTTL, "cache-ttl", 10*time.Minute, "product cache entry lifetime")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log := loadConfig()
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg.PostgresDSN, log)
	if err != nil {
		return err
	}
	defer pool.Close()
	if !serveSkipMigrate {
		if err := database.Migrate(ctx, pool, log); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis not reachable, sessions unavailable until it is")
	}

	var events order.Publisher = order.NopPublisher{Log: log}
	if len(cfg.KafkaBrokers) > 0 {
		w := order.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaOrderTopic)
		defer w.Close()
		events = order.NewKafkaPublisher(w)
	}

	if cfg.StripeAPIKey == "" {
		log.Warn().Msg("STRIPE_API_KEY not set, checkout requests will fail")
	}
	gw := payment.NewStripe(cfg.StripeAPIKey, cfg.StripeCurrency, cfg.GatewayTimeout, nil, log)

	images, err := product.NewImageStore(cfg.UploadDir)
	if err != nil {
		return err
	}
	pgProducts := product.NewPGRepo(pool)
	products := product.NewCachedRepo(pgProducts, rdb, serveCacheTTL, log)
	orders := order.NewPGRepo(pool)

	r := newRouter(routerDeps{
		Products:     products,
		FreshProduct: pgProducts,
		Images:       images,
		Users:        user.NewService(user.NewPGRepo(pool), log),
		Sessions:     session.NewManager(cfg.SecretKey, cfg.SessionTTL, session.NewRedisStore(rdb)),
		Checkout:     order.NewCheckoutService(gw, pgProducts, cfg.FrontendURL, log),
		Verifier:     order.NewReconciler(gw, orders, events, products, log),
		Orders:       orders,
		Limiter:      httpx.NewRateLimiter(httpx.DefaultRateLimit),
		CORSOrigins:  cfg.CORSOrigins,
		CookieSecure: cfg.CookieSecure,
		MaxUpload:    cfg.MaxUploadBytes,
		Log:          log,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("storefront listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
