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

	"eventhour-gateway/cart"
	"eventhour-gateway/cart/application"
	"eventhour-gateway/cart/domain"
	cartinfra "eventhour-gateway/cart/infra"
	"eventhour-gateway/middleware/ratelimit"
	"eventhour-gateway/middleware/ratelimit/infra"
	"eventhour-gateway/pkg/config"
	"eventhour-gateway/pkg/logger"
	pkgredis "eventhour-gateway/pkg/redis"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
)

// storefront: API do carrinho injetando o middleware direto no servidor (sem proxy).
func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadStorefront()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logg := logger.New(logger.Options{
		ServiceName: "storefront",
		Level:       logger.ParseLevel(cfg.Log.Level),
		Format:      cfg.Log.Format,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "storefront.exit", err)
		os.Exit(1)
	}
}

func run(cfg *config.Storefront, logg *logger.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	storage, closeStorage, err := buildStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStorage()

	sessions := application.NewSessions(storage,
		application.WithSessionKey(cfg.Cart.Key),
		application.WithSessionIdleTTL(cfg.Cart.SessionIdle),
		application.WithSessionLogger(logg),
	)
	sessions.StartJanitor(ctx)

	store := infra.NewBucketStore(cfg.Rate.RPS, cfg.Rate.Burst)
	store.StartJanitor(ctx)

	h := newRouter(cfg, cart.NewHandler(sessions, cfg.Cart.SessionCookie, logg), store, logg)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logg.Info(logg.WithFields(ctx, map[string]any{
		"addr":    cfg.ListenAddr,
		"storage": cfg.Cart.Storage,
	}), "storefront.listening")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func newRouter(cfg *config.Storefront, carts *cart.Handler, store *infra.BucketStore, logg *logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
		Max:            cfg.Concurrency.Max,
		AcquireTimeout: cfg.Concurrency.Timeout,
	}))
	if cfg.Rate.Enabled {
		r.Use(ratelimit.Middleware(ratelimit.Options{
			Store:               store,
			Logger:              logg,
			KeyHeader:           cfg.Rate.KeyHeader,
			TrustXForwardedFor:  cfg.Rate.TrustXFF,
			RetryAfter:          cfg.Rate.RetryAfter,
			AddRateLimitHeaders: cfg.Rate.AddHeaders,
		}))
	}
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Mount("/cart", carts.Routes())
	return r
}

func buildStorage(ctx context.Context, cfg *config.Storefront) (domain.Storage, func(), error) {
	switch cfg.Cart.Storage {
	case config.CartStorageFile:
		fs, err := cartinfra.NewFileStorage(cfg.Cart.Dir)
		if err != nil {
			return nil, nil, err
		}
		return fs, func() {}, nil
	case config.CartStorageRedis:
		rdb, err := pkgredis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return cartinfra.NewRedisStorage(rdb, cfg.Cart.TTL), func() { _ = rdb.Close() }, nil
	default:
		return cartinfra.NewMemoryStorage(cartinfra.WithQuota(cfg.Cart.QuotaBytes)), func() {}, nil
	}
}
