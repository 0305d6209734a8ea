package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eventhour-gateway/middleware/ratelimit/domain"
	"eventhour-gateway/middleware/ratelimit/infra"
	"eventhour-gateway/pkg/config"
	"eventhour-gateway/pkg/logger"
	pkgredis "eventhour-gateway/pkg/redis"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadGateway()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logg := logger.New(logger.Options{
		ServiceName: "gateway",
		Level:       logger.ParseLevel(cfg.Log.Level),
		Format:      cfg.Log.Format,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "gateway.exit", err)
		os.Exit(1)
	}
}

func run(cfg *config.Gateway, logg *logger.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	target, err := url.Parse(cfg.UpstreamURL)
	if err != nil {
		return fmt.Errorf("invalid UPSTREAM_URL: %w", err)
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logg.Error(logg.WithField(r.Context(), "path", r.URL.Path), "proxy.failed", err)
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}

	var rdb *redis.Client
	if cfg.Redis.Configured() && (cfg.Window.Backend == config.WindowBackendRedis || cfg.Stats.Enabled) {
		rdb, err = pkgredis.New(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()
	}

	store := infra.NewBucketStore(cfg.Rate.RPS, cfg.Rate.Burst)
	store.StartJanitor(ctx)

	windows, err := buildWindows(ctx, cfg.Window, rdb)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	memStats := infra.NewMemoryStatsStore(infra.WithTrackKeys(cfg.Stats.TrackKeys))
	sinks := infra.FanoutStats{memStats}
	if cfg.Metrics {
		sinks = append(sinks, infra.NewPrometheusStatsStore(reg))
	}
	if cfg.Stats.Enabled && rdb != nil {
		sinks = append(sinks, infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.Stats.Prefix),
			infra.WithStatsTTL(cfg.Stats.TTL),
			infra.WithStatsBucket(cfg.Stats.Bucket),
			infra.WithStatsTrackKeys(cfg.Stats.TrackKeys),
		))
	}

	h := newRouter(routerDeps{
		cfg:      cfg,
		upstream: proxy,
		store:    store,
		windows:  windows,
		stats:    sinks,
		memStats: memStats,
		registry: reg,
		log:      logg,
	})

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
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logg.Info(logg.WithFields(ctx, map[string]any{
		"addr":     cfg.ListenAddr,
		"upstream": target.String(),
		"rate":     cfg.Rate.Enabled,
		"rps":      cfg.Rate.RPS,
		"burst":    cfg.Rate.Burst,
		"window":   cfg.Window.Backend,
		"stats":    cfg.Stats.Enabled,
		"metrics":  cfg.Metrics,
	}), "gateway.listening")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// policyWindow junta a política com o limiter montado para ela.
type policyWindow struct {
	name    string
	path    string
	limiter domain.WindowLimiter
}

func buildWindows(ctx context.Context, cfg config.WindowConfig, rdb redis.Cmdable) ([]policyWindow, error) {
	var out []policyWindow
	for _, name := range policyOrder {
		pc := cfg.Policies()[name]
		p := domain.Policy{Name: name, Window: pc.Window, MaxRequests: pc.MaxRequests}

		var lim domain.WindowLimiter
		switch cfg.Backend {
		case config.WindowBackendRedis:
			rw, err := infra.NewRedisSlidingWindow(rdb, p, infra.WithWindowPrefix(cfg.KeyPrefix))
			if err != nil {
				return nil, err
			}
			lim = rw
		default:
			sw, err := infra.NewSlidingWindowFromPolicy(p, infra.WithWindowCleanupEvery(cfg.CleanupEvery))
			if err != nil {
				return nil, err
			}
			sw.StartJanitor(ctx)
			lim = sw.AsWindowLimiter()
		}
		out = append(out, policyWindow{name: name, path: pc.Path, limiter: lim})
	}
	return out, nil
}

var policyOrder = []string{"login", "password-reset", "search", "upload"}
