package main

import (
	"encoding/json"
	"net/http"
	"strings"

	"eventhour-gateway/middleware/ratelimit"
	"eventhour-gateway/middleware/ratelimit/domain"
	"eventhour-gateway/middleware/ratelimit/infra"
	"eventhour-gateway/pkg/config"
	"eventhour-gateway/pkg/logger"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type routerDeps struct {
	cfg      *config.Gateway
	upstream http.Handler
	store    domain.LimiterStore
	windows  []policyWindow
	stats    domain.StatsStore
	memStats *infra.MemoryStatsStore
	registry *prometheus.Registry
	log      *logger.Logger
}

// newRouter monta o gateway:
//
//	/metrics, /_ratelimit/*  rotas internas (fora do rate limit)
//	<path de cada política>  token bucket + janela deslizante da política -> upstream
//	/*                       token bucket -> upstream
//
// O limite de concorrência vale para tudo que vai ao upstream.
func newRouter(d routerDeps) http.Handler {
	cfg := d.cfg
	r := chi.NewRouter()

	if cfg.Metrics && d.registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{Registry: d.registry}))
	}

	limiters := make(map[string]domain.WindowLimiter, len(d.windows))
	for _, w := range d.windows {
		limiters[w.name] = w.limiter
	}
	r.Route("/_ratelimit", func(r chi.Router) {
		r.Method(http.MethodPost, "/{policy}/reset", ratelimit.ResetHandler(limiters, cfg.AdminToken, d.log))
		r.Get("/stats", statsHandler(d.memStats, cfg.AdminToken))
	})

	base := ratelimit.Options{
		Stats:               d.stats,
		Logger:              d.log,
		KeyHeader:           cfg.Rate.KeyHeader,
		TrustXForwardedFor:  cfg.Rate.TrustXFF,
		RejectStatus:        http.StatusTooManyRequests,
		RetryAfter:          cfg.Rate.RetryAfter,
		AddRateLimitHeaders: cfg.Rate.AddHeaders,
	}
	if cfg.Rate.Enabled {
		base.Store = d.store
	}

	r.Group(func(r chi.Router) {
		r.Use(ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
			Max:            cfg.Concurrency.Max,
			RejectStatus:   http.StatusServiceUnavailable,
			AcquireTimeout: cfg.Concurrency.Timeout,
		}))

		for _, w := range d.windows {
			opts := base
			opts.Window = w.limiter
			opts.Policy = w.name
			if w.name == "login" {
				opts.ResetOnStatus = ratelimit.SuccessStatus
			}
			mw := ratelimit.Middleware(opts)

			path := "/" + strings.Trim(w.path, "/")
			r.With(mw).Handle(path, d.upstream)
			r.With(mw).Handle(path+"/*", d.upstream)
		}

		if base.Store != nil {
			r.With(ratelimit.Middleware(base)).Handle("/*", d.upstream)
		} else {
			r.Handle("/*", d.upstream)
		}
	})

	return r
}

type statsDTO struct {
	Total    infra.Counters            `json:"total"`
	ByPolicy map[string]infra.Counters `json:"byPolicy"`
	ByRoute  map[string]infra.Counters `json:"byRoute"`
	ByKey    map[string]infra.Counters `json:"byKey,omitempty"`
}

func statsHandler(stats *infra.MemoryStatsStore, token string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if token == "" || stats == nil {
			http.NotFound(w, r)
			return
		}
		if !ratelimit.AdminAuthorized(r, token) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(statsDTO{
			Total:    stats.Total(),
			ByPolicy: stats.ByPolicy(),
			ByRoute:  stats.ByRoute(),
			ByKey:    stats.ByKey(),
		})
	}
}
