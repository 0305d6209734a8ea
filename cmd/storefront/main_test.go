package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"eventhour-gateway/cart"
	"eventhour-gateway/cart/application"
	"eventhour-gateway/middleware/ratelimit/infra"
	"eventhour-gateway/pkg/config"
	"eventhour-gateway/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorefront_CartBehindRateLimit(t *testing.T) {
	cfg := &config.Storefront{
		Cart:        config.CartConfig{Storage: config.CartStorageMemory},
		Rate:        config.RateConfig{Enabled: true, RPS: 0.01, Burst: 2, RetryAfter: time.Second},
		Concurrency: config.ConcurrencyConfig{Max: 4},
	}
	storage, closeFn, err := buildStorage(context.Background(), cfg)
	require.NoError(t, err)
	defer closeFn()

	h := newRouter(cfg,
		cart.NewHandler(application.NewSessions(storage), "", nil),
		infra.NewBucketStore(cfg.Rate.RPS, cfg.Rate.Burst),
		logger.Nop(),
	)

	body := `{"id":"l1","experienceId":"e1","title":"Mergulho","price":"250.00","quantity":2,"date":"2024-06-01","participants":2}`
	r := httptest.NewRequest(http.MethodPost, "/cart/items", strings.NewReader(body))
	r.RemoteAddr = "10.0.0.1:1"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"totalPrice":"500.00"`)

	for _, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		r.RemoteAddr = "10.0.0.1:1"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		assert.Equal(t, want, w.Code)
	}
}

func TestBuildStorage_Backends(t *testing.T) {
	mr := miniredis.RunT(t)

	cases := []config.Storefront{
		{Cart: config.CartConfig{Storage: config.CartStorageMemory}},
		{Cart: config.CartConfig{Storage: config.CartStorageFile, Dir: t.TempDir()}},
		{Cart: config.CartConfig{Storage: config.CartStorageRedis, TTL: time.Hour}, Redis: config.RedisConfig{Address: mr.Addr()}},
	}
	for _, cfg := range cases {
		t.Run(cfg.Cart.Storage, func(t *testing.T) {
			ctx := context.Background()
			storage, closeFn, err := buildStorage(ctx, &cfg)
			require.NoError(t, err)
			defer closeFn()

			require.NoError(t, storage.Save(ctx, "eventhour-cart:x", []byte("{}")))
			got, err := storage.Load(ctx, "eventhour-cart:x")
			require.NoError(t, err)
			assert.Equal(t, "{}", string(got))
		})
	}
}
