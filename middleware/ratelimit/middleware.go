package ratelimit

import (
	"context"
	"net/http"
	"time"

	"eventhour-gateway/middleware/ratelimit/application"
	"eventhour-gateway/middleware/ratelimit/domain"
	"eventhour-gateway/pkg/logger"

	"github.com/go-chi/chi/v5"
)

type Options struct {
	// Store é o token bucket por cliente (opcional).
	Store domain.LimiterStore
	// Window é a janela deslizante do endpoint (opcional). Policy nomeia a janela
	// nos stats e nos logs.
	Window domain.WindowLimiter
	Policy string

	Stats               domain.StatsStore
	Logger              *logger.Logger
	KeyFn               KeyFunc
	KeyHeader           string
	TrustXForwardedFor  bool
	RejectStatus        int
	RetryAfter          time.Duration
	AddRateLimitHeaders bool

	// ResetOnStatus, se definido, zera a janela da chave quando o handler
	// responde com um status aceito (ex: login 2xx perdoa tentativas anteriores).
	ResetOnStatus func(status int) bool
}

type rateInfo interface {
	RPS() float64
	Burst() int
}

// SuccessStatus aceita qualquer 2xx.
func SuccessStatus(status int) bool { return status >= 200 && status < 300 }

func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.RetryAfter == 0 {
		opts.RetryAfter = 1 * time.Second
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}

	svc := application.Service{
		Store:      opts.Store,
		Window:     opts.Window,
		RetryAfter: opts.RetryAfter,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := opts.KeyFn(r)

			dec, err := svc.Decide(ctx, domain.Key(key))
			if err != nil {
				opts.Logger.Error(logFields(ctx, opts, key, r), "ratelimit.window.failed", err)
			}

			if opts.AddRateLimitHeaders {
				setRateHeaders(w, opts, key, dec)
			}

			if opts.Stats != nil {
				if err := opts.Stats.Record(ctx, domain.StatsEvent{
					Key:     domain.Key(key),
					Policy:  opts.Policy,
					Allowed: dec.Allowed,
					Method:  r.Method,
					Path:    routeLabel(r),
					At:      time.Now(),
				}); err != nil {
					opts.Logger.Warn(opts.Logger.WithField(ctx, "error", err.Error()), "ratelimit.stats.failed")
				}
			}

			if !dec.Allowed {
				opts.Logger.Warn(logFields(ctx, opts, key, r), "ratelimit.blocked")
				w.Header().Set("Retry-After", formatInt(retryAfterSeconds(dec.RetryAfter)))
				http.Error(w, http.StatusText(opts.RejectStatus), opts.RejectStatus)
				return
			}

			if opts.ResetOnStatus == nil || opts.Window == nil {
				next.ServeHTTP(w, r)
				return
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			if opts.ResetOnStatus(rec.status) {
				if err := svc.Forgive(ctx, domain.Key(key)); err != nil {
					opts.Logger.Error(logFields(ctx, opts, key, r), "ratelimit.reset.failed", err)
				}
			}
		})
	}
}

// routeLabel usa o padrão de rota do chi ("/api/search/*") em vez do path cru,
// para que os stats não ganhem um rótulo por URL distinta.
func routeLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

func setRateHeaders(w http.ResponseWriter, opts Options, key string, dec domain.Decision) {
	h := w.Header()
	h.Set("X-RateLimit-Key", key)
	if ri, ok := opts.Store.(rateInfo); ok {
		h.Set("X-RateLimit-RPS", formatFloat(ri.RPS()))
		h.Set("X-RateLimit-Burst", formatInt(ri.Burst()))
	}
	if dec.Limit > 0 {
		h.Set("X-RateLimit-Limit", formatInt(dec.Limit))
		h.Set("X-RateLimit-Remaining", formatInt(dec.Remaining))
	}
}

func logFields(ctx context.Context, opts Options, key string, r *http.Request) context.Context {
	return opts.Logger.WithFields(ctx, map[string]any{
		"policy": opts.Policy,
		"key":    key,
		"method": r.Method,
		"path":   r.URL.Path,
	})
}

// retryAfterSeconds arredonda para cima (1.9s vira 2), com mínimo de 1:
// quem espera o valor anunciado já encontra a vaga livre.
func retryAfterSeconds(d time.Duration) int {
	s := int((d + time.Second - 1) / time.Second)
	if s < 1 {
		return 1
	}
	return s
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }
