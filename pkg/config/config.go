package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	WindowBackendMemory = "memory"
	WindowBackendRedis  = "redis"

	CartStorageMemory = "memory"
	CartStorageFile   = "file"
	CartStorageRedis  = "redis"
)

type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"json"`
}

type RedisConfig struct {
	URL          string        `envconfig:"REDIS_URL"`
	Address      string        `envconfig:"REDIS_ADDR"`
	Password     string        `envconfig:"REDIS_PASSWORD"`
	DB           int           `envconfig:"REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"REDIS_POOL_SIZE" default:"10"`
	DialTimeout  time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"2s"`
	ReadTimeout  time.Duration `envconfig:"REDIS_READ_TIMEOUT" default:"1s"`
	WriteTimeout time.Duration `envconfig:"REDIS_WRITE_TIMEOUT" default:"1s"`
}

func (r RedisConfig) Configured() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

// RateConfig é o token bucket global (por cliente) do gateway.
type RateConfig struct {
	Enabled    bool    `envconfig:"RATE_ENABLED" default:"true"`
	RPS        float64 `envconfig:"RATE_RPS" default:"10"`
	// 0 = derivar: 20, ou 1 quando RATE_RPS < 1 (senão as primeiras ~20 passam
	// e parece que o limiter não funciona).
	Burst      int           `envconfig:"RATE_BURST" default:"0"`
	KeyHeader  string        `envconfig:"RATE_KEY_HEADER"`
	TrustXFF   bool          `envconfig:"TRUST_XFF" default:"false"`
	RetryAfter time.Duration `envconfig:"RETRY_AFTER" default:"1s"`
	AddHeaders bool          `envconfig:"ADD_RATELIMIT_HEADERS" default:"false"`
}

type PolicyConfig struct {
	Path        string
	Window      time.Duration
	MaxRequests int
}

// WindowConfig agrupa as janelas deslizantes dos endpoints sensíveis.
type WindowConfig struct {
	Backend      string        `envconfig:"WINDOW_BACKEND" default:"memory"`
	CleanupEvery time.Duration `envconfig:"WINDOW_CLEANUP_EVERY" default:"1m"`
	KeyPrefix    string        `envconfig:"WINDOW_REDIS_PREFIX" default:"ratelimit:window"`

	LoginPath   string        `envconfig:"LOGIN_PATH" default:"/api/auth/login"`
	LoginWindow time.Duration `envconfig:"LOGIN_WINDOW" default:"15m"`
	LoginMax    int           `envconfig:"LOGIN_MAX_REQUESTS" default:"5"`

	PasswordResetPath   string        `envconfig:"PASSWORD_RESET_PATH" default:"/api/auth/reset-password"`
	PasswordResetWindow time.Duration `envconfig:"PASSWORD_RESET_WINDOW" default:"1h"`
	PasswordResetMax    int           `envconfig:"PASSWORD_RESET_MAX_REQUESTS" default:"3"`

	SearchPath   string        `envconfig:"SEARCH_PATH" default:"/api/search"`
	SearchWindow time.Duration `envconfig:"SEARCH_WINDOW" default:"1m"`
	SearchMax    int           `envconfig:"SEARCH_MAX_REQUESTS" default:"30"`

	UploadPath   string        `envconfig:"UPLOAD_PATH" default:"/api/upload"`
	UploadWindow time.Duration `envconfig:"UPLOAD_WINDOW" default:"1h"`
	UploadMax    int           `envconfig:"UPLOAD_MAX_REQUESTS" default:"10"`
}

// Policies devolve as políticas por nome, na ordem login, password-reset, search, upload.
func (w WindowConfig) Policies() map[string]PolicyConfig {
	return map[string]PolicyConfig{
		"login":          {Path: w.LoginPath, Window: w.LoginWindow, MaxRequests: w.LoginMax},
		"password-reset": {Path: w.PasswordResetPath, Window: w.PasswordResetWindow, MaxRequests: w.PasswordResetMax},
		"search":         {Path: w.SearchPath, Window: w.SearchWindow, MaxRequests: w.SearchMax},
		"upload":         {Path: w.UploadPath, Window: w.UploadWindow, MaxRequests: w.UploadMax},
	}
}

type ConcurrencyConfig struct {
	Max     int           `envconfig:"CONCURRENCY_MAX" default:"100"`
	Timeout time.Duration `envconfig:"CONCURRENCY_TIMEOUT" default:"0"`
}

type StatsConfig struct {
	Enabled   bool          `envconfig:"RATE_STATS_ENABLED" default:"false"`
	Prefix    string        `envconfig:"RATE_STATS_PREFIX" default:"ratelimit:stats"`
	TTL       time.Duration `envconfig:"RATE_STATS_TTL" default:"24h"`
	Bucket    string        `envconfig:"RATE_STATS_BUCKET" default:"minute"`
	TrackKeys bool          `envconfig:"RATE_STATS_TRACK_KEYS" default:"false"`
}

type Gateway struct {
	Log         LogConfig
	ListenAddr  string `envconfig:"LISTEN_ADDR" default:":8080"`
	UpstreamURL string `envconfig:"UPSTREAM_URL"`
	AdminToken  string `envconfig:"ADMIN_TOKEN"`
	Metrics     bool   `envconfig:"METRICS_ENABLED" default:"true"`

	Rate        RateConfig
	Window      WindowConfig
	Concurrency ConcurrencyConfig
	Stats       StatsConfig
	Redis       RedisConfig
}

type CartConfig struct {
	Storage       string        `envconfig:"CART_STORAGE" default:"memory"`
	Dir           string        `envconfig:"CART_DIR" default:"./data/carts"`
	Key           string        `envconfig:"CART_KEY" default:"eventhour-cart"`
	TTL           time.Duration `envconfig:"CART_TTL" default:"720h"`
	QuotaBytes    int           `envconfig:"CART_QUOTA_BYTES" default:"0"`
	SessionCookie string        `envconfig:"CART_SESSION_COOKIE" default:"eventhour_session"`
	SessionIdle   time.Duration `envconfig:"CART_SESSION_IDLE_TTL" default:"30m"`
}

type Storefront struct {
	Log        LogConfig
	ListenAddr string `envconfig:"LISTEN_ADDR" default:":8081"`

	Cart        CartConfig
	Rate        RateConfig
	Concurrency ConcurrencyConfig
	Redis       RedisConfig
}

func LoadGateway() (*Gateway, error) {
	var cfg Gateway
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.Rate.Burst = deriveBurst(cfg.Rate)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func LoadStorefront() (*Storefront, error) {
	var cfg Storefront
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.Rate.Burst = deriveBurst(cfg.Rate)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func deriveBurst(r RateConfig) int {
	if r.Burst != 0 {
		return r.Burst
	}
	if r.RPS > 0 && r.RPS < 1 {
		return 1
	}
	return 20
}

func (c Gateway) Validate() error {
	if strings.TrimSpace(c.UpstreamURL) == "" {
		return errors.New("UPSTREAM_URL is required")
	}
	if _, err := url.Parse(c.UpstreamURL); err != nil {
		return fmt.Errorf("invalid UPSTREAM_URL: %w", err)
	}
	if err := c.Rate.validate(); err != nil {
		return err
	}
	if c.Concurrency.Max < 0 {
		return errors.New("CONCURRENCY_MAX must be >= 0")
	}
	switch c.Window.Backend {
	case WindowBackendMemory:
	case WindowBackendRedis:
		if !c.Redis.Configured() {
			return errors.New("REDIS_URL or REDIS_ADDR is required when WINDOW_BACKEND=redis")
		}
	default:
		return fmt.Errorf("WINDOW_BACKEND must be %q or %q, got %q", WindowBackendMemory, WindowBackendRedis, c.Window.Backend)
	}
	for name, p := range c.Window.Policies() {
		if p.Window <= 0 {
			return fmt.Errorf("%s window must be > 0", name)
		}
		if p.MaxRequests <= 0 {
			return fmt.Errorf("%s max requests must be > 0", name)
		}
	}
	if c.Stats.Enabled && !c.Redis.Configured() {
		return errors.New("REDIS_URL or REDIS_ADDR is required when RATE_STATS_ENABLED=true")
	}
	return nil
}

func (c Storefront) Validate() error {
	if err := c.Rate.validate(); err != nil {
		return err
	}
	if c.Concurrency.Max < 0 {
		return errors.New("CONCURRENCY_MAX must be >= 0")
	}
	switch c.Cart.Storage {
	case CartStorageMemory:
	case CartStorageFile:
		if strings.TrimSpace(c.Cart.Dir) == "" {
			return errors.New("CART_DIR is required when CART_STORAGE=file")
		}
	case CartStorageRedis:
		if !c.Redis.Configured() {
			return errors.New("REDIS_URL or REDIS_ADDR is required when CART_STORAGE=redis")
		}
	default:
		return fmt.Errorf("CART_STORAGE must be memory, file or redis, got %q", c.Cart.Storage)
	}
	if strings.TrimSpace(c.Cart.Key) == "" {
		return errors.New("CART_KEY must not be empty")
	}
	return nil
}

func (r RateConfig) validate() error {
	if r.RPS <= 0 {
		return errors.New("RATE_RPS must be > 0")
	}
	if r.Burst <= 0 {
		return errors.New("RATE_BURST must be > 0")
	}
	return nil
}
