package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type Key string

// ErrInvalidConfig sinaliza limites que negariam (ou liberariam) todo o tráfego.
var ErrInvalidConfig = errors.New("ratelimit: invalid configuration")

// Limiter representa algo que pode decidir se uma ação é permitida agora.
//
// A implementação de infra usa token bucket (golang.org/x/time/rate).
type Limiter interface {
	Allow() bool
}

// LimiterStore obtém um limiter por chave (ex: IP, API key, usuário).
type LimiterStore interface {
	Get(Key) Limiter
}

// WindowLimiter aplica "no máximo N requisições em qualquer janela W" por chave.
//
// Take registra a requisição somente quando ela é permitida.
// Reset esquece todo o histórico da chave.
type WindowLimiter interface {
	Take(ctx context.Context, key Key) (Decision, error)
	Reset(ctx context.Context, key Key) error
}

type Decision struct {
	Allowed bool
	// Limit e Remaining só são preenchidos por WindowLimiter.
	Limit     int
	Remaining int
	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	// Se 0, não há recomendação.
	RetryAfter time.Duration
}

// Policy descreve a janela de um endpoint sensível (login, reset de senha, busca, upload).
type Policy struct {
	Name        string
	Window      time.Duration
	MaxRequests int
}

func (p Policy) Validate() error {
	if p.Window <= 0 {
		return fmt.Errorf("%w: policy %q window must be > 0, got %s", ErrInvalidConfig, p.Name, p.Window)
	}
	if p.MaxRequests <= 0 {
		return fmt.Errorf("%w: policy %q max requests must be > 0, got %d", ErrInvalidConfig, p.Name, p.MaxRequests)
	}
	return nil
}
