package application

import (
	"context"
	"fmt"
	"time"

	"eventhour-gateway/middleware/ratelimit/domain"
)

// Service concentra a regra de aplicação do rate limit.
//
// Primeiro o token bucket (Store), barato e global por cliente; só quem passa
// por ele consome uma posição da janela deslizante (Window). Assim requisições
// já barradas pelo bucket não contam contra o limite do endpoint sensível.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
type Service struct {
	Store      domain.LimiterStore
	Window     domain.WindowLimiter
	RetryAfter time.Duration
}

// Decide devolve allow/deny para a chave.
//
// Erro do Window (ex: Redis fora) libera a requisição (fail-open) e é devolvido
// junto com a decisão para que o chamador registre.
func (s Service) Decide(ctx context.Context, key domain.Key) (domain.Decision, error) {
	if s.RetryAfter <= 0 {
		s.RetryAfter = 1 * time.Second
	}

	if s.Store != nil {
		if lim := s.Store.Get(key); lim != nil && !lim.Allow() {
			return domain.Decision{Allowed: false, RetryAfter: s.RetryAfter}, nil
		}
	}

	if s.Window == nil {
		return domain.Decision{Allowed: true}, nil
	}

	dec, err := s.Window.Take(ctx, key)
	if err != nil {
		return domain.Decision{Allowed: true}, fmt.Errorf("window take: %w", err)
	}
	if !dec.Allowed && dec.RetryAfter <= 0 {
		dec.RetryAfter = s.RetryAfter
	}
	return dec, nil
}

// Forgive zera a janela da chave (ex: login bem sucedido perdoa tentativas anteriores).
func (s Service) Forgive(ctx context.Context, key domain.Key) error {
	if s.Window == nil {
		return nil
	}
	return s.Window.Reset(ctx, key)
}
