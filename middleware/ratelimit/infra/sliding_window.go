package infra

import (
	"context"
	"sort"
	"sync"
	"time"

	"eventhour-gateway/middleware/ratelimit/domain"
)

const defaultSweepEvery = 1000

// SlidingWindow conta requisições por identificador numa janela deslizante.
//
// Guarda os instantes das requisições permitidas, em ordem. Uma requisição é
// permitida se há menos de maxRequests instantes em (now-window, now].
// Negadas não são registradas, então cada identificador guarda no máximo
// maxRequests instantes.
//
// Os contadores são locais ao processo: com várias instâncias use
// RedisSlidingWindow ou roteamento sticky por identificador.
type SlidingWindow struct {
	mu   sync.Mutex
	hits map[string][]time.Time

	window       time.Duration
	maxRequests  int
	now          func() time.Time
	cleanupEvery time.Duration

	// varredura completa a cada sweepEvery chamadas (0 desliga)
	sweepEvery int
	calls      int
}

type SlidingWindowOption func(*SlidingWindow)

// WithClock troca a fonte de tempo (testes).
func WithClock(now func() time.Time) SlidingWindowOption {
	return func(s *SlidingWindow) { s.now = now }
}

// WithSweepEvery faz uma limpeza completa a cada n chamadas de IsAllowed/Take.
func WithSweepEvery(n int) SlidingWindowOption {
	return func(s *SlidingWindow) { s.sweepEvery = n }
}

// WithWindowCleanupEvery define o intervalo do janitor (StartJanitor).
func WithWindowCleanupEvery(d time.Duration) SlidingWindowOption {
	return func(s *SlidingWindow) { s.cleanupEvery = d }
}

func NewSlidingWindow(window time.Duration, maxRequests int, opts ...SlidingWindowOption) (*SlidingWindow, error) {
	if err := (domain.Policy{Window: window, MaxRequests: maxRequests}).Validate(); err != nil {
		return nil, err
	}

	s := &SlidingWindow{
		hits:         make(map[string][]time.Time),
		window:       window,
		maxRequests:  maxRequests,
		now:          time.Now,
		cleanupEvery: time.Minute,
		sweepEvery:   defaultSweepEvery,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewSlidingWindowFromPolicy é um atalho para NewSlidingWindow(p.Window, p.MaxRequests).
func NewSlidingWindowFromPolicy(p domain.Policy, opts ...SlidingWindowOption) (*SlidingWindow, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return NewSlidingWindow(p.Window, p.MaxRequests, opts...)
}

func (s *SlidingWindow) Window() time.Duration { return s.window }
func (s *SlidingWindow) MaxRequests() int      { return s.maxRequests }

// IsAllowed registra e permite a requisição se o identificador ainda tem espaço na janela.
func (s *SlidingWindow) IsAllowed(identifier string) bool {
	return s.take(identifier).Allowed
}

// Take implementa domain.WindowLimiter. Nunca retorna erro.
func (s *SlidingWindow) Take(_ context.Context, key domain.Key) (domain.Decision, error) {
	return s.take(string(key)), nil
}

func (s *SlidingWindow) take(identifier string) domain.Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	start := now.Add(-s.window)

	s.calls++
	if s.sweepEvery > 0 && s.calls >= s.sweepEvery {
		s.calls = 0
		s.sweepLocked(start)
	}

	ts := trimExpired(s.hits[identifier], start)

	if len(ts) >= s.maxRequests {
		s.hits[identifier] = ts
		return domain.Decision{
			Allowed:    false,
			Limit:      s.maxRequests,
			Remaining:  0,
			RetryAfter: ts[0].Add(s.window).Sub(now),
		}
	}

	ts = append(ts, now)
	s.hits[identifier] = ts
	return domain.Decision{
		Allowed:   true,
		Limit:     s.maxRequests,
		Remaining: s.maxRequests - len(ts),
	}
}

// Reset esquece o histórico do identificador imediatamente.
func (s *SlidingWindow) Reset(identifier string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.hits, identifier)
}

// Count é quantas requisições do identificador ainda estão dentro da janela.
func (s *SlidingWindow) Count(identifier string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := s.now().Add(-s.window)
	return len(trimExpired(s.hits[identifier], start))
}

// Len é o número de identificadores em memória (inclui os ainda não varridos).
func (s *SlidingWindow) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.hits)
}

// Cleanup remove identificadores cuja janela expirou por completo.
func (s *SlidingWindow) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked(s.now().Add(-s.window))
}

func (s *SlidingWindow) sweepLocked(start time.Time) {
	for id, ts := range s.hits {
		ts = trimExpired(ts, start)
		if len(ts) == 0 {
			delete(s.hits, id)
			continue
		}
		s.hits[id] = ts
	}
}

// StartJanitor inicia uma goroutine que roda Cleanup periodicamente.
// Pare cancelando o contexto.
func (s *SlidingWindow) StartJanitor(ctx DoneContext) {
	runEvery(ctx, s.cleanupEvery, s.Cleanup)
}

// trimExpired descarta os instantes <= start. ts está em ordem crescente.
func trimExpired(ts []time.Time, start time.Time) []time.Time {
	i := sort.Search(len(ts), func(i int) bool { return ts[i].After(start) })
	return ts[i:]
}

// windowAdapter expõe Reset com a assinatura de domain.WindowLimiter.
type windowAdapter struct{ *SlidingWindow }

func (w windowAdapter) Reset(_ context.Context, key domain.Key) error {
	w.SlidingWindow.Reset(string(key))
	return nil
}

// AsWindowLimiter adapta o SlidingWindow para domain.WindowLimiter.
func (s *SlidingWindow) AsWindowLimiter() domain.WindowLimiter {
	return windowAdapter{s}
}
