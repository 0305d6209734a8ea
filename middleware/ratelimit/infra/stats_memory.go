package infra

import (
	"context"
	"maps"
	"sync"

	"eventhour-gateway/middleware/ratelimit/domain"
)

type Counters struct {
	Allowed int64 `json:"allowed"`
	Denied  int64 `json:"denied"`
}

func (c *Counters) add(allowed bool) {
	if allowed {
		c.Allowed++
		return
	}
	c.Denied++
}

// DefaultStatsMaxEntries limita cada mapa do MemoryStatsStore.
const DefaultStatsMaxEntries = 1024

// OverflowLabel agrega rotas/chaves que chegam depois que o mapa encheu.
const OverflowLabel = "_other"

// MemoryStatsStore acumula contadores em memória (exposto em /_ratelimit/stats).
// Cada mapa guarda no máximo maxEntries rótulos; o excedente vai para OverflowLabel.
type MemoryStatsStore struct {
	mu       sync.Mutex
	total    Counters
	byRoute  map[string]Counters
	byPolicy map[string]Counters
	byKey    map[string]Counters

	trackKeys  bool
	maxEntries int
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

// WithMaxEntries troca o limite de rótulos por mapa (n <= 0 mantém o padrão).
func WithMaxEntries(n int) MemoryStatsOption {
	return func(s *MemoryStatsStore) {
		if n > 0 {
			s.maxEntries = n
		}
	}
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byRoute:  make(map[string]Counters),
		byPolicy: make(map[string]Counters),
		byKey:    make(map[string]Counters),

		maxEntries: DefaultStatsMaxEntries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev.Allowed)
	s.bump(s.byRoute, ev.Method+" "+ev.Path, ev.Allowed)
	if ev.Policy != "" {
		s.bump(s.byPolicy, ev.Policy, ev.Allowed)
	}
	if s.trackKeys {
		s.bump(s.byKey, string(ev.Key), ev.Allowed)
	}
	return nil
}

func (s *MemoryStatsStore) bump(m map[string]Counters, k string, allowed bool) {
	if _, ok := m[k]; !ok && len(m) >= s.maxEntries-1 {
		// reserva uma posição para OverflowLabel
		k = OverflowLabel
	}
	c := m[k]
	c.add(allowed)
	m[k] = c
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryStatsStore) ByRoute() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.byRoute)
}

func (s *MemoryStatsStore) ByPolicy() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.byPolicy)
}

func (s *MemoryStatsStore) ByKey() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.byKey)
}
