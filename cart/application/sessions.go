package application

import (
	"context"
	"sync"
	"time"

	"eventhour-gateway/cart/domain"
	"eventhour-gateway/pkg/logger"
)

type DoneContext interface {
	Done() <-chan struct{}
}

// Sessions mantém um Store por sessão do storefront. Sessões ociosas saem da
// memória; o estado continua no storage e volta no próximo acesso.
type Sessions struct {
	mu      sync.Mutex
	entries map[string]*sessionEntry
	storage domain.Storage
	baseKey string
	log     *logger.Logger
	idleTTL time.Duration
	now     func() time.Time
}

type sessionEntry struct {
	store    *Store
	lastSeen time.Time
}

type SessionsOption func(*Sessions)

func WithSessionKey(base string) SessionsOption {
	return func(s *Sessions) {
		if base != "" {
			s.baseKey = base
		}
	}
}

func WithSessionIdleTTL(d time.Duration) SessionsOption {
	return func(s *Sessions) {
		if d > 0 {
			s.idleTTL = d
		}
	}
}

func WithSessionLogger(l *logger.Logger) SessionsOption {
	return func(s *Sessions) {
		if l != nil {
			s.log = l
		}
	}
}

func WithSessionClock(now func() time.Time) SessionsOption {
	return func(s *Sessions) { s.now = now }
}

func NewSessions(storage domain.Storage, opts ...SessionsOption) *Sessions {
	s := &Sessions{
		entries: make(map[string]*sessionEntry),
		storage: storage,
		baseKey: DefaultKey,
		log:     logger.Nop(),
		idleTTL: 30 * time.Minute,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key devolve a chave de storage da sessão: "<base>:<session>".
func (s *Sessions) Key(sessionID string) string {
	return s.baseKey + ":" + sessionID
}

// Get devolve o Store da sessão, rehidratando do storage na primeira vez.
func (s *Sessions) Get(ctx context.Context, sessionID string) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[sessionID]; ok {
		e.lastSeen = s.now()
		return e.store
	}

	st := Open(ctx, s.storage, WithKey(s.Key(sessionID)), WithLogger(s.log))
	s.entries[sessionID] = &sessionEntry{store: st, lastSeen: s.now()}
	return st
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Cleanup descarta da memória as sessões sem acesso há mais de idleTTL.
// Sessão cujo storage ficou para trás (PersistErr) só sai depois de um Flush
// bem sucedido: a memória é a única cópia atual desse carrinho.
func (s *Sessions) Cleanup() {
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.entries {
		if !e.lastSeen.Before(cutoff) {
			continue
		}
		if err := e.store.Flush(context.Background()); err != nil {
			s.log.Warn(s.log.WithFields(context.Background(), map[string]any{
				"session": id,
				"error":   err.Error(),
			}), "cart.session.evict_skipped")
			continue
		}
		delete(s.entries, id)
	}
}

func (s *Sessions) StartJanitor(ctx DoneContext) {
	every := s.idleTTL / 2
	if every < time.Second {
		every = time.Second
	}
	go func() {
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
