package infra

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"eventhour-gateway/cart/domain"
)

// ErrQuotaExceeded reproduz o estouro de quota do storage do navegador.
var ErrQuotaExceeded = errors.New("cart: storage quota exceeded")

// MemoryStorage guarda os snapshots num map. Com quota > 0, a soma dos bytes
// armazenados nunca passa de quota.
type MemoryStorage struct {
	mu    sync.RWMutex
	data  map[string][]byte
	used  int
	quota int
}

type MemoryOption func(*MemoryStorage)

func WithQuota(bytes int) MemoryOption {
	return func(m *MemoryStorage) { m.quota = bytes }
}

func NewMemoryStorage(opts ...MemoryOption) *MemoryStorage {
	m := &MemoryStorage{data: make(map[string][]byte)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MemoryStorage) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.data[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (m *MemoryStorage) Save(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	used := m.used - len(m.data[key]) + len(data)
	if m.quota > 0 && used > m.quota {
		return fmt.Errorf("%w: %d bytes needed, quota %d", ErrQuotaExceeded, used, m.quota)
	}
	m.data[key] = append([]byte(nil), data...)
	m.used = used
	return nil
}

func (m *MemoryStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.used -= len(m.data[key])
	delete(m.data, key)
	return nil
}

// Used devolve o total de bytes armazenados.
func (m *MemoryStorage) Used() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.used
}
