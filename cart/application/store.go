package application

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"eventhour-gateway/cart/domain"
	"eventhour-gateway/pkg/logger"

	"github.com/shopspring/decimal"
)

// DefaultKey é a chave do snapshot no storage.
const DefaultKey = "eventhour-cart"

// Store mantém o carrinho em memória e grava o snapshot a cada mutação efetiva
// (write-through). Falha de gravação não desfaz a mutação: o estado em memória é
// a fonte da verdade e o erro fica disponível em PersistErr.
type Store struct {
	mu      sync.Mutex
	cart    domain.Cart
	storage domain.Storage
	key     string
	log     *logger.Logger
	onErr   func(error)
	lastErr error
}

type Option func(*Store)

func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithPersistErrorHandler recebe cada falha de gravação (ex: quota excedida).
func WithPersistErrorHandler(fn func(error)) Option {
	return func(s *Store) { s.onErr = fn }
}

// New cria um carrinho vazio sem ler o storage.
func New(storage domain.Storage, opts ...Option) *Store {
	s := &Store{storage: storage, key: DefaultKey, log: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open cria o Store e rehidrata a partir do storage. Chave ausente dá carrinho vazio;
// snapshot ilegível ou itens inválidos são registrados e descartados.
func Open(ctx context.Context, storage domain.Storage, opts ...Option) *Store {
	s := New(storage, opts...)
	if storage == nil {
		return s
	}

	ctx = s.log.WithField(ctx, "cart_key", s.key)
	data, err := storage.Load(ctx, s.key)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.log.Warn(s.log.WithField(ctx, "error", err.Error()), "cart.load.failed")
		}
		return s
	}

	c, err := domain.DecodeSnapshot(data)
	if err != nil {
		s.log.Warn(s.log.WithField(ctx, "error", err.Error()), "cart.load.corrupt")
		return s
	}
	for _, it := range c.Items {
		if err := ValidateItem(it); err != nil {
			s.log.Warn(s.log.WithFields(ctx, map[string]any{"item_id": it.ID, "error": err.Error()}), "cart.load.item_skipped")
			continue
		}
		if err := s.cart.Add(it); err != nil {
			s.log.Warn(s.log.WithFields(ctx, map[string]any{"item_id": it.ID, "error": err.Error()}), "cart.load.item_skipped")
		}
	}
	return s
}

// AddItem valida e inclui o item. Mesmo id soma a quantidade na linha existente.
func (s *Store) AddItem(ctx context.Context, item domain.Item) error {
	if err := ValidateItem(item); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.cart.Add(item); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidItem, err)
	}
	s.persistLocked(ctx)
	return nil
}

// UpdateQuantity troca a quantidade (<= 0 remove, acima de domain.MaxQuantity
// fica no teto). Retorna false se o id não existe.
func (s *Store) UpdateQuantity(ctx context.Context, id string, quantity int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cart.SetQuantity(id, quantity) {
		return false
	}
	s.persistLocked(ctx)
	return true
}

// RemoveItem retorna false se o id não existe.
func (s *Store) RemoveItem(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cart.Remove(id) {
		return false
	}
	s.persistLocked(ctx)
	return true
}

// Clear esvazia o carrinho e apaga a chave do storage; rehidratar uma chave
// ausente dá o mesmo carrinho vazio.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart.Clear()
	if s.storage == nil {
		return
	}
	s.recordLocked(ctx, s.storage.Delete(ctx, s.key))
}

func (s *Store) Items() []domain.Item {
	return s.Cart().Items
}

func (s *Store) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.TotalItems()
}

func (s *Store) TotalPrice() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.TotalPrice()
}

// Cart devolve uma cópia do agregado.
func (s *Store) Cart() domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Clone()
}

// PersistErr é o erro da última gravação (nil se ela deu certo).
func (s *Store) PersistErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Flush regrava o estado atual se a última gravação falhou. Devolve o erro
// que restar (nil quando o storage já está em dia).
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastErr == nil {
		return nil
	}
	s.persistLocked(ctx)
	return s.lastErr
}

func (s *Store) persistLocked(ctx context.Context) {
	if s.storage == nil {
		return
	}
	data, err := domain.EncodeSnapshot(s.cart)
	if err == nil {
		err = s.storage.Save(ctx, s.key, data)
	}
	s.recordLocked(ctx, err)
}

func (s *Store) recordLocked(ctx context.Context, err error) {
	s.lastErr = err
	if err == nil {
		return
	}

	s.log.Warn(s.log.WithFields(ctx, map[string]any{"cart_key": s.key, "error": err.Error()}), "cart.persist.failed")
	if s.onErr != nil {
		s.onErr(err)
	}
}
