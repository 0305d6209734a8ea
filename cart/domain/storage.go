package domain

import (
	"context"
	"errors"
)

// ErrNotFound indica que a chave não existe no storage.
var ErrNotFound = errors.New("cart: key not found")

// Storage é o armazenamento chave-valor onde o snapshot do carrinho é gravado
// (equivalente ao localStorage do navegador).
type Storage interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}
