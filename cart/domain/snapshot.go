package domain

import (
	"encoding/json"
	"fmt"
)

// SnapshotVersion é gravado junto do estado para migrações futuras.
const SnapshotVersion = 0

// Snapshot é a representação persistida: {"state":{"items":[...]},"version":0}.
type Snapshot struct {
	State   Cart `json:"state"`
	Version int  `json:"version"`
}

// EncodeSnapshot serializa o carrinho. Items nil vira [].
// decimal.Decimal grava price como string ("99.99") e aceita string ou number na leitura.
func EncodeSnapshot(c Cart) ([]byte, error) {
	if c.Items == nil {
		c.Items = []Item{}
	}
	b, err := json.Marshal(Snapshot{State: c, Version: SnapshotVersion})
	if err != nil {
		return nil, fmt.Errorf("encode cart snapshot: %w", err)
	}
	return b, nil
}

// DecodeSnapshot lê um snapshot. Versões desconhecidas são rejeitadas.
func DecodeSnapshot(data []byte) (Cart, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Cart{}, fmt.Errorf("decode cart snapshot: %w", err)
	}
	if s.Version != SnapshotVersion {
		return Cart{}, fmt.Errorf("decode cart snapshot: unsupported version %d", s.Version)
	}
	return s.State, nil
}
