package infra

import (
	"context"

	"eventhour-gateway/middleware/ratelimit/domain"

	"go.uber.org/multierr"
)

// FanoutStats repassa cada evento para todos os stores; um store com erro não
// impede os demais.
type FanoutStats []domain.StatsStore

func (f FanoutStats) Record(ctx context.Context, ev domain.StatsEvent) error {
	var err error
	for _, s := range f {
		if s == nil {
			continue
		}
		err = multierr.Append(err, s.Record(ctx, ev))
	}
	return err
}
