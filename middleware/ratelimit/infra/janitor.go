package infra

import "time"

// DoneContext é o que os janitors usam de um context.Context: só o Done.
type DoneContext interface {
	Done() <-chan struct{}
}

// runEvery executa fn a cada intervalo numa goroutine até ctx encerrar.
func runEvery(ctx DoneContext, every time.Duration, fn func()) {
	if every <= 0 {
		return
	}

	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				fn()
			}
		}
	}()
}
