package domain

import "context"

// Release devolve a vaga adquirida. Deve ser chamada exatamente uma vez.
type Release func()

// SlotPool limita quantas requisições chegam ao upstream ao mesmo tempo.
//
// Acquire bloqueia até conseguir uma vaga ou até o ctx encerrar; com ok=false
// nenhuma vaga foi ocupada e release é nil.
type SlotPool interface {
	Acquire(ctx context.Context) (release Release, ok bool)
	// InUse é o número de vagas ocupadas agora.
	InUse() int
}
