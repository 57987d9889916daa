package domain

import "context"

// SlotPool limita quantas operações rodam ao mesmo tempo (requests em voo no
// gateway), complementando a janela deslizante, que limita quantas começam.
//
// Acquire bloqueia até haver vaga ou o ctx encerrar. Em caso de falha retorna
// um erro com ErrCancelled e nada fica ocupado; em caso de sucesso, release
// pode ser chamado mais de uma vez, só a primeira libera.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), err error)
}
