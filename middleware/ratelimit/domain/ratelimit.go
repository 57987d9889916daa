package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"context"
	"time"
)

type Key string

// Admitter é qualquer coisa capaz de bloquear o chamador até existir vaga na janela.
//
// Acquire retorna nil quando a admissão foi registrada. Se o ctx encerrar durante
// a espera, retorna um erro que satisfaz errors.Is(err, ErrCancelled) e nenhuma
// admissão é registrada.
type Admitter interface {
	Acquire(ctx context.Context) error
}

// Limiter é um Admitter que também sabe decidir sem bloquear.
//
// TryAcquire registra a admissão quando há vaga. Quando não há, retorna
// ok=false e quanto tempo falta para a entrada mais antiga sair da janela.
type Limiter interface {
	Admitter
	TryAcquire() (ok bool, retryAfter time.Duration)
}

// LimiterStore obtém um limiter por chave (ex: IP, API key, usuário).
// A implementação pode manter cache, TTL, etc.
type LimiterStore interface {
	Get(Key) Limiter
}

type Decision struct {
	Allowed bool
	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	// Se 0, não há recomendação.
	RetryAfter time.Duration
}
