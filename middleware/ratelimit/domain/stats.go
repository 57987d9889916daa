package domain

import (
	"context"
	"time"
)

// Outcome é o resultado de uma tentativa de admissão.
type Outcome string

const (
	OutcomeAdmitted  Outcome = "admitted"
	OutcomeDenied    Outcome = "denied"
	OutcomeCancelled Outcome = "cancelled"
)

// StatsEvent representa um evento de decisão do rate limit.
//
// Ele é propositalmente "agnóstico de HTTP": Method/Path são strings genéricas
// e podem ser usadas para web, gRPC, clientes de API etc.
//
// Observação: cuidado com cardinalidade (ex.: salvar Key/Path sem controle pode
// explodir o número de séries/chaves em uma base como Redis/Prometheus).
type StatsEvent struct {
	Key     Key
	Outcome Outcome

	Method string
	Path   string

	// Waited é quanto tempo o chamador ficou bloqueado antes do resultado.
	Waited time.Duration

	At time.Time
}

func (e StatsEvent) Allowed() bool { return e.Outcome == OutcomeAdmitted }

// StatsStore é a estratégia de persistência para estatísticas do rate limit.
//
// Implementações podem armazenar em Redis, Prometheus, memória, etc.
// Quem chama deve tratar erro como best-effort (não derrubar request).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
