package infra

import (
	"context"
	"sync"
	"time"

	"crpt-gateway/middleware/ratelimit/domain"
)

type Counters struct {
	Admitted  int64
	Denied    int64
	Cancelled int64

	// Waited soma o tempo bloqueado de todos os eventos.
	Waited time.Duration
}

func (c *Counters) add(ev domain.StatsEvent) {
	switch ev.Outcome {
	case domain.OutcomeAdmitted:
		c.Admitted++
	case domain.OutcomeCancelled:
		c.Cancelled++
	default:
		c.Denied++
	}
	c.Waited += ev.Waited
}

// MemoryStatsStore é uma implementação simples em memória.
// Útil para testes, desenvolvimento e para o resumo do cmd/crpt-demo.
//
// Não faz expiração e não é indicada para produção.
type MemoryStatsStore struct {
	mu      sync.Mutex
	total   Counters
	byRoute map[string]Counters
	byKey   map[string]Counters

	trackKeys bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byRoute: make(map[string]Counters),
		byKey:   make(map[string]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	route := ev.Method + " " + ev.Path

	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev)

	c := s.byRoute[route]
	c.add(ev)
	s.byRoute[route] = c

	if s.trackKeys {
		k := s.byKey[string(ev.Key)]
		k.add(ev)
		s.byKey[string(ev.Key)] = k
	}
	return nil
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryStatsStore) ByRoute() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyCounters(s.byRoute)
}

func (s *MemoryStatsStore) ByKey() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyCounters(s.byKey)
}

func copyCounters(src map[string]Counters) map[string]Counters {
	out := make(map[string]Counters, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
