package infra

import (
	"context"
	"fmt"
	"sync"

	"crpt-gateway/middleware/ratelimit/domain"
)

// ChanPool é um semáforo baseado em channel: cada vaga ocupada é um item no buffer.
type ChanPool struct {
	sem chan struct{}
}

var _ domain.SlotPool = (*ChanPool)(nil)

// NewChanPool cria um pool com capacidade `max` (mínimo 1).
func NewChanPool(max int) *ChanPool {
	if max < 1 {
		max = 1
	}
	return &ChanPool{sem: make(chan struct{}, max)}
}

func (p *ChanPool) Acquire(ctx context.Context) (func(), error) {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: no concurrency slot: %w", domain.ErrCancelled, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-p.sem })
	}, nil
}

func (p *ChanPool) InUse() int { return len(p.sem) }
func (p *ChanPool) Cap() int   { return cap(p.sem) }
