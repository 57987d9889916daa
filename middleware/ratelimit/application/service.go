package application

import (
	"time"

	"crpt-gateway/middleware/ratelimit/domain"
)

// Service concentra a regra de aplicação do rate limit sem espera.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
type Service struct {
	Store domain.LimiterStore
	// RetryAfter é usado quando o limiter não informa quanto falta (ex: 0).
	RetryAfter time.Duration
}

func (s Service) Decide(key domain.Key) domain.Decision {
	if s.Store == nil {
		return domain.Decision{Allowed: true}
	}
	if s.RetryAfter <= 0 {
		s.RetryAfter = 1 * time.Second
	}

	lim := s.Store.Get(key)
	if lim == nil {
		return domain.Decision{Allowed: true}
	}
	ok, retryAfter := lim.TryAcquire()
	if ok {
		return domain.Decision{Allowed: true}
	}
	if retryAfter <= 0 {
		retryAfter = s.RetryAfter
	}
	return domain.Decision{Allowed: false, RetryAfter: retryAfter}
}
