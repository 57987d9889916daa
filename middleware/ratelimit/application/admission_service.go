package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"crpt-gateway/middleware/ratelimit/domain"

	"golang.org/x/time/rate"
)

// AdmissionRequest identifica quem pede admissão. Method/Path só alimentam estatísticas.
type AdmissionRequest struct {
	Key    domain.Key
	Method string
	Path   string
}

// AdmissionService é o caso de uso "esperar vaga na janela" para uma chave.
//
// Diferente de Service.Decide, aqui o chamador fica bloqueado até ser admitido,
// até o ctx encerrar ou até AcquireTimeout estourar. Cada resultado vira um
// domain.StatsEvent (best-effort).
type AdmissionService struct {
	Store          domain.LimiterStore
	Stats          domain.StatsStore
	AcquireTimeout time.Duration
	Logger         *slog.Logger

	// com muitos chamadores esperando, loga no máximo uma espera por segundo
	waitLog rate.Sometimes
}

func NewAdmissionService(store domain.LimiterStore) *AdmissionService {
	return &AdmissionService{
		Store:   store,
		waitLog: rate.Sometimes{First: 1, Interval: time.Second},
	}
}

// Acquire retorna quanto tempo o chamador esperou.
//
// Erros:
//   - ctx do chamador encerrado: domain.ErrCancelled (outcome "cancelled")
//   - AcquireTimeout estourado: domain.ErrCancelled + context.DeadlineExceeded (outcome "denied")
func (s *AdmissionService) Acquire(ctx context.Context, req AdmissionRequest) (time.Duration, error) {
	if s.Store == nil {
		return 0, nil
	}
	lim := s.Store.Get(req.Key)
	if lim == nil {
		return 0, nil
	}

	if err := ctx.Err(); err != nil {
		s.Record(ctx, req, domain.OutcomeCancelled, 0)
		return 0, fmt.Errorf("%w: %w", domain.ErrCancelled, err)
	}

	if ok, _ := lim.TryAcquire(); ok {
		s.Record(ctx, req, domain.OutcomeAdmitted, 0)
		return 0, nil
	}

	acqCtx := ctx
	if s.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		acqCtx, cancel = context.WithTimeout(ctx, s.AcquireTimeout)
		defer cancel()
	}

	s.waitLog.Do(func() {
		s.logger().Debug("rate limit window full, waiting for admission",
			slog.String("key", string(req.Key)),
			slog.Duration("acquire_timeout", s.AcquireTimeout))
	})

	start := time.Now()
	err := lim.Acquire(acqCtx)
	waited := time.Since(start)

	if err == nil {
		s.Record(ctx, req, domain.OutcomeAdmitted, waited)
		return waited, nil
	}

	outcome := domain.OutcomeCancelled
	if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		outcome = domain.OutcomeDenied
	}
	s.logger().Debug("admission abandoned",
		slog.String("key", string(req.Key)),
		slog.String("outcome", string(outcome)),
		slog.Duration("waited", waited),
		slog.Any("error", err))
	s.Record(ctx, req, outcome, waited)
	return waited, err
}

// For fixa uma chave e devolve um domain.Admitter, para clientes que só
// conhecem Acquire(ctx) (ex: crpt.Client).
func (s *AdmissionService) For(key domain.Key) domain.Admitter {
	return keyedAdmitter{svc: s, req: AdmissionRequest{Key: key}}
}

type keyedAdmitter struct {
	svc *AdmissionService
	req AdmissionRequest
}

func (a keyedAdmitter) Acquire(ctx context.Context) error {
	_, err := a.svc.Acquire(ctx, a.req)
	return err
}

// Record grava um StatsEvent best-effort: falhas do StatsStore só viram log Warn.
// Também é usado para decisões tomadas fora de Acquire (ex: Service.Decide).
func (s *AdmissionService) Record(ctx context.Context, req AdmissionRequest, outcome domain.Outcome, waited time.Duration) {
	if s.Stats == nil {
		return
	}
	// o ctx do chamador pode já estar cancelado; estatística não deve se perder por isso
	err := s.Stats.Record(context.WithoutCancel(ctx), domain.StatsEvent{
		Key:     req.Key,
		Outcome: outcome,
		Method:  req.Method,
		Path:    req.Path,
		Waited:  waited,
		At:      time.Now(),
	})
	if err != nil {
		s.logger().Warn("failed to record rate limit stats", slog.Any("error", err))
	}
}

func (s *AdmissionService) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
