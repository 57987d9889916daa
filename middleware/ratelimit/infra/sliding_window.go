package infra

import (
	"context"
	"fmt"
	"sync"
	"time"

	"crpt-gateway/middleware/ratelimit/domain"
)

// SlidingWindow limita a no máximo `limit` admissões em qualquer janela móvel
// de duração `window`.
//
// O histórico de admissões é um buffer circular que cresce sob demanda até `limit`
// (a mais antiga primeiro). Quando a janela está cheia, apenas um chamador por
// vez (quem detém `turn`) dorme no timer até a admissão mais antiga expirar;
// os demais aguardam a vez no channel, sem acordar a cada vaga liberada.
// Quem acorda revalida tudo: um chamador recém-chegado pode ter levado a vaga.
// A ordem entre quem aguarda não é garantida.
//
// Os instantes vêm de time.Now, e as comparações usam a leitura monotônica
// (Time.Sub), então ajustes no relógio de parede não afetam a janela.
type SlidingWindow struct {
	mu     sync.Mutex
	window time.Duration
	limit  int
	now    func() time.Time

	// hist[head] é a admissão mais antiga; size entradas válidas a partir dela.
	// Cresce sob demanda até limit (ver growLocked).
	hist []time.Time
	head int
	size int

	// turn tem capacidade 1: quem consegue enviar é o único a dormir no timer.
	turn chan struct{}

	// onAdmit é chamado com o lock adquirido a cada admissão (usado nos testes).
	onAdmit func(time.Time)
}

type SlidingWindowOption func(*SlidingWindow)

// WithClock troca a fonte de tempo (útil em testes determinísticos).
func WithClock(now func() time.Time) SlidingWindowOption {
	return func(w *SlidingWindow) {
		if now != nil {
			w.now = now
		}
	}
}

// NewSlidingWindow cria um limiter de `limit` admissões por `window`.
// Retorna erro com domain.ErrInvalidConfiguration se algum dos dois não for positivo.
func NewSlidingWindow(window time.Duration, limit int, opts ...SlidingWindowOption) (*SlidingWindow, error) {
	if err := validateWindow(window, limit); err != nil {
		return nil, err
	}
	return newSlidingWindow(window, limit, opts...), nil
}

func newSlidingWindow(window time.Duration, limit int, opts ...SlidingWindowOption) *SlidingWindow {
	w := &SlidingWindow{
		window: window,
		limit:  limit,
		now:    time.Now,
		turn:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func validateWindow(window time.Duration, limit int) error {
	if limit <= 0 {
		return fmt.Errorf("%w: limit must be > 0, got %d", domain.ErrInvalidConfiguration, limit)
	}
	if window <= 0 {
		return fmt.Errorf("%w: window must be > 0, got %s", domain.ErrInvalidConfiguration, window)
	}
	return nil
}

func (w *SlidingWindow) Limit() int            { return w.limit }
func (w *SlidingWindow) Window() time.Duration { return w.window }

// Acquire bloqueia até existir vaga na janela e então registra a admissão.
//
// Se o ctx encerrar antes (inclusive se já estiver encerrado na chamada),
// retorna um erro que satisfaz tanto errors.Is(err, domain.ErrCancelled)
// quanto errors.Is(err, ctx.Err()), sem registrar nada.
func (w *SlidingWindow) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return cancelled(err)
	}

	if ok, _ := w.TryAcquire(); ok {
		return nil
	}

	select {
	case w.turn <- struct{}{}:
	case <-ctx.Done():
		return cancelled(ctx.Err())
	}
	defer func() { <-w.turn }()

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		ok, wait := w.TryAcquire()
		if ok {
			return nil
		}

		if timer == nil {
			timer = time.NewTimer(wait)
		} else {
			timer.Reset(wait)
		}

		select {
		case <-ctx.Done():
			return cancelled(ctx.Err())
		case <-timer.C:
		}
	}
}

func cancelled(cause error) error {
	return fmt.Errorf("%w: %w", domain.ErrCancelled, cause)
}

// TryAcquire registra uma admissão se houver vaga, sem bloquear.
// Quando a janela está cheia retorna ok=false e o tempo até a admissão mais
// antiga sair da janela (window - idade da mais antiga).
func (w *SlidingWindow) TryAcquire() (bool, time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.pruneLocked(now)

	if w.size < w.limit {
		if w.size == len(w.hist) {
			w.growLocked()
		}
		w.hist[(w.head+w.size)%len(w.hist)] = now
		w.size++
		if w.onAdmit != nil {
			w.onAdmit(now)
		}
		return true, 0
	}

	oldest := w.hist[w.head]
	return false, w.window - now.Sub(oldest)
}

// Len retorna quantas admissões ainda estão dentro da janela.
func (w *SlidingWindow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pruneLocked(w.now())
	return w.size
}

// pruneLocked descarta do início do histórico o que tem idade > window.
// Uma admissão com idade exatamente igual a window ainda conta.
func (w *SlidingWindow) pruneLocked(now time.Time) {
	for w.size > 0 && now.Sub(w.hist[w.head]) > w.window {
		w.hist[w.head] = time.Time{}
		w.head = (w.head + 1) % len(w.hist)
		w.size--
	}
}

// minHistCap é a capacidade inicial do histórico (ou limit, se menor).
const minHistCap = 8

// growLocked dobra o histórico, sem passar de limit, e realinha as entradas
// para começar em 0. Só é chamado com size == len(hist) < limit.
func (w *SlidingWindow) growLocked() {
	n := minHistCap
	if len(w.hist) > 0 {
		n = len(w.hist) * 2
		if len(w.hist) > w.limit/2 {
			n = w.limit
		}
	}
	if n > w.limit {
		n = w.limit
	}

	hist := make([]time.Time, n)
	k := copy(hist, w.hist[w.head:])
	copy(hist[k:], w.hist[:w.head])
	w.hist = hist
	w.head = 0
}
