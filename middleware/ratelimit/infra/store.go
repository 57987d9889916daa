package infra

import (
	"sync"
	"time"

	"crpt-gateway/middleware/ratelimit/domain"
)

// Store mantém uma SlidingWindow por chave, todas com o mesmo (window, limit),
// e limpa periodicamente as chaves ociosas.
type Store struct {
	mu           sync.Mutex
	entries      map[string]*storeEntry
	window       time.Duration
	limit        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
	windowOpts   []SlidingWindowOption
}

type storeEntry struct {
	lim      *SlidingWindow
	lastSeen time.Time
}

type StoreOption func(*Store)

func WithIdleTTL(d time.Duration) StoreOption {
	return func(s *Store) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) StoreOption {
	return func(s *Store) { s.cleanupEvery = d }
}

// WithWindowOptions repassa opções para cada SlidingWindow criada pelo Store.
func WithWindowOptions(opts ...SlidingWindowOption) StoreOption {
	return func(s *Store) { s.windowOpts = append(s.windowOpts, opts...) }
}

// NewStore valida a configuração uma única vez; Get nunca falha depois disso.
func NewStore(window time.Duration, limit int, opts ...StoreOption) (*Store, error) {
	if err := validateWindow(window, limit); err != nil {
		return nil, err
	}

	s := &Store{
		entries:      make(map[string]*storeEntry),
		window:       window,
		limit:        limit,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	// uma chave com admissões ainda na janela nunca é descartada
	if s.idleTTL < window {
		s.idleTTL = window
	}
	return s, nil
}

func (s *Store) Limit() int                  { return s.limit }
func (s *Store) Window() time.Duration       { return s.window }
func (s *Store) CleanupEvery() time.Duration { return s.cleanupEvery }

// Get implementa domain.LimiterStore.
func (s *Store) Get(key domain.Key) domain.Limiter {
	return s.GetString(string(key))
}

func (s *Store) GetString(key string) *SlidingWindow {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[key]; ok {
		ent.lastSeen = now
		return ent.lim
	}

	lim := newSlidingWindow(s.window, s.limit, s.windowOpts...)
	s.entries[key] = &storeEntry{lim: lim, lastSeen: now}
	return lim
}

// Len retorna quantas chaves estão em cache.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) Cleanup() {
	cutoff := time.Now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) && ent.lim.Len() == 0 {
			delete(s.entries, k)
		}
	}
}

// StartJanitor inicia uma goroutine que limpa chaves inativas periodicamente.
// Pare cancelando o contexto.
func (s *Store) StartJanitor(ctx DoneContext) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}

// DoneContext é o mínimo necessário para aceitar context.Context sem importar context aqui.
// (Permite reuso em libs sem acoplar.)
type DoneContext interface {
	Done() <-chan struct{}
}
