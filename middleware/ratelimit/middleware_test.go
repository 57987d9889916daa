package ratelimit

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"crpt-gateway/middleware/ratelimit/domain"
	"crpt-gateway/middleware/ratelimit/infra"
)

func newTestStore(t *testing.T, window time.Duration, limit int) *infra.Store {
	t.Helper()
	store, err := infra.NewStore(window, limit)
	if err != nil {
		t.Fatalf("unexpected error creating store: %v", err)
	}
	return store
}

func TestMiddleware_AllowsThenRejectsSameKey(t *testing.T) {
	store := newTestStore(t, time.Minute, 1)
	stats := infra.NewMemoryStatsStore()

	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok")
	})

	h := Middleware(Options{
		Store:               store,
		Stats:               stats,
		RejectStatus:        http.StatusTooManyRequests,
		RetryAfter:          1 * time.Second,
		AddRateLimitHeaders: true,
	})(next)

	// 1) primeira passa
	r1 := httptest.NewRequest(http.MethodGet, "http://example/showTela", nil)
	r1.RemoteAddr = "10.0.0.1:1234"
	w1 := httptest.NewRecorder()
	h.ServeHTTP(w1, r1)
	if w1.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w1.Code)
	}
	if got := w1.Header().Get("X-RateLimit-Key"); got != "10.0.0.1" {
		t.Fatalf("expected X-RateLimit-Key=10.0.0.1, got %q", got)
	}
	if got := w1.Header().Get("X-RateLimit-Limit"); got != "1" {
		t.Fatalf("expected X-RateLimit-Limit=1, got %q", got)
	}
	if got := w1.Header().Get("X-RateLimit-Window"); got != "60" {
		t.Fatalf("expected X-RateLimit-Window=60, got %q", got)
	}

	// 2) segunda deve bloquear (limit=1 por minuto)
	r2 := httptest.NewRequest(http.MethodGet, "http://example/showTela", nil)
	r2.RemoteAddr = "10.0.0.1:1234"
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, r2)
	if w2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w2.Code)
	}
	if got := w2.Header().Get("Retry-After"); got != "60" {
		t.Fatalf("expected Retry-After=60, got %q", got)
	}

	if calls != 1 {
		t.Fatalf("expected next handler to be called once, got %d", calls)
	}
	if total := stats.Total(); total.Admitted != 1 || total.Denied != 1 {
		t.Fatalf("unexpected stats: %+v", total)
	}
}

func TestMiddleware_KeyByHeader(t *testing.T) {
	store := newTestStore(t, time.Minute, 1)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	h := Middleware(Options{
		Store:      store,
		KeyHeader:  "X-Api-Key",
		RetryAfter: 1 * time.Second,
	})(next)

	// duas chaves diferentes => ambos devem passar (cada chave tem sua própria janela)
	r1 := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r1.Header.Set("X-Api-Key", "k1")
	r1.RemoteAddr = "10.0.0.1:1234"
	w1 := httptest.NewRecorder()
	h.ServeHTTP(w1, r1)
	if w1.Code != http.StatusOK {
		t.Fatalf("expected 200 for key k1, got %d", w1.Code)
	}

	r2 := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r2.Header.Set("X-Api-Key", "k2")
	r2.RemoteAddr = "10.0.0.1:1234"
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, r2)
	if w2.Code != http.StatusOK {
		t.Fatalf("expected 200 for key k2, got %d", w2.Code)
	}
}

func TestMiddleware_RetryAfterRoundsUpExactWait(t *testing.T) {
	store := newTestStore(t, 2500*time.Millisecond, 1)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	h := Middleware(Options{
		Store:      store,
		RetryAfter: 10 * time.Second,
	})(next)

	r1 := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r1.RemoteAddr = "10.0.0.1:1234"
	w1 := httptest.NewRecorder()
	h.ServeHTTP(w1, r1)
	if w1.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w1.Code)
	}

	r2 := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r2.RemoteAddr = "10.0.0.1:1234"
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, r2)
	if w2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w2.Code)
	}
	if got := strings.TrimSpace(w2.Header().Get("Retry-After")); got != "3" {
		// ~2.5s restantes, arredondado para cima
		t.Fatalf("expected Retry-After=3, got %q", got)
	}
}

func TestMiddleware_MaxWaitHoldsRequestUntilAdmitted(t *testing.T) {
	const window = 60 * time.Millisecond
	store := newTestStore(t, window, 1)
	stats := infra.NewMemoryStatsStore()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	h := Middleware(Options{
		Store:   store,
		Stats:   stats,
		MaxWait: time.Second,
	})(next)

	start := time.Now()
	for i := 0; i < 2; i++ {
		r := httptest.NewRequest(http.MethodPost, "http://example/docs", nil)
		r.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200 on request %d, got %d", i+1, w.Code)
		}
	}
	if elapsed := time.Since(start); elapsed < window {
		t.Fatalf("expected second request to wait for the window, elapsed %s", elapsed)
	}
	if total := stats.Total(); total.Admitted != 2 || total.Waited <= 0 {
		t.Fatalf("unexpected stats: %+v", total)
	}
}

func TestMiddleware_MaxWaitExceededRejects(t *testing.T) {
	store := newTestStore(t, time.Minute, 1)
	stats := infra.NewMemoryStatsStore()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	h := Middleware(Options{
		Store:      store,
		Stats:      stats,
		MaxWait:    20 * time.Millisecond,
		RetryAfter: 2 * time.Second,
	})(next)

	r1 := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r1.RemoteAddr = "10.0.0.1:1234"
	h.ServeHTTP(httptest.NewRecorder(), r1)

	r2 := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r2.RemoteAddr = "10.0.0.1:1234"
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, r2)
	if w2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w2.Code)
	}
	if got := w2.Header().Get("Retry-After"); got != "2" {
		t.Fatalf("expected Retry-After=2, got %q", got)
	}
	if total := stats.Total(); total.Denied != 1 {
		t.Fatalf("expected 1 denied event, got %+v", total)
	}
}

func TestMiddleware_MaxWaitClientGoneWritesNothing(t *testing.T) {
	store := newTestStore(t, time.Minute, 1)
	stats := infra.NewMemoryStatsStore()

	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	h := Middleware(Options{
		Store:   store,
		Stats:   stats,
		MaxWait: time.Second,
	})(next)

	r1 := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r1.RemoteAddr = "10.0.0.1:1234"
	h.ServeHTTP(httptest.NewRecorder(), r1)
	called = false

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	r2 := httptest.NewRequest(http.MethodGet, "http://example/", nil).WithContext(ctx)
	r2.RemoteAddr = "10.0.0.1:1234"
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, r2)

	if called {
		t.Fatalf("next handler must not run for an abandoned request")
	}
	if w2.Body.Len() != 0 {
		t.Fatalf("expected empty body, got %q", w2.Body.String())
	}
	if total := stats.Total(); total.Cancelled != 1 {
		t.Fatalf("expected 1 cancelled event, got %+v", total)
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want int
	}{
		{0, 1},
		{-time.Second, 1},
		{300 * time.Millisecond, 1},
		{time.Second, 1},
		{1001 * time.Millisecond, 2},
		{59*time.Second + 999*time.Millisecond, 60},
	}
	for _, tc := range tests {
		if got := retryAfterSeconds(tc.in); got != tc.want {
			t.Errorf("retryAfterSeconds(%s) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

type failingStats struct{}

func (failingStats) Record(context.Context, domain.StatsEvent) error {
	return errors.New("redis down")
}

func TestMiddleware_StatsFailureIsLoggedInBothModes(t *testing.T) {
	for _, maxWait := range []time.Duration{0, time.Second} {
		t.Run("maxWait="+maxWait.String(), func(t *testing.T) {
			var logs bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&logs, nil))

			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
			h := Middleware(Options{
				Store:   newTestStore(t, time.Minute, 5),
				Stats:   failingStats{},
				MaxWait: maxWait,
				Logger:  logger,
			})(next)

			r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
			r.RemoteAddr = "10.0.0.1:1234"
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)

			// falha de estatística nunca derruba a request
			if w.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", w.Code)
			}
			out := logs.String()
			if !strings.Contains(out, "failed to record rate limit stats") || !strings.Contains(out, "redis down") {
				t.Fatalf("expected stats failure to be logged, got %q", out)
			}
		})
	}
}
