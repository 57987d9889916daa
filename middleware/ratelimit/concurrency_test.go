package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestConcurrencyMiddleware_TimesOutWhenNoSlot(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var startedOnce sync.Once

	// o handler segura a vaga até liberarmos.
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedOnce.Do(func() { close(started) })
		<-release
		w.WriteHeader(http.StatusOK)
	})

	h := ConcurrencyMiddleware(ConcurrencyOptions{
		Max:            1,
		AcquireTimeout: 25 * time.Millisecond,
	})(next)

	firstDone := make(chan int, 1)
	go func() {
		r1 := httptest.NewRequest(http.MethodPost, "http://example/api/v3/lk/documents/create", nil)
		w1 := httptest.NewRecorder()
		h.ServeHTTP(w1, r1)
		firstDone <- w1.Code
	}()

	select {
	case <-started:
	case <-time.After(200 * time.Millisecond):
		close(release)
		t.Fatalf("timeout waiting first request to start")
	}

	// a segunda roda na goroutine do teste: com a vaga ocupada, só pode falhar
	r2 := httptest.NewRequest(http.MethodPost, "http://example/api/v3/lk/documents/create", nil)
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, r2)
	if w2.Code != http.StatusServiceUnavailable {
		t.Errorf("expected second request 503 (default reject status), got %d", w2.Code)
	}

	close(release)
	select {
	case code := <-firstDone:
		if code != http.StatusOK {
			t.Fatalf("expected first request 200, got %d", code)
		}
	case <-time.After(time.Second):
		t.Fatalf("first request never finished")
	}

	// com a vaga livre de novo, passa
	w3 := httptest.NewRecorder()
	h.ServeHTTP(w3, httptest.NewRequest(http.MethodGet, "http://example/", nil))
	if w3.Code != http.StatusOK {
		t.Fatalf("expected request after release 200, got %d", w3.Code)
	}
}

func TestConcurrencyMiddleware_DisabledPassesThrough(t *testing.T) {
	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNoContent)
	})

	h := ConcurrencyMiddleware(ConcurrencyOptions{Max: 0})(next)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://example/", nil))
		if w.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", w.Code)
		}
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}
