package crpt

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"crpt-gateway/middleware/ratelimit/domain"
)

func TestCreateDocument_SendsJSONWithBearerToken(t *testing.T) {
	var (
		gotMethod string
		gotPath   string
		gotCT     string
		gotAuth   string
		gotBody   map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotCT = r.Header.Get("Content-Type")
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		_, _ = io.WriteString(w, `{"value":"ok"}`)
	}))
	defer srv.Close()

	c, err := NewWithLimit(time.Second, 5, WithBaseURL(srv.URL+"/"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	doc := SampleDocument()
	body, err := c.CreateDocument(context.Background(), doc, "jwt-123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body != `{"value":"ok"}` {
		t.Fatalf("unexpected body %q", body)
	}

	if gotMethod != http.MethodPost || gotPath != CreatePath {
		t.Fatalf("expected POST %s, got %s %s", CreatePath, gotMethod, gotPath)
	}
	if gotCT != "application/json" {
		t.Fatalf("expected application/json, got %q", gotCT)
	}
	if gotAuth != "Bearer jwt-123" {
		t.Fatalf("expected bearer token, got %q", gotAuth)
	}

	if gotBody["doc_id"] != doc.DocID {
		t.Fatalf("expected doc_id %q, got %v", doc.DocID, gotBody["doc_id"])
	}
	if gotBody["doc_type"] != DocTypeIntroduceGoods {
		t.Fatalf("expected doc_type %q, got %v", DocTypeIntroduceGoods, gotBody["doc_type"])
	}
	if gotBody["importRequest"] != true {
		t.Fatalf("expected importRequest=true, got %v", gotBody["importRequest"])
	}
	desc, _ := gotBody["description"].(map[string]any)
	if desc["participantInn"] != "000000000000" {
		t.Fatalf("expected description.participantInn, got %v", gotBody["description"])
	}
	products, _ := gotBody["products"].([]any)
	if len(products) != 1 {
		t.Fatalf("expected 1 product, got %v", gotBody["products"])
	}
	if p, _ := products[0].(map[string]any); p["tnved_code"] != "3" || p["uitu_code"] != "5" {
		t.Fatalf("unexpected product fields: %v", products[0])
	}
}

func TestCreateDocument_NonOKStatusIsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid signature", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(nil, WithBaseURL(srv.URL))

	_, err := c.CreateDocument(context.Background(), NewDocument(), "bad")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", apiErr.StatusCode)
	}
	if apiErr.Body != "invalid signature\n" {
		t.Fatalf("unexpected body %q", apiErr.Body)
	}
	if StatusCode(err) != http.StatusUnauthorized {
		t.Fatalf("expected StatusCode helper to find 401")
	}
	if StatusCode(errors.New("boom")) != 0 {
		t.Fatalf("expected StatusCode 0 for non-API errors")
	}
}

type refusingAdmitter struct{ calls int }

func (a *refusingAdmitter) Acquire(ctx context.Context) error {
	a.calls++
	return domain.ErrCancelled
}

func TestCreateDocument_AdmissionErrorSkipsRequest(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	adm := &refusingAdmitter{}
	c := New(adm, WithBaseURL(srv.URL))

	_, err := c.CreateDocument(context.Background(), NewDocument(), "t")
	if err != domain.ErrCancelled {
		t.Fatalf("expected admission error returned as is, got %v", err)
	}
	if adm.calls != 1 || hits.Load() != 0 {
		t.Fatalf("expected 1 admission and no request, got %d/%d", adm.calls, hits.Load())
	}
}

func TestCreateDocument_CancelledWhileWaiting(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	c, err := NewWithLimit(time.Minute, 1, WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.CreateDocument(context.Background(), NewDocument(), "t"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.CreateDocument(ctx, NewDocument(), "t")
	if !domain.IsCancelled(err) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected ErrCancelled + DeadlineExceeded, got %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected only the first request to reach the server, got %d", hits.Load())
	}
}

func TestCreateDocument_SharedLimitAcrossGoroutines(t *testing.T) {
	const (
		window = 100 * time.Millisecond
		limit  = 3
		docs   = 7
	)

	var (
		mu    sync.Mutex
		times []time.Time
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		times = append(times, time.Now())
		mu.Unlock()
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	c, err := NewWithLimit(window, limit, WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < docs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.CreateDocument(context.Background(), SampleDocument(), "t"); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	// 7 documentos a 3 por janela: pelo menos duas janelas inteiras de espera
	if elapsed := time.Since(start); elapsed < 2*window {
		t.Fatalf("expected at least %s, took %s", 2*window, elapsed)
	}
	if len(times) != docs {
		t.Fatalf("expected %d requests, got %d", docs, len(times))
	}
}

func TestNewWithLimit_InvalidConfiguration(t *testing.T) {
	if _, err := NewWithLimit(0, 5); !domain.IsInvalidConfiguration(err) {
		t.Fatalf("expected ErrInvalidConfiguration for zero window, got %v", err)
	}
	if _, err := NewWithLimit(time.Second, 0); !domain.IsInvalidConfiguration(err) {
		t.Fatalf("expected ErrInvalidConfiguration for zero limit, got %v", err)
	}
}

func TestSampleDocument_UniqueIDs(t *testing.T) {
	a, b := SampleDocument(), SampleDocument()
	if a.DocID == "" || a.DocID == b.DocID {
		t.Fatalf("expected distinct non-empty doc ids, got %q and %q", a.DocID, b.DocID)
	}
	if a.DocType != DocTypeIntroduceGoods {
		t.Fatalf("expected default doc type, got %q", a.DocType)
	}
}
