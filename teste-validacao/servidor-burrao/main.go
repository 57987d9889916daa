// servidor-burrao imita a API de documentos para validar o limite do cliente:
// aceita qualquer documento com token e imprime quantos chegaram em cada segundo.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"crpt-gateway/crpt"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// counter conta documentos recebidos desde o último flush.
type counter struct {
	mu    sync.Mutex
	n     int
	total int
}

func (c *counter) inc() {
	c.mu.Lock()
	c.n++
	c.total++
	c.mu.Unlock()
}

func (c *counter) flush() (n, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, total = c.n, c.total
	c.n = 0
	return n, total
}

func newRouter(c *counter) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post(crpt.CreatePath, func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}

		var doc crpt.Document
		if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
			http.Error(w, "invalid document: "+err.Error(), http.StatusBadRequest)
			return
		}
		if doc.DocID == "" {
			http.Error(w, "doc_id is required", http.StatusUnprocessableEntity)
			return
		}

		c.inc()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"value": doc.DocID})
	})

	return r
}

func main() {
	addr := ":8082"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	c := &counter{}
	srv := &http.Server{
		Addr:              addr,
		Handler:           newRouter(c),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		t := time.NewTicker(time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-t.C:
				if n, total := c.flush(); n > 0 {
					fmt.Printf("%s docs/s=%d total=%d\n", now.Format("15:04:05"), n, total)
				}
			}
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("fake document API listening on http://localhost%s%s", addr, crpt.CreatePath)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}
