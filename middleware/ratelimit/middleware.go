package ratelimit

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"crpt-gateway/middleware/ratelimit/application"
	"crpt-gateway/middleware/ratelimit/domain"
)

type KeyFunc func(r *http.Request) string

type Options struct {
	Store               domain.LimiterStore
	Stats               domain.StatsStore
	KeyFn               KeyFunc
	KeyHeader           string
	TrustXForwardedFor  bool
	RejectStatus        int
	RetryAfter          time.Duration
	AddRateLimitHeaders bool

	// Logger recebe avisos de falha ao gravar estatísticas (padrão: slog.Default()).
	Logger *slog.Logger

	// MaxWait > 0 faz a request esperar vaga na janela por até MaxWait antes de
	// ser rejeitada. Com 0, a decisão é imediata.
	MaxWait time.Duration
}

type windowInfo interface {
	Limit() int
	Window() time.Duration
}

func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			// pega o primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				parts := strings.Split(xff, ",")
				if len(parts) > 0 {
					ip := strings.TrimSpace(parts[0])
					if ip != "" {
						return ip
					}
				}
			}
		}

		// fallback: RemoteAddr
		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}

func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.RetryAfter == 0 {
		opts.RetryAfter = 1 * time.Second
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}

	svc := application.Service{
		Store:      opts.Store,
		RetryAfter: opts.RetryAfter,
	}

	admission := application.NewAdmissionService(opts.Store)
	admission.Stats = opts.Stats
	admission.AcquireTimeout = opts.MaxWait
	admission.Logger = opts.Logger

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := opts.KeyFn(r)

			if opts.AddRateLimitHeaders {
				w.Header().Set("X-RateLimit-Key", key)
				if wi, ok := opts.Store.(windowInfo); ok {
					w.Header().Set("X-RateLimit-Limit", formatInt(wi.Limit()))
					w.Header().Set("X-RateLimit-Window", formatFloat(wi.Window().Seconds()))
				}
			}

			if opts.MaxWait > 0 {
				_, err := admission.Acquire(r.Context(), application.AdmissionRequest{
					Key:    domain.Key(key),
					Method: r.Method,
					Path:   r.URL.Path,
				})
				if err != nil {
					if r.Context().Err() != nil {
						// cliente desistiu; não há para quem responder
						return
					}
					reject(w, opts.RejectStatus, opts.RetryAfter)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			dec := svc.Decide(domain.Key(key))
			outcome := domain.OutcomeAdmitted
			if !dec.Allowed {
				outcome = domain.OutcomeDenied
			}
			admission.Record(r.Context(), application.AdmissionRequest{
				Key:    domain.Key(key),
				Method: r.Method,
				Path:   r.URL.Path,
			}, outcome, 0)
			if !dec.Allowed {
				reject(w, opts.RejectStatus, dec.RetryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func reject(w http.ResponseWriter, status int, retryAfter time.Duration) {
	w.Header().Set("Retry-After", formatInt(retryAfterSeconds(retryAfter)))
	http.Error(w, http.StatusText(status), status)
}
