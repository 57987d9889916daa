package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crpt-gateway/middleware/ratelimit"
	"crpt-gateway/middleware/ratelimit/domain"
	"crpt-gateway/middleware/ratelimit/infra"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.logLevel})))

	target, err := url.Parse(cfg.upstreamURL)
	if err != nil {
		log.Fatalf("invalid UPSTREAM_URL: %v", err)
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		slog.Error("proxy error", slog.String("path", r.URL.Path), slog.Any("error", err))
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}

	store, err := infra.NewStore(cfg.rateWindow, cfg.rateLimit)
	if err != nil {
		log.Fatalf("rate limiter: %v", err)
	}

	var redisStats domain.StatsStore
	if cfg.rateStatsEnabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.rateStatsRedisAddr,
			Password: cfg.rateStatsRedisPassword,
			DB:       cfg.rateStatsRedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancel()
		if err != nil {
			log.Fatalf("redis stats ping error: %v", err)
		}

		redisStats = infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.rateStatsPrefix),
			infra.WithStatsTTL(cfg.rateStatsTTL),
			infra.WithStatsBucket(cfg.rateStatsBucket),
			infra.WithStatsTrackKeys(cfg.rateStatsTrackKeys),
		)
	}

	var promStats domain.StatsStore
	var registry *prometheus.Registry
	if cfg.metricsAddr != "" {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		promStats = infra.NewPrometheusStatsStore(registry, infra.WithMetricsNamespace("gateway_ratelimit"))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	store.StartJanitor(ctx)

	h := http.Handler(proxy)
	h = ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
		Max:            cfg.concurrencyMax,
		RejectStatus:   http.StatusServiceUnavailable,
		AcquireTimeout: cfg.concurrencyTimeout,
	})(h)
	if cfg.rateEnabled {
		h = ratelimit.Middleware(ratelimit.Options{
			Store:               store,
			Stats:               infra.NewMultiStatsStore(redisStats, promStats),
			KeyHeader:           cfg.rateKeyHeader,
			TrustXForwardedFor:  cfg.trustXFF,
			RejectStatus:        http.StatusTooManyRequests,
			RetryAfter:          cfg.retryAfter,
			MaxWait:             cfg.rateMaxWait,
			AddRateLimitHeaders: cfg.addHeaders,
		})(h)
	}

	// MaxWait segura a request antes do handler; o WriteTimeout precisa cobrir isso
	writeTimeout := 30*time.Second + cfg.rateMaxWait

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       90 * time.Second,
	}

	servers := []*http.Server{srv}
	if registry != nil {
		admin := &http.Server{
			Addr:              cfg.metricsAddr,
			Handler:           adminRouter(registry, store),
			ReadHeaderTimeout: 5 * time.Second,
		}
		servers = append(servers, admin)

		go func() {
			log.Printf("admin listening on %s (/metrics, /healthz, /ratelimit)", cfg.metricsAddr)
			if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("admin server error: %v", err)
			}
		}()
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, s := range servers {
			_ = s.Shutdown(shutdownCtx)
		}
	}()

	log.Printf("gateway listening on %s -> %s", cfg.listenAddr, target)
	log.Printf("rate: enabled=%v limit=%d window=%s maxWait=%s keyHeader=%q trustXFF=%v", cfg.rateEnabled, cfg.rateLimit, cfg.rateWindow, cfg.rateMaxWait, cfg.rateKeyHeader, cfg.trustXFF)
	log.Printf("rate-stats: enabled=%v redisAddr=%q bucket=%q ttl=%s trackKeys=%v metrics=%q", cfg.rateStatsEnabled, cfg.rateStatsRedisAddr, cfg.rateStatsBucket, cfg.rateStatsTTL, cfg.rateStatsTrackKeys, cfg.metricsAddr)
	log.Printf("concurrency: max=%d acquireTimeout=%s", cfg.concurrencyMax, cfg.concurrencyTimeout)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

func adminRouter(registry *prometheus.Registry, store *infra.Store) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	r.Get("/ratelimit", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"limit":          store.Limit(),
			"window_seconds": store.Window().Seconds(),
			"keys":           store.Len(),
		})
	})
	return r
}
