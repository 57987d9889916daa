package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"crpt-gateway/crpt"
	"crpt-gateway/middleware/ratelimit/application"
	"crpt-gateway/middleware/ratelimit/infra"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type demoConfig struct {
	URL     string        `yaml:"url"`
	Token   string        `yaml:"token"`
	Count   int           `yaml:"count"`
	Limit   int           `yaml:"limit"`
	Window  time.Duration `yaml:"window"`
	Timeout time.Duration `yaml:"timeout"`
	Verbose bool          `yaml:"verbose"`
}

func defaultDemoConfig() demoConfig {
	return demoConfig{
		URL:     getenvDefault("CRPT_URL", crpt.DefaultBaseURL),
		Token:   getenvDefault("CRPT_TOKEN", "token"),
		Count:   40,
		Limit:   5,
		Window:  time.Second,
		Timeout: 0,
	}
}

func (c demoConfig) validate() error {
	if c.Count <= 0 {
		return fmt.Errorf("count must be > 0, got %d", c.Count)
	}
	if c.URL == "" {
		return fmt.Errorf("url is required")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be >= 0, got %s", c.Timeout)
	}
	return nil
}

// loadDemoConfig aplica, nessa ordem: padrões, arquivo YAML (se houver) e
// as flags marcadas como alteradas.
func loadDemoConfig(cmd *cobra.Command, path string, flags demoConfig) (demoConfig, error) {
	cfg := defaultDemoConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return demoConfig{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return demoConfig{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	changed := cmd.Flags().Changed
	if changed("url") {
		cfg.URL = flags.URL
	}
	if changed("token") {
		cfg.Token = flags.Token
	}
	if changed("count") {
		cfg.Count = flags.Count
	}
	if changed("limit") {
		cfg.Limit = flags.Limit
	}
	if changed("window") {
		cfg.Window = flags.Window
	}
	if changed("timeout") {
		cfg.Timeout = flags.Timeout
	}
	if changed("verbose") {
		cfg.Verbose = flags.Verbose
	}

	return cfg, cfg.validate()
}

// loadEnv lê um .env opcional; só a ausência do arquivo é ignorada.
func loadEnv(files ...string) error {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		flags      = defaultDemoConfig()
	)

	cmd := &cobra.Command{
		Use:           "crpt-demo",
		Short:         "Send sample documents through a rate limited document API client",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadDemoConfig(cmd, configPath, flags)
			if err != nil {
				return err
			}

			level := slog.LevelInfo
			if cfg.Verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			sum, err := runDemo(ctx, cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent=%d ok=%d failed=%d cancelled=%d waited=%s elapsed=%s\n",
				sum.Sent, sum.OK, sum.Failed, sum.Cancelled, sum.Waited.Round(time.Millisecond), sum.Elapsed.Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	cmd.Flags().StringVar(&flags.URL, "url", flags.URL, "document API base URL")
	cmd.Flags().StringVar(&flags.Token, "token", flags.Token, "bearer token")
	cmd.Flags().IntVarP(&flags.Count, "count", "n", flags.Count, "number of documents to send")
	cmd.Flags().IntVar(&flags.Limit, "limit", flags.Limit, "max documents per window")
	cmd.Flags().DurationVar(&flags.Window, "window", flags.Window, "sliding window length")
	cmd.Flags().DurationVar(&flags.Timeout, "timeout", flags.Timeout, "overall deadline (0 = none)")
	cmd.Flags().BoolVarP(&flags.Verbose, "verbose", "v", flags.Verbose, "debug logging")

	return cmd
}

type summary struct {
	Sent      int
	OK        int
	Failed    int
	Cancelled int
	Waited    time.Duration
	Elapsed   time.Duration
}

// runDemo dispara cfg.Count goroutines que compartilham um único crpt.Client.
// Cada resposta é escrita em out (sucesso) ou errOut (falha).
func runDemo(ctx context.Context, cfg demoConfig, logger *slog.Logger, out, errOut io.Writer) (summary, error) {
	store, err := infra.NewStore(cfg.Window, cfg.Limit)
	if err != nil {
		return summary{}, err
	}
	stats := infra.NewMemoryStatsStore()

	admission := application.NewAdmissionService(store)
	admission.Stats = stats
	admission.Logger = logger

	client := crpt.New(admission.For("crpt"), crpt.WithBaseURL(cfg.URL), crpt.WithLogger(logger))

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	docs := make([]*crpt.Document, cfg.Count)
	for i := range docs {
		docs[i] = crpt.SampleDocument()
	}

	var (
		mu  sync.Mutex
		sum summary
		wg  sync.WaitGroup
	)
	start := time.Now()
	for _, doc := range docs {
		wg.Add(1)
		go func(doc *crpt.Document) {
			defer wg.Done()

			resp, err := client.CreateDocument(ctx, doc, cfg.Token)

			mu.Lock()
			defer mu.Unlock()
			sum.Sent++
			if err != nil {
				sum.Failed++
				if code := crpt.StatusCode(err); code != 0 {
					fmt.Fprintf(errOut, "doc id: %s\nstatus code: %d\nerror: %v\n", doc.DocID, code, err)
				} else {
					fmt.Fprintf(errOut, "doc id: %s\nerror: %v\n", doc.DocID, err)
				}
				return
			}
			sum.OK++
			fmt.Fprintf(out, "doc id: %s\nresponse: %s\n", doc.DocID, resp)
		}(doc)
	}
	wg.Wait()

	total := stats.Total()
	sum.Cancelled = int(total.Cancelled + total.Denied)
	sum.Waited = total.Waited
	sum.Elapsed = time.Since(start)
	return sum, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
