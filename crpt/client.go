package crpt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"crpt-gateway/middleware/ratelimit/domain"
	"crpt-gateway/middleware/ratelimit/infra"

	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://ismp.crpt.ru"
	CreatePath     = "/api/v3/lk/documents/create"
)

// Client é seguro para uso concorrente; o limite vale para todas as goroutines
// que compartilham o mesmo Client.
type Client struct {
	limiter    domain.Admitter
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	errLog rate.Sometimes
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New cria um cliente que pede admissão a limiter antes de cada requisição.
func New(limiter domain.Admitter, opts ...Option) *Client {
	c := &Client{
		limiter:    limiter,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default(),
		errLog:     rate.Sometimes{First: 3, Interval: 5 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewWithLimit cria o cliente com a própria janela deslizante: no máximo
// limit documentos por window. Erro com domain.ErrInvalidConfiguration se
// algum dos dois não for positivo.
func NewWithLimit(window time.Duration, limit int, opts ...Option) (*Client, error) {
	lim, err := infra.NewSlidingWindow(window, limit)
	if err != nil {
		return nil, err
	}
	return New(lim, opts...), nil
}

// CreateDocument envia o documento e devolve o corpo da resposta.
//
// O erro de Acquire (domain.ErrCancelled) é devolvido sem embrulho, e nesse
// caso nenhuma requisição foi feita. Status diferente de 200 vira *APIError.
func (c *Client) CreateDocument(ctx context.Context, doc *Document, token string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Acquire(ctx); err != nil {
			return "", err
		}
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("crpt: encode document: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+CreatePath, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("crpt: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("crpt: send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("crpt: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.errLog.Do(func() {
			c.logger.Warn("document API rejected request",
				slog.Int("status", resp.StatusCode),
				slog.String("doc_id", doc.DocID))
		})
		return "", &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return string(body), nil
}
