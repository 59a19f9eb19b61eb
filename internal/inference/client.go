// Package inference содержит HTTP-клиент сервиса инференса,
// который классифицирует эмоции и оценивает тональность текстов.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"chat-insights/internal/domain"
)

var (
	// ErrBadResponse возвращается, когда ответ сервиса не соответствует контракту.
	ErrBadResponse = errors.New("inference: bad response")
	// ErrUnavailable возвращается, когда сервис отвечает ошибкой.
	ErrUnavailable = errors.New("inference: service unavailable")
)

// Config содержит конфигурацию для создания нового клиента.
type Config struct {
	ID             string
	URL            string
	Token          string
	RequestTimeout time.Duration
	MaxRetries     int
}

// ClientOption определяет функциональную опцию для конфигурации клиента.
type ClientOption func(*Client)

// WithLogger устанавливает логгер для клиента.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithHTTPClient подменяет HTTP-клиент.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithRetryInterval задает начальный интервал между повторами.
func WithRetryInterval(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.retryInterval = d
		}
	}
}

// Client — потокобезопасный клиент одного экземпляра сервиса инференса.
type Client struct {
	id            string
	baseURL       string
	token         string
	maxRetries    int
	retryInterval time.Duration
	http          *http.Client
	log           *slog.Logger
}

// NewClient создает новый экземпляр Client.
func NewClient(cfg Config, opts ...ClientOption) *Client {
	id := cfg.ID
	if id == "" {
		id = cfg.URL
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		id:            id,
		baseURL:       strings.TrimRight(cfg.URL, "/"),
		token:         cfg.Token,
		maxRetries:    cfg.MaxRetries,
		retryInterval: 500 * time.Millisecond,
		http:          &http.Client{Timeout: timeout},
		log:           slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ID возвращает идентификатор клиента.
func (c *Client) ID() string {
	return c.id
}

type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Classify возвращает по вектору из 28 вероятностей эмоций на каждый текст.
func (c *Client) Classify(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}

	var raw [][]labelScore
	if err := c.call(ctx, http.MethodPost, "/emotions", map[string]any{"inputs": texts}, &raw); err != nil {
		return nil, err
	}
	if len(raw) != len(texts) {
		return nil, fmt.Errorf("%w: %d results for %d texts", ErrBadResponse, len(raw), len(texts))
	}

	out := make([][]float64, len(raw))
	for i, scores := range raw {
		vec, err := toVector(scores)
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

// toVector раскладывает пары метка/оценка по порядку меток эмоций.
func toVector(scores []labelScore) ([]float64, error) {
	byLabel := make(map[string]float64, len(scores))
	for _, s := range scores {
		if _, ok := domain.EmotionIndex(s.Label); !ok {
			return nil, fmt.Errorf("%w: unknown label %q", ErrBadResponse, s.Label)
		}
		byLabel[s.Label] = s.Score
	}
	for _, label := range domain.Emotions {
		if _, ok := byLabel[label]; !ok {
			return nil, fmt.Errorf("%w: missing label %q", ErrBadResponse, label)
		}
	}
	vec := domain.EmotionScoresFromMap(byLabel)
	return vec[:], nil
}

// Sentiment возвращает оценку тональности текста.
func (c *Client) Sentiment(ctx context.Context, text string) (domain.Sentiment, error) {
	var s domain.Sentiment
	if err := c.call(ctx, http.MethodPost, "/sentiment", map[string]string{"text": text}, &s); err != nil {
		return domain.Sentiment{}, err
	}
	return s, nil
}

// Health проверяет доступность сервиса без повторов.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	c.authorize(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health status %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// call выполняет запрос с повторами для сетевых ошибок, 5xx и 429.
func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	attempt := 0
	op := func() error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		c.authorize(req)

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			c.log.DebugContext(ctx, "Inference request failed", "client_id", c.id, "path", path, "attempt", attempt, "error", err)
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			_, _ = io.Copy(io.Discard, resp.Body)
			c.log.DebugContext(ctx, "Inference service is busy", "client_id", c.id, "path", path, "status", resp.StatusCode, "attempt", attempt)
			return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return backoff.Permanent(fmt.Errorf("%w: status %d: %s", ErrBadResponse, resp.StatusCode, strings.TrimSpace(string(msg))))
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("%w: %v", ErrBadResponse, err))
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryInterval
	retries := c.maxRetries
	if retries < 0 {
		retries = 0
	}
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(retries)), ctx)); err != nil {
		return fmt.Errorf("inference %s %s: %w", c.id, path, err)
	}
	return nil
}
