// Package router распределяет запросы к сервисам инференса между
// несколькими экземплярами и выводит из пула недоступные.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"chat-insights/internal/domain"
	"chat-insights/internal/inference"
	"chat-insights/internal/pkg/config"
	"chat-insights/internal/ports"
)

var (
	// ErrNoHealthyClients возвращается, когда в пуле нет доступных клиентов.
	ErrNoHealthyClients = errors.New("no healthy inference clients available")
	// ErrNoEndpoints возвращается, когда роутеру не передано ни одного клиента.
	ErrNoEndpoints = errors.New("no inference endpoints provided to router")
)

var (
	_ ports.Router            = (*Router)(nil)
	_ ports.EmotionClassifier = (*Router)(nil)
	_ ports.SentimentScorer   = (*Router)(nil)
)

// Option определяет функциональную опцию для конфигурации роутера.
type Option func(*Router)

// WithServerConfigs создает клиентов по конфигурации сервисов инференса.
func WithServerConfigs(cfg config.Inference) Option {
	return func(r *Router) {
		for _, e := range cfg.Endpoints {
			id := e.ID
			if id == "" {
				id = e.URL
			}
			r.clients = append(r.clients, inference.NewClient(inference.Config{
				ID:             id,
				URL:            e.URL,
				Token:          e.Token,
				RequestTimeout: cfg.RequestTimeout,
				MaxRetries:     cfg.MaxRetries,
			}, inference.WithLogger(r.log.With("client_id", id))))
		}
		if cfg.HealthCheckInterval > 0 {
			r.healthCheckInterval = cfg.HealthCheckInterval
		}
	}
}

// WithClients передает готовых клиентов.
func WithClients(clients ...ports.InferenceClient) Option {
	return func(r *Router) {
		r.clients = append(r.clients, clients...)
	}
}

// WithHealthCheckInterval устанавливает интервал проверки работоспособности.
func WithHealthCheckInterval(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.healthCheckInterval = d
		}
	}
}

// WithStrategy устанавливает стратегию выбора клиента.
func WithStrategy(s ports.Strategy) Option {
	return func(r *Router) {
		if s != nil {
			r.strategy = s
		}
	}
}

// WithLogger устанавливает логгер. Опцию следует передавать раньше
// WithServerConfigs, чтобы клиенты получили тот же логгер.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.log = l
		}
	}
}

// Router управляет пулом клиентов инференса, их состоянием и выбором.
// Реализует ports.EmotionClassifier и ports.SentimentScorer.
type Router struct {
	mu        sync.RWMutex
	healthy   map[string]ports.InferenceClient
	unhealthy map[string]ports.InferenceClient
	strategy  ports.Strategy
	log       *slog.Logger

	clients             []ports.InferenceClient
	healthCheckInterval time.Duration
	ticker              *time.Ticker
	done                chan struct{}
	wg                  sync.WaitGroup
	stopOnce            sync.Once
}

// NewRouter создает и запускает новый роутер.
func NewRouter(opts ...Option) (*Router, error) {
	r := &Router{
		healthy:             make(map[string]ports.InferenceClient),
		unhealthy:           make(map[string]ports.InferenceClient),
		strategy:            NewRoundRobinStrategy(),
		healthCheckInterval: config.DefaultHealthCheckInterval,
		done:                make(chan struct{}),
		log:                 slog.Default().With("component", "inference_router"),
	}
	for _, opt := range opts {
		opt(r)
	}

	if len(r.clients) == 0 {
		return nil, ErrNoEndpoints
	}
	for _, c := range r.clients {
		if _, dup := r.healthy[c.ID()]; dup {
			return nil, fmt.Errorf("duplicate inference client id %q", c.ID())
		}
		r.healthy[c.ID()] = c
	}
	r.clients = nil

	r.ticker = time.NewTicker(r.healthCheckInterval)
	r.wg.Add(1)
	go r.healthCheckLoop()

	return r, nil
}

// GetClient возвращает работоспособного клиента согласно текущей стратегии.
// Ошибки вызовов через возвращенный клиент запускают проверку его здоровья.
func (r *Router) GetClient(ctx context.Context) (ports.InferenceClient, error) {
	r.mu.RLock()
	ids := make([]string, 0, len(r.healthy))
	for id := range r.healthy {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	clients := make([]ports.InferenceClient, len(ids))
	for i, id := range ids {
		clients[i] = r.healthy[id]
	}
	strategy := r.strategy
	r.mu.RUnlock()

	client, err := strategy.Next(clients)
	if err != nil {
		r.log.ErrorContext(ctx, "Strategy failed to get next client", "error", err)
		return nil, fmt.Errorf("select inference client: %w", err)
	}

	r.log.DebugContext(ctx, "Client selected by strategy", "client_id", client.ID())
	return &clientWrapper{InferenceClient: client, router: r}, nil
}

// SetStrategy меняет стратегию выбора клиента на лету.
func (r *Router) SetStrategy(s ports.Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategy = s
	r.log.Info("Router strategy updated")
}

// Size возвращает число здоровых и нездоровых клиентов.
func (r *Router) Size() (healthy, unhealthy int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.healthy), len(r.unhealthy)
}

// Classify отправляет пакет текстов на классификацию эмоций.
// При сбое запрос один раз повторяется на другом клиенте.
func (r *Router) Classify(ctx context.Context, texts []string) ([][]float64, error) {
	var out [][]float64
	err := r.withFailover(ctx, func(c ports.InferenceClient) error {
		var err error
		out, err = c.Classify(ctx, texts)
		return err
	})
	return out, err
}

// Score возвращает оценку тональности текста.
func (r *Router) Score(ctx context.Context, text string) (domain.Sentiment, error) {
	var out domain.Sentiment
	err := r.withFailover(ctx, func(c ports.InferenceClient) error {
		var err error
		out, err = c.Sentiment(ctx, text)
		return err
	})
	return out, err
}

func (r *Router) withFailover(ctx context.Context, call func(ports.InferenceClient) error) error {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		c, err := r.GetClient(ctx)
		if err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}
		lastErr = call(c)
		if lastErr == nil || ctx.Err() != nil {
			return lastErr
		}
	}
	return lastErr
}

// Stop останавливает фоновую проверку работоспособности клиентов.
func (r *Router) Stop() {
	r.stopOnce.Do(func() {
		r.log.Info("Stopping router...")
		r.ticker.Stop()
		close(r.done)
		r.wg.Wait()
		r.log.Info("Router stopped")
	})
}

func (r *Router) healthCheckLoop() {
	defer r.wg.Done()
	for {
		select {
		case <-r.ticker.C:
			r.checkUnhealthyClients()
		case <-r.done:
			r.log.Debug("Health check loop is stopping")
			return
		}
	}
}

// checkUnhealthyClients возвращает восстановившихся клиентов в пул здоровых.
func (r *Router) checkUnhealthyClients() {
	r.mu.RLock()
	candidates := make([]ports.InferenceClient, 0, len(r.unhealthy))
	for _, c := range r.unhealthy {
		candidates = append(candidates, c)
	}
	r.mu.RUnlock()

	if len(candidates) == 0 {
		return
	}
	r.log.Debug("Checking unhealthy clients", "count", len(candidates))

	for _, c := range candidates {
		ctx, cancel := context.WithTimeout(context.Background(), r.healthCheckInterval)
		err := c.Health(ctx)
		cancel()
		if err == nil {
			r.setClientHealthy(c.ID())
		} else {
			r.log.Debug("Client remains unhealthy", "client_id", c.ID(), "reason", err)
		}
	}
}

// forceHealthCheck проверяет клиента после сбоя и при необходимости
// переводит его в пул неработоспособных.
func (r *Router) forceHealthCheck(client ports.InferenceClient) {
	ctx, cancel := context.WithTimeout(context.Background(), r.healthCheckInterval)
	defer cancel()
	if err := client.Health(ctx); err != nil {
		r.log.Warn("Клиент не прошел проверку работоспособности после ошибки",
			"client_id", client.ID(),
			"reason", err,
		)
		r.setClientUnhealthy(client.ID())
		return
	}
	r.log.Debug("Клиент прошел проверку работоспособности", "client_id", client.ID())
}

func (r *Router) setClientUnhealthy(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	client, ok := r.healthy[id]
	if !ok {
		return
	}
	delete(r.healthy, id)
	r.unhealthy[id] = client
	r.log.Warn("Client moved to unhealthy pool", "client_id", id, "healthy_count", len(r.healthy), "unhealthy_count", len(r.unhealthy))
}

func (r *Router) setClientHealthy(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	client, ok := r.unhealthy[id]
	if !ok {
		return
	}
	delete(r.unhealthy, id)
	r.healthy[id] = client
	r.log.Info("Client moved back to healthy pool", "client_id", id, "healthy_count", len(r.healthy), "unhealthy_count", len(r.unhealthy))
}

// clientWrapper перехватывает ошибки вызовов и запускает проверку клиента.
// Проверка выполняется синхронно, поэтому повторный выбор клиента
// уже не вернет неработоспособный экземпляр.
type clientWrapper struct {
	ports.InferenceClient
	router *Router
}

func (w *clientWrapper) handleError(ctx context.Context, op string, err error) {
	if err == nil || ctx.Err() != nil {
		return
	}
	w.router.log.WarnContext(ctx, "Inference call failed", "client_id", w.ID(), "op", op, "error", err)
	w.router.forceHealthCheck(w.InferenceClient)
}

func (w *clientWrapper) Classify(ctx context.Context, texts []string) ([][]float64, error) {
	res, err := w.InferenceClient.Classify(ctx, texts)
	w.handleError(ctx, "classify", err)
	return res, err
}

func (w *clientWrapper) Sentiment(ctx context.Context, text string) (domain.Sentiment, error) {
	res, err := w.InferenceClient.Sentiment(ctx, text)
	w.handleError(ctx, "sentiment", err)
	return res, err
}
