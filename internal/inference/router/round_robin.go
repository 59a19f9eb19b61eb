package router

import (
	"sync/atomic"

	"chat-insights/internal/ports"
)

// RoundRobinStrategy выбирает клиентов по кругу.
type RoundRobinStrategy struct {
	next atomic.Uint32
}

// NewRoundRobinStrategy создает новую Round Robin стратегию.
func NewRoundRobinStrategy() *RoundRobinStrategy {
	return &RoundRobinStrategy{}
}

// Next возвращает следующего клиента в списке.
func (s *RoundRobinStrategy) Next(clients []ports.InferenceClient) (ports.InferenceClient, error) {
	if len(clients) == 0 {
		return nil, ErrNoHealthyClients
	}
	idx := s.next.Add(1) - 1
	return clients[idx%uint32(len(clients))], nil
}
