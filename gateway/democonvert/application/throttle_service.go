package application

import (
	"time"

	"demo-gateway/gateway/democonvert/domain"
)

// ThrottleService decide se um cliente pode fazer mais uma requisição agora
// (rajada), independente da quota diária.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
type ThrottleService struct {
	Store      domain.LimiterStore
	RetryAfter time.Duration
}

func (s ThrottleService) Decide(key domain.Key) domain.Decision {
	if s.Store == nil {
		return domain.Decision{Allowed: true}
	}
	retry := s.RetryAfter
	if retry <= 0 {
		retry = time.Second
	}

	lim := s.Store.Get(key)
	if lim == nil || lim.Allow() {
		return domain.Decision{Allowed: true}
	}
	return domain.Decision{Allowed: false, RetryAfter: retry}
}
