package domain

import (
	"context"
	"time"
)

// StatsEvent representa o desfecho de uma requisição ao gateway.
//
// Cuidado com cardinalidade: Key por cliente pode explodir o número de chaves
// no Redis; por isso o rastreamento por chave é opcional nas implementações.
type StatsEvent struct {
	Key     Key
	Outcome string

	Method string
	Path   string

	At time.Time
}

// StatsStore persiste estatísticas. Erros são best-effort: nunca derrubam a request.
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}

// Outcomes extras registrados pelos middlewares (fora do fluxo de conversão).
const (
	StatsThrottled = "throttled"
	StatsBusy      = "busy"
	StatsCheck     = "check"
)
