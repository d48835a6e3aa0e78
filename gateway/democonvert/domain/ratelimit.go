package domain

import (
	"context"
	"time"
)

// Limiter decide se uma ação é permitida agora (token bucket na infra).
type Limiter interface {
	Allow() bool
}

// LimiterStore obtém um limiter por chave de cliente.
type LimiterStore interface {
	Get(Key) Limiter
}

type Decision struct {
	Allowed bool
	// RetryAfter é o valor do header Retry-After quando bloquear. 0 = sem recomendação.
	RetryAfter time.Duration
}

// SlotPool limita conversões simultâneas.
//
// Acquire bloqueia até conseguir uma vaga ou até o ctx encerrar. O release
// retornado deve ser chamado exatamente uma vez.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
}
