package democonvert

import (
	"math"
	"net/http"
	"time"

	"demo-gateway/gateway/democonvert/application"
	"demo-gateway/gateway/democonvert/domain"
)

// ThrottleOptions liga o token bucket por cliente dentro do Handler.
// Só conversões passam pelo bucket: "check" nunca é barrado.
type ThrottleOptions struct {
	Store               domain.LimiterStore
	RetryAfter          time.Duration
	AddRateLimitHeaders bool
}

type rateInfo interface {
	RPS() float64
	Burst() int
}

// throttle segura rajadas antes da quota diária. Bloqueio não consome quota
// e responde 503 com Retry-After: 429 fica reservado para quota esgotada.
type throttle struct {
	svc     application.ThrottleService
	headers rateInfo
}

func newThrottle(opts ThrottleOptions) *throttle {
	if opts.Store == nil {
		return nil
	}
	t := &throttle{svc: application.ThrottleService{Store: opts.Store, RetryAfter: opts.RetryAfter}}
	if opts.AddRateLimitHeaders {
		t.headers, _ = opts.Store.(rateInfo)
	}
	return t
}

// allow devolve false e o tempo de espera quando o cliente estourou a rajada.
func (t *throttle) allow(w http.ResponseWriter, key domain.Key) (time.Duration, bool) {
	if t == nil {
		return 0, true
	}
	if t.headers != nil {
		w.Header().Set("X-RateLimit-RPS", formatFloat(t.headers.RPS()))
		w.Header().Set("X-RateLimit-Burst", formatInt(t.headers.Burst()))
	}
	dec := t.svc.Decide(key)
	return dec.RetryAfter, dec.Allowed
}

// retryAfterSeconds arredonda para cima; Retry-After: 0 mandaria o cliente voltar na hora.
func retryAfterSeconds(d time.Duration) int {
	return max(1, int(math.Ceil(d.Seconds())))
}
