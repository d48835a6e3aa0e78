package democonvert

import (
	"net/http"
	"time"

	"demo-gateway/gateway/democonvert/application"
	"demo-gateway/gateway/democonvert/domain"
)

type ConcurrencyOptions struct {
	// Pool nil desliga o limite (ex: infra.NewChanPool(max)).
	Pool           domain.SlotPool
	RejectStatus   int
	AcquireTimeout time.Duration
}

// ConcurrencyMiddleware limita quantas conversões ficam penduradas no upstream
// ao mesmo tempo. Sem vaga dentro do AcquireTimeout: 503, sem tocar na quota.
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Pool == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}

	svc := application.ConcurrencyService{
		Pool:           opts.Pool,
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, ok := svc.Acquire(r.Context())
			if !ok {
				writeError(w, opts.RejectStatus, msgBusy)
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
