package democonvert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"demo-gateway/gateway/democonvert/domain"
)

// Gateway é o caso de uso consumido pelo handler (application.GatewayService).
type Gateway interface {
	CheckQuota(ctx context.Context, key domain.Key) (int, error)
	Convert(ctx context.Context, key domain.Key, html string) domain.Outcome
}

type HandlerOptions struct {
	Gateway Gateway
	Stats   domain.StatsStore
	KeyFn   KeyFunc
	Logger  *slog.Logger

	// Throttle com Store nil desliga o limite de rajada.
	Throttle ThrottleOptions

	// DailyLimit só entra na mensagem do 429.
	DailyLimit   int
	PDFFilename  string
	MaxBodyBytes int64
}

type convertBody struct {
	HTML string `json:"html"`
}

// Handler atende POST {"html": ...}.
func Handler(opts HandlerOptions) http.Handler {
	if opts.KeyFn == nil {
		opts.KeyFn = ForwardedForKey
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.DailyLimit <= 0 {
		opts.DailyLimit = domain.DefaultDailyLimit
	}
	if opts.PDFFilename == "" {
		opts.PDFFilename = "fileslap-demo.pdf"
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	thr := newThrottle(opts.Throttle)
	disposition := fmt.Sprintf("attachment; filename=%q", opts.PDFFilename)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		key := opts.KeyFn(r)

		var body convertBody
		r.Body = http.MaxBytesReader(w, r.Body, opts.MaxBodyBytes)
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if body.HTML == "" {
			writeError(w, http.StatusBadRequest, domain.ErrInvalidHTML.Error())
			return
		}

		if body.HTML == domain.CheckSentinel {
			remaining, err := opts.Gateway.CheckQuota(r.Context(), key)
			if err != nil {
				opts.Logger.Error("quota check failed", "client", string(key), "error", err)
				writeError(w, http.StatusServiceUnavailable, msgUnavailable)
				return
			}
			record(r, opts, key, domain.StatsCheck)
			w.Header().Set(headerRemaining, formatInt(remaining))
			writeJSON(w, http.StatusOK, remainingBody{RemainingAttempts: remaining})
			return
		}

		if retry, ok := thr.allow(w, key); !ok {
			record(r, opts, key, domain.StatsThrottled)
			w.Header().Set("Retry-After", formatInt(retryAfterSeconds(retry)))
			remaining, err := opts.Gateway.CheckQuota(r.Context(), key)
			if err != nil {
				writeError(w, http.StatusServiceUnavailable, msgThrottled)
				return
			}
			w.Header().Set(headerRemaining, formatInt(remaining))
			writeJSON(w, http.StatusServiceUnavailable, errorBody{
				Error:             msgThrottled,
				RemainingAttempts: &remaining,
			})
			return
		}

		out := opts.Gateway.Convert(r.Context(), key, body.HTML)
		record(r, opts, key, out.Kind.String())

		switch out.Kind {
		case domain.OutcomeSuccess:
			w.Header().Set("Content-Type", "application/pdf")
			w.Header().Set("Content-Disposition", disposition)
			w.Header().Set(headerRemaining, formatInt(out.Remaining))
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(out.PDF)
		case domain.OutcomeInvalid:
			writeError(w, http.StatusBadRequest, domain.ErrInvalidHTML.Error())
		case domain.OutcomeDenied:
			zero := 0
			w.Header().Set(headerRemaining, "0")
			writeJSON(w, http.StatusTooManyRequests, errorBody{
				Error:             limitMessage(opts.DailyLimit),
				RemainingAttempts: &zero,
			})
		case domain.OutcomeUpstreamError:
			writeError(w, http.StatusBadGateway, fmt.Sprintf("API error: %d - %s", out.UpstreamStatus, out.Detail))
		case domain.OutcomeTimeout:
			writeError(w, http.StatusGatewayTimeout, msgTimeout)
		default:
			writeError(w, http.StatusServiceUnavailable, msgUnavailable)
		}
	})
}

// record é best-effort: erro de stats só vira log.
func record(r *http.Request, opts HandlerOptions, key domain.Key, outcome string) {
	if opts.Stats == nil {
		return
	}
	err := opts.Stats.Record(context.WithoutCancel(r.Context()), domain.StatsEvent{
		Key:     key,
		Outcome: outcome,
		Method:  r.Method,
		Path:    r.URL.Path,
		At:      time.Now(),
	})
	if err != nil {
		opts.Logger.Warn("stats record failed", "error", err)
	}
}
