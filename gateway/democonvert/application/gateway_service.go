package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"demo-gateway/gateway/democonvert/domain"
)

// GatewayService aplica a quota diária e chama o conversor externo sob um
// tempo máximo. Não sabe nada de HTTP: devolve um domain.Outcome.
type GatewayService struct {
	Quota     domain.QuotaStore
	Converter domain.Converter
	Timeout   time.Duration
	Logger    *slog.Logger
}

type convertResult struct {
	pdf []byte
	err error
}

// CheckQuota devolve quantas conversões o cliente ainda tem hoje. Sem efeitos colaterais.
func (s GatewayService) CheckQuota(ctx context.Context, key domain.Key) (int, error) {
	return s.Quota.Remaining(ctx, key)
}

// Convert reserva uma vaga de quota, corre a conversão contra o timeout e
// acerta a quota conforme o desfecho: só sucesso consome quota.
func (s GatewayService) Convert(ctx context.Context, key domain.Key, html string) domain.Outcome {
	start := time.Now()
	log := s.logger().With("client", string(key), "request_id", domain.RequestIDFrom(ctx))

	if html == "" || html == domain.CheckSentinel {
		return domain.Outcome{Kind: domain.OutcomeInvalid, Err: domain.ErrInvalidHTML}
	}

	res, err := s.Quota.Reserve(ctx, key)
	if errors.Is(err, domain.ErrQuotaExceeded) {
		log.Info("demo quota exhausted")
		return domain.Outcome{Kind: domain.OutcomeDenied, Err: err, Duration: time.Since(start)}
	}
	if err != nil {
		log.Error("quota reserve failed", "error", err)
		return domain.Outcome{Kind: domain.OutcomeUnavailable, Err: err, Duration: time.Since(start)}
	}

	log.Info("calling conversion service", "remaining_before", res.Remaining+1)

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = domain.DefaultUpstreamTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// buffer 1: quem perder a corrida não fica preso no envio
	done := make(chan convertResult, 1)
	go func() {
		pdf, err := s.Converter.Convert(callCtx, domain.ConversionRequest{
			HTML:      html,
			RequestID: domain.RequestIDFrom(ctx),
		})
		done <- convertResult{pdf: pdf, err: err}
	}()

	var r convertResult
	select {
	case r = <-done:
	case <-callCtx.Done():
		r = convertResult{err: callCtx.Err()}
	}

	if r.err != nil {
		s.rollback(ctx, res, log)
		out := classify(ctx, r.err)
		out.Remaining = res.Remaining + 1
		out.Duration = time.Since(start)
		log.Warn("conversion failed",
			"outcome", out.Kind.String(),
			"upstream_status", out.UpstreamStatus,
			"duration_ms", out.Duration.Milliseconds(),
			"error", r.err,
		)
		return out
	}

	remaining, err := s.Quota.Commit(context.WithoutCancel(ctx), res)
	if err != nil {
		// o PDF já existe; a falha de contabilidade não deve ser cobrada do cliente
		log.Error("quota commit failed", "error", err)
		remaining = res.Remaining
	}

	out := domain.Outcome{
		Kind:      domain.OutcomeSuccess,
		PDF:       r.pdf,
		Remaining: remaining,
		Duration:  time.Since(start),
	}
	log.Info("pdf converted",
		"bytes", len(r.pdf),
		"remaining", remaining,
		"duration_ms", out.Duration.Milliseconds(),
	)
	return out
}

func (s GatewayService) rollback(ctx context.Context, res domain.Reservation, log *slog.Logger) {
	if err := s.Quota.Rollback(context.WithoutCancel(ctx), res); err != nil {
		log.Error("quota rollback failed", "error", err)
	}
}

func (s GatewayService) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// classify traduz a falha do upstream para um desfecho. ctx é o da requisição:
// se foi ele que encerrou (cliente foi embora), não é timeout do upstream.
func classify(ctx context.Context, err error) domain.Outcome {
	var upErr *domain.UpstreamError
	switch {
	case errors.As(err, &upErr):
		return domain.Outcome{
			Kind:           domain.OutcomeUpstreamError,
			UpstreamStatus: upErr.Status,
			Detail:         upErr.Body,
			Err:            err,
		}
	case ctx.Err() != nil:
		return domain.Outcome{Kind: domain.OutcomeUnavailable, Err: errors.Join(domain.ErrUpstreamUnavailable, ctx.Err())}
	case errors.Is(err, context.DeadlineExceeded):
		return domain.Outcome{Kind: domain.OutcomeTimeout, Err: errors.Join(domain.ErrUpstreamTimeout, err)}
	default:
		return domain.Outcome{Kind: domain.OutcomeUnavailable, Err: errors.Join(domain.ErrUpstreamUnavailable, err)}
	}
}
