package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// CheckSentinel é o valor de html que só consulta a quota, sem converter.
const CheckSentinel = "check"

// DefaultUpstreamTimeout é o tempo máximo de espera pelo serviço de conversão.
const DefaultUpstreamTimeout = 15 * time.Second

var (
	ErrInvalidHTML         = errors.New("html is required")
	ErrQuotaExceeded       = errors.New("daily demo limit reached")
	ErrUpstreamTimeout     = errors.New("conversion service timeout")
	ErrUpstreamUnavailable = errors.New("conversion service unavailable")
)

// UpstreamError é uma resposta não-2xx do serviço de conversão.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("API error: %d - %s", e.Status, e.Body)
}

type ConversionRequest struct {
	HTML      string
	RequestID string
}

// Converter é o serviço externo que transforma HTML em PDF.
//
// A implementação deve respeitar ctx: quando o gateway desiste (timeout), a
// chamada é cancelada e o resultado descartado.
type Converter interface {
	Convert(ctx context.Context, req ConversionRequest) ([]byte, error)
}

type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeInvalid
	OutcomeDenied
	OutcomeUpstreamError
	OutcomeTimeout
	OutcomeUnavailable
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeInvalid:
		return "invalid"
	case OutcomeDenied:
		return "denied"
	case OutcomeUpstreamError:
		return "upstream_error"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Outcome é o resultado de uma chamada a convert. Não é persistido.
type Outcome struct {
	Kind      OutcomeKind
	PDF       []byte
	Remaining int

	// UpstreamStatus/Detail só valem para OutcomeUpstreamError.
	UpstreamStatus int
	Detail         string

	Err      error
	Duration time.Duration
}

// Allowed indica se a quota deixou a chamada seguir até o upstream.
func (o Outcome) Allowed() bool {
	return o.Kind != OutcomeDenied && o.Kind != OutcomeInvalid
}
