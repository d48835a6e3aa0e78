package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"demo-gateway/gateway/democonvert/domain"
)

const (
	DefaultAPIKeyHeader = "X-API-KEY"
	// DefaultAPIKey é a credencial compartilhada da demo quando DEMO_API_KEY não está definida.
	DefaultAPIKey = "demo-unlimited-key-2024"

	defaultMaxPDFBytes   = 50 << 20
	defaultMaxErrorBytes = 64 << 10
)

// HTTPConverter fala com o serviço externo de conversão usando uma identidade
// fixa de demo (não a credencial de quem chamou).
type HTTPConverter struct {
	url           string
	apiKey        string
	apiKeyHeader  string
	client        *http.Client
	maxPDFBytes   int64
	maxErrorBytes int64
}

var _ domain.Converter = (*HTTPConverter)(nil)

type ConverterOption func(*HTTPConverter)

func WithHTTPClient(c *http.Client) ConverterOption {
	return func(h *HTTPConverter) { h.client = c }
}

func WithAPIKeyHeader(name string) ConverterOption {
	return func(h *HTTPConverter) {
		if name = strings.TrimSpace(name); name != "" {
			h.apiKeyHeader = name
		}
	}
}

// WithMaxPDFBytes limita o tamanho do PDF aceito do upstream.
func WithMaxPDFBytes(n int64) ConverterOption {
	return func(h *HTTPConverter) { h.maxPDFBytes = n }
}

func NewHTTPConverter(url, apiKey string, opts ...ConverterOption) *HTTPConverter {
	if apiKey == "" {
		apiKey = DefaultAPIKey
	}
	h := &HTTPConverter{
		url:           url,
		apiKey:        apiKey,
		apiKeyHeader:  DefaultAPIKeyHeader,
		client:        http.DefaultClient,
		maxPDFBytes:   defaultMaxPDFBytes,
		maxErrorBytes: defaultMaxErrorBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type convertPayload struct {
	HTML string `json:"html"`
}

// Convert envia {"html": ...} e devolve o PDF. Status não-2xx vira *domain.UpstreamError.
// Sem retry: quem decide o que fazer com a falha é o gateway.
func (h *HTTPConverter) Convert(ctx context.Context, req domain.ConversionRequest) ([]byte, error) {
	body, err := json.Marshal(convertPayload{HTML: req.HTML})
	if err != nil {
		return nil, fmt.Errorf("marshal convert payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build convert request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(h.apiKeyHeader, h.apiKey)
	if req.RequestID != "" {
		httpReq.Header.Set("X-Request-Id", req.RequestID)
	}

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("convert request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, h.maxErrorBytes))
		return nil, &domain.UpstreamError{Status: resp.StatusCode, Body: string(detail)}
	}

	pdf, err := io.ReadAll(io.LimitReader(resp.Body, h.maxPDFBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read pdf body: %w", err)
	}
	if int64(len(pdf)) > h.maxPDFBytes {
		return nil, fmt.Errorf("pdf exceeds %d bytes", h.maxPDFBytes)
	}
	return pdf, nil
}
