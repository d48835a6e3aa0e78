package democonvert

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"demo-gateway/gateway/democonvert/application"
	"demo-gateway/gateway/democonvert/domain"
	"demo-gateway/gateway/democonvert/infra"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type upstream struct {
	srv   *httptest.Server
	calls atomic.Int32
}

// newUpstream sobe um serviço de conversão falso; fn decide a resposta.
func newUpstream(t *testing.T, fn http.HandlerFunc) *upstream {
	t.Helper()
	u := &upstream{}
	u.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.calls.Add(1)
		fn(w, r)
	}))
	t.Cleanup(u.srv.Close)
	return u
}

func pdfUpstream(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/pdf")
	_, _ = io.WriteString(w, "%PDF-1.4 demo")
}

type harness struct {
	handler http.Handler
	stats   *infra.MemoryStatsStore
}

func newHarness(t *testing.T, upstreamURL string, timeout time.Duration) harness {
	t.Helper()
	stats := infra.NewMemoryStatsStore(infra.WithTrackKeys(true))
	svc := application.GatewayService{
		Quota:     infra.NewMemoryQuotaStore(),
		Converter: infra.NewHTTPConverter(upstreamURL, "test-key"),
		Timeout:   timeout,
	}
	return harness{
		handler: Handler(HandlerOptions{Gateway: svc, Stats: stats}),
		stats:   stats,
	}
}

func (h harness) post(t *testing.T, client, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "http://example/api/demo-convert", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	if client != "" {
		r.Header.Set("X-Forwarded-For", client)
	}
	w := httptest.NewRecorder()
	h.handler.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHandler_DailyQuotaScenario(t *testing.T) {
	up := newUpstream(t, pdfUpstream)
	h := newHarness(t, up.srv.URL, time.Second)

	w := h.post(t, "1.2.3.4", `{"html":"check"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "3", w.Header().Get("X-Remaining-Attempts"))
	assert.Equal(t, map[string]any{"remainingAttempts": float64(3)}, decode(t, w))

	for _, want := range []string{"2", "1", "0"} {
		w := h.post(t, "1.2.3.4", `{"html":"<h1>x</h1>"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
		assert.Equal(t, `attachment; filename="fileslap-demo.pdf"`, w.Header().Get("Content-Disposition"))
		assert.Equal(t, want, w.Header().Get("X-Remaining-Attempts"))
		assert.Equal(t, "%PDF-1.4 demo", w.Body.String())
	}

	w = h.post(t, "1.2.3.4", `{"html":"<h1>x</h1>"}`)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(0), body["remainingAttempts"])
	assert.Contains(t, body["error"], "all 3 free attempts")

	assert.Equal(t, int32(3), up.calls.Load(), "denied attempt must not reach upstream")

	w = h.post(t, "1.2.3.4", `{"html":"check"}`)
	assert.Equal(t, "0", w.Header().Get("X-Remaining-Attempts"))

	// outro cliente não é afetado
	w = h.post(t, "5.6.7.8", `{"html":"check"}`)
	assert.Equal(t, "3", w.Header().Get("X-Remaining-Attempts"))

	assert.Equal(t, infra.Counters{"success": 3, "denied": 1, "check": 2}, h.stats.ByKey()["1.2.3.4"])
}

func TestHandler_CheckDoesNotCallUpstream(t *testing.T) {
	up := newUpstream(t, pdfUpstream)
	h := newHarness(t, up.srv.URL, time.Second)

	for i := 0; i < 5; i++ {
		w := h.post(t, "", `{"html":"check"}`)
		require.Equal(t, http.StatusOK, w.Code)
	}
	assert.Equal(t, int32(0), up.calls.Load())
}

func TestHandler_ValidationErrors(t *testing.T) {
	up := newUpstream(t, pdfUpstream)
	h := newHarness(t, up.srv.URL, time.Second)

	cases := map[string]string{
		"missing html": `{}`,
		"empty html":   `{"html":""}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := h.post(t, "1.2.3.4", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, map[string]any{"error": "html is required"}, decode(t, w))
		})
	}

	w := h.post(t, "1.2.3.4", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, int32(0), up.calls.Load())
}

func TestHandler_RejectsNonPost(t *testing.T) {
	h := newHarness(t, "http://127.0.0.1:1", time.Second)

	r := httptest.NewRequest(http.MethodGet, "http://example/api/demo-convert", nil)
	w := httptest.NewRecorder()
	h.handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, http.MethodPost, w.Header().Get("Allow"))
}

func TestHandler_RejectsOversizedBody(t *testing.T) {
	svc := application.GatewayService{Quota: infra.NewMemoryQuotaStore(), Converter: infra.NewHTTPConverter("http://127.0.0.1:1", "k")}
	h := Handler(HandlerOptions{Gateway: svc, MaxBodyBytes: 16})

	r := httptest.NewRequest(http.MethodPost, "http://example/", strings.NewReader(`{"html":"`+strings.Repeat("x", 64)+`"}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestHandler_UpstreamErrorMapsTo502(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, "boom")
	})
	h := newHarness(t, up.srv.URL, time.Second)

	w := h.post(t, "1.2.3.4", `{"html":"<p>x</p>"}`)
	require.Equal(t, http.StatusBadGateway, w.Code)
	msg, _ := decode(t, w)["error"].(string)
	assert.Contains(t, msg, "500")
	assert.Contains(t, msg, "boom")
	assert.Equal(t, "API error: 500 - boom", msg)

	w = h.post(t, "1.2.3.4", `{"html":"check"}`)
	assert.Equal(t, "3", w.Header().Get("X-Remaining-Attempts"))
}

func TestHandler_TimeoutMapsTo504WithinBudget(t *testing.T) {
	release := make(chan struct{})
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	t.Cleanup(func() { close(release) })
	h := newHarness(t, up.srv.URL, 50*time.Millisecond)

	start := time.Now()
	w := h.post(t, "1.2.3.4", `{"html":"<p>x</p>"}`)
	elapsed := time.Since(start)

	require.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Equal(t, "Conversion service is taking too long. Please try again.", decode(t, w)["error"])
	assert.Less(t, elapsed, time.Second)

	w = h.post(t, "1.2.3.4", `{"html":"check"}`)
	assert.Equal(t, "3", w.Header().Get("X-Remaining-Attempts"))
}

func TestHandler_UnreachableUpstreamMapsTo503(t *testing.T) {
	up := newUpstream(t, pdfUpstream)
	url := up.srv.URL
	up.srv.Close()
	h := newHarness(t, url, time.Second)

	w := h.post(t, "1.2.3.4", `{"html":"<p>x</p>"}`)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "Conversion service unavailable. Please try again later.", decode(t, w)["error"])

	w = h.post(t, "1.2.3.4", `{"html":"check"}`)
	assert.Equal(t, "3", w.Header().Get("X-Remaining-Attempts"))
}

type stubGateway struct {
	out       domain.Outcome
	remaining int
}

func (s stubGateway) CheckQuota(context.Context, domain.Key) (int, error) { return s.remaining, nil }
func (s stubGateway) Convert(context.Context, domain.Key, string) domain.Outcome {
	return s.out
}

func TestHandler_LimitMessageFollowsConfiguredLimit(t *testing.T) {
	h := Handler(HandlerOptions{
		Gateway:     stubGateway{out: domain.Outcome{Kind: domain.OutcomeDenied}},
		DailyLimit:  5,
		PDFFilename: "custom.pdf",
	})

	r := httptest.NewRequest(http.MethodPost, "http://example/", strings.NewReader(`{"html":"<p>x</p>"}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, decode(t, w)["error"], "all 5 free attempts")
}
