package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildHandler_RoutesAndMiddlewares(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "env-key", r.Header.Get("X-API-KEY"))
		_, _ = io.WriteString(w, "%PDF")
	}))
	defer up.Close()

	cfg, err := readConfig(nil, envFrom(map[string]string{
		"UPSTREAM_URL":        up.URL,
		"DEMO_API_KEY":        "env-key",
		"CANONICAL_HOST_FROM": "fileslap.com",
		"CANONICAL_HOST_TO":   "www.fileslap.com",
	}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h, err := buildHandler(ctx, cfg, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://www.fileslap.com/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://fileslap.com/docs", nil))
	assert.Equal(t, http.StatusMovedPermanently, w.Code)

	r := httptest.NewRequest(http.MethodPost, "http://www.fileslap.com"+demoConvertPath, strings.NewReader(`{"html":"<h1>x</h1>"}`))
	r.Header.Set("X-Forwarded-For", "1.2.3.4")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-Remaining-Attempts"))
	assert.Equal(t, "%PDF", w.Body.String())
}

func TestNewLogger_Levels(t *testing.T) {
	var sb strings.Builder
	logger := newLogger(&sb, "warn", "text")
	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, sb.String(), "hidden")
	assert.Contains(t, sb.String(), "shown")
}

func TestBuildHandler_DefaultsNeverThrottleCheck(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "%PDF")
	}))
	defer up.Close()

	cfg, err := readConfig(nil, envFrom(map[string]string{"UPSTREAM_URL": up.URL}))
	require.NoError(t, err)
	require.True(t, cfg.RateEnabled)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h, err := buildHandler(ctx, cfg, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	post := func(html string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, demoConvertPath, strings.NewReader(`{"html":"`+html+`"}`))
		r.Header.Set("X-Forwarded-For", "9.9.9.9")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w
	}

	for i := 0; i < 7; i++ {
		w := post("check")
		require.Equal(t, http.StatusOK, w.Code, "check %d", i+1)
		assert.Equal(t, "3", w.Header().Get("X-Remaining-Attempts"))
	}

	for _, want := range []string{"2", "1", "0"} {
		w := post("<p>x</p>")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, want, w.Header().Get("X-Remaining-Attempts"))
	}

	w := post("<p>x</p>")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"error":"Daily demo limit reached. You've used all 3 free attempts for today. Get your own API key to continue converting PDFs!","remainingAttempts":0}`, w.Body.String())

	w = post("check")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-Remaining-Attempts"))
}
