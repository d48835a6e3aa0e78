// Servidor de conversão falso para validar o gateway localmente.
//
//	go run ./teste-validacao/servidor-conversao
//	UPSTREAM_URL=http://localhost:8081/api/convert go run ./cmd/gateway
//
// Parâmetros de query para forçar os desfechos do gateway:
//
//	?delay=20s  demora antes de responder (gateway devolve 504)
//	?fail=500   responde com esse status e corpo "boom" (gateway devolve 502)
package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"
)

// menor PDF que os leitores aceitam
const tinyPDF = "%PDF-1.4\n1 0 obj<</Type/Catalog/Pages 2 0 R>>endobj\n" +
	"2 0 obj<</Type/Pages/Kids[3 0 R]/Count 1>>endobj\n" +
	"3 0 obj<</Type/Page/Parent 2 0 R/MediaBox[0 0 612 792]>>endobj\n" +
	"trailer<</Root 1 0 R>>\n%%EOF\n"

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	apiKey := os.Getenv("DEMO_API_KEY")
	if apiKey == "" {
		apiKey = "demo-unlimited-key-2024"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/convert", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-KEY") != apiKey {
			http.Error(w, "invalid api key", http.StatusUnauthorized)
			return
		}
		var body struct {
			HTML string `json:"html"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.HTML == "" {
			http.Error(w, "html is required", http.StatusBadRequest)
			return
		}

		if d, err := time.ParseDuration(r.URL.Query().Get("delay")); err == nil && d > 0 {
			select {
			case <-time.After(d):
			case <-r.Context().Done():
				logger.Info("client gave up", "request_id", r.Header.Get("X-Request-Id"))
				return
			}
		}
		if code, err := strconv.Atoi(r.URL.Query().Get("fail")); err == nil && code >= 400 {
			http.Error(w, "boom", code)
			return
		}

		logger.Info("converted", "html_bytes", len(body.HTML), "request_id", r.Header.Get("X-Request-Id"))
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte(tinyPDF))
	})

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}
	logger.Info("fake conversion service listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
