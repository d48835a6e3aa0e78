package democonvert

import (
	"encoding/json"
	"net/http"
	"strconv"
)

const (
	headerRemaining = "X-Remaining-Attempts"

	msgTimeout     = "Conversion service is taking too long. Please try again."
	msgUnavailable = "Conversion service unavailable. Please try again later."
	msgThrottled   = "Too many requests. Please slow down."
	msgBusy        = "Demo is busy right now. Please try again in a moment."
)

type errorBody struct {
	Error             string `json:"error"`
	RemainingAttempts *int   `json:"remainingAttempts,omitempty"`
}

type remainingBody struct {
	RemainingAttempts int `json:"remainingAttempts"`
}

func limitMessage(limit int) string {
	return "Daily demo limit reached. You've used all " + strconv.Itoa(limit) +
		" free attempts for today. Get your own API key to continue converting PDFs!"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

func formatInt(v int) string { return strconv.Itoa(v) }

func formatFloat(v float64) string {
	// sem notação científica para valores comuns
	return strconv.FormatFloat(v, 'f', -1, 64)
}
