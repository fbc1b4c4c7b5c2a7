// Package webhook exposes the HTTP ingestion boundary: the endpoint the
// indexing provider posts enhanced-transaction batches to, plus a client
// for provisioning those webhooks.
package webhook

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"pump-signals/internal/classifier"
	"pump-signals/internal/pipeline"
)

// maxBodyBytes bounds a single webhook delivery.
const maxBodyBytes = 10 << 20

// Server handles webhook deliveries and the health probe.
type Server struct {
	processor  *pipeline.Processor
	authSecret string
	mode       string
	log        zerolog.Logger
}

func NewServer(processor *pipeline.Processor, authSecret, mode string, log zerolog.Logger) *Server {
	return &Server{
		processor:  processor,
		authSecret: authSecret,
		mode:       mode,
		log:        log.With().Str("component", "webhook_server").Logger(),
	}
}

// Handler returns the route table for the ingestion surface.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhook", s.handleWebhook)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

// payload is the provider's delivery shape: either a bare JSON array of
// transactions or an object wrapping one.
type payload struct {
	Transactions []classifier.RawTransaction `json:"transactions"`
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if s.authSecret != "" && r.Header.Get("Authorization") != s.authSecret {
		s.log.Warn().Str("remote", r.RemoteAddr).Msg("webhook auth rejected")
		writeJSON(w, http.StatusUnauthorized, map[string]string{"status": "unauthorized"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "message": "reading body"})
		return
	}

	txs, err := decodeTransactions(body)
	if err != nil {
		s.log.Warn().Err(err).Msg("malformed webhook payload")
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "message": "malformed payload"})
		return
	}

	sum := s.processor.ProcessBatch(r.Context(), txs)

	writeJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
		pipeline.Summary
	}{Status: "ok", Summary: sum})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"mode":   s.mode,
	})
}

// decodeTransactions accepts both delivery shapes.
func decodeTransactions(body []byte) ([]classifier.RawTransaction, error) {
	var list []classifier.RawTransaction
	if err := json.Unmarshal(body, &list); err == nil {
		return list, nil
	}

	var wrapped payload
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Transactions, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
