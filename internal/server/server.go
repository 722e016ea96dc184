package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/23skdu/longbow-bodkin/internal/logger"
	"github.com/23skdu/longbow-bodkin/internal/metrics"
	"github.com/23skdu/longbow-bodkin/internal/translator"
)

const Version = "0.1.0"

// Server exposes translation over HTTP: a JSON endpoint, a WebSocket
// streaming endpoint, health, and Prometheus metrics.
type Server struct {
	tr        *translator.Translator
	mux       *http.ServeMux
	startTime time.Time
}

func New(tr *translator.Translator) *Server {
	s := &Server{
		tr:        tr,
		mux:       http.NewServeMux(),
		startTime: time.Now(),
	}
	s.mux.HandleFunc("/translate", s.handleTranslate)
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/ws", s.handleWS)
	s.mux.Handle("/metrics", promhttp.Handler())
	return s
}

// Handler returns the routing handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.mux }

// ListenAndServe serves until ctx is cancelled, then drains with a
// short shutdown grace period.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info("server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

type translateRequest struct {
	Text string `json:"text"`
}

type translateResponse struct {
	Source    string                 `json:"source"`
	Target    string                 `json:"target"`
	Score     float32                `json:"score"`
	Alignment [][]float32            `json:"alignment,omitempty"`
	NBest     []translator.Candidate `json:"n_best,omitempty"`
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	metrics.TranslateRequests.WithLabelValues("http").Inc()

	var req translateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}
	if req.Text == "" {
		http.Error(w, "missing text", http.StatusBadRequest)
		return
	}

	tr, err := s.tr.Translate(r.Context(), req.Text)
	if err != nil {
		logger.Log.Error("translate failed", "error", err)
		http.Error(w, "translation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(translateResponse{
		Source:    tr.Source,
		Target:    tr.Target,
		Score:     tr.Score,
		Alignment: tr.Alignment,
		NBest:     tr.NBest,
	})
}

type healthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Uptime    string    `json:"uptime"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(healthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   Version,
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
	})
}
