package service

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/ethereum-optimism/infra/op-orchestrator/metrics"
)

// NewRouter serves health, results and metrics endpoints.
func NewRouter(results *Results) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/results", results.handleLast).Methods(http.MethodGet)
	r.HandleFunc("/results/{suite}", results.handleSuite).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
	})
	return c.Handler(r)
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	log.Debug("Received health check request", "path", r.URL.Path)
	w.Write([]byte("OK")) //nolint:errcheck
}

func (res *Results) handleLast(w http.ResponseWriter, _ *http.Request) {
	last := res.Last()
	if last == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no completed run"})
		return
	}
	writeJSON(w, http.StatusOK, last)
}

func (res *Results) handleSuite(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["suite"]
	suite, ok := res.Suite(name)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown suite " + name})
		return
	}
	writeJSON(w, http.StatusOK, suite)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Error("failed to marshal response", "err", err)
		metrics.RecordErrorDetails("service.marshal", err)
		code = http.StatusInternalServerError
		body = []byte(`{"error":"internal server error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(body); err != nil {
		log.Error("failed to write response", "err", err)
	}
}

// Server wraps one http.Server started in the background.
type Server struct {
	ctx    context.Context
	server *http.Server
}

func (s *Server) Start(ctx context.Context, addr string, handler http.Handler) error {
	s.ctx = ctx
	s.server = &http.Server{
		Handler: handler,
		Addr:    addr,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown() error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(s.ctx)
}
