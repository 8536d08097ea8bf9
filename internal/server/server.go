// Package server exposes the warehouse queries as a JSON HTTP API.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/KaramelBytes/munidata-cli/internal/analysis"
	"github.com/KaramelBytes/munidata-cli/internal/chart"
	"github.com/KaramelBytes/munidata-cli/internal/reshape"
	"github.com/KaramelBytes/munidata-cli/internal/utils"
	"github.com/KaramelBytes/munidata-cli/internal/warehouse"
	"github.com/gorilla/mux"
)

// Server serves read-only queries over a Store. Handlers share only the
// Store configuration, so requests may run concurrently.
type Server struct {
	store  *warehouse.Store
	method analysis.Method
	log    *utils.Logger
	router *mux.Router
}

// New builds the router. method is the default correlation method.
func New(store *warehouse.Store, method analysis.Method, log *utils.Logger) *Server {
	if log == nil {
		log = utils.Log()
	}
	s := &Server{store: store, method: method, log: log, router: mux.NewRouter()}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(s.logRequests, corsMiddleware)

	r.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/areas", s.handleAreas).Methods("GET", "OPTIONS")
	api.HandleFunc("/areas/{area}/variables", s.handleVariables).Methods("GET", "OPTIONS")
	api.HandleFunc("/areas/{area}/variables/{variable}/series", s.handleSeries).Methods("GET", "OPTIONS")
	api.HandleFunc("/areas/{area}/variables/{variable}/stats", s.handleStats).Methods("GET", "OPTIONS")
	api.HandleFunc("/areas/{area}/variables/{variable}/chart.png", s.handleChart).Methods("GET", "OPTIONS")
	api.HandleFunc("/years", s.handleYears).Methods("GET", "OPTIONS")
	api.HandleFunc("/municipalities", s.handleMunicipalities).Methods("GET", "OPTIONS")
	api.HandleFunc("/correlation", s.handleCorrelation).Methods("GET", "OPTIONS")
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.Info("listening on %s (data dir %s)", addr, s.store.Root)
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("%s %s -> %d (%v)", r.Method, r.URL.RequestURI(), rec.status, time.Since(start))
	})
}

// writeJSON encodes before writing the header so an unencodable value
// becomes a 500 instead of a truncated 200.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		utils.Log().Error("encode response: %v", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"encode response"}` + "\n"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= 500 {
		s.log.Error("%v", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// badRequest marks errors caused by malformed query parameters.
type badRequest struct{ error }

func (b badRequest) Unwrap() error { return b.error }

func statusFor(err error) int {
	var br badRequest
	switch {
	case errors.As(err, &br),
		errors.Is(err, warehouse.ErrInvalidName),
		errors.Is(err, analysis.ErrTooFewVariables):
		return http.StatusBadRequest
	case warehouse.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, reshape.ErrAmbiguousKey),
		errors.Is(err, reshape.ErrMissingKey),
		errors.Is(err, reshape.ErrNoYearColumns),
		errors.Is(err, reshape.ErrDuplicateKey),
		errors.Is(err, chart.ErrNoData):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
