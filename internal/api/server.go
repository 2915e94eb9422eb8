package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"bandwidth-guard/internal/api/handlers"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

// RouterOptions selects what the router serves. Nil fields leave their
// routes out; /health is always present.
type RouterOptions struct {
	Handlers *handlers.Handlers
	Metrics  http.Handler
}

func NewRouter(opts RouterOptions) *mux.Router {
	router := mux.NewRouter()
	router.Use(corsMiddleware)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods("GET", "OPTIONS")

	if opts.Metrics != nil {
		router.Handle("/metrics", opts.Metrics).Methods("GET")
	}

	if h := opts.Handlers; h != nil {
		api := router.PathPrefix("/api/v1").Subrouter()

		api.HandleFunc("/rates/latest", h.GetLatestRate).Methods("GET", "OPTIONS")
		api.HandleFunc("/rates", h.GetRates).Methods("GET", "OPTIONS")
		api.HandleFunc("/alerts", h.GetAlerts).Methods("GET", "OPTIONS")
		api.HandleFunc("/thresholds", h.GetThresholds).Methods("GET", "OPTIONS")
		api.HandleFunc("/stream", h.Stream).Methods("GET")
	}

	return router
}

// Server is an HTTP listener with graceful shutdown
type Server struct {
	name     string
	srv      *http.Server
	listener net.Listener
	logger   *logrus.Logger
}

func NewServer(name, addr string, handler http.Handler, logger *logrus.Logger) *Server {
	return &Server{
		name: name,
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
			ReadHeaderTimeout: 15 * time.Second,
		},
		logger: logger,
	}
}

// Listen binds the address so that a busy port fails at startup
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("%s server failed to listen on %s: %w", s.name, s.srv.Addr, err)
	}
	s.listener = ln
	return nil
}

// Addr returns the bound address once Listen succeeded
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.srv.Addr
	}
	return s.listener.Addr().String()
}

// Serve handles requests until ctx is cancelled, then shuts down gracefully
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	s.logger.Infof("Starting %s server on %s", s.name, s.Addr())

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Infof("Shutting down %s server...", s.name)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
