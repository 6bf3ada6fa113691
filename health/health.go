// Package health serves the state of the supervised process and the
// Prometheus metrics over HTTP.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/buildkite/procctl/logger"
	"github.com/buildkite/procctl/process"
	"github.com/buildkite/procctl/version"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type processStatus struct {
	Pid        int    `json:"pid"`
	State      string `json:"state"`
	ExitStatus string `json:"exit_status,omitempty"`
	ExitCode   *int   `json:"exit_code,omitempty"`
	StartedAt  string `json:"started_at,omitempty"`
	FinishedAt string `json:"finished_at,omitempty"`
}

type healthResponse struct {
	Response struct {
		Process *processStatus `json:"process,omitempty"`
	} `json:"data"`
}

// Server answers /status and /metrics.
type Server struct {
	logger logger.Logger

	mu      sync.Mutex
	process *processStatus
}

func NewServer(l logger.Logger) *Server {
	return &Server{logger: l}
}

// ProcessStarted records a newly started process.
func (s *Server) ProcessStarted(pid int, startedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.process = &processStatus{
		Pid:       pid,
		State:     "running",
		StartedAt: startedAt.UTC().Format(time.RFC3339),
	}
}

// ProcessChanged records the status a probe or wait reported.
func (s *Server) ProcessChanged(pid int, status process.ExitStatus, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.process == nil || s.process.Pid != pid {
		s.process = &processStatus{Pid: pid}
	}
	s.process.State = status.Reason.String()
	s.process.ExitStatus = status.String()
	s.process.ExitCode = nil
	if code, ok := status.Code(); ok {
		s.process.ExitCode = &code
	}
	if status.Reason != process.ReasonStopped && status.Reason != process.ReasonContinued {
		s.process.FinishedAt = at.UTC().Format(time.RFC3339)
	}
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(
		requestLogger(s.logger),
		middleware.Recoverer,
		middleware.SetHeader("Server", version.UserAgent()),
	)
	r.Get("/status", s.statusHandler)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// ListenAndServe serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("Serving status and metrics on %s", ln.Addr())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	var resp healthResponse

	s.mu.Lock()
	if s.process != nil {
		p := *s.process
		resp.Response.Process = &p
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("Status: couldn't encode response body: %v", err)
	}
}

func requestLogger(l logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t := time.Now()
			next.ServeHTTP(w, r)
			l.Debug("Status server:\t%s\t%s\t%s", r.Method, r.URL.Path, time.Since(t))
		})
	}
}
