// Package admin serves the status of a foreground run over HTTP.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/slok/go-http-metrics/middleware/std"

	"github.com/onflow/localnet/module/component"
	"github.com/onflow/localnet/module/irrecoverable"
	"github.com/onflow/localnet/module/metrics"
)

// Routes of the admin server.
const (
	PathStatus     = "/status"
	PathNodeLog    = "/logs/{node}"
	PathRunCommand = "/admin/run_command"
)

// Names of the commands the REST routes dispatch to.
const (
	CommandStatus  = "status"
	CommandTailLog = "tail-log"
)

const shutdownTimeout = 5 * time.Second

// runCommandRequest is the body of PathRunCommand.
type runCommandRequest struct {
	CommandName string      `json:"commandName"`
	Data        interface{} `json:"data"`
}

type runCommandResponse struct {
	Output interface{} `json:"output,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// Server serves registered admin commands, the run status and node logs, and orchestrator metrics.
type Server struct {
	*component.ComponentManager
	log      zerolog.Logger
	listener net.Listener
	server   *http.Server

	mu       sync.RWMutex
	commands map[string]Command
}

var _ component.Component = (*Server)(nil)

// NewServer listens on addr. The server starts serving once started as a component. Request metrics
// are recorded in the registry, which is also served on the metrics route. A nil registry disables both.
func NewServer(log zerolog.Logger, addr string, registry *prometheus.Registry) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("could not listen on %s: %w", addr, err)
	}

	s := &Server{
		log:      log.With().Str("component", "admin").Logger(),
		listener: listener,
		commands: make(map[string]Command),
	}

	instrument := func(_ string, handler http.Handler) http.Handler { return handler }
	if registry != nil {
		mdlw := metrics.NewHTTPMiddleware(registry, "admin")
		instrument = func(route string, handler http.Handler) http.Handler {
			return std.Handler(route, mdlw, handler)
		}
	}

	router := mux.NewRouter().StrictSlash(true)
	router.Use(loggingMiddleware(s.log))
	router.Methods(http.MethodGet).Path(PathStatus).Handler(instrument(PathStatus, http.HandlerFunc(s.status)))
	router.Methods(http.MethodGet).Path(PathNodeLog).Handler(instrument(PathNodeLog, http.HandlerFunc(s.nodeLog)))
	router.Methods(http.MethodPost).Path(PathRunCommand).Handler(instrument(PathRunCommand, http.HandlerFunc(s.runCommand)))
	if registry != nil {
		router.Methods(http.MethodGet).Path(metrics.Endpoint).Handler(metrics.Handler(registry))
	}

	s.server = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.ComponentManager = component.NewComponentManagerBuilder().
		AddWorker(s.serve).
		Build()
	return s, nil
}

// Addr is the address the server listens on.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// RegisterCommand makes a command available under the given name.
func (s *Server) RegisterCommand(name string, command Command) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands[name] = command
}

func (s *Server) serve(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	errs := make(chan error, 1)
	go func() {
		errs <- s.server.Serve(s.listener)
	}()
	s.log.Info().Str("address", s.Addr()).Msg("admin server started")
	ready()

	select {
	case err := <-errs:
		ctx.Throw(fmt.Errorf("admin server failed: %w", err))
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.log.Warn().Err(err).Msg("admin server did not shut down cleanly")
	}
}

// Run validates and handles one command request.
func (s *Server) Run(ctx context.Context, name string, data interface{}) (interface{}, error) {
	s.mu.RLock()
	command, ok := s.commands[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}

	req := &CommandRequest{Data: data}
	if err := command.Validator(req); err != nil {
		if !IsInvalidAdminParameterError(err) {
			err = InvalidAdminReqError{Err: err}
		}
		return nil, err
	}
	return command.Handler(ctx, req)
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	output, err := s.Run(r.Context(), CommandStatus, nil)
	s.respond(w, output, err)
}

func (s *Server) nodeLog(w http.ResponseWriter, r *http.Request) {
	data := map[string]interface{}{
		"node": mux.Vars(r)["node"],
	}
	if lines := r.URL.Query().Get("lines"); lines != "" {
		data["lines"] = lines
	}
	output, err := s.Run(r.Context(), CommandTailLog, data)
	s.respond(w, output, err)
}

func (s *Server) runCommand(w http.ResponseWriter, r *http.Request) {
	var req runCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respond(w, nil, NewInvalidAdminReqErrorf("could not decode request: %v", err))
		return
	}
	output, err := s.Run(r.Context(), req.CommandName, req.Data)
	s.respond(w, output, err)
}

func (s *Server) respond(w http.ResponseWriter, output interface{}, err error) {
	status := http.StatusOK
	resp := runCommandResponse{Output: output}
	switch {
	case err == nil:
	case errors.Is(err, ErrUnknownCommand):
		status = http.StatusNotFound
	case IsInvalidAdminParameterError(err):
		status = http.StatusBadRequest
	default:
		status = http.StatusInternalServerError
	}
	if err != nil {
		resp.Error = err.Error()
	}

	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	if encodeErr := json.NewEncoder(w).Encode(resp); encodeErr != nil {
		s.log.Warn().Err(encodeErr).Msg("could not write response")
	}
}

// responseWriter captures the status code of a response.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(log zerolog.Logger) mux.MiddlewareFunc {
	return func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			handler.ServeHTTP(rw, req)

			event := log.Debug()
			if rw.statusCode >= http.StatusInternalServerError {
				event = log.Warn()
			}
			event.Str("method", req.Method).
				Str("uri", req.RequestURI).
				Dur("duration", time.Since(start)).
				Int("response_code", rw.statusCode).
				Msg("admin request")
		})
	}
}
