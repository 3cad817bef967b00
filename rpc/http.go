// Package rpc exposes the transaction methods over JSON-RPC 2.0 on HTTP.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"anchorplatform/core/events"
	"anchorplatform/rpc/methods"
)

const (
	jsonRPCVersion        = "2.0"
	defaultMaxBodyBytes   = 1 << 20 // 1 MiB
	defaultRequestTimeout = 30 * time.Second
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
)

// Observer records per-call RPC metrics.
type Observer interface {
	ObserveRPC(method string, code int, duration time.Duration)
	RecordThrottle(reason string)
}

// EventFeed is the source of the live lifecycle event stream.
type EventFeed interface {
	Subscribe(ctx context.Context, since uint64) (<-chan events.LifecycleEvent, func(), []events.LifecycleEvent)
}

// Config configures the HTTP surface.
type Config struct {
	ServiceName    string
	MaxBodyBytes   int64
	RequestTimeout time.Duration
	Auth           AuthConfig
	RateLimit      RateLimit
	// Gatherer backs GET /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	Observer Observer
	// Events backs GET /events/ws. Nil disables the endpoint.
	Events EventFeed
	Logger *slog.Logger
}

// Server dispatches JSON-RPC envelopes to the method registry.
type Server struct {
	registry *methods.Registry
	cfg      Config
	tracer   trace.Tracer
	auth     *Authenticator
	limiter  *RateLimiter
	logger   *slog.Logger
}

// NewServer builds a server over registry.
func NewServer(registry *methods.Registry, cfg Config) (*Server, error) {
	if registry == nil {
		return nil, errors.New("rpc: method registry required")
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "anchor-platform"
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	auth, err := NewAuthenticator(cfg.Auth, logger)
	if err != nil {
		return nil, err
	}
	return &Server{
		registry: registry,
		cfg:      cfg,
		tracer:   otel.Tracer(cfg.ServiceName),
		auth:     auth,
		limiter:  NewRateLimiter(cfg.RateLimit, cfg.Observer),
		logger:   logger,
	}, nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if s.cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	r.Group(func(r chi.Router) {
		r.Use(s.auth.Middleware)
		r.Use(s.limiter.Middleware)
		r.Post("/", s.handle)
		if s.cfg.Events != nil {
			r.Get("/events/ws", s.handleEventsWS)
		}
	})
	return r
}

// RPCRequest is a JSON-RPC 2.0 request envelope. A missing id marks a
// notification, which is still answered with a null id.
type RPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

// RPCResponse is a JSON-RPC 2.0 response envelope.
type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is the error member of a response.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func errorResponse(id json.RawMessage, code int, message string) RPCResponse {
	return RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: &RPCError{Code: code, Message: message}}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// handle reads one envelope or a batch and answers in request order.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	defer func() {
		_ = reader.Close()
	}()

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", s.cfg.MaxBodyBytes)
		}
		writeJSON(w, status, errorResponse(nil, codeInvalidRequest, message))
		return
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse(nil, codeInvalidRequest, "request body required"))
		return
	}

	if body[0] != '[' {
		writeJSON(w, http.StatusOK, s.dispatch(r.Context(), body))
		return
	}
	var batch []json.RawMessage
	if err := json.Unmarshal(body, &batch); err != nil {
		writeJSON(w, http.StatusOK, errorResponse(nil, codeParseError, "invalid JSON payload"))
		return
	}
	if len(batch) == 0 {
		writeJSON(w, http.StatusOK, errorResponse(nil, codeInvalidRequest, "empty batch"))
		return
	}
	responses := make([]RPCResponse, 0, len(batch))
	for _, item := range batch {
		responses = append(responses, s.dispatch(r.Context(), item))
	}
	writeJSON(w, http.StatusOK, responses)
}

// dispatch handles a single envelope. Failures never escape as Go errors;
// they are folded into the response.
func (s *Server) dispatch(ctx context.Context, raw json.RawMessage) RPCResponse {
	var req RPCRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		if !json.Valid(raw) {
			return errorResponse(nil, codeParseError, "invalid JSON payload")
		}
		return errorResponse(nil, codeInvalidRequest, "invalid request envelope")
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		return errorResponse(req.ID, codeInvalidRequest, "unsupported jsonrpc version")
	}
	if req.Method == "" {
		return errorResponse(req.ID, codeInvalidRequest, "method required")
	}
	handler, ok := s.registry.Lookup(req.Method)
	if !ok {
		s.observe(req.Method, codeMethodNotFound, 0)
		return errorResponse(req.ID, codeMethodNotFound, fmt.Sprintf("method %s not found", req.Method))
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()
	ctx, span := s.tracer.Start(ctx, "rpc."+req.Method, trace.WithAttributes(
		attribute.String("rpc.system", "jsonrpc"),
		attribute.String("rpc.method", req.Method),
	))
	defer span.End()

	start := time.Now()
	result, err := s.invoke(ctx, handler, req.Params)
	if err != nil {
		methodErr := methods.AsError(err)
		code := methodErr.Kind.Code()
		span.RecordError(err)
		span.SetStatus(codes.Error, methodErr.Message)
		span.SetAttributes(attribute.Int("rpc.jsonrpc.error_code", code))
		s.observe(req.Method, code, time.Since(start))
		if methodErr.Kind == methods.KindInternal {
			s.logger.Error("rpc method failed",
				slog.String("method", req.Method),
				slog.String("message", methodErr.Message),
				slog.Any("error", methodErr.Err))
		}
		return errorResponse(req.ID, code, methodErr.Message)
	}
	s.observe(req.Method, 0, time.Since(start))
	return RPCResponse{JSONRPC: jsonRPCVersion, ID: req.ID, Result: result}
}

// invoke runs a handler and turns a panic into an internal error so one bad
// batch item cannot abort its siblings.
func (s *Server) invoke(ctx context.Context, handler methods.Handler, params json.RawMessage) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = methods.Internal(fmt.Errorf("panic: %v", rec), "internal error")
		}
	}()
	return handler.Handle(ctx, params)
}

func (s *Server) observe(method string, code int, duration time.Duration) {
	if s.cfg.Observer != nil {
		s.cfg.Observer.ObserveRPC(method, code, duration)
	}
}
