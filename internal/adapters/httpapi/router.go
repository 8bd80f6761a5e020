// Package httpapi is the HTTP surface of a serve process: health and metrics
// for operators, account acquisition, job queues, and server-sent event
// streams backed by the local stream registry.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/bnema/accountpool/internal/application"
	"github.com/bnema/accountpool/internal/domain"
	"github.com/bnema/accountpool/internal/metrics"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	shutdownTimeout = 10 * time.Second
	maxBodyBytes    = 1 << 20
)

type PoolReader interface {
	ListPools(ctx context.Context) ([]domain.Pool, error)
	Describe(ctx context.Context, poolID domain.PoolID) (application.PoolStatus, error)
}

type AccountAcquirer interface {
	Acquire(ctx context.Context, poolID domain.PoolID) (domain.Account, error)
}

type Broadcaster interface {
	Broadcast(ctx context.Context, id domain.SubscriptionID, event domain.Event) error
}

// RequestLedger marks provider calls in flight for weighted dispatch.
type RequestLedger interface {
	Begin(ctx context.Context, accountID domain.AccountID) string
	End(ctx context.Context, accountID domain.AccountID, requestID string, cooldownUntil *time.Time)
}

type GenerationRecorder interface {
	RecordGeneration(ctx context.Context, id domain.AccountID) error
}

type Rotator interface {
	Rotate(ctx context.Context, poolID domain.PoolID, opts application.RotateOptions) (application.RotationResult, error)
}

type JobQueues interface {
	Create(ctx context.Context, userID domain.UserID, cancel application.CancelJobFunc, maxPerUser int) (domain.QueueID, error)
	Get(ctx context.Context, userID domain.UserID, queueID domain.QueueID) (*domain.JobQueue, error)
	Complete(ctx context.Context, userID domain.UserID, queueID domain.QueueID) error
	Cancel(ctx context.Context, queueID domain.QueueID) error
}

type Deps struct {
	Pools          PoolReader
	Acquirer       AccountAcquirer
	Rotator        Rotator
	Requests       RequestLedger
	Generations    GenerationRecorder
	Streams        *application.StreamRegistry
	Events         Broadcaster
	Jobs           JobQueues
	MaxJobsPerUser int
	// Heartbeat is the idle interval between SSE keep-alive comments.
	Heartbeat time.Duration
	Logger    *slog.Logger
}

type Handler struct {
	deps   Deps
	logger *slog.Logger
}

func NewHandler(deps Deps) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Heartbeat <= 0 {
		deps.Heartbeat = 15 * time.Second
	}
	return &Handler{deps: deps, logger: logger.With("component", "http")}
}

// Router wires every route. Routes whose dependency is nil are left out.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(h.instrument)

	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	if h.deps.Pools != nil {
		v1.HandleFunc("/pools", h.ListPools).Methods(http.MethodGet)
		v1.HandleFunc("/pools/{pool}", h.DescribePool).Methods(http.MethodGet)
	}
	if h.deps.Acquirer != nil {
		v1.HandleFunc("/pools/{pool}/acquire", h.AcquireAccount).Methods(http.MethodPost)
	}
	if h.deps.Rotator != nil {
		v1.HandleFunc("/pools/{pool}/rotate", h.RotatePool).Methods(http.MethodPost)
	}
	if h.deps.Requests != nil {
		v1.HandleFunc("/accounts/{account}/requests", h.BeginRequest).Methods(http.MethodPost)
		v1.HandleFunc("/accounts/{account}/requests/{request}", h.EndRequest).Methods(http.MethodDelete)
	}
	if h.deps.Generations != nil {
		v1.HandleFunc("/accounts/{account}/generations", h.RecordGeneration).Methods(http.MethodPost)
	}
	if h.deps.Streams != nil {
		v1.HandleFunc("/streams/{id}", h.StreamEvents).Methods(http.MethodGet)
	}
	if h.deps.Events != nil {
		v1.HandleFunc("/streams/{id}/events", h.PublishEvent).Methods(http.MethodPost)
	}
	if h.deps.Jobs != nil {
		v1.HandleFunc("/users/{user}/jobs", h.CreateJob).Methods(http.MethodPost)
		v1.HandleFunc("/users/{user}/jobs/{queue}", h.GetJob).Methods(http.MethodGet)
		v1.HandleFunc("/users/{user}/jobs/{queue}", h.CompleteJob).Methods(http.MethodDelete)
		v1.HandleFunc("/jobs/{queue}/cancel", h.CancelJob).Methods(http.MethodPost)
	}

	return r
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Serve runs the server on listener until ctx ends, then drains in-flight
// requests.
func Serve(ctx context.Context, listener net.Listener, handler http.Handler, logger *slog.Logger) error {
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(listener)
	}()
	logger.Info("http server listening", "addr", listener.Addr().String())

	select {
	case err := <-errCh:
		return fmt.Errorf("serve http: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve http: %w", err)
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (h *Handler) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		if route != "/v1/streams/{id}" {
			timer := prometheus.NewTimer(metrics.HTTPRequestDuration.WithLabelValues(r.Method, route))
			defer timer.ObserveDuration()
		}

		next.ServeHTTP(recorder, r)
		metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(recorder.status)).Inc()
	})
}
