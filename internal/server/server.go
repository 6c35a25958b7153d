// Package server exposes the pipeline engine over HTTP: submit a task,
// poll its status, or stream its execution events over a WebSocket. It is
// grounded on internal/server/server.go in the teacher repository this
// project started from - the same gorilla/mux routing, prometheus
// execution metrics, and WebSocket progress broadcast - adapted from
// pre-registered workflow files to ad-hoc task.Task submissions dispatched
// through pkg/pipeline. This package depends on pkg/pipeline only through
// its public API - it never reaches into internal/pipeline directly,
// preserving the engine/HTTP-surface boundary.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/taskflow/pipelinectl/internal/task"
	pkgevents "github.com/taskflow/pipelinectl/pkg/events"
	pkgpipeline "github.com/taskflow/pipelinectl/pkg/pipeline"
)

// Config holds the HTTP server's tuning knobs.
type Config struct {
	Addr            string
	MaxConcurrency  int
	EnableMetrics   bool
	EnableCORS      bool
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig mirrors the teacher's DefaultConfig values.
func DefaultConfig() *Config {
	return &Config{
		Addr:            ":8080",
		MaxConcurrency:  5,
		EnableMetrics:   true,
		EnableCORS:      true,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Execution tracks one dispatched task end to end: its live status, the
// events emitted so far, and any WebSocket clients subscribed to them.
type Execution struct {
	RunID    string                     `json:"runId"`
	TaskType string                     `json:"taskType"`
	Status   string                     `json:"status"`
	Start    time.Time                  `json:"startTime"`
	End      *time.Time                 `json:"endTime,omitempty"`
	Duration time.Duration              `json:"duration"`
	Result   any                        `json:"result,omitempty"`
	Error    string                     `json:"error,omitempty"`
	Progress []pkgevents.ExecutionEvent `json:"progress,omitempty"`

	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex
}

// OnEvent implements pkgevents.Listener, recording the event and
// broadcasting it to every subscribed WebSocket client.
func (e *Execution) OnEvent(ev pkgevents.ExecutionEvent) {
	e.clientsMu.Lock()
	e.Progress = append(e.Progress, ev)
	clients := make([]*websocket.Conn, 0, len(e.clients))
	for c := range e.clients {
		clients = append(clients, c)
	}
	e.clientsMu.Unlock()

	for _, c := range clients {
		_ = c.WriteJSON(ev)
	}
}

func (e *Execution) addClient(c *websocket.Conn) {
	e.clientsMu.Lock()
	defer e.clientsMu.Unlock()
	e.clients[c] = true
}

func (e *Execution) closeClients() {
	e.clientsMu.Lock()
	defer e.clientsMu.Unlock()
	for c := range e.clients {
		_ = c.Close()
	}
}

// ExecutionManager tracks in-flight and completed executions and reports
// their aggregate counts/durations via Prometheus.
type ExecutionManager struct {
	mu         sync.RWMutex
	executions map[string]*Execution
	maxConc    int
	active     int
	seq        atomic.Int64

	totalStarted prometheus.Counter
	activeGauge  prometheus.Gauge
	duration     *prometheus.HistogramVec
	statusTotal  *prometheus.CounterVec
}

// NewExecutionManager registers its metrics with prometheus.DefaultRegisterer.
func NewExecutionManager(maxConcurrency int) *ExecutionManager {
	return NewExecutionManagerWithRegistry(maxConcurrency, prometheus.DefaultRegisterer)
}

// NewExecutionManagerWithRegistry lets callers (tests, in particular) supply
// an isolated Prometheus registry instead of the global default.
func NewExecutionManagerWithRegistry(maxConcurrency int, registerer prometheus.Registerer) *ExecutionManager {
	em := &ExecutionManager{
		executions: make(map[string]*Execution),
		maxConc:    maxConcurrency,
		totalStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pipelinectl_executions_total",
			Help: "Total number of task executions started",
		}),
		activeGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pipelinectl_executions_active",
			Help: "Number of currently active task executions",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "pipelinectl_execution_duration_seconds",
			Help: "Task execution duration in seconds",
		}, []string{"task_type", "status"}),
		statusTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipelinectl_execution_status_total",
			Help: "Total executions by final status",
		}, []string{"task_type", "status"}),
	}

	if registerer != nil {
		registerer.MustRegister(em.totalStarted, em.activeGauge, em.duration, em.statusTotal)
	}
	return em
}

// CanStart reports whether maxConcurrency has not yet been reached.
func (em *ExecutionManager) CanStart() bool {
	em.mu.RLock()
	defer em.mu.RUnlock()
	return em.active < em.maxConc
}

// NextRunID returns a process-unique run identifier.
func (em *ExecutionManager) NextRunID() string {
	return fmt.Sprintf("run_%d", em.seq.Add(1))
}

// Start begins tracking a new execution for runID.
func (em *ExecutionManager) Start(runID string, t *task.Task) *Execution {
	em.mu.Lock()
	defer em.mu.Unlock()

	exec := &Execution{
		RunID:    runID,
		TaskType: t.Type,
		Status:   "running",
		Start:    time.Now(),
		Progress: make([]pkgevents.ExecutionEvent, 0),
		clients:  make(map[*websocket.Conn]bool),
	}
	em.executions[runID] = exec
	em.active++
	em.totalStarted.Inc()
	em.activeGauge.Inc()
	return exec
}

// Finish records the terminal state of runID's execution.
func (em *ExecutionManager) Finish(runID string, result any, err error) {
	em.mu.Lock()
	exec, ok := em.executions[runID]
	em.mu.Unlock()
	if !ok {
		return
	}

	now := time.Now()
	exec.End = &now
	exec.Duration = now.Sub(exec.Start)
	exec.Result = result
	if err != nil {
		exec.Status = "failed"
		exec.Error = err.Error()
	} else {
		exec.Status = "completed"
	}

	em.mu.Lock()
	em.active--
	em.mu.Unlock()

	em.activeGauge.Dec()
	em.duration.WithLabelValues(exec.TaskType, exec.Status).Observe(exec.Duration.Seconds())
	em.statusTotal.WithLabelValues(exec.TaskType, exec.Status).Inc()
	exec.closeClients()
}

// Get returns the execution tracked under runID, if any.
func (em *ExecutionManager) Get(runID string) (*Execution, bool) {
	em.mu.RLock()
	defer em.mu.RUnlock()
	exec, ok := em.executions[runID]
	return exec, ok
}

// Server wires the pipeline runner to an HTTP API.
type Server struct {
	config   *Config
	runner   *pkgpipeline.Runner
	manager  *ExecutionManager
	http     *http.Server
	upgrader websocket.Upgrader
}

// New constructs a Server that dispatches submitted tasks through runner.
func New(cfg *Config, runner *pkgpipeline.Runner) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Server{
		config:  cfg,
		runner:  runner,
		manager: NewExecutionManager(cfg.MaxConcurrency),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Start builds the router and begins serving in a background goroutine.
func (s *Server) Start() error {
	router := mux.NewRouter()
	if s.config.EnableCORS {
		router.Use(s.corsMiddleware)
	}

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.loggingMiddleware)
	api.HandleFunc("/tasks", s.submitTask).Methods(http.MethodPost)
	api.HandleFunc("/executions/{runId}", s.getExecution).Methods(http.MethodGet)
	api.HandleFunc("/executions/{runId}/stream", s.streamExecution).Methods(http.MethodGet)
	if s.config.EnableCORS {
		// corsMiddleware answers preflight requests before this handler runs.
		api.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	}

	if s.config.EnableMetrics {
		router.Handle("/metrics", promhttp.Handler())
	}
	router.HandleFunc("/health", s.healthCheck)

	s.http = &http.Server{
		Addr:         s.config.Addr,
		Handler:      router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	log.Info().Str("addr", s.config.Addr).Bool("metrics", s.config.EnableMetrics).Msg("starting server")

	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	log.Info().Msg("shutting down server")
	return s.http.Shutdown(ctx)
}

// StartWithGracefulShutdown starts the server and blocks until SIGINT or
// SIGTERM, then shuts down within ShutdownTimeout.
func (s *Server) StartWithGracefulShutdown() error {
	if err := s.Start(); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	return s.Stop(ctx)
}
