package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/taskflow/pipelinectl/internal/task"
	pkgevents "github.com/taskflow/pipelinectl/pkg/events"
)

// submitTask decodes a task.Task from the request body, dispatches it
// asynchronously, and returns its run id immediately.
func (s *Server) submitTask(w http.ResponseWriter, r *http.Request) {
	if !s.manager.CanStart() {
		http.Error(w, "server at capacity, try again later", http.StatusServiceUnavailable)
		return
	}

	var t task.Task
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		http.Error(w, fmt.Sprintf("invalid JSON: %v", err), http.StatusBadRequest)
		return
	}
	if t.Type == "" {
		http.Error(w, "task.type is required", http.StatusBadRequest)
		return
	}

	runID := s.manager.NextRunID()
	exec := s.manager.Start(runID, &t)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"runId":     runID,
		"taskType":  t.Type,
		"status":    "running",
		"startedAt": exec.Start,
	})

	go s.dispatchAsync(&t, runID, exec)
}

func (s *Server) dispatchAsync(t *task.Task, runID string, exec *Execution) {
	res, err := s.runner.Run(context.Background(), t, nil, exec)

	var result any
	if err == nil {
		if res.Pipeline != nil {
			result = res.Pipeline
		} else {
			result = res.Single
		}
	}

	s.manager.Finish(runID, result, err)

	log.Info().Str("runId", runID).Str("taskType", t.Type).Err(err).Msg("task execution completed")
}

// getExecution returns the tracked status of one run.
func (s *Server) getExecution(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["runId"]

	exec, ok := s.manager.Get(runID)
	if !ok {
		http.Error(w, fmt.Sprintf("execution %q not found", runID), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(exec)
}

// streamExecution upgrades to a WebSocket and streams the run's events as
// they are emitted, replaying any that happened before the client
// connected.
func (s *Server) streamExecution(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["runId"]

	exec, ok := s.manager.Get(runID)
	if !ok {
		http.Error(w, fmt.Sprintf("execution %q not found", runID), http.StatusNotFound)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	exec.addClient(conn)

	exec.clientsMu.RLock()
	backlog := append([]pkgevents.ExecutionEvent(nil), exec.Progress...)
	exec.clientsMu.RUnlock()
	for _, ev := range backlog {
		_ = conn.WriteJSON(ev)
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
		if e, ok := s.manager.Get(runID); !ok || e.Status != "running" {
			break
		}
	}
}

// healthCheck reports basic liveness and load information.
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"status":    "healthy",
		"timestamp": time.Now(),
	})
}
