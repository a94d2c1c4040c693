// Package simulatorhost implements the in-process Action Simulator Host: a
// development/reference stand-in for a real automation backend, exposing
// the same wire contract the Action Service's simulator client expects.
package simulatorhost

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/incident-console/backend/pkg/logger"
)

type executeRequest struct {
	ExecutionID string `json:"execution_id"`
	Action      string `json:"action"`
}

type executeResponse struct {
	ExecutionID string `json:"execution_id"`
	Status      string `json:"status"`
	Detail      string `json:"detail"`
	ExecutedAt  string `json:"executed_at"`
}

// Host serves the /health and /execute endpoints the real Action Simulator
// exposes, so the console can run end to end without one.
type Host struct {
	addr   string
	server *http.Server
	log    *logger.Logger
}

// New constructs a Host listening on addr (host:port).
func New(addr string) *Host {
	h := &Host{addr: addr, log: logger.NewDefault("action-simulator-host")}

	router := mux.NewRouter()
	router.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/execute", h.handleExecute).Methods(http.MethodPost)

	h.server = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	return h
}

// Name identifies this activity to the lifecycle manager.
func (h *Host) Name() string { return "action-simulator-host" }

// Start binds the listener, serves on it in the background, and returns once
// it is bound, so requests can be issued as soon as Start returns.
func (h *Host) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", h.addr)
	if err != nil {
		return err
	}
	go func() {
		if err := h.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			h.log.WithError(err).Error("action simulator host stopped unexpectedly")
		}
	}()
	return nil
}

// Stop gracefully shuts the listener down.
func (h *Host) Stop(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

func (h *Host) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (h *Host) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid request body"})
		return
	}

	resp := executeResponse{
		ExecutionID: req.ExecutionID,
		Status:      "success",
		Detail:      "Simulated run completed for '" + req.Action + "'.",
		ExecutedAt:  time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
