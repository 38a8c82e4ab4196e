// Package api provides HTTP handlers for CampaignPipe endpoints.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/BTreeMap/CampaignPipe/internal/models"
)

// triggerHandler handles POST /trigger-campaign. It consults the cooldown
// gate and either schedules a fire-and-forget pipeline run ("accepted") or
// rejects the trigger ("ignored"). The caller only ever sees the admission
// decision; pipeline outcomes are operator-visible via logs and checkpoints.
func (s *Server) triggerHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.triggerHandler: processing trigger request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.triggerHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req models.TriggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.triggerHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.triggerHandler: validation failed", "error", err, "userID", req.UserID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	if !s.gate.ShouldAdmit(req.UserID, time.Now()) {
		slog.Warn("Server.triggerHandler: cooldown active", "userID", req.UserID)
		writeJSONResponse(w, http.StatusOK, models.TriggerResponse{
			Status:  models.TriggerStatusIgnored,
			Message: "Cooldown active",
		})
		return
	}

	s.runner.Trigger(req.UserID, req.Description)

	slog.Info("Server.triggerHandler: campaign accepted", "userID", req.UserID)
	writeJSONResponse(w, http.StatusOK, models.TriggerResponse{
		Status:  models.TriggerStatusAccepted,
		Message: "Campaign processing started",
	})
}

// checkpointsHandler handles GET /checkpoints, listing all checkpoints for
// operator inspection.
func (s *Server) checkpointsHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.checkpointsHandler invoked", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	cps, err := s.st.ListCheckpoints()
	if err != nil {
		slog.Error("Server.checkpointsHandler: failed to list checkpoints", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch checkpoints"))
		return
	}
	slog.Debug("Server.checkpointsHandler: checkpoints fetched", "count", len(cps))
	writeJSONResponse(w, http.StatusOK, models.Success(cps))
}

// checkpointHandler handles GET /checkpoints/{thread}.
func (s *Server) checkpointHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.checkpointHandler invoked", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	threadID := strings.TrimPrefix(r.URL.Path, "/checkpoints/")
	if threadID == "" || strings.Contains(threadID, "/") {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Unknown checkpoint endpoint"))
		return
	}

	cp, err := s.st.GetCheckpoint(threadID)
	if err != nil {
		slog.Error("Server.checkpointHandler: failed to get checkpoint", "error", err, "threadID", threadID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch checkpoint"))
		return
	}
	if cp == nil {
		slog.Debug("Server.checkpointHandler: checkpoint not found", "threadID", threadID)
		writeJSONResponse(w, http.StatusNotFound, models.Error("Checkpoint not found"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(cp))
}

// healthHandler provides a health check endpoint for monitoring.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	healthData := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if cps, err := s.st.ListCheckpoints(); err != nil {
		slog.Warn("Health check: failed to count checkpoints", "error", err)
		healthData["status"] = "degraded"
		healthData["error"] = "Failed to fetch checkpoint metrics"
	} else {
		healthData["checkpoints"] = len(cps)
	}

	statusCode := http.StatusOK
	if healthData["status"] == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, statusCode, healthData)
}
