package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/veedran/reelsmith/internal/broadcast"
	"github.com/veedran/reelsmith/internal/jobs"
	"github.com/veedran/reelsmith/internal/service"
	"github.com/veedran/reelsmith/pkg/log"
)

type startRequest struct {
	SteamAppID     string `json:"steam_app_id"`
	GameTitle      string `json:"game_title,omitempty"`
	CustomVideoURL string `json:"custom_video_url,omitempty"`
	Count          int    `json:"count,omitempty"`
}

type startResponse struct {
	JobID   string      `json:"job_id"`
	Jobs    []*jobs.Job `json:"jobs"`
	Status  jobs.Status `json:"status"`
	Message string      `json:"message"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	created, gameName, err := s.supervisor.Submit(r.Context(), jobs.Request{
		SteamAppID:     req.SteamAppID,
		GameTitle:      req.GameTitle,
		CustomVideoURL: req.CustomVideoURL,
		Count:          req.Count,
	})
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Message)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, startResponse{
		JobID:   created[0].ID,
		Jobs:    created,
		Status:  jobs.StatusQueued,
		Message: fmt.Sprintf("Automation started for %s", gameName),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jobID := strings.TrimPrefix(r.URL.Path, "/api/automation/status/")
	if jobID == "" || strings.Contains(jobID, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	job, err := s.supervisor.Status(jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.supervisor.List())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jobID := strings.TrimPrefix(r.URL.Path, "/api/automation/stop/")
	if jobID == "" || strings.Contains(jobID, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	job, err := s.supervisor.Cancel(jobID)
	switch {
	case errors.Is(err, service.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "job not found")
		return
	case errors.Is(err, service.ErrJobFinished):
		writeError(w, http.StatusConflict, "job already finished")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("Job %s cancelled", job.ID),
		"job":     job,
	})
}

type validateRequest struct {
	SteamAppID string `json:"steam_app_id"`
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(req.SteamAppID) == "" {
		writeError(w, http.StatusBadRequest, "steam app id is required")
		return
	}

	details, err := s.validator.Validate(r.Context(), strings.TrimSpace(req.SteamAppID))
	if err != nil {
		// A rejected app id is a valid answer, not a request error.
		writeJSON(w, http.StatusOK, map[string]any{
			"valid":   false,
			"error":   err.Error(),
			"message": fmt.Sprintf("Invalid Steam App ID: %v", err),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":     true,
		"app_id":    details.AppID,
		"game_name": details.Name,
		"game_type": details.Type,
		"message":   fmt.Sprintf("Valid Steam game found: %s", details.Name),
	})
}

// handleHeyGenWebhook records vendor callbacks and forwards them to listeners.
// It always answers 200 so the vendor never retries or disables the endpoint.
func (s *Server) handleHeyGenWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.webhooks == nil {
		writeJSON(w, http.StatusOK, map[string]any{"received": false})
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"received": false})
		return
	}

	receipt, ok := s.webhooks.Record(payload)
	if !ok {
		log.Warn("httpapi: webhook payload without a task id recorded")
	} else {
		s.hub.Broadcast(broadcast.Event{
			Type:    broadcast.TypeWebhookUpdate,
			TaskID:  receipt.TaskID,
			Payload: receipt.Payload,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"received": true, "task_id": receipt.TaskID})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	all := s.supervisor.List()
	active := 0
	for _, job := range all {
		if job.Status == jobs.StatusRunning {
			active++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "healthy",
		"active_jobs": active,
		"total_jobs":  len(all),
		"listeners":   s.hub.Count(),
		"version":     Version,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
