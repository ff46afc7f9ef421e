package worker

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/retracehq/retrace/internal/capture"
	"github.com/retracehq/retrace/internal/classify"
	"github.com/retracehq/retrace/internal/worker/sse"
	"github.com/retracehq/retrace/pkg/models"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	queueLen, err := s.queue.Len(r.Context())
	if err != nil {
		queueLen = -1
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"version":       s.version,
		"ready":         s.ready.Load(),
		"uptimeSeconds": int64(time.Since(s.startTime).Seconds()),
		"queueLength":   queueLen,
		"sseClients":    s.broadcaster.ClientCount(),
	})
}

type schedulerStartRequest struct {
	IntervalMinutes int `json:"intervalMinutes"`
}

func (s *Service) handleSchedulerStart(w http.ResponseWriter, r *http.Request) {
	var req schedulerStartRequest
	if r.Body != nil {
		// Missing or empty body falls back to the configured interval.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	interval := req.IntervalMinutes
	if interval <= 0 {
		interval = s.config.CaptureIntervalMinutes
	}

	s.scheduler.Start(interval)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"running":         true,
		"intervalMinutes": interval,
	})
}

func (s *Service) handleSchedulerStop(w http.ResponseWriter, r *http.Request) {
	s.scheduler.Stop()
	writeJSON(w, http.StatusOK, map[string]interface{}{"running": false})
}

type captureTriggerRequest struct {
	Intent           string `json:"intent"`
	PrimaryDisplayID string `json:"primaryDisplayId"`
}

func (s *Service) handleCaptureTrigger(w http.ResponseWriter, r *http.Request) {
	var req captureTriggerRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	intent := models.CaptureIntent(req.Intent)
	switch intent {
	case models.IntentDefault, models.IntentProjectProgress:
	case "":
		intent = models.IntentDefault
	default:
		writeError(w, http.StatusBadRequest, "unknown intent: "+req.Intent)
		return
	}

	result, err := s.scheduler.TriggerManualCapture(r.Context(), capture.TriggerInput{
		Intent:           intent,
		PrimaryDisplayID: req.PrimaryDisplayID,
	})
	if err != nil {
		log.Error().Err(err).Msg("Manual capture failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Service) handleClassifyAvailability(w http.ResponseWriter, r *http.Request) {
	statuses := s.classifier.Availability(r.Context(), s.config.ProviderOrder,
		classify.RouterContext{Mode: s.config.ClassifyMode})
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"mode":      s.config.ClassifyMode,
		"order":     s.config.ProviderOrder,
		"providers": statuses,
	})
}

type classifyRequest struct {
	EventID int64 `json:"eventId"`
}

// handleClassify runs the classification pipeline for one event on demand,
// through the same path the queue consumer uses.
func (s *Service) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.EventID <= 0 {
		writeError(w, http.StatusBadRequest, "eventId is required")
		return
	}

	event, err := s.events.GetEventByID(r.Context(), req.EventID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if event == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}

	decision, err := s.consumer.ProcessEvent(r.Context(), req.EventID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if decision == nil {
		writeError(w, http.StatusConflict, "event is not pending")
		return
	}

	writeJSON(w, http.StatusOK, decision)
}

func (s *Service) handleListEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	events, err := s.events.ListRecent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

func (s *Service) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	event, err := s.events.GetEventByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if event == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}

	screenshots, err := s.events.GetScreenshots(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"event":       event,
		"screenshots": screenshots,
	})
}

func (s *Service) handleDismissEvent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	event, err := s.events.GetEventByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if event == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}

	if err := s.events.DismissEvent(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.broadcaster.Broadcast(sse.Notification{Type: sse.TypeEventsChanged})
	writeJSON(w, http.StatusOK, map[string]bool{"dismissed": true})
}
