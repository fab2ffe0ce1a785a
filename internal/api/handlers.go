package api

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/aquasense-core/internal/aquarium"
	"github.com/nerrad567/aquasense-core/internal/correction"
)

// HealthResponse is the /healthz body.
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks"`
	Loop    correction.Status `json:"loop"`
}

// handleHealth runs every dependency check. Any failure turns the response
// into 503 "degraded"; the loop snapshot is always included.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Version: s.version,
		Checks:  make(map[string]string, len(s.checks)),
		Loop:    s.loop.Status(),
	}

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := s.checks[name].HealthCheck(ctx)
		cancel()
		if err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			continue
		}
		resp.Checks[name] = "ok"
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.loop.Status())
}

// handleListLogs serves the correction audit trail, newest first.
// Query: sensor_id, limit, offset.
func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "store not configured")
		return
	}

	var filter aquarium.LogFilter
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"limit", &filter.Limit},
		{"offset", &filter.Offset},
	} {
		if v := q.Get(p.name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				writeBadRequest(w, p.name+" must be an integer")
				return
			}
			*p.dst = n
		}
	}
	if v := q.Get("sensor_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			writeBadRequest(w, "sensor_id must be a positive integer")
			return
		}
		filter.SensorID = id
	}

	result, err := s.store.ListLogs(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing logs failed", "error", err)
		writeInternalError(w, "failed to list logs")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetSensor(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "store not configured")
		return
	}

	sensor, err := s.store.GetSensorByType(r.Context(), chi.URLParam(r, "type"))
	if err != nil {
		if errors.Is(err, aquarium.ErrSensorNotFound) {
			writeNotFound(w, "sensor not found")
			return
		}
		s.logger.Error("getting sensor failed", "error", err)
		writeInternalError(w, "failed to get sensor")
		return
	}
	writeJSON(w, http.StatusOK, sensor)
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "store not configured")
		return
	}

	device, err := s.store.GetDeviceByName(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		if errors.Is(err, aquarium.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("getting device failed", "error", err)
		writeInternalError(w, "failed to get device")
		return
	}
	writeJSON(w, http.StatusOK, device)
}
