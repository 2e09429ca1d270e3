package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/meterflow/meterflow-api/internal/authz"
	"github.com/meterflow/meterflow-api/internal/repository"
)

type MeasurementHandler struct {
	repo   repository.MeasurementRepository
	logger zerolog.Logger
}

func NewMeasurementHandler(repo repository.MeasurementRepository, logger zerolog.Logger) *MeasurementHandler {
	return &MeasurementHandler{
		repo:   repo,
		logger: logger.With().Str("handler", "measurement").Logger(),
	}
}

// List returns tenant measurements, newest first. Filters: device_id, metric,
// since, until (RFC 3339), limit.
func (h *MeasurementHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := authz.TenantIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing tenant context", http.StatusUnauthorized)
		return
	}

	q := r.URL.Query()
	filter := repository.MeasurementFilter{
		DeviceID: strings.TrimSpace(q.Get("device_id")),
		Metric:   strings.TrimSpace(q.Get("metric")),
	}

	if raw := strings.TrimSpace(q.Get("since")); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "Invalid 'since' timestamp, expected RFC 3339", http.StatusBadRequest)
			return
		}
		filter.Since = &ts
	}
	if raw := strings.TrimSpace(q.Get("until")); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "Invalid 'until' timestamp, expected RFC 3339", http.StatusBadRequest)
			return
		}
		filter.Until = &ts
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			filter.Limit = v
		}
	}

	measurements, err := h.repo.List(r.Context(), tenantID, filter)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list measurements")
		http.Error(w, "Failed to list measurements", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"measurements": measurements,
	})
}
