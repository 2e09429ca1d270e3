package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/meterflow/meterflow-api/internal/repository"
)

type TenantHandler struct {
	tenantRepo repository.TenantRepository
	logger     zerolog.Logger
}

func NewTenantHandler(tenantRepo repository.TenantRepository, logger zerolog.Logger) *TenantHandler {
	return &TenantHandler{
		tenantRepo: tenantRepo,
		logger:     logger.With().Str("handler", "tenant").Logger(),
	}
}

func (h *TenantHandler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	payload.Name = strings.TrimSpace(payload.Name)
	if payload.Name == "" {
		http.Error(w, "Tenant name is required", http.StatusBadRequest)
		return
	}

	tenant, err := h.tenantRepo.CreateTenant(r.Context(), payload.Name)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate") {
			http.Error(w, "Tenant name already exists", http.StatusConflict)
			return
		}
		h.logger.Error().Err(err).Msg("failed to create tenant")
		http.Error(w, "Failed to create tenant: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, tenant)
}
