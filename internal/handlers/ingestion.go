package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"go.temporal.io/api/serviceerror"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/meterflow/meterflow-api/internal/authz"
	"github.com/meterflow/meterflow-api/internal/config"
	"github.com/meterflow/meterflow-api/internal/ingest"
	"github.com/meterflow/meterflow-api/internal/models"
	"github.com/meterflow/meterflow-api/internal/repository"
	"github.com/meterflow/meterflow-api/internal/temporal"
	"github.com/meterflow/meterflow-api/internal/temporal/workflows"
)

type IngestionHandler struct {
	jobRepo         repository.JobRepository
	measurementRepo repository.MeasurementRepository
	temporalClient  temporalclient.Client
	cfg             config.IngestConfig
	logger          zerolog.Logger
}

func NewIngestionHandler(
	jobRepo repository.JobRepository,
	measurementRepo repository.MeasurementRepository,
	temporalClient temporalclient.Client,
	cfg config.IngestConfig,
	logger zerolog.Logger,
) *IngestionHandler {
	return &IngestionHandler{
		jobRepo:         jobRepo,
		measurementRepo: measurementRepo,
		temporalClient:  temporalClient,
		cfg:             cfg,
		logger:          logger.With().Str("handler", "ingestion").Logger(),
	}
}

// Upload accepts a multipart file, stages it on disk, creates a pending job,
// and dispatches the ingestion workflow. Returns 202 with the job record.
func (h *IngestionHandler) Upload(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := authz.TenantIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing tenant context", http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "Invalid multipart payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "A file field named 'file' is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	kind := ingest.DetectKind(header.Filename, header.Header.Get("Content-Type"))

	tmpPath := filepath.Join(h.cfg.TempDir, fmt.Sprintf("ingest-%s%s", uuid.NewString(), filepath.Ext(header.Filename)))
	dst, err := os.Create(tmpPath)
	if err != nil {
		h.logger.Error().Err(err).Str("path", tmpPath).Msg("failed to create temporary file")
		http.Error(w, "Failed to stage upload", http.StatusInternalServerError)
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(tmpPath)
		http.Error(w, "Failed to store upload: "+err.Error(), http.StatusInternalServerError)
		return
	}
	dst.Close()

	job, err := h.jobRepo.Create(r.Context(), models.IngestionJob{
		TenantID:   tenantID,
		SourceKind: kind,
		FileName:   header.Filename,
		FilePath:   tmpPath,
	})
	if err != nil {
		os.Remove(tmpPath)
		h.logger.Error().Err(err).Msg("failed to create ingestion job")
		http.Error(w, "Failed to create ingestion job: "+err.Error(), http.StatusInternalServerError)
		return
	}

	opts := temporalclient.StartWorkflowOptions{
		ID:        temporal.WorkflowID(job.ID),
		TaskQueue: temporal.TaskQueueName,
	}
	params := temporal.IngestionParams{TenantID: tenantID, JobID: job.ID}
	if _, err := h.temporalClient.ExecuteWorkflow(r.Context(), opts, workflows.IngestionWorkflow, params); err != nil {
		var alreadyStarted *serviceerror.WorkflowExecutionAlreadyStarted
		if !errors.As(err, &alreadyStarted) {
			// Leave the job pending; the sweeper re-dispatches it later.
			h.logger.Error().Err(err).Str("job_id", job.ID).Msg("failed to start ingestion workflow")
		}
	}

	writeJSON(w, http.StatusAccepted, job)
}

func (h *IngestionHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := authz.TenantIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing tenant context", http.StatusUnauthorized)
		return
	}

	jobID := strings.TrimSpace(mux.Vars(r)["jobID"])
	job, err := h.jobRepo.Get(r.Context(), tenantID, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "Job not found", http.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("failed to load job")
		http.Error(w, "Failed to load job", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, job)
}

func (h *IngestionHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := authz.TenantIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing tenant context", http.StatusUnauthorized)
		return
	}

	// parse query params with defaults
	limit := 20
	offset := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil {
			limit = v
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if v, err := strconv.Atoi(o); err == nil {
			offset = v
		}
	}

	jobs, err := h.jobRepo.List(r.Context(), tenantID, limit, offset)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list jobs")
		http.Error(w, "Failed to list jobs", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, jobs)
}

func (h *IngestionHandler) GetJobStats(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := authz.TenantIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing tenant context", http.StatusUnauthorized)
		return
	}

	days := 31 // default to 31 days
	if d := r.URL.Query().Get("days"); d != "" {
		if v, err := strconv.Atoi(d); err == nil {
			days = v
		}
	}

	stats, err := h.jobRepo.Stats(r.Context(), tenantID, days)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to get job stats")
		http.Error(w, "Failed to get job stats: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// Sync ingests a small payload inline, without a job record. The source kind
// comes from the 'kind' query parameter or the request content type.
func (h *IngestionHandler) Sync(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := authz.TenantIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing tenant context", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes))
	if err != nil {
		http.Error(w, "Failed to read request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(body) == 0 {
		http.Error(w, "Request body is required", http.StatusBadRequest)
		return
	}

	var kind models.SourceKind
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get("kind"))) {
	case "json":
		kind = models.SourceKindJSON
	case "csv":
		kind = models.SourceKindCSV
	case "":
		kind = ingest.DetectKind("", r.Header.Get("Content-Type"))
	default:
		http.Error(w, "Unsupported kind, expected 'json' or 'csv'", http.StatusBadRequest)
		return
	}

	created, err := ingest.Inline(r.Context(), h.measurementRepo, tenantID, kind, body, h.cfg.ChunkSize, h.logger)
	if err != nil {
		http.Error(w, "Failed to ingest payload: "+err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"created": created})
}
