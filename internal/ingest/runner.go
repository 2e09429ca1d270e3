package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/meterflow/meterflow-api/internal/models"
	"github.com/meterflow/meterflow-api/internal/notification"
	"github.com/meterflow/meterflow-api/internal/repository"
)

// Result is the structured outcome of one runner invocation. Fatal problems
// are reported here instead of as a returned error so the dispatch layer can
// treat the invocation itself as succeeded: the failure is recorded on the
// job, visible to pollers.
type Result struct {
	JobID    string `json:"job_id"`
	Created  int    `json:"created"`
	Failed   int    `json:"failed"`
	Error    string `json:"error,omitempty"`
	NotFound bool   `json:"not_found,omitempty"`
}

// Runner executes one ingestion job end to end: load job, read file, parse,
// batch-write, finalize status, clean up the temp file. Exactly one runner
// invocation owns a job at a time; at-most-one dispatch per job id is the
// orchestration layer's responsibility.
type Runner struct {
	jobs          repository.JobRepository
	measurements  repository.MeasurementRepository
	tenants       repository.TenantRepository
	notifications notification.Service
	chunkSize     int
	logger        zerolog.Logger
}

func NewRunner(
	jobs repository.JobRepository,
	measurements repository.MeasurementRepository,
	tenants repository.TenantRepository,
	notifications notification.Service,
	chunkSize int,
	logger zerolog.Logger,
) *Runner {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Runner{
		jobs:          jobs,
		measurements:  measurements,
		tenants:       tenants,
		notifications: notifications,
		chunkSize:     chunkSize,
		logger:        logger.With().Str("component", "ingest_runner").Logger(),
	}
}

// Run processes the job with the given id. taskID is the external task
// handle recorded on the job for observability (may be empty).
func (r *Runner) Run(ctx context.Context, jobID, taskID string) Result {
	logger := r.logger.With().Str("job_id", jobID).Logger()

	job, err := r.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			logger.Warn().Msg("job not found, nothing to run")
			return Result{JobID: jobID, NotFound: true}
		}
		logger.Error().Err(err).Msg("failed to load job")
		return Result{JobID: jobID, Error: fmt.Sprintf("load job: %v", err)}
	}

	if err := r.jobs.MarkProcessing(ctx, jobID, taskID); err != nil {
		logger.Error().Err(err).Msg("failed to mark job processing")
		return Result{JobID: jobID, Error: fmt.Sprintf("mark processing: %v", err)}
	}

	sink := &jobSink{ctx: ctx, jobID: jobID, jobs: r.jobs, logger: logger}
	sink.Logf("Started processing %s file: %s", job.SourceKind, job.FileName)

	created, failed, err := r.execute(ctx, job, sink)
	if err != nil {
		msg := err.Error()
		sink.Logf("Error: %+v", err)
		if markErr := r.jobs.MarkFailed(ctx, jobID, msg); markErr != nil {
			logger.Error().Err(markErr).Msg("failed to mark job failed")
		}
		r.cleanup(job.FilePath, sink)
		r.notifyFailed(ctx, job, msg)
		logger.Error().Err(err).Msg("ingestion job failed")
		return Result{JobID: jobID, Error: msg}
	}

	logger.Info().Int("created", created).Int("failed", failed).Msg("ingestion job completed")
	return Result{JobID: jobID, Created: created, Failed: failed}
}

// execute runs the data path. Any returned error is job-fatal; row- and
// chunk-level defects are absorbed by the parsers and the batch writer.
func (r *Runner) execute(ctx context.Context, job models.IngestionJob, sink *jobSink) (created, failed int, err error) {
	if _, err := r.tenants.GetTenantByID(ctx, job.TenantID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, errors.New("job has no associated tenant")
		}
		return 0, 0, errors.Wrap(err, "resolve tenant")
	}

	if job.FilePath == "" {
		return 0, 0, errors.New("job has no file path")
	}
	data, err := os.ReadFile(job.FilePath)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "file not found: %s", job.FilePath)
	}
	sink.Logf("Read %d bytes from file", len(data))

	parser, err := ParserFor(job.SourceKind)
	if err != nil {
		return 0, 0, err
	}
	records, err := parser.Parse(job.TenantID, data, sink)
	if err != nil {
		return 0, 0, err
	}

	total := len(records)
	sink.Logf("Parsed %d valid records", total)
	if err := r.jobs.SetTotalRows(ctx, job.ID, total); err != nil {
		return 0, 0, errors.Wrap(err, "persist total rows")
	}

	if total == 0 {
		if err := r.jobs.MarkCompleted(ctx, job.ID, 0, 0); err != nil {
			return 0, 0, errors.Wrap(err, "finalize empty job")
		}
		sink.Logf("No valid records found to insert")
		r.cleanup(job.FilePath, sink)
		r.notifyCompleted(ctx, job, 0, 0)
		return 0, 0, nil
	}

	writer := NewBatchWriter(r.measurements, r.chunkSize, r.logger)
	created, failed = writer.Write(ctx, records, sink)

	r.cleanup(job.FilePath, sink)

	if err := r.jobs.MarkCompleted(ctx, job.ID, created, failed); err != nil {
		return created, failed, errors.Wrap(err, "finalize job")
	}
	sink.Logf("Completed: %d records created, %d failed", created, failed)
	r.notifyCompleted(ctx, job, created, failed)
	return created, failed, nil
}

// cleanup removes the temp upload. Best effort on every terminal path:
// deletion errors are logged and swallowed.
func (r *Runner) cleanup(filePath string, sink *jobSink) {
	if filePath == "" {
		return
	}
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return
	}
	if err := os.Remove(filePath); err != nil {
		r.logger.Warn().Err(err).Str("path", filePath).Msg("failed to remove temporary file")
		return
	}
	sink.Logf("Cleaned up temporary file")
}

func (r *Runner) notifyCompleted(ctx context.Context, job models.IngestionJob, created, failed int) {
	if r.notifications == nil {
		return
	}
	if err := r.notifications.NotifyIngestionCompleted(ctx, job.TenantID, job.ID, job.FileName, created, failed); err != nil {
		r.logger.Warn().Err(err).Str("job_id", job.ID).Msg("failed to record completion notification")
	}
}

func (r *Runner) notifyFailed(ctx context.Context, job models.IngestionJob, reason string) {
	if r.notifications == nil {
		return
	}
	if err := r.notifications.NotifyIngestionFailed(ctx, job.TenantID, job.ID, job.FileName, reason); err != nil {
		r.logger.Warn().Err(err).Str("job_id", job.ID).Msg("failed to record failure notification")
	}
}

// jobSink appends timestamped log lines and progress to the job record so
// pollers can follow along. Persistence failures are logged and swallowed:
// visibility must never take down the job.
type jobSink struct {
	ctx    context.Context
	jobID  string
	jobs   repository.JobRepository
	logger zerolog.Logger
}

func (s *jobSink) Logf(format string, args ...interface{}) {
	line := fmt.Sprintf("[%s] %s\n", time.Now().UTC().Format("2006-01-02 15:04:05"), fmt.Sprintf(format, args...))
	if err := s.jobs.AppendLog(s.ctx, s.jobID, line); err != nil {
		s.logger.Warn().Err(err).Msg("failed to append job log")
	}
}

func (s *jobSink) Progress(processed, total int) {
	if err := s.jobs.UpdateProgress(s.ctx, s.jobID, processed, total); err != nil {
		s.logger.Warn().Err(err).Msg("failed to persist job progress")
	}
}
