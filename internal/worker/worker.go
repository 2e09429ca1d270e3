package worker

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.temporal.io/api/serviceerror"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/meterflow/meterflow-api/internal/temporal"
	"github.com/meterflow/meterflow-api/internal/temporal/workflows"
)

type SweeperConfig struct {
	DB             *sql.DB
	TemporalClient temporalclient.Client
	PollInterval   time.Duration
	// DispatchGrace is how long a pending job may sit without a task id
	// before the sweeper assumes the original dispatch was lost.
	DispatchGrace time.Duration
}

// Sweeper re-dispatches ingestion jobs whose workflow start was lost, for
// example when the API crashed between creating the job row and starting the
// workflow. Duplicate dispatch is prevented by the deterministic workflow id.
type Sweeper struct {
	cfg    SweeperConfig
	logger zerolog.Logger
}

func NewSweeper(cfg SweeperConfig, logger zerolog.Logger) *Sweeper {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.DispatchGrace <= 0 {
		cfg.DispatchGrace = 2 * time.Minute
	}
	return &Sweeper{
		cfg:    cfg,
		logger: logger.With().Str("component", "job_sweeper").Logger(),
	}
}

func (s *Sweeper) Start(ctx context.Context) error {
	s.logger.Info().Dur("poll_interval", s.cfg.PollInterval).Msg("Sweeper started, polling for stuck jobs...")
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.redispatchNextStuckJob(ctx); err != nil {
				// Log the error, but keep polling.
				s.logger.Error().Err(err).Msg("error re-dispatching stuck job")
			}
		}
	}
}

func (s *Sweeper) redispatchNextStuckJob(ctx context.Context) error {
	tx, err := s.cfg.DB.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	var jobID, tenantID string
	query := `
		SELECT id, tenant_id
		FROM tenant.ingestion_jobs
		WHERE status = 'pending'
		  AND task_id IS NULL
		  AND created_at < NOW() - $1::interval
		ORDER BY created_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	`
	interval := s.cfg.DispatchGrace.String()
	if err := tx.QueryRowContext(ctx, query, interval).Scan(&jobID, &tenantID); err != nil {
		if err == sql.ErrNoRows {
			return nil // Nothing stuck.
		}
		return errors.Wrap(err, "failed to fetch next stuck job")
	}

	// Stamp the task id inside the row lock so the next sweep skips this job
	// even if the workflow has not picked it up yet.
	workflowID := temporal.WorkflowID(jobID)
	if _, err := tx.ExecContext(ctx, `
		UPDATE tenant.ingestion_jobs
		SET task_id = $2
		WHERE id = $1
	`, jobID, workflowID); err != nil {
		return errors.Wrap(err, "failed to stamp task id")
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}

	opts := temporalclient.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: temporal.TaskQueueName,
	}
	params := temporal.IngestionParams{TenantID: tenantID, JobID: jobID}
	if _, err := s.cfg.TemporalClient.ExecuteWorkflow(ctx, opts, workflows.IngestionWorkflow, params); err != nil {
		var alreadyStarted *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &alreadyStarted) {
			s.logger.Debug().Str("job_id", jobID).Msg("workflow already running, skipping")
			return nil
		}
		return errors.Wrapf(err, "failed to start workflow for job %s", jobID)
	}

	s.logger.Info().Str("job_id", jobID).Str("workflow_id", workflowID).Msg("re-dispatched stuck job")
	return nil
}
