package activities

import (
	"context"

	"go.temporal.io/sdk/activity"

	"github.com/meterflow/meterflow-api/internal/ingest"
	"github.com/meterflow/meterflow-api/internal/temporal"
)

// Activities hosts the worker-side implementations for ingestion workflows.
// The runner owns the entire job data path; Temporal provides dispatch,
// retries for transient failures, and at-most-one execution per workflow id.
type Activities struct {
	Runner *ingest.Runner
}

// RunIngestionActivity executes the ingestion job identified by the params.
// A populated Result.Error means the job itself failed and was marked so in
// the database; the activity still returns nil so Temporal does not retry a
// job that already reached a terminal state.
func (a *Activities) RunIngestionActivity(ctx context.Context, params temporal.IngestionParams) (*ingest.Result, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Running ingestion job", "tenantID", params.TenantID, "jobID", params.JobID)

	taskID := activity.GetInfo(ctx).WorkflowExecution.ID
	result := a.Runner.Run(ctx, params.JobID, taskID)

	switch {
	case result.NotFound:
		logger.Warn("Ingestion job not found, skipping", "jobID", params.JobID)
	case result.Error != "":
		logger.Error("Ingestion job failed", "jobID", params.JobID, "error", result.Error)
	default:
		logger.Info("Ingestion job completed", "jobID", params.JobID, "created", result.Created, "failed", result.Failed)
	}
	return &result, nil
}
