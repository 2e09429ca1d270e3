package workflows

import (
	"time"

	"go.temporal.io/sdk/workflow"

	"github.com/meterflow/meterflow-api/internal/ingest"
	"github.com/meterflow/meterflow-api/internal/temporal"
	"github.com/meterflow/meterflow-api/internal/temporal/activities"
)

// IngestionWorkflow drives one file ingestion job. The heavy lifting happens
// in a single activity; the workflow exists for dedupe (workflow id embeds
// the job id) and retry of transient infrastructure failures.
func IngestionWorkflow(ctx workflow.Context, params temporal.IngestionParams) error {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: temporal.DefaultActivityTimeout,
		HeartbeatTimeout:    30 * time.Second,
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	logger := workflow.GetLogger(ctx)
	logger.Info("Starting ingestion workflow", "TenantID", params.TenantID, "JobID", params.JobID)

	// Create an instance of activities struct.
	// The actual implementation is on the worker; this is just a proxy.
	var a *activities.Activities

	var result ingest.Result
	if err := workflow.ExecuteActivity(ctx, a.RunIngestionActivity, params).Get(ctx, &result); err != nil {
		logger.Error("Ingestion activity failed.", "error", err)
		return err
	}

	if result.Error != "" {
		// The job was marked failed in the database; the workflow itself is done.
		logger.Warn("Ingestion job finished with failure.", "JobID", params.JobID, "error", result.Error)
		return nil
	}

	logger.Info("Ingestion workflow completed successfully.", "JobID", params.JobID, "created", result.Created, "failed", result.Failed)
	return nil
}
