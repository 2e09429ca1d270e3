package temporal

import "time"

// TaskQueueName is the name of the Temporal task queue used for MeterFlow ingestion workflows.
const TaskQueueName = "METERFLOW_INGEST"

// IngestWorkflowIDPrefix is the prefix used for MeterFlow ingestion workflow IDs.
// The job id is appended so Temporal rejects a second dispatch of the same job.
const IngestWorkflowIDPrefix = "meterflow-ingest-"

// DefaultActivityTimeout is the default timeout duration for Temporal activities in MeterFlow ingestion workflows.
const DefaultActivityTimeout = 10 * time.Minute

// IngestionParams defines the input for MeterFlow ingestion workflows.
type IngestionParams struct {
	TenantID string
	JobID    string
}

// WorkflowID builds the deterministic workflow id for a job.
func WorkflowID(jobID string) string {
	return IngestWorkflowIDPrefix + jobID
}
