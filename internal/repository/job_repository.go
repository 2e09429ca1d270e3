package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/meterflow/meterflow-api/internal/models"
)

type JobRepository interface {
	Create(ctx context.Context, job models.IngestionJob) (models.IngestionJob, error)
	GetByID(ctx context.Context, jobID string) (models.IngestionJob, error)
	Get(ctx context.Context, tenantID, jobID string) (models.IngestionJob, error)
	List(ctx context.Context, tenantID string, limit, offset int) ([]models.IngestionJob, error)
	MarkProcessing(ctx context.Context, jobID, taskID string) error
	SetTotalRows(ctx context.Context, jobID string, total int) error
	UpdateProgress(ctx context.Context, jobID string, processed, total int) error
	AppendLog(ctx context.Context, jobID, line string) error
	MarkCompleted(ctx context.Context, jobID string, created, failed int) error
	MarkFailed(ctx context.Context, jobID, errorMessage string) error
	Stats(ctx context.Context, tenantID string, days int) (models.JobStats, error)
}

type jobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) JobRepository {
	return &jobRepository{db: db}
}

const jobColumns = `id, tenant_id, source_kind, file_name, file_path, status, progress,
	total_rows, processed_rows, failed_rows, error_message, logs, task_id,
	created_at, started_at, finished_at`

func (r *jobRepository) Create(ctx context.Context, job models.IngestionJob) (models.IngestionJob, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return job, err
	}
	job.ID = id.String()
	job.Status = models.JobStatusPending

	const query = `
		INSERT INTO tenant.ingestion_jobs (id, tenant_id, source_kind, file_name, file_path, status, logs)
		VALUES ($1, $2, $3, $4, $5, $6, '')
		RETURNING created_at;
	`
	err = r.db.QueryRowContext(ctx, query,
		job.ID,
		job.TenantID,
		job.SourceKind,
		job.FileName,
		job.FilePath,
		job.Status,
	).Scan(&job.CreatedAt)
	return job, err
}

func (r *jobRepository) GetByID(ctx context.Context, jobID string) (models.IngestionJob, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM tenant.ingestion_jobs
		WHERE id = $1;
	`
	return scanJob(r.db.QueryRowContext(ctx, query, jobID))
}

func (r *jobRepository) Get(ctx context.Context, tenantID, jobID string) (models.IngestionJob, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM tenant.ingestion_jobs
		WHERE id = $1 AND tenant_id = $2;
	`
	return scanJob(r.db.QueryRowContext(ctx, query, jobID, tenantID))
}

func (r *jobRepository) List(ctx context.Context, tenantID string, limit, offset int) ([]models.IngestionJob, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM tenant.ingestion_jobs
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2
		OFFSET $3;
	`
	rows, err := r.db.QueryContext(ctx, query, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := make([]models.IngestionJob, 0, limit)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *jobRepository) MarkProcessing(ctx context.Context, jobID, taskID string) error {
	const query = `
		UPDATE tenant.ingestion_jobs
		SET status = 'processing', started_at = NOW(), task_id = NULLIF($2, '')
		WHERE id = $1;
	`
	_, err := r.db.ExecContext(ctx, query, jobID, taskID)
	return err
}

func (r *jobRepository) SetTotalRows(ctx context.Context, jobID string, total int) error {
	const query = `
		UPDATE tenant.ingestion_jobs
		SET total_rows = $2
		WHERE id = $1;
	`
	_, err := r.db.ExecContext(ctx, query, jobID, total)
	return err
}

func (r *jobRepository) UpdateProgress(ctx context.Context, jobID string, processed, total int) error {
	progress := 0
	if total > 0 {
		progress = processed * 100 / total
	}
	const query = `
		UPDATE tenant.ingestion_jobs
		SET processed_rows = $2, total_rows = $3, progress = $4
		WHERE id = $1;
	`
	_, err := r.db.ExecContext(ctx, query, jobID, processed, total, progress)
	return err
}

func (r *jobRepository) AppendLog(ctx context.Context, jobID, line string) error {
	const query = `
		UPDATE tenant.ingestion_jobs
		SET logs = logs || $2
		WHERE id = $1;
	`
	_, err := r.db.ExecContext(ctx, query, jobID, line)
	return err
}

func (r *jobRepository) MarkCompleted(ctx context.Context, jobID string, created, failed int) error {
	const query = `
		UPDATE tenant.ingestion_jobs
		SET status = 'completed', progress = 100, processed_rows = $2, failed_rows = $3, finished_at = NOW()
		WHERE id = $1;
	`
	_, err := r.db.ExecContext(ctx, query, jobID, created, failed)
	return err
}

func (r *jobRepository) MarkFailed(ctx context.Context, jobID, errorMessage string) error {
	const query = `
		UPDATE tenant.ingestion_jobs
		SET status = 'failed', error_message = NULLIF($2, ''), finished_at = NOW()
		WHERE id = $1;
	`
	_, err := r.db.ExecContext(ctx, query, jobID, errorMessage)
	return err
}

func (r *jobRepository) Stats(ctx context.Context, tenantID string, days int) (models.JobStats, error) {
	const query = `
		WITH days AS (
			SELECT generate_series(
				(current_date - ($1 - 1) * INTERVAL '1 day'),
				current_date,
				'1 day'::INTERVAL
			) AS day
		)
		SELECT
			days.day,
			COALESCE(SUM((j.status = 'completed')::int), 0)  AS completed,
			COALESCE(SUM((j.status = 'failed')::int), 0)     AS failed,
			COALESCE(SUM((j.status = 'processing')::int), 0) AS processing,
			COALESCE(SUM((j.status = 'pending')::int), 0)    AS pending
		FROM days
		LEFT JOIN tenant.ingestion_jobs j
		ON j.created_at::DATE = days.day AND j.tenant_id = $2
		GROUP BY days.day
		ORDER BY days.day;
	`

	rows, err := r.db.QueryContext(ctx, query, days, tenantID)
	if err != nil {
		return models.JobStats{}, err
	}
	defer rows.Close()

	var perDay []models.JobStatDay
	for rows.Next() {
		var day models.JobStatDay
		if err := rows.Scan(&day.Day, &day.Completed, &day.Failed, &day.Processing, &day.Pending); err != nil {
			return models.JobStats{}, err
		}
		perDay = append(perDay, day)
	}
	if err := rows.Err(); err != nil {
		return models.JobStats{}, err
	}

	const totalQuery = `
		SELECT
			COALESCE(COUNT(*), 0) AS total,
			COALESCE(SUM((status = 'completed')::int), 0)  AS completed,
			COALESCE(SUM((status = 'failed')::int), 0)     AS failed,
			COALESCE(SUM((status = 'processing')::int), 0) AS processing
		FROM tenant.ingestion_jobs
		WHERE tenant_id = $1;
	`

	var stats models.JobStats
	row := r.db.QueryRowContext(ctx, totalQuery, tenantID)
	if err := row.Scan(&stats.Total, &stats.Completed, &stats.Failed, &stats.Processing); err != nil {
		return models.JobStats{}, err
	}
	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Completed) / float64(stats.Total) * 100.0
	}
	stats.PerDay = perDay
	return stats, nil
}

func scanJob(scanner interface {
	Scan(dest ...interface{}) error
}) (models.IngestionJob, error) {
	var (
		job       models.IngestionJob
		errMsg    sql.NullString
		taskID    sql.NullString
		startedAt sql.NullTime
		finished  sql.NullTime
	)
	err := scanner.Scan(
		&job.ID,
		&job.TenantID,
		&job.SourceKind,
		&job.FileName,
		&job.FilePath,
		&job.Status,
		&job.Progress,
		&job.TotalRows,
		&job.ProcessedRows,
		&job.FailedRows,
		&errMsg,
		&job.Logs,
		&taskID,
		&job.CreatedAt,
		&startedAt,
		&finished,
	)
	if err != nil {
		return job, err
	}
	if errMsg.Valid {
		job.ErrorMessage = &errMsg.String
	}
	if taskID.Valid {
		job.TaskID = &taskID.String
	}
	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if finished.Valid {
		job.FinishedAt = &finished.Time
	}
	return job, nil
}
