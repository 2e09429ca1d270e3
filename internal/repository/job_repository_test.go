package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meterflow/meterflow-api/internal/models"
)

func newJobRepoMock(t *testing.T) (JobRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewJobRepository(db), mock
}

func TestJobRepositoryCreate(t *testing.T) {
	repo, mock := newJobRepoMock(t)

	createdAt := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO tenant.ingestion_jobs")).
		WithArgs(sqlmock.AnyArg(), "tenant-1", models.SourceKindCSV, "data.csv", "/tmp/data.csv", models.JobStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(createdAt))

	job, err := repo.Create(context.Background(), models.IngestionJob{
		TenantID:   "tenant-1",
		SourceKind: models.SourceKindCSV,
		FileName:   "data.csv",
		FilePath:   "/tmp/data.csv",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, models.JobStatusPending, job.Status)
	assert.Equal(t, createdAt, job.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepositoryUpdateProgress(t *testing.T) {
	repo, mock := newJobRepoMock(t)

	// 1500 of 3000 rows is 50 percent.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE tenant.ingestion_jobs")).
		WithArgs("job-1", 1500, 3000, 50).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateProgress(context.Background(), "job-1", 1500, 3000))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepositoryUpdateProgressZeroTotal(t *testing.T) {
	repo, mock := newJobRepoMock(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE tenant.ingestion_jobs")).
		WithArgs("job-1", 0, 0, 0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateProgress(context.Background(), "job-1", 0, 0))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepositoryMarkCompleted(t *testing.T) {
	repo, mock := newJobRepoMock(t)

	mock.ExpectExec(regexp.QuoteMeta("SET status = 'completed', progress = 100")).
		WithArgs("job-1", 950, 50).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkCompleted(context.Background(), "job-1", 950, 50))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepositoryMarkFailed(t *testing.T) {
	repo, mock := newJobRepoMock(t)

	mock.ExpectExec(regexp.QuoteMeta("SET status = 'failed'")).
		WithArgs("job-1", "boom").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkFailed(context.Background(), "job-1", "boom"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepositoryAppendLog(t *testing.T) {
	repo, mock := newJobRepoMock(t)

	mock.ExpectExec(regexp.QuoteMeta("SET logs = logs ||")).
		WithArgs("job-1", "[2024-03-01 10:00:00] Parsing CSV content\n").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.AppendLog(context.Background(), "job-1", "[2024-03-01 10:00:00] Parsing CSV content\n"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepositoryGetScansNullables(t *testing.T) {
	repo, mock := newJobRepoMock(t)

	createdAt := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	columns := []string{
		"id", "tenant_id", "source_kind", "file_name", "file_path", "status", "progress",
		"total_rows", "processed_rows", "failed_rows", "error_message", "logs", "task_id",
		"created_at", "started_at", "finished_at",
	}
	mock.ExpectQuery(regexp.QuoteMeta("FROM tenant.ingestion_jobs")).
		WithArgs("job-1", "tenant-1").
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			"job-1", "tenant-1", "csv", "data.csv", "/tmp/data.csv", "pending", 0,
			0, 0, 0, nil, "", nil,
			createdAt, nil, nil,
		))

	job, err := repo.Get(context.Background(), "tenant-1", "job-1")
	require.NoError(t, err)

	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, models.JobStatusPending, job.Status)
	assert.Nil(t, job.ErrorMessage)
	assert.Nil(t, job.TaskID)
	assert.Nil(t, job.StartedAt)
	assert.Nil(t, job.FinishedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
