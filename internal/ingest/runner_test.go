package ingest

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meterflow/meterflow-api/internal/models"
	"github.com/meterflow/meterflow-api/internal/repository"
)

type fakeJobRepo struct {
	job     models.IngestionJob
	missing bool

	logs     strings.Builder
	progress [][2]int
}

func (f *fakeJobRepo) Create(ctx context.Context, job models.IngestionJob) (models.IngestionJob, error) {
	return job, nil
}

func (f *fakeJobRepo) GetByID(ctx context.Context, jobID string) (models.IngestionJob, error) {
	if f.missing || f.job.ID != jobID {
		return models.IngestionJob{}, sql.ErrNoRows
	}
	return f.job, nil
}

func (f *fakeJobRepo) Get(ctx context.Context, tenantID, jobID string) (models.IngestionJob, error) {
	return f.GetByID(ctx, jobID)
}

func (f *fakeJobRepo) List(ctx context.Context, tenantID string, limit, offset int) ([]models.IngestionJob, error) {
	return nil, nil
}

func (f *fakeJobRepo) MarkProcessing(ctx context.Context, jobID, taskID string) error {
	f.job.Status = models.JobStatusProcessing
	if taskID != "" {
		f.job.TaskID = &taskID
	}
	return nil
}

func (f *fakeJobRepo) SetTotalRows(ctx context.Context, jobID string, total int) error {
	f.job.TotalRows = total
	return nil
}

func (f *fakeJobRepo) UpdateProgress(ctx context.Context, jobID string, processed, total int) error {
	f.progress = append(f.progress, [2]int{processed, total})
	f.job.ProcessedRows = processed
	f.job.TotalRows = total
	return nil
}

func (f *fakeJobRepo) AppendLog(ctx context.Context, jobID, line string) error {
	f.logs.WriteString(line)
	return nil
}

func (f *fakeJobRepo) MarkCompleted(ctx context.Context, jobID string, created, failed int) error {
	f.job.Status = models.JobStatusCompleted
	f.job.Progress = 100
	f.job.ProcessedRows = created
	f.job.FailedRows = failed
	return nil
}

func (f *fakeJobRepo) MarkFailed(ctx context.Context, jobID, errorMessage string) error {
	f.job.Status = models.JobStatusFailed
	f.job.ErrorMessage = &errorMessage
	return nil
}

func (f *fakeJobRepo) Stats(ctx context.Context, tenantID string, days int) (models.JobStats, error) {
	return models.JobStats{}, nil
}

type fakeTenantRepo struct {
	missing bool
}

func (f *fakeTenantRepo) CreateTenant(ctx context.Context, name string) (models.Tenant, error) {
	return models.Tenant{Name: name}, nil
}

func (f *fakeTenantRepo) GetTenantByID(ctx context.Context, id string) (models.Tenant, error) {
	if f.missing {
		return models.Tenant{}, sql.ErrNoRows
	}
	return models.Tenant{ID: id}, nil
}

type fakeMeasurementRepo struct {
	calls      int
	failOnCall int
	inserted   []models.Measurement
}

func (f *fakeMeasurementRepo) InsertBatch(ctx context.Context, records []models.Measurement) error {
	f.calls++
	if f.calls == f.failOnCall {
		return errors.New("connection reset")
	}
	f.inserted = append(f.inserted, records...)
	return nil
}

func (f *fakeMeasurementRepo) List(ctx context.Context, tenantID string, filter repository.MeasurementFilter) ([]models.Measurement, error) {
	return nil, nil
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "upload.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func newTestRunner(jobs *fakeJobRepo, measurements *fakeMeasurementRepo, tenants *fakeTenantRepo) *Runner {
	return NewRunner(jobs, measurements, tenants, nil, 2, zerolog.Nop())
}

func TestRunnerHappyPath(t *testing.T) {
	path := writeTempFile(t, "device_id,metric,timestamp,value\n"+
		"s1,temp,2024-03-01T10:00:00Z,20\n"+
		"s2,temp,2024-03-01T10:05:00Z,21\n"+
		"s3,temp,2024-03-01T10:10:00Z,22\n")

	jobs := &fakeJobRepo{job: models.IngestionJob{
		ID:         "job-1",
		TenantID:   testTenantID,
		SourceKind: models.SourceKindCSV,
		FileName:   "upload.csv",
		FilePath:   path,
		Status:     models.JobStatusPending,
	}}
	measurements := &fakeMeasurementRepo{}
	runner := newTestRunner(jobs, measurements, &fakeTenantRepo{})

	result := runner.Run(context.Background(), "job-1", "wf-1")

	assert.Empty(t, result.Error)
	assert.False(t, result.NotFound)
	assert.Equal(t, 3, result.Created)
	assert.Equal(t, 0, result.Failed)

	assert.Equal(t, models.JobStatusCompleted, jobs.job.Status)
	assert.Equal(t, 3, jobs.job.ProcessedRows)
	assert.Equal(t, 0, jobs.job.FailedRows)
	assert.Len(t, measurements.inserted, 3)

	// Two chunks of two and one.
	assert.Equal(t, [][2]int{{2, 3}, {3, 3}}, jobs.progress)

	logs := jobs.logs.String()
	assert.Contains(t, logs, "Started processing csv file: upload.csv")
	assert.Contains(t, logs, "Parsed 3 valid records")
	assert.Contains(t, logs, "Completed: 3 records created, 0 failed")
	assert.Contains(t, logs, "Cleaned up temporary file")

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "temp file should be removed")
}

func TestRunnerChunkFailureStillCompletes(t *testing.T) {
	path := writeTempFile(t, "device_id,metric,timestamp,value\n"+
		"s1,temp,2024-03-01T10:00:00Z,20\n"+
		"s2,temp,2024-03-01T10:05:00Z,21\n"+
		"s3,temp,2024-03-01T10:10:00Z,22\n")

	jobs := &fakeJobRepo{job: models.IngestionJob{
		ID:         "job-5",
		TenantID:   testTenantID,
		SourceKind: models.SourceKindCSV,
		FileName:   "upload.csv",
		FilePath:   path,
		Status:     models.JobStatusPending,
	}}
	measurements := &fakeMeasurementRepo{failOnCall: 1}
	runner := newTestRunner(jobs, measurements, &fakeTenantRepo{})

	result := runner.Run(context.Background(), "job-5", "")

	// A failed chunk is accounting, not a job failure.
	assert.Empty(t, result.Error)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 2, result.Failed)

	assert.Equal(t, models.JobStatusCompleted, jobs.job.Status)
	assert.Equal(t, 100, jobs.job.Progress)
	assert.Nil(t, jobs.job.ErrorMessage)
	assert.Equal(t, 1, jobs.job.ProcessedRows)
	assert.Equal(t, 2, jobs.job.FailedRows)
	assert.Len(t, measurements.inserted, 1)

	logs := jobs.logs.String()
	assert.Contains(t, logs, "Batch 1 failed")
	assert.Contains(t, logs, "Completed: 1 records created, 2 failed")
}

func TestRunnerJobNotFound(t *testing.T) {
	jobs := &fakeJobRepo{missing: true}
	runner := newTestRunner(jobs, &fakeMeasurementRepo{}, &fakeTenantRepo{})

	result := runner.Run(context.Background(), "nope", "")

	assert.True(t, result.NotFound)
	assert.Empty(t, result.Error)
}

func TestRunnerMissingFileMarksFailed(t *testing.T) {
	jobs := &fakeJobRepo{job: models.IngestionJob{
		ID:         "job-2",
		TenantID:   testTenantID,
		SourceKind: models.SourceKindCSV,
		FileName:   "gone.csv",
		FilePath:   filepath.Join(t.TempDir(), "does-not-exist.csv"),
		Status:     models.JobStatusPending,
	}}
	runner := newTestRunner(jobs, &fakeMeasurementRepo{}, &fakeTenantRepo{})

	result := runner.Run(context.Background(), "job-2", "")

	assert.Contains(t, result.Error, "file not found")
	assert.Equal(t, models.JobStatusFailed, jobs.job.Status)
	require.NotNil(t, jobs.job.ErrorMessage)
	assert.Contains(t, *jobs.job.ErrorMessage, "file not found")
	assert.Contains(t, jobs.logs.String(), "Error:")
}

func TestRunnerUnknownTenantMarksFailed(t *testing.T) {
	path := writeTempFile(t, "device_id,timestamp\ns1,2024-03-01\n")
	jobs := &fakeJobRepo{job: models.IngestionJob{
		ID:         "job-3",
		TenantID:   testTenantID,
		SourceKind: models.SourceKindCSV,
		FilePath:   path,
		Status:     models.JobStatusPending,
	}}
	runner := newTestRunner(jobs, &fakeMeasurementRepo{}, &fakeTenantRepo{missing: true})

	result := runner.Run(context.Background(), "job-3", "")

	assert.Contains(t, result.Error, "no associated tenant")
	assert.Equal(t, models.JobStatusFailed, jobs.job.Status)
}

func TestRunnerZeroValidRowsCompletes(t *testing.T) {
	path := writeTempFile(t, "device_id,metric,timestamp,value\n")
	jobs := &fakeJobRepo{job: models.IngestionJob{
		ID:         "job-4",
		TenantID:   testTenantID,
		SourceKind: models.SourceKindCSV,
		FileName:   "empty.csv",
		FilePath:   path,
		Status:     models.JobStatusPending,
	}}
	measurements := &fakeMeasurementRepo{}
	runner := newTestRunner(jobs, measurements, &fakeTenantRepo{})

	result := runner.Run(context.Background(), "job-4", "")

	assert.Empty(t, result.Error)
	assert.Equal(t, 0, result.Created)
	assert.Equal(t, models.JobStatusCompleted, jobs.job.Status)
	assert.Empty(t, measurements.inserted)
	assert.Contains(t, jobs.logs.String(), "No valid records found to insert")

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "temp file should be removed")
}
