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

func newMeasurementRepoMock(t *testing.T) (MeasurementRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewMeasurementRepository(db), mock
}

func floatPtr(v float64) *float64 { return &v }

func TestMeasurementRepositoryInsertBatch(t *testing.T) {
	repo, mock := newMeasurementRepoMock(t)

	recordedAt := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	records := []models.Measurement{
		{
			ID: "m-1", TenantID: "tenant-1", DeviceID: "s1", Metric: "temp",
			RecordedAt: recordedAt, Value: floatPtr(21.5),
			Tags: map[string]interface{}{"city": "Graz"},
		},
		{
			ID: "m-2", TenantID: "tenant-1", DeviceID: "s2", Metric: "temp",
			RecordedAt: recordedAt,
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (tenant_id, device_id, metric, recorded_at) DO NOTHING")).
		WithArgs(
			"m-1", "tenant-1", "s1", "temp", recordedAt, 21.5, []byte(`{"city":"Graz"}`),
			"m-2", "tenant-1", "s2", "temp", recordedAt, nil, nil,
		).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	require.NoError(t, repo.InsertBatch(context.Background(), records))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMeasurementRepositoryInsertBatchEmpty(t *testing.T) {
	repo, mock := newMeasurementRepoMock(t)

	require.NoError(t, repo.InsertBatch(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMeasurementRepositoryListWithFilters(t *testing.T) {
	repo, mock := newMeasurementRepoMock(t)

	since := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	recordedAt := since.Add(10 * time.Hour)

	columns := []string{"id", "tenant_id", "device_id", "metric", "recorded_at", "value", "tags"}
	mock.ExpectQuery(regexp.QuoteMeta("FROM tenant.measurements")).
		WithArgs("tenant-1", "s1", "temp", since, 50).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			"m-1", "tenant-1", "s1", "temp", recordedAt, 21.5, []byte(`{"city":"Graz"}`),
		))

	measurements, err := repo.List(context.Background(), "tenant-1", MeasurementFilter{
		DeviceID: "s1",
		Metric:   "temp",
		Since:    &since,
		Limit:    50,
	})
	require.NoError(t, err)
	require.Len(t, measurements, 1)

	m := measurements[0]
	assert.Equal(t, "s1", m.DeviceID)
	require.NotNil(t, m.Value)
	assert.Equal(t, 21.5, *m.Value)
	assert.Equal(t, map[string]interface{}{"city": "Graz"}, m.Tags)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMeasurementRepositoryListDefaultsLimit(t *testing.T) {
	repo, mock := newMeasurementRepoMock(t)

	columns := []string{"id", "tenant_id", "device_id", "metric", "recorded_at", "value", "tags"}
	mock.ExpectQuery(regexp.QuoteMeta("FROM tenant.measurements")).
		WithArgs("tenant-1", 100).
		WillReturnRows(sqlmock.NewRows(columns))

	_, err := repo.List(context.Background(), "tenant-1", MeasurementFilter{Limit: 5000})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
