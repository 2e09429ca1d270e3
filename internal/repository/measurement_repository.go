package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/meterflow/meterflow-api/internal/models"
)

// MeasurementFilter narrows tenant-scoped listings.
type MeasurementFilter struct {
	DeviceID string
	Metric   string
	Since    *time.Time
	Until    *time.Time
	Limit    int
}

type MeasurementRepository interface {
	// InsertBatch writes all records in one transaction. Rows colliding with
	// the (tenant_id, device_id, metric, recorded_at) unique key are skipped
	// silently.
	InsertBatch(ctx context.Context, records []models.Measurement) error
	List(ctx context.Context, tenantID string, filter MeasurementFilter) ([]models.Measurement, error)
}

type measurementRepository struct {
	db *sql.DB
}

func NewMeasurementRepository(db *sql.DB) MeasurementRepository {
	return &measurementRepository{db: db}
}

func (r *measurementRepository) InsertBatch(ctx context.Context, records []models.Measurement) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch transaction: %w", err)
	}
	defer tx.Rollback()

	const fieldsPerRow = 7
	placeholders := make([]string, 0, len(records))
	args := make([]interface{}, 0, len(records)*fieldsPerRow)

	for i, m := range records {
		base := i * fieldsPerRow
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7))

		var tags interface{}
		if len(m.Tags) > 0 {
			encoded, err := json.Marshal(m.Tags)
			if err != nil {
				return fmt.Errorf("marshal tags for device %s: %w", m.DeviceID, err)
			}
			tags = encoded
		}

		var value interface{}
		if m.Value != nil {
			value = *m.Value
		}

		args = append(args, m.ID, m.TenantID, m.DeviceID, m.Metric, m.RecordedAt, value, tags)
	}

	query := `
		INSERT INTO tenant.measurements (id, tenant_id, device_id, metric, recorded_at, value, tags)
		VALUES ` + strings.Join(placeholders, ", ") + `
		ON CONFLICT (tenant_id, device_id, metric, recorded_at) DO NOTHING;
	`

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("bulk insert measurements: %w", err)
	}
	return tx.Commit()
}

func (r *measurementRepository) List(ctx context.Context, tenantID string, filter MeasurementFilter) ([]models.Measurement, error) {
	if filter.Limit <= 0 || filter.Limit > 1000 {
		filter.Limit = 100
	}

	query := `
		SELECT id, tenant_id, device_id, metric, recorded_at, value, tags
		FROM tenant.measurements
		WHERE tenant_id = $1
	`
	args := []interface{}{tenantID}

	if filter.DeviceID != "" {
		args = append(args, filter.DeviceID)
		query += fmt.Sprintf(" AND device_id = $%d", len(args))
	}
	if filter.Metric != "" {
		args = append(args, filter.Metric)
		query += fmt.Sprintf(" AND metric = $%d", len(args))
	}
	if filter.Since != nil {
		args = append(args, *filter.Since)
		query += fmt.Sprintf(" AND recorded_at >= $%d", len(args))
	}
	if filter.Until != nil {
		args = append(args, *filter.Until)
		query += fmt.Sprintf(" AND recorded_at <= $%d", len(args))
	}

	args = append(args, filter.Limit)
	query += fmt.Sprintf(" ORDER BY recorded_at DESC LIMIT $%d;", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var measurements []models.Measurement
	for rows.Next() {
		var (
			m       models.Measurement
			value   sql.NullFloat64
			rawTags []byte
		)
		if err := rows.Scan(&m.ID, &m.TenantID, &m.DeviceID, &m.Metric, &m.RecordedAt, &value, &rawTags); err != nil {
			return nil, err
		}
		if value.Valid {
			m.Value = &value.Float64
		}
		if len(rawTags) > 0 {
			if err := json.Unmarshal(rawTags, &m.Tags); err != nil {
				return nil, fmt.Errorf("decode tags for measurement %s: %w", m.ID, err)
			}
		}
		measurements = append(measurements, m)
	}
	return measurements, rows.Err()
}
