package ingest

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/meterflow/meterflow-api/internal/models"
)

// Column-name synonyms tried in order when mapping loosely-specified CSV
// headers onto the measurement schema. First synonym with a non-empty value
// wins.
var (
	deviceIDColumns  = []string{"device_id", "deviceid", "device", "location", "sensor", "sensor_id", "name"}
	metricColumns    = []string{"metric", "parameter", "measurement", "type", "metric_name"}
	timestampColumns = []string{"recorded_at", "timestamp", "time", "datetime", "date", "created_at"}
	valueColumns     = []string{"value", "reading", "measurement", "amount"}

	consumedColumns = func() map[string]struct{} {
		skip := make(map[string]struct{})
		for _, group := range [][]string{deviceIDColumns, metricColumns, timestampColumns, valueColumns, {"tags"}} {
			for _, col := range group {
				skip[col] = struct{}{}
			}
		}
		return skip
	}()
)

type csvParser struct{}

func (p *csvParser) Parse(tenantID string, data []byte, sink Sink) ([]models.Measurement, error) {
	sink.Logf("Parsing CSV content")

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read CSV header")
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}

	var records []models.Measurement
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "read CSV row")
		}

		fields := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(row) {
				fields[col] = row[i]
			}
		}

		if m, ok := parseCSVRow(tenantID, fields); ok {
			records = append(records, m)
		}
	}
	return records, nil
}

// parseCSVRow maps one data row onto a measurement. Rows without a resolvable
// device id or timestamp are dropped, never errored.
func parseCSVRow(tenantID string, fields map[string]string) (models.Measurement, bool) {
	deviceID := firstMatch(fields, deviceIDColumns)
	rawTimestamp := firstMatch(fields, timestampColumns)
	if deviceID == "" || rawTimestamp == "" {
		return models.Measurement{}, false
	}
	recordedAt, ok := parseTimestamp(rawTimestamp)
	if !ok {
		return models.Measurement{}, false
	}

	metric := firstMatch(fields, metricColumns)
	if metric == "" {
		metric = "unknown"
	}

	var value *float64
	if raw := firstMatch(fields, valueColumns); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			value = &v
		}
	}

	tags := make(map[string]interface{})
	for col, val := range fields {
		if _, consumed := consumedColumns[col]; consumed {
			continue
		}
		if strings.TrimSpace(val) == "" {
			continue
		}
		tags[col] = val
	}
	if raw := strings.TrimSpace(fields["tags"]); raw != "" {
		var parsed map[string]interface{}
		if err := json.Unmarshal([]byte(raw), &parsed); err == nil {
			for k, v := range parsed {
				tags[k] = v
			}
		}
	}
	if len(tags) == 0 {
		tags = nil
	}

	return models.Measurement{
		ID:         newMeasurementID(),
		TenantID:   tenantID,
		DeviceID:   deviceID,
		Metric:     metric,
		RecordedAt: recordedAt,
		Value:      value,
		Tags:       tags,
	}, true
}

func firstMatch(fields map[string]string, columns []string) string {
	for _, col := range columns {
		if val := strings.TrimSpace(fields[col]); val != "" {
			return val
		}
	}
	return ""
}
