package ingest

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/meterflow/meterflow-api/internal/models"
)

// openAQTagKeys are the element keys copied into the tag map when present and
// non-null. "location" intentionally lands in both the device id and the
// tags.
var openAQTagKeys = []string{"city", "country", "unit", "location", "coordinates"}

type jsonParser struct{}

func (p *jsonParser) Parse(tenantID string, data []byte, sink Sink) ([]models.Measurement, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, errors.New("empty JSON document")
	}

	switch trimmed[0] {
	case '[':
		var items []map[string]interface{}
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, errors.Wrap(err, "decode JSON array")
		}
		sink.Logf("Detected array format with %d items", len(items))
		return parseOpenAQItems(tenantID, items), nil
	case '{':
		var doc map[string]interface{}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, errors.Wrap(err, "decode JSON object")
		}
		if _, hasRows := doc["rows"]; hasRows {
			sink.Logf("Detected standard format with rows")
			return parseRowsDocument(tenantID, doc), nil
		}
		sink.Logf("Detected single object, treating as array")
		return parseOpenAQItems(tenantID, []map[string]interface{}{doc}), nil
	default:
		return nil, errors.Errorf("unsupported JSON structure starting with %q", trimmed[0])
	}
}

// parseOpenAQItems handles the OpenAQ-style array shape: location maps to the
// device id, parameter to the metric, and the timestamp lives in a nested
// date object (utc, falling back to local) or in date directly as a scalar.
func parseOpenAQItems(tenantID string, items []map[string]interface{}) []models.Measurement {
	var records []models.Measurement
	for _, item := range items {
		deviceID := stringValue(item["location"])
		metric := stringValue(item["parameter"])

		var rawTimestamp string
		switch date := item["date"].(type) {
		case map[string]interface{}:
			rawTimestamp = stringValue(date["utc"])
			if rawTimestamp == "" {
				rawTimestamp = stringValue(date["local"])
			}
		default:
			rawTimestamp = stringValue(date)
		}

		if deviceID == "" || metric == "" || rawTimestamp == "" {
			continue
		}
		recordedAt, ok := parseTimestamp(rawTimestamp)
		if !ok {
			continue
		}

		tags := make(map[string]interface{})
		for _, key := range openAQTagKeys {
			if val, present := item[key]; present && val != nil {
				tags[key] = val
			}
		}
		if len(tags) == 0 {
			tags = nil
		}

		records = append(records, models.Measurement{
			ID:         newMeasurementID(),
			TenantID:   tenantID,
			DeviceID:   deviceID,
			Metric:     metric,
			RecordedAt: recordedAt,
			Value:      numericValue(item["value"]),
			Tags:       tags,
		})
	}
	return records
}

// parseRowsDocument handles the object-with-rows shape: top-level device_id
// and metric act as defaults that individual rows may override.
func parseRowsDocument(tenantID string, doc map[string]interface{}) []models.Measurement {
	defaultDevice := stringValue(doc["device_id"])
	defaultMetric := stringValue(doc["metric"])

	rows, _ := doc["rows"].([]interface{})

	var records []models.Measurement
	for _, raw := range rows {
		row, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}

		deviceID := stringValue(row["device_id"])
		if deviceID == "" {
			deviceID = defaultDevice
		}
		metric := stringValue(row["metric"])
		if metric == "" {
			metric = defaultMetric
		}
		rawTimestamp := stringValue(row["recorded_at"])

		if deviceID == "" || metric == "" || rawTimestamp == "" {
			continue
		}
		recordedAt, ok := parseTimestamp(rawTimestamp)
		if !ok {
			continue
		}

		tags, _ := row["tags"].(map[string]interface{})
		if len(tags) == 0 {
			tags = nil
		}

		records = append(records, models.Measurement{
			ID:         newMeasurementID(),
			TenantID:   tenantID,
			DeviceID:   deviceID,
			Metric:     metric,
			RecordedAt: recordedAt,
			Value:      numericValue(row["value"]),
			Tags:       tags,
		})
	}
	return records
}

func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return ""
	}
}

func numericValue(v interface{}) *float64 {
	switch val := v.(type) {
	case float64:
		return &val
	case string:
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return &parsed
		}
	}
	return nil
}
