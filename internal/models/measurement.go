package models

import "time"

// Measurement is one normalized time-series data point. It is constructed by
// a parser, handed to the batch writer and never mutated afterwards.
type Measurement struct {
	ID         string                 `json:"id" db:"id"`
	TenantID   string                 `json:"tenant_id" db:"tenant_id"`
	DeviceID   string                 `json:"device_id" db:"device_id"`
	Metric     string                 `json:"metric" db:"metric"`
	RecordedAt time.Time              `json:"recorded_at" db:"recorded_at"`
	Value      *float64               `json:"value" db:"value"`
	Tags       map[string]interface{} `json:"tags,omitempty" db:"tags"`
}
