package ingest

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/meterflow/meterflow-api/internal/models"
)

// Sink receives human-readable milestone lines during parsing and writing.
// The job runner backs it with the job's append-only log; the synchronous
// ingest path uses NopSink.
type Sink interface {
	Logf(format string, args ...interface{})
}

// ProgressSink additionally receives row-count progress after every chunk.
type ProgressSink interface {
	Sink
	Progress(processed, total int)
}

type nopSink struct{}

func (nopSink) Logf(string, ...interface{}) {}
func (nopSink) Progress(int, int)           {}

// NopSink discards all milestones.
var NopSink ProgressSink = nopSink{}

// Parser turns raw file bytes into normalized measurements stamped with the
// caller-supplied tenant. The returned slice contains only rows that resolved
// a device id, a metric and a parseable timestamp; everything else is dropped
// silently. A parser error means the input was structurally unreadable and is
// fatal for the job.
type Parser interface {
	Parse(tenantID string, data []byte, sink Sink) ([]models.Measurement, error)
}

// ParserFor selects the parser strategy for a source kind.
func ParserFor(kind models.SourceKind) (Parser, error) {
	switch kind {
	case models.SourceKindJSON:
		return &jsonParser{}, nil
	case models.SourceKindCSV:
		return &csvParser{}, nil
	default:
		return nil, errors.Errorf("unsupported source kind: %s", kind)
	}
}

// timestampLayouts are tried in order after RFC3339.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// newMeasurementID returns a time-ordered UUIDv7, falling back to v4 if the
// system clock source is unavailable.
func newMeasurementID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
