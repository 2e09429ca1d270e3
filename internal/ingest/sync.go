package ingest

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/meterflow/meterflow-api/internal/models"
)

// Inline runs the detect/parse/write path synchronously for small inputs,
// without a job record. It returns only the created count; chunk failures
// surface solely as a reduced count.
func Inline(ctx context.Context, store BulkInserter, tenantID string, kind models.SourceKind, data []byte, chunkSize int, logger zerolog.Logger) (int, error) {
	parser, err := ParserFor(kind)
	if err != nil {
		return 0, err
	}
	records, err := parser.Parse(tenantID, data, NopSink)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	writer := NewBatchWriter(store, chunkSize, logger)
	created, _ := writer.Write(ctx, records, NopSink)
	return created, nil
}
