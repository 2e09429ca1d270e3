package ingest

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/meterflow/meterflow-api/internal/models"
)

// DefaultChunkSize is the number of measurements written per storage
// transaction when the configuration does not override it.
const DefaultChunkSize = 1000

// BulkInserter is the storage capability the writer relies on: a single
// atomic bulk insert with ignore-conflicts semantics, so duplicate-key rows
// are skipped silently instead of failing the chunk.
type BulkInserter interface {
	InsertBatch(ctx context.Context, records []models.Measurement) error
}

// BatchWriter persists parsed measurements in fixed-size chunks. Failure
// granularity is per chunk: when a chunk's insert errors, the whole chunk
// counts as failed and processing continues with the next one.
type BatchWriter struct {
	store     BulkInserter
	chunkSize int
	logger    zerolog.Logger
}

func NewBatchWriter(store BulkInserter, chunkSize int, logger zerolog.Logger) *BatchWriter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &BatchWriter{
		store:     store,
		chunkSize: chunkSize,
		logger:    logger.With().Str("component", "batch_writer").Logger(),
	}
}

// Write persists records chunk by chunk, reporting progress to the sink after
// every chunk. Returns the aggregate created and failed counts.
func (w *BatchWriter) Write(ctx context.Context, records []models.Measurement, sink ProgressSink) (created, failed int) {
	total := len(records)

	for start := 0; start < total; start += w.chunkSize {
		end := start + w.chunkSize
		if end > total {
			end = total
		}
		chunk := records[start:end]
		chunkIndex := start/w.chunkSize + 1

		if err := w.store.InsertBatch(ctx, chunk); err != nil {
			w.logger.Error().Err(err).Int("chunk", chunkIndex).Int("size", len(chunk)).Msg("chunk insert failed")
			sink.Logf("Batch %d failed: %v", chunkIndex, err)
			failed += len(chunk)
		} else {
			created += len(chunk)
		}

		sink.Progress(created+failed, total)
	}

	return created, failed
}
