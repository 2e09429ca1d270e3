package ingest

import (
	"context"
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meterflow/meterflow-api/internal/models"
)

type flakyStore struct {
	calls      int
	failOnCall int
	batches    [][]models.Measurement
}

func (s *flakyStore) InsertBatch(ctx context.Context, records []models.Measurement) error {
	s.calls++
	s.batches = append(s.batches, records)
	if s.calls == s.failOnCall {
		return errors.New("connection reset")
	}
	return nil
}

type captureSink struct {
	lines    []string
	progress [][2]int
}

func (s *captureSink) Logf(format string, args ...interface{}) {
	s.lines = append(s.lines, fmt.Sprintf(format, args...))
}

func (s *captureSink) Progress(processed, total int) {
	s.progress = append(s.progress, [2]int{processed, total})
}

func makeMeasurements(n int) []models.Measurement {
	records := make([]models.Measurement, n)
	for i := range records {
		records[i] = models.Measurement{
			ID:       fmt.Sprintf("id-%d", i),
			DeviceID: "sensor-1",
			Metric:   "temperature",
		}
	}
	return records
}

func TestBatchWriterAllChunksSucceed(t *testing.T) {
	store := &flakyStore{}
	sink := &captureSink{}
	writer := NewBatchWriter(store, 2, zerolog.Nop())

	created, failed := writer.Write(context.Background(), makeMeasurements(5), sink)

	assert.Equal(t, 5, created)
	assert.Equal(t, 0, failed)
	require.Len(t, store.batches, 3)
	assert.Len(t, store.batches[0], 2)
	assert.Len(t, store.batches[2], 1)
	assert.Equal(t, [][2]int{{2, 5}, {4, 5}, {5, 5}}, sink.progress)
	assert.Empty(t, sink.lines)
}

func TestBatchWriterChunkFailureIsIsolated(t *testing.T) {
	store := &flakyStore{failOnCall: 2}
	sink := &captureSink{}
	writer := NewBatchWriter(store, 2, zerolog.Nop())

	created, failed := writer.Write(context.Background(), makeMeasurements(5), sink)

	assert.Equal(t, 3, created)
	assert.Equal(t, 2, failed)
	assert.Equal(t, 3, store.calls)
	assert.Equal(t, [][2]int{{2, 5}, {4, 5}, {5, 5}}, sink.progress)
	require.Len(t, sink.lines, 1)
	assert.Contains(t, sink.lines[0], "Batch 2 failed")
}

func TestBatchWriterEmptyInput(t *testing.T) {
	store := &flakyStore{}
	sink := &captureSink{}
	writer := NewBatchWriter(store, 2, zerolog.Nop())

	created, failed := writer.Write(context.Background(), nil, sink)

	assert.Zero(t, created)
	assert.Zero(t, failed)
	assert.Zero(t, store.calls)
	assert.Empty(t, sink.progress)
}

func TestBatchWriterDefaultsChunkSize(t *testing.T) {
	writer := NewBatchWriter(&flakyStore{}, 0, zerolog.Nop())
	assert.Equal(t, DefaultChunkSize, writer.chunkSize)
}
