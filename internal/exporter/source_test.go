package exporter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/burnt-labs/dao-dao-indexer/internal/domain"
)

func collectBatches(batches *[][]domain.TraceRecord) BatchHandler {
	return func(ctx context.Context, records []domain.TraceRecord) error {
		batch := make([]domain.TraceRecord, len(records))
		copy(batch, records)
		*batches = append(*batches, batch)
		return nil
	}
}

func traceLine(height uint64) string {
	return fmt.Sprintf(`{"operation":"write","key":"AgM=","value":"eA==","metadata":{"blockHeight":%d},"blockTimeUnixMs":1}`, height)
}

func TestSource_ReadsBatches(t *testing.T) {
	var batches [][]domain.TraceRecord
	s := NewSource(SourceConfig{BatchSize: 2, FlushInterval: time.Hour}, collectBatches(&batches))

	input := strings.Join([]string{
		traceLine(1),
		traceLine(2),
		traceLine(3),
	}, "\n")

	require.NoError(t, s.run(context.Background(), strings.NewReader(input)))

	// One full-size flush plus the EOF flush of the remainder.
	require.Len(t, batches, 2)
	assert.Len(t, batches[0], 2)
	assert.Len(t, batches[1], 1)
	assert.Equal(t, uint64(3), uint64(batches[1][0].Metadata.BlockHeight))
}

func TestSource_SkipsMalformedLines(t *testing.T) {
	var batches [][]domain.TraceRecord
	s := NewSource(SourceConfig{BatchSize: 10, FlushInterval: time.Hour}, collectBatches(&batches))

	input := strings.Join([]string{
		traceLine(1),
		"not json at all",
		"",
		traceLine(2),
	}, "\n")

	require.NoError(t, s.run(context.Background(), strings.NewReader(input)))
	require.Len(t, batches, 1)
	assert.Len(t, batches[0], 2)
}

func TestSource_HandlerErrorAborts(t *testing.T) {
	handlerErr := fmt.Errorf("db down")
	s := NewSource(SourceConfig{BatchSize: 1, FlushInterval: time.Hour}, func(ctx context.Context, records []domain.TraceRecord) error {
		return handlerErr
	})

	err := s.run(context.Background(), strings.NewReader(traceLine(1)+"\n"+traceLine(2)))
	assert.ErrorIs(t, err, handlerErr)
}

func TestSource_RunOpensFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.pipe")
	require.NoError(t, os.WriteFile(path, []byte(traceLine(7)+"\n"), 0o600))

	var batches [][]domain.TraceRecord
	s := NewSource(SourceConfig{TraceFile: path, BatchSize: 10, FlushInterval: 10 * time.Millisecond}, collectBatches(&batches))

	require.NoError(t, s.Run(context.Background()))
	require.Len(t, batches, 1)
	assert.Equal(t, uint64(7), uint64(batches[0][0].Metadata.BlockHeight))
}

func TestSource_MissingFile(t *testing.T) {
	s := NewSource(SourceConfig{TraceFile: "/nonexistent/trace.pipe"}, func(ctx context.Context, records []domain.TraceRecord) error {
		return nil
	})
	assert.Error(t, s.Run(context.Background()))
}
