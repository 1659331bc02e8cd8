package exporter

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/burnt-labs/dao-dao-indexer/internal/domain"
	"github.com/burnt-labs/dao-dao-indexer/internal/logger"
)

const (
	// maxTraceLineSize bounds a single trace record; contract state values
	// can be large
	maxTraceLineSize = 16 * 1024 * 1024

	defaultBatchSize     = 1000
	defaultFlushInterval = 500 * time.Millisecond
)

// BatchHandler processes one batch of trace records
type BatchHandler func(ctx context.Context, records []domain.TraceRecord) error

// SourceConfig holds trace source settings
type SourceConfig struct {
	// TraceFile is the path of the trace pipe (FIFO) or file to read
	TraceFile string
	// BatchSize flushes a batch once this many records have accumulated
	BatchSize int
	// FlushInterval is the period of the ticker that flushes any partial
	// batch; incoming records do not reset it
	FlushInterval time.Duration
}

// Source reads line-delimited trace records and feeds them to a handler in
// batches. Records arrive roughly in block-height order; batching preserves
// arrival order and the handler's upsert semantics absorb any interleaving.
type Source struct {
	config  SourceConfig
	handler BatchHandler
}

// NewSource creates a trace source
func NewSource(cfg SourceConfig, handler BatchHandler) *Source {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaultFlushInterval
	}
	return &Source{
		config:  cfg,
		handler: handler,
	}
}

// Run reads the trace file until EOF or cancellation, flushing batches as
// they fill or on the flush interval. A handler error aborts the run; the
// unflushed records are re-read on restart because the watermark never
// advanced past them.
func (s *Source) Run(ctx context.Context) error {
	f, err := os.Open(s.config.TraceFile)
	if err != nil {
		return fmt.Errorf("failed to open trace file: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn("failed to close trace file", zap.Error(err))
		}
	}()

	return s.run(ctx, f)
}

func (s *Source) run(ctx context.Context, r io.Reader) error {
	records := make(chan domain.TraceRecord, s.config.BatchSize)
	readErr := make(chan error, 1)

	go func() {
		defer close(records)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxTraceLineSize)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var rec domain.TraceRecord
			if err := json.Unmarshal(line, &rec); err != nil {
				logger.Warn("skipping malformed trace record", zap.Error(err))
				continue
			}
			select {
			case records <- rec:
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	batch := make([]domain.TraceRecord, 0, s.config.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.handler(ctx, batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	ticker := time.NewTicker(s.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := flush(); err != nil {
				return err
			}
		case rec, ok := <-records:
			if !ok {
				if err := flush(); err != nil {
					return err
				}
				select {
				case err := <-readErr:
					if err != nil {
						return fmt.Errorf("trace read failed: %w", err)
					}
				default:
				}
				return nil
			}
			batch = append(batch, rec)
			if len(batch) >= s.config.BatchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
	}
}
