package batchprocessor

import (
	"context"
	"sync"
	"time"

	"github.com/aleister1102/oerscout/internal/common/contextutils"
	"github.com/rs/zerolog"
)

// BatchProcessorConfig holds configuration for batch processing
type BatchProcessorConfig struct {
	BatchSize       int           // Items processed concurrently per batch (default: 2)
	InterBatchDelay time.Duration // Pause between consecutive batches (default: 500ms)
	BatchTimeout    time.Duration // Timeout per batch, 0 disables (default: 2 minutes)
}

// DefaultBatchProcessorConfig returns default configuration
func DefaultBatchProcessorConfig() BatchProcessorConfig {
	return BatchProcessorConfig{
		BatchSize:       2,
		InterBatchDelay: 500 * time.Millisecond,
		BatchTimeout:    2 * time.Minute,
	}
}

// Outcome is the result of processing a single item.
type Outcome[R any] struct {
	Index int
	Value R
	Err   error
}

// BatchProcessor runs work in fixed-size concurrent batches with a pause between them.
// Items inside a batch run in parallel; batches run one after another.
type BatchProcessor struct {
	config BatchProcessorConfig
	logger zerolog.Logger
	sleep  contextutils.SleepFunc
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(config BatchProcessorConfig, logger zerolog.Logger) *BatchProcessor {
	if config.BatchSize <= 0 {
		config.BatchSize = 1
	}
	return &BatchProcessor{
		config: config,
		logger: logger.With().Str("component", "BatchProcessor").Logger(),
		sleep:  contextutils.Sleep,
	}
}

// WithSleeper replaces the inter-batch sleep, mainly for tests.
func (bp *BatchProcessor) WithSleeper(sleep contextutils.SleepFunc) *BatchProcessor {
	bp.sleep = sleep
	return bp
}

// Config returns the active configuration.
func (bp *BatchProcessor) Config() BatchProcessorConfig {
	return bp.config
}

// BatchCount returns how many batches inputSize items are split into.
func (bp *BatchProcessor) BatchCount(inputSize int) int {
	if inputSize <= 0 {
		return 0
	}
	return (inputSize + bp.config.BatchSize - 1) / bp.config.BatchSize
}

// Process applies fn to every item, BatchSize at a time, and returns one outcome per item
// in input order. A failing item never stops the others. Cancelling ctx stops scheduling
// further batches; outcomes for unscheduled items carry ctx.Err().
func Process[T, R any](ctx context.Context, bp *BatchProcessor, items []T, fn func(ctx context.Context, item T) (R, error)) []Outcome[R] {
	outcomes := make([]Outcome[R], len(items))
	for i := range outcomes {
		outcomes[i].Index = i
	}

	size := bp.config.BatchSize
	batches := bp.BatchCount(len(items))

	for b := 0; b < batches; b++ {
		start := b * size
		end := start + size
		if end > len(items) {
			end = len(items)
		}

		if b > 0 {
			if err := bp.sleep(ctx, bp.config.InterBatchDelay); err != nil {
				markCancelled(outcomes[start:], err)
				bp.logger.Info().
					Int("completed_batches", b).
					Int("total_batches", batches).
					Msg("Batch processing interrupted by context cancellation")
				return outcomes
			}
		}

		batchCtx := ctx
		cancel := func() {}
		if bp.config.BatchTimeout > 0 {
			batchCtx, cancel = context.WithTimeout(ctx, bp.config.BatchTimeout)
		}

		begin := time.Now()
		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				v, err := fn(batchCtx, items[idx])
				outcomes[idx].Value = v
				outcomes[idx].Err = err
			}(i)
		}
		wg.Wait()
		cancel()

		bp.logger.Debug().
			Int("batch_index", b).
			Int("batch_size", end-start).
			Dur("duration", time.Since(begin)).
			Msg("Batch processing completed")
	}

	return outcomes
}

func markCancelled[R any](outcomes []Outcome[R], err error) {
	for i := range outcomes {
		outcomes[i].Err = err
	}
}
