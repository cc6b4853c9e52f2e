package websmith

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultBatchSize           = 10
	DefaultDelayBetweenBatches = 100 * time.Millisecond
)

// BatchConfig holds batch processing configuration.
type BatchConfig struct {
	BatchSize           int
	DelayBetweenBatches time.Duration
	// Limiter, when set, paces the start of every item across all batches.
	// Without it a batch issues BatchSize concurrent calls at once.
	Limiter *rate.Limiter
}

// DefaultBatchConfig returns batches of 10 with 100ms between batches.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		BatchSize:           DefaultBatchSize,
		DelayBetweenBatches: DefaultDelayBetweenBatches,
	}
}

// BatchItemResult is the outcome of one item. Index is the item's position in
// the input slice.
type BatchItemResult[T, R any] struct {
	Success bool
	Result  R
	Err     error
	Item    T
	Index   int
}

// BatchResult partitions processed items by outcome. Records accumulate batch
// by batch; within a batch they follow input order, so use Index to restore
// the original order across partitions.
type BatchResult[T, R any] struct {
	Results []BatchItemResult[T, R]
	Errors  []BatchItemResult[T, R]
}

// BatchProgress is reported after every batch.
type BatchProgress struct {
	Completed int
	Total     int
	Progress  float64
	Results   int
	Errors    int
}

// BatchRequestManager runs items through an operation in fixed-size batches.
type BatchRequestManager struct {
	config BatchConfig
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewBatchRequestManager creates a batch manager. A non-positive BatchSize
// takes the default; a negative delay becomes zero.
func NewBatchRequestManager(config BatchConfig) *BatchRequestManager {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	if config.DelayBetweenBatches < 0 {
		config.DelayBetweenBatches = 0
	}
	return &BatchRequestManager{
		config: config,
		sleep:  sleepContext,
	}
}

// Config returns the effective configuration.
func (m *BatchRequestManager) Config() BatchConfig {
	return m.config
}

// ProcessBatch calls processor for every item. Items of one batch run
// concurrently and the whole batch settles before the next one starts; a
// failing item never stops the others. onProgress may be nil.
//
// Cancelling ctx stops scheduling: items not yet started are recorded as
// errors carrying ctx.Err(), so every item still appears exactly once.
func ProcessBatch[T, R any](
	ctx context.Context,
	m *BatchRequestManager,
	items []T,
	processor func(ctx context.Context, item T, index int) (R, error),
	onProgress func(BatchProgress),
) BatchResult[T, R] {
	var out BatchResult[T, R]
	total := len(items)
	size := m.config.BatchSize

	for start := 0; start < total; start += size {
		end := start + size
		if end > total {
			end = total
		}

		records := make([]BatchItemResult[T, R], end-start)
		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			rec := &records[i-start]
			rec.Item = items[i]
			rec.Index = i

			if err := m.waitTurn(ctx); err != nil {
				rec.Err = err
				continue
			}

			wg.Add(1)
			go func(rec *BatchItemResult[T, R]) {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						var zero R
						rec.Result = zero
						rec.Err = fmt.Errorf("%w: item %d: %v", ErrItemPanicked, rec.Index, r)
					}
					rec.Success = rec.Err == nil
				}()
				rec.Result, rec.Err = processor(ctx, rec.Item, rec.Index)
			}(rec)
		}
		wg.Wait()

		for _, rec := range records {
			if rec.Success {
				out.Results = append(out.Results, rec)
			} else {
				out.Errors = append(out.Errors, rec)
			}
		}

		if onProgress != nil {
			onProgress(BatchProgress{
				Completed: end,
				Total:     total,
				Progress:  float64(end) / float64(total),
				Results:   len(out.Results),
				Errors:    len(out.Errors),
			})
		}

		if end < total && m.config.DelayBetweenBatches > 0 {
			// A cancelled sleep is surfaced through waitTurn on the next batch.
			_ = m.sleep(ctx, m.config.DelayBetweenBatches)
		}
	}
	return out
}

func (m *BatchRequestManager) waitTurn(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.config.Limiter != nil {
		return m.config.Limiter.Wait(ctx)
	}
	return nil
}
