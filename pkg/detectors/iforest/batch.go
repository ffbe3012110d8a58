package iforest

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/hed1ad/goguardml/pkg/detectors"
)

// DetectBatchContext is DetectBatch spread over up to workers goroutines
// (GOMAXPROCS when workers <= 0). Results keep input order. Cancelling ctx
// stops scoring between rows.
func (f *IsolationForest) DetectBatchContext(ctx context.Context, data [][]float64, workers int) ([]detectors.Result, error) {
	m, err := f.snapshot()
	if err != nil {
		return nil, err
	}

	results := make([]detectors.Result, len(data))
	if len(data) == 0 {
		return results, nil
	}

	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	chunk := (len(data) + workers - 1) / workers

	g, ctx := errgroup.WithContext(ctx)
	for start := 0; start < len(data); start += chunk {
		end := min(start+chunk, len(data))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				r, err := f.detect(m, data[i], i)
				if err != nil {
					return fmt.Errorf("point %d: %w", i, err)
				}
				results[i] = r
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// PredictStream classifies samples from input until it is closed or ctx is
// done, numbering them from 0. It closes output on return. A malformed sample
// stops the stream with its error.
func (f *IsolationForest) PredictStream(ctx context.Context, input <-chan []float64, output chan<- detectors.Result) error {
	defer close(output)

	m, err := f.snapshot()
	if err != nil {
		return err
	}

	for index := 0; ; index++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sample, ok := <-input:
			if !ok {
				return nil
			}

			r, err := f.detect(m, sample, index)
			if err != nil {
				return fmt.Errorf("point %d: %w", index, err)
			}

			select {
			case output <- r:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
