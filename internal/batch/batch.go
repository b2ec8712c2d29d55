// Package batch runs a per-symbol operation over a symbol list in fixed-size
// concurrent batches, bounding upstream request concurrency.
package batch

import (
	"context"
	"log"
	"sync"
)

// DefaultSize is the number of symbols fetched concurrently per batch.
const DefaultSize = 10

// Op processes a single symbol. Errors are soft: they are logged and the
// symbol simply contributes nothing for this pass.
type Op func(ctx context.Context, symbol string) error

// ProgressFunc is invoked after each batch settles with the number of
// symbols processed so far and the total.
type ProgressFunc func(processed, total int)

// Run partitions symbols into batches of size, runs all operations within a
// batch concurrently, and waits for the batch to settle before starting the
// next. Cancellation is honored at batch boundaries; a batch already in
// flight runs to completion.
func Run(ctx context.Context, symbols []string, size int, op Op, progress ProgressFunc) error {
	if size <= 0 {
		size = DefaultSize
	}
	total := len(symbols)
	processed := 0

	for start := 0; start < total; start += size {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + size
		if end > total {
			end = total
		}

		var wg sync.WaitGroup
		for _, symbol := range symbols[start:end] {
			wg.Add(1)
			go func(sym string) {
				defer wg.Done()
				if err := op(ctx, sym); err != nil {
					log.Printf("[WARN] %s: %v", sym, err)
				}
			}(symbol)
		}
		wg.Wait()

		processed += end - start
		if progress != nil {
			progress(processed, total)
		}
	}
	return nil
}
