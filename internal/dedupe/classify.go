package dedupe

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/crm-dedupe/internal/source"
)

// minParallel is the smallest batch worth splitting across workers.
const minParallel = 2048

// Partition is the stable split of candidate records.
type Partition struct {
	Uniques    []source.Record
	Duplicates []source.Record
}

// Classify splits entries by membership of their key in keys, preserving input
// order within each side. Entries with an empty key are dropped. With workers
// greater than one, large batches are checked in parallel chunks; each worker
// writes only its own index range and the merge runs in input order.
func Classify(ctx context.Context, keys KeySet, entries []source.Entry, workers int) (Partition, error) {
	dup, err := verdicts(ctx, keys, entries, workers)
	if err != nil {
		return Partition{}, err
	}

	var p Partition
	for i, e := range entries {
		if e.Key == "" {
			continue
		}
		if dup[i] {
			p.Duplicates = append(p.Duplicates, e.Record)
		} else {
			p.Uniques = append(p.Uniques, e.Record)
		}
	}
	return p, nil
}

func verdicts(ctx context.Context, keys KeySet, entries []source.Entry, workers int) ([]bool, error) {
	dup := make([]bool, len(entries))

	if workers <= 1 || len(entries) < minParallel {
		for i, e := range entries {
			dup[i] = keys.Has(e.Key)
		}
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "dedupe: classify")
		}
		return dup, nil
	}

	chunk := (len(entries) + workers - 1) / workers

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for start := 0; start < len(entries); start += chunk {
		start := start
		end := min(start+chunk, len(entries))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				dup[i] = keys.Has(entries[i].Key)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "dedupe: classify")
	}
	return dup, nil
}
