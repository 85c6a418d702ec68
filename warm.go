package refetch

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// Warm executes the given fetchers concurrently to pre-populate the shared
// cache, e.g. on dashboard startup. concurrency <= 0 means unbounded. The
// first real failure cancels the remaining warmups and is returned;
// superseded attempts are not failures.
func Warm[V any](ctx context.Context, fetchers []*Fetcher[V], concurrency int) error {
	g, ctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for _, f := range fetchers {
		f := f
		g.Go(func() error {
			if _, err := f.Execute(ctx); err != nil && !errors.Is(err, ErrSuperseded) {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}
