package session

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"dvexport/internal/dataverse"
)

// Fetcher pulls table resources from the catalog with a bounded worker pool.
// Every table gets its own Result; one table failing never cancels the rest.
type Fetcher struct {
	client      dataverse.Client
	concurrency int
}

// NewFetcher builds a fetcher running at most concurrency requests at once.
func NewFetcher(client dataverse.Client, concurrency int) *Fetcher {
	if concurrency <= 0 {
		concurrency = 5
	}
	return &Fetcher{client: client, concurrency: concurrency}
}

// FetchBatch fetches one resource kind for every named table, concurrently.
// The returned map has an entry per requested name; errors land in the
// entry's Err field rather than aborting the batch.
func (f *Fetcher) FetchBatch(ctx context.Context, names []string, kind ResourceKind) map[string]Result {
	results := make(map[string]Result, len(names))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)

	for _, name := range names {
		name := name
		g.Go(func() error {
			res := f.fetchOne(ctx, name, kind)
			mu.Lock()
			results[name] = res
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return results
}

func (f *Fetcher) fetchOne(ctx context.Context, name string, kind ResourceKind) Result {
	switch kind {
	case KindAttributes:
		attrs, err := f.client.ListAttributes(ctx, name)
		if err != nil {
			return Result{Err: err}
		}
		return Result{Attributes: attrs}
	default:
		forms, err := f.client.ListForms(ctx, name, true)
		if err != nil {
			return Result{Err: err}
		}
		views, err := f.client.ListViews(ctx, name, true)
		if err != nil {
			return Result{Err: err}
		}
		return Result{Forms: forms, Views: views}
	}
}
