package session

import (
	"context"
	"log"

	"dvexport/internal/settings"
)

// Engine ties the store to the fetcher: it claims tables, runs the batch and
// lands the results, warming the cache along the way.
type Engine struct {
	Store   *Store
	Fetcher *Fetcher
	Cache   *settings.Cache
}

// Load fetches one resource kind for the named tables. Tables already
// Loading are left to the fetch that owns them. Returns how many tables
// actually ran.
func (e *Engine) Load(ctx context.Context, names []string, kind ResourceKind) int {
	claimed := e.Store.BeginLoad(names, kind)
	if len(claimed) == 0 {
		return 0
	}

	for name, res := range e.Fetcher.FetchBatch(ctx, claimed, kind) {
		if res.Err != nil {
			log.Printf("WARN: fetch %s for %s: %v", kind, name, res.Err)
		} else if e.Cache != nil {
			e.Cache.Put(name, res.Attributes, res.Forms, res.Views)
		}
		e.Store.ApplyFetchResult(name, kind, res)
	}
	return len(claimed)
}

// LoadAll fetches attributes and then forms and views for the named tables,
// skipping anything already Loaded — a cache restore counts. Refresh is the
// path that re-claims loaded tables.
func (e *Engine) LoadAll(ctx context.Context, names []string) {
	e.Load(ctx, e.Store.Pending(names, KindAttributes), KindAttributes)
	e.Load(ctx, e.Store.Pending(names, KindFormsViews), KindFormsViews)
}

// Refresh re-fetches everything for the named tables, bypassing any cached
// copy and any Loaded state. Saved choices are reconciled against the fresh
// lists as the results land.
func (e *Engine) Refresh(ctx context.Context, names []string) {
	for _, name := range names {
		if e.Cache != nil {
			e.Cache.Forget(name)
		}
	}
	e.Load(ctx, names, KindAttributes)
	e.Load(ctx, names, KindFormsViews)
}
