package resource

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/restresource/pkg/reactive"
)

// Reload refetches the collection. A reload requested while a fetch is in
// flight is queued behind it; any number of such requests collapse into one
// follow-up fetch.
func (r *Resource[T, ID]) Reload() {
	b := reactive.NewBatch()
	r.mu.Lock()
	r.reloadLocked(b)
	r.mu.Unlock()
	b.Commit()
}

func (r *Resource[T, ID]) reloadLocked(b *reactive.Batch) {
	if r.destroyed {
		return
	}
	if r.fetchCancel != nil {
		r.reloadPending = true
		return
	}
	r.startFetchLocked(b)
}

// paramsChanged restarts the read cycle for the new query string. The fetch
// for the old params is abandoned.
func (r *Resource[T, ID]) paramsChanged(params string) {
	b := reactive.NewBatch()
	r.mu.Lock()
	if r.destroyed || params == r.params {
		r.mu.Unlock()
		return
	}
	r.params = params
	r.reloadPending = false
	r.startFetchLocked(b)
	r.mu.Unlock()
	b.Commit()
}

func (r *Resource[T, ID]) url() string {
	return r.cfg.endpoint + r.params
}

// startFetchLocked cancels any fetch in flight and starts a new one.
func (r *Resource[T, ID]) startFetchLocked(b *reactive.Batch) {
	if r.fetchCancel != nil {
		r.fetchCancel()
	}

	r.fetchGen++
	ctx, cancel := context.WithCancel(r.ctx)
	r.fetchCancel = cancel

	url := r.url()
	r.readLoading.SetIn(b, true)
	if r.cfg.verbose {
		r.logger.Debug("fetching collection",
			zap.String("params", r.params),
			zap.String("url", url),
		)
	}

	r.trackLocked()
	go r.fetch(ctx, r.fetchGen, url)
}

func (r *Resource[T, ID]) fetch(ctx context.Context, gen uint64, url string) {
	start := time.Now()
	items, err := r.client.Get(ctx, url)

	b := reactive.NewBatch()
	r.mu.Lock()
	defer func() {
		r.mu.Unlock()
		b.Commit()
		r.untrack()
	}()

	if r.destroyed || gen != r.fetchGen {
		r.metrics.readSettled(r.cfg.endpoint, OutcomeSuperseded, time.Since(start))
		return
	}
	r.fetchCancel()
	r.fetchCancel = nil

	if err != nil {
		r.logger.Warn("fetch failed", zap.String("url", url), zap.Error(err))
		r.errorRead.SetIn(b, err)
		r.metrics.readSettled(r.cfg.endpoint, OutcomeFailure, time.Since(start))
	} else {
		if items == nil {
			items = []T{}
		}
		r.values.SetIn(b, items)
		r.errorRead.SetIn(b, nil)
		r.metrics.readSettled(r.cfg.endpoint, OutcomeSuccess, time.Since(start))
	}

	if r.reloadPending {
		r.reloadPending = false
		r.startFetchLocked(b)
		return
	}
	r.readLoading.SetIn(b, false)
}
