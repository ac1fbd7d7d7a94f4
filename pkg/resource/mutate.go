package resource

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/restresource/pkg/reactive"
)

// operation is the transient record of one mutation call.
type operation[T any, ID comparable] struct {
	kindConfig
	item T
	id   ID

	// applied is set when the optimistic pre-apply changed the collection.
	applied  bool
	previous *T
}

// submit feeds one call into its kind's channel.
func (r *Resource[T, ID]) submit(kind Kind, item T) {
	ch := r.channels[kind]
	op := &operation[T, ID]{kindConfig: ch.kindConfig, item: item}

	// The generator runs before r.mu is taken.
	if kind == KindCreate && r.cfg.generate != nil {
		r.cfg.identity.set(r.cfg.generate(), &op.item)
	}
	op.id = r.cfg.identity.get(op.item)

	b := reactive.NewBatch()
	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		return
	}

	ch.acquireLocked(b)
	r.trackLocked()
	r.metrics.mutationStarted(r.cfg.endpoint, kind)

	admitted := ch.flattener.Run(r.ctx,
		func() { r.prepareLocked(b, op) },
		func(ctx context.Context, settled func()) { r.execute(ctx, ch, op, settled) },
	)
	if !admitted {
		if r.cfg.verbose {
			r.logger.Debug("call dropped while another is in flight", zap.String("kind", string(kind)))
		}
		ch.releaseLocked(b)
		r.untrackLocked()
		r.metrics.mutationSettled(r.cfg.endpoint, op.kindConfig, OutcomeDropped, 0)
	}
	r.mu.Unlock()
	b.Commit()
}

// prepareLocked applies the optimistic change. It runs when the call is
// admitted.
func (r *Resource[T, ID]) prepareLocked(b *reactive.Batch, op *operation[T, ID]) {
	if op.strategy != StrategyOptimistic {
		return
	}

	switch op.kind {
	case KindCreate:
		if isZero(op.id) {
			r.logger.Warn("optimistic create without an ID, item is not inserted before the response")
			return
		}
		r.values.UpdateIn(b, func(items []T) []T {
			return appendItem(items, op.item)
		})
		op.applied = true

	case KindUpdate:
		r.values.UpdateIn(b, func(items []T) []T {
			i := r.indexOf(items, op.id)
			if i < 0 {
				return items
			}
			prev := items[i]
			op.previous = &prev
			op.applied = true
			return replaceAt(items, i, r.cfg.merge(prev, op.item))
		})

	case KindRemove:
		r.values.UpdateIn(b, func(items []T) []T {
			i := r.indexOf(items, op.id)
			if i < 0 {
				return items
			}
			prev := items[i]
			op.previous = &prev
			op.applied = true
			return removeAt(items, i)
		})
	}
}

// execute dispatches the request and reconciles the collection with its
// outcome. settled frees the flattener before subscribers observe the
// channel going idle.
func (r *Resource[T, ID]) execute(ctx context.Context, ch *channel, op *operation[T, ID], settled func()) {
	start := time.Now()

	var (
		stored  *T
		removal *Removal[T, ID]
		err     error
	)
	if err = ctx.Err(); err == nil {
		switch op.kind {
		case KindCreate:
			stored, err = r.client.Post(ctx, r.cfg.endpoint, op.item)
		case KindUpdate:
			stored, err = r.client.Put(ctx, r.itemURL(op.id), op.item)
		case KindRemove:
			removal, err = r.client.Delete(ctx, r.itemURL(op.id))
		}
	}

	b := reactive.NewBatch()
	r.mu.Lock()
	defer func() {
		settled()
		ch.releaseLocked(b)
		r.mu.Unlock()
		b.Commit()
		r.untrack()
	}()

	if ctx.Err() != nil || r.destroyed {
		r.metrics.mutationSettled(r.cfg.endpoint, op.kindConfig, OutcomeSuperseded, time.Since(start))
		return
	}

	if err != nil {
		r.logger.Warn("mutation failed",
			zap.String("kind", string(op.kind)),
			zap.String("strategy", string(op.strategy)),
			zap.Error(err),
		)
		ch.err.SetIn(b, err)
		if op.strategy == StrategyOptimistic && op.applied {
			r.rollbackLocked(b, op)
		}
		r.metrics.mutationSettled(r.cfg.endpoint, op.kindConfig, OutcomeFailure, time.Since(start))
	} else {
		if op.strategy == StrategyIncremental {
			r.patchLocked(b, op, stored, removal)
		}
		r.metrics.mutationSettled(r.cfg.endpoint, op.kindConfig, OutcomeSuccess, time.Since(start))
	}

	if op.strategy == StrategyPessimistic || r.cfg.params != nil {
		r.reloadLocked(b)
	}
}

// rollbackLocked undoes exactly the optimistic change op made.
func (r *Resource[T, ID]) rollbackLocked(b *reactive.Batch, op *operation[T, ID]) {
	switch op.kind {
	case KindCreate:
		r.values.UpdateIn(b, func(items []T) []T {
			if i := r.lastIndexOf(items, op.id); i >= 0 {
				return removeAt(items, i)
			}
			return items
		})
	case KindUpdate:
		r.values.UpdateIn(b, func(items []T) []T {
			if i := r.indexOf(items, op.id); i >= 0 {
				return replaceAt(items, i, *op.previous)
			}
			return items
		})
	case KindRemove:
		r.values.UpdateIn(b, func(items []T) []T {
			if r.indexOf(items, op.id) >= 0 {
				return items
			}
			return appendItem(items, *op.previous)
		})
	}
	r.metrics.rolledBack(r.cfg.endpoint, op.kind)
}

// patchLocked applies a successful incremental response.
func (r *Resource[T, ID]) patchLocked(b *reactive.Batch, op *operation[T, ID], stored *T, removal *Removal[T, ID]) {
	switch op.kind {
	case KindCreate:
		if stored == nil {
			r.logger.Warn("incremental create response has no item, collection left unchanged")
			return
		}
		r.values.UpdateIn(b, func(items []T) []T {
			return appendItem(items, *stored)
		})

	case KindUpdate:
		if stored == nil {
			r.logger.Warn("incremental update response has no item, collection left unchanged")
			return
		}
		id := r.cfg.identity.get(*stored)
		r.values.UpdateIn(b, func(items []T) []T {
			if i := r.indexOf(items, id); i >= 0 {
				return replaceAt(items, i, *stored)
			}
			return items
		})

	case KindRemove:
		var id ID
		switch {
		case removal != nil && removal.Item != nil:
			id = r.cfg.identity.get(*removal.Item)
		case removal != nil && removal.ID != nil:
			id = *removal.ID
		default:
			r.logger.Warn("incremental remove response has no item or ID, collection left unchanged")
			return
		}
		r.values.UpdateIn(b, func(items []T) []T {
			if i := r.indexOf(items, id); i >= 0 {
				return removeAt(items, i)
			}
			return items
		})
	}
}

func (r *Resource[T, ID]) itemURL(id ID) string {
	return r.cfg.endpoint + "/" + url.PathEscape(fmt.Sprint(id))
}

func (r *Resource[T, ID]) indexOf(items []T, id ID) int {
	for i, item := range items {
		if r.cfg.identity.get(item) == id {
			return i
		}
	}
	return -1
}

func (r *Resource[T, ID]) lastIndexOf(items []T, id ID) int {
	for i := len(items) - 1; i >= 0; i-- {
		if r.cfg.identity.get(items[i]) == id {
			return i
		}
	}
	return -1
}

// The collection slice is shared with subscribers, so edits always copy.

func appendItem[T any](items []T, item T) []T {
	out := make([]T, 0, len(items)+1)
	out = append(out, items...)
	return append(out, item)
}

func replaceAt[T any](items []T, i int, item T) []T {
	out := make([]T, len(items))
	copy(out, items)
	out[i] = item
	return out
}

func removeAt[T any](items []T, i int) []T {
	out := make([]T, 0, len(items)-1)
	out = append(out, items[:i]...)
	return append(out, items[i+1:]...)
}
