package resource

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/restresource/pkg/reactive"
)

// Resource manages one REST collection. All methods are safe for concurrent
// use; mutations return immediately and report through the reactive cells.
type Resource[T any, ID comparable] struct {
	cfg     *config[T, ID]
	client  Client[T, ID]
	logger  *zap.Logger
	metrics *Metrics

	// mu is the resource's single logical thread: every transition of the
	// collection, flags and read cycle happens under it, and the batched
	// notifications are delivered after it is released.
	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	destroyed bool
	scope     *reactive.Scope

	params        string
	fetchGen      uint64
	fetchCancel   context.CancelFunc
	reloadPending bool

	active int
	idle   chan struct{}

	values      *reactive.Cell[[]T]
	readLoading *reactive.Cell[bool]
	errorRead   *reactive.Cell[error]
	channels    map[Kind]*channel

	value          *reactive.Computed[*T]
	hasValue       *reactive.Computed[bool]
	hasValues      *reactive.Computed[bool]
	loadingInitial *reactive.Computed[bool]
	loading        *reactive.Computed[bool]
}

// channel is the per-kind ingestion point.
type channel struct {
	kindConfig
	flattener Flattener
	pending   int
	loading   *reactive.Cell[bool]
	err       *reactive.Cell[error]
}

func (c *channel) acquireLocked(b *reactive.Batch) {
	c.pending++
	c.loading.SetIn(b, true)
}

func (c *channel) releaseLocked(b *reactive.Batch) {
	c.pending--
	if c.pending <= 0 {
		c.pending = 0
		c.loading.SetIn(b, false)
	}
}

// New creates a resource for endpoint and starts the initial fetch.
func New[T any, ID comparable](endpoint string, client Client[T, ID], opts Options[T, ID]) (*Resource[T, ID], error) {
	if client == nil {
		return nil, ErrNilClient
	}

	cfg, err := opts.resolve(endpoint)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Resource[T, ID]{
		cfg:         cfg,
		client:      client,
		logger:      cfg.logger,
		metrics:     cfg.metrics,
		ctx:         ctx,
		cancel:      cancel,
		scope:       reactive.NewScope(),
		values:      reactive.NewCell[[]T](nil),
		readLoading: reactive.NewCell(false, reactive.WithEqual(reactive.Equal[bool])),
		errorRead:   reactive.NewCell[error](nil),
		channels:    make(map[Kind]*channel, len(Kinds)),
	}

	for _, kind := range Kinds {
		kc := cfg.kinds[kind]
		r.channels[kind] = &channel{
			kindConfig: kc,
			flattener:  SelectFlattener(kc.behavior),
			loading:    reactive.NewCell(false, reactive.WithEqual(reactive.Equal[bool])),
			err:        reactive.NewCell[error](nil),
		}
	}

	r.derive()

	b := reactive.NewBatch()
	r.mu.Lock()
	if cfg.params != nil {
		r.params = cfg.params.Get()
		r.scope.Add(cfg.params.Subscribe(r.paramsChanged))
	}
	r.startFetchLocked(b)
	r.mu.Unlock()
	b.Commit()

	return r, nil
}

// derive wires the single-item projection and the loading aggregation.
func (r *Resource[T, ID]) derive() {
	r.value = reactive.Derive(func() *T {
		items := r.values.Get()
		if len(items) != 1 {
			return nil
		}
		item := items[0]
		return &item
	}, r.values)

	r.hasValue = reactive.DeriveEq(func() bool {
		return r.value.Get() != nil
	}, r.value)

	r.hasValues = reactive.DeriveEq(func() bool {
		return len(r.values.Get()) > 0
	}, r.values)

	r.loadingInitial = reactive.DeriveEq(func() bool {
		return r.values.Get() == nil && r.readLoading.Get()
	}, r.values, r.readLoading)

	deps := []reactive.Source{r.loadingInitial, r.readLoading}
	for _, kind := range Kinds {
		deps = append(deps, r.channels[kind].loading)
	}
	r.loading = reactive.DeriveEq(func() bool {
		if r.loadingInitial.Get() {
			return false
		}
		if r.readLoading.Get() {
			return true
		}
		for _, kind := range Kinds {
			if r.channels[kind].loading.Get() {
				return true
			}
		}
		return false
	}, deps...)

	r.scope.Add(r.value.Close)
	r.scope.Add(r.hasValue.Close)
	r.scope.Add(r.hasValues.Close)
	r.scope.Add(r.loadingInitial.Close)
	r.scope.Add(r.loading.Close)
}

// Values is the collection: nil until the first successful fetch, the last
// known collection while a refetch is in flight.
func (r *Resource[T, ID]) Values() reactive.Readable[[]T] { return r.values }

// Value is the sole item when the collection has exactly one item, else nil.
// It serves detail views built on the same abstraction.
func (r *Resource[T, ID]) Value() reactive.Readable[*T] { return r.value }

// HasValue reports whether Value is set.
func (r *Resource[T, ID]) HasValue() reactive.Readable[bool] { return r.hasValue }

// HasValues reports whether the collection has at least one item.
func (r *Resource[T, ID]) HasValues() reactive.Readable[bool] { return r.hasValues }

// LoadingInitial is true while fetching without any collection to show yet.
func (r *Resource[T, ID]) LoadingInitial() reactive.Readable[bool] { return r.loadingInitial }

// Loading is true during background refetches and mutations, once a
// collection is available.
func (r *Resource[T, ID]) Loading() reactive.Readable[bool] { return r.loading }

// LoadingCreate is true while any accepted create call is unsettled.
func (r *Resource[T, ID]) LoadingCreate() reactive.Readable[bool] {
	return r.channels[KindCreate].loading
}

// LoadingUpdate is true while any accepted update call is unsettled.
func (r *Resource[T, ID]) LoadingUpdate() reactive.Readable[bool] {
	return r.channels[KindUpdate].loading
}

// LoadingRemove is true while any accepted remove call is unsettled.
func (r *Resource[T, ID]) LoadingRemove() reactive.Readable[bool] {
	return r.channels[KindRemove].loading
}

// ErrorRead holds the failure of the last fetch; a successful fetch clears it.
func (r *Resource[T, ID]) ErrorRead() reactive.Readable[error] { return r.errorRead }

// ErrorCreate holds the most recent create failure.
func (r *Resource[T, ID]) ErrorCreate() reactive.Readable[error] {
	return r.channels[KindCreate].err
}

// ErrorUpdate holds the most recent update failure.
func (r *Resource[T, ID]) ErrorUpdate() reactive.Readable[error] {
	return r.channels[KindUpdate].err
}

// ErrorRemove holds the most recent remove failure.
func (r *Resource[T, ID]) ErrorRemove() reactive.Readable[error] {
	return r.channels[KindRemove].err
}

// Create sends item to the server using the create kind's behavior and strategy.
func (r *Resource[T, ID]) Create(item T) { r.submit(KindCreate, item) }

// Update sends item to the server using the update kind's behavior and strategy.
func (r *Resource[T, ID]) Update(item T) { r.submit(KindUpdate, item) }

// Remove deletes item on the server using the remove kind's behavior and strategy.
func (r *Resource[T, ID]) Remove(item T) { r.submit(KindRemove, item) }

// Destroy cancels in-flight requests, detaches from params and discards the
// collection. Later calls on the resource are no-ops.
func (r *Resource[T, ID]) Destroy() {
	b := reactive.NewBatch()

	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		return
	}
	r.destroyed = true
	r.cancel()
	r.fetchCancel = nil
	r.reloadPending = false

	r.values.SetIn(b, nil)
	r.readLoading.SetIn(b, false)
	for _, kind := range Kinds {
		r.channels[kind].loading.SetIn(b, false)
	}
	r.mu.Unlock()

	b.Commit()
	r.scope.Close()
}

// Wait blocks until every fetch and mutation started so far has settled,
// or ctx is done.
func (r *Resource[T, ID]) Wait(ctx context.Context) error {
	r.mu.Lock()
	if r.active == 0 {
		r.mu.Unlock()
		return nil
	}
	idle := r.idle
	r.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Resource[T, ID]) trackLocked() {
	if r.active == 0 {
		r.idle = make(chan struct{})
	}
	r.active++
}

// untrack is called once a pipeline's notifications have been delivered, so
// that Wait also covers work started by subscribers.
func (r *Resource[T, ID]) untrack() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.untrackLocked()
}

func (r *Resource[T, ID]) untrackLocked() {
	r.active--
	if r.active == 0 {
		close(r.idle)
	}
}
