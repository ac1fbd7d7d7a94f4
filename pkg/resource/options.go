package resource

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/restresource/pkg/reactive"
)

// Options configures a Resource. The zero value is a pessimistic resource
// with concat behavior for every kind.
type Options[T any, ID comparable] struct {
	// Verbose logs every read dispatch at debug level.
	Verbose bool

	// Params yields the query string appended to the endpoint, for example
	// "?completed=false". A change triggers a new fetch. When set, every
	// mutation is followed by a reload regardless of strategy.
	Params reactive.Readable[string]

	// IDSelector extracts the ID of an item. When nil the ID is read from a
	// struct field tagged `json:"id"` or named ID, or from the "id" key of a
	// map. It is also called while the resource updates its collection and
	// must not call back into the resource.
	IDSelector func(item T) ID

	// Strategy is the default strategy for every kind.
	// Defaults to StrategyPessimistic.
	Strategy Strategy

	Create CreateOptions[T, ID]
	Update KindOptions
	Remove KindOptions

	// Merge combines the cached item with the update for optimistic
	// updates. Defaults to a shallow merge of the encoded JSON fields. It
	// runs while the resource updates its collection and must not call back
	// into the resource.
	Merge func(prev, next T) T

	// Logger receives warnings and verbose diagnostics. Defaults to a no-op logger.
	Logger *zap.Logger

	// Metrics records request and mutation outcomes when set.
	Metrics *Metrics
}

// KindOptions configures one mutation kind.
type KindOptions struct {
	// Behavior defaults to BehaviorConcat.
	Behavior Behavior
	// Strategy defaults to the resource-level strategy.
	Strategy Strategy
}

// CreateOptions configures the create kind.
type CreateOptions[T any, ID comparable] struct {
	Behavior Behavior
	Strategy Strategy
	ID       IDOptions[T, ID]
}

// IDOptions assigns client-side IDs to created items, for APIs that do not
// generate them.
type IDOptions[T any, ID comparable] struct {
	// Generator returns a new unique ID. It runs in the goroutine calling
	// Create before the call is admitted, so it is also consulted for
	// calls an exhaust behavior drops.
	Generator func() ID
	// Setter stores id on item. Defaults to setting the item's id field.
	Setter func(id ID, item *T)
}

// kindConfig is the resolved configuration of one mutation kind.
type kindConfig struct {
	kind     Kind
	strategy Strategy
	behavior Behavior
}

// config is the validated, default-filled form of Options.
type config[T any, ID comparable] struct {
	endpoint string
	verbose  bool
	params   reactive.Readable[string]
	identity identity[T, ID]
	generate func() ID
	merge    func(prev, next T) T
	kinds    map[Kind]kindConfig
	logger   *zap.Logger
	metrics  *Metrics
}

// resolve validates the options and fills in defaults once, so that call
// sites never fall through kind, global and default values themselves.
func (o Options[T, ID]) resolve(endpoint string) (*config[T, ID], error) {
	if endpoint == "" {
		return nil, ErrEmptyEndpoint
	}

	if err := validateStrategy(o.Strategy); err != nil {
		return nil, err
	}

	global := o.Strategy
	if global == "" {
		global = StrategyPessimistic
	}

	perKind := map[Kind]KindOptions{
		KindCreate: {Behavior: o.Create.Behavior, Strategy: o.Create.Strategy},
		KindUpdate: o.Update,
		KindRemove: o.Remove,
	}

	kinds := make(map[Kind]kindConfig, len(perKind))
	for _, kind := range Kinds {
		ko := perKind[kind]
		if err := validateStrategy(ko.Strategy); err != nil {
			return nil, fmt.Errorf("%s: %w", kind, err)
		}
		if err := validateBehavior(ko.Behavior); err != nil {
			return nil, fmt.Errorf("%s: %w", kind, err)
		}

		kc := kindConfig{
			kind:     kind,
			strategy: ko.Strategy,
			behavior: ko.Behavior,
		}
		if kc.strategy == "" {
			kc.strategy = global
		}
		if kc.behavior == "" {
			kc.behavior = BehaviorConcat
		}
		kinds[kind] = kc
	}

	if o.Create.ID.Setter != nil && o.Create.ID.Generator == nil {
		return nil, ErrSetterWithoutGenerator
	}

	id, err := resolveIdentity(o.IDSelector, o.Create.ID.Setter)
	if err != nil {
		return nil, err
	}
	if o.Create.ID.Generator != nil && id.set == nil {
		return nil, ErrIDNotSettable
	}

	merge := o.Merge
	if merge == nil {
		merge = mergeFields[T]
	}

	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &config[T, ID]{
		endpoint: endpoint,
		verbose:  o.Verbose,
		params:   o.Params,
		identity: id,
		generate: o.Create.ID.Generator,
		merge:    merge,
		kinds:    kinds,
		logger:   logger.Named("resource").With(zap.String("endpoint", endpoint)),
		metrics:  o.Metrics,
	}, nil
}

// validateStrategy accepts the known strategies and the empty value.
func validateStrategy(s Strategy) error {
	switch s {
	case "", StrategyPessimistic, StrategyOptimistic, StrategyIncremental:
		return nil
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidStrategy, s)
	}
}

// validateBehavior accepts the known behaviors and the empty value.
func validateBehavior(b Behavior) error {
	switch b {
	case "", BehaviorConcat, BehaviorMerge, BehaviorSwitch, BehaviorExhaust:
		return nil
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidBehavior, b)
	}
}
