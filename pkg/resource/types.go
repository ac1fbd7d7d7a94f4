package resource

import "context"

// Kind is a mutation kind. Each kind has its own channel, loading flag and
// error cell.
type Kind string

// Mutation kinds.
const (
	KindCreate Kind = "create"
	KindUpdate Kind = "update"
	KindRemove Kind = "remove"
)

// Kinds lists the mutation kinds in a stable order.
var Kinds = []Kind{KindCreate, KindUpdate, KindRemove}

// Strategy controls how the local collection follows a mutation.
type Strategy string

// Reconciliation strategies.
const (
	// StrategyPessimistic waits for the server, then reloads the collection.
	StrategyPessimistic Strategy = "pessimistic"
	// StrategyOptimistic applies the change locally first and rolls it back
	// if the request fails.
	StrategyOptimistic Strategy = "optimistic"
	// StrategyIncremental patches the collection from the server response.
	StrategyIncremental Strategy = "incremental"
)

// Behavior controls how concurrent calls of the same kind are flattened.
type Behavior string

// Flattening behaviors.
const (
	// BehaviorConcat queues calls and runs them in call order.
	BehaviorConcat Behavior = "concat"
	// BehaviorMerge runs calls in parallel.
	BehaviorMerge Behavior = "merge"
	// BehaviorSwitch cancels the in-flight call in favor of the new one.
	BehaviorSwitch Behavior = "switch"
	// BehaviorExhaust drops new calls while one is in flight.
	BehaviorExhaust Behavior = "exhaust"
)

// Client is the HTTP collaborator a Resource talks to. Implementations must
// honor ctx cancellation and report failures as errors, never as values.
// A nil item or removal means the response carried no payload.
type Client[T any, ID comparable] interface {
	// Get fetches the collection at url.
	Get(ctx context.Context, url string) ([]T, error)

	// Post creates item at url and returns the stored item, if any.
	Post(ctx context.Context, url string, item T) (*T, error)

	// Put replaces the item at url and returns the stored item, if any.
	Put(ctx context.Context, url string, item T) (*T, error)

	// Delete removes the item at url and returns what the server echoed back.
	Delete(ctx context.Context, url string) (*Removal[T, ID], error)
}

// Removal is the payload of a DELETE response: either the removed item or
// its bare ID.
type Removal[T any, ID comparable] struct {
	Item *T
	ID   *ID
}
