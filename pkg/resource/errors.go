package resource

import "errors"

// Configuration errors returned by New.
var (
	ErrEmptyEndpoint   = errors.New("resource: endpoint cannot be empty")
	ErrNilClient       = errors.New("resource: client cannot be nil")
	ErrInvalidStrategy = errors.New(
		"resource: strategy must be one of: optimistic, pessimistic, incremental",
	)
	ErrInvalidBehavior = errors.New(
		"resource: behavior must be one of: concat, merge, switch, exhaust",
	)
	ErrSetterWithoutGenerator = errors.New(
		"resource: create ID setter requires an ID generator",
	)
	ErrNoIdentity = errors.New(
		"resource: item type has no id field and no IDSelector was given",
	)
	ErrIDNotSettable = errors.New(
		"resource: ID generator needs a setter or an assignable id field",
	)
)
