package resource

import (
	"context"
	"sync"
)

// Executor runs one accepted call. ctx is cancelled when the call is
// superseded or the resource is destroyed. The executor calls settled
// before it publishes the call's outcome; settled is safe to call more
// than once.
type Executor func(ctx context.Context, settled func())

func nop() {}

// Flattener sequences concurrent calls of one mutation kind.
type Flattener interface {
	// Run admits or drops a call. On admission prepare runs synchronously
	// in the caller's goroutine and exec is scheduled; Run reports whether
	// the call was admitted.
	Run(ctx context.Context, prepare func(), exec Executor) bool
}

// SelectFlattener returns a fresh flattener for behavior. Unknown or empty
// behaviors select concat.
func SelectFlattener(behavior Behavior) Flattener {
	switch behavior {
	case BehaviorMerge:
		return &mergeFlattener{}
	case BehaviorSwitch:
		return &switchFlattener{}
	case BehaviorExhaust:
		return &exhaustFlattener{}
	default:
		return &concatFlattener{}
	}
}

// concatFlattener chains every call behind its predecessor.
type concatFlattener struct {
	mu   sync.Mutex
	tail chan struct{}
}

func (f *concatFlattener) Run(ctx context.Context, prepare func(), exec Executor) bool {
	done := make(chan struct{})

	f.mu.Lock()
	prev := f.tail
	f.tail = done
	f.mu.Unlock()

	prepare()

	go func() {
		defer close(done)
		if prev != nil {
			<-prev
		}
		exec(ctx, nop)
	}()

	return true
}

// mergeFlattener runs every call immediately.
type mergeFlattener struct{}

func (mergeFlattener) Run(ctx context.Context, prepare func(), exec Executor) bool {
	prepare()
	go exec(ctx, nop)
	return true
}

// switchFlattener cancels the previous call when a new one arrives.
type switchFlattener struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

func (f *switchFlattener) Run(ctx context.Context, prepare func(), exec Executor) bool {
	callCtx, cancel := context.WithCancel(ctx)

	f.mu.Lock()
	if f.cancel != nil {
		f.cancel()
	}
	f.cancel = cancel
	f.mu.Unlock()

	prepare()

	go func() {
		defer cancel()
		exec(callCtx, nop)
	}()

	return true
}

// exhaustFlattener drops calls while one is in flight. A call stops being
// in flight once it has settled, so a caller reacting to its outcome may
// start the next one.
type exhaustFlattener struct {
	mu   sync.Mutex
	busy bool
}

func (f *exhaustFlattener) Run(ctx context.Context, prepare func(), exec Executor) bool {
	f.mu.Lock()
	if f.busy {
		f.mu.Unlock()
		return false
	}
	f.busy = true
	f.mu.Unlock()

	prepare()

	settled := sync.OnceFunc(func() {
		f.mu.Lock()
		f.busy = false
		f.mu.Unlock()
	})

	go func() {
		defer settled()
		exec(ctx, settled)
	}()

	return true
}
