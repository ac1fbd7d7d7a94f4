// Package live keeps a resource fresh by following the server's websocket
// change feed and reloading the resource on every change.
package live

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Change event types understood by Follow.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// Backoff defaults.
const (
	DefaultInitialBackoff = 500 * time.Millisecond
	DefaultMaxBackoff     = 30 * time.Second
)

// ErrFeedClosed is reported when the server closes the feed normally.
var ErrFeedClosed = errors.New("live: change feed closed by server")

// Event is one message of the change feed.
type Event struct {
	Type      string    `json:"type"`
	ID        string    `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// IsChange reports whether the event describes a collection change.
func (e Event) IsChange() bool {
	switch e.Type {
	case EventCreated, EventUpdated, EventDeleted:
		return true
	default:
		return false
	}
}

// Reloader is satisfied by *resource.Resource.
type Reloader interface {
	Reload()
}

// Option configures Follow.
type Option func(*follower)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(f *follower) {
		f.logger = logger
	}
}

// WithBackoff sets the reconnect delays. The delay doubles after every
// failed attempt up to maxDelay and resets after a successful connection.
func WithBackoff(initial, maxDelay time.Duration) Option {
	return func(f *follower) {
		f.initial = initial
		f.max = maxDelay
	}
}

// WithHeader sets headers sent with the websocket handshake, such as
// credentials.
func WithHeader(header http.Header) Option {
	return func(f *follower) {
		f.header = header
	}
}

// WithDialer overrides the websocket dialer.
func WithDialer(dialer *websocket.Dialer) Option {
	return func(f *follower) {
		f.dialer = dialer
	}
}

// WithEventHandler registers fn to observe every decoded event.
func WithEventHandler(fn func(Event)) Option {
	return func(f *follower) {
		f.onEvent = fn
	}
}

type follower struct {
	url      string
	reloader Reloader
	logger   *zap.Logger
	dialer   *websocket.Dialer
	header   http.Header
	initial  time.Duration
	max      time.Duration
	onEvent  func(Event)
}

// Follow connects to the change feed at url and calls r.Reload for every
// change event, reconnecting with backoff until ctx is done. After a
// reconnect it reloads once to catch changes missed while disconnected.
// It returns ctx.Err().
func Follow(ctx context.Context, url string, r Reloader, opts ...Option) error {
	f := &follower{
		url:      url,
		reloader: r,
		logger:   zap.NewNop(),
		dialer:   websocket.DefaultDialer,
		initial:  DefaultInitialBackoff,
		max:      DefaultMaxBackoff,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.Named("live").With(zap.String("url", url))

	delay := f.initial
	connected := false
	for {
		err := f.session(ctx, connected, func() {
			connected = true
			delay = f.initial
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Warn("change feed disconnected", zap.Error(err), zap.Duration("retry_in", delay))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if delay > f.max {
			delay = f.max
		}
	}
}

// session runs one connection until it fails or ctx is done.
func (f *follower) session(ctx context.Context, reconnect bool, onConnect func()) error {
	conn, resp, err := f.dialer.DialContext(ctx, f.url, f.header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return err
	}
	onConnect()
	f.logger.Info("change feed connected")

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
			_ = conn.Close()
		}
	}()

	if reconnect {
		f.reloader.Reload()
	}

	for {
		var event Event
		if err := conn.ReadJSON(&event); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return ErrFeedClosed
			}
			return err
		}

		if f.onEvent != nil {
			f.onEvent(event)
		}
		if !event.IsChange() {
			continue
		}
		f.logger.Debug("change received", zap.String("type", event.Type), zap.String("id", event.ID))
		f.reloader.Reload()
	}
}
