package resource

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type todo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Done bool   `json:"done,omitempty"`
}

var errServer = errors.New("server error")

// fakeClient is an in-memory collection whose requests can be held at a
// gate and failed on demand.
type fakeClient struct {
	mu        sync.Mutex
	items     []todo
	calls     map[string]int
	urls      map[string][]string
	posted    []todo
	gates     map[string]chan struct{}
	errs      map[string]error
	cancelled int

	// bare makes POST and PUT answer without a payload.
	bare bool
	// removeByID makes DELETE answer with the bare ID.
	removeByID bool
}

func newFakeClient(items ...todo) *fakeClient {
	return &fakeClient{
		items: append([]todo(nil), items...),
		calls: make(map[string]int),
		urls:  make(map[string][]string),
		gates: make(map[string]chan struct{}),
		errs:  make(map[string]error),
	}
}

func seed() []todo {
	return []todo{{ID: "1", Name: "a"}, {ID: "2", Name: "b"}}
}

// hold makes requests of method block until release.
func (c *fakeClient) hold(method string) {
	c.mu.Lock()
	c.gates[method] = make(chan struct{})
	c.mu.Unlock()
}

func (c *fakeClient) release(method string) {
	c.mu.Lock()
	gate := c.gates[method]
	delete(c.gates, method)
	c.mu.Unlock()
	if gate != nil {
		close(gate)
	}
}

func (c *fakeClient) fail(method string, err error) {
	c.mu.Lock()
	if err == nil {
		delete(c.errs, method)
	} else {
		c.errs[method] = err
	}
	c.mu.Unlock()
}

func (c *fakeClient) count(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

func (c *fakeClient) cancelledCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}

func (c *fakeClient) urlsFor(method string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.urls[method]...)
}

func (c *fakeClient) enter(ctx context.Context, method, target string) error {
	c.mu.Lock()
	c.calls[method]++
	c.urls[method] = append(c.urls[method], target)
	gate := c.gates[method]
	err := c.errs[method]
	c.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			c.mu.Lock()
			c.cancelled++
			c.mu.Unlock()
			return ctx.Err()
		}
	}
	return err
}

func (c *fakeClient) Get(ctx context.Context, target string) ([]todo, error) {
	if err := c.enter(ctx, "GET", target); err != nil {
		return nil, err
	}

	var q string
	if _, raw, ok := strings.Cut(target, "?"); ok {
		values, _ := url.ParseQuery(raw)
		q = values.Get("q")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]todo, 0, len(c.items))
	for _, item := range c.items {
		if q == "" || strings.Contains(item.Name, q) {
			out = append(out, item)
		}
	}
	return out, nil
}

func (c *fakeClient) Post(ctx context.Context, target string, item todo) (*todo, error) {
	if err := c.enter(ctx, "POST", target); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if item.ID == "" {
		item.ID = "srv-" + item.Name
	}
	c.items = append(c.items, item)
	c.posted = append(c.posted, item)
	if c.bare {
		return nil, nil
	}
	return &item, nil
}

func (c *fakeClient) Put(ctx context.Context, target string, item todo) (*todo, error) {
	if err := c.enter(ctx, "PUT", target); err != nil {
		return nil, err
	}

	id := target[strings.LastIndex(target, "/")+1:]
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.items[i].ID == id {
			item.ID = id
			c.items[i] = item
			if c.bare {
				return nil, nil
			}
			return &item, nil
		}
	}
	return nil, errors.New("not found")
}

func (c *fakeClient) Delete(ctx context.Context, target string) (*Removal[todo, string], error) {
	if err := c.enter(ctx, "DELETE", target); err != nil {
		return nil, err
	}

	id := target[strings.LastIndex(target, "/")+1:]
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.items[i].ID == id {
			removed := c.items[i]
			c.items = append(c.items[:i:i], c.items[i+1:]...)
			if c.removeByID {
				return &Removal[todo, string]{ID: &removed.ID}, nil
			}
			return &Removal[todo, string]{Item: &removed}, nil
		}
	}
	return nil, errors.New("not found")
}

func newTestResource(t *testing.T, c *fakeClient, opts Options[todo, string]) *Resource[todo, string] {
	t.Helper()
	r, err := New[todo, string]("/todos", c, opts)
	require.NoError(t, err)
	t.Cleanup(r.Destroy)
	return r
}

// settle waits for every pipeline of r to finish.
func settle(t *testing.T, r *Resource[todo, string]) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Wait(ctx))
}

func names(items []todo) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Name)
	}
	return out
}

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)
