//go:build e2e

package e2e_test

import (
	"context"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/restresource/internal/auth"
	"github.com/vyrodovalexey/restresource/internal/config"
	"github.com/vyrodovalexey/restresource/internal/model"
	"github.com/vyrodovalexey/restresource/internal/server"
	"github.com/vyrodovalexey/restresource/internal/store"
	"github.com/vyrodovalexey/restresource/pkg/httpclient"
	"github.com/vyrodovalexey/restresource/pkg/resource"
)

// DefaultTimeout bounds every wait in the suite.
const DefaultTimeout = 10 * time.Second

// todosEndpoint is relative to the API base URL.
const todosEndpoint = "todos"

// apiServer is an in-process todo API.
type apiServer struct {
	baseURL string
	feedURL string
	store   *store.MemoryStore
}

// seedTodos is the collection every test starts from.
func seedTodos() []model.Todo {
	return []model.Todo{
		{ID: "1", Description: "Buy milk"},
		{ID: "2", Description: "Walk the dog", Completed: true},
	}
}

// startServer runs the todo API on a loopback port until the test ends.
// A nil authenticator disables authentication.
func startServer(t *testing.T, authenticator auth.Authenticator) *apiServer {
	t.Helper()

	cfg := &config.Config{
		ServerPort:      8080,
		LogLevel:        "info",
		ShutdownTimeout: 5 * time.Second,
		MetricsEnabled:  true,
		AuthMode:        "none",
	}
	todoStore := store.NewMemoryStore(seedTodos()...)
	srv := server.New(cfg, zap.NewNop(), todoStore, authenticator)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		require.NoError(t, srv.Shutdown(ctx))
		require.NoError(t, <-served)
	})

	addr := ln.Addr().String()
	return &apiServer{
		baseURL: "http://" + addr + "/api/v1",
		feedURL: "ws://" + addr + "/ws",
		store:   todoStore,
	}
}

// newClient builds the HTTP collaborator for api.
func newClient(t *testing.T, api *apiServer, opts ...httpclient.Option) *httpclient.Client[model.Todo, string] {
	t.Helper()

	opts = append([]httpclient.Option{
		httpclient.WithBaseURL(api.baseURL),
		httpclient.WithDataPath("$.data"),
		httpclient.WithTimeout(DefaultTimeout),
	}, opts...)

	client, err := httpclient.New[model.Todo, string](opts...)
	require.NoError(t, err)
	return client
}

// newTodos creates a resource that is destroyed when the test ends.
func newTodos(
	t *testing.T,
	client resource.Client[model.Todo, string],
	opts resource.Options[model.Todo, string],
) *resource.Resource[model.Todo, string] {
	t.Helper()

	todos, err := resource.New[model.Todo, string](todosEndpoint, client, opts)
	require.NoError(t, err)
	t.Cleanup(todos.Destroy)
	return todos
}

// settle waits until every request the resource started has completed.
func settle(t *testing.T, todos *resource.Resource[model.Todo, string]) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()
	require.NoError(t, todos.Wait(ctx))
}

// ids lists the IDs of todos in order.
func ids(todos []model.Todo) []string {
	out := make([]string, 0, len(todos))
	for _, todo := range todos {
		out = append(out, todo.ID)
	}
	return out
}

// gatedTransport counts requests by method and holds the selected methods
// until the gate opens or the request context ends.
type gatedTransport struct {
	next http.RoundTripper
	hold map[string]bool

	mu     sync.Mutex
	counts map[string]int
	gate   chan struct{}
	once   sync.Once

	waiting atomic.Int32
}

func newGatedTransport(hold ...string) *gatedTransport {
	g := &gatedTransport{
		next:   http.DefaultTransport,
		hold:   map[string]bool{},
		counts: map[string]int{},
		gate:   make(chan struct{}),
	}
	for _, method := range hold {
		g.hold[method] = true
	}
	return g
}

func (g *gatedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if g.hold[req.Method] {
		g.waiting.Add(1)
		select {
		case <-g.gate:
			g.waiting.Add(-1)
		case <-req.Context().Done():
			g.waiting.Add(-1)
			return nil, req.Context().Err()
		}
	}

	g.mu.Lock()
	g.counts[req.Method]++
	g.mu.Unlock()

	return g.next.RoundTrip(req)
}

// open releases held and future requests.
func (g *gatedTransport) open() {
	g.once.Do(func() { close(g.gate) })
}

// sent returns how many requests with method reached the server.
func (g *gatedTransport) sent(method string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.counts[method]
}

func (g *gatedTransport) httpClient() *http.Client {
	return &http.Client{Transport: g, Timeout: DefaultTimeout}
}
