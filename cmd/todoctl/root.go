package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vyrodovalexey/restresource/internal/config"
	"github.com/vyrodovalexey/restresource/internal/model"
	"github.com/vyrodovalexey/restresource/pkg/httpclient"
	"github.com/vyrodovalexey/restresource/pkg/reactive"
	"github.com/vyrodovalexey/restresource/pkg/resource"
)

// todosEndpoint is relative to the configured base URL.
const todosEndpoint = "todos"

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	strategy   string
	behavior   string
	verbose    bool
}

func newRootCmd(out io.Writer) *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:   "todoctl",
		Short: "todoctl manages the todo list of a todo API server",
		Long: `todoctl reads and edits the todo list through a reactive resource.

Settings come from an optional YAML file (--config) and TODOCTL_*
environment variables. --strategy and --behavior override the resource
profile of the file for every mutation kind.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)

	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "Path to the client config file")
	cmd.PersistentFlags().StringVar(&flags.strategy, "strategy", "",
		"Mutation strategy: pessimistic, optimistic or incremental")
	cmd.PersistentFlags().StringVar(&flags.behavior, "behavior", "",
		"Flattening behavior: concat, merge, switch or exhaust")
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Log every request")

	cmd.AddCommand(
		newListCmd(flags),
		newAddCmd(flags),
		newDoneCmd(flags),
		newRmCmd(flags),
		newWatchCmd(flags),
	)

	return cmd
}

// session is one connection to the todo collection.
type session struct {
	cfg    *config.Client
	logger *zap.Logger
	todos  *resource.Resource[model.Todo, string]

	mu     sync.Mutex
	lastID string
	scope  *reactive.Scope
}

// openSession loads the client config and creates the todo resource with
// query string params. The initial fetch is already in flight on return.
func openSession(flags *globalFlags, params string) (*session, error) {
	cfg, err := config.LoadClient(flags.configPath)
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel, flags.verbose)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	clientOpts := []httpclient.Option{
		httpclient.WithBaseURL(cfg.BaseURL),
		httpclient.WithDataPath("$.data"),
		httpclient.WithTimeout(cfg.Timeout),
		httpclient.WithLogger(logger),
	}
	switch {
	case cfg.APIKey != "":
		clientOpts = append(clientOpts, httpclient.WithAPIKey(cfg.APIKey))
	case cfg.Username != "":
		clientOpts = append(clientOpts, httpclient.WithBasicAuth(cfg.Username, cfg.Password))
	}

	client, err := httpclient.New[model.Todo, string](clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating HTTP client: %w", err)
	}

	s := &session{
		cfg:    cfg,
		logger: logger,
		scope:  reactive.NewScope(),
	}

	opts := resource.Options[model.Todo, string]{
		Logger: logger,
		Create: resource.CreateOptions[model.Todo, string]{
			ID: resource.IDOptions[model.Todo, string]{Generator: s.generateID},
		},
	}
	// A filtered view reloads after every mutation.
	if params != "" {
		opts.Params = reactive.NewCell(params)
	}
	opts.ApplyProfile(cfg.Resource)
	applyFlags(&opts, flags)

	todos, err := resource.New[model.Todo, string](todosEndpoint, client, opts)
	if err != nil {
		return nil, fmt.Errorf("creating todo resource: %w", err)
	}
	s.todos = todos

	return s, nil
}

// generateID hands out sortable IDs and remembers the last one so that
// add can report it.
func (s *session) generateID() string {
	id := resource.ULIDGenerator()()
	s.mu.Lock()
	s.lastID = id
	s.mu.Unlock()
	return id
}

func (s *session) lastGeneratedID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastID
}

func (s *session) close() {
	s.scope.Close()
	s.todos.Destroy()
	_ = s.logger.Sync()
}

// settle waits for in-flight work and returns the error held by errCell.
func (s *session) settle(ctx context.Context, errCell reactive.Readable[error]) error {
	if err := s.todos.Wait(ctx); err != nil {
		return err
	}
	return errCell.Get()
}

// load waits for the collection and fails if it could not be read.
func (s *session) load(ctx context.Context) ([]model.Todo, error) {
	if err := s.settle(ctx, s.todos.ErrorRead()); err != nil {
		return nil, fmt.Errorf("loading todos: %w", err)
	}
	return s.todos.Values().Get(), nil
}

// find returns the cached todo with id.
func (s *session) find(ctx context.Context, id string) (model.Todo, error) {
	todos, err := s.load(ctx)
	if err != nil {
		return model.Todo{}, err
	}
	for _, todo := range todos {
		if todo.ID == id {
			return todo, nil
		}
	}
	return model.Todo{}, fmt.Errorf("%w: %s", errTodoNotFound, id)
}

// authHeader carries the configured credentials to the change feed.
func (s *session) authHeader() http.Header {
	header := http.Header{}
	switch {
	case s.cfg.APIKey != "":
		header.Set("X-API-Key", s.cfg.APIKey)
	case s.cfg.Username != "":
		r := http.Request{Header: header}
		r.SetBasicAuth(s.cfg.Username, s.cfg.Password)
	}
	return header
}

var errTodoNotFound = errors.New("todo not found")

// applyFlags overrides the resource strategy and the behavior of every
// mutation kind. resource.New validates the values.
func applyFlags(opts *resource.Options[model.Todo, string], flags *globalFlags) {
	if flags.strategy != "" {
		strategy := resource.Strategy(flags.strategy)
		opts.Strategy = strategy
		opts.Create.Strategy = strategy
		opts.Update.Strategy = strategy
		opts.Remove.Strategy = strategy
	}
	if flags.behavior != "" {
		behavior := resource.Behavior(flags.behavior)
		opts.Create.Behavior = behavior
		opts.Update.Behavior = behavior
		opts.Remove.Behavior = behavior
	}
	if flags.verbose {
		opts.Verbose = true
	}
}

// feedURL derives the change feed address from the API base URL:
// http://host:8080/api/v1 becomes ws://host:8080/ws.
func feedURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("%w: %s", config.ErrInvalidBaseURL, baseURL)
	}

	u.Path = "/ws"
	u.RawPath = ""
	u.RawQuery = ""
	return u.String(), nil
}

// listParams builds the query string of a filtered listing.
func listParams(query, completed string) (string, error) {
	values := url.Values{}
	if query != "" {
		values.Set("q", query)
	}
	switch strings.ToLower(completed) {
	case "":
	case "true", "false":
		values.Set("completed", strings.ToLower(completed))
	default:
		return "", fmt.Errorf("--completed must be true or false, got %q", completed)
	}

	if len(values) == 0 {
		return "", nil
	}
	return "?" + values.Encode(), nil
}

// newLogger builds a console logger for stderr. --verbose forces debug.
func newLogger(level string, verbose bool) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.WarnLevel
	}
	if verbose {
		zapLevel = zapcore.DebugLevel
	}

	zapConfig := zap.NewDevelopmentConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(zapLevel)
	zapConfig.DisableStacktrace = true
	zapConfig.OutputPaths = []string{"stderr"}

	return zapConfig.Build()
}
