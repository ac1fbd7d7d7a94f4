package httpclient

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds a request when no http.Client is supplied.
const DefaultTimeout = 30 * time.Second

// Option configures a Client.
type Option func(*options)

type options struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	headers    http.Header
	dataPath   string
	logger     *zap.Logger
	requestID  func() string
}

// WithBaseURL prefixes every relative request URL, so a resource can be
// declared with a path such as "/api/v1/todos".
func WithBaseURL(baseURL string) Option {
	return func(o *options) {
		o.baseURL = baseURL
	}
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(o *options) {
		o.headers.Add(key, value)
	}
}

// WithAPIKey authenticates requests with the X-API-Key header.
func WithAPIKey(key string) Option {
	return WithHeader("X-API-Key", key)
}

// WithBasicAuth authenticates requests with HTTP basic auth.
func WithBasicAuth(username, password string) Option {
	return func(o *options) {
		r := http.Request{Header: http.Header{}}
		r.SetBasicAuth(username, password)
		o.headers.Set("Authorization", r.Header.Get("Authorization"))
	}
}

// WithDataPath selects the payload inside an enveloped response with a
// JSONPath expression, for example "$.data".
func WithDataPath(path string) Option {
	return func(o *options) {
		o.dataPath = path
	}
}

// WithLogger sets the logger for request diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRequestIDGenerator overrides the X-Request-ID generator.
func WithRequestIDGenerator(gen func() string) Option {
	return func(o *options) {
		o.requestID = gen
	}
}
