package outqueue

import (
	"net/http"

	"github.com/bft-labs/outqueue/internal/app"
)

// Option configures optional behavior of a Queue.
type Option func(*options)

type options struct {
	httpClient   HTTPClient
	logger       Logger
	eventHandler EventHandler
	plugins      []Plugin
	store        Store
	registry     *Registry
	cookieJar    http.CookieJar
}

// Registry coordinates flushes across several queues in one process.
type Registry = app.Registry

// NewRegistry creates an empty registry.
func NewRegistry(logger Logger) *Registry {
	return app.NewRegistry(logger)
}

// WithHTTPClient sets a custom HTTP client for collector requests.
func WithHTTPClient(client HTTPClient) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithLogger sets a custom logger. Without one nothing is logged.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEventHandler sets a handler for queue events.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithPlugin registers a plugin to be initialized on Start.
func WithPlugin(plugin Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, plugin)
	}
}

// WithStore sets the persistence backend. See the store constructors in
// this package.
func WithStore(store Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithRegistry shares a registry between queues so one unload flushes them
// all. Each Queue otherwise gets its own.
func WithRegistry(r *Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithCookieJar supplies the cookies sent when SecureCredentials is on.
func WithCookieJar(jar http.CookieJar) Option {
	return func(o *options) {
		o.cookieJar = jar
	}
}
