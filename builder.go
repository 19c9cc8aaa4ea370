package goSession

import (
	"errors"
	"net/http"
	"net/http/cookiejar"

	"github.com/hashicorp/go-hclog"

	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/redirect"
	"github.com/MrEthical07/goSession/session"
)

// TeardownListener is called after a session ends. cause is nil for an explicit
// [Client.Logout] and the refresh failure otherwise.
type TeardownListener func(cause error)

// Builder assembles a [Client]. A Builder can be built once.
type Builder struct {
	config     Config
	httpClient *http.Client
	store      *session.TokenStore
	logger     hclog.Logger
	auditSink  AuditSink
	navigator  redirect.Navigator
	listeners  []TeardownListener

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithHTTPClient sets the client used for API calls and the refresh exchange.
// It must carry a cookie jar for the refresh cookie to travel; Build adds one
// when Jar is nil.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithTokenStore shares a token store between clients.
func (b *Builder) WithTokenStore(store *session.TokenStore) *Builder {
	b.store = store
	return b
}

func (b *Builder) WithLogger(logger hclog.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithNavigator sets the navigator invoked when a request made with a location
// (see [WithLocation]) ends the session.
func (b *Builder) WithNavigator(nav redirect.Navigator) *Builder {
	b.navigator = nav
	return b
}

func (b *Builder) WithTeardownListener(fn TeardownListener) *Builder {
	if fn != nil {
		b.listeners = append(b.listeners, fn)
	}
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Client.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// -------- HTTP CLIENT --------
	httpClient := b.httpClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		clone := *httpClient
		clone.Jar = jar
		httpClient = &clone
	}

	store := b.store
	if store == nil {
		store = session.NewTokenStore()
	}

	logger := b.logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	c := &Client{
		config:     cfg,
		store:      store,
		httpClient: httpClient,
		policy: redirect.Policy{
			LoginPath:   cfg.LoginPath,
			ReturnParam: cfg.ReturnParam,
		},
		navigator: b.navigator,
		listeners: append([]TeardownListener(nil), b.listeners...),
		logger:    logger.Named("gosession"),
		metrics:   NewMetrics(cfg.Metrics),
		audit:     newAuditDispatcher(cfg.Audit, b.auditSink, logger.Named("audit")),
	}

	c.coordinator = newRefreshCoordinator(store, cfg.RefreshTimeout, c.metrics, c.logger.Named("refresh"))
	c.coordinator.onSuccess = c.refreshed
	c.coordinator.onFailure = c.refreshFailed

	// -------- FLOWS --------
	c.flows = flows.New(flows.Deps{
		Refresh: flows.RefreshDeps{
			Client:   httpClient,
			Endpoint: cfg.endpoint(cfg.RefreshPath),
		},
		Dispatch: flows.DispatchDeps{
			Client:       httpClient,
			CurrentToken: c.currentRaw,
			Refresh:      c.refreshRaw,
		},
		Sync: flows.SyncDeps{
			Client:   httpClient,
			Endpoint: cfg.endpoint(cfg.SessionPath),
		},
	})
	c.coordinator.exchange = c.flows.Refresh

	b.built = true

	return c, nil
}
