package crmsync

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-crm-sync/adapters/gologger"
	"github.com/goliatone/go-crm-sync/cascade"
	"github.com/goliatone/go-crm-sync/core"
	"github.com/goliatone/go-crm-sync/correlate"
	"github.com/goliatone/go-crm-sync/queue"
	"github.com/goliatone/go-crm-sync/ratelimit"
	"github.com/goliatone/go-crm-sync/remote"
	"github.com/goliatone/go-crm-sync/strategy"
	"github.com/goliatone/go-crm-sync/transport"
	"github.com/goliatone/go-crm-sync/webhooks"
)

// Engine assembles the sync machinery behind one surface: strategies in a
// registry, the cascade resolver over them, the webhook router, and the queue
// accounting. Collaborators arrive through options; the engine builds the
// standard company and opportunity strategies itself when the persistence and
// transport collaborators are present.
type Engine struct {
	cfg      core.Config
	provider core.LoggerProvider
	logger   core.Logger

	registry core.StrategyRegistry
	matcher  core.CorrelationMatcher
	cascade  *cascade.Resolver
	router   *webhooks.Router
	webhook  *webhooks.Handler

	stores core.StoreProvider
	local  core.LocalStore
	remote core.RemoteClient

	queueService *queue.Service
	runner       *queue.Runner
	worker       *queue.Worker
}

type engineOptions struct {
	provider        core.LoggerProvider
	logger          core.Logger
	configProvider  core.ConfigProvider
	optionsResolver core.OptionsResolver
	override        core.Config

	registry core.StrategyRegistry
	matcher  core.CorrelationMatcher
	stores   core.StoreProvider
	local    core.LocalStore
	remote   core.RemoteClient
	adapter  core.TransportAdapter
	policy   core.RateLimitPolicy
	token    string

	enqueuer core.JobEnqueuer
	dequeuer core.JobDequeuer
	hooks    *ExtensionHooks
	maxDepth int
}

type EngineOption func(*engineOptions)

func WithLogger(logger core.Logger) EngineOption {
	return func(o *engineOptions) { o.logger = logger }
}

func WithLoggerProvider(provider core.LoggerProvider) EngineOption {
	return func(o *engineOptions) { o.provider = provider }
}

func WithConfigProvider(provider core.ConfigProvider) EngineOption {
	return func(o *engineOptions) { o.configProvider = provider }
}

func WithOptionsResolver(resolver core.OptionsResolver) EngineOption {
	return func(o *engineOptions) { o.optionsResolver = resolver }
}

// WithConfigOverride sets runtime values that win over loaded configuration.
func WithConfigOverride(cfg core.Config) EngineOption {
	return func(o *engineOptions) { o.override = cfg }
}

func WithRegistry(registry core.StrategyRegistry) EngineOption {
	return func(o *engineOptions) { o.registry = registry }
}

func WithCorrelationMatcher(matcher core.CorrelationMatcher) EngineOption {
	return func(o *engineOptions) { o.matcher = matcher }
}

func WithStoreProvider(stores core.StoreProvider) EngineOption {
	return func(o *engineOptions) { o.stores = stores }
}

func WithLocalStore(local core.LocalStore) EngineOption {
	return func(o *engineOptions) { o.local = local }
}

func WithRemoteClient(client core.RemoteClient) EngineOption {
	return func(o *engineOptions) { o.remote = client }
}

// WithTransportAdapter overrides the transport the engine builds its remote
// client on. Without it the client speaks GraphQL over cfg.Remote.Endpoint.
func WithTransportAdapter(adapter core.TransportAdapter) EngineOption {
	return func(o *engineOptions) { o.adapter = adapter }
}

func WithRateLimitPolicy(policy core.RateLimitPolicy) EngineOption {
	return func(o *engineOptions) { o.policy = policy }
}

func WithRemoteToken(token string) EngineOption {
	return func(o *engineOptions) { o.token = token }
}

func WithEnqueuer(enqueuer core.JobEnqueuer) EngineOption {
	return func(o *engineOptions) { o.enqueuer = enqueuer }
}

func WithDequeuer(dequeuer core.JobDequeuer) EngineOption {
	return func(o *engineOptions) { o.dequeuer = dequeuer }
}

func WithExtensionHooks(hooks *ExtensionHooks) EngineOption {
	return func(o *engineOptions) { o.hooks = hooks }
}

func WithCascadeMaxDepth(depth int) EngineOption {
	return func(o *engineOptions) { o.maxDepth = depth }
}

func collectOptions(opts []EngineOption) engineOptions {
	collected := engineOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&collected)
	}
	return collected
}

// NewEngine wires an engine from an already-resolved config. Use Setup when
// the config still needs loading and layering.
func NewEngine(cfg core.Config, opts ...EngineOption) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	options := collectOptions(opts)
	provider, logger := glog.Resolve(cfg.ServiceName, options.provider, options.logger)

	engine := &Engine{
		cfg:      cfg,
		provider: provider,
		logger:   logger,
		registry: options.registry,
		matcher:  options.matcher,
		stores:   options.stores,
		local:    options.local,
		remote:   options.remote,
	}
	if engine.registry == nil {
		engine.registry = core.NewRegistry()
	}
	if engine.matcher == nil {
		matcher, err := correlate.Default(correlate.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		engine.matcher = matcher
	}

	if engine.remote == nil && (options.adapter != nil || strings.TrimSpace(cfg.Remote.Endpoint) != "") {
		client, err := engine.buildRemoteClient(options)
		if err != nil {
			return nil, err
		}
		engine.remote = client
	}

	if err := engine.registerDefaultStrategies(); err != nil {
		return nil, err
	}
	if options.hooks != nil {
		if err := options.hooks.ApplyStrategyPacks(engine.registry); err != nil {
			return nil, err
		}
	}

	cascadeOpts := []cascade.Option{cascade.WithLogger(logger)}
	if options.maxDepth > 0 {
		cascadeOpts = append(cascadeOpts, cascade.WithMaxDepth(options.maxDepth))
	}
	resolver, err := cascade.New(engine.registry, cascadeOpts...)
	if err != nil {
		return nil, err
	}
	engine.cascade = resolver

	router, err := webhooks.NewRouter(engine.registry, resolver, webhooks.WithRouterLogger(logger))
	if err != nil {
		return nil, err
	}
	engine.router = router
	handler, err := webhooks.NewHandler(router, webhooks.WithHandlerLogger(logger))
	if err != nil {
		return nil, err
	}
	engine.webhook = handler

	if options.enqueuer != nil {
		serviceOpts := []queue.ServiceOption{queue.WithServiceLogger(logger)}
		if engine.stores != nil {
			serviceOpts = append(serviceOpts, queue.WithFailureStore(engine.stores.SyncFailureStore()))
		}
		service, err := queue.NewService(engine.registry, options.enqueuer, serviceOpts...)
		if err != nil {
			return nil, err
		}
		engine.queueService = service
	}

	if engine.stores != nil {
		runner, err := queue.NewRunner(engine.registry, resolver, engine.stores.SyncFailureStore(), queue.WithRunnerLogger(logger))
		if err != nil {
			return nil, err
		}
		engine.runner = runner

		if options.dequeuer != nil {
			worker, err := queue.NewWorker(options.dequeuer, runner, engine.registry, queue.WithWorkerLogger(logger))
			if err != nil {
				return nil, err
			}
			engine.worker = worker
		}
	}

	return engine, nil
}

// Setup loads configuration through the go-config provider, layers runtime
// overrides through the go-options resolver, builds the engine, and scopes
// every strategy to the configured sales units.
func Setup(ctx context.Context, defaults core.Config, opts ...EngineOption) (*Engine, error) {
	options := collectOptions(opts)

	configProvider := options.configProvider
	if configProvider == nil {
		configProvider = core.NewCfgxConfigProvider(nil)
	}
	loaded, err := configProvider.Load(ctx, defaults)
	if err != nil {
		return nil, err
	}

	var resolver core.OptionsResolver = core.GoOptionsResolver{}
	if options.optionsResolver != nil {
		resolver = options.optionsResolver
	}
	resolved, err := resolver.Resolve(defaults, loaded, options.override)
	if err != nil {
		return nil, err
	}

	engine, err := NewEngine(resolved, opts...)
	if err != nil {
		return nil, err
	}
	if err := engine.LoadSalesUnits(ctx); err != nil {
		return nil, err
	}
	return engine, nil
}

// buildRemoteClient assembles the remote CRM client from cfg.Remote. The
// remote API is GraphQL-shaped, so the default transport is the GraphQL
// adapter over its REST layer.
func (e *Engine) buildRemoteClient(options engineOptions) (core.RemoteClient, error) {
	if strings.TrimSpace(e.cfg.Remote.Endpoint) == "" {
		return nil, fmt.Errorf("crmsync: remote.endpoint is required to build a client")
	}
	adapter := options.adapter
	if adapter == nil {
		adapter = transport.NewGraphQLAdapter(e.cfg.Remote.Endpoint, nil)
	}
	policy := options.policy
	if policy == nil {
		policy = ratelimit.NewAdaptivePolicy(ratelimit.NewMemoryStateStore())
	}
	return remote.New(remote.Config{
		Endpoint: e.cfg.Remote.Endpoint,
		Space:    e.cfg.Remote.Space,
		Token:    options.token,
		Adapter:  adapter,
		Policy:   policy,
		Logger:   e.logger,
	})
}

// registerDefaultStrategies builds the stock company and opportunity
// strategies when the needed collaborators are present. Missing collaborators
// leave the registry empty rather than failing; callers composing their own
// strategies register them through the registry or extension hooks.
func (e *Engine) registerDefaultStrategies() error {
	if e.remote == nil || e.local == nil || e.stores == nil {
		return nil
	}
	deps := strategy.Deps{
		Remote:   e.remote,
		Local:    e.local,
		Links:    e.stores.LinkedEntityStore(),
		Matcher:  e.matcher,
		Logger:   e.logger,
		PageSize: e.cfg.Queue.PageSize,
	}

	companyPull, err := strategy.NewCompanyPull(deps)
	if err != nil {
		return err
	}
	opportunityPull, err := strategy.NewOpportunityPull(deps)
	if err != nil {
		return err
	}
	companyPush, err := strategy.NewCompanyPush(deps)
	if err != nil {
		return err
	}
	opportunityPush, err := strategy.NewOpportunityPush(deps)
	if err != nil {
		return err
	}

	if err := e.registry.RegisterPull(companyPull); err != nil {
		return err
	}
	if err := e.registry.RegisterPull(opportunityPull); err != nil {
		return err
	}
	if err := e.registry.RegisterPush(companyPush); err != nil {
		return err
	}
	return e.registry.RegisterPush(opportunityPush)
}

// LoadSalesUnits resolves the configured sales-unit scope and applies it to
// every registered strategy. Configured unit ids win; with none configured
// the scope is every enabled unit.
func (e *Engine) LoadSalesUnits(ctx context.Context) error {
	if e == nil || e.stores == nil {
		return nil
	}
	unitStore := e.stores.SalesUnitStore()
	if unitStore == nil {
		return nil
	}

	var units []core.SalesUnit
	if len(e.cfg.SalesUnits) > 0 {
		for _, id := range e.cfg.SalesUnits {
			unit, err := unitStore.Get(ctx, strings.TrimSpace(id))
			if err != nil {
				return err
			}
			units = append(units, unit)
		}
	} else {
		enabled, err := unitStore.ListEnabled(ctx)
		if err != nil {
			return err
		}
		units = enabled
	}

	for _, pull := range e.registry.ListPull() {
		pull.SetSalesUnits(units)
	}
	for _, push := range e.registry.ListPush() {
		push.SetSalesUnits(units)
	}
	e.logger.Info("sales unit scope applied",
		"units", len(units),
	)
	return nil
}

func (e *Engine) Config() core.Config {
	if e == nil {
		return core.Config{}
	}
	return e.cfg
}

func (e *Engine) Registry() core.StrategyRegistry {
	if e == nil {
		return nil
	}
	return e.registry
}

func (e *Engine) Cascade() *cascade.Resolver {
	if e == nil {
		return nil
	}
	return e.cascade
}

func (e *Engine) WebhookHandler() http.Handler {
	if e == nil {
		return nil
	}
	return e.webhook
}

func (e *Engine) QueueService() *queue.Service {
	if e == nil {
		return nil
	}
	return e.queueService
}

func (e *Engine) Runner() *queue.Runner {
	if e == nil {
		return nil
	}
	return e.runner
}

func (e *Engine) Worker() *queue.Worker {
	if e == nil {
		return nil
	}
	return e.worker
}

func (e *Engine) Stores() core.StoreProvider {
	if e == nil {
		return nil
	}
	return e.stores
}

func (e *Engine) RemoteClient() core.RemoteClient {
	if e == nil {
		return nil
	}
	return e.remote
}

// JobLoggers exposes the engine's resolved logging pair through the go-job
// contracts, so an embedding queue runtime logs to the same sink the engine
// does.
func (e *Engine) JobLoggers() (job.LoggerProvider, job.Logger) {
	if e == nil {
		return nil, nil
	}
	return gologger.ToJobProvider(e.provider), gologger.ToJobLogger(e.logger)
}

func engineDependencyError(message string) error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.SyncErrorInternal)
}
