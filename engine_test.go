package crmsync

import (
	"context"
	"testing"

	"github.com/goliatone/go-crm-sync/core"
)

type stubEnqueuer struct {
	last *core.JobExecutionMessage
}

func (s *stubEnqueuer) Enqueue(_ context.Context, msg *core.JobExecutionMessage) error {
	s.last = msg
	return nil
}

type stubRawLoader struct {
	values map[string]any
}

func (s stubRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	return s.values, nil
}

func TestNewEngine_ValidatesConfig(t *testing.T) {
	if _, err := NewEngine(core.Config{}); err == nil {
		t.Fatalf("expected empty service name to fail validation")
	}
}

func TestNewEngine_BuildsWebhookSurface(t *testing.T) {
	engine, err := NewEngine(core.DefaultConfig())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if engine.Registry() == nil {
		t.Fatalf("expected default registry")
	}
	if engine.Cascade() == nil {
		t.Fatalf("expected cascade resolver")
	}
	if engine.WebhookHandler() == nil {
		t.Fatalf("expected webhook handler")
	}
	if engine.QueueService() != nil {
		t.Fatalf("expected no queue service without an enqueuer")
	}
	if engine.Runner() != nil {
		t.Fatalf("expected no runner without stores")
	}
}

func TestEngine_GuardsMissingCollaborators(t *testing.T) {
	engine, err := NewEngine(core.DefaultConfig())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	ctx := context.Background()

	if _, err := engine.RequestQueueSync(ctx, "pull", ""); err == nil {
		t.Fatalf("expected queue service guard")
	}
	if err := engine.InvalidateLink(ctx, core.EntityCompany, "pl-1", "stale"); err == nil {
		t.Fatalf("expected link store guard")
	}
	if err := engine.ResolveFailure(ctx, "fail-1"); err == nil {
		t.Fatalf("expected failure store guard")
	}
	if _, err := engine.SyncByReference(ctx, core.EntityCompany, "pl-1"); err == nil {
		t.Fatalf("expected missing strategy rejection")
	}
}

func TestEngine_RequestQueueSyncDelegates(t *testing.T) {
	hooks := NewExtensionHooks()
	if err := hooks.RegisterStrategyPack(StrategyPack{
		Name: "companies",
		Pull: []core.PullStrategy{&fakePullStrategy{modelType: core.EntityCompany, pending: 2}},
	}); err != nil {
		t.Fatalf("register strategy pack: %v", err)
	}

	enqueuer := &stubEnqueuer{}
	engine, err := NewEngine(core.DefaultConfig(), WithEnqueuer(enqueuer), WithExtensionHooks(hooks))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	result, err := engine.RequestQueueSync(context.Background(), "pull", "")
	if err != nil {
		t.Fatalf("request queue sync: %v", err)
	}
	if !result.Queued() {
		t.Fatalf("expected request to be queued")
	}
	if enqueuer.last == nil || enqueuer.last.JobID != "crm.sync.pull" {
		t.Fatalf("expected pull job enqueued, got %#v", enqueuer.last)
	}
}

func TestEngine_RequestQueueSyncEmptyBacklogIsNoOp(t *testing.T) {
	enqueuer := &stubEnqueuer{}
	engine, err := NewEngine(core.DefaultConfig(), WithEnqueuer(enqueuer))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	result, err := engine.RequestQueueSync(context.Background(), "pull", "")
	if err != nil {
		t.Fatalf("request queue sync: %v", err)
	}
	if result.Queued() {
		t.Fatalf("expected queued=false with nothing pending")
	}
	if enqueuer.last != nil {
		t.Fatalf("expected no enqueue, got %#v", enqueuer.last)
	}
}

func TestNewEngine_DefaultsToGraphQLTransport(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.Remote = core.RemoteConfig{
		Endpoint: "https://api.example.com/graphql",
		Space:    "space-1",
	}

	engine, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if engine.RemoteClient() == nil {
		t.Fatalf("expected remote client over the default graphql transport")
	}
}

func TestEngine_JobLoggers(t *testing.T) {
	engine, err := NewEngine(core.DefaultConfig())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	provider, logger := engine.JobLoggers()
	if provider == nil || logger == nil {
		t.Fatalf("expected resolved job logger pair")
	}
}

func TestSetup_LayersConfig(t *testing.T) {
	defaults := core.DefaultConfig()
	provider := core.NewCfgxConfigProvider(stubRawLoader{values: map[string]any{
		"service_name": "crm-sync-staging",
		"queue": map[string]any{
			"page_size": 25,
		},
	}})

	engine, err := Setup(context.Background(), defaults,
		WithConfigProvider(provider),
		WithConfigOverride(core.Config{
			Remote: core.RemoteConfig{
				Endpoint: "https://api.example.com/graphql",
				Space:    "space-1",
			},
		}),
	)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	cfg := engine.Config()
	if cfg.ServiceName != "crm-sync-staging" {
		t.Fatalf("expected loaded service name, got %q", cfg.ServiceName)
	}
	if cfg.Queue.PageSize != 25 {
		t.Fatalf("expected loaded page size 25, got %d", cfg.Queue.PageSize)
	}
	if cfg.Queue.MaxAttempts != defaults.Queue.MaxAttempts {
		t.Fatalf("expected default max attempts to survive, got %d", cfg.Queue.MaxAttempts)
	}
	if cfg.Remote.Endpoint != "https://api.example.com/graphql" {
		t.Fatalf("expected runtime remote endpoint, got %q", cfg.Remote.Endpoint)
	}
}
