package queue

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/goliatone/go-crm-sync/core"
)

type memEnqueuer struct {
	messages []*core.JobExecutionMessage
	err      error
}

func (e *memEnqueuer) Enqueue(_ context.Context, msg *core.JobExecutionMessage) error {
	if e.err != nil {
		return e.err
	}
	e.messages = append(e.messages, msg)
	return nil
}

func newCountRegistry(t *testing.T) core.StrategyRegistry {
	t.Helper()
	registry := core.NewRegistry()
	if err := registry.RegisterPull(&fakePullStrategy{modelType: core.EntityOpportunity, count: 2}); err != nil {
		t.Fatalf("RegisterPull: %v", err)
	}
	if err := registry.RegisterPush(&fakePushStrategy{modelType: core.EntityOpportunity, count: 1}); err != nil {
		t.Fatalf("RegisterPush: %v", err)
	}
	if err := registry.RegisterPull(&fakePullStrategy{modelType: core.EntityCompany, count: 5}); err != nil {
		t.Fatalf("RegisterPull: %v", err)
	}
	return registry
}

func TestCounts_AggregatesPullAndPushBacklogs(t *testing.T) {
	service, err := NewService(newCountRegistry(t), &memEnqueuer{})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	counts, err := service.Counts(context.Background())
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts.Opportunities() != 3 || counts.Companies() != 5 {
		t.Fatalf("unexpected counts %+v", counts)
	}

	encoded, err := json.Marshal(counts)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(encoded) != `{"opportunities":3,"companies":5}` {
		t.Fatalf("unexpected JSON %s", encoded)
	}
}

func TestRequestSync_EnqueuesRunRequest(t *testing.T) {
	enqueuer := &memEnqueuer{}
	service, err := NewService(newCountRegistry(t), enqueuer)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	result, err := service.RequestSync(context.Background(), DirectionPull, core.EntityCompany)
	if err != nil {
		t.Fatalf("RequestSync: %v", err)
	}
	if !result.Queued() {
		t.Fatalf("expected request to be queued")
	}
	if len(enqueuer.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(enqueuer.messages))
	}
	msg := enqueuer.messages[0]
	if msg.JobID != JobPull {
		t.Fatalf("unexpected job id %q", msg.JobID)
	}
	if msg.Parameters["entity"] != core.EntityCompany {
		t.Fatalf("unexpected parameters %v", msg.Parameters)
	}
	if msg.IdempotencyKey == "" {
		t.Fatalf("expected idempotency key")
	}
}

func TestRequestSync_NothingPendingReportsNotQueued(t *testing.T) {
	enqueuer := &memEnqueuer{}
	service, err := NewService(core.NewRegistry(), enqueuer)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	result, err := service.RequestSync(context.Background(), DirectionPull, "")
	if err != nil {
		t.Fatalf("RequestSync: %v", err)
	}
	if result.Queued() {
		t.Fatalf("expected queued=false with an empty backlog")
	}
	if len(enqueuer.messages) != 0 {
		t.Fatalf("expected no enqueue, got %d messages", len(enqueuer.messages))
	}

	// A populated registry can still have nothing to push for one entity.
	scoped, err := NewService(newCountRegistry(t), enqueuer)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	result, err = scoped.RequestSync(context.Background(), DirectionPush, core.EntityCompany)
	if err != nil {
		t.Fatalf("RequestSync: %v", err)
	}
	if result.Queued() {
		t.Fatalf("expected queued=false for an entity with no push backlog")
	}
	if len(enqueuer.messages) != 0 {
		t.Fatalf("expected no enqueue, got %d messages", len(enqueuer.messages))
	}
}

func TestRequestSync_RejectsUnknownDirectionAndEntity(t *testing.T) {
	service, err := NewService(newCountRegistry(t), &memEnqueuer{})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	if result, err := service.RequestSync(context.Background(), Direction("sideways"), ""); err == nil || result.Queued() {
		t.Fatalf("expected unknown direction to fail")
	}
	if result, err := service.RequestSync(context.Background(), DirectionPull, "invoice"); err == nil || result.Queued() {
		t.Fatalf("expected unknown entity to fail")
	}
}

func TestRequestSync_EnqueueFailureReportsNotQueued(t *testing.T) {
	enqueuer := &memEnqueuer{err: core.NewTransportError("broker down", nil)}
	service, err := NewService(newCountRegistry(t), enqueuer)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	result, err := service.RequestSync(context.Background(), DirectionPush, "")
	if err == nil {
		t.Fatalf("expected enqueue error to propagate")
	}
	if result.Queued() {
		t.Fatalf("expected not-queued result on failure")
	}
}

func TestOpenFailures(t *testing.T) {
	failures := &memFailures{}
	failures.recorded = append(failures.recorded, core.SyncFailure{
		EntityName: core.EntityCompany,
		Status:     core.SyncFailureOpen,
	})
	service, err := NewService(newCountRegistry(t), &memEnqueuer{}, WithFailureStore(failures))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	count, err := service.OpenFailures(context.Background(), core.EntityCompany)
	if err != nil {
		t.Fatalf("OpenFailures: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one open failure, got %d", count)
	}

	bare, err := NewService(newCountRegistry(t), &memEnqueuer{})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if count, err := bare.OpenFailures(context.Background(), core.EntityCompany); err != nil || count != 0 {
		t.Fatalf("expected zero without a store, got %d %v", count, err)
	}
}
