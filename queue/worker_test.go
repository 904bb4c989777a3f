package queue

import (
	"context"
	"testing"

	"github.com/goliatone/go-crm-sync/core"
)

type memDelivery struct {
	msg    *core.JobExecutionMessage
	acked  bool
	nacked bool
	opts   core.JobNackOptions
}

func (d *memDelivery) Message() *core.JobExecutionMessage { return d.msg }

func (d *memDelivery) Ack(context.Context) error {
	d.acked = true
	return nil
}

func (d *memDelivery) Nack(_ context.Context, opts core.JobNackOptions) error {
	d.nacked = true
	d.opts = opts
	return nil
}

type memDequeuer struct {
	deliveries []core.JobDelivery
}

func (q *memDequeuer) Dequeue(ctx context.Context) (core.JobDelivery, error) {
	if len(q.deliveries) == 0 {
		return nil, context.Canceled
	}
	next := q.deliveries[0]
	q.deliveries = q.deliveries[1:]
	return next, nil
}

func newTestWorker(t *testing.T, registry core.StrategyRegistry, cascade CascadeSyncer, dequeuer core.JobDequeuer) *Worker {
	t.Helper()
	runner := newTestRunner(t, registry, cascade, &memFailures{})
	worker, err := NewWorker(dequeuer, runner, registry)
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}
	return worker
}

func TestWorker_AcksSuccessfulRun(t *testing.T) {
	registry := core.NewRegistry()
	pull := &fakePullStrategy{
		modelType: core.EntityCompany,
		pending:   []core.PendingItem{pendingItem(core.EntityCompany, "pl-1")},
	}
	if err := registry.RegisterPull(pull); err != nil {
		t.Fatalf("RegisterPull: %v", err)
	}
	worker := newTestWorker(t, registry, &fakeCascade{}, &memDequeuer{})

	delivery := &memDelivery{msg: &core.JobExecutionMessage{
		JobID:      JobPull,
		Parameters: map[string]any{"entity": core.EntityCompany},
	}}
	worker.Process(context.Background(), delivery)

	if !delivery.acked || delivery.nacked {
		t.Fatalf("expected ack, got %+v", delivery)
	}
}

func TestWorker_RequeuesRetryableFailure(t *testing.T) {
	registry := core.NewRegistry()
	pull := &fakePullStrategy{
		modelType: core.EntityCompany,
		pending:   []core.PendingItem{pendingItem(core.EntityCompany, "pl-1")},
	}
	if err := registry.RegisterPull(pull); err != nil {
		t.Fatalf("RegisterPull: %v", err)
	}
	cascade := &fakeCascade{errFor: map[string]error{
		"pl-1": core.NewTransportError("remote down", nil),
	}}
	worker := newTestWorker(t, registry, cascade, &memDequeuer{})

	delivery := &memDelivery{msg: &core.JobExecutionMessage{JobID: JobPull}}
	worker.Process(context.Background(), delivery)

	if !delivery.nacked || !delivery.opts.Requeue {
		t.Fatalf("expected requeueing nack, got %+v", delivery.opts)
	}
	if delivery.opts.Delay <= 0 {
		t.Fatalf("expected retry delay")
	}
}

func TestWorker_DeadLettersTerminalFailure(t *testing.T) {
	worker := newTestWorker(t, core.NewRegistry(), &fakeCascade{}, &memDequeuer{})

	delivery := &memDelivery{msg: &core.JobExecutionMessage{
		JobID:      JobPull,
		Parameters: map[string]any{"entity": "invoice"},
	}}
	worker.Process(context.Background(), delivery)

	if !delivery.nacked || !delivery.opts.DeadLetter {
		t.Fatalf("expected dead-letter nack, got %+v", delivery.opts)
	}
}

func TestWorker_AcksUnknownJob(t *testing.T) {
	worker := newTestWorker(t, core.NewRegistry(), &fakeCascade{}, &memDequeuer{})

	delivery := &memDelivery{msg: &core.JobExecutionMessage{JobID: "crm.sync.unknown"}}
	worker.Process(context.Background(), delivery)

	if !delivery.acked {
		t.Fatalf("expected unknown job to be acked and dropped")
	}
}

func TestWorker_RunDrainsUntilContextEnds(t *testing.T) {
	registry := core.NewRegistry()
	pull := &fakePullStrategy{modelType: core.EntityCompany}
	if err := registry.RegisterPull(pull); err != nil {
		t.Fatalf("RegisterPull: %v", err)
	}
	first := &memDelivery{msg: &core.JobExecutionMessage{JobID: JobPull}}
	second := &memDelivery{msg: &core.JobExecutionMessage{JobID: JobPull}}
	dequeuer := &memDequeuer{deliveries: []core.JobDelivery{first, second}}
	worker := newTestWorker(t, registry, &fakeCascade{}, dequeuer)

	if err := worker.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !first.acked || !second.acked {
		t.Fatalf("expected both deliveries processed")
	}
}
