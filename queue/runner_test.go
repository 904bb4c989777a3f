package queue

import (
	"context"
	"iter"
	"strings"
	"testing"

	"github.com/goliatone/go-crm-sync/core"
)

type fakePullStrategy struct {
	modelType string
	count     int
	pending   []core.PendingItem
	iterErr   error
}

func (f *fakePullStrategy) SetSalesUnits([]core.SalesUnit) core.SyncStrategy { return f }

func (f *fakePullStrategy) SalesUnits() []core.SalesUnit { return nil }

func (f *fakePullStrategy) CountPending(context.Context) (int, error) { return f.count, nil }

func (f *fakePullStrategy) IteratePending(context.Context) iter.Seq2[core.PendingItem, error] {
	return func(yield func(core.PendingItem, error) bool) {
		for _, item := range f.pending {
			if !yield(item, nil) {
				return
			}
		}
		if f.iterErr != nil {
			yield(core.PendingItem{}, f.iterErr)
		}
	}
}

func (f *fakePullStrategy) ModelType() string { return f.modelType }

func (f *fakePullStrategy) AppliesTo(record core.Record) bool {
	return strings.EqualFold(record.String("entity"), f.modelType)
}

func (f *fakePullStrategy) ByReference(_ context.Context, reference string) (core.Record, error) {
	return core.Record{"entity": f.modelType, "id": reference}, nil
}

func (f *fakePullStrategy) Metadata(context.Context, string) (core.RemoteMetadata, error) {
	return core.RemoteMetadata{}, nil
}

func (f *fakePullStrategy) Sync(_ context.Context, record core.Record) (core.Record, error) {
	return record, nil
}

func (f *fakePullStrategy) SyncByReference(ctx context.Context, reference string) (core.Record, error) {
	return f.ByReference(ctx, reference)
}

type fakePushStrategy struct {
	modelType string
	count     int
	pending   []core.PendingItem
	parents   map[string][]core.Record
	errFor    map[string]error
	syncLog   []string
}

func (f *fakePushStrategy) SetSalesUnits([]core.SalesUnit) core.SyncStrategy { return f }

func (f *fakePushStrategy) SalesUnits() []core.SalesUnit { return nil }

func (f *fakePushStrategy) CountPending(context.Context) (int, error) { return f.count, nil }

func (f *fakePushStrategy) IteratePending(context.Context) iter.Seq2[core.PendingItem, error] {
	return func(yield func(core.PendingItem, error) bool) {
		for _, item := range f.pending {
			if !yield(item, nil) {
				return
			}
		}
	}
}

func (f *fakePushStrategy) ModelType() string { return f.modelType }

func (f *fakePushStrategy) AppliesTo(record core.Record) bool {
	return strings.EqualFold(record.String("entity"), f.modelType)
}

func (f *fakePushStrategy) ByReference(_ context.Context, reference string) (core.Record, error) {
	return core.Record{"entity": f.modelType, "id": reference}, nil
}

func (f *fakePushStrategy) Sync(_ context.Context, record core.Record) error {
	id := record.String("id")
	f.syncLog = append(f.syncLog, id)
	if err, ok := f.errFor[id]; ok {
		return err
	}
	return nil
}

func (f *fakePushStrategy) HigherHierarchy(_ context.Context, record core.Record) iter.Seq2[core.Record, error] {
	return func(yield func(core.Record, error) bool) {
		for _, parent := range f.parents[record.String("id")] {
			if !yield(parent, nil) {
				return
			}
		}
	}
}

type fakeCascade struct {
	errFor  map[string]error
	skipFor map[string]bool
	synced  []string
}

func (c *fakeCascade) SyncCascade(_ context.Context, record core.Record) (core.Record, error) {
	id := record.String("id")
	if err, ok := c.errFor[id]; ok {
		return nil, err
	}
	if c.skipFor[id] {
		c.synced = append(c.synced, id)
		return nil, nil
	}
	c.synced = append(c.synced, id)
	return record, nil
}

type memFailures struct {
	recorded []core.SyncFailure
}

func (s *memFailures) Record(_ context.Context, failure core.SyncFailure) (core.SyncFailure, error) {
	s.recorded = append(s.recorded, failure)
	return failure, nil
}

func (s *memFailures) CountOpen(_ context.Context, entityName string) (int, error) {
	count := 0
	for _, failure := range s.recorded {
		if failure.EntityName == entityName && failure.Status == core.SyncFailureOpen {
			count++
		}
	}
	return count, nil
}

func (s *memFailures) ListOpen(_ context.Context, entityName string, limit int) ([]core.SyncFailure, error) {
	var out []core.SyncFailure
	for _, failure := range s.recorded {
		if failure.EntityName == entityName && failure.Status == core.SyncFailureOpen {
			out = append(out, failure)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *memFailures) Resolve(context.Context, string) error { return nil }

func pendingItem(entity, reference string) core.PendingItem {
	return core.PendingItem{
		EntityName: entity,
		Reference:  reference,
		Payload:    core.Record{"entity": entity, "id": reference},
	}
}

func newTestRunner(t *testing.T, registry core.StrategyRegistry, cascade CascadeSyncer, failures core.SyncFailureStore) *Runner {
	t.Helper()
	runner, err := NewRunner(registry, cascade, failures)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	return runner
}

func TestRunPull_TerminalItemErrorsAreParkedAndSkipped(t *testing.T) {
	registry := core.NewRegistry()
	pull := &fakePullStrategy{
		modelType: core.EntityCompany,
		pending: []core.PendingItem{
			pendingItem(core.EntityCompany, "pl-1"),
			pendingItem(core.EntityCompany, "pl-2"),
			pendingItem(core.EntityCompany, "pl-3"),
		},
	}
	if err := registry.RegisterPull(pull); err != nil {
		t.Fatalf("RegisterPull: %v", err)
	}
	cascade := &fakeCascade{errFor: map[string]error{
		"pl-2": core.NewNotFoundError("reference vanished", nil),
	}}
	failures := &memFailures{}
	runner := newTestRunner(t, registry, cascade, failures)

	report, err := runner.RunPull(context.Background(), core.EntityCompany)
	if err != nil {
		t.Fatalf("RunPull: %v", err)
	}
	if report.Synced != 2 || report.Failed != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if len(failures.recorded) != 1 {
		t.Fatalf("expected one parked failure, got %d", len(failures.recorded))
	}
	recorded := failures.recorded[0]
	if recorded.Kind != core.SyncFailureNotFound || recorded.Reference != "pl-2" {
		t.Fatalf("unexpected failure %+v", recorded)
	}
	if len(cascade.synced) != 2 {
		t.Fatalf("expected run to continue past the parked item")
	}
}

func TestRunPull_RetryableErrorAbortsRun(t *testing.T) {
	registry := core.NewRegistry()
	pull := &fakePullStrategy{
		modelType: core.EntityCompany,
		pending: []core.PendingItem{
			pendingItem(core.EntityCompany, "pl-1"),
			pendingItem(core.EntityCompany, "pl-2"),
		},
	}
	if err := registry.RegisterPull(pull); err != nil {
		t.Fatalf("RegisterPull: %v", err)
	}
	cascade := &fakeCascade{errFor: map[string]error{
		"pl-1": core.NewTransportError("remote down", nil),
	}}
	failures := &memFailures{}
	runner := newTestRunner(t, registry, cascade, failures)

	_, err := runner.RunPull(context.Background(), core.EntityCompany)
	if !core.IsRetryable(err) {
		t.Fatalf("expected retryable error to propagate, got %v", err)
	}
	if len(failures.recorded) != 0 {
		t.Fatalf("transport failures are not operator backlog items")
	}
	if len(cascade.synced) != 0 {
		t.Fatalf("expected run aborted before later items")
	}
}

func TestRunPull_CycleIsParkedAndRunContinues(t *testing.T) {
	registry := core.NewRegistry()
	pull := &fakePullStrategy{
		modelType: core.EntityOpportunity,
		pending: []core.PendingItem{
			pendingItem(core.EntityOpportunity, "pl-1"),
			pendingItem(core.EntityOpportunity, "pl-2"),
		},
	}
	if err := registry.RegisterPull(pull); err != nil {
		t.Fatalf("RegisterPull: %v", err)
	}
	cascade := &fakeCascade{errFor: map[string]error{
		"pl-1": core.NewCycleDetectedError("hierarchy cycle", nil),
	}}
	failures := &memFailures{}
	runner := newTestRunner(t, registry, cascade, failures)

	report, err := runner.RunPull(context.Background(), core.EntityOpportunity)
	if err != nil {
		t.Fatalf("RunPull: %v", err)
	}
	if report.Failed != 1 || report.Synced != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if failures.recorded[0].Kind != core.SyncFailureCycle {
		t.Fatalf("expected cycle failure kind, got %q", failures.recorded[0].Kind)
	}
}

func TestRunPull_SkippedRecordsCounted(t *testing.T) {
	registry := core.NewRegistry()
	pull := &fakePullStrategy{
		modelType: core.EntityCompany,
		pending:   []core.PendingItem{pendingItem(core.EntityCompany, "pl-1")},
	}
	if err := registry.RegisterPull(pull); err != nil {
		t.Fatalf("RegisterPull: %v", err)
	}
	cascade := &fakeCascade{skipFor: map[string]bool{"pl-1": true}}
	runner := newTestRunner(t, registry, cascade, &memFailures{})

	report, err := runner.RunPull(context.Background(), core.EntityCompany)
	if err != nil {
		t.Fatalf("RunPull: %v", err)
	}
	if report.Skipped != 1 || report.Synced != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestRunPush_AncestorsPushedFirst(t *testing.T) {
	registry := core.NewRegistry()
	companyPush := &fakePushStrategy{modelType: core.EntityCompany}
	opportunityPush := &fakePushStrategy{
		modelType: core.EntityOpportunity,
		pending:   []core.PendingItem{{EntityName: core.EntityOpportunity, LocalID: "o-1", Payload: core.Record{"entity": core.EntityOpportunity, "id": "o-1"}}},
		parents: map[string][]core.Record{
			"o-1": {{"entity": core.EntityCompany, "id": "c-1"}},
		},
	}
	if err := registry.RegisterPush(companyPush); err != nil {
		t.Fatalf("RegisterPush: %v", err)
	}
	if err := registry.RegisterPush(opportunityPush); err != nil {
		t.Fatalf("RegisterPush: %v", err)
	}
	runner := newTestRunner(t, registry, &fakeCascade{}, &memFailures{})

	report, err := runner.RunPush(context.Background(), core.EntityOpportunity)
	if err != nil {
		t.Fatalf("RunPush: %v", err)
	}
	if report.Synced != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if len(companyPush.syncLog) != 1 || companyPush.syncLog[0] != "c-1" {
		t.Fatalf("expected parent company pushed, got %v", companyPush.syncLog)
	}
	if len(opportunityPush.syncLog) != 1 || opportunityPush.syncLog[0] != "o-1" {
		t.Fatalf("expected opportunity pushed after parent, got %v", opportunityPush.syncLog)
	}
}

func TestRunPush_RemoteRejectionParked(t *testing.T) {
	registry := core.NewRegistry()
	push := &fakePushStrategy{
		modelType: core.EntityCompany,
		pending: []core.PendingItem{
			{EntityName: core.EntityCompany, LocalID: "c-1", Payload: core.Record{"entity": core.EntityCompany, "id": "c-1"}},
			{EntityName: core.EntityCompany, LocalID: "c-2", Payload: core.Record{"entity": core.EntityCompany, "id": "c-2"}},
		},
		errFor: map[string]error{
			"c-1": core.NewRemoteRejectedError("validation failed", nil),
		},
	}
	if err := registry.RegisterPush(push); err != nil {
		t.Fatalf("RegisterPush: %v", err)
	}
	failures := &memFailures{}
	runner := newTestRunner(t, registry, &fakeCascade{}, failures)

	report, err := runner.RunPush(context.Background(), core.EntityCompany)
	if err != nil {
		t.Fatalf("RunPush: %v", err)
	}
	if report.Synced != 1 || report.Failed != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if failures.recorded[0].Kind != core.SyncFailureRemoteRejected {
		t.Fatalf("unexpected failure kind %q", failures.recorded[0].Kind)
	}
}

func TestRunPull_UnknownEntityFails(t *testing.T) {
	runner := newTestRunner(t, core.NewRegistry(), &fakeCascade{}, &memFailures{})
	if _, err := runner.RunPull(context.Background(), "unknown"); err == nil {
		t.Fatalf("expected error for unknown entity")
	}
}
