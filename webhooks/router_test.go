package webhooks

import (
	"context"
	"iter"
	"strings"
	"testing"

	"github.com/goliatone/go-crm-sync/core"
)

type stubStrategy struct {
	modelType string
	byRef     map[string]core.Record
	refCalls  int
}

func (s *stubStrategy) SetSalesUnits([]core.SalesUnit) core.SyncStrategy { return s }

func (s *stubStrategy) SalesUnits() []core.SalesUnit { return nil }

func (s *stubStrategy) CountPending(context.Context) (int, error) { return 0, nil }

func (s *stubStrategy) IteratePending(context.Context) iter.Seq2[core.PendingItem, error] {
	return func(func(core.PendingItem, error) bool) {}
}

func (s *stubStrategy) ModelType() string { return s.modelType }

func (s *stubStrategy) AppliesTo(record core.Record) bool {
	return strings.EqualFold(record.String("entity"), s.modelType)
}

func (s *stubStrategy) ByReference(_ context.Context, reference string) (core.Record, error) {
	s.refCalls++
	record, ok := s.byRef[reference]
	if !ok {
		return nil, core.NewNotFoundError("unknown reference", map[string]any{"reference": reference})
	}
	return record.Clone(), nil
}

func (s *stubStrategy) Metadata(context.Context, string) (core.RemoteMetadata, error) {
	return core.RemoteMetadata{}, nil
}

func (s *stubStrategy) Sync(_ context.Context, record core.Record) (core.Record, error) {
	return record, nil
}

func (s *stubStrategy) SyncByReference(ctx context.Context, reference string) (core.Record, error) {
	record, err := s.ByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	return s.Sync(ctx, record)
}

type stubCascade struct {
	synced []core.Record
	err    error
}

func (c *stubCascade) SyncCascade(_ context.Context, record core.Record) (core.Record, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.synced = append(c.synced, record)
	return record, nil
}

func newTestRouter(t *testing.T, cascade *stubCascade, strategies ...*stubStrategy) *Router {
	t.Helper()
	registry := core.NewRegistry()
	for _, strategy := range strategies {
		if err := registry.RegisterPull(strategy); err != nil {
			t.Fatalf("RegisterPull: %v", err)
		}
	}
	router, err := NewRouter(registry, cascade)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	return router
}

func TestRoute_UnknownEventIsAcceptedNoOp(t *testing.T) {
	cascade := &stubCascade{}
	router := newTestRouter(t, cascade, &stubStrategy{modelType: core.EntityCompany})

	result, err := router.Route(context.Background(), core.WebhookEvent{
		Event:   "invoice.created",
		Payload: core.Record{"id": "inv-1", "total": 100},
	})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if result.Handled {
		t.Fatalf("expected unknown event to be dropped")
	}
	if len(cascade.synced) != 0 {
		t.Fatalf("expected no sync for unknown event")
	}
}

func TestRoute_PayloadEventSyncsDirectly(t *testing.T) {
	cascade := &stubCascade{}
	strategy := &stubStrategy{modelType: core.EntityOpportunity}
	router := newTestRouter(t, cascade, strategy)

	result, err := router.Route(context.Background(), core.WebhookEvent{
		Event:   "opportunity.updated",
		Payload: core.Record{"entity": "opportunity", "id": "pl-1", "name": "Deal"},
	})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if !result.Handled || result.EntityName != core.EntityOpportunity {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(cascade.synced) != 1 {
		t.Fatalf("expected one cascade sync, got %d", len(cascade.synced))
	}
	if strategy.refCalls != 0 {
		t.Fatalf("expected no reference fetch when payload is embedded")
	}
}

func TestRoute_BareNotificationFetchesByReference(t *testing.T) {
	cascade := &stubCascade{}
	strategy := &stubStrategy{
		modelType: core.EntityCompany,
		byRef: map[string]core.Record{
			"pl-7": {"id": "pl-7", "name": "Acme"},
		},
	}
	router := newTestRouter(t, cascade, strategy)

	result, err := router.Route(context.Background(), core.WebhookEvent{
		Event:  "company.updated",
		Entity: core.Record{"id": "pl-7"},
	})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if !result.Handled {
		t.Fatalf("expected event to be handled")
	}
	if strategy.refCalls != 1 {
		t.Fatalf("expected one reference fetch, got %d", strategy.refCalls)
	}
	if len(cascade.synced) != 1 {
		t.Fatalf("expected one cascade sync")
	}
	if cascade.synced[0].String("entity") != core.EntityCompany {
		t.Fatalf("expected fetched record tagged before cascade, got %v", cascade.synced[0])
	}
}

func TestRoute_DottedEventNameRoutesUntaggedPayload(t *testing.T) {
	cascade := &stubCascade{}
	strategy := &stubStrategy{
		modelType: core.EntityCompany,
		byRef: map[string]core.Record{
			"pl-3": {"id": "pl-3", "name": "Globex"},
		},
	}
	router := newTestRouter(t, cascade, strategy)

	result, err := router.Route(context.Background(), core.WebhookEvent{
		Event:  "Company.Deleted",
		Entity: core.Record{"ref": "x", "id": "pl-3"},
	})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if !result.Handled {
		t.Fatalf("expected dotted event name to route")
	}
}

func TestRoute_NoPayloadNoReferenceFails(t *testing.T) {
	router := newTestRouter(t, &stubCascade{}, &stubStrategy{modelType: core.EntityCompany})
	_, err := router.Route(context.Background(), core.WebhookEvent{Event: "company.updated"})
	if err == nil {
		t.Fatalf("expected error for event without payload or reference")
	}
}

func TestDecodeEvent(t *testing.T) {
	event, err := DecodeEvent([]byte(`{
		"event": "opportunity.updated",
		"event_time": "2026-02-03T10:00:00Z",
		"team_space_id": "space-1",
		"entity": {"id": "pl-1"},
		"payload": {"id": "pl-1", "name": "Deal"}
	}`))
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	if event.Event != "opportunity.updated" || event.TeamSpaceID != "space-1" {
		t.Fatalf("unexpected envelope %+v", event)
	}
	if event.EventTime.IsZero() {
		t.Fatalf("expected event_time parsed")
	}
	if event.Reference() != "pl-1" {
		t.Fatalf("unexpected reference %q", event.Reference())
	}

	if _, err := DecodeEvent([]byte(`{`)); err == nil {
		t.Fatalf("expected error for malformed body")
	}
	if _, err := DecodeEvent([]byte(`{"payload": {}}`)); err == nil {
		t.Fatalf("expected error for missing event type")
	}
	if _, err := DecodeEvent([]byte(`{"event": "x", "event_time": "yesterday"}`)); err == nil {
		t.Fatalf("expected error for malformed event_time")
	}
}

func TestEntityFromEvent(t *testing.T) {
	if got := EntityFromEvent("Opportunity.Updated"); got != "opportunity" {
		t.Fatalf("EntityFromEvent = %q", got)
	}
	if got := EntityFromEvent("company"); got != "company" {
		t.Fatalf("EntityFromEvent = %q", got)
	}
}
