package strategy

import (
	"context"
	"testing"

	"github.com/goliatone/go-crm-sync/core"
)

func newTestPush(t *testing.T, remote *fakeRemote, local *fakeLocal, links *fakeLinks) *Push {
	t.Helper()
	push, err := NewCompanyPush(Deps{
		Remote: remote,
		Local:  local,
		Links:  links,
	})
	if err != nil {
		t.Fatalf("NewCompanyPush: %v", err)
	}
	push.SetSalesUnits(testUnits())
	return push
}

func TestPush_SyncUpsertsOnStableOriginReference(t *testing.T) {
	remote := newFakeRemote()
	remote.upsertMeta = core.RemoteMetadata{ID: "pl-9", Revision: 4}
	local := newFakeLocal()
	links := newFakeLinks()
	push := newTestPush(t, remote, local, links)

	record := core.Record{"id": "c-1", "name": "Acme", "sales_unit": "unit-1"}
	if err := push.Sync(context.Background(), record); err != nil {
		t.Fatalf("first Sync: %v", err)
	}
	if err := push.Sync(context.Background(), record); err != nil {
		t.Fatalf("second Sync: %v", err)
	}

	if len(remote.upsertRefs) != 2 {
		t.Fatalf("expected two upserts, got %d", len(remote.upsertRefs))
	}
	if remote.upsertRefs[0] != "local:company:c-1" {
		t.Fatalf("expected deterministic local-origin reference, got %q", remote.upsertRefs[0])
	}
	if remote.upsertRefs[1] != "pl-9" {
		t.Fatalf("expected retry to reuse the linked remote reference, got %q", remote.upsertRefs[1])
	}

	link, err := links.GetByLocalID(context.Background(), core.EntityCompany, "c-1")
	if err != nil {
		t.Fatalf("GetByLocalID: %v", err)
	}
	if link.RemoteReference != "pl-9" || link.Validity != core.LinkValid {
		t.Fatalf("unexpected link %+v", link)
	}
	if link.RevisionSeen != 4 {
		t.Fatalf("expected remote revision recorded, got %d", link.RevisionSeen)
	}
}

func TestPush_SyncSkipsOutOfScopeUnit(t *testing.T) {
	remote := newFakeRemote()
	local := newFakeLocal()
	links := newFakeLinks()
	push := newTestPush(t, remote, local, links)

	record := core.Record{"id": "c-1", "name": "Acme", "sales_unit": "unit-other"}
	if err := push.Sync(context.Background(), record); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if remote.upsertCalls != 0 {
		t.Fatalf("expected no remote writes for out-of-scope record")
	}
}

func TestPush_SyncRequiresLocalID(t *testing.T) {
	push := newTestPush(t, newFakeRemote(), newFakeLocal(), newFakeLinks())
	if err := push.Sync(context.Background(), core.Record{"name": "Acme"}); err == nil {
		t.Fatalf("expected error for record without id")
	}
}

func TestPush_EmptyScopeReportsNothingPending(t *testing.T) {
	local := newFakeLocal()
	local.dirty = []core.Record{{"id": "c-1", "name": "Acme"}}
	push := newTestPush(t, newFakeRemote(), local, newFakeLinks())
	push.SetSalesUnits(nil)

	count, err := push.CountPending(context.Background())
	if err != nil {
		t.Fatalf("CountPending: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected zero pending for empty scope, got %d", count)
	}
	for range push.IteratePending(context.Background()) {
		t.Fatalf("expected empty iteration")
	}
}

func TestPush_IteratePendingYieldsDirtyRecords(t *testing.T) {
	local := newFakeLocal()
	local.dirty = []core.Record{
		{"id": "c-1", "name": "Acme"},
		{"id": "c-2", "name": "Globex"},
	}
	push := newTestPush(t, newFakeRemote(), local, newFakeLinks())

	var ids []string
	for item, err := range push.IteratePending(context.Background()) {
		if err != nil {
			t.Fatalf("IteratePending: %v", err)
		}
		if item.EntityName != core.EntityCompany {
			t.Fatalf("unexpected entity %q", item.EntityName)
		}
		ids = append(ids, item.LocalID)
	}
	if len(ids) != 2 || ids[0] != "c-1" || ids[1] != "c-2" {
		t.Fatalf("unexpected pending ids %v", ids)
	}
}

func TestPush_ByReferenceResolvesThroughLink(t *testing.T) {
	local := newFakeLocal()
	local.records[storeKey(core.EntityCompany, "c-1")] = core.Record{"id": "c-1", "name": "Acme"}
	links := newFakeLinks()
	links.byRef[storeKey(core.EntityCompany, "pl-9")] = core.LinkedEntity{
		EntityName:      core.EntityCompany,
		LocalID:         "c-1",
		RemoteReference: "pl-9",
		Validity:        core.LinkValid,
	}
	push := newTestPush(t, newFakeRemote(), local, links)

	record, err := push.ByReference(context.Background(), "pl-9")
	if err != nil {
		t.Fatalf("ByReference: %v", err)
	}
	if record.String("id") != "c-1" {
		t.Fatalf("expected linked local record, got %v", record)
	}

	// Unlinked references fall back to a direct local id lookup.
	record, err = push.ByReference(context.Background(), "c-1")
	if err != nil {
		t.Fatalf("ByReference fallback: %v", err)
	}
	if record.String("name") != "Acme" {
		t.Fatalf("unexpected record %v", record)
	}
}
