package query

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-crm-sync/core"
)

type stubQueueReader struct {
	counts core.QueueCounts
	err    error
}

func (s stubQueueReader) Counts(context.Context) (core.QueueCounts, error) {
	return s.counts, s.err
}

type stubLinkReader struct {
	link core.LinkedEntity
	err  error
}

func (s stubLinkReader) GetByReference(_ context.Context, entityName string, reference string) (core.LinkedEntity, error) {
	if s.err != nil {
		return core.LinkedEntity{}, s.err
	}
	out := s.link
	out.EntityName = entityName
	out.RemoteReference = reference
	return out, nil
}

type stubFailureReader struct {
	failures   []core.SyncFailure
	lastEntity string
	lastLimit  int
}

func (s *stubFailureReader) ListOpen(_ context.Context, entityName string, limit int) ([]core.SyncFailure, error) {
	s.lastEntity = entityName
	s.lastLimit = limit
	return s.failures, nil
}

func TestQueueCountsQuery_DelegatesToReader(t *testing.T) {
	qry := NewQueueCountsQuery(stubQueueReader{counts: core.NewQueueCounts(4, 2)})
	counts, err := qry.Query(context.Background(), QueueCountsMessage{})
	if err != nil {
		t.Fatalf("queue counts: %v", err)
	}
	if counts.Opportunities() != 4 || counts.Companies() != 2 {
		t.Fatalf("unexpected counts: %#v", counts)
	}
	if counts.Total() != 6 {
		t.Fatalf("expected total 6, got %d", counts.Total())
	}
}

func TestQueueCountsQuery_NilReaderReturnsDependencyError(t *testing.T) {
	var qry *QueueCountsQuery
	if _, err := qry.Query(context.Background(), QueueCountsMessage{}); err == nil {
		t.Fatalf("expected dependency error")
	}
}

func TestLoadLinkedEntityQuery_DelegatesToReader(t *testing.T) {
	qry := NewLoadLinkedEntityQuery(stubLinkReader{link: core.LinkedEntity{
		ID:           "link-1",
		LocalID:      "loc-1",
		Validity:     core.LinkValid,
		RevisionSeen: 7,
		UpdatedAt:    time.Now(),
	}})
	link, err := qry.Query(context.Background(), LoadLinkedEntityMessage{
		EntityName: core.EntityOpportunity,
		Reference:  "pl-5",
	})
	if err != nil {
		t.Fatalf("load linked entity: %v", err)
	}
	if link.EntityName != core.EntityOpportunity || link.RemoteReference != "pl-5" {
		t.Fatalf("unexpected link: %#v", link)
	}
	if link.RevisionSeen != 7 {
		t.Fatalf("expected revision 7, got %d", link.RevisionSeen)
	}
}

func TestListOpenFailuresQuery_PassesFilterAndLimit(t *testing.T) {
	reader := &stubFailureReader{failures: []core.SyncFailure{
		{ID: "fail-1", EntityName: core.EntityCompany, Kind: core.SyncFailureNotFound},
	}}
	qry := NewListOpenFailuresQuery(reader)

	failures, err := qry.Query(context.Background(), ListOpenFailuresMessage{
		EntityName: core.EntityCompany,
		Limit:      10,
	})
	if err != nil {
		t.Fatalf("list open failures: %v", err)
	}
	if len(failures) != 1 || failures[0].ID != "fail-1" {
		t.Fatalf("unexpected failures: %#v", failures)
	}
	if reader.lastEntity != core.EntityCompany || reader.lastLimit != 10 {
		t.Fatalf("unexpected reader call: %q %d", reader.lastEntity, reader.lastLimit)
	}

	if _, err := qry.Query(context.Background(), ListOpenFailuresMessage{Limit: -1}); err == nil {
		t.Fatalf("expected negative limit rejection")
	}
}

func TestQueryMessages_Validate(t *testing.T) {
	if err := (QueueCountsMessage{}).Validate(); err != nil {
		t.Fatalf("queue counts message should always validate: %v", err)
	}
	if err := (LoadLinkedEntityMessage{EntityName: core.EntityCompany, Reference: "pl-1"}).Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
	if err := (LoadLinkedEntityMessage{Reference: "pl-1"}).Validate(); err == nil {
		t.Fatalf("expected missing entity name to fail")
	}
	if err := (ListOpenFailuresMessage{Limit: -2}).Validate(); err == nil {
		t.Fatalf("expected negative limit to fail")
	}
}
