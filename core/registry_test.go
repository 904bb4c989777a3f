package core

import (
	"context"
	"iter"
	"testing"
)

type staticStrategy struct {
	modelType string
	units     []SalesUnit
	applies   func(Record) bool
}

func (s *staticStrategy) SetSalesUnits(units []SalesUnit) SyncStrategy {
	s.units = append([]SalesUnit(nil), units...)
	return s
}

func (s *staticStrategy) SalesUnits() []SalesUnit { return s.units }

func (s *staticStrategy) CountPending(context.Context) (int, error) { return 0, nil }

func (s *staticStrategy) IteratePending(context.Context) iter.Seq2[PendingItem, error] {
	return func(func(PendingItem, error) bool) {}
}

func (s *staticStrategy) ModelType() string { return s.modelType }

func (s *staticStrategy) AppliesTo(record Record) bool {
	if s.applies == nil {
		return false
	}
	return s.applies(record)
}

func (s *staticStrategy) ByReference(context.Context, string) (Record, error) {
	return Record{}, nil
}

type staticPull struct{ staticStrategy }

func (s *staticPull) Sync(_ context.Context, record Record) (Record, error) { return record, nil }

func (s *staticPull) SyncByReference(context.Context, string) (Record, error) {
	return Record{}, nil
}

func (s *staticPull) Metadata(context.Context, string) (RemoteMetadata, error) {
	return RemoteMetadata{}, nil
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	registry := NewRegistry()
	company := &staticPull{staticStrategy{modelType: EntityCompany}}
	if err := registry.RegisterPull(company); err != nil {
		t.Fatalf("register company: %v", err)
	}
	if err := registry.RegisterPull(company); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}

	found, ok := registry.Pull(EntityCompany)
	if !ok || found.ModelType() != EntityCompany {
		t.Fatalf("expected company strategy lookup")
	}
	if _, ok := registry.Pull("unknown"); ok {
		t.Fatalf("expected unknown model type miss")
	}
}

func TestRegistry_PullForPrefersTagThenProbes(t *testing.T) {
	registry := NewRegistry()
	company := &staticPull{staticStrategy{
		modelType: EntityCompany,
		applies: func(record Record) bool {
			return record.String("company_name") != ""
		},
	}}
	opportunity := &staticPull{staticStrategy{
		modelType: EntityOpportunity,
		applies: func(record Record) bool {
			return record.String("opportunity_name") != ""
		},
	}}
	if err := registry.RegisterPull(company); err != nil {
		t.Fatalf("register company: %v", err)
	}
	if err := registry.RegisterPull(opportunity); err != nil {
		t.Fatalf("register opportunity: %v", err)
	}

	byTag, ok := registry.PullFor(Record{"entity": "Opportunity"})
	if !ok || byTag.ModelType() != EntityOpportunity {
		t.Fatalf("expected tag dispatch to opportunity")
	}
	byShape, ok := registry.PullFor(Record{"company_name": "Acme"})
	if !ok || byShape.ModelType() != EntityCompany {
		t.Fatalf("expected shape dispatch to company")
	}
	if _, ok := registry.PullFor(Record{"unrelated": true}); ok {
		t.Fatalf("expected no strategy to claim unrelated record")
	}
}

func TestRegistry_ListIsSorted(t *testing.T) {
	registry := NewRegistry()
	for _, name := range []string{EntityQuote, EntityCompany, EntityOpportunity} {
		if err := registry.RegisterPull(&staticPull{staticStrategy{modelType: name}}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	listed := registry.ListPull()
	if len(listed) != 3 {
		t.Fatalf("expected 3 strategies, got %d", len(listed))
	}
	want := []string{EntityCompany, EntityOpportunity, EntityQuote}
	for i, strategy := range listed {
		if strategy.ModelType() != want[i] {
			t.Fatalf("expected %s at %d, got %s", want[i], i, strategy.ModelType())
		}
	}
}
