package strategy

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-crm-sync/core"
)

// PushConfig wires one local -> remote strategy.
type PushConfig struct {
	EntityName string
	Remote     core.RemoteClient
	Local      core.LocalStore
	Links      core.LinkedEntityStore
	Logger     core.Logger
	AppliesTo  func(core.Record) bool
	Parents    ParentsFunc
}

func (c PushConfig) validate() error {
	if strings.TrimSpace(c.EntityName) == "" {
		return fmt.Errorf("strategy: entity name is required")
	}
	if c.Remote == nil {
		return fmt.Errorf("strategy: remote client is required")
	}
	if c.Local == nil {
		return fmt.Errorf("strategy: local store is required")
	}
	if c.Links == nil {
		return fmt.Errorf("strategy: linked entity store is required")
	}
	return nil
}

// Push moves records local -> remote for one entity type. Every write goes
// through a remote upsert keyed by a stable local-origin reference, so a
// retry after an ambiguous failure updates instead of duplicating.
type Push struct {
	entityName string
	remote     core.RemoteClient
	local      core.LocalStore
	links      core.LinkedEntityStore
	logger     core.Logger
	appliesTo  func(core.Record) bool
	parents    ParentsFunc

	mu    sync.RWMutex
	units []core.SalesUnit
}

func NewPush(cfg PushConfig) (*Push, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		_, logger = glog.Resolve("strategy", nil, nil)
	}
	appliesTo := cfg.AppliesTo
	if appliesTo == nil {
		appliesTo = appliesToEntity(cfg.EntityName)
	}
	return &Push{
		entityName: strings.TrimSpace(cfg.EntityName),
		remote:     cfg.Remote,
		local:      cfg.Local,
		links:      cfg.Links,
		logger:     logger,
		appliesTo:  appliesTo,
		parents:    cfg.Parents,
	}, nil
}

func (p *Push) SetSalesUnits(units []core.SalesUnit) core.SyncStrategy {
	if p == nil {
		return p
	}
	scoped := make([]core.SalesUnit, 0, len(units))
	for _, unit := range units {
		if strings.TrimSpace(unit.ID) == "" {
			continue
		}
		scoped = append(scoped, unit)
	}
	p.mu.Lock()
	p.units = scoped
	p.mu.Unlock()
	return p
}

func (p *Push) SalesUnits() []core.SalesUnit {
	if p == nil {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]core.SalesUnit, len(p.units))
	copy(out, p.units)
	return out
}

func (p *Push) scopeIDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]string, 0, len(p.units))
	for _, unit := range p.units {
		ids = append(ids, unit.ID)
	}
	return ids
}

func (p *Push) unitInScope(unitID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, unit := range p.units {
		if strings.EqualFold(unit.ID, unitID) {
			return true
		}
	}
	return false
}

func (p *Push) ModelType() string { return p.entityName }

func (p *Push) AppliesTo(record core.Record) bool {
	if p == nil || record == nil {
		return false
	}
	return p.appliesTo(record)
}

// CountPending counts locally-modified records awaiting push within scope.
func (p *Push) CountPending(ctx context.Context) (int, error) {
	unitIDs := p.scopeIDs()
	if len(unitIDs) == 0 {
		return 0, nil
	}
	return p.local.CountDirty(ctx, p.entityName, unitIDs)
}

func (p *Push) IteratePending(ctx context.Context) iter.Seq2[core.PendingItem, error] {
	return func(yield func(core.PendingItem, error) bool) {
		unitIDs := p.scopeIDs()
		if len(unitIDs) == 0 {
			return
		}
		for record, err := range p.local.IterateDirty(ctx, p.entityName, unitIDs) {
			if err != nil {
				yield(core.PendingItem{}, err)
				return
			}
			item := core.PendingItem{
				EntityName: p.entityName,
				LocalID:    record.String(attrID),
				Payload:    record,
			}
			if !yield(item, nil) {
				return
			}
		}
	}
}

// ByReference resolves a remote reference through the link table when one
// exists, otherwise treats the reference as a local id.
func (p *Push) ByReference(ctx context.Context, reference string) (core.Record, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, core.NewBadInputError("strategy: reference is required", map[string]any{
			"entity": p.entityName,
		})
	}
	link, err := p.links.GetByReference(ctx, p.entityName, reference)
	switch {
	case err == nil && link.LocalID != "":
		return p.local.Get(ctx, p.entityName, link.LocalID)
	case err != nil && !errors.Is(err, core.ErrLinkedEntityNotFound):
		return nil, err
	}
	return p.local.Get(ctx, p.entityName, reference)
}

// Sync pushes one local record to the remote side. Records outside the
// sales-unit scope are skipped without error.
func (p *Push) Sync(ctx context.Context, record core.Record) error {
	localID := record.String(attrID)
	if localID == "" {
		return core.NewBadInputError("strategy: local record has no id", map[string]any{
			"entity": p.entityName,
		})
	}
	unitID := record.String(attrSalesUnit)
	if unitID != "" && !p.unitInScope(unitID) {
		p.logger.Debug("record outside sales unit scope, skipping",
			"entity", p.entityName,
			"local_id", localID,
			"sales_unit", unitID,
		)
		return nil
	}

	originRef, err := p.originReference(ctx, localID)
	if err != nil {
		return err
	}
	meta, err := p.remote.Upsert(ctx, p.entityName, originRef, record)
	if err != nil {
		return err
	}

	reference := meta.ID
	if reference == "" {
		reference = originRef
	}
	_, err = p.links.Upsert(ctx, core.UpsertLinkedEntityInput{
		EntityName:      p.entityName,
		LocalID:         localID,
		RemoteReference: reference,
		Validity:        core.LinkValid,
		RevisionSeen:    meta.Revision,
		SalesUnitID:     unitID,
	})
	return err
}

// originReference returns the remote reference already linked to the local
// record, or a deterministic local-origin key when none exists yet.
func (p *Push) originReference(ctx context.Context, localID string) (string, error) {
	link, err := p.links.GetByLocalID(ctx, p.entityName, localID)
	if err == nil && link.RemoteReference != "" {
		return link.RemoteReference, nil
	}
	if err != nil && !errors.Is(err, core.ErrLinkedEntityNotFound) {
		return "", err
	}
	return fmt.Sprintf("local:%s:%s", p.entityName, localID), nil
}

func (p *Push) HigherHierarchy(ctx context.Context, record core.Record) iter.Seq2[core.Record, error] {
	if p == nil || p.parents == nil {
		return func(func(core.Record, error) bool) {}
	}
	return p.parents(ctx, record)
}

var (
	_ core.PushStrategy            = (*Push)(nil)
	_ core.HigherHierarchyResolver = (*Push)(nil)
)
