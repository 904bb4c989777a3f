package strategy

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-crm-sync/core"
)

const (
	attrID        = "id"
	attrRevision  = "revision"
	attrSalesUnit = "sales_unit"
	attrEntityTag = "entity"

	defaultPageSize = 100
)

// ParentsFunc yields the ancestor records that must sync before the given
// record, nearest ancestor last.
type ParentsFunc func(ctx context.Context, record core.Record) iter.Seq2[core.Record, error]

// PullConfig wires one remote -> local strategy.
type PullConfig struct {
	EntityName    string
	NameAttribute string
	Remote        core.RemoteClient
	Local         core.LocalStore
	Links         core.LinkedEntityStore
	Matcher       core.CorrelationMatcher
	Logger        core.Logger
	PageSize      int
	AppliesTo     func(core.Record) bool
	Parents       ParentsFunc
}

func (c PullConfig) validate() error {
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
	if c.Matcher == nil {
		return fmt.Errorf("strategy: correlation matcher is required")
	}
	return nil
}

// Pull moves records remote -> local for one entity type. Safe for concurrent
// use; the sales-unit scope is the only mutable state.
type Pull struct {
	entityName    string
	nameAttribute string
	remote        core.RemoteClient
	local         core.LocalStore
	links         core.LinkedEntityStore
	matcher       core.CorrelationMatcher
	logger        core.Logger
	pageSize      int
	appliesTo     func(core.Record) bool
	parents       ParentsFunc

	mu    sync.RWMutex
	units []core.SalesUnit
}

func NewPull(cfg PullConfig) (*Pull, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		_, logger = glog.Resolve("strategy", nil, nil)
	}
	nameAttribute := strings.TrimSpace(cfg.NameAttribute)
	if nameAttribute == "" {
		nameAttribute = "name"
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	appliesTo := cfg.AppliesTo
	if appliesTo == nil {
		appliesTo = appliesToEntity(cfg.EntityName)
	}
	return &Pull{
		entityName:    strings.TrimSpace(cfg.EntityName),
		nameAttribute: nameAttribute,
		remote:        cfg.Remote,
		local:         cfg.Local,
		links:         cfg.Links,
		matcher:       cfg.Matcher,
		logger:        logger,
		pageSize:      pageSize,
		appliesTo:     appliesTo,
		parents:       cfg.Parents,
	}, nil
}

func (p *Pull) SetSalesUnits(units []core.SalesUnit) core.SyncStrategy {
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

func (p *Pull) SalesUnits() []core.SalesUnit {
	if p == nil {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]core.SalesUnit, len(p.units))
	copy(out, p.units)
	return out
}

func (p *Pull) scopeIDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]string, 0, len(p.units))
	for _, unit := range p.units {
		ids = append(ids, unit.ID)
	}
	return ids
}

func (p *Pull) unitInScope(unitID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, unit := range p.units {
		if strings.EqualFold(unit.ID, unitID) {
			return true
		}
	}
	return false
}

func (p *Pull) ModelType() string { return p.entityName }

func (p *Pull) AppliesTo(record core.Record) bool {
	if p == nil || record == nil {
		return false
	}
	return p.appliesTo(record)
}

// CountPending probes the remote side for records revised above the local
// watermark. An empty scope always reports zero.
func (p *Pull) CountPending(ctx context.Context) (int, error) {
	unitIDs := p.scopeIDs()
	if len(unitIDs) == 0 {
		return 0, nil
	}
	watermark, err := p.links.MaxRevisionSeen(ctx, p.entityName, unitIDs)
	if err != nil {
		return 0, err
	}
	return p.remote.CountModifiedSince(ctx, p.entityName, unitIDs, watermark)
}

// IteratePending pages remote records above the watermark through a fresh
// query. The watermark is pinned once per invocation so items synced while
// iterating do not shift the window underneath the caller.
func (p *Pull) IteratePending(ctx context.Context) iter.Seq2[core.PendingItem, error] {
	return func(yield func(core.PendingItem, error) bool) {
		unitIDs := p.scopeIDs()
		if len(unitIDs) == 0 {
			return
		}
		watermark, err := p.links.MaxRevisionSeen(ctx, p.entityName, unitIDs)
		if err != nil {
			yield(core.PendingItem{}, err)
			return
		}
		cursor := ""
		for {
			page, err := p.remote.ListModifiedSince(ctx, p.entityName, unitIDs, watermark, cursor, p.pageSize)
			if err != nil {
				yield(core.PendingItem{}, err)
				return
			}
			for _, record := range page.Items {
				item := core.PendingItem{
					EntityName: p.entityName,
					Reference:  record.String(attrID),
					Revision:   record.Int64(attrRevision),
					Payload:    record,
				}
				if !yield(item, nil) {
					return
				}
			}
			if !page.HasMore || page.NextCursor == "" {
				return
			}
			cursor = page.NextCursor
		}
	}
}

func (p *Pull) ByReference(ctx context.Context, reference string) (core.Record, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, core.NewBadInputError("strategy: reference is required", map[string]any{
			"entity": p.entityName,
		})
	}
	return p.remote.FetchByReference(ctx, p.entityName, reference)
}

func (p *Pull) Metadata(ctx context.Context, reference string) (core.RemoteMetadata, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return core.RemoteMetadata{}, core.NewBadInputError("strategy: reference is required", map[string]any{
			"entity": p.entityName,
		})
	}
	return p.remote.FetchMetadata(ctx, p.entityName, reference)
}

func (p *Pull) SyncByReference(ctx context.Context, reference string) (core.Record, error) {
	record, err := p.ByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	return p.Sync(ctx, record)
}

// Sync applies one remote record to the local side. Re-applying a revision
// already recorded on a valid link is a read-only no-op. Records outside the
// sales-unit scope return (nil, nil) without touching anything.
func (p *Pull) Sync(ctx context.Context, record core.Record) (core.Record, error) {
	reference := record.String(attrID)
	if reference == "" {
		return nil, core.NewBadInputError("strategy: remote record has no reference", map[string]any{
			"entity": p.entityName,
		})
	}
	revision := record.Int64(attrRevision)
	unitID := record.String(attrSalesUnit)
	if unitID != "" && !p.unitInScope(unitID) {
		p.logger.Debug("record outside sales unit scope, skipping",
			"entity", p.entityName,
			"reference", reference,
			"sales_unit", unitID,
		)
		return nil, nil
	}

	link, err := p.links.GetByReference(ctx, p.entityName, reference)
	haveLink := err == nil
	if err != nil && !errors.Is(err, core.ErrLinkedEntityNotFound) {
		return nil, err
	}
	if haveLink && link.Validity == core.LinkValid && revision > 0 && link.RevisionSeen >= revision {
		return p.local.Get(ctx, p.entityName, link.LocalID)
	}

	localID, err := p.resolveLocalID(ctx, link, haveLink, record)
	if err != nil {
		return nil, err
	}

	payload := record.Clone()
	delete(payload, attrID)
	if localID != "" {
		payload[attrID] = localID
	}
	applied, err := p.local.Apply(ctx, p.entityName, payload, metadataFromRecord(record))
	if err != nil {
		return nil, err
	}

	if _, err := p.links.Upsert(ctx, core.UpsertLinkedEntityInput{
		EntityName:      p.entityName,
		LocalID:         applied.String(attrID),
		RemoteReference: reference,
		Validity:        core.LinkValid,
		RevisionSeen:    revision,
		SalesUnitID:     unitID,
	}); err != nil {
		return nil, err
	}
	return applied, nil
}

// resolveLocalID finds the local record the remote one maps to, or "" when a
// new local record should be created. A stale unresolved link that no longer
// correlates gets invalidated before falling back to the candidate search.
func (p *Pull) resolveLocalID(ctx context.Context, link core.LinkedEntity, haveLink bool, record core.Record) (string, error) {
	if haveLink && link.LocalID != "" {
		switch link.Validity {
		case core.LinkValid:
			return link.LocalID, nil
		case core.LinkUnresolved:
			localRecord, err := p.local.Get(ctx, p.entityName, link.LocalID)
			if err == nil {
				matched, matchErr := p.matcher.Matches(ctx, p.entityName, localRecord, record)
				if matchErr != nil {
					return "", matchErr
				}
				if matched {
					return link.LocalID, nil
				}
			} else if !core.IsNotFound(err) {
				return "", err
			}
			if err := p.links.Invalidate(ctx, p.entityName, link.RemoteReference, "correlation mismatch"); err != nil {
				return "", err
			}
		}
	}

	name := record.String(p.nameAttribute)
	if name == "" {
		return "", nil
	}
	candidates, err := p.local.Search(ctx, p.entityName, name, p.scopeIDs())
	if err != nil {
		return "", err
	}
	for _, candidate := range candidates {
		matched, err := p.matcher.Matches(ctx, p.entityName, candidate, record)
		if err != nil {
			return "", err
		}
		if matched {
			return candidate.String(attrID), nil
		}
	}
	return "", nil
}

// HigherHierarchy yields the ancestors that must sync before this record.
// Strategies without a parents hook have none.
func (p *Pull) HigherHierarchy(ctx context.Context, record core.Record) iter.Seq2[core.Record, error] {
	if p == nil || p.parents == nil {
		return func(func(core.Record, error) bool) {}
	}
	return p.parents(ctx, record)
}

func metadataFromRecord(record core.Record) core.RemoteMetadata {
	meta := core.RemoteMetadata{
		ID:       record.String(attrID),
		Revision: record.Int64(attrRevision),
	}
	if ts, err := time.Parse(time.RFC3339, record.String("created")); err == nil {
		meta.Created = ts
	}
	if ts, err := time.Parse(time.RFC3339, record.String("modified")); err == nil {
		meta.Modified = ts
	}
	return meta
}

func appliesToEntity(entityName string, shapeKeys ...string) func(core.Record) bool {
	return func(record core.Record) bool {
		if tag := record.String(attrEntityTag); tag != "" {
			return strings.EqualFold(tag, entityName)
		}
		if len(shapeKeys) == 0 {
			return false
		}
		for _, key := range shapeKeys {
			if _, ok := record[key]; !ok {
				return false
			}
		}
		return true
	}
}

var (
	_ core.PullStrategy            = (*Pull)(nil)
	_ core.HigherHierarchyResolver = (*Pull)(nil)
)
