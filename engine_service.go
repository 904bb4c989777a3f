package crmsync

import (
	"context"
	"strings"

	"github.com/goliatone/go-crm-sync/core"
	"github.com/goliatone/go-crm-sync/queue"
)

// SyncByReference pulls one remote record inline, ancestors first.
func (e *Engine) SyncByReference(ctx context.Context, entityName string, reference string) (core.Record, error) {
	if e == nil {
		return nil, engineDependencyError("crmsync: engine is not configured")
	}
	entityName = strings.ToLower(strings.TrimSpace(entityName))
	reference = strings.TrimSpace(reference)
	if entityName == "" || reference == "" {
		return nil, core.NewBadInputError("crmsync: entity name and reference are required", map[string]any{
			"entity":    entityName,
			"reference": reference,
		})
	}
	strategy, ok := e.registry.Pull(entityName)
	if !ok {
		return nil, core.NewBadInputError("crmsync: no pull strategy for entity", map[string]any{
			"entity": entityName,
		})
	}
	record, err := strategy.ByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	return e.cascade.SyncCascade(ctx, record)
}

// RequestQueueSync enqueues an async run; the result reports acceptance into
// the backlog, not completion.
func (e *Engine) RequestQueueSync(ctx context.Context, direction string, entityName string) (core.QueueSyncResult, error) {
	if e == nil || e.queueService == nil {
		return core.NewQueueSyncResult(false), engineDependencyError("crmsync: queue service is not configured")
	}
	return e.queueService.RequestSync(ctx, queue.Direction(strings.ToLower(strings.TrimSpace(direction))), entityName)
}

// InvalidateLink marks a stored correlation as no longer trusted.
func (e *Engine) InvalidateLink(ctx context.Context, entityName string, reference string, reason string) error {
	if e == nil || e.stores == nil {
		return engineDependencyError("crmsync: link store is not configured")
	}
	return e.stores.LinkedEntityStore().Invalidate(ctx, entityName, reference, reason)
}

// ResolveFailure closes an operator backlog entry.
func (e *Engine) ResolveFailure(ctx context.Context, failureID string) error {
	if e == nil || e.stores == nil {
		return engineDependencyError("crmsync: failure store is not configured")
	}
	return e.stores.SyncFailureStore().Resolve(ctx, failureID)
}

// Counts is the backlog snapshot across registered strategies.
func (e *Engine) Counts(ctx context.Context) (core.QueueCounts, error) {
	if e == nil || e.queueService == nil {
		return core.QueueCounts{}, engineDependencyError("crmsync: queue service is not configured")
	}
	return e.queueService.Counts(ctx)
}

// GetByReference loads the stored correlation for a remote reference.
func (e *Engine) GetByReference(ctx context.Context, entityName string, reference string) (core.LinkedEntity, error) {
	if e == nil || e.stores == nil {
		return core.LinkedEntity{}, engineDependencyError("crmsync: link store is not configured")
	}
	return e.stores.LinkedEntityStore().GetByReference(ctx, entityName, reference)
}

// ListOpen pages the operator failure backlog for one entity type.
func (e *Engine) ListOpen(ctx context.Context, entityName string, limit int) ([]core.SyncFailure, error) {
	if e == nil || e.stores == nil {
		return nil, engineDependencyError("crmsync: failure store is not configured")
	}
	return e.stores.SyncFailureStore().ListOpen(ctx, entityName, limit)
}
