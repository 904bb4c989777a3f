package webhooks

import (
	"context"
	"fmt"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-crm-sync/core"
)

// CascadeSyncer pulls a record after its ancestors; satisfied by the cascade
// resolver.
type CascadeSyncer interface {
	SyncCascade(ctx context.Context, record core.Record) (core.Record, error)
}

// Router dispatches decoded events to the strategy claiming them. Events no
// strategy claims are accepted and dropped: remote systems add event types
// without coordination, and an unknown type must never fail the delivery.
type Router struct {
	registry core.StrategyRegistry
	cascade  CascadeSyncer
	logger   core.Logger
}

type RouterOption func(*Router)

func WithRouterLogger(logger core.Logger) RouterOption {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewRouter(registry core.StrategyRegistry, cascade CascadeSyncer, opts ...RouterOption) (*Router, error) {
	if registry == nil {
		return nil, fmt.Errorf("webhooks: registry is required")
	}
	if cascade == nil {
		return nil, fmt.Errorf("webhooks: cascade syncer is required")
	}
	_, logger := glog.Resolve("webhooks", nil, nil)
	router := &Router{
		registry: registry,
		cascade:  cascade,
		logger:   logger,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(router)
	}
	return router, nil
}

// RouteResult reports what the router did with one event.
type RouteResult struct {
	Handled    bool
	EntityName string
	Record     core.Record
}

// Route synchronously processes one event. Payload-bearing events sync the
// embedded record directly; bare notifications resolve the reference through
// the strategy first. Both paths run the hierarchy cascade.
func (r *Router) Route(ctx context.Context, event core.WebhookEvent) (RouteResult, error) {
	if r == nil {
		return RouteResult{}, fmt.Errorf("webhooks: router is nil")
	}

	strategy, ok := r.resolveStrategy(event)
	if !ok {
		r.logger.Debug("no strategy for event, dropping",
			"event", event.Event,
			"team_space", event.TeamSpaceID,
		)
		return RouteResult{Handled: false}, nil
	}

	record := event.Payload
	if len(record) == 0 {
		reference := event.Reference()
		if reference == "" {
			return RouteResult{}, core.NewBadInputError("webhooks: event carries neither payload nor reference", map[string]any{
				"event": event.Event,
			})
		}
		fetched, err := strategy.ByReference(ctx, reference)
		if err != nil {
			return RouteResult{}, err
		}
		record = fetched
	}
	if record.String("entity") == "" {
		tagged := record.Clone()
		tagged["entity"] = strategy.ModelType()
		record = tagged
	}

	applied, err := r.cascade.SyncCascade(ctx, record)
	if err != nil {
		return RouteResult{}, err
	}
	return RouteResult{
		Handled:    true,
		EntityName: strategy.ModelType(),
		Record:     applied,
	}, nil
}

func (r *Router) resolveStrategy(event core.WebhookEvent) (core.PullStrategy, bool) {
	if len(event.Payload) > 0 {
		if strategy, ok := r.registry.PullFor(event.Payload); ok {
			return strategy, true
		}
	}
	if len(event.Entity) > 0 {
		if strategy, ok := r.registry.PullFor(event.Entity); ok {
			return strategy, true
		}
	}
	if entity := EntityFromEvent(event.Event); entity != "" {
		if strategy, ok := r.registry.Pull(entity); ok {
			return strategy, true
		}
	}
	return nil, false
}
