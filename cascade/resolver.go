package cascade

import (
	"context"
	"fmt"
	"strings"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-crm-sync/core"
)

const defaultMaxDepth = 8

// Resolver walks an entity's higher hierarchy and produces the ancestor-first
// order a sync must follow so parents exist before their dependents land.
type Resolver struct {
	registry core.StrategyRegistry
	logger   core.Logger
	maxDepth int
}

type Option func(*Resolver)

func WithLogger(logger core.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithMaxDepth(depth int) Option {
	return func(r *Resolver) {
		if depth > 0 {
			r.maxDepth = depth
		}
	}
}

func New(registry core.StrategyRegistry, opts ...Option) (*Resolver, error) {
	if registry == nil {
		return nil, fmt.Errorf("cascade: registry is required")
	}
	_, logger := glog.Resolve("cascade", nil, nil)
	resolver := &Resolver{
		registry: registry,
		logger:   logger,
		maxDepth: defaultMaxDepth,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(resolver)
	}
	return resolver, nil
}

// Resolve returns the sync order for the record: every transitive ancestor
// first, nearest last, the record itself at the end. A node reachable through
// two branches appears once. A node reachable through itself is a cycle and
// aborts the walk.
func (r *Resolver) Resolve(ctx context.Context, record core.Record) ([]core.Record, error) {
	if r == nil {
		return nil, fmt.Errorf("cascade: resolver is nil")
	}
	walk := &walkState{
		inPath: map[string]bool{},
		done:   map[string]bool{},
	}
	if err := r.visit(ctx, record, walk, 0); err != nil {
		return nil, err
	}
	return walk.ordered, nil
}

type walkState struct {
	inPath  map[string]bool
	done    map[string]bool
	ordered []core.Record
}

func (r *Resolver) visit(ctx context.Context, record core.Record, walk *walkState, depth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// A deep-but-acyclic hierarchy classifies as bad input, not as a cycle.
	if depth > r.maxDepth {
		return core.NewBadInputError("cascade: hierarchy exceeds depth limit", map[string]any{
			"max_depth": r.maxDepth,
		})
	}

	strategy, _ := r.registry.PullFor(record)
	key := nodeKey(strategy, record)
	if walk.inPath[key] {
		return core.NewCycleDetectedError("cascade: hierarchy cycle detected", map[string]any{
			"node": key,
		})
	}
	if walk.done[key] {
		return nil
	}
	walk.inPath[key] = true
	defer delete(walk.inPath, key)

	if hier, ok := strategy.(core.HigherHierarchyResolver); ok && strategy != nil {
		for parent, err := range hier.HigherHierarchy(ctx, record) {
			if err != nil {
				return err
			}
			if err := r.visit(ctx, parent, walk, depth+1); err != nil {
				return err
			}
		}
	}

	walk.done[key] = true
	walk.ordered = append(walk.ordered, record)
	return nil
}

// SyncCascade resolves the hierarchy then pulls each record in order,
// returning the applied form of the requested record itself.
func (r *Resolver) SyncCascade(ctx context.Context, record core.Record) (core.Record, error) {
	ordered, err := r.Resolve(ctx, record)
	if err != nil {
		return nil, err
	}
	var applied core.Record
	for i, node := range ordered {
		strategy, ok := r.registry.PullFor(node)
		if !ok {
			return nil, core.NewBadInputError("cascade: no strategy claims record", map[string]any{
				"node": nodeKey(nil, node),
			})
		}
		result, err := strategy.Sync(ctx, node)
		if err != nil {
			return nil, err
		}
		if i == len(ordered)-1 {
			applied = result
		}
	}
	return applied, nil
}

func nodeKey(strategy core.PullStrategy, record core.Record) string {
	entity := record.String("entity")
	if entity == "" && strategy != nil {
		entity = strategy.ModelType()
	}
	reference := record.String("id")
	return strings.ToLower(strings.TrimSpace(entity)) + "/" + strings.TrimSpace(reference)
}
