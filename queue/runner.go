package queue

import (
	"context"
	"fmt"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-crm-sync/core"
)

// CascadeSyncer pulls a record after its ancestors.
type CascadeSyncer interface {
	SyncCascade(ctx context.Context, record core.Record) (core.Record, error)
}

// RunReport summarizes one batch run.
type RunReport struct {
	Direction  Direction
	EntityName string
	Synced     int
	Skipped    int
	Failed     int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Runner drains pending backlogs in batches. Per-item failures follow the
// error taxonomy: retryable errors abort the run so the job layer retries
// the whole batch, terminal item errors land in the failure backlog and the
// run moves on.
type Runner struct {
	registry core.StrategyRegistry
	cascade  CascadeSyncer
	failures core.SyncFailureStore
	logger   core.Logger

	Now func() time.Time
}

type RunnerOption func(*Runner)

func WithRunnerLogger(logger core.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewRunner(registry core.StrategyRegistry, cascade CascadeSyncer, failures core.SyncFailureStore, opts ...RunnerOption) (*Runner, error) {
	if registry == nil {
		return nil, fmt.Errorf("queue: registry is required")
	}
	if cascade == nil {
		return nil, fmt.Errorf("queue: cascade syncer is required")
	}
	if failures == nil {
		return nil, fmt.Errorf("queue: failure store is required")
	}
	_, logger := glog.Resolve("queue", nil, nil)
	runner := &Runner{
		registry: registry,
		cascade:  cascade,
		failures: failures,
		logger:   logger,
		Now:      time.Now,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(runner)
	}
	return runner, nil
}

// RunPull drains the remote backlog for one entity type into the local side.
func (r *Runner) RunPull(ctx context.Context, entityName string) (RunReport, error) {
	report := RunReport{
		Direction:  DirectionPull,
		EntityName: entityName,
		StartedAt:  r.Now(),
	}
	strategy, ok := r.registry.Pull(entityName)
	if !ok {
		report.FinishedAt = r.Now()
		return report, core.NewBadInputError("queue: no pull strategy", map[string]any{
			"entity": entityName,
		})
	}

	for item, err := range strategy.IteratePending(ctx) {
		if err != nil {
			report.FinishedAt = r.Now()
			return report, err
		}
		record := item.Payload
		if record.String("entity") == "" {
			record = record.Clone()
			record["entity"] = entityName
		}
		applied, err := r.cascade.SyncCascade(ctx, record)
		switch {
		case err == nil && applied == nil:
			report.Skipped++
		case err == nil:
			report.Synced++
		default:
			proceed, itemErr := r.handleItemError(ctx, entityName, item.Reference, err)
			if !proceed {
				report.FinishedAt = r.Now()
				return report, itemErr
			}
			report.Failed++
		}
	}
	report.FinishedAt = r.Now()
	r.logReport(report)
	return report, nil
}

// RunPush drains the local dirty backlog for one entity type to the remote
// side, pushing ancestors ahead of their dependents.
func (r *Runner) RunPush(ctx context.Context, entityName string) (RunReport, error) {
	report := RunReport{
		Direction:  DirectionPush,
		EntityName: entityName,
		StartedAt:  r.Now(),
	}
	strategy, ok := r.registry.Push(entityName)
	if !ok {
		report.FinishedAt = r.Now()
		return report, core.NewBadInputError("queue: no push strategy", map[string]any{
			"entity": entityName,
		})
	}

	for item, err := range strategy.IteratePending(ctx) {
		if err != nil {
			report.FinishedAt = r.Now()
			return report, err
		}
		err = r.pushWithAncestors(ctx, strategy, item.Payload)
		switch {
		case err == nil:
			report.Synced++
		default:
			proceed, itemErr := r.handleItemError(ctx, entityName, item.LocalID, err)
			if !proceed {
				report.FinishedAt = r.Now()
				return report, itemErr
			}
			report.Failed++
		}
	}
	report.FinishedAt = r.Now()
	r.logReport(report)
	return report, nil
}

func (r *Runner) pushWithAncestors(ctx context.Context, strategy core.PushStrategy, record core.Record) error {
	if hier, ok := strategy.(core.HigherHierarchyResolver); ok {
		for parent, err := range hier.HigherHierarchy(ctx, record) {
			if err != nil {
				return err
			}
			parentStrategy, ok := r.registry.Push(parent.String("entity"))
			if !ok {
				continue
			}
			if err := parentStrategy.Sync(ctx, parent); err != nil {
				return err
			}
		}
	}
	return strategy.Sync(ctx, record)
}

// handleItemError decides whether a run survives one item's failure.
// Terminal item states are recorded and skipped; everything else aborts the
// run and propagates.
func (r *Runner) handleItemError(ctx context.Context, entityName, reference string, err error) (bool, error) {
	var kind core.SyncFailureKind
	switch {
	case core.IsNotFound(err):
		kind = core.SyncFailureNotFound
	case core.IsRemoteRejected(err):
		kind = core.SyncFailureRemoteRejected
	case core.IsLocalConstraint(err):
		kind = core.SyncFailureLocalConstraint
	case core.IsCycleDetected(err):
		kind = core.SyncFailureCycle
	default:
		return false, err
	}

	failure := core.SyncFailure{
		EntityName: entityName,
		Reference:  reference,
		Kind:       kind,
		Status:     core.SyncFailureOpen,
		Message:    err.Error(),
	}
	if _, recordErr := r.failures.Record(ctx, failure); recordErr != nil {
		return false, recordErr
	}
	r.logger.Warn("sync item parked in failure backlog",
		"entity", entityName,
		"reference", reference,
		"kind", string(kind),
	)
	return true, nil
}

func (r *Runner) logReport(report RunReport) {
	r.logger.Info("sync run finished",
		"direction", string(report.Direction),
		"entity", report.EntityName,
		"synced", report.Synced,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"elapsed", report.FinishedAt.Sub(report.StartedAt).String(),
	)
}
