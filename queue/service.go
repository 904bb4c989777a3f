package queue

import (
	"context"
	"fmt"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"

	"github.com/goliatone/go-crm-sync/core"
)

// Direction selects which side of the boundary a run moves records toward.
type Direction string

const (
	DirectionPull Direction = "pull"
	DirectionPush Direction = "push"
)

// Job identifiers understood by the worker.
const (
	JobPull  = "crm.sync.pull"
	JobPush  = "crm.sync.push"
	JobQueue = "crm.sync.queue"
)

// Service is the backlog accounting face of the engine: cheap pending counts
// for dashboards and async run requests for everything else.
type Service struct {
	registry core.StrategyRegistry
	enqueuer core.JobEnqueuer
	failures core.SyncFailureStore
	logger   core.Logger
}

type ServiceOption func(*Service)

func WithServiceLogger(logger core.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithFailureStore(failures core.SyncFailureStore) ServiceOption {
	return func(s *Service) {
		s.failures = failures
	}
}

func NewService(registry core.StrategyRegistry, enqueuer core.JobEnqueuer, opts ...ServiceOption) (*Service, error) {
	if registry == nil {
		return nil, fmt.Errorf("queue: registry is required")
	}
	if enqueuer == nil {
		return nil, fmt.Errorf("queue: enqueuer is required")
	}
	_, logger := glog.Resolve("queue", nil, nil)
	service := &Service{
		registry: registry,
		enqueuer: enqueuer,
		logger:   logger,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(service)
	}
	return service, nil
}

// Counts probes every registered strategy without materializing record sets.
// Pull and push backlogs for the same entity add up: both represent work the
// engine has not done yet.
func (s *Service) Counts(ctx context.Context) (core.QueueCounts, error) {
	opportunities, err := s.countEntity(ctx, core.EntityOpportunity)
	if err != nil {
		return core.QueueCounts{}, err
	}
	companies, err := s.countEntity(ctx, core.EntityCompany)
	if err != nil {
		return core.QueueCounts{}, err
	}
	return core.NewQueueCounts(opportunities, companies), nil
}

func (s *Service) countEntity(ctx context.Context, entityName string) (int, error) {
	total := 0
	if strategy, ok := s.registry.Pull(entityName); ok {
		count, err := strategy.CountPending(ctx)
		if err != nil {
			return 0, err
		}
		total += count
	}
	if strategy, ok := s.registry.Push(entityName); ok {
		count, err := strategy.CountPending(ctx)
		if err != nil {
			return 0, err
		}
		total += count
	}
	return total, nil
}

// RequestSync enqueues an async run for one direction, optionally narrowed to
// a single entity type. The result reports acceptance into the backlog, not
// completion. A request with nothing pending is a no-op reporting
// queued=false.
func (s *Service) RequestSync(ctx context.Context, direction Direction, entityName string) (core.QueueSyncResult, error) {
	jobID := ""
	switch direction {
	case DirectionPull:
		jobID = JobPull
	case DirectionPush:
		jobID = JobPush
	default:
		return core.NewQueueSyncResult(false), core.NewBadInputError("queue: unknown direction", map[string]any{
			"direction": string(direction),
		})
	}
	entityName = strings.ToLower(strings.TrimSpace(entityName))
	if entityName != "" {
		if _, okPull := s.registry.Pull(entityName); !okPull {
			if _, okPush := s.registry.Push(entityName); !okPush {
				return core.NewQueueSyncResult(false), core.NewBadInputError("queue: unknown entity", map[string]any{
					"entity": entityName,
				})
			}
		}
	}

	pending, err := s.pendingFor(ctx, direction, entityName)
	if err != nil {
		return core.NewQueueSyncResult(false), err
	}
	if pending == 0 {
		s.logger.Info("sync run skipped, nothing pending",
			"job", jobID,
			"entity", entityName,
		)
		return core.NewQueueSyncResult(false), nil
	}

	msg := &core.JobExecutionMessage{
		JobID: jobID,
		Parameters: map[string]any{
			"entity": entityName,
		},
		IdempotencyKey: uuid.NewString(),
	}
	if err := s.enqueuer.Enqueue(ctx, msg); err != nil {
		return core.NewQueueSyncResult(false), err
	}
	s.logger.Info("sync run queued",
		"job", jobID,
		"entity", entityName,
	)
	return core.NewQueueSyncResult(true), nil
}

// pendingFor totals the backlog the requested run would drain, narrowed to
// one entity type when given.
func (s *Service) pendingFor(ctx context.Context, direction Direction, entityName string) (int, error) {
	total := 0
	if direction == DirectionPull {
		for _, strategy := range s.registry.ListPull() {
			if entityName != "" && strategy.ModelType() != entityName {
				continue
			}
			count, err := strategy.CountPending(ctx)
			if err != nil {
				return 0, err
			}
			total += count
		}
		return total, nil
	}
	for _, strategy := range s.registry.ListPush() {
		if entityName != "" && strategy.ModelType() != entityName {
			continue
		}
		count, err := strategy.CountPending(ctx)
		if err != nil {
			return 0, err
		}
		total += count
	}
	return total, nil
}

// OpenFailures counts backlog entries needing operator attention per entity.
func (s *Service) OpenFailures(ctx context.Context, entityName string) (int, error) {
	if s.failures == nil {
		return 0, nil
	}
	return s.failures.CountOpen(ctx, entityName)
}
