package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-crm-sync/core"
)

const defaultRetryDelay = 30 * time.Second

// Worker consumes queued run requests and drives the runner. One delivery
// maps to one run; retryable run errors go back to the queue, terminal ones
// dead-letter.
type Worker struct {
	dequeuer   core.JobDequeuer
	runner     *Runner
	registry   core.StrategyRegistry
	logger     core.Logger
	retryDelay time.Duration
}

type WorkerOption func(*Worker)

func WithWorkerLogger(logger core.Logger) WorkerOption {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func WithRetryDelay(delay time.Duration) WorkerOption {
	return func(w *Worker) {
		if delay > 0 {
			w.retryDelay = delay
		}
	}
}

func NewWorker(dequeuer core.JobDequeuer, runner *Runner, registry core.StrategyRegistry, opts ...WorkerOption) (*Worker, error) {
	if dequeuer == nil {
		return nil, fmt.Errorf("queue: dequeuer is required")
	}
	if runner == nil {
		return nil, fmt.Errorf("queue: runner is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("queue: registry is required")
	}
	_, logger := glog.Resolve("queue", nil, nil)
	worker := &Worker{
		dequeuer:   dequeuer,
		runner:     runner,
		registry:   registry,
		logger:     logger,
		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(worker)
	}
	return worker, nil
}

// Run consumes deliveries until the context ends.
func (w *Worker) Run(ctx context.Context) error {
	for {
		delivery, err := w.dequeuer.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		w.Process(ctx, delivery)
	}
}

// Process handles one delivery end to end, including the ack decision.
func (w *Worker) Process(ctx context.Context, delivery core.JobDelivery) {
	msg := delivery.Message()
	if msg == nil {
		_ = delivery.Ack(ctx)
		return
	}
	err := w.dispatch(ctx, msg)
	switch {
	case err == nil:
		_ = delivery.Ack(ctx)
	case core.IsRetryable(err):
		w.logger.Warn("run failed, requeueing",
			"job", msg.JobID,
			"error", err,
		)
		_ = delivery.Nack(ctx, core.JobNackOptions{
			Requeue: true,
			Delay:   w.retryDelay,
			Reason:  err.Error(),
		})
	default:
		w.logger.Error("run failed terminally, dead-lettering",
			"job", msg.JobID,
			"error", err,
		)
		_ = delivery.Nack(ctx, core.JobNackOptions{
			DeadLetter: true,
			Reason:     err.Error(),
		})
	}
}

func (w *Worker) dispatch(ctx context.Context, msg *core.JobExecutionMessage) error {
	entity := ""
	if raw, ok := msg.Parameters["entity"]; ok && raw != nil {
		entity = strings.ToLower(strings.TrimSpace(fmt.Sprint(raw)))
	}
	switch msg.JobID {
	case JobPull:
		for _, name := range w.pullEntities(entity) {
			if _, err := w.runner.RunPull(ctx, name); err != nil {
				return err
			}
		}
		return nil
	case JobPush:
		for _, name := range w.pushEntities(entity) {
			if _, err := w.runner.RunPush(ctx, name); err != nil {
				return err
			}
		}
		return nil
	default:
		// Unknown jobs are acked and dropped, mirroring webhook routing.
		w.logger.Info("unknown job, dropping", "job", msg.JobID)
		return nil
	}
}

func (w *Worker) pullEntities(entity string) []string {
	if entity != "" {
		return []string{entity}
	}
	strategies := w.registry.ListPull()
	names := make([]string, 0, len(strategies))
	for _, strategy := range strategies {
		names = append(names, strategy.ModelType())
	}
	return names
}

func (w *Worker) pushEntities(entity string) []string {
	if entity != "" {
		return []string{entity}
	}
	strategies := w.registry.ListPush()
	names := make([]string, 0, len(strategies))
	for _, strategy := range strategies {
		names = append(names, strategy.ModelType())
	}
	return names
}
