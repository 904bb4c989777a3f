package command

import (
	"context"
	"strings"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-crm-sync/core"
)

// MutatingService is the engine surface the command handlers delegate to.
type MutatingService interface {
	SyncByReference(ctx context.Context, entityName string, reference string) (core.Record, error)
	RequestQueueSync(ctx context.Context, direction string, entityName string) (core.QueueSyncResult, error)
	InvalidateLink(ctx context.Context, entityName string, reference string, reason string) error
	ResolveFailure(ctx context.Context, failureID string) error
}

type SyncByReferenceCommand struct {
	service MutatingService
}

func NewSyncByReferenceCommand(service MutatingService) *SyncByReferenceCommand {
	return &SyncByReferenceCommand{service: service}
}

func (c *SyncByReferenceCommand) Execute(ctx context.Context, msg SyncByReferenceMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: sync service is required")
	}
	out, err := c.service.SyncByReference(ctx, msg.EntityName, msg.Reference)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RequestQueueSyncCommand struct {
	service MutatingService
}

func NewRequestQueueSyncCommand(service MutatingService) *RequestQueueSyncCommand {
	return &RequestQueueSyncCommand{service: service}
}

func (c *RequestQueueSyncCommand) Execute(ctx context.Context, msg RequestQueueSyncMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: queue service is required")
	}
	direction := strings.ToLower(strings.TrimSpace(msg.Direction))
	if direction != "pull" && direction != "push" {
		return commandInvalidInputError("command: direction must be pull or push")
	}
	out, err := c.service.RequestQueueSync(ctx, direction, msg.EntityName)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type InvalidateLinkCommand struct {
	service MutatingService
}

func NewInvalidateLinkCommand(service MutatingService) *InvalidateLinkCommand {
	return &InvalidateLinkCommand{service: service}
}

func (c *InvalidateLinkCommand) Execute(ctx context.Context, msg InvalidateLinkMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: link service is required")
	}
	return c.service.InvalidateLink(ctx, msg.EntityName, msg.Reference, msg.Reason)
}

type ResolveFailureCommand struct {
	service MutatingService
}

func NewResolveFailureCommand(service MutatingService) *ResolveFailureCommand {
	return &ResolveFailureCommand{service: service}
}

func (c *ResolveFailureCommand) Execute(ctx context.Context, msg ResolveFailureMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: failure service is required")
	}
	return c.service.ResolveFailure(ctx, msg.FailureID)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
