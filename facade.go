package crmsync

import (
	"fmt"

	synccommand "github.com/goliatone/go-crm-sync/command"
	"github.com/goliatone/go-crm-sync/core"
	syncquery "github.com/goliatone/go-crm-sync/query"
)

// CommandQueryService is the surface the command and query handlers need.
// The Engine satisfies it; downstream apps can substitute their own.
type CommandQueryService interface {
	synccommand.MutatingService
	syncquery.QueueReader
	syncquery.LinkReader
}

type Commands struct {
	SyncByReference  *synccommand.SyncByReferenceCommand
	RequestQueueSync *synccommand.RequestQueueSyncCommand
	InvalidateLink   *synccommand.InvalidateLinkCommand
	ResolveFailure   *synccommand.ResolveFailureCommand
}

type Queries struct {
	QueueCounts      *syncquery.QueueCountsQuery
	LoadLinkedEntity *syncquery.LoadLinkedEntityQuery
	ListOpenFailures *syncquery.ListOpenFailuresQuery
}

// Facade packages the command and query handlers around one service so
// dispatcher wiring happens in one place.
type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	failureReader syncquery.FailureReader
}

func WithFailureReader(reader syncquery.FailureReader) FacadeOption {
	return func(options *facadeOptions) {
		options.failureReader = reader
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("crmsync: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	reader := cfg.failureReader
	if reader == nil {
		reader = resolveFailureReader(service)
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		SyncByReference:  synccommand.NewSyncByReferenceCommand(service),
		RequestQueueSync: synccommand.NewRequestQueueSyncCommand(service),
		InvalidateLink:   synccommand.NewInvalidateLinkCommand(service),
		ResolveFailure:   synccommand.NewResolveFailureCommand(service),
	}
	facade.queries = Queries{
		QueueCounts:      syncquery.NewQueueCountsQuery(service),
		LoadLinkedEntity: syncquery.NewLoadLinkedEntityQuery(service),
		ListOpenFailures: syncquery.NewListOpenFailuresQuery(reader),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

// resolveFailureReader finds a failure backlog reader behind the service:
// either the service reads the backlog itself or it exposes a store provider
// whose failure store does.
func resolveFailureReader(service CommandQueryService) syncquery.FailureReader {
	if service == nil {
		return nil
	}
	if reader, ok := service.(syncquery.FailureReader); ok {
		return reader
	}
	provider, ok := service.(interface{ Stores() core.StoreProvider })
	if !ok {
		return nil
	}
	stores := provider.Stores()
	if stores == nil {
		return nil
	}
	return stores.SyncFailureStore()
}

var (
	_ CommandQueryService     = (*Engine)(nil)
	_ syncquery.FailureReader = (*Engine)(nil)
)
