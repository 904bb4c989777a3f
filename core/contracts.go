package core

import (
	"context"
	"iter"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// SyncStrategy encapsulates, per local entity type, how to move one record
// across the boundary in one direction.
type SyncStrategy interface {
	// SetSalesUnits replaces the strategy scope; an empty scope disables the
	// strategy (fail-soft). Returns the strategy for chaining.
	SetSalesUnits(units []SalesUnit) SyncStrategy
	SalesUnits() []SalesUnit

	// CountPending is a cheap probe of outdated records within scope; it
	// never materializes the record set.
	CountPending(ctx context.Context) (int, error)

	// IteratePending yields pending entity handles from a freshly-issued
	// query. The sequence is finite per invocation and not restartable;
	// a new call re-evaluates pending state from scratch.
	IteratePending(ctx context.Context) iter.Seq2[PendingItem, error]

	// ModelType is the stable tag identifying the local entity type.
	ModelType() string

	// AppliesTo reports whether this strategy should handle the record.
	AppliesTo(record Record) bool

	// ByReference resolves an opaque external reference to a fully-loaded
	// record; fails with a not-found error when the reference is unknown.
	ByReference(ctx context.Context, reference string) (Record, error)
}

// PullStrategy moves records remote -> local.
type PullStrategy interface {
	SyncStrategy

	// Sync applies one remote record onto the local side, creating or
	// updating it, and returns the updated local record. Re-applying the
	// same remote revision twice yields no additional side effects.
	Sync(ctx context.Context, record Record) (Record, error)

	// SyncByReference resolves then syncs in one step.
	SyncByReference(ctx context.Context, reference string) (Record, error)

	// Metadata is the cheap remote probe used to decide whether a full sync
	// is needed before fetching the payload.
	Metadata(ctx context.Context, reference string) (RemoteMetadata, error)
}

// PushStrategy moves records local -> remote. Sync is fire-and-confirm and
// safe to retry: implementations upsert on a stable local-origin reference,
// never blind-create.
type PushStrategy interface {
	SyncStrategy

	Sync(ctx context.Context, record Record) error
}

// HigherHierarchyResolver is an optional strategy capability declaring that
// syncing an entity implies syncing its ancestors first.
type HigherHierarchyResolver interface {
	HigherHierarchy(ctx context.Context, record Record) iter.Seq2[Record, error]
}

// CorrelationMatcher decides whether two unreferenced records represent the
// same real-world entity.
type CorrelationMatcher interface {
	Matches(ctx context.Context, strategyKey string, item Record, another Record) (bool, error)
}

// LinkedEntityStore persists local-id <-> remote-reference links. Writes are
// idempotent upserts keyed by (entity_name, remote_reference), safe under
// concurrent writers.
type LinkedEntityStore interface {
	Upsert(ctx context.Context, in UpsertLinkedEntityInput) (LinkedEntity, error)
	GetByReference(ctx context.Context, entityName string, reference string) (LinkedEntity, error)
	GetByLocalID(ctx context.Context, entityName string, localID string) (LinkedEntity, error)
	Invalidate(ctx context.Context, entityName string, reference string, reason string) error
	// MaxRevisionSeen is the pull watermark for an entity type within the
	// given sales units; zero when nothing has been synced yet.
	MaxRevisionSeen(ctx context.Context, entityName string, salesUnitIDs []string) (int64, error)
}

// SalesUnitStore is the read model over the sales-unit registry collaborator.
type SalesUnitStore interface {
	Get(ctx context.Context, id string) (SalesUnit, error)
	ListEnabled(ctx context.Context) ([]SalesUnit, error)
}

// SyncFailureStore records items stuck in non-retryable states so operators
// can distinguish "will resolve on its own" from "needs manual fix".
type SyncFailureStore interface {
	Record(ctx context.Context, failure SyncFailure) (SyncFailure, error)
	CountOpen(ctx context.Context, entityName string) (int, error)
	ListOpen(ctx context.Context, entityName string, limit int) ([]SyncFailure, error)
	Resolve(ctx context.Context, id string) error
}

// StoreProvider bundles the persistence collaborators the engine needs so
// wiring code can hand them out from one place.
type StoreProvider interface {
	LinkedEntityStore() LinkedEntityStore
	SalesUnitStore() SalesUnitStore
	SyncFailureStore() SyncFailureStore
}

// LocalStore is the engine's view of local CRM persistence. Apply must be
// transactional: the record is either fully stamped with the new revision or
// untouched.
type LocalStore interface {
	Get(ctx context.Context, entityName string, id string) (Record, error)
	// Search returns local candidates for correlation, scoped to the given
	// sales units.
	Search(ctx context.Context, entityName string, name string, salesUnitIDs []string) ([]Record, error)
	Apply(ctx context.Context, entityName string, record Record, meta RemoteMetadata) (Record, error)
	CountDirty(ctx context.Context, entityName string, salesUnitIDs []string) (int, error)
	// IterateDirty pages over locally-modified records pending push, in a
	// freshly-issued query.
	IterateDirty(ctx context.Context, entityName string, salesUnitIDs []string) iter.Seq2[Record, error]
}

// RemoteClient is the engine's view of the remote CRM API transport.
type RemoteClient interface {
	FetchByReference(ctx context.Context, entityType string, reference string) (Record, error)
	FetchMetadata(ctx context.Context, entityType string, reference string) (RemoteMetadata, error)
	CountModifiedSince(ctx context.Context, entityType string, salesUnitIDs []string, sinceRevision int64) (int, error)
	ListModifiedSince(ctx context.Context, entityType string, salesUnitIDs []string, sinceRevision int64, cursor string, limit int) (RemotePage, error)
	// Upsert writes the record keyed by its stable local-origin reference and
	// returns the resulting remote metadata.
	Upsert(ctx context.Context, entityType string, originReference string, record Record) (RemoteMetadata, error)
}

type RemotePage struct {
	Items      []Record
	NextCursor string
	HasMore    bool
}

type StrategyRegistry interface {
	RegisterPull(strategy PullStrategy) error
	RegisterPush(strategy PushStrategy) error
	Pull(modelType string) (PullStrategy, bool)
	Push(modelType string) (PushStrategy, bool)
	// PullFor locates the pull strategy claiming the opaque record via
	// AppliesTo; used by the webhook router and the cascade resolver.
	PullFor(record Record) (PullStrategy, bool)
	ListPull() []PullStrategy
	ListPush() []PushStrategy
}

type JobExecutionMessage struct {
	JobID          string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type TransportRequest struct {
	Method               string
	URL                  string
	Headers              map[string]string
	Query                map[string]string
	Body                 []byte
	Metadata             map[string]any
	Timeout              time.Duration
	Idempotency          string
	MaxResponseBodyBytes int64
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type TransportAdapter interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

type RateLimitKey struct {
	Space  string
	Entity string
}

type RemoteResponseMeta struct {
	StatusCode int
	Headers    map[string]string
	RetryAfter *time.Duration
}

type RateLimitPolicy interface {
	BeforeCall(ctx context.Context, key RateLimitKey) error
	AfterCall(ctx context.Context, key RateLimitKey, res RemoteResponseMeta) error
}
