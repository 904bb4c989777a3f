package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidEntityName    = errors.New("core: invalid entity name")
	ErrInvalidSalesUnit     = errors.New("core: invalid sales unit")
	ErrLinkedEntityNotFound = errors.New("core: linked entity not found")
	ErrSalesUnitNotFound    = errors.New("core: sales unit not found")
)

const (
	EntityCompany     = "company"
	EntityOpportunity = "opportunity"
	EntityQuote       = "quote"
)

// Record is an opaque attribute map for one side of the sync boundary.
// The engine never interprets business semantics beyond the keys it is told
// to read (reference, revision, name fields for correlation).
type Record map[string]any

func (r Record) String(key string) string {
	if r == nil {
		return ""
	}
	value, ok := r[key]
	if !ok || value == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

func (r Record) Int64(key string) int64 {
	if r == nil {
		return 0
	}
	switch value := r[key].(type) {
	case int:
		return int64(value)
	case int64:
		return value
	case float64:
		return int64(value)
	case json.Number:
		parsed, err := value.Int64()
		if err != nil {
			return 0
		}
		return parsed
	case string:
		var parsed int64
		if _, err := fmt.Sscanf(strings.TrimSpace(value), "%d", &parsed); err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}

func (r Record) Clone() Record {
	if r == nil {
		return Record{}
	}
	out := make(Record, len(r))
	for key, value := range r {
		out[key] = value
	}
	return out
}

// SalesUnit is a named local partition scoping which records a sync run may
// touch.
type SalesUnit struct {
	ID      string
	Name    string
	Enabled bool
}

func (u SalesUnit) Validate() error {
	if strings.TrimSpace(u.ID) == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidSalesUnit)
	}
	if strings.TrimSpace(u.Name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidSalesUnit)
	}
	return nil
}

// RemoteMetadata is the cheap remote-side probe used to decide staleness
// without fetching the full payload.
type RemoteMetadata struct {
	ID       string
	Revision int64
	Created  time.Time
	Modified time.Time
}

// LinkValidity is the tri-state correlation outcome on a linked entity.
type LinkValidity string

const (
	LinkValid      LinkValidity = "valid"
	LinkInvalid    LinkValidity = "invalid"
	LinkUnresolved LinkValidity = "unresolved"
)

func (v LinkValidity) Bool() *bool {
	switch v {
	case LinkValid:
		value := true
		return &value
	case LinkInvalid:
		value := false
		return &value
	default:
		return nil
	}
}

func ValidityFromBool(value *bool) LinkValidity {
	switch {
	case value == nil:
		return LinkUnresolved
	case *value:
		return LinkValid
	default:
		return LinkInvalid
	}
}

// LinkedEntity is the durable record of a correlation between a local record
// and a remote reference.
type LinkedEntity struct {
	ID              string
	EntityName      string
	LocalID         string
	RemoteReference string
	Validity        LinkValidity
	RevisionSeen    int64
	SalesUnitID     string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type UpsertLinkedEntityInput struct {
	EntityName      string
	LocalID         string
	RemoteReference string
	Validity        LinkValidity
	RevisionSeen    int64
	SalesUnitID     string
}

func (in UpsertLinkedEntityInput) Validate() error {
	if strings.TrimSpace(in.EntityName) == "" {
		return fmt.Errorf("%w: empty entity name", ErrInvalidEntityName)
	}
	if strings.TrimSpace(in.RemoteReference) == "" {
		return errors.New("core: remote reference is required")
	}
	return nil
}

// QueueCounts is an immutable backlog snapshot. Construct once, share freely.
type QueueCounts struct {
	opportunities int
	companies     int
}

func NewQueueCounts(opportunities, companies int) QueueCounts {
	return QueueCounts{opportunities: opportunities, companies: companies}
}

func (c QueueCounts) Opportunities() int { return c.opportunities }

func (c QueueCounts) Companies() int { return c.companies }

func (c QueueCounts) Total() int { return c.opportunities + c.companies }

func (c QueueCounts) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Opportunities int `json:"opportunities"`
		Companies     int `json:"companies"`
	}{
		Opportunities: c.opportunities,
		Companies:     c.companies,
	})
}

// QueueSyncResult reports whether a sync request was accepted into the
// backlog, not whether the run completed.
type QueueSyncResult struct {
	queued bool
}

func NewQueueSyncResult(queued bool) QueueSyncResult {
	return QueueSyncResult{queued: queued}
}

func (r QueueSyncResult) Queued() bool { return r.queued }

func (r QueueSyncResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Queued bool `json:"queued"`
	}{Queued: r.queued})
}

// WebhookEvent is the normalized decoding of one inbound remote notification.
// Constructed once per delivery, consumed synchronously, then discarded.
type WebhookEvent struct {
	Event       string
	EventTime   time.Time
	TeamSpaceID string
	Entity      Record
	Payload     Record
}

func (e WebhookEvent) Reference() string {
	if ref := e.Entity.String("id"); ref != "" {
		return ref
	}
	return e.Payload.String("id")
}

// PendingItem is one opaque entity handle yielded by IteratePending.
type PendingItem struct {
	EntityName string
	LocalID    string
	Reference  string
	Revision   int64
	Payload    Record
}

type SyncFailureKind string

const (
	SyncFailureNotFound        SyncFailureKind = "not_found"
	SyncFailureRemoteRejected  SyncFailureKind = "remote_rejected"
	SyncFailureLocalConstraint SyncFailureKind = "local_constraint"
	SyncFailureCycle           SyncFailureKind = "cycle"
)

type SyncFailureStatus string

const (
	SyncFailureOpen     SyncFailureStatus = "open"
	SyncFailureResolved SyncFailureStatus = "resolved"
)

// SyncFailure is an operator-visible backlog entry for items that will not
// resolve on their own.
type SyncFailure struct {
	ID         string
	EntityName string
	Reference  string
	Kind       SyncFailureKind
	Status     SyncFailureStatus
	Message    string
	Metadata   map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (f *SyncFailure) Resolve(now time.Time) error {
	if f == nil {
		return nil
	}
	if f.Status == SyncFailureResolved {
		f.UpdatedAt = now
		return nil
	}
	f.Status = SyncFailureResolved
	f.UpdatedAt = now
	return nil
}
