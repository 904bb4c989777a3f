package query

import "strings"

const (
	TypeQueueCounts      = "crm.sync.query.queue.counts"
	TypeLoadLinkedEntity = "crm.sync.query.link.load"
	TypeListOpenFailures = "crm.sync.query.failures.list"
)

// QueueCountsMessage asks for the current backlog snapshot.
type QueueCountsMessage struct{}

func (QueueCountsMessage) Type() string { return TypeQueueCounts }

func (QueueCountsMessage) Validate() error { return nil }

// LoadLinkedEntityMessage resolves a stored correlation by remote reference.
type LoadLinkedEntityMessage struct {
	EntityName string
	Reference  string
}

func (LoadLinkedEntityMessage) Type() string { return TypeLoadLinkedEntity }

func (m LoadLinkedEntityMessage) Validate() error {
	if strings.TrimSpace(m.EntityName) == "" {
		return queryValidationError("entity_name", "entity name is required")
	}
	if strings.TrimSpace(m.Reference) == "" {
		return queryValidationError("reference", "remote reference is required")
	}
	return nil
}

// ListOpenFailuresMessage pages the operator backlog for one entity type.
type ListOpenFailuresMessage struct {
	EntityName string
	Limit      int
}

func (ListOpenFailuresMessage) Type() string { return TypeListOpenFailures }

func (m ListOpenFailuresMessage) Validate() error {
	if m.Limit < 0 {
		return queryValidationError("limit", "limit must be >= 0")
	}
	return nil
}
