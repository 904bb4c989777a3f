package command

import "strings"

const (
	TypeSyncByReference  = "crm.sync.command.sync_by_reference"
	TypeRequestQueueSync = "crm.sync.command.queue.request"
	TypeInvalidateLink   = "crm.sync.command.link.invalidate"
	TypeResolveFailure   = "crm.sync.command.failure.resolve"
)

// SyncByReferenceMessage requests an inline pull of one remote record.
type SyncByReferenceMessage struct {
	EntityName string
	Reference  string
}

func (SyncByReferenceMessage) Type() string { return TypeSyncByReference }

func (m SyncByReferenceMessage) Validate() error {
	if strings.TrimSpace(m.EntityName) == "" {
		return commandValidationError("entity_name", "entity name is required")
	}
	if strings.TrimSpace(m.Reference) == "" {
		return commandValidationError("reference", "remote reference is required")
	}
	return nil
}

// RequestQueueSyncMessage asks for an async sync run in one direction,
// optionally narrowed to a single entity type.
type RequestQueueSyncMessage struct {
	Direction  string
	EntityName string
}

func (RequestQueueSyncMessage) Type() string { return TypeRequestQueueSync }

func (m RequestQueueSyncMessage) Validate() error {
	switch strings.ToLower(strings.TrimSpace(m.Direction)) {
	case "pull", "push":
		return nil
	default:
		return commandValidationError("direction", "direction must be pull or push")
	}
}

// InvalidateLinkMessage marks a stored correlation as no longer trusted.
type InvalidateLinkMessage struct {
	EntityName string
	Reference  string
	Reason     string
}

func (InvalidateLinkMessage) Type() string { return TypeInvalidateLink }

func (m InvalidateLinkMessage) Validate() error {
	if strings.TrimSpace(m.EntityName) == "" {
		return commandValidationError("entity_name", "entity name is required")
	}
	if strings.TrimSpace(m.Reference) == "" {
		return commandValidationError("reference", "remote reference is required")
	}
	return nil
}

// ResolveFailureMessage closes an operator backlog entry.
type ResolveFailureMessage struct {
	FailureID string
}

func (ResolveFailureMessage) Type() string { return TypeResolveFailure }

func (m ResolveFailureMessage) Validate() error {
	if strings.TrimSpace(m.FailureID) == "" {
		return commandValidationError("failure_id", "failure id is required")
	}
	return nil
}
