package sqlstore

import (
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-crm-sync/core"
	"github.com/goliatone/go-crm-sync/ratelimit"
)

func (r *linkedEntityRecord) toDomain() core.LinkedEntity {
	if r == nil {
		return core.LinkedEntity{}
	}
	return core.LinkedEntity{
		ID:              r.ID,
		EntityName:      r.EntityName,
		LocalID:         r.LocalID,
		RemoteReference: r.RemoteReference,
		Validity:        core.ValidityFromBool(r.IsValid),
		RevisionSeen:    r.RevisionSeen,
		SalesUnitID:     r.SalesUnitID,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func (r *salesUnitRecord) toDomain() core.SalesUnit {
	if r == nil {
		return core.SalesUnit{}
	}
	return core.SalesUnit{
		ID:      r.ID,
		Name:    r.Name,
		Enabled: r.Enabled,
	}
}

func (r *syncFailureRecord) toDomain() core.SyncFailure {
	if r == nil {
		return core.SyncFailure{}
	}
	return core.SyncFailure{
		ID:         r.ID,
		EntityName: r.EntityName,
		Reference:  r.Reference,
		Kind:       core.SyncFailureKind(r.Kind),
		Status:     core.SyncFailureStatus(r.Status),
		Message:    r.Message,
		Metadata:   copyAnyMap(r.Metadata),
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func (r *rateLimitStateRecord) toDomain() ratelimit.State {
	if r == nil {
		return ratelimit.State{}
	}
	state := ratelimit.State{
		Key:        core.RateLimitKey{Space: r.Space, Entity: r.Entity},
		Limit:      r.CallLimit,
		Remaining:  r.Remaining,
		LastStatus: r.LastStatus,
		Attempts:   r.Attempts,
		UpdatedAt:  r.UpdatedAt,
	}
	state.ResetAt = copyTimePointer(r.ResetAt)
	state.ThrottledUntil = copyTimePointer(r.ThrottledUntil)
	if r.RetryAfter != nil && *r.RetryAfter > 0 {
		value := time.Duration(*r.RetryAfter) * time.Second
		state.RetryAfter = &value
	}
	return state
}

func normalizeRateLimitKey(key core.RateLimitKey) core.RateLimitKey {
	return core.RateLimitKey{
		Space:  strings.TrimSpace(strings.ToLower(key.Space)),
		Entity: strings.TrimSpace(strings.ToLower(key.Entity)),
	}
}

func validateRateLimitKey(key core.RateLimitKey) error {
	if strings.TrimSpace(key.Space) == "" {
		return fmt.Errorf("sqlstore: rate-limit team space is required")
	}
	if strings.TrimSpace(key.Entity) == "" {
		return fmt.Errorf("sqlstore: rate-limit entity is required")
	}
	return nil
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func copyTimePointer(input *time.Time) *time.Time {
	if input == nil {
		return nil
	}
	value := input.UTC()
	return &value
}

func durationToSecondsPointer(input *time.Duration) *int {
	if input == nil || *input <= 0 {
		return nil
	}
	seconds := int(input.Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	return &seconds
}

func isUniqueViolation(err error) bool {
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}
