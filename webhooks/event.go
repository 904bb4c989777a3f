package webhooks

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/goliatone/go-crm-sync/core"
)

type envelope struct {
	Event       string         `json:"event"`
	EventTime   string         `json:"event_time"`
	TeamSpaceID string         `json:"team_space_id"`
	Entity      map[string]any `json:"entity"`
	Payload     map[string]any `json:"payload"`
}

// DecodeEvent parses one inbound notification body. Only the envelope shape
// is validated here; whether the event is routable is the router's call.
func DecodeEvent(body []byte) (core.WebhookEvent, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return core.WebhookEvent{}, core.NewBadInputError("webhooks: malformed event body", map[string]any{
			"cause": err.Error(),
		})
	}
	event := strings.TrimSpace(env.Event)
	if event == "" {
		return core.WebhookEvent{}, core.NewBadInputError("webhooks: event type is required", nil)
	}
	out := core.WebhookEvent{
		Event:       event,
		TeamSpaceID: strings.TrimSpace(env.TeamSpaceID),
		Entity:      core.Record(env.Entity),
		Payload:     core.Record(env.Payload),
	}
	if raw := strings.TrimSpace(env.EventTime); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return core.WebhookEvent{}, core.NewBadInputError("webhooks: malformed event_time", map[string]any{
				"event_time": raw,
			})
		}
		out.EventTime = ts
	}
	return out, nil
}

// EntityFromEvent extracts the entity segment of a dotted event type, so
// "opportunity.updated" routes to the opportunity strategy even when the
// payload is untagged.
func EntityFromEvent(event string) string {
	event = strings.TrimSpace(strings.ToLower(event))
	if idx := strings.IndexByte(event, '.'); idx > 0 {
		return event[:idx]
	}
	return event
}
