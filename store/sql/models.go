package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type linkedEntityRecord struct {
	bun.BaseModel `bun:"table:crm_linked_entities,alias:cle"`

	ID              string    `bun:"id,pk"`
	EntityName      string    `bun:"entity_name,notnull"`
	LocalID         string    `bun:"local_id"`
	RemoteReference string    `bun:"remote_reference,notnull"`
	IsValid         *bool     `bun:"is_valid"`
	InvalidReason   string    `bun:"invalid_reason"`
	RevisionSeen    int64     `bun:"revision_seen,notnull"`
	SalesUnitID     string    `bun:"sales_unit_id"`
	CreatedAt       time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt       time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type salesUnitRecord struct {
	bun.BaseModel `bun:"table:crm_sales_units,alias:csu"`

	ID        string    `bun:"id,pk"`
	Name      string    `bun:"name,notnull"`
	Enabled   bool      `bun:"enabled,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type syncFailureRecord struct {
	bun.BaseModel `bun:"table:crm_sync_failures,alias:csf"`

	ID         string         `bun:"id,pk"`
	EntityName string         `bun:"entity_name,notnull"`
	Reference  string         `bun:"reference,notnull"`
	Kind       string         `bun:"kind,notnull"`
	Status     string         `bun:"status,notnull"`
	Message    string         `bun:"message"`
	Metadata   map[string]any `bun:"metadata,type:jsonb,notnull"`
	CreatedAt  time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt  time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type rateLimitStateRecord struct {
	bun.BaseModel `bun:"table:crm_rate_limit_states,alias:crl"`

	ID             string     `bun:"id,pk"`
	Space          string     `bun:"space,notnull"`
	Entity         string     `bun:"entity,notnull"`
	CallLimit      int        `bun:"call_limit,notnull"`
	Remaining      int        `bun:"remaining,notnull"`
	ResetAt        *time.Time `bun:"reset_at,nullzero"`
	RetryAfter     *int       `bun:"retry_after_seconds,nullzero"`
	ThrottledUntil *time.Time `bun:"throttled_until,nullzero"`
	LastStatus     int        `bun:"last_status,notnull"`
	Attempts       int        `bun:"attempts,notnull"`
	UpdatedAt      time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	CreatedAt      time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}
