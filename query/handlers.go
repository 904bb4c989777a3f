package query

import (
	"context"

	"github.com/goliatone/go-crm-sync/core"
)

type QueueReader interface {
	Counts(ctx context.Context) (core.QueueCounts, error)
}

type LinkReader interface {
	GetByReference(ctx context.Context, entityName string, reference string) (core.LinkedEntity, error)
}

type FailureReader interface {
	ListOpen(ctx context.Context, entityName string, limit int) ([]core.SyncFailure, error)
}

type QueueCountsQuery struct {
	reader QueueReader
}

func NewQueueCountsQuery(reader QueueReader) *QueueCountsQuery {
	return &QueueCountsQuery{reader: reader}
}

func (q *QueueCountsQuery) Query(ctx context.Context, _ QueueCountsMessage) (core.QueueCounts, error) {
	if q == nil || q.reader == nil {
		return core.QueueCounts{}, queryDependencyError("query: queue reader is required")
	}
	return q.reader.Counts(ctx)
}

type LoadLinkedEntityQuery struct {
	reader LinkReader
}

func NewLoadLinkedEntityQuery(reader LinkReader) *LoadLinkedEntityQuery {
	return &LoadLinkedEntityQuery{reader: reader}
}

func (q *LoadLinkedEntityQuery) Query(ctx context.Context, msg LoadLinkedEntityMessage) (core.LinkedEntity, error) {
	if q == nil || q.reader == nil {
		return core.LinkedEntity{}, queryDependencyError("query: link reader is required")
	}
	return q.reader.GetByReference(ctx, msg.EntityName, msg.Reference)
}

type ListOpenFailuresQuery struct {
	reader FailureReader
}

func NewListOpenFailuresQuery(reader FailureReader) *ListOpenFailuresQuery {
	return &ListOpenFailuresQuery{reader: reader}
}

func (q *ListOpenFailuresQuery) Query(ctx context.Context, msg ListOpenFailuresMessage) ([]core.SyncFailure, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: failure reader is required")
	}
	if msg.Limit < 0 {
		return nil, queryInvalidInputError("query: limit must be >= 0")
	}
	return q.reader.ListOpen(ctx, msg.EntityName, msg.Limit)
}
