package query

import (
	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-crm-sync/core"
)

var (
	_ gocmd.Querier[QueueCountsMessage, core.QueueCounts]        = (*QueueCountsQuery)(nil)
	_ gocmd.Querier[LoadLinkedEntityMessage, core.LinkedEntity]  = (*LoadLinkedEntityQuery)(nil)
	_ gocmd.Querier[ListOpenFailuresMessage, []core.SyncFailure] = (*ListOpenFailuresQuery)(nil)
)
