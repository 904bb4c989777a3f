package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[SyncByReferenceMessage]  = (*SyncByReferenceCommand)(nil)
	_ gocmd.Commander[RequestQueueSyncMessage] = (*RequestQueueSyncCommand)(nil)
	_ gocmd.Commander[InvalidateLinkMessage]   = (*InvalidateLinkCommand)(nil)
	_ gocmd.Commander[ResolveFailureMessage]   = (*ResolveFailureCommand)(nil)
)
