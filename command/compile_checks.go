package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[RevokeGrantMessage]   = (*RevokeGrantCommand)(nil)
	_ gocmd.Commander[PurgeExpiredMessage]  = (*PurgeExpiredCommand)(nil)
	_ gocmd.Commander[DestroyEntityMessage] = (*DestroyEntityCommand)(nil)
)
