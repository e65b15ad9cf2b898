package command

import (
	"context"
	"time"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-oidc-store/core"
)

// AdapterSource hands out per-kind lifecycle adapters. *core.AdapterFactory
// satisfies it.
type AdapterSource interface {
	Adapter(kind string) (core.Adapter, error)
}

// RevokeGrantResult reports the outcome of a grant revocation cascade.
type RevokeGrantResult struct {
	GrantID       string
	TokensRevoked int
}

// PurgeExpiredResult reports how many expired records were removed.
type PurgeExpiredResult struct {
	Purged int
}

// RevokeGrantCommand removes the grant record and then every access and
// refresh token referencing it. The cascade completes before the command
// returns; nothing keyed to the grant survives.
type RevokeGrantCommand struct {
	adapters AdapterSource
}

func NewRevokeGrantCommand(adapters AdapterSource) *RevokeGrantCommand {
	return &RevokeGrantCommand{adapters: adapters}
}

func (c *RevokeGrantCommand) Execute(ctx context.Context, msg RevokeGrantMessage) error {
	if c == nil || c.adapters == nil {
		return commandDependencyError("command: adapter source is required")
	}

	grants, err := c.adapters.Adapter(string(core.KindGrant))
	if err != nil {
		return err
	}
	if err := grants.DestroyByGrantID(ctx, msg.GrantID); err != nil {
		return err
	}

	revoked := 0
	for _, kind := range []core.Kind{core.KindAccessToken, core.KindRefreshToken} {
		adapter, err := c.adapters.Adapter(string(kind))
		if err != nil {
			return err
		}
		count, err := adapter.RevokeByGrantID(ctx, msg.GrantID)
		if err != nil {
			return err
		}
		revoked += count
	}

	storeResult(ctx, RevokeGrantResult{GrantID: msg.GrantID, TokensRevoked: revoked})
	return nil
}

// PurgeExpiredCommand physically reclaims expired records. Reads already hide
// them, so running it is purely a storage concern.
type PurgeExpiredCommand struct {
	engine core.StorageEngine
}

func NewPurgeExpiredCommand(engine core.StorageEngine) *PurgeExpiredCommand {
	return &PurgeExpiredCommand{engine: engine}
}

func (c *PurgeExpiredCommand) Execute(ctx context.Context, msg PurgeExpiredMessage) error {
	if c == nil || c.engine == nil {
		return commandDependencyError("command: storage engine is required")
	}
	now := msg.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	purged, err := c.engine.PurgeExpired(ctx, now)
	if err != nil {
		return err
	}
	storeResult(ctx, PurgeExpiredResult{Purged: purged})
	return nil
}

// DestroyEntityCommand removes one record through its kind's adapter, so the
// kind's destroy semantics apply (a Client destroy stays a no-op).
type DestroyEntityCommand struct {
	adapters AdapterSource
}

func NewDestroyEntityCommand(adapters AdapterSource) *DestroyEntityCommand {
	return &DestroyEntityCommand{adapters: adapters}
}

func (c *DestroyEntityCommand) Execute(ctx context.Context, msg DestroyEntityMessage) error {
	if c == nil || c.adapters == nil {
		return commandDependencyError("command: adapter source is required")
	}
	adapter, err := c.adapters.Adapter(msg.Kind)
	if err != nil {
		return err
	}
	return adapter.Destroy(ctx, msg.ID)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
