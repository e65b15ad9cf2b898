package command

import (
	"fmt"
	"strings"
	"time"
)

const (
	TypeRevokeGrant   = "oidc_store.command.grant.revoke"
	TypePurgeExpired  = "oidc_store.command.expired.purge"
	TypeDestroyEntity = "oidc_store.command.entity.destroy"
)

// RevokeGrantMessage asks for a grant and every token minted under it to be
// removed in one operation.
type RevokeGrantMessage struct {
	GrantID string
}

func (RevokeGrantMessage) Type() string { return TypeRevokeGrant }

func (m RevokeGrantMessage) Validate() error {
	if strings.TrimSpace(m.GrantID) == "" {
		return fmt.Errorf("command: grant id is required")
	}
	return nil
}

// PurgeExpiredMessage asks for physical removal of records whose expiry has
// passed. A zero Now purges against the current time.
type PurgeExpiredMessage struct {
	Now time.Time
}

func (PurgeExpiredMessage) Type() string { return TypePurgeExpired }

func (PurgeExpiredMessage) Validate() error { return nil }

// DestroyEntityMessage asks for one record of the named kind to be removed.
type DestroyEntityMessage struct {
	Kind string
	ID   string
}

func (DestroyEntityMessage) Type() string { return TypeDestroyEntity }

func (m DestroyEntityMessage) Validate() error {
	if strings.TrimSpace(m.Kind) == "" {
		return fmt.Errorf("command: entity kind is required")
	}
	if strings.TrimSpace(m.ID) == "" {
		return fmt.Errorf("command: entity id is required")
	}
	return nil
}
