package sqlstore

import (
	"encoding/json"
	"time"

	"github.com/goliatone/go-oidc-store/core"
	"github.com/uptrace/bun"
)

// entityRecord is the single-table representation of every OIDC entity kind.
// The payload stays opaque JSON; user_code and grant_id are extracted into
// columns so the secondary lookup and the cascade delete stay single
// statements.
type entityRecord struct {
	bun.BaseModel `bun:"table:oidc_entities,alias:oe"`

	ID        string          `bun:"id,pk"`
	Kind      string          `bun:"kind,notnull"`
	EntityKey string          `bun:"entity_key,notnull"`
	Payload   json.RawMessage `bun:"payload,type:jsonb,notnull"`
	UserCode  *string         `bun:"user_code"`
	GrantID   *string         `bun:"grant_id"`
	ExpiresAt *time.Time      `bun:"expires_at,nullzero"`
	CreatedAt time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time       `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *entityRecord) toDomain() (core.Entity, error) {
	if r == nil {
		return core.Entity{}, nil
	}
	var payload core.Payload
	if len(r.Payload) > 0 {
		if err := json.Unmarshal(r.Payload, &payload); err != nil {
			return core.Entity{}, err
		}
	}
	return core.Entity{
		Kind:      core.Kind(r.Kind),
		Key:       r.EntityKey,
		Payload:   payload,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
		ExpiresAt: r.ExpiresAt,
	}, nil
}

func (r *entityRecord) applyPayload(payload core.Payload) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	r.Payload = encoded
	r.UserCode = payload.UserCode
	if grantID := payload.GrantReference(); grantID != "" {
		r.GrantID = &grantID
	} else {
		r.GrantID = nil
	}
	return nil
}
