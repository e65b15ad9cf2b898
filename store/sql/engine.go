package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-oidc-store/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Engine is the bun-backed StorageEngine. Every read filters expired rows in
// SQL so a lookup past TTL behaves exactly like a lookup after delete, and
// every merge runs in a transaction so a partial payload never races another
// writer field-by-field.
type Engine struct {
	db   *bun.DB
	repo repository.Repository[*entityRecord]
}

var _ core.StorageEngine = (*Engine)(nil)

func (e *Engine) Put(ctx context.Context, kind core.Kind, key string, payload core.Payload, ttl time.Duration) (core.Entity, error) {
	if err := e.ready(); err != nil {
		return core.Entity{}, err
	}
	if err := validateKindKey(kind, key); err != nil {
		return core.Entity{}, err
	}

	now := time.Now().UTC()
	var out core.Entity
	err := e.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, err := e.selectForUpdate(ctx, tx, kind, key, now)
		if err != nil {
			return err
		}

		record := &entityRecord{
			ID:        uuid.NewString(),
			Kind:      string(kind),
			EntityKey: key,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if existing != nil {
			record.ID = existing.ID
			record.CreatedAt = existing.CreatedAt
		}
		if err := record.applyPayload(payload); err != nil {
			return err
		}
		if ttl > 0 {
			expires := now.Add(ttl)
			record.ExpiresAt = &expires
		}

		if err := e.persist(ctx, tx, record, existing != nil); err != nil {
			return err
		}
		out, err = record.toDomain()
		return err
	})
	if err != nil {
		return core.Entity{}, err
	}
	return out, nil
}

func (e *Engine) Merge(ctx context.Context, kind core.Kind, key string, payload core.Payload, ttl time.Duration) (core.Entity, error) {
	if err := e.ready(); err != nil {
		return core.Entity{}, err
	}
	if err := validateKindKey(kind, key); err != nil {
		return core.Entity{}, err
	}

	now := time.Now().UTC()
	var out core.Entity
	err := e.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, err := e.selectForUpdate(ctx, tx, kind, key, now)
		if err != nil {
			return err
		}

		record := &entityRecord{
			ID:        uuid.NewString(),
			Kind:      string(kind),
			EntityKey: key,
			CreatedAt: now,
			UpdatedAt: now,
		}
		merged := payload
		if existing != nil {
			entity, err := existing.toDomain()
			if err != nil {
				return err
			}
			merged = entity.Payload.Merge(payload)
			record.ID = existing.ID
			record.CreatedAt = existing.CreatedAt
			record.ExpiresAt = existing.ExpiresAt
		}
		if err := record.applyPayload(merged); err != nil {
			return err
		}
		if ttl > 0 {
			expires := now.Add(ttl)
			record.ExpiresAt = &expires
		}

		if err := e.persist(ctx, tx, record, existing != nil); err != nil {
			return err
		}
		out, err = record.toDomain()
		return err
	})
	if err != nil {
		return core.Entity{}, err
	}
	return out, nil
}

func (e *Engine) Get(ctx context.Context, kind core.Kind, key string) (core.Entity, bool, error) {
	if err := e.ready(); err != nil {
		return core.Entity{}, false, err
	}
	if err := validateKindKey(kind, key); err != nil {
		return core.Entity{}, false, err
	}

	record := new(entityRecord)
	err := e.db.NewSelect().
		Model(record).
		Where("kind = ?", string(kind)).
		Where("entity_key = ?", key).
		Where("expires_at IS NULL OR expires_at > ?", time.Now().UTC()).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Entity{}, false, nil
	}
	if err != nil {
		return core.Entity{}, false, err
	}
	entity, err := record.toDomain()
	if err != nil {
		return core.Entity{}, false, err
	}
	return entity, true, nil
}

func (e *Engine) GetByIndex(ctx context.Context, kind core.Kind, field core.IndexField, value string) (core.Entity, bool, error) {
	if err := e.ready(); err != nil {
		return core.Entity{}, false, err
	}
	if err := validateKindKey(kind, value); err != nil {
		return core.Entity{}, false, err
	}
	column, err := indexColumn(field)
	if err != nil {
		return core.Entity{}, false, err
	}

	record := new(entityRecord)
	err = e.db.NewSelect().
		Model(record).
		Where("kind = ?", string(kind)).
		Where("? = ?", bun.Ident(column), value).
		Where("expires_at IS NULL OR expires_at > ?", time.Now().UTC()).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Entity{}, false, nil
	}
	if err != nil {
		return core.Entity{}, false, err
	}
	entity, err := record.toDomain()
	if err != nil {
		return core.Entity{}, false, err
	}
	return entity, true, nil
}

func (e *Engine) Delete(ctx context.Context, kind core.Kind, key string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := validateKindKey(kind, key); err != nil {
		return err
	}

	_, err := e.db.NewDelete().
		Model((*entityRecord)(nil)).
		Where("kind = ?", string(kind)).
		Where("entity_key = ?", key).
		Exec(ctx)
	return err
}

func (e *Engine) DeleteWhere(ctx context.Context, kind core.Kind, field core.IndexField, value string) (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if err := validateKindKey(kind, value); err != nil {
		return 0, err
	}
	column, err := indexColumn(field)
	if err != nil {
		return 0, err
	}

	result, err := e.db.NewDelete().
		Model((*entityRecord)(nil)).
		Where("kind = ?", string(kind)).
		Where("? = ?", bun.Ident(column), value).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return rowsAffected(result), nil
}

func (e *Engine) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	result, err := e.db.NewDelete().
		Model((*entityRecord)(nil)).
		Where("expires_at IS NOT NULL").
		Where("expires_at <= ?", now).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return rowsAffected(result), nil
}

func (e *Engine) ready() error {
	if e == nil || e.db == nil || e.repo == nil {
		return fmt.Errorf("sqlstore: engine is not configured")
	}
	return nil
}

// selectForUpdate loads the live row for a merge inside tx. An expired row is
// deleted on the spot so the merge starts from a fresh shell instead of
// resurrecting dead state.
func (e *Engine) selectForUpdate(ctx context.Context, tx bun.Tx, kind core.Kind, key string, now time.Time) (*entityRecord, error) {
	record := new(entityRecord)
	err := tx.NewSelect().
		Model(record).
		Where("kind = ?", string(kind)).
		Where("entity_key = ?", key).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if record.ExpiresAt != nil && !record.ExpiresAt.After(now) {
		if _, err := tx.NewDelete().
			Model((*entityRecord)(nil)).
			Where("id = ?", record.ID).
			Exec(ctx); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return record, nil
}

func (e *Engine) persist(ctx context.Context, tx bun.Tx, record *entityRecord, exists bool) error {
	if exists {
		_, err := tx.NewUpdate().
			Model(record).
			WherePK().
			Exec(ctx)
		return err
	}
	_, err := e.repo.CreateTx(ctx, tx, record)
	return err
}

func indexColumn(field core.IndexField) (string, error) {
	switch field {
	case core.IndexUserCode:
		return "user_code", nil
	case core.IndexGrantID:
		return "grant_id", nil
	default:
		return "", fmt.Errorf("sqlstore: unsupported index field %q", field)
	}
}

func validateKindKey(kind core.Kind, key string) error {
	if _, err := core.ParseKind(string(kind)); err != nil {
		return err
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: empty key", core.ErrInvalidEntityID)
	}
	return nil
}

func rowsAffected(result sql.Result) int {
	if result == nil {
		return 0
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0
	}
	return int(count)
}
