package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// IndexField names a secondary lookup column the storage engine maintains
// alongside the primary key.
type IndexField string

const (
	// IndexUserCode backs the device-authorization flow's second lookup
	// shape: a DeviceCode row must be reachable by its user-facing code.
	IndexUserCode IndexField = "user_code"

	// IndexGrantID backs cascade revocation: every access and refresh token
	// row carries the grant it was minted under.
	IndexGrantID IndexField = "grant_id"
)

// StorageEngine is the generic keyed store the model adapters delegate to.
// Keys live in per-kind namespaces; no cross-kind collision handling is
// required or assumed.
//
// Every method treats backend failure as fatal for the operation and returns
// it unwrapped. Engines never retry writes: a retried write against a TTL or
// consume-sensitive record can resurrect logically dead state.
type StorageEngine interface {
	// Put overwrites the record at key. A zero ttl stores the record without
	// expiry. Put is idempotent.
	Put(ctx context.Context, kind Kind, key string, payload Payload, ttl time.Duration) (Entity, error)

	// Merge loads the record at key (creating an empty shell when absent),
	// overlays payload per Payload.Merge, and persists the result. The
	// read-merge-write is atomic with respect to concurrent Merge calls for
	// the same key. A zero ttl preserves the record's current expiry.
	Merge(ctx context.Context, kind Kind, key string, payload Payload, ttl time.Duration) (Entity, error)

	// Get returns the record at key. Expired records behave exactly as if
	// deleted: (zero, false, nil).
	Get(ctx context.Context, kind Kind, key string) (Entity, bool, error)

	// GetByIndex returns the record whose index field equals value. Expiry
	// is honored the same way as Get.
	GetByIndex(ctx context.Context, kind Kind, field IndexField, value string) (Entity, bool, error)

	// Delete removes the record at key. Absent records are a no-op, not an
	// error.
	Delete(ctx context.Context, kind Kind, key string) error

	// DeleteWhere removes every record of the kind whose index field equals
	// value and reports how many were removed. All matches are gone before
	// it returns.
	DeleteWhere(ctx context.Context, kind Kind, field IndexField, value string) (int, error)

	// PurgeExpired physically removes records whose expiry is at or before
	// now. Reads already hide them; this reclaims storage.
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

// Adapter is the uniform lifecycle facade the provider library drives, bound
// to a single entity kind at construction. Operations that are not meaningful
// for the bound kind return neutral results (absent value, no-op) rather than
// errors, because the library probes kinds generically.
type Adapter interface {
	// Upsert locates the record keyed by id, creates a shell when absent,
	// merges payload additively, and persists with the given ttl when
	// expiresIn > 0. When expiresIn is zero the kind's configured default
	// lifetime applies, if one is set. It returns the resulting entity.
	Upsert(ctx context.Context, id string, payload Payload, expiresIn time.Duration) (Entity, error)

	// Find is a point lookup by the kind's primary key. A missing or expired
	// record returns found == false with a nil error.
	Find(ctx context.Context, id string) (Entity, bool, error)

	// FindByUID resolves Session and Interaction records, which are keyed by
	// uid. Every other kind reports not-found unconditionally.
	FindByUID(ctx context.Context, uid string) (Entity, bool, error)

	// FindByUserCode resolves a DeviceCode record through its user code.
	FindByUserCode(ctx context.Context, userCode string) (Entity, bool, error)

	// FindByUIDAndUserCode resolves a DeviceCode record only when both the
	// device code and the user code match the same record.
	FindByUIDAndUserCode(ctx context.Context, uid, userCode string) (Entity, bool, error)

	// Destroy removes the record keyed by id. Absent records are a no-op.
	Destroy(ctx context.Context, id string) error

	// Consume spends an authorization code. After Consume returns, no lookup
	// observes the code and a second Consume is a no-op. This is the only
	// path by which a code transitions from valid to spent.
	Consume(ctx context.Context, id string) error

	// DestroyByGrantID removes the Grant record itself.
	DestroyByGrantID(ctx context.Context, grantID string) error

	// RevokeByGrantID removes every token record referencing grantID and
	// reports how many were removed. The cascade completes before it
	// returns.
	RevokeByGrantID(ctx context.Context, grantID string) (int, error)
}

// Logger is the structured logger contract shared across the module.
type Logger = glog.Logger

// LoggerProvider resolves named loggers.
type LoggerProvider = glog.LoggerProvider

// FieldsLogger is an optional logger capability for field-scoped children.
type FieldsLogger = glog.FieldsLogger
