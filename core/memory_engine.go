package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MemoryEngine is an in-process StorageEngine backed by per-kind maps. It is
// the default engine for demos and tests; store/sql provides the durable one.
//
// All operations take a single lock, which makes Merge atomic per call and
// guarantees that once Delete or DeleteWhere returns no later read observes
// the removed records.
type MemoryEngine struct {
	mu       sync.Mutex
	entries  map[Kind]map[string]Entity
	userCode map[string]string
	nowFn    func() time.Time
}

var _ StorageEngine = (*MemoryEngine)(nil)

// NewMemoryEngine constructs an empty engine.
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{
		entries:  make(map[Kind]map[string]Entity, len(Kinds())),
		userCode: map[string]string{},
		nowFn:    func() time.Time { return time.Now().UTC() },
	}
}

func (e *MemoryEngine) Put(_ context.Context, kind Kind, key string, payload Payload, ttl time.Duration) (Entity, error) {
	if err := validateEngineKey(kind, key); err != nil {
		return Entity{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.nowFn()
	entity := Entity{
		Kind:      kind,
		Key:       key,
		Payload:   payload.Clone(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if existing, ok := e.lookupLocked(kind, key, now); ok {
		entity.CreatedAt = existing.CreatedAt
	}
	if ttl > 0 {
		expires := now.Add(ttl)
		entity.ExpiresAt = &expires
	}
	e.storeLocked(entity)
	return entity.Clone(), nil
}

func (e *MemoryEngine) Merge(_ context.Context, kind Kind, key string, payload Payload, ttl time.Duration) (Entity, error) {
	if err := validateEngineKey(kind, key); err != nil {
		return Entity{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.nowFn()
	entity, ok := e.lookupLocked(kind, key, now)
	if !ok {
		entity = Entity{Kind: kind, Key: key, CreatedAt: now}
	}
	entity.Payload = entity.Payload.Merge(payload)
	entity.UpdatedAt = now
	if ttl > 0 {
		expires := now.Add(ttl)
		entity.ExpiresAt = &expires
	}
	e.storeLocked(entity)
	return entity.Clone(), nil
}

func (e *MemoryEngine) Get(_ context.Context, kind Kind, key string) (Entity, bool, error) {
	if err := validateEngineKey(kind, key); err != nil {
		return Entity{}, false, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	entity, ok := e.lookupLocked(kind, key, e.nowFn())
	if !ok {
		return Entity{}, false, nil
	}
	return entity.Clone(), true, nil
}

func (e *MemoryEngine) GetByIndex(_ context.Context, kind Kind, field IndexField, value string) (Entity, bool, error) {
	if err := validateEngineKey(kind, value); err != nil {
		return Entity{}, false, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.nowFn()
	if kind == KindDeviceCode && field == IndexUserCode {
		deviceCode, ok := e.userCode[value]
		if !ok {
			return Entity{}, false, nil
		}
		entity, ok := e.lookupLocked(kind, deviceCode, now)
		if !ok {
			return Entity{}, false, nil
		}
		return entity.Clone(), true, nil
	}

	for _, entity := range e.entries[kind] {
		if entity.Expired(now) {
			continue
		}
		if indexValue(entity, field) == value {
			return entity.Clone(), true, nil
		}
	}
	return Entity{}, false, nil
}

func (e *MemoryEngine) Delete(_ context.Context, kind Kind, key string) error {
	if err := validateEngineKey(kind, key); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.removeLocked(kind, key)
	return nil
}

func (e *MemoryEngine) DeleteWhere(_ context.Context, kind Kind, field IndexField, value string) (int, error) {
	if err := validateEngineKey(kind, value); err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	removed := 0
	for key, entity := range e.entries[kind] {
		if indexValue(entity, field) != value {
			continue
		}
		e.removeLocked(kind, key)
		removed++
	}
	return removed, nil
}

func (e *MemoryEngine) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if now.IsZero() {
		now = e.nowFn()
	}
	purged := 0
	for kind, records := range e.entries {
		for key, entity := range records {
			if entity.Expired(now) {
				e.removeLocked(kind, key)
				purged++
			}
		}
	}
	return purged, nil
}

// lookupLocked honors expiry: a record past its TTL is removed and reported
// absent, exactly as if it had been deleted.
func (e *MemoryEngine) lookupLocked(kind Kind, key string, now time.Time) (Entity, bool) {
	entity, ok := e.entries[kind][key]
	if !ok {
		return Entity{}, false
	}
	if entity.Expired(now) {
		e.removeLocked(kind, key)
		return Entity{}, false
	}
	return entity, true
}

func (e *MemoryEngine) storeLocked(entity Entity) {
	records, ok := e.entries[entity.Kind]
	if !ok {
		records = map[string]Entity{}
		e.entries[entity.Kind] = records
	}

	// A rewrite can change a device code's user code; the prior mapping must
	// go or the old code would still resolve the record.
	if entity.Kind == KindDeviceCode {
		if prior, ok := records[entity.Key]; ok && prior.Payload.UserCode != nil {
			if entity.Payload.UserCode == nil || *prior.Payload.UserCode != *entity.Payload.UserCode {
				delete(e.userCode, *prior.Payload.UserCode)
			}
		}
	}

	records[entity.Key] = entity.Clone()

	if entity.Kind == KindDeviceCode && entity.Payload.UserCode != nil {
		e.userCode[*entity.Payload.UserCode] = entity.Key
	}
}

func (e *MemoryEngine) removeLocked(kind Kind, key string) {
	entity, ok := e.entries[kind][key]
	if !ok {
		return
	}
	delete(e.entries[kind], key)
	if kind == KindDeviceCode && entity.Payload.UserCode != nil {
		delete(e.userCode, *entity.Payload.UserCode)
	}
}

func indexValue(entity Entity, field IndexField) string {
	switch field {
	case IndexUserCode:
		if entity.Payload.UserCode != nil {
			return *entity.Payload.UserCode
		}
	case IndexGrantID:
		return entity.Payload.GrantReference()
	}
	return ""
}

func validateEngineKey(kind Kind, key string) error {
	if _, ok := kindDescriptors[kind]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidEntityID)
	}
	return nil
}
