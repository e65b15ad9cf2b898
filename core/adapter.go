package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// AdapterFactory hands out one Adapter per entity kind, each a strategy
// object that localizes the kind's key-shape knowledge. The factory memoizes
// adapters so the provider library can request them per operation without
// cost.
type AdapterFactory struct {
	engine       StorageEngine
	config       Config
	logger       Logger
	errorFactory ErrorFactory
	errorMapper  ErrorMapper

	mu       sync.Mutex
	adapters map[Kind]Adapter
}

// FactoryOption customizes an AdapterFactory.
type FactoryOption func(*AdapterFactory)

// WithLogger overrides the factory logger.
func WithLogger(logger Logger) FactoryOption {
	return func(f *AdapterFactory) {
		f.logger = logger
	}
}

// WithLoggerProvider resolves the factory logger from a named provider.
func WithLoggerProvider(provider LoggerProvider) FactoryOption {
	return func(f *AdapterFactory) {
		_, f.logger = glog.Resolve("oidc-store", provider, f.logger)
	}
}

// WithConfig supplies the per-kind default lifetimes and sweep interval. An
// upsert without an explicit expiry falls back to the config's TTL for the
// kind.
func WithConfig(cfg Config) FactoryOption {
	return func(f *AdapterFactory) {
		f.config = cfg
	}
}

// WithErrorFactory overrides how the factory builds its own categorized
// errors (misconfiguration, unknown kinds).
func WithErrorFactory(factory ErrorFactory) FactoryOption {
	return func(f *AdapterFactory) {
		if factory != nil {
			f.errorFactory = factory
		}
	}
}

// WithErrorMapper overrides the error normalization applied to engine
// failures before they propagate to the provider library.
func WithErrorMapper(mapper ErrorMapper) FactoryOption {
	return func(f *AdapterFactory) {
		f.errorMapper = mapper
	}
}

// NewAdapterFactory builds a factory over the given engine. The engine is the
// only required collaborator; construct it explicitly and tear it down when
// the provider shuts down, there is no implicit shared handle.
func NewAdapterFactory(engine StorageEngine, opts ...FactoryOption) (*AdapterFactory, error) {
	if engine == nil {
		return nil, fmt.Errorf("core: storage engine is required")
	}
	_, logger := glog.Resolve("oidc-store", nil, nil)
	factory := &AdapterFactory{
		engine:       engine,
		logger:       logger,
		errorFactory: defaultErrorFactory,
		errorMapper:  storeErrorMapper,
		adapters:     make(map[Kind]Adapter, len(Kinds())),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(factory)
	}
	return factory, nil
}

// Adapter returns the lifecycle adapter bound to the named kind. An unknown
// name is a wiring defect and surfaces as a misconfiguration error, never a
// protocol condition.
func (f *AdapterFactory) Adapter(kind string) (Adapter, error) {
	if f == nil || f.engine == nil {
		return nil, misconfigurationError("core: adapter factory is not configured")
	}
	parsed, err := ParseKind(kind)
	if err != nil {
		return nil, f.newMisconfiguration(fmt.Sprintf("core: no adapter for kind %q", kind))
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if adapter, ok := f.adapters[parsed]; ok {
		return adapter, nil
	}
	adapter := f.buildAdapter(parsed)
	f.adapters[parsed] = adapter
	return adapter, nil
}

// Engine exposes the underlying storage engine for lifecycle management
// (sweeping, shutdown).
func (f *AdapterFactory) Engine() StorageEngine {
	if f == nil {
		return nil
	}
	return f.engine
}

// Config returns the configuration the factory was built with. Hosts use it
// to size companion pieces, the sweep interval in particular.
func (f *AdapterFactory) Config() Config {
	if f == nil {
		return Config{}
	}
	return f.config
}

func (f *AdapterFactory) newMisconfiguration(message string) error {
	if f != nil && f.errorFactory != nil {
		return ensureStoreErrorEnvelope(f.errorFactory(message, goerrors.CategoryOperation))
	}
	return misconfigurationError(message)
}

func (f *AdapterFactory) buildAdapter(kind Kind) Adapter {
	base := baseAdapter{
		kind:        kind,
		desc:        kind.descriptor(),
		defaultTTL:  f.config.TTLFor(kind),
		engine:      f.engine,
		logger:      f.logger,
		errorMapper: f.errorMapper,
	}
	switch kind {
	case KindAuthorizationCode:
		return &authorizationCodeAdapter{base}
	case KindDeviceCode:
		return &deviceCodeAdapter{base}
	case KindGrant:
		return &grantAdapter{base}
	case KindAccessToken, KindRefreshToken:
		return &tokenAdapter{base}
	default:
		return &base
	}
}

// baseAdapter implements the uniform parts of the Adapter contract. Kind
// strategies embed it and override only the operations that are meaningful
// for their kind; everything else stays a neutral no-op so the provider
// library can probe kinds generically.
type baseAdapter struct {
	kind        Kind
	desc        kindDescriptor
	defaultTTL  time.Duration
	engine      StorageEngine
	logger      Logger
	errorMapper ErrorMapper
}

var _ Adapter = (*baseAdapter)(nil)

func (a *baseAdapter) Upsert(ctx context.Context, id string, payload Payload, expiresIn time.Duration) (Entity, error) {
	if strings.TrimSpace(id) == "" {
		return Entity{}, fmt.Errorf("%w: %s id is required", ErrInvalidEntityID, a.kind)
	}
	if expiresIn <= 0 {
		expiresIn = a.defaultTTL
	}
	entity, err := a.engine.Merge(ctx, a.kind, id, payload, expiresIn)
	if err != nil {
		return Entity{}, a.fail(err, "upsert", id)
	}
	return entity, nil
}

func (a *baseAdapter) Find(ctx context.Context, id string) (Entity, bool, error) {
	if strings.TrimSpace(id) == "" {
		return Entity{}, false, nil
	}
	entity, found, err := a.engine.Get(ctx, a.kind, id)
	if err != nil {
		return Entity{}, false, a.fail(err, "find", id)
	}
	return entity, found, nil
}

func (a *baseAdapter) FindByUID(ctx context.Context, uid string) (Entity, bool, error) {
	if !a.desc.uidAddressable {
		return Entity{}, false, nil
	}
	// Session and Interaction records are keyed by uid, so this is a point
	// lookup, not a secondary-index scan.
	return a.Find(ctx, uid)
}

func (a *baseAdapter) FindByUserCode(ctx context.Context, _ string) (Entity, bool, error) {
	return Entity{}, false, nil
}

func (a *baseAdapter) FindByUIDAndUserCode(ctx context.Context, _, _ string) (Entity, bool, error) {
	return Entity{}, false, nil
}

func (a *baseAdapter) Destroy(ctx context.Context, id string) error {
	if !a.desc.destroyable {
		return nil
	}
	if strings.TrimSpace(id) == "" {
		return nil
	}
	if err := a.engine.Delete(ctx, a.kind, id); err != nil {
		return a.fail(err, "destroy", id)
	}
	return nil
}

func (a *baseAdapter) Consume(ctx context.Context, _ string) error {
	return nil
}

func (a *baseAdapter) DestroyByGrantID(ctx context.Context, _ string) error {
	return nil
}

func (a *baseAdapter) RevokeByGrantID(ctx context.Context, _ string) (int, error) {
	return 0, nil
}

func (a *baseAdapter) fail(err error, operation, key string) error {
	if a.logger != nil {
		logger := a.logger
		if fieldsLogger, ok := logger.(FieldsLogger); ok {
			logger = fieldsLogger.WithFields(map[string]any{
				"kind":      string(a.kind),
				"operation": operation,
				"key":       key,
			})
		}
		logger.Error("storage operation failed", "error", err.Error())
	}
	wrapped := backendError(err, fmt.Sprintf("core: %s %s failed", a.kind, operation))
	if a.errorMapper != nil {
		return a.errorMapper(wrapped)
	}
	return wrapped
}

// authorizationCodeAdapter adds the consume-once boundary. Consume removes
// the code outright, which makes a second consume a no-op and guarantees no
// later lookup can observe the pre-consumption state.
type authorizationCodeAdapter struct {
	baseAdapter
}

func (a *authorizationCodeAdapter) Consume(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return nil
	}
	if err := a.engine.Delete(ctx, a.kind, id); err != nil {
		return a.fail(err, "consume", id)
	}
	return nil
}

// deviceCodeAdapter adds the dual lookup shape: by device code (primary key)
// and by the user-facing code entered on a second device.
type deviceCodeAdapter struct {
	baseAdapter
}

func (a *deviceCodeAdapter) FindByUserCode(ctx context.Context, userCode string) (Entity, bool, error) {
	if strings.TrimSpace(userCode) == "" {
		return Entity{}, false, nil
	}
	entity, found, err := a.engine.GetByIndex(ctx, a.kind, IndexUserCode, userCode)
	if err != nil {
		return Entity{}, false, a.fail(err, "find_by_user_code", userCode)
	}
	return entity, found, nil
}

func (a *deviceCodeAdapter) FindByUIDAndUserCode(ctx context.Context, uid, userCode string) (Entity, bool, error) {
	entity, found, err := a.Find(ctx, uid)
	if err != nil || !found {
		return Entity{}, false, err
	}
	if entity.Payload.UserCode == nil || *entity.Payload.UserCode != userCode {
		return Entity{}, false, nil
	}
	return entity, true, nil
}

// grantAdapter destroys the grant record itself; token cascade is the token
// adapters' RevokeByGrantID.
type grantAdapter struct {
	baseAdapter
}

func (a *grantAdapter) DestroyByGrantID(ctx context.Context, grantID string) error {
	return a.Destroy(ctx, grantID)
}

// tokenAdapter serves AccessToken and RefreshToken: both carry a grant_id
// reference and revoke in bulk when the grant is destroyed.
type tokenAdapter struct {
	baseAdapter
}

func (a *tokenAdapter) RevokeByGrantID(ctx context.Context, grantID string) (int, error) {
	if strings.TrimSpace(grantID) == "" {
		return 0, nil
	}
	removed, err := a.engine.DeleteWhere(ctx, a.kind, IndexGrantID, grantID)
	if err != nil {
		return 0, a.fail(err, "revoke_by_grant_id", grantID)
	}
	if a.logger != nil && removed > 0 {
		a.logger.Info("revoked tokens for grant",
			"kind", string(a.kind), "grant_id", grantID, "count", removed)
	}
	return removed, nil
}
