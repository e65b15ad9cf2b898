package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-oidc-store/core"
	"github.com/uptrace/bun"
)

// EngineFactory wires the bun-backed storage engine. Construct it explicitly
// and pass the engine down; there is no module-level handle.
type EngineFactory struct {
	db     *bun.DB
	engine *Engine
}

func NewEngineFactory() *EngineFactory {
	return &EngineFactory{}
}

func NewEngineFromPersistence(client *persistence.Client) (*Engine, error) {
	factory := NewEngineFactory()
	return factory.BuildEngine(client)
}

func NewEngineFromDB(db *bun.DB) (*Engine, error) {
	factory := NewEngineFactory()
	return factory.BuildEngine(db)
}

func (f *EngineFactory) BuildEngine(persistenceClient any) (*Engine, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: engine factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.engine != nil {
		return f.engine, nil
	}

	repo := repository.NewRepository[*entityRecord](f.db, entityHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid entity repository wiring: %w", err)
		}
	}

	f.engine = &Engine{
		db:   f.db,
		repo: repo,
	}
	return f.engine, nil
}

func (f *EngineFactory) Engine() core.StorageEngine {
	if f == nil || f.engine == nil {
		return nil
	}
	return f.engine
}

func (f *EngineFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
