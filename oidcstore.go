// Package oidcstore persists the entities a demo OIDC provider and relying
// party share: clients, sessions, grants, codes, tokens, device codes, and
// interactions. The core package holds the per-kind lifecycle adapters, the
// store/sql package the bun-backed storage engine, and the flow package the
// relying-party authorization code flow controller. This file re-exports the
// surface most hosts need so they can depend on the module root alone.
package oidcstore

import (
	"time"

	"github.com/goliatone/go-oidc-store/core"
)

type Kind = core.Kind

type Payload = core.Payload

type Entity = core.Entity

type Adapter = core.Adapter
type AdapterFactory = core.AdapterFactory
type StorageEngine = core.StorageEngine
type IndexField = core.IndexField

type Config = core.Config
type TTLConfig = core.TTLConfig

type ExpirySweeper = core.ExpirySweeper

const (
	KindClient            = core.KindClient
	KindSession           = core.KindSession
	KindGrant             = core.KindGrant
	KindAuthorizationCode = core.KindAuthorizationCode
	KindAccessToken       = core.KindAccessToken
	KindRefreshToken      = core.KindRefreshToken
	KindDeviceCode        = core.KindDeviceCode
	KindInteraction       = core.KindInteraction
)

const (
	IndexUserCode = core.IndexUserCode
	IndexGrantID  = core.IndexGrantID
)

var (
	WithConfig         = core.WithConfig
	WithLogger         = core.WithLogger
	WithLoggerProvider = core.WithLoggerProvider
	WithErrorFactory   = core.WithErrorFactory
	WithErrorMapper    = core.WithErrorMapper
)

func Kinds() []Kind {
	return core.Kinds()
}

func ParseKind(name string) (Kind, error) {
	return core.ParseKind(name)
}

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// NewAdapterFactory builds the per-kind adapter factory over the given
// storage engine.
func NewAdapterFactory(engine StorageEngine, opts ...core.FactoryOption) (*AdapterFactory, error) {
	return core.NewAdapterFactory(engine, opts...)
}

// NewMemoryEngine builds the single-process in-memory engine, suitable for
// demos and tests.
func NewMemoryEngine() *core.MemoryEngine {
	return core.NewMemoryEngine()
}

// NewExpirySweeper builds a background purger over the given engine. A
// non-positive interval falls back to the default.
func NewExpirySweeper(engine StorageEngine, interval time.Duration, logger core.Logger) (*ExpirySweeper, error) {
	return core.NewExpirySweeper(engine, interval, logger)
}
