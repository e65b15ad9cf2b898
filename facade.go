package oidcstore

import (
	"fmt"

	storecommand "github.com/goliatone/go-oidc-store/command"
	"github.com/goliatone/go-oidc-store/core"
)

// Commands bundles the module's lifecycle command handlers, constructed over
// one adapter factory so hosts wire a single dependency.
type Commands struct {
	RevokeGrant   *storecommand.RevokeGrantCommand
	PurgeExpired  *storecommand.PurgeExpiredCommand
	DestroyEntity *storecommand.DestroyEntityCommand
}

// Facade is the assembled module surface: the per-kind adapters, the command
// handlers that operate across kinds, and the expiry sweeper sized from the
// factory's configuration.
type Facade struct {
	factory  *core.AdapterFactory
	commands Commands
	sweeper  *core.ExpirySweeper
}

// FacadeOption customizes a Facade.
type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	logger core.Logger
}

// WithFacadeLogger overrides the logger handed to the facade's sweeper.
func WithFacadeLogger(logger core.Logger) FacadeOption {
	return func(options *facadeOptions) {
		options.logger = logger
	}
}

// NewFacade builds the facade over an adapter factory. The factory's engine
// backs the purge command, and its configured sweep interval sizes the expiry
// sweeper; starting the sweeper remains the host's call.
func NewFacade(factory *core.AdapterFactory, opts ...FacadeOption) (*Facade, error) {
	if factory == nil {
		return nil, fmt.Errorf("oidcstore: adapter factory is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	sweeper, err := core.NewExpirySweeper(factory.Engine(), factory.Config().SweepInterval, cfg.logger)
	if err != nil {
		return nil, err
	}

	return &Facade{
		factory: factory,
		commands: Commands{
			RevokeGrant:   storecommand.NewRevokeGrantCommand(factory),
			PurgeExpired:  storecommand.NewPurgeExpiredCommand(factory.Engine()),
			DestroyEntity: storecommand.NewDestroyEntityCommand(factory),
		},
		sweeper: sweeper,
	}, nil
}

// Adapter returns the lifecycle adapter bound to the named kind.
func (f *Facade) Adapter(kind string) (Adapter, error) {
	if f == nil || f.factory == nil {
		return nil, fmt.Errorf("oidcstore: facade is not configured")
	}
	return f.factory.Adapter(kind)
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

// Sweeper returns the expiry sweeper built from the factory's sweep
// interval.
func (f *Facade) Sweeper() *core.ExpirySweeper {
	if f == nil {
		return nil
	}
	return f.sweeper
}

func (f *Facade) Factory() *core.AdapterFactory {
	if f == nil {
		return nil
	}
	return f.factory
}
