package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	opts "github.com/goliatone/go-options"
)

// TTLConfig carries the per-kind lifetimes the provider applies when it does
// not pass an explicit expiry on upsert. Zero values mean "no default TTL".
type TTLConfig struct {
	Session           time.Duration `koanf:"session" mapstructure:"session"`
	AuthorizationCode time.Duration `koanf:"authorization_code" mapstructure:"authorization_code"`
	AccessToken       time.Duration `koanf:"access_token" mapstructure:"access_token"`
	RefreshToken      time.Duration `koanf:"refresh_token" mapstructure:"refresh_token"`
	DeviceCode        time.Duration `koanf:"device_code" mapstructure:"device_code"`
	Interaction       time.Duration `koanf:"interaction" mapstructure:"interaction"`
}

// Config is the module configuration.
type Config struct {
	ServiceName   string        `koanf:"service_name" mapstructure:"service_name"`
	SweepInterval time.Duration `koanf:"sweep_interval" mapstructure:"sweep_interval"`
	TTL           TTLConfig     `koanf:"ttl" mapstructure:"ttl"`
}

// DefaultConfig mirrors the lifetimes a demo provider ships with.
func DefaultConfig() Config {
	return Config{
		ServiceName:   "oidc-store",
		SweepInterval: time.Minute,
		TTL: TTLConfig{
			Session:           24 * time.Hour,
			AuthorizationCode: 10 * time.Minute,
			AccessToken:       time.Hour,
			RefreshToken:      14 * 24 * time.Hour,
			DeviceCode:        10 * time.Minute,
			Interaction:       time.Hour,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.SweepInterval < 0 {
		return fmt.Errorf("core: sweep_interval must not be negative")
	}
	return nil
}

// TTLFor returns the configured default lifetime for a kind.
func (c Config) TTLFor(kind Kind) time.Duration {
	switch kind {
	case KindSession:
		return c.TTL.Session
	case KindAuthorizationCode:
		return c.TTL.AuthorizationCode
	case KindAccessToken:
		return c.TTL.AccessToken
	case KindRefreshToken:
		return c.TTL.RefreshToken
	case KindDeviceCode:
		return c.TTL.DeviceCode
	case KindInteraction:
		return c.TTL.Interaction
	default:
		return 0
	}
}

// ConfigProvider loads configuration on top of supplied defaults.
type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

// RawConfigLoader yields an untyped configuration map from whatever source
// the host application uses.
type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

// CfgxConfigProvider builds a validated Config from a raw loader.
type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// GoOptionsResolver merges defaults, loaded, and runtime configuration as
// layered scopes with increasing precedence.
type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}
	if includeZero || cfg.SweepInterval > 0 {
		layer["sweep_interval"] = cfg.SweepInterval
	}

	ttl := map[string]any{}
	setTTL := func(key string, value time.Duration) {
		if includeZero || value > 0 {
			ttl[key] = value
		}
	}
	setTTL("session", cfg.TTL.Session)
	setTTL("authorization_code", cfg.TTL.AuthorizationCode)
	setTTL("access_token", cfg.TTL.AccessToken)
	setTTL("refresh_token", cfg.TTL.RefreshToken)
	setTTL("device_code", cfg.TTL.DeviceCode)
	setTTL("interaction", cfg.TTL.Interaction)
	if len(ttl) > 0 {
		layer["ttl"] = ttl
	}
	return layer
}
