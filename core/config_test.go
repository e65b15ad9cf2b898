package core

import (
	"context"
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestConfigValidateRejectsEmptyServiceName(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ServiceName = "  "
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected service_name validation failure")
	}
}

func TestConfigTTLFor(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.TTLFor(KindAuthorizationCode) != 10*time.Minute {
		t.Fatalf("unexpected authorization code ttl: %v", cfg.TTLFor(KindAuthorizationCode))
	}
	if cfg.TTLFor(KindClient) != 0 {
		t.Fatalf("clients must not carry a default ttl")
	}
}

func TestCfgxConfigProvider_LoadsOverDefaults(t *testing.T) {
	provider := NewCfgxConfigProvider(staticRawConfigLoader{Values: map[string]any{
		"service_name": "idp-demo",
	}})

	cfg, err := provider.Load(context.Background(), DefaultConfig())
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ServiceName != "idp-demo" {
		t.Fatalf("expected loaded service name, got %q", cfg.ServiceName)
	}
	if cfg.TTL.AccessToken != time.Hour {
		t.Fatalf("expected defaults to backfill ttl values, got %v", cfg.TTL.AccessToken)
	}
}

func TestGoOptionsResolver_RuntimeWins(t *testing.T) {
	defaults := DefaultConfig()
	loaded := Config{ServiceName: "from-config"}
	runtime := Config{ServiceName: "from-runtime"}

	resolved, err := GoOptionsResolver{}.Resolve(defaults, loaded, runtime)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.ServiceName != "from-runtime" {
		t.Fatalf("expected runtime layer precedence, got %q", resolved.ServiceName)
	}
	if resolved.SweepInterval != defaults.SweepInterval {
		t.Fatalf("expected defaults to fill unset fields, got %v", resolved.SweepInterval)
	}
}
