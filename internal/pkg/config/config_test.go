package config

import (
	"strings"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("api")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Overlay.Policy != "stable_diff" {
		t.Errorf("expected stable_diff, got %s", cfg.Overlay.Policy)
	}
	if cfg.Telemetry.ServiceName != "api" {
		t.Errorf("expected service name api, got %s", cfg.Telemetry.ServiceName)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("ROUTEMAP_OVERLAY_POLICY", "full_redraw")
	t.Setenv("ROUTEMAP_SOURCE_MAX_CONCURRENCY", "3")

	cfg, err := Load("api")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Overlay.Policy != "full_redraw" {
		t.Errorf("expected full_redraw, got %s", cfg.Overlay.Policy)
	}
	if cfg.Source.MaxConcurrency != 3 {
		t.Errorf("expected 3, got %d", cfg.Source.MaxConcurrency)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := &Config{
		Server:    ServerConfig{Port: 0, ReadTimeout: 1, WriteTimeout: 1},
		Source:    SourceConfig{Kind: "ftp", TimeoutMS: 1, MaxConcurrency: 1},
		NATS:      NATSConfig{URL: "nats://x"},
		Overlay:   OverlayConfig{Policy: "sometimes", EmptyViewport: "none", LineWidth: 1, DefaultProvider: "google"},
		Providers: map[string]ProviderConfig{"here": {Viewport: "zoom"}},
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"server.port", "source.kind", "overlay.policy", "providers.here.viewport"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
}
