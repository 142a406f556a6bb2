package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.SkipItemID != "hamd17" || cfg.SkipThreshold != 8 {
		t.Errorf("skip rule = %s/%d, want hamd17/8", cfg.SkipItemID, cfg.SkipThreshold)
	}
	if cfg.SortItems || cfg.RequireAgentID {
		t.Error("boolean options default to off")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("MINDSCALE_PORT", "9000")
	t.Setenv("MINDSCALE_SKIP_THRESHOLD", "10")
	t.Setenv("MINDSCALE_SORT_ITEMS", "true")
	t.Setenv("MINDSCALE_REQUIRE_AGENT_ID", "yes")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9000" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.SkipThreshold != 10 {
		t.Errorf("SkipThreshold = %d", cfg.SkipThreshold)
	}
	if !cfg.SortItems || !cfg.RequireAgentID {
		t.Error("boolean env values not applied")
	}
}

func TestLoadRejectsNegativeThreshold(t *testing.T) {
	t.Setenv("MINDSCALE_SKIP_THRESHOLD", "-1")
	if _, err := Load(); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestGetEnvIntMalformed(t *testing.T) {
	t.Setenv("MINDSCALE_SKIP_THRESHOLD", "not-a-number")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SkipThreshold != 8 {
		t.Errorf("SkipThreshold = %d, want fallback 8", cfg.SkipThreshold)
	}
}
