package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Source.PartitionParam != "map" {
		t.Errorf("expected partition param 'map', got %q", cfg.Source.PartitionParam)
	}
	if cfg.Source.Baseline != "all-maps" {
		t.Errorf("expected baseline 'all-maps', got %q", cfg.Source.Baseline)
	}
	if cfg.Cache.TTL != 5*time.Minute {
		t.Errorf("expected TTL 5m, got %v", cfg.Cache.TTL)
	}
	if cfg.Batch.GroupSize != 5 {
		t.Errorf("expected group size 5, got %d", cfg.Batch.GroupSize)
	}
	if cfg.Debounce.Mutation != 500*time.Millisecond || cfg.Debounce.Navigation != time.Second {
		t.Errorf("unexpected debounce windows %+v", cfg.Debounce)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFrom_NonExistent(t *testing.T) {
	t.Setenv("MAPDIFF_URL", "")
	cfg, err := LoadFrom("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	if cfg.Batch.GroupSize != 5 {
		t.Errorf("expected default config, got group size %d", cfg.Batch.GroupSize)
	}
}

func TestLoadFrom_ValidConfig(t *testing.T) {
	t.Setenv("MAPDIFF_URL", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
source:
  url: https://overwatch.example.com/rates?map=ilios&tier=All
  timeout: 3s
cache:
  ttl: 2m
features:
  diff-badges: false
tags:
  mercy: [dive]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Source.Timeout != 3*time.Second {
		t.Errorf("timeout = %v, want 3s", cfg.Source.Timeout)
	}
	if cfg.Cache.TTL != 2*time.Minute {
		t.Errorf("ttl = %v, want 2m", cfg.Cache.TTL)
	}
	// Unset fields keep their defaults.
	if cfg.Source.PartitionParam != "map" || cfg.Batch.GroupSize != 5 {
		t.Errorf("defaults lost: %+v %+v", cfg.Source, cfg.Batch)
	}

	s := cfg.Settings()
	if s.Enabled(FeatureDiffBadges) {
		t.Error("diff-badges should be disabled")
	}
	if !s.Enabled(FeatureSortControls) {
		t.Error("unset flag should default to enabled")
	}
	if got := s.TagsFor("mercy"); !slices.Equal(got, []string{"dive"}) {
		t.Errorf("mercy tags = %v, want override [dive]", got)
	}
	if got := s.TagsFor("ana"); !slices.Equal(got, DefaultHeroTags["ana"]) {
		t.Errorf("ana tags = %v, want built-in", got)
	}
}

func TestLoadFrom_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("source: [unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadFrom_UnknownFeature(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("features:\n  confetti: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(path); err == nil {
		t.Error("expected error for unknown feature")
	}
}

func TestLoadFrom_EnvOverridesURL(t *testing.T) {
	t.Setenv("MAPDIFF_URL", "https://env.example.com/rates?map=nepal")
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Source.URL != "https://env.example.com/rates?map=nepal" {
		t.Errorf("url = %q", cfg.Source.URL)
	}
}

func TestSaveTo_RoundTrip(t *testing.T) {
	t.Setenv("MAPDIFF_URL", "")
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Source.URL = "https://example.com/rates?map=all-maps"
	cfg.Features[FeatureProgressMarkers] = false
	cfg.Tags["lucio"] = []string{"mobility"}

	if err := SaveTo(cfg, path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}
	got, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if got.Source.URL != cfg.Source.URL {
		t.Errorf("url = %q", got.Source.URL)
	}
	if got.Settings().Enabled(FeatureProgressMarkers) {
		t.Error("progress markers flag lost")
	}
	if got.Debounce.Navigation != time.Second {
		t.Errorf("navigation window = %v", got.Debounce.Navigation)
	}
}

func TestSettings_ZeroValueEnablesEverything(t *testing.T) {
	var s Settings
	for _, f := range Features {
		if !s.Enabled(f) {
			t.Errorf("%s should be enabled by default", f)
		}
	}
	off := s.WithFeature(FeatureAnalysisPanel, false)
	if off.Enabled(FeatureAnalysisPanel) {
		t.Error("WithFeature did not disable")
	}
	if !s.Enabled(FeatureAnalysisPanel) {
		t.Error("WithFeature mutated the receiver")
	}
}

func TestRoleOfAndHeroName(t *testing.T) {
	tests := []struct {
		id, role, name string
	}{
		{"dva", "tank", "D.Va"},
		{"soldier76", "damage", "Soldier: 76"},
		{"ana", "support", "Ana"},
		{"unknown", "", "Unknown"},
	}
	for _, tc := range tests {
		if got := RoleOf(tc.id); got != tc.role {
			t.Errorf("RoleOf(%q) = %q, want %q", tc.id, got, tc.role)
		}
		if got := HeroName(tc.id); got != tc.name {
			t.Errorf("HeroName(%q) = %q, want %q", tc.id, got, tc.name)
		}
	}
}
