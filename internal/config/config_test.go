package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestLoad_MissingFileYieldsDefaults tests that an absent config file is
// tolerated
func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load of missing file should not error: %v", err)
	}

	def := Default()
	if cfg.Name != def.Name {
		t.Errorf("Expected default name %q, got %q", def.Name, cfg.Name)
	}
	if cfg.Reflection.LedgerCapacity != 50 {
		t.Errorf("Expected default ledger capacity 50, got %d", cfg.Reflection.LedgerCapacity)
	}
}

// TestLoad_PartialFileFillsDefaults tests that unset fields get defaults
func TestLoad_PartialFileFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	partial := `name: mysession
reflection:
  ledger_capacity: 10
`
	if err := os.WriteFile(path, []byte(partial), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Name != "mysession" {
		t.Errorf("Expected configured name, got %q", cfg.Name)
	}
	if cfg.Reflection.LedgerCapacity != 10 {
		t.Errorf("Expected configured capacity 10, got %d", cfg.Reflection.LedgerCapacity)
	}
	if cfg.Reflection.SynthesisEvery != 5 {
		t.Errorf("Expected default synthesis cadence 5, got %d", cfg.Reflection.SynthesisEvery)
	}
	if cfg.Reflection.DebounceWindowMs != 25 {
		t.Errorf("Expected default debounce 25ms, got %d", cfg.Reflection.DebounceWindowMs)
	}
	if cfg.LLM.Model == "" {
		t.Error("Expected default LLM model")
	}
}

// TestSaveLoadRoundTrip tests that Save output reloads identically
func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := Default()
	cfg.Name = "roundtrip"
	cfg.Reflection.SynthesisEvery = 7
	cfg.LLM.Timeout = "45s"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Name != "roundtrip" {
		t.Errorf("Expected saved name, got %q", loaded.Name)
	}
	if loaded.Reflection.SynthesisEvery != 7 {
		t.Errorf("Expected saved cadence 7, got %d", loaded.Reflection.SynthesisEvery)
	}
	if loaded.LLMTimeout() != 45*time.Second {
		t.Errorf("Expected 45s timeout, got %v", loaded.LLMTimeout())
	}
}

// TestReflectionConfig_Durations tests the millisecond duration helpers
func TestReflectionConfig_Durations(t *testing.T) {
	cfg := DefaultReflectionConfig()
	if cfg.DebounceWindow() != 25*time.Millisecond {
		t.Errorf("Expected 25ms debounce window, got %v", cfg.DebounceWindow())
	}
	if cfg.ReportSynthesisDelay() != 2*time.Second {
		t.Errorf("Expected 2s report synthesis delay, got %v", cfg.ReportSynthesisDelay())
	}
}
