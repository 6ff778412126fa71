package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigSkipSet(t *testing.T) {
	cfg := DefaultConfig()
	skips := cfg.SkipMap()
	if len(skips) != 7 {
		t.Fatalf("got %d default skips, want 7", len(skips))
	}
	if reason, ok := skips[0x04002088]; !ok || reason == "" {
		t.Fatalf("expected a reason for the GPIO skip address, got %q (present=%v)", reason, ok)
	}
	if cfg.AddressSanityCeiling != 0x05000000 {
		t.Fatalf("AddressSanityCeiling = %#x, want 0x05000000", cfg.AddressSanityCeiling)
	}
	if cfg.FlashBoundary != 0x00200000 {
		t.Fatalf("FlashBoundary = %#x, want 0x00200000", cfg.FlashBoundary)
	}
}

func TestLoadOverridesWithoutLosingDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "target.yaml")
	if err := os.WriteFile(path, []byte("debug: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Debug {
		t.Fatal("expected debug override to take effect")
	}
	if len(cfg.Skips) != 7 {
		t.Fatalf("expected default skip set to survive a partial override, got %d entries", len(cfg.Skips))
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/target.yaml"); err == nil {
		t.Fatal("expected an error loading a missing file")
	}
}
