package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "novelbind.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.MaxRetries != 3 {
		t.Errorf("Expected 3 retries, got %d", cfg.MaxRetries)
	}
	if cfg.Timeout.Duration != 30*time.Second {
		t.Errorf("Expected 30s timeout, got %s", cfg.Timeout)
	}
	if cfg.CheckpointInterval != 5 {
		t.Errorf("Expected checkpoint interval 5, got %d", cfg.CheckpointInterval)
	}
	if cfg.MaxConsecutiveFailures != 2 {
		t.Errorf("Expected 2 consecutive failures, got %d", cfg.MaxConsecutiveFailures)
	}
	if cfg.Selectors.Body == "" {
		t.Error("Expected default body selector")
	}
	if cfg.NextURLPattern == "" {
		t.Error("Expected default next URL pattern")
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
start_urls:
  - https://example.com/novel/chapter-1
title: My Novel
max_chapters: 50
timeout: 10s
delay_min: 0.5
delay_max: 2
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Title != "My Novel" {
		t.Errorf("Expected overridden title, got %s", cfg.Title)
	}
	if cfg.MaxChapters != 50 {
		t.Errorf("Expected 50 chapters, got %d", cfg.MaxChapters)
	}
	if cfg.Timeout.Duration != 10*time.Second {
		t.Errorf("Expected 10s timeout, got %s", cfg.Timeout)
	}
	if cfg.DelayMin.Duration != 500*time.Millisecond {
		t.Errorf("Expected 0.5s delay min, got %s", cfg.DelayMin)
	}
	if cfg.DelayMax.Duration != 2*time.Second {
		t.Errorf("Expected 2s delay max, got %s", cfg.DelayMax)
	}

	// Unset keys keep their defaults.
	if cfg.MaxRetries != 3 {
		t.Errorf("Expected default retries, got %d", cfg.MaxRetries)
	}
	if cfg.Author != "Unknown" {
		t.Errorf("Expected default author, got %s", cfg.Author)
	}
	if cfg.Selectors.Body != "div.chapter-body" {
		t.Errorf("Expected default body selector, got %s", cfg.Selectors.Body)
	}
}

func TestLoadNormalizes(t *testing.T) {
	path := writeConfig(t, `
start_urls:
  - https://example.com/novel/chapter-1
max_retries: 0
delay_min: 3
delay_max: 1
language: ""
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.MaxRetries != 3 {
		t.Errorf("Expected retries clamped to default, got %d", cfg.MaxRetries)
	}
	if cfg.DelayMax.Duration != cfg.DelayMin.Duration {
		t.Errorf("Expected delay max raised to min, got %s < %s", cfg.DelayMax, cfg.DelayMin)
	}
	if cfg.Language != "en" {
		t.Errorf("Expected language fallback, got %q", cfg.Language)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Expected error for missing config file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "title: [unclosed")
	_, err := Load(path)
	if err == nil {
		t.Fatal("Expected error for invalid YAML")
	}
}

func TestSaveRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "novelbind.yaml")
	cfg := Default()
	cfg.StartURLs = []string{"https://example.com/novel/chapter-1"}
	cfg.Timeout = DurationFrom(45 * time.Second)

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Timeout.Duration != 45*time.Second {
		t.Errorf("Expected 45s timeout after roundtrip, got %s", loaded.Timeout)
	}
	if len(loaded.StartURLs) != 1 {
		t.Errorf("Expected 1 start URL, got %d", len(loaded.StartURLs))
	}
}

func TestSeeds(t *testing.T) {
	seedFile := filepath.Join(t.TempDir(), "seeds.txt")
	content := "# comment\nhttps://example.com/novel/chapter-10\n\nhttps://example.com/novel/chapter-20\n"
	if err := os.WriteFile(seedFile, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write seed file: %v", err)
	}

	cfg := Default()
	cfg.StartURLs = []string{"https://example.com/novel/chapter-1"}
	cfg.SeedFile = seedFile

	seeds, err := cfg.Seeds()
	if err != nil {
		t.Fatalf("Seeds failed: %v", err)
	}
	if len(seeds) != 3 {
		t.Fatalf("Expected 3 seeds, got %d: %v", len(seeds), seeds)
	}
	if seeds[0] != "https://example.com/novel/chapter-1" {
		t.Errorf("Start URLs must come first, got %s", seeds[0])
	}
	if seeds[1] != "https://example.com/novel/chapter-10" {
		t.Errorf("Seed file order not preserved: %v", seeds)
	}
}

func TestSeedsEmpty(t *testing.T) {
	cfg := Default()
	if _, err := cfg.Seeds(); err == nil {
		t.Fatal("Expected error when no seeds configured")
	}
}

func TestDurationUnmarshalString(t *testing.T) {
	path := writeConfig(t, "timeout: 1m30s")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Timeout.Duration != 90*time.Second {
		t.Errorf("Expected 90s, got %s", cfg.Timeout)
	}
}

func TestDurationUnmarshalInvalid(t *testing.T) {
	path := writeConfig(t, "timeout: fast")
	if _, err := Load(path); err == nil {
		t.Fatal("Expected error for unparseable duration")
	}
}
