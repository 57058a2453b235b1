package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	p := writeTemp(t, "cfg.yaml", `
addr: ":9090"
cache_dir: "/tmp/validd"
models:
  - id: tinyllama
    path: /models/tiny.gguf
    memory_requirement_mb: 1536
    context_size: 2048
    threads: 2
    batch_size: 64
affinity:
  number: tinyllama
fallback: [tinyllama]
cache_lookup_threshold: 0.95
cache_persist_floor: 0.7
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Fatalf("addr=%q", cfg.Addr)
	}
	if len(cfg.Models) != 1 || cfg.Models[0].ID != "tinyllama" {
		t.Fatalf("models=%v", cfg.Models)
	}
	if cfg.Affinity["number"] != "tinyllama" {
		t.Fatalf("affinity=%v", cfg.Affinity)
	}
	if cfg.CacheLookupThreshold != 0.95 {
		t.Fatalf("lookup threshold=%v", cfg.CacheLookupThreshold)
	}
}

func TestLoadJSON(t *testing.T) {
	p := writeTemp(t, "cfg.json", `{"addr":":1234","models":[{"id":"m1","path":"/m1.gguf"}]}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":1234" || len(cfg.Models) != 1 {
		t.Fatalf("cfg=%+v", cfg)
	}
}

func TestLoadTOML(t *testing.T) {
	p := writeTemp(t, "cfg.toml", "addr = \":5678\"\n\n[[models]]\nid = \"m1\"\npath = \"/m1.gguf\"\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":5678" || len(cfg.Models) != 1 {
		t.Fatalf("cfg=%+v", cfg)
	}
}

func TestLoadUnsupportedExtension(t *testing.T) {
	p := writeTemp(t, "cfg.ini", "addr=:1\n")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected error for unsupported extension")
	}
}

func TestLoadEmptyPath(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestProfileDefaults(t *testing.T) {
	p := SafetyProfile{}.Defaults()
	if p.MaxLoadRetries != 3 {
		t.Fatalf("retries=%d", p.MaxLoadRetries)
	}
	if p.RetryBaseDelay != 5*time.Second {
		t.Fatalf("base delay=%v", p.RetryBaseDelay)
	}
	if p.LoadDeadline != 60*time.Second {
		t.Fatalf("deadline=%v", p.LoadDeadline)
	}
	// Explicit values survive.
	p2 := SafetyProfile{MaxLoadRetries: 2, MemoryMarginMB: 128}.Defaults()
	if p2.MaxLoadRetries != 2 || p2.MemoryMarginMB != 128 {
		t.Fatalf("profile=%+v", p2)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}
	got, err := ExpandHome("~/models")
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if got != filepath.Join(home, "models") {
		t.Fatalf("got %q", got)
	}
	plain, _ := ExpandHome("/abs/path")
	if plain != "/abs/path" {
		t.Fatalf("plain path changed: %q", plain)
	}
}
