package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	m := NewManager("")
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Browser.URL != "https://web.whatsapp.com" {
		t.Fatalf("unexpected default URL: %q", cfg.Browser.URL)
	}
	if cfg.Sender.DefaultLimit != 50 {
		t.Fatalf("unexpected default limit: %d", cfg.Sender.DefaultLimit)
	}
	if m.Get() != cfg {
		t.Fatalf("Load must commit the config")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "nope.json"))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Contacts.PhoneColumn != "telefono" {
		t.Fatalf("defaults not applied: %+v", cfg.Contacts)
	}
}

func TestParsePartialJSONFillsDefaults(t *testing.T) {
	path := writeConfig(t, "c.json", `{"sender": {"default_limit": 5}, "browser": {"headless": true}}`)
	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Sender.DefaultLimit != 5 {
		t.Fatalf("explicit value lost: %d", cfg.Sender.DefaultLimit)
	}
	if !cfg.Browser.Headless {
		t.Fatalf("explicit value lost: headless")
	}
	if cfg.Sender.DefaultDelay != "20s" || cfg.Browser.NavTimeout != "30s" {
		t.Fatalf("defaults not back-filled: %+v", cfg.Sender)
	}
	if cfg.Selector.SearchBox == "" {
		t.Fatalf("selector defaults not back-filled")
	}
}

func TestParseYAML(t *testing.T) {
	path := writeConfig(t, "c.yaml", strings.Join([]string{
		"browser:",
		"  headless: true",
		"contacts:",
		"  min_digits: 9",
	}, "\n"))
	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("parse yaml: %v", err)
	}
	if !cfg.Browser.Headless || cfg.Contacts.MinDigits != 9 {
		t.Fatalf("yaml values lost: %+v", cfg)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, "c.json", `{"browsr": {}}`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := Validate(cfg); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}

	cfg.Contacts.MaxDigits = 3
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected digit bound error")
	}

	cfg = Default()
	cfg.Browser.NavTimeout = "treinta"
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected duration error")
	}

	cfg = Default()
	cfg.Storage = &StorageConfig{Driver: "sqlite", Path: "x.db", BusyTimeout: "-3s"}
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected negative duration error")
	}
}

func TestDurationField(t *testing.T) {
	if d, err := Duration("x", " 15s "); err != nil || d.Seconds() != 15 {
		t.Fatalf("unexpected: %v %v", d, err)
	}
	if d, err := Duration("x", ""); err != nil || d != 0 {
		t.Fatalf("empty must be zero: %v %v", d, err)
	}
	if _, err := Duration("x", "nope"); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := Duration("x", "-3s"); err == nil {
		t.Fatalf("expected negative duration error")
	}
}
