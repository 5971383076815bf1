package logx

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"wasender/internal/eventbus"
)

func TestFileSinkWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	svc, log := New(Config{
		Level: "DEBUG",
		File:  FileConfig{Enabled: true, Path: path},
	}, nil)
	defer svc.Close()

	log.Info("hello", String("who", "world"))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), `"who":"world"`) {
		t.Fatalf("field missing from log line:\n%s", data)
	}
}

func TestLevelFilter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	svc, log := New(Config{
		Level: "WARN",
		File:  FileConfig{Enabled: true, Path: path},
	}, nil)
	defer svc.Close()

	log.Info("quiet")
	log.Warn("loud")

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "quiet") {
		t.Fatalf("info line should be filtered:\n%s", data)
	}
	if !strings.Contains(string(data), "loud") {
		t.Fatalf("warn line missing:\n%s", data)
	}
}

func TestApplySwapsLevelAtRuntime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	cfg := Config{Level: "ERROR", File: FileConfig{Enabled: true, Path: path}}
	svc, log := New(cfg, nil)
	defer svc.Close()

	log.Info("before")
	cfg.Level = "DEBUG"
	svc.Apply(cfg)
	log.Info("after")

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "before") {
		t.Fatalf("pre-apply info should be filtered:\n%s", data)
	}
	if !strings.Contains(string(data), "after") {
		t.Fatalf("post-apply info missing:\n%s", data)
	}
}

func TestBusSinkPublishesFormattedLines(t *testing.T) {
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(8)
	defer unsub()

	svc, log := New(Config{
		Level:   "INFO",
		Console: false,
		Bus:     BusConfig{Enabled: true, MinLevel: "WARN", RatePerSec: 100},
	}, bus)
	defer svc.Close()

	log.Info("below threshold")
	log.Warn("mirrored", String("phone", "5491123456789"))

	select {
	case ev := <-ch:
		if ev.Type != eventbus.TypeLogLine {
			t.Fatalf("wrong event type: %q", ev.Type)
		}
		data, ok := ev.Data.(map[string]string)
		if !ok {
			t.Fatalf("unexpected payload: %#v", ev.Data)
		}
		if !strings.Contains(data["line"], "mirrored") || !strings.Contains(data["line"], "phone=5491123456789") {
			t.Fatalf("line not formatted: %q", data["line"])
		}
		if data["level"] != "warn" {
			t.Fatalf("unexpected level: %q", data["level"])
		}
	case <-time.After(time.Second):
		t.Fatalf("no event on the bus")
	}

	// The info line must not have been mirrored.
	select {
	case ev := <-ch:
		t.Fatalf("unexpected extra event: %+v", ev)
	default:
	}
}

func TestRotateIfOversize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	if err := os.WriteFile(path, []byte(strings.Repeat("x", 100)), 0o644); err != nil {
		t.Fatalf("fixture: %v", err)
	}

	rotateIfOversize(path, 50)
	if _, err := os.Stat(path + ".1"); err != nil {
		t.Fatalf("rollover file missing: %v", err)
	}

	// Under the limit nothing moves.
	if err := os.WriteFile(path, []byte("small"), 0o644); err != nil {
		t.Fatalf("fixture: %v", err)
	}
	rotateIfOversize(path, 50)
	if data, _ := os.ReadFile(path); string(data) != "small" {
		t.Fatalf("small file should not rotate")
	}
}

func TestWithFieldsAccumulate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	svc, log := New(Config{Level: "INFO", File: FileConfig{Enabled: true, Path: path}}, nil)
	defer svc.Close()

	log.With(String("component", "sender")).Info("tick", Int("n", 1))

	data, _ := os.ReadFile(path)
	line := string(data)
	if !strings.Contains(line, `"component":"sender"`) || !strings.Contains(line, `"n":1`) {
		t.Fatalf("fields missing: %s", line)
	}
}

func TestZeroLoggerIsSafe(t *testing.T) {
	var log Logger
	log.Info("ignored", Any("x", struct{}{}))
	if !log.IsZero() {
		t.Fatalf("zero logger should report IsZero")
	}
	if Nop().IsZero() {
		t.Fatalf("Nop carries a base logger, it is not the zero value")
	}
}
