package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"wasender/pkg/logx"
)

func TestStateStrings(t *testing.T) {
	cases := map[State]string{
		StateNotStarted:      "not_started",
		StateBrowserLaunched: "browser_launched",
		StateAwaitingAuth:    "awaiting_auth",
		StateAuthenticated:   "authenticated",
		StateClosed:          "closed",
		State(99):            "unknown",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Fatalf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}

func TestTeardownIsIdempotent(t *testing.T) {
	d := New(Config{}, logx.Nop(), nil)
	d.Teardown()
	d.Teardown()
	if got := d.State(); got != StateClosed {
		t.Fatalf("expected closed, got %v", got)
	}
}

func TestOperationsAfterTeardown(t *testing.T) {
	d := New(Config{}, logx.Nop(), nil)
	d.Teardown()

	if _, err := d.OpenConversation(context.Background(), "5491123456789"); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("OpenConversation: expected ErrSessionClosed, got %v", err)
	}
	if err := d.SubmitMessage(context.Background(), "hola"); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("SubmitMessage: expected ErrSessionClosed, got %v", err)
	}
	if _, err := d.ChatTitle(); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("ChatTitle: expected ErrSessionClosed, got %v", err)
	}
	if d.IsAlive() {
		t.Fatalf("closed driver must not report alive")
	}
	if d.AwaitLogin(context.Background()) {
		t.Fatalf("closed driver must not authenticate")
	}
}

func TestLaunchOnUsedDriver(t *testing.T) {
	d := New(Config{}, logx.Nop(), nil)
	d.Teardown()
	if d.Launch(context.Background()) {
		t.Fatalf("launch after teardown must fail")
	}
}

func TestConfigDefaults(t *testing.T) {
	d := New(Config{}, logx.Nop(), nil)
	if d.cfg.NavTimeout != 30*time.Second {
		t.Fatalf("nav timeout default: %v", d.cfg.NavTimeout)
	}
	if d.cfg.AuthTimeout != 60*time.Second {
		t.Fatalf("auth timeout default: %v", d.cfg.AuthTimeout)
	}
	if d.cfg.ElementTimeout != 10*time.Second {
		t.Fatalf("element timeout default: %v", d.cfg.ElementTimeout)
	}
	if d.cfg.SendSettle != 5*time.Second {
		t.Fatalf("send settle default: %v", d.cfg.SendSettle)
	}
}

func TestSplitFlag(t *testing.T) {
	cases := []struct {
		raw, name, value string
	}{
		{"--disable-sync", "disable-sync", ""},
		{"-proxy-server=http://localhost:8080", "proxy-server", "http://localhost:8080"},
		{"window-size=800,600", "window-size", "800,600"},
		{"  --mute-audio  ", "mute-audio", ""},
	}
	for _, c := range cases {
		name, value := splitFlag(c.raw)
		if name != c.name || value != c.value {
			t.Fatalf("splitFlag(%q) = %q,%q want %q,%q", c.raw, name, value, c.name, c.value)
		}
	}
}

func TestSleepCtxCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if sleepCtx(ctx, time.Minute) {
		t.Fatalf("cancelled context must abort the sleep")
	}
	if time.Since(start) > time.Second {
		t.Fatalf("sleep did not abort promptly")
	}
}
