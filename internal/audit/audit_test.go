package audit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"wasender/pkg/logx"
)

func TestOpenWritesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trail.csv")

	l, err := Open(path, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := l.Record(Entry{Name: "Ana", Phone: "5491123456789", Message: "hola", Status: StatusSent}); err != nil {
		t.Fatalf("record: %v", err)
	}

	// Reopening must not add a second header.
	if _, err := Open(path, logx.Nop()); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if strings.Count(string(data), "timestamp,nombre") != 1 {
		t.Fatalf("header duplicated:\n%s", data)
	}
}

func TestRecordTruncatesMessage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trail.csv")
	l, err := Open(path, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	long := strings.Repeat("ñ", 300)
	if err := l.Record(Entry{Name: "Ana", Phone: "5491123456789", Message: long, Status: StatusSent}); err != nil {
		t.Fatalf("record: %v", err)
	}

	got, err := l.Tail(0)
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(got))
	}
	if n := len([]rune(got[0].Message)); n != 200 {
		t.Fatalf("expected 200 runes, got %d", n)
	}
}

func TestTailReturnsMostRecent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trail.csv")
	l, err := Open(path, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for _, name := range []string{"Ana", "Bea", "Cami"} {
		if err := l.Record(Entry{Name: name, Phone: "5491123456789", Status: StatusSkipped, Detail: "número inválido"}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	got, err := l.Tail(2)
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(got) != 2 || got[0].Name != "Bea" || got[1].Name != "Cami" {
		t.Fatalf("unexpected tail: %+v", got)
	}
	if got[1].Status != StatusSkipped || got[1].Detail != "número inválido" {
		t.Fatalf("fields lost: %+v", got[1])
	}
}
