package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logx "wasender/pkg/logx"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	st, err := Open(Config{Driver: "sqlite", Path: path, BusyTimeout: time.Second}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	r := RunRecord{
		ID:         "run-1",
		SourceFile: "contactos.xlsx",
		Total:      5,
		Sent:       3,
		Failed:     1,
		Skipped:    1,
		Stopped:    true,
		StartedAt:  now,
		EndedAt:    now.Add(4 * time.Minute),
	}
	if err := st.SaveRun(ctx, r); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Upsert with the final tallies, as the controller does when a run ends.
	r.Sent = 4
	r.Failed = 0
	if err := st.SaveRun(ctx, r); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := st.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 run after upsert, got %d", len(got))
	}
	if got[0].Sent != 4 || got[0].Failed != 0 || !got[0].Stopped {
		t.Fatalf("upsert lost fields: %+v", got[0])
	}
	if !got[0].StartedAt.Equal(now) {
		t.Fatalf("timestamp mangled: %v vs %v", got[0].StartedAt, now)
	}
}
