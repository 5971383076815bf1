package tui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"wasender/internal/app"
	"wasender/internal/config"
	"wasender/internal/eventbus"
	"wasender/internal/sender"
	"wasender/internal/storage"
)

type fakeCtrl struct {
	bus     eventbus.Bus
	runID   string
	started *app.RunRequest
	stopped bool
}

func (f *fakeCtrl) Config() *config.Config { return config.Default() }
func (f *fakeCtrl) Bus() eventbus.Bus      { return f.bus }

func (f *fakeCtrl) StartRun(req app.RunRequest) (string, error) {
	f.started = &req
	return f.runID, nil
}

func (f *fakeCtrl) RequestStop() { f.stopped = true }

func (f *fakeCtrl) Status() app.StatusReport { return app.StatusReport{} }

func (f *fakeCtrl) History(ctx context.Context, limit int) ([]storage.RunRecord, error) {
	return nil, nil
}

func newFake() *fakeCtrl {
	return &fakeCtrl{bus: eventbus.New(), runID: "run-1"}
}

func TestStartRequiresFile(t *testing.T) {
	m := NewModel(newFake())
	next, _ := m.start()
	got := next.(Model)
	if got.err == nil {
		t.Fatalf("expected validation error with empty file")
	}
	if got.phase != phaseForm {
		t.Fatalf("should stay on the form")
	}
}

func TestStartMovesToRunning(t *testing.T) {
	f := newFake()
	m := NewModel(f)
	m.inputs[0].SetValue("contactos.csv")
	m.inputs[1].SetValue("10")
	m.inputs[2].SetValue("5s")
	m.inputs[3].SetValue("Hola {nombre}")

	next, _ := m.start()
	got := next.(Model)
	if got.phase != phaseRunning {
		t.Fatalf("expected running phase, got %v", got.phase)
	}
	if f.started == nil || f.started.Limit != 10 || f.started.File != "contactos.csv" {
		t.Fatalf("request not forwarded: %+v", f.started)
	}
	if f.started.Template != "Hola {nombre}" {
		t.Fatalf("template override not forwarded: %+v", f.started)
	}
}

func TestStartRejectsBadLimit(t *testing.T) {
	m := NewModel(newFake())
	m.inputs[0].SetValue("contactos.csv")
	m.inputs[1].SetValue("muchos")

	next, _ := m.start()
	if next.(Model).err == nil {
		t.Fatalf("expected limit validation error")
	}
}

func TestProgressEventUpdatesModel(t *testing.T) {
	m := NewModel(newFake())
	m.runID = "run-1"
	m.phase = phaseRunning

	next, _ := m.handleEvent(eventbus.Event{
		Type: eventbus.TypeRunProgress,
		Data: eventbus.Progress{RunID: "run-1", Current: 3, Total: 10},
	})
	got := next.(Model)
	if got.current != 3 || got.total != 10 {
		t.Fatalf("progress not applied: %d/%d", got.current, got.total)
	}
}

func TestFinishedEventEndsRun(t *testing.T) {
	m := NewModel(newFake())
	m.runID = "run-1"
	m.phase = phaseRunning

	next, _ := m.handleEvent(eventbus.Event{
		Type: eventbus.TypeRunFinished,
		Data: sender.Stats{RunID: "run-1", Total: 5, Sent: 4, Failed: 1},
	})
	got := next.(Model)
	if got.phase != phaseDone || got.final == nil || got.final.Sent != 4 {
		t.Fatalf("finish not applied: %+v", got.final)
	}
	if !strings.Contains(got.View(), "enviados") {
		t.Fatalf("summary view missing tallies:\n%s", got.View())
	}
}

func TestForeignRunEventsIgnored(t *testing.T) {
	m := NewModel(newFake())
	m.runID = "run-1"
	m.phase = phaseRunning

	next, _ := m.handleEvent(eventbus.Event{
		Type: eventbus.TypeRunFinished,
		Data: sender.Stats{RunID: "other", Sent: 9},
	})
	if next.(Model).phase != phaseRunning {
		t.Fatalf("event for another run must be ignored")
	}
}

func TestCtrlCStopsRunWithoutQuitting(t *testing.T) {
	f := newFake()
	m := NewModel(f)
	m.phase = phaseRunning

	next, cmd := m.handleKey(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd != nil {
		t.Fatalf("should not quit while running")
	}
	if !f.stopped {
		t.Fatalf("stop not forwarded")
	}
	if next.(Model).phase != phaseRunning {
		t.Fatalf("phase should be unchanged until the run ends")
	}
}
