package sender

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"wasender/internal/audit"
	"wasender/internal/contacts"
	"wasender/pkg/logx"
)

type fakeDispatch struct {
	mu       sync.Mutex
	calls    []string
	outcomes map[string]Outcome
	panicOn  string
	onSend   func()
}

func (f *fakeDispatch) Send(ctx context.Context, phone, text string) Outcome {
	f.mu.Lock()
	f.calls = append(f.calls, phone)
	f.mu.Unlock()
	if f.onSend != nil {
		f.onSend()
	}
	if phone == f.panicOn {
		panic("boom")
	}
	if out, ok := f.outcomes[phone]; ok {
		return out
	}
	return Outcome{Kind: OutcomeSent}
}

func (f *fakeDispatch) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeSession struct {
	mu    sync.Mutex
	alive bool
}

func (f *fakeSession) IsAlive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive
}

func (f *fakeSession) kill() {
	f.mu.Lock()
	f.alive = false
	f.mu.Unlock()
}

type captureTrail struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (c *captureTrail) Record(e audit.Entry) error {
	c.mu.Lock()
	c.entries = append(c.entries, e)
	c.mu.Unlock()
	return nil
}

func (c *captureTrail) all() []audit.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]audit.Entry(nil), c.entries...)
}

func newTestSender(d Dispatcher, sess Session, trail Recorder) *Sender {
	s := New(d, sess, trail, nil, logx.Nop())
	s.sleepStep = time.Millisecond
	s.jitter = func() float64 { return 0.5 } // factor 1.0, deterministic
	return s
}

func list(phones ...string) []contacts.Contact {
	out := make([]contacts.Contact, len(phones))
	for i, p := range phones {
		out[i] = contacts.Contact{Name: "C", Phone: p, RawPhone: p, Message: "hola", Row: i + 1}
	}
	return out
}

func TestRunTalliesOutcomes(t *testing.T) {
	d := &fakeDispatch{outcomes: map[string]Outcome{
		"5491111111111": {Kind: OutcomeSent},
		"5492222222222": {Kind: OutcomeNotFound},
		"5493333333333": {Kind: OutcomeTransportError, Err: errors.New("socket hung up")},
	}}
	trail := &captureTrail{}
	s := newTestSender(d, &fakeSession{alive: true}, trail)

	st := s.Run(context.Background(), list("5491111111111", "5492222222222", "5493333333333"), Options{})
	if st.Sent != 1 || st.Failed != 2 || st.Skipped != 0 || st.Total != 3 {
		t.Fatalf("unexpected stats: %+v", st)
	}

	entries := trail.all()
	if len(entries) != 3 {
		t.Fatalf("expected 3 audit entries, got %d", len(entries))
	}
	wantStatus := []string{audit.StatusSent, audit.StatusError, audit.StatusError}
	for i, e := range entries {
		if e.Status != wantStatus[i] {
			t.Fatalf("entry %d: status %q, want %q", i, e.Status, wantStatus[i])
		}
	}
	if entries[2].Detail != "socket hung up" {
		t.Fatalf("transport error detail lost: %q", entries[2].Detail)
	}
}

func TestRunSkipsInvalidWithoutDispatching(t *testing.T) {
	d := &fakeDispatch{}
	trail := &captureTrail{}
	s := newTestSender(d, &fakeSession{alive: true}, trail)

	st := s.Run(context.Background(), list("123", "5491111111111"), Options{})
	if st.Skipped != 1 || st.Sent != 1 {
		t.Fatalf("unexpected stats: %+v", st)
	}
	if got := d.sent(); len(got) != 1 || got[0] != "5491111111111" {
		t.Fatalf("dispatcher saw wrong calls: %v", got)
	}
	if e := trail.all()[0]; e.Status != audit.StatusSkipped || e.Detail != "número inválido" {
		t.Fatalf("skip not audited: %+v", e)
	}
}

func TestRunHonorsLimit(t *testing.T) {
	d := &fakeDispatch{}
	s := newTestSender(d, &fakeSession{alive: true}, nil)

	st := s.Run(context.Background(), list("5491111111111", "5492222222222", "5493333333333"), Options{Limit: 2})
	if st.Total != 2 || st.Sent != 2 {
		t.Fatalf("limit not applied: %+v", st)
	}
	if len(d.sent()) != 2 {
		t.Fatalf("dispatcher called %d times", len(d.sent()))
	}
}

func TestRunStopsBetweenContacts(t *testing.T) {
	d := &fakeDispatch{}
	s := newTestSender(d, &fakeSession{alive: true}, nil)
	d.onSend = s.RequestStop

	st := s.Run(context.Background(), list("5491111111111", "5492222222222"), Options{Delay: 10 * time.Second})
	if !st.Stopped {
		t.Fatalf("stop not recorded: %+v", st)
	}
	if st.Sent != 1 {
		t.Fatalf("expected exactly the in-flight contact to finish: %+v", st)
	}
}

func TestStopDuringPauseEndsWithinAStep(t *testing.T) {
	d := &fakeDispatch{}
	s := newTestSender(d, &fakeSession{alive: true}, nil)
	s.sleepStep = 10 * time.Millisecond
	d.onSend = func() {
		go func() {
			time.Sleep(30 * time.Millisecond)
			s.RequestStop()
		}()
	}

	start := time.Now()
	st := s.Run(context.Background(), list("5491111111111", "5492222222222"),
		Options{Delay: 10 * time.Minute})
	elapsed := time.Since(start)

	if !st.Stopped || st.Sent != 1 {
		t.Fatalf("stop during the pause not honored: %+v", st)
	}
	// The full pause would be 600 sleep slices; the stop has to land within
	// a slice or two of the request.
	if elapsed > time.Second {
		t.Fatalf("run took %v to wind down", elapsed)
	}
}

func TestRunAbortsWhenSessionDies(t *testing.T) {
	sess := &fakeSession{alive: true}
	d := &fakeDispatch{}
	d.onSend = sess.kill
	s := newTestSender(d, sess, nil)

	st := s.Run(context.Background(), list("5491111111111", "5492222222222", "5493333333333"), Options{})
	if !st.Aborted {
		t.Fatalf("abort not recorded: %+v", st)
	}
	if st.Sent != 1 {
		t.Fatalf("expected run to end after first contact: %+v", st)
	}
}

func TestRunIsolatesPanics(t *testing.T) {
	d := &fakeDispatch{panicOn: "5491111111111"}
	trail := &captureTrail{}
	s := newTestSender(d, &fakeSession{alive: true}, trail)

	st := s.Run(context.Background(), list("5491111111111", "5492222222222"), Options{})
	if st.Failed != 1 || st.Sent != 1 {
		t.Fatalf("panic not isolated: %+v", st)
	}
	if e := trail.all()[0]; e.Status != audit.StatusError {
		t.Fatalf("panic not audited as error: %+v", e)
	}
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := &fakeDispatch{}
	s := newTestSender(d, &fakeSession{alive: true}, nil)

	st := s.Run(ctx, list("5491111111111"), Options{})
	if st.Sent != 0 || !st.Stopped {
		t.Fatalf("cancelled context should stop before dispatching: %+v", st)
	}
}

func TestProgressCallback(t *testing.T) {
	var got [][2]int
	d := &fakeDispatch{}
	s := newTestSender(d, &fakeSession{alive: true}, nil)

	s.Run(context.Background(), list("123", "5491111111111", "5492222222222"), Options{
		Progress: ProgressFunc(func(cur, total int) { got = append(got, [2]int{cur, total}) }),
	})
	// The skipped contact never reaches the progress callback.
	want := [][2]int{{2, 3}, {3, 3}}
	if len(got) != len(want) {
		t.Fatalf("unexpected callbacks: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("callback %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestStatusAfterRun(t *testing.T) {
	d := &fakeDispatch{}
	s := newTestSender(d, &fakeSession{alive: true}, nil)
	st := s.Run(context.Background(), list("5491111111111"), Options{})

	snap := s.Status()
	if snap.Running {
		t.Fatalf("run still marked running")
	}
	if snap.RunID != st.RunID || snap.Sent != 1 {
		t.Fatalf("snapshot does not match final stats: %+v vs %+v", snap, st)
	}
}

func TestStatsDerived(t *testing.T) {
	now := time.Now()
	st := Stats{Total: 4, Sent: 2, StartedAt: now, EndedAt: now.Add(2 * time.Minute)}
	if got := st.SuccessRate(); got != 50 {
		t.Fatalf("success rate = %v", got)
	}
	if got := st.Throughput(); got != 1 {
		t.Fatalf("throughput = %v", got)
	}
	if (Stats{}).SuccessRate() != 0 {
		t.Fatalf("empty stats should not divide by zero")
	}
}
