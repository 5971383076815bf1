package sender

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"wasender/internal/audit"
	"wasender/internal/contacts"
	"wasender/internal/eventbus"
	"wasender/pkg/logx"
)

// Session is the liveness slice of the browser session. The run loop checks
// it before every contact so a crashed browser aborts the run instead of
// burning through the remaining list.
type Session interface {
	IsAlive() bool
}

// Recorder receives one audit entry per processed contact.
type Recorder interface {
	Record(audit.Entry) error
}

// Progress gets a callback after each contact is validated and about to be
// dispatched. Implementations must return quickly, the run loop is serial.
type Progress interface {
	OnProgress(current, total int)
}

// ProgressFunc adapts a plain function to Progress.
type ProgressFunc func(current, total int)

func (f ProgressFunc) OnProgress(current, total int) { f(current, total) }

// Options tune one run.
type Options struct {
	// RunID labels events and history for this run. Empty means generate one.
	RunID string
	// Limit caps how many contacts are targeted; <= 0 means the whole list.
	Limit int
	// Delay is the base pause between consecutive contacts. The actual pause
	// is jittered ±20% so the cadence doesn't look machine-regular.
	Delay time.Duration
	// MinDigits and MaxDigits bound what counts as a usable phone number.
	MinDigits int
	MaxDigits int
	Progress  Progress
}

func (o *Options) fill() {
	if o.MinDigits <= 0 {
		o.MinDigits = 8
	}
	if o.MaxDigits <= 0 {
		o.MaxDigits = 15
	}
	if o.Delay < 0 {
		o.Delay = 0
	}
}

// Sender walks a contact list and dispatches one message per contact. One
// Sender drives at most one run; front-ends create a fresh one per run.
type Sender struct {
	dispatch Dispatcher
	session  Session
	trail    Recorder
	bus      eventbus.Bus
	log      logx.Logger

	stop atomic.Bool

	// sleepStep is how long each slice of the inter-contact delay sleeps.
	// One second keeps stop latency around a second regardless of the
	// configured delay. Tests shrink it.
	sleepStep time.Duration
	jitter    func() float64

	mu      sync.Mutex
	running bool
	stats   Stats
	current int
}

func New(dispatch Dispatcher, session Session, trail Recorder, bus eventbus.Bus, log logx.Logger) *Sender {
	return &Sender{
		dispatch:  dispatch,
		session:   session,
		trail:     trail,
		bus:       bus,
		log:       log,
		sleepStep: time.Second,
		jitter:    rand.Float64,
	}
}

// RequestStop asks the run to end after the contact currently in flight.
// Safe to call from any goroutine, before or during a run.
func (s *Sender) RequestStop() {
	if s.stop.CompareAndSwap(false, true) {
		s.log.Info("stop requested")
	}
}

// Status returns a snapshot of the run in flight, or of the last finished
// run when nothing is running.
func (s *Sender) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Running:   s.running,
		RunID:     s.stats.RunID,
		Current:   s.current,
		Total:     s.stats.Total,
		Sent:      s.stats.Sent,
		Failed:    s.stats.Failed,
		Skipped:   s.stats.Skipped,
		StartedAt: s.stats.StartedAt,
	}
}

// Run processes the list in order and returns the final tally. It never
// returns an error: per-contact failures are counted and audited, and a dead
// session or a stop request simply end the walk early.
func (s *Sender) Run(ctx context.Context, list []contacts.Contact, opts Options) Stats {
	opts.fill()

	target := list
	if opts.Limit > 0 && opts.Limit < len(list) {
		target = list[:opts.Limit]
	}

	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	s.mu.Lock()
	s.running = true
	s.current = 0
	s.stats = Stats{RunID: runID, Total: len(target), StartedAt: time.Now()}
	s.mu.Unlock()

	s.log.Info("run started",
		logx.String("run_id", runID),
		logx.Int("targets", len(target)),
		logx.Int("loaded", len(list)),
		logx.Duration("delay", opts.Delay))
	s.publish(eventbus.TypeRunStarted, eventbus.Progress{RunID: runID, Total: len(target)})

	for i, c := range target {
		if s.stop.Load() || ctx.Err() != nil {
			s.log.Warn("run stopped by user", logx.Int("at", i), logx.Int("of", len(target)))
			s.markStopped()
			break
		}
		if !s.session.IsAlive() {
			s.log.Error("session lost, aborting run", logx.Int("at", i), logx.Int("of", len(target)))
			s.markAborted()
			break
		}

		s.processContact(ctx, runID, i+1, len(target), c, opts)

		if i < len(target)-1 && !s.stop.Load() {
			s.pause(ctx, opts.Delay)
		}
	}

	s.mu.Lock()
	s.stats.EndedAt = time.Now()
	s.running = false
	final := s.stats
	s.mu.Unlock()

	s.log.Info("run finished",
		logx.String("run_id", runID),
		logx.Int("sent", final.Sent),
		logx.Int("failed", final.Failed),
		logx.Int("skipped", final.Skipped),
		logx.Float64("success_rate", final.SuccessRate()),
		logx.Duration("took", final.Duration()))
	s.publish(eventbus.TypeRunFinished, final)
	return final
}

func (s *Sender) processContact(ctx context.Context, runID string, current, total int, c contacts.Contact, opts Options) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("contact processing panicked",
				logx.String("name", c.Name), logx.Any("panic", r))
			s.count(func(st *Stats) { st.Failed++ })
			s.record(c, audit.StatusError, "panic interno")
			s.publishResult(runID, c, audit.StatusError, "panic interno")
		}
	}()

	s.mu.Lock()
	s.current = current
	s.mu.Unlock()

	s.log.Info("processing contact",
		logx.Int("current", current), logx.Int("total", total),
		logx.String("name", c.Name), logx.String("phone", c.Phone))

	if !contacts.ValidPhone(c.Phone, opts.MinDigits, opts.MaxDigits) {
		s.log.Warn("invalid number, skipping",
			logx.String("name", c.Name), logx.String("phone", c.RawPhone))
		s.count(func(st *Stats) { st.Skipped++ })
		s.record(c, audit.StatusSkipped, "número inválido")
		s.publishResult(runID, c, audit.StatusSkipped, "número inválido")
		return
	}

	text := contacts.FormatMessage(c.Message, c)

	if opts.Progress != nil {
		opts.Progress.OnProgress(current, total)
	}
	s.publish(eventbus.TypeRunProgress, eventbus.Progress{RunID: runID, Current: current, Total: total})

	out := s.dispatch.Send(ctx, c.Phone, text)
	switch out.Kind {
	case OutcomeSent:
		s.log.Info("message sent", logx.String("name", c.Name), logx.String("phone", c.Phone))
		s.count(func(st *Stats) { st.Sent++ })
		s.recordWithMessage(c, text, audit.StatusSent, "")
		s.publishResult(runID, c, audit.StatusSent, "")
	case OutcomeNotFound:
		s.log.Warn("recipient not found", logx.String("name", c.Name), logx.String("phone", c.Phone))
		s.count(func(st *Stats) { st.Failed++ })
		s.recordWithMessage(c, text, audit.StatusError, "destino no encontrado")
		s.publishResult(runID, c, audit.StatusError, "destino no encontrado")
	case OutcomeTransportError:
		detail := "error de envío"
		if out.Err != nil {
			detail = out.Err.Error()
		}
		s.log.Error("send failed", logx.String("name", c.Name), logx.Err(out.Err))
		s.count(func(st *Stats) { st.Failed++ })
		s.recordWithMessage(c, text, audit.StatusError, detail)
		s.publishResult(runID, c, audit.StatusError, detail)
	}
}

// pause sleeps the jittered inter-contact delay in sleepStep slices, bailing
// out as soon as a stop lands.
func (s *Sender) pause(ctx context.Context, base time.Duration) {
	if base <= 0 {
		return
	}
	factor := 0.8 + 0.4*s.jitter()
	secs := int(base.Seconds() * factor)
	if secs <= 0 {
		return
	}
	s.log.Debug("pausing before next contact", logx.Int("seconds", secs))
	for i := 0; i < secs; i++ {
		if s.stop.Load() || ctx.Err() != nil {
			return
		}
		t := time.NewTimer(s.sleepStep)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

func (s *Sender) count(f func(*Stats)) {
	s.mu.Lock()
	f(&s.stats)
	s.mu.Unlock()
}

func (s *Sender) markStopped() { s.count(func(st *Stats) { st.Stopped = true }) }
func (s *Sender) markAborted() { s.count(func(st *Stats) { st.Aborted = true }) }

func (s *Sender) record(c contacts.Contact, status, detail string) {
	s.recordWithMessage(c, c.Message, status, detail)
}

func (s *Sender) recordWithMessage(c contacts.Contact, text, status, detail string) {
	if s.trail == nil {
		return
	}
	err := s.trail.Record(audit.Entry{
		Name:    c.Name,
		Phone:   c.Phone,
		Message: text,
		Status:  status,
		Detail:  detail,
	})
	if err != nil {
		s.log.Error("audit write failed", logx.Err(err))
	}
}

func (s *Sender) publish(typ string, data any) {
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: typ, Data: data})
	}
}

func (s *Sender) publishResult(runID string, c contacts.Contact, status, detail string) {
	s.publish(eventbus.TypeContactResult, eventbus.ContactResult{
		RunID:  runID,
		Name:   c.Name,
		Phone:  c.Phone,
		Status: status,
		Detail: detail,
	})
}
