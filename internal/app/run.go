package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"wasender/internal/contacts"
	"wasender/internal/eventbus"
	"wasender/internal/sender"
	"wasender/internal/session"
	"wasender/internal/storage"
	logx "wasender/pkg/logx"
)

// RunRequest describes one campaign.
type RunRequest struct {
	// File is the contact file (CSV or Excel).
	File string
	// Limit caps targeted contacts; 0 falls back to the configured default.
	Limit int
	// Delay is the base inter-message pause; 0 falls back to the configured
	// default.
	Delay time.Duration
	// Template overrides the configured default message template for rows
	// without a custom message.
	Template string
	// Progress, when set, gets per-contact callbacks on the run goroutine.
	Progress sender.Progress
}

type runState struct {
	mu     sync.Mutex
	active *activeRun
	last   *activeRun
}

type activeRun struct {
	id     string
	file   string
	snd    *sender.Sender
	driver *session.Driver
	cancel context.CancelFunc
	done   chan struct{}

	stats sender.Stats
	err   error
}

// StartRun validates the contact file, claims the single run slot and kicks
// off the campaign on its own goroutine. It returns the run ID immediately;
// progress flows over the event bus and Wait blocks until the end.
func (a *App) StartRun(req RunRequest) (string, error) {
	list, err := a.loadContacts(req.File, req.Template)
	if err != nil {
		return "", err
	}
	if len(list) == 0 {
		return "", ErrNoContacts
	}

	cfg := a.cfgm.Get()
	if req.Limit <= 0 {
		req.Limit = cfg.Sender.DefaultLimit
	}
	if req.Delay <= 0 {
		req.Delay, _ = time.ParseDuration(cfg.Sender.DefaultDelay)
	}

	a.runs.mu.Lock()
	if a.runs.active != nil {
		a.runs.mu.Unlock()
		return "", ErrRunInProgress
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	log := a.log.With(logx.String("run_id", id))

	driver := session.New(sessionConfig(cfg), log.With(logx.String("component", "session")), a.bus)
	snd := sender.New(
		sender.NewDispatcher(driver, log.With(logx.String("component", "dispatch"))),
		driver,
		a.trail,
		a.bus,
		log.With(logx.String("component", "sender")),
	)
	r := &activeRun{
		id:     id,
		file:   req.File,
		snd:    snd,
		driver: driver,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	a.runs.active = r
	a.runs.mu.Unlock()

	go a.execute(ctx, r, list, sender.Options{
		RunID:     id,
		Limit:     req.Limit,
		Delay:     req.Delay,
		MinDigits: cfg.Contacts.MinDigits,
		MaxDigits: cfg.Contacts.MaxDigits,
		Progress:  req.Progress,
	})
	return id, nil
}

func (a *App) execute(ctx context.Context, r *activeRun, list []contacts.Contact, opts sender.Options) {
	defer func() {
		r.driver.Teardown()
		r.cancel()
		a.runs.mu.Lock()
		a.runs.last = r
		a.runs.active = nil
		a.runs.mu.Unlock()
		close(r.done)
	}()

	if !r.driver.Launch(ctx) {
		a.finishWithoutSending(r, ErrLaunchFailed)
		return
	}
	if !r.driver.AwaitLogin(ctx) {
		a.finishWithoutSending(r, ErrLoginTimeout)
		return
	}

	stats := r.snd.Run(ctx, list, opts)
	a.runs.mu.Lock()
	r.stats = stats
	a.runs.mu.Unlock()
	a.saveRun(r)
}

// finishWithoutSending records a run that died before the first message so
// front-ends watching the bus still see it end. Status() polls r.err and
// r.stats concurrently, so both are written under runs.mu.
func (a *App) finishWithoutSending(r *activeRun, err error) {
	now := time.Now()
	st := sender.Stats{RunID: r.id, Aborted: true, StartedAt: now, EndedAt: now}
	a.runs.mu.Lock()
	r.err = err
	r.stats = st
	a.runs.mu.Unlock()
	a.bus.Publish(eventbus.Event{Type: eventbus.TypeRunFinished, Data: st})
}

func (a *App) saveRun(r *activeRun) {
	if a.store == nil {
		return
	}
	rec := storage.RunRecord{
		ID:         r.stats.RunID,
		SourceFile: r.file,
		Total:      r.stats.Total,
		Sent:       r.stats.Sent,
		Failed:     r.stats.Failed,
		Skipped:    r.stats.Skipped,
		Stopped:    r.stats.Stopped,
		Aborted:    r.stats.Aborted,
		StartedAt:  r.stats.StartedAt,
		EndedAt:    r.stats.EndedAt,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.store.SaveRun(ctx, rec); err != nil {
		a.log.Error("saving run history failed", logx.Err(err))
	}
}

// Preview loads and caps the contact list exactly the way StartRun would,
// without touching the browser. Front-ends use it for dry runs.
func (a *App) Preview(req RunRequest) ([]contacts.Contact, error) {
	list, err := a.loadContacts(req.File, req.Template)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrNoContacts
	}
	limit := req.Limit
	if limit <= 0 {
		limit = a.cfgm.Get().Sender.DefaultLimit
	}
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

// RequestStop asks the active run to end after the contact in flight. During
// the login phase it cancels outright, there is nothing half-done to finish.
func (a *App) RequestStop() {
	a.runs.mu.Lock()
	r := a.runs.active
	a.runs.mu.Unlock()
	if r == nil {
		return
	}
	r.snd.RequestStop()
	if r.driver.State() != session.StateAuthenticated {
		r.cancel()
	}
}

// Wait blocks until the active run finishes (or ctx ends) and returns its
// final stats. With no run in flight it returns the last finished one.
func (a *App) Wait(ctx context.Context) (sender.Stats, error) {
	a.runs.mu.Lock()
	r := a.runs.active
	if r == nil {
		r = a.runs.last
	}
	a.runs.mu.Unlock()
	if r == nil {
		return sender.Stats{}, nil
	}
	select {
	case <-ctx.Done():
		return sender.Stats{}, ctx.Err()
	case <-r.done:
		return r.stats, r.err
	}
}

// StatusReport is the composite state exposed to front-ends.
type StatusReport struct {
	Session string        `json:"session"`
	Run     sender.Status `json:"run"`
	File    string        `json:"file,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// Status snapshots the active run, or the last finished one.
func (a *App) Status() StatusReport {
	a.runs.mu.Lock()
	r := a.runs.active
	if r == nil {
		r = a.runs.last
	}
	// r.err is written by the run goroutine under runs.mu; copy it out
	// before dropping the lock.
	var runErr error
	if r != nil {
		runErr = r.err
	}
	a.runs.mu.Unlock()

	if r == nil {
		return StatusReport{Session: session.StateNotStarted.String()}
	}
	rep := StatusReport{
		Session: r.driver.State().String(),
		Run:     r.snd.Status(),
		File:    r.file,
	}
	if runErr != nil {
		rep.Error = runErr.Error()
	}
	return rep
}
