package app

import (
	"context"
	"errors"
	"fmt"

	"wasender/internal/audit"
	"wasender/internal/config"
	"wasender/internal/contacts"
	"wasender/internal/eventbus"
	"wasender/internal/storage"
	logx "wasender/pkg/logx"
)

var (
	ErrRunInProgress = errors.New("app: a run is already in progress")
	ErrNoContacts    = errors.New("app: no usable contacts in file")
	ErrLaunchFailed  = errors.New("app: browser launch failed")
	ErrLoginTimeout  = errors.New("app: login was not completed in time")
)

// App wires configuration, logging, persistence and the event bus together
// and owns the one run that may be in flight. All front-ends (CLI, terminal
// menu, web dashboard) drive this type and nothing below it.
type App struct {
	cfgm  *config.Manager
	logs  *logx.Service
	log   logx.Logger
	bus   eventbus.Bus
	store storage.Store
	trail *audit.Log

	runs runState
}

// New loads configuration from cfgPath (or defaults when empty) and brings
// the ambient services up. The browser is not touched until a run starts.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfgm.SetValidator(func(ctx context.Context, c *config.Config) error {
		return config.Validate(c)
	})

	bus := eventbus.New()
	logs, log := logx.New(loggingConfig(cfg), bus)
	cfgm.SetLogger(log.With(logx.String("component", "config")))

	store, err := storage.Open(storageConfig(cfg), log.With(logx.String("component", "storage")))
	if err != nil {
		_ = logs.Close()
		return nil, fmt.Errorf("opening run history: %w", err)
	}

	trail, err := audit.Open(cfg.Audit.Path, log.With(logx.String("component", "audit")))
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		_ = logs.Close()
		return nil, fmt.Errorf("opening audit trail: %w", err)
	}

	return &App{
		cfgm:  cfgm,
		logs:  logs,
		log:   log,
		bus:   bus,
		store: store,
		trail: trail,
	}, nil
}

// Config returns the current configuration snapshot.
func (a *App) Config() *config.Config { return a.cfgm.Get() }

// Bus exposes the event bus for front-ends to subscribe to.
func (a *App) Bus() eventbus.Bus { return a.bus }

// Logger returns the root logger.
func (a *App) Logger() logx.Logger { return a.log }

// Audit exposes the audit trail for read access (dashboard, menu).
func (a *App) Audit() *audit.Log { return a.trail }

// AuditTail returns up to n recent audit entries, oldest first.
func (a *App) AuditTail(n int) ([]audit.Entry, error) { return a.trail.Tail(n) }

// Watch follows the config file and hot-applies the logging section. It
// blocks until ctx ends; run it in its own goroutine.
func (a *App) Watch(ctx context.Context) error {
	ch := a.cfgm.Subscribe(4)
	defer a.cfgm.Unsubscribe(ch)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case cfg, ok := <-ch:
				if !ok {
					return
				}
				a.logs.Apply(loggingConfig(cfg))
				a.log.Info("config reloaded")
			}
		}
	}()
	return a.cfgm.Watch(ctx)
}

// LoadContacts reads and normalizes a contact file using the configured
// column names and validation bounds.
func (a *App) LoadContacts(path string) ([]contacts.Contact, error) {
	return a.loadContacts(path, "")
}

// loadContacts honors a per-run template override; empty means the configured
// default.
func (a *App) loadContacts(path, template string) ([]contacts.Contact, error) {
	cfg := a.cfgm.Get()
	if template == "" {
		template = cfg.Contacts.DefaultTemplate
	}
	return contacts.Load(path, contacts.Options{
		NameColumn:      cfg.Contacts.NameColumn,
		PhoneColumn:     cfg.Contacts.PhoneColumn,
		MessageColumn:   cfg.Contacts.MessageColumn,
		MinDigits:       cfg.Contacts.MinDigits,
		MaxDigits:       cfg.Contacts.MaxDigits,
		DefaultTemplate: template,
		Log:             a.log.With(logx.String("component", "contacts")),
	})
}

// History returns recent run records, newest first. Without a configured
// store it returns nothing.
func (a *App) History(ctx context.Context, limit int) ([]storage.RunRecord, error) {
	if a.store == nil {
		return nil, nil
	}
	return a.store.ListRuns(ctx, limit)
}

// Close releases everything. A run still in flight is asked to stop but not
// waited for; callers that care should Wait first.
func (a *App) Close() error {
	a.RequestStop()
	var first error
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			first = err
		}
	}
	if err := a.logs.Close(); err != nil && first == nil {
		first = err
	}
	return first
}
