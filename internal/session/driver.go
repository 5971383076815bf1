package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"

	"wasender/internal/eventbus"
	"wasender/pkg/logx"
)

// Selectors are the DOM anchors the driver steers by. They live in config so
// a markup change on the site can be absorbed without a rebuild.
type Selectors struct {
	SearchBox    string
	MessageBox   string
	SendButton   string
	ChatHeader   string
	InvalidPopup string
	SidePanel    string
	QRCode       string
	ContactTitle string
}

// Config carries everything needed to bring a browser session up.
type Config struct {
	Bin         string
	Headless    bool
	UserDataDir string
	URL         string
	UserAgent   string
	ExtraFlags  []string

	NavTimeout     time.Duration
	AuthTimeout    time.Duration
	ElementTimeout time.Duration
	SendSettle     time.Duration

	Selectors Selectors
}

// Driver owns one browser process and the single page pointed at the web
// client. All operations after Teardown fail with ErrSessionClosed.
type Driver struct {
	cfg Config
	log logx.Logger
	bus eventbus.Bus

	mu       sync.Mutex
	state    State
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
}

func New(cfg Config, log logx.Logger, bus eventbus.Bus) *Driver {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 30 * time.Second
	}
	if cfg.AuthTimeout <= 0 {
		cfg.AuthTimeout = 60 * time.Second
	}
	if cfg.ElementTimeout <= 0 {
		cfg.ElementTimeout = 10 * time.Second
	}
	if cfg.SendSettle <= 0 {
		cfg.SendSettle = 5 * time.Second
	}
	return &Driver{cfg: cfg, log: log, bus: bus, state: StateNotStarted}
}

// State returns the current lifecycle state.
func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Driver) setState(s State) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
	if d.bus != nil {
		d.bus.Publish(eventbus.Event{
			Type: eventbus.TypeSessionState,
			Data: map[string]string{"state": s.String()},
		})
	}
}

// Launch starts the browser and navigates to the web client. It reports
// success as a bool rather than an error: the caller's only recourse either
// way is to not start the run, and the cause is already logged. A browser
// that came up half-way is torn down before returning.
func (d *Driver) Launch(ctx context.Context) bool {
	d.mu.Lock()
	if d.state != StateNotStarted {
		d.mu.Unlock()
		d.log.Error("launch on a used driver", logx.String("state", d.state.String()))
		return false
	}
	d.mu.Unlock()

	l := launcher.New().Headless(d.cfg.Headless)
	if d.cfg.Bin != "" {
		l = l.Bin(d.cfg.Bin)
	}
	if d.cfg.UserDataDir != "" {
		l = l.UserDataDir(d.cfg.UserDataDir)
	}
	for f, v := range hardeningFlags(d.cfg.UserAgent) {
		l = l.Set(f, v...)
	}
	for _, raw := range d.cfg.ExtraFlags {
		name, value := splitFlag(raw)
		if name == "" {
			continue
		}
		if value == "" {
			l = l.Set(flags.Flag(name))
		} else {
			l = l.Set(flags.Flag(name), value)
		}
	}
	d.launcher = l

	controlURL, err := l.Launch()
	if err != nil {
		d.log.Error("browser launch failed", logx.Err(err))
		return false
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		d.log.Error("browser connect failed", logx.Err(err))
		l.Kill()
		return false
	}
	d.mu.Lock()
	d.browser = browser
	d.mu.Unlock()
	d.setState(StateBrowserLaunched)

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		d.log.Error("opening page failed", logx.Err(err))
		d.Teardown()
		return false
	}
	d.mu.Lock()
	d.page = page
	d.mu.Unlock()

	d.log.Info("navigating", logx.String("url", d.cfg.URL))
	if err := page.Timeout(d.cfg.NavTimeout).Navigate(d.cfg.URL); err != nil {
		d.log.Error("navigation failed", logx.String("url", d.cfg.URL), logx.Err(err))
		d.Teardown()
		return false
	}
	if err := page.Timeout(d.cfg.NavTimeout).WaitLoad(); err != nil {
		d.log.Error("page load timed out", logx.Err(err))
		d.Teardown()
		return false
	}
	return true
}

// AwaitLogin blocks until the authenticated layout appears or the configured
// auth window runs out. While waiting the user is expected to scan the QR
// code, so the poll logs a hint once. A short settle follows detection
// because the chat list keeps hydrating after the side panel mounts.
func (d *Driver) AwaitLogin(ctx context.Context) bool {
	d.mu.Lock()
	if d.state == StateClosed || d.page == nil {
		d.mu.Unlock()
		return false
	}
	page := d.page
	d.mu.Unlock()

	d.setState(StateAwaitingAuth)
	d.log.Info("waiting for login", logx.Duration("timeout", d.cfg.AuthTimeout))

	deadline := time.Now().Add(d.cfg.AuthTimeout)
	hinted := false
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return false
		}
		ok, _, err := page.Has(d.cfg.Selectors.SidePanel)
		if err == nil && ok {
			if !sleepCtx(ctx, 3*time.Second) {
				return false
			}
			d.setState(StateAuthenticated)
			d.log.Info("session authenticated")
			return true
		}
		if !hinted {
			if qr, _, qerr := page.Has(d.cfg.Selectors.QRCode); qerr == nil && qr {
				d.log.Info("QR code on screen, scan it from the phone")
				hinted = true
			}
		}
		if !sleepCtx(ctx, 500*time.Millisecond) {
			return false
		}
	}
	d.log.Warn("login window expired", logx.Duration("timeout", d.cfg.AuthTimeout))
	return false
}

// IsAlive probes the page over the devtools socket. A crashed or closed
// browser fails the probe, which the run loop treats as a hard stop.
func (d *Driver) IsAlive() bool {
	d.mu.Lock()
	page := d.page
	closed := d.state == StateClosed
	d.mu.Unlock()
	if closed || page == nil {
		return false
	}
	_, err := page.Info()
	return err == nil
}

// OpenConversation types the phone number into the search box and opens the
// first hit. It returns found=false when the site reports the number is not
// on the platform, or when no chat materializes in time; a nil error with
// found=false is a per-contact failure, not a session failure.
func (d *Driver) OpenConversation(ctx context.Context, phone string) (bool, error) {
	page, err := d.livePage()
	if err != nil {
		return false, err
	}

	search, err := page.Timeout(d.cfg.ElementTimeout).Element(d.cfg.Selectors.SearchBox)
	if err != nil {
		return false, fmt.Errorf("search box: %w", err)
	}
	if err := search.SelectAllText(); err != nil {
		return false, fmt.Errorf("clearing search: %w", err)
	}
	if err := search.Input(phone); err != nil {
		return false, fmt.Errorf("typing number: %w", err)
	}
	if !sleepCtx(ctx, 2*time.Second) {
		return false, ctx.Err()
	}
	if err := search.Type(input.Enter); err != nil {
		return false, fmt.Errorf("submitting search: %w", err)
	}

	deadline := time.Now().Add(d.cfg.ElementTimeout)
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if ok, _, herr := page.Has(d.cfg.Selectors.ChatHeader); herr == nil && ok {
			return true, nil
		}
		if ok, _, perr := page.Has(d.cfg.Selectors.InvalidPopup); perr == nil && ok {
			d.dismissPopup(page)
			return false, nil
		}
		if !sleepCtx(ctx, 300*time.Millisecond) {
			return false, ctx.Err()
		}
	}
	return false, nil
}

// SubmitMessage types into the message box and clicks send, then waits a
// settle period so the outgoing message actually leaves before the next
// navigation tears the chat down.
func (d *Driver) SubmitMessage(ctx context.Context, text string) error {
	page, err := d.livePage()
	if err != nil {
		return err
	}

	box, err := page.Timeout(d.cfg.ElementTimeout).Element(d.cfg.Selectors.MessageBox)
	if err != nil {
		return fmt.Errorf("message box: %w", err)
	}
	if err := box.Input(text); err != nil {
		return fmt.Errorf("typing message: %w", err)
	}
	send, err := page.Timeout(d.cfg.ElementTimeout).Element(d.cfg.Selectors.SendButton)
	if err != nil {
		return fmt.Errorf("send button: %w", err)
	}
	if err := send.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("clicking send: %w", err)
	}
	if !sleepCtx(ctx, d.cfg.SendSettle) {
		return ctx.Err()
	}
	return nil
}

// ChatTitle reads the title of the currently open conversation, useful for
// confirming the search landed on the intended contact.
func (d *Driver) ChatTitle() (string, error) {
	page, err := d.livePage()
	if err != nil {
		return "", err
	}
	el, err := page.Timeout(d.cfg.ElementTimeout).Element(d.cfg.Selectors.ContactTitle)
	if err != nil {
		return "", fmt.Errorf("contact title: %w", err)
	}
	if title, aerr := el.Attribute("title"); aerr == nil && title != nil && *title != "" {
		return *title, nil
	}
	return el.Text()
}

// Screenshot captures the page into dir and returns the written path.
func (d *Driver) Screenshot(dir string) (string, error) {
	page, err := d.livePage()
	if err != nil {
		return "", err
	}
	data, err := page.Screenshot(false, nil)
	if err != nil {
		return "", fmt.Errorf("capturing screenshot: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("session_%s.png", time.Now().Format("20060102_150405")))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// Teardown closes the page, the browser and the underlying process. It is
// idempotent and swallows close errors, the process is going away either way.
func (d *Driver) Teardown() {
	d.mu.Lock()
	if d.state == StateClosed {
		d.mu.Unlock()
		return
	}
	page, browser, l := d.page, d.browser, d.launcher
	d.page, d.browser, d.launcher = nil, nil, nil
	d.mu.Unlock()

	if page != nil {
		_ = page.Close()
	}
	if browser != nil {
		_ = browser.Close()
	}
	if l != nil {
		l.Kill()
	}
	d.setState(StateClosed)
	d.log.Info("session closed")
}

func (d *Driver) livePage() (*rod.Page, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == StateClosed || d.page == nil {
		return nil, ErrSessionClosed
	}
	return d.page, nil
}

func (d *Driver) dismissPopup(page *rod.Page) {
	// Best effort: the dialog blocks the search box until acknowledged.
	if ok, el, err := page.Has(d.cfg.Selectors.InvalidPopup + " button"); err == nil && ok {
		_ = el.Click(proto.InputMouseButtonLeft, 1)
	}
}

func hardeningFlags(userAgent string) map[flags.Flag][]string {
	set := map[flags.Flag][]string{
		"no-sandbox":               nil,
		"disable-gpu":              nil,
		"disable-dev-shm-usage":    nil,
		"disable-extensions":       nil,
		"disable-plugins":          nil,
		"blink-settings":           {"imagesEnabled=false"},
		"disable-notifications":    nil,
		"no-default-browser-check": nil,
	}
	if userAgent != "" {
		set["user-agent"] = []string{userAgent}
	}
	return set
}

func splitFlag(raw string) (string, string) {
	raw = strings.TrimLeft(strings.TrimSpace(raw), "-")
	name, value, _ := strings.Cut(raw, "=")
	return name, value
}

// sleepCtx sleeps for d unless the context ends first. It reports whether the
// full sleep completed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
