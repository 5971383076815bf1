// Package tui implements the interactive terminal menu using Bubble Tea.
package tui

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"wasender/internal/app"
	"wasender/internal/audit"
	"wasender/internal/config"
	"wasender/internal/eventbus"
	"wasender/internal/sender"
	"wasender/internal/storage"
)

// Controller is the slice of the application the menu drives.
type Controller interface {
	Config() *config.Config
	Bus() eventbus.Bus
	StartRun(req app.RunRequest) (string, error)
	RequestStop()
	Status() app.StatusReport
	History(ctx context.Context, limit int) ([]storage.RunRecord, error)
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	sentStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	skipStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

type phase int

const (
	phaseForm phase = iota
	phaseRunning
	phaseDone
)

const maxActivityLines = 10

type busEventMsg eventbus.Event

type Model struct {
	ctrl   Controller
	events <-chan eventbus.Event
	unsub  func()

	phase  phase
	inputs []textinput.Model
	focus  int
	bar    progress.Model

	runID    string
	current  int
	total    int
	session  string
	activity []string
	history  []storage.RunRecord
	final    *sender.Stats
	err      error

	width int
}

func NewModel(ctrl Controller) Model {
	cfg := ctrl.Config()

	file := textinput.New()
	file.Placeholder = "./contactos.csv"
	file.Prompt = "> "
	file.Focus()

	limit := textinput.New()
	limit.Placeholder = strconv.Itoa(cfg.Sender.DefaultLimit)
	limit.Prompt = "> "

	delay := textinput.New()
	delay.Placeholder = cfg.Sender.DefaultDelay
	delay.Prompt = "> "

	template := textinput.New()
	template.Placeholder = cfg.Contacts.DefaultTemplate
	template.Prompt = "> "

	events, unsub := ctrl.Bus().Subscribe(64)

	m := Model{
		ctrl:    ctrl,
		events:  events,
		unsub:   unsub,
		inputs:  []textinput.Model{file, limit, delay, template},
		bar:     progress.New(progress.WithDefaultGradient()),
		session: "-",
		width:   80,
	}
	m.loadHistory()
	return m
}

// loadHistory refreshes the recent-runs list shown under the form. Best
// effort: with history disabled or failing the form just omits it.
func (m *Model) loadHistory() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if runs, err := m.ctrl.History(ctx, 5); err == nil {
		m.history = runs
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitForEvent())
}

func (m Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return nil
		}
		return busEventMsg(ev)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = msg.Width - 8
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case busEventMsg:
		return m.handleEvent(eventbus.Event(msg))
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		if m.phase == phaseRunning {
			m.ctrl.RequestStop()
			m.activity = append(m.activity, "deteniendo después del contacto en curso...")
			return m, nil
		}
		m.unsub()
		return m, tea.Quit

	case "esc":
		if m.phase != phaseRunning {
			m.unsub()
			return m, tea.Quit
		}

	case "q":
		// Only a shortcut on the summary screen; in the form it is just a letter.
		if m.phase == phaseDone {
			m.unsub()
			return m, tea.Quit
		}

	case "tab", "down":
		if m.phase == phaseForm {
			m.focus = (m.focus + 1) % len(m.inputs)
			m.syncFocus()
			return m, nil
		}

	case "shift+tab", "up":
		if m.phase == phaseForm {
			m.focus = (m.focus + len(m.inputs) - 1) % len(m.inputs)
			m.syncFocus()
			return m, nil
		}

	case "enter":
		switch m.phase {
		case phaseForm:
			return m.start()
		case phaseDone:
			m.reset()
			return m, textinput.Blink
		}
	}

	var cmd tea.Cmd
	if m.phase == phaseForm {
		m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	}
	return m, cmd
}

func (m *Model) syncFocus() {
	for i := range m.inputs {
		if i == m.focus {
			m.inputs[i].Focus()
		} else {
			m.inputs[i].Blur()
		}
	}
}

func (m *Model) reset() {
	m.phase = phaseForm
	m.final = nil
	m.err = nil
	m.current, m.total = 0, 0
	m.activity = nil
	m.focus = 0
	m.syncFocus()
}

func (m Model) start() (tea.Model, tea.Cmd) {
	req := app.RunRequest{File: strings.TrimSpace(m.inputs[0].Value())}
	if req.File == "" {
		m.err = fmt.Errorf("falta el archivo de contactos")
		return m, nil
	}
	if raw := strings.TrimSpace(m.inputs[1].Value()); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			m.err = fmt.Errorf("límite inválido: %q", raw)
			return m, nil
		}
		req.Limit = n
	}
	if raw := strings.TrimSpace(m.inputs[2].Value()); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			m.err = fmt.Errorf("pausa inválida: %q", raw)
			return m, nil
		}
		req.Delay = d
	}
	req.Template = strings.TrimSpace(m.inputs[3].Value())

	id, err := m.ctrl.StartRun(req)
	if err != nil {
		m.err = err
		return m, nil
	}
	m.err = nil
	m.runID = id
	m.phase = phaseRunning
	m.activity = []string{"campaña iniciada, esperando sesión..."}
	return m, m.waitForEvent()
}

func (m Model) handleEvent(ev eventbus.Event) (tea.Model, tea.Cmd) {
	switch ev.Type {
	case eventbus.TypeSessionState:
		if data, ok := ev.Data.(map[string]string); ok {
			m.session = data["state"]
		}

	case eventbus.TypeRunProgress:
		if p, ok := ev.Data.(eventbus.Progress); ok && p.RunID == m.runID {
			m.current, m.total = p.Current, p.Total
		}

	case eventbus.TypeContactResult:
		if r, ok := ev.Data.(eventbus.ContactResult); ok && r.RunID == m.runID {
			m.pushActivity(renderResult(r))
		}

	case eventbus.TypeRunFinished:
		if st, ok := ev.Data.(sender.Stats); ok && st.RunID == m.runID {
			m.final = &st
			m.phase = phaseDone
			m.loadHistory()
		}

	case eventbus.TypeLogLine:
		if m.phase != phaseRunning {
			break
		}
		if data, ok := ev.Data.(map[string]string); ok {
			m.pushActivity(helpStyle.Render(data["line"]))
		}
	}
	return m, m.waitForEvent()
}

func (m *Model) pushActivity(line string) {
	m.activity = append(m.activity, line)
	if len(m.activity) > maxActivityLines {
		m.activity = m.activity[len(m.activity)-maxActivityLines:]
	}
}

func renderResult(r eventbus.ContactResult) string {
	label := r.Status
	switch r.Status {
	case audit.StatusSent:
		label = sentStyle.Render(r.Status)
	case audit.StatusError:
		label = failStyle.Render(r.Status)
	case audit.StatusSkipped:
		label = skipStyle.Render(r.Status)
	}
	line := fmt.Sprintf("%s  %s <%s>", label, r.Name, r.Phone)
	if r.Detail != "" {
		line += "  " + r.Detail
	}
	return line
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("wasender: envíos masivos"))
	b.WriteString("\n\n")

	switch m.phase {
	case phaseForm:
		labels := []string{"Archivo de contactos", "Límite de envíos", "Pausa base", "Plantilla (opcional)"}
		for i, in := range m.inputs {
			b.WriteString(labelStyle.Render(labels[i]))
			b.WriteString("\n")
			b.WriteString(in.View())
			b.WriteString("\n")
		}
		if m.err != nil {
			b.WriteString("\n")
			b.WriteString(errorStyle.Render(m.err.Error()))
			b.WriteString("\n")
		}
		if len(m.history) > 0 {
			b.WriteString("\n")
			b.WriteString(labelStyle.Render("Campañas recientes"))
			b.WriteString("\n")
			for _, rec := range m.history {
				b.WriteString(fmt.Sprintf("  %s  %d enviados · %d errores  %s\n",
					rec.StartedAt.Format("2006-01-02 15:04"), rec.Sent, rec.Failed, rec.SourceFile))
			}
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter: iniciar · tab: siguiente campo · esc: salir"))

	case phaseRunning:
		b.WriteString(statusStyle.Render("sesión: " + m.session))
		b.WriteString("\n\n")
		if m.total > 0 {
			b.WriteString(m.bar.ViewAs(float64(m.current) / float64(m.total)))
			b.WriteString(fmt.Sprintf("  %d/%d\n\n", m.current, m.total))
		}
		for _, line := range m.activity {
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("ctrl+c: detener después del contacto en curso"))

	case phaseDone:
		st := m.final
		b.WriteString(titleStyle.Render("campaña terminada"))
		b.WriteString("\n\n")
		b.WriteString(fmt.Sprintf("  %s %d\n", sentStyle.Render("enviados"), st.Sent))
		b.WriteString(fmt.Sprintf("  %s  %d\n", failStyle.Render("errores"), st.Failed))
		b.WriteString(fmt.Sprintf("  %s %d\n", skipStyle.Render("saltados"), st.Skipped))
		b.WriteString(fmt.Sprintf("\n  duración %s · efectividad %.0f%%\n", st.Duration().Round(time.Second), st.SuccessRate()))
		if st.Stopped {
			b.WriteString(skipStyle.Render("\n  detenida por el usuario\n"))
		}
		if st.Aborted {
			b.WriteString(errorStyle.Render("\n  abortada: la sesión se perdió\n"))
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter: nueva campaña · q: salir"))
	}
	b.WriteString("\n")
	return b.String()
}

// Run starts the menu in alternate screen mode. Outside a TTY it refuses and
// points at the headless command instead.
func Run(ctrl Controller) error {
	if fi, err := os.Stdout.Stat(); err == nil && fi.Mode()&os.ModeCharDevice == 0 {
		fmt.Println("entorno sin terminal; usá `wasender run --file ...` para el modo desatendido")
		return nil
	}
	p := tea.NewProgram(NewModel(ctrl), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
