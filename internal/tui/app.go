package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/postsiva/postsiva-cli/internal/state"
	"github.com/postsiva/postsiva-cli/internal/tiktok"
)

// ProfileSource is the profile orchestrator as seen by the dashboard
type ProfileSource interface {
	LoadProfile(ctx context.Context, refresh bool) (*tiktok.ProfileResult, error)
	State() state.State[tiktok.ProfileState]
	Subscribe(fn func(state.State[tiktok.ProfileState])) func()
}

// StateMsg carries a profile state change into the program
type StateMsg struct {
	State state.State[tiktok.ProfileState]
}

// loadDoneMsg is sent when a load issued by the dashboard has returned
type loadDoneMsg struct{}

type keyMap struct {
	refresh key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "Refresh"),
		),
		quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("ctrl+c/q", "Quit"),
		),
	}
}

// AppModel is the profile dashboard
type AppModel struct {
	ctx     context.Context
	source  ProfileSource
	keys    keyMap
	spinner spinner.Model
	current state.State[tiktok.ProfileState]
	width   int
	height  int
}

// NewAppModel creates a dashboard showing source's current state
func NewAppModel(ctx context.Context, source ProfileSource) AppModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	return AppModel{
		ctx:     ctx,
		source:  source,
		keys:    newKeyMap(),
		spinner: s,
		current: source.State(),
	}
}

// Init starts the spinner and loads the cached profile
func (m AppModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.load(false))
}

func (m AppModel) load(refresh bool) tea.Cmd {
	return func() tea.Msg {
		// the outcome reaches the model through the state
		_, _ = m.source.LoadProfile(m.ctx, refresh)
		return loadDoneMsg{}
	}
}

func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.refresh):
			if m.Loading() {
				return m, nil
			}
			return m, m.load(true)
		}

	case StateMsg:
		m.current = msg.State

	case loadDoneMsg:
		m.current = m.source.State()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// Loading reports whether a profile load is in flight
func (m AppModel) Loading() bool {
	return m.current.Status() == state.StatusLoading
}

// Run shows the dashboard until the user quits. State changes made by any
// caller of source are forwarded to the program while it runs.
func Run(ctx context.Context, source ProfileSource, opts ...tea.ProgramOption) error {
	p := tea.NewProgram(NewAppModel(ctx, source), append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)...)
	unsubscribe := source.Subscribe(func(st state.State[tiktok.ProfileState]) {
		p.Send(StateMsg{State: st})
	})
	defer unsubscribe()

	_, err := p.Run()
	return err
}
