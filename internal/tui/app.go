package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Tab represents a screen tab in the TUI.
type Tab int

const (
	TabDashboard Tab = iota
	TabAnalyze
	TabSignals
	TabRateLimits
)

var tabNames = []string{"1:Dashboard", "2:Analyze", "3:Signals", "4:Rate Limits"}

// AppModel is the root Bubble Tea model that manages tab navigation and child screens.
type AppModel struct {
	services  Services
	activeTab Tab
	dashboard DashboardModel
	analyze   AnalyzeModel
	signals   SignalExplorerModel
	limits    RateLimitsModel
	width     int
	height    int
	quitting  bool
}

// NewAppModel creates the root application model with all child screens.
func NewAppModel(svc Services) AppModel {
	return AppModel{
		services:  svc,
		activeTab: TabDashboard,
		dashboard: NewDashboardModel(svc),
		analyze:   NewAnalyzeModel(svc),
		signals:   NewSignalExplorerModel(svc),
		limits:    NewRateLimitsModel(svc),
	}
}

// Init initializes all child models.
func (m AppModel) Init() tea.Cmd {
	return tea.Batch(
		m.dashboard.Init(),
		m.analyze.Init(),
		m.signals.Init(),
		m.limits.Init(),
	)
}

// Update handles incoming messages, routing to the active tab.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.propagateSize()
		return m, nil

	case tea.KeyMsg:
		// The analyze input swallows plain keys; only navigation is global there.
		if m.activeTab != TabAnalyze || msg.Type == tea.KeyTab || msg.Type == tea.KeyShiftTab ||
			msg.String() == "ctrl+c" || (msg.String() >= "1" && msg.String() <= "4") {

			switch {
			case key.Matches(msg, DefaultKeyMap.Quit):
				if m.activeTab == TabAnalyze && msg.String() == "q" {
					break
				}
				m.quitting = true
				return m, tea.Quit

			case key.Matches(msg, DefaultKeyMap.Tab):
				m.switchTab(Tab((int(m.activeTab) + 1) % len(tabNames)))
				return m, nil

			case key.Matches(msg, DefaultKeyMap.ShiftTab):
				next := int(m.activeTab) - 1
				if next < 0 {
					next = len(tabNames) - 1
				}
				m.switchTab(Tab(next))
				return m, nil

			case msg.String() >= "1" && msg.String() <= "4":
				m.switchTab(Tab(msg.String()[0] - '1'))
				return m, nil
			}
		}
	}

	// Data messages go to their owner regardless of the active tab.
	var cmds []tea.Cmd

	switch msg.(type) {
	case cachedSignalsMsg, overviewMsg, overviewErrMsg, dashTickMsg:
		var cmd tea.Cmd
		m.dashboard, cmd = m.dashboard.Update(msg)
		cmds = append(cmds, cmd)

	case filteredSignalsMsg:
		var cmd tea.Cmd
		m.signals, cmd = m.signals.Update(msg)
		cmds = append(cmds, cmd)

	case rateLimitsMsg, limitsTickMsg:
		var cmd tea.Cmd
		m.limits, cmd = m.limits.Update(msg)
		cmds = append(cmds, cmd)

	case analysisMsg, analysisErrMsg:
		var cmd tea.Cmd
		m.analyze, cmd = m.analyze.Update(msg)
		cmds = append(cmds, cmd)

	default:
		switch m.activeTab {
		case TabDashboard:
			var cmd tea.Cmd
			m.dashboard, cmd = m.dashboard.Update(msg)
			cmds = append(cmds, cmd)
		case TabAnalyze:
			var cmd tea.Cmd
			m.analyze, cmd = m.analyze.Update(msg)
			cmds = append(cmds, cmd)
		case TabSignals:
			var cmd tea.Cmd
			m.signals, cmd = m.signals.Update(msg)
			cmds = append(cmds, cmd)
		case TabRateLimits:
			var cmd tea.Cmd
			m.limits, cmd = m.limits.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	return m, tea.Batch(cmds...)
}

// View renders the tab bar and active screen.
func (m AppModel) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	var content string
	switch m.activeTab {
	case TabDashboard:
		content = m.dashboard.View()
	case TabAnalyze:
		content = m.analyze.View()
	case TabSignals:
		content = m.signals.View()
	case TabRateLimits:
		content = m.limits.View()
	}

	return lipgloss.JoinVertical(lipgloss.Left, m.renderTabBar(), content)
}

// SetSize updates dimensions on the root model and propagates to children.
func (m *AppModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.propagateSize()
}

// ActiveTab returns the currently active tab (for testing).
func (m AppModel) ActiveTab() Tab { return m.activeTab }

func (m *AppModel) switchTab(tab Tab) {
	if tab == TabAnalyze && m.activeTab != TabAnalyze {
		m.analyze.Focus()
	} else if m.activeTab == TabAnalyze && tab != TabAnalyze {
		m.analyze.Blur()
	}
	m.activeTab = tab
}

func (m *AppModel) propagateSize() {
	contentHeight := m.height - 2 // tab bar
	m.dashboard.SetSize(m.width, contentHeight)
	m.analyze.SetSize(m.width, contentHeight)
	m.signals.SetSize(m.width, contentHeight)
	m.limits.SetSize(m.width, contentHeight)
}

func (m AppModel) renderTabBar() string {
	var tabs []string
	for i, name := range tabNames {
		if Tab(i) == m.activeTab {
			tabs = append(tabs, ActiveTabStyle.Render(name))
		} else {
			tabs = append(tabs, InactiveTabStyle.Render(name))
		}
	}
	bar := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
	if m.services.Username != "" {
		bar = lipgloss.JoinHorizontal(lipgloss.Top, bar, SubtextStyle.Render("  "+m.services.Username))
	}
	return bar
}
