package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"signal-pipeline/internal/domain"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Dashboard message types.
type cachedSignalsMsg []domain.SignalSummary
type overviewMsg domain.MarketOverview
type overviewErrMsg struct{ err error }
type dashTickMsg time.Time

const dashboardRefresh = 10 * time.Second

// DashboardModel is the Bubble Tea model for the live dashboard screen.
type DashboardModel struct {
	services Services
	signals  []domain.SignalSummary
	overview *domain.MarketOverview
	loading  bool
	err      error
	width    int
	height   int
}

// NewDashboardModel creates a new dashboard model.
func NewDashboardModel(svc Services) DashboardModel {
	return DashboardModel{
		services: svc,
		loading:  true,
	}
}

// Init fires initial data fetch commands.
func (m DashboardModel) Init() tea.Cmd {
	return tea.Batch(
		m.fetchSignalsCmd(),
		m.fetchOverviewCmd(),
		m.tickCmd(),
	)
}

// Update handles incoming messages.
func (m DashboardModel) Update(msg tea.Msg) (DashboardModel, tea.Cmd) {
	switch msg := msg.(type) {
	case cachedSignalsMsg:
		m.signals = []domain.SignalSummary(msg)
		m.loading = false
		return m, nil

	case overviewMsg:
		ov := domain.MarketOverview(msg)
		m.overview = &ov
		m.err = nil
		return m, nil

	case overviewErrMsg:
		m.err = msg.err
		return m, nil

	case dashTickMsg:
		return m, tea.Batch(
			m.fetchSignalsCmd(),
			m.fetchOverviewCmd(),
			m.tickCmd(),
		)
	}

	return m, nil
}

// View renders the dashboard.
func (m DashboardModel) View() string {
	if m.loading && len(m.signals) == 0 {
		return SubtextStyle.Render("Loading signals...")
	}

	tableWidth := max(m.width*2/3-2, 40)
	sideWidth := max(m.width-tableWidth-4, 15)

	tableBox := BorderStyle.Width(tableWidth).Render(m.renderSignalTable())
	side := lipgloss.JoinVertical(lipgloss.Left,
		BorderStyle.Width(sideWidth).Render(m.renderOverview()),
		BorderStyle.Width(sideWidth).Render(HeaderStyle.Render("  Heat Map")+"\n"+RenderHeatMap(m.signals, sideWidth-2)),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, tableBox, side)
}

// SetSize updates the model dimensions.
func (m *DashboardModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// Signals returns the current cached signals (for testing).
func (m DashboardModel) Signals() []domain.SignalSummary { return m.signals }

func (m DashboardModel) renderSignalTable() string {
	lines := []string{
		HeaderStyle.Render("  Cached Signals"),
		SubtextStyle.Render("  Symbol          Price      24h  Signal      Conf"),
		SubtextStyle.Render(strings.Repeat("─", 52)),
	}
	for _, s := range m.signals {
		lines = append(lines, "  "+FormatSummary(s))
	}
	if len(m.signals) == 0 {
		lines = append(lines, SubtextStyle.Render("  No cached signals yet"))
	}
	return strings.Join(lines, "\n")
}

func (m DashboardModel) renderOverview() string {
	lines := []string{HeaderStyle.Render("  Market")}
	switch {
	case m.overview != nil:
		ov := m.overview
		lines = append(lines,
			fmt.Sprintf("  %s %s", LabelStyle.Render("Cap"), formatVolume(ov.TotalMarketCap)),
			fmt.Sprintf("  %s %s", LabelStyle.Render("24h"), formatChange(ov.MarketCapChange24h)),
			fmt.Sprintf("  %s %.1f%%", LabelStyle.Render("BTC.D"), ov.BTCDominance),
			fmt.Sprintf("  %s %s", LabelStyle.Render("F&G"), formatOpt(ov.FearGreedIndex, "%.0f")),
		)
	case m.err != nil:
		lines = append(lines, ErrorStyle.Render(fmt.Sprintf("  Error: %v", m.err)))
	default:
		lines = append(lines, SubtextStyle.Render("  Loading..."))
	}
	return strings.Join(lines, "\n")
}

func (m DashboardModel) fetchSignalsCmd() tea.Cmd {
	return func() tea.Msg {
		if m.services.Analysis == nil {
			return cachedSignalsMsg(nil)
		}
		return cachedSignalsMsg(m.services.Analysis.CachedSignals(context.Background()))
	}
}

func (m DashboardModel) fetchOverviewCmd() tea.Cmd {
	return func() tea.Msg {
		if m.services.Market == nil {
			return overviewErrMsg{err: fmt.Errorf("market service not available")}
		}
		ov, err := m.services.Market.Overview(context.Background())
		if err != nil {
			return overviewErrMsg{err: err}
		}
		return overviewMsg(ov)
	}
}

func (m DashboardModel) tickCmd() tea.Cmd {
	return tea.Tick(dashboardRefresh, func(t time.Time) tea.Msg {
		return dashTickMsg(t)
	})
}
