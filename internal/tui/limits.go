package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"signal-pipeline/internal/ratelimit"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

type rateLimitsMsg map[string]ratelimit.SourceStatus
type limitsTickMsg time.Time

const limitsRefresh = 2 * time.Second

// RateLimitsModel shows per-source quota usage of the admission controller.
type RateLimitsModel struct {
	services Services
	status   map[string]ratelimit.SourceStatus
	width    int
	height   int
}

func NewRateLimitsModel(svc Services) RateLimitsModel {
	return RateLimitsModel{services: svc}
}

func (m RateLimitsModel) Init() tea.Cmd {
	return tea.Batch(m.fetchCmd(), m.tickCmd())
}

func (m RateLimitsModel) Update(msg tea.Msg) (RateLimitsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case rateLimitsMsg:
		m.status = map[string]ratelimit.SourceStatus(msg)
		return m, nil
	case limitsTickMsg:
		return m, tea.Batch(m.fetchCmd(), m.tickCmd())
	case tea.KeyMsg:
		if key.Matches(msg, DefaultKeyMap.Refresh) {
			return m, m.fetchCmd()
		}
	}
	return m, nil
}

func (m RateLimitsModel) View() string {
	lines := []string{
		HeaderStyle.Render("  Upstream Quotas"),
		SubtextStyle.Render(strings.Repeat("─", max(m.width-2, 10))),
	}
	if len(m.status) == 0 {
		lines = append(lines, SubtextStyle.Render("  No rate limit data"))
		return strings.Join(lines, "\n")
	}

	barWidth := min(max(m.width-50, 10), 40)
	for _, source := range m.Sources() {
		st := m.status[source]
		lines = append(lines,
			"  "+RenderUsageBar(source, st, barWidth),
			SubtextStyle.Render(fmt.Sprintf("  %-12s %d ok  %d failed  %.1fs waited  refill %.2f/s",
				"", st.Stats.SuccessfulRequests, st.Stats.FailedRequests, st.Stats.TotalWaitTime, st.RefillRate)),
		)
	}
	return strings.Join(lines, "\n")
}

func (m *RateLimitsModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// Sources returns the known sources in display order.
func (m RateLimitsModel) Sources() []string {
	out := make([]string, 0, len(m.status))
	for s := range m.status {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func (m RateLimitsModel) fetchCmd() tea.Cmd {
	return func() tea.Msg {
		if m.services.Analysis == nil {
			return rateLimitsMsg(nil)
		}
		return rateLimitsMsg(m.services.Analysis.RateLimits())
	}
}

func (m RateLimitsModel) tickCmd() tea.Cmd {
	return tea.Tick(limitsRefresh, func(t time.Time) tea.Msg {
		return limitsTickMsg(t)
	})
}
