package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"signal-pipeline/internal/domain"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Signal explorer message types.
type filteredSignalsMsg []domain.SignalSummary

var (
	classOptions = []domain.SignalClass{
		0, domain.StrongBuy, domain.Buy, domain.WeakBuy, domain.Hold,
		domain.WeakSell, domain.Sell, domain.StrongSell,
	}
	confidenceOptions = []int{0, 50, 65, 80}
)

// SignalExplorerModel is the Bubble Tea model for the signal explorer screen.
type SignalExplorerModel struct {
	services      Services
	signals       []domain.SignalSummary
	classIdx      int
	confidenceIdx int
	scrollOffset  int
	loading       bool
	width         int
	height        int
}

// NewSignalExplorerModel creates a new signal explorer model.
func NewSignalExplorerModel(svc Services) SignalExplorerModel {
	return SignalExplorerModel{
		services: svc,
		loading:  true,
	}
}

// Init fires initial signal fetch.
func (m SignalExplorerModel) Init() tea.Cmd {
	return m.fetchSignalsCmd()
}

// Update handles incoming messages.
func (m SignalExplorerModel) Update(msg tea.Msg) (SignalExplorerModel, tea.Cmd) {
	switch msg := msg.(type) {
	case filteredSignalsMsg:
		m.signals = []domain.SignalSummary(msg)
		m.loading = false
		m.scrollOffset = 0
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, DefaultKeyMap.FilterClass):
			m.classIdx = (m.classIdx + 1) % len(classOptions)
			m.loading = true
			return m, m.fetchSignalsCmd()

		case key.Matches(msg, DefaultKeyMap.FilterConfidence):
			m.confidenceIdx = (m.confidenceIdx + 1) % len(confidenceOptions)
			m.loading = true
			return m, m.fetchSignalsCmd()

		case key.Matches(msg, DefaultKeyMap.Refresh):
			m.loading = true
			return m, m.fetchSignalsCmd()

		case key.Matches(msg, DefaultKeyMap.ScrollDown):
			if m.scrollOffset < len(m.signals)-m.visibleRows() {
				m.scrollOffset++
			}
			return m, nil

		case key.Matches(msg, DefaultKeyMap.ScrollUp):
			if m.scrollOffset > 0 {
				m.scrollOffset--
			}
			return m, nil
		}
	}

	return m, nil
}

// View renders the signal explorer.
func (m SignalExplorerModel) View() string {
	sections := []string{
		HeaderStyle.Render("  Signal Explorer"),
		"",
		m.renderFilters(),
		SubtextStyle.Render(strings.Repeat("─", max(m.width-2, 10))),
	}

	if m.loading {
		sections = append(sections, SubtextStyle.Render("  Loading..."))
		return strings.Join(sections, "\n")
	}

	if len(m.signals) == 0 {
		sections = append(sections, SubtextStyle.Render("  No signals match the current filters"))
		return strings.Join(sections, "\n")
	}

	sections = append(sections, SubtextStyle.Render("  Symbol          Price      24h  Signal      Conf"))

	maxVisible := m.visibleRows()
	end := min(m.scrollOffset+maxVisible, len(m.signals))
	for i := m.scrollOffset; i < end; i++ {
		sections = append(sections, "  "+FormatSummary(m.signals[i]))
	}

	if len(m.signals) > maxVisible {
		sections = append(sections, SubtextStyle.Render(
			fmt.Sprintf("  Showing %d-%d of %d (j/k to scroll)", m.scrollOffset+1, end, len(m.signals)),
		))
	}

	sections = append(sections, "")
	sections = append(sections, SubtextStyle.Render("  [c] signal  [m] min confidence  [R] refresh  [j/k] scroll"))

	return strings.Join(sections, "\n")
}

// SetSize updates the model dimensions.
func (m *SignalExplorerModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// FilterState returns current filter indices (for testing).
func (m SignalExplorerModel) FilterState() (classIdx, confidenceIdx int) {
	return m.classIdx, m.confidenceIdx
}

// SignalCount returns the number of loaded signals (for testing).
func (m SignalExplorerModel) SignalCount() int { return len(m.signals) }

func (m SignalExplorerModel) renderFilters() string {
	classLabels := make([]string, len(classOptions))
	for i, c := range classOptions {
		classLabels[i] = "ALL"
		if c.IsValid() {
			classLabels[i] = c.String()
		}
	}
	confLabels := make([]string, len(confidenceOptions))
	for i, c := range confidenceOptions {
		confLabels[i] = fmt.Sprintf("%d+", c)
	}
	return "  " + lipgloss.JoinHorizontal(lipgloss.Top,
		m.renderChip("Signal", classLabels, m.classIdx), "  ",
		m.renderChip("Conf", confLabels, m.confidenceIdx),
	)
}

func (m SignalExplorerModel) renderChip(label string, options []string, active int) string {
	parts := []string{SubtextStyle.Render(label + ": ")}
	for i, opt := range options {
		if i == active {
			parts = append(parts, ActiveTabStyle.Render(opt))
		} else {
			parts = append(parts, SubtextStyle.Render(opt))
		}
		parts = append(parts, " ")
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

// filter keeps signals matching the active chips, highest confidence first.
func (m SignalExplorerModel) filter(in []domain.SignalSummary) []domain.SignalSummary {
	class := classOptions[m.classIdx]
	minConf := confidenceOptions[m.confidenceIdx]

	out := make([]domain.SignalSummary, 0, len(in))
	for _, s := range in {
		if class.IsValid() && s.Signal != class {
			continue
		}
		if s.Confidence < minConf {
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out
}

func (m SignalExplorerModel) fetchSignalsCmd() tea.Cmd {
	return func() tea.Msg {
		if m.services.Analysis == nil {
			return filteredSignalsMsg(nil)
		}
		return filteredSignalsMsg(m.filter(m.services.Analysis.CachedSignals(context.Background())))
	}
}

func (m SignalExplorerModel) visibleRows() int {
	// header, filters, table header, help footer
	return max(m.height-10, 5)
}
