package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"signal-pipeline/internal/domain"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Analyze message types.
type analysisMsg domain.Analysis
type analysisErrMsg struct{ err error }

const analyzeTimeout = 60 * time.Second

// AnalyzeModel runs a full pipeline analysis for one symbol on demand.
type AnalyzeModel struct {
	services Services
	result   *domain.Analysis
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	waiting  bool
	err      error
	width    int
	height   int
	ready    bool
}

// NewAnalyzeModel creates a new analyze model.
func NewAnalyzeModel(svc Services) AnalyzeModel {
	ti := textinput.New()
	ti.Placeholder = "Symbol, e.g. BTC"
	ti.CharLimit = 12
	ti.Width = 20

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(SpinnerColor)

	return AnalyzeModel{
		services: svc,
		input:    ti,
		spinner:  sp,
	}
}

// Init initializes the analyze model.
func (m AnalyzeModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles incoming messages.
func (m AnalyzeModel) Update(msg tea.Msg) (AnalyzeModel, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case analysisMsg:
		a := domain.Analysis(msg)
		m.result = &a
		m.waiting = false
		m.err = nil
		m.viewport.SetContent(m.renderResult())
		m.viewport.GotoTop()
		return m, nil

	case analysisErrMsg:
		m.waiting = false
		m.err = msg.err
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyEnter && !m.waiting {
			symbol := domain.NormalizeSymbol(m.input.Value())
			if symbol != "" {
				m.input.SetValue("")
				m.waiting = true
				return m, tea.Batch(m.analyzeCmd(symbol), m.spinner.Tick)
			}
		}

	case spinner.TickMsg:
		if m.waiting {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	if !m.waiting {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// View renders the analyze screen.
func (m AnalyzeModel) View() string {
	sections := []string{
		HeaderStyle.Render("  Analyze Coin"),
		SubtextStyle.Render(strings.Repeat("─", max(m.width-2, 10))),
	}

	if m.waiting {
		sections = append(sections, fmt.Sprintf("  %s Analyzing...", m.spinner.View()))
	} else {
		if m.err != nil {
			sections = append(sections, ErrorStyle.Render(fmt.Sprintf("  Error: %v", m.err)))
		}
		sections = append(sections, "  "+m.input.View())
	}

	sections = append(sections, SubtextStyle.Render(strings.Repeat("─", max(m.width-2, 10))))

	if !m.ready {
		m.initViewport()
	}
	sections = append(sections, m.viewport.View())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetSize updates the model dimensions.
func (m *AnalyzeModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.ready = false
}

// Focus gives focus to the symbol input.
func (m *AnalyzeModel) Focus() {
	m.input.Focus()
}

// Blur removes focus from the symbol input.
func (m *AnalyzeModel) Blur() {
	m.input.Blur()
}

// IsWaiting returns whether an analysis is in flight (for testing).
func (m AnalyzeModel) IsWaiting() bool { return m.waiting }

// Result returns the last analysis (for testing).
func (m AnalyzeModel) Result() *domain.Analysis { return m.result }

func (m *AnalyzeModel) initViewport() {
	m.viewport = viewport.New(max(m.width-2, 10), max(m.height-6, 3))
	m.viewport.SetContent(m.renderResult())
	m.ready = true
}

func (m AnalyzeModel) renderResult() string {
	if m.result == nil {
		return SubtextStyle.Render("  Type a tracked symbol and press enter.")
	}
	a := m.result
	sig := a.Signal
	row := func(label, value string) string {
		return fmt.Sprintf("  %s %s", LabelStyle.Render(fmt.Sprintf("%-14s", label)), value)
	}

	lines := []string{
		row("Coin", fmt.Sprintf("%s  %s  %s", a.Symbol, formatUSD(a.Ticker.Price), formatChange(a.Ticker.Change24h))),
		row("Signal", ClassStyle(sig.Class).Render(sig.Class.String())+fmt.Sprintf("  confidence %d%%", sig.Confidence)),
		row("Action", sig.Action),
		row("Scores", fmt.Sprintf("overall %d  technical %d  macro %s  sentiment %s",
			sig.OverallScore, sig.TechnicalScore, formatOptInt(sig.MacroScore), formatOptInt(sig.SentimentScore))),
		row("Entry", sig.Entry.String()),
		row("Targets", formatTargets(sig.Targets)),
		row("Stop loss", formatOpt(sig.StopLoss, "$%.2f")),
		row("Position", fmt.Sprintf("%.1f%% of portfolio", sig.PositionSizePct)),
		row("Timeframe", sig.Timeframe),
		"",
		HeaderStyle.Render("  Technicals"),
		row("RSI", fmt.Sprintf("%s (%s)", formatOpt(a.Indicators.RSI, "%.1f"), a.Indicators.RSIClass)),
		row("MACD", fmt.Sprintf("%s (%s)", formatOpt(a.Indicators.MACDHistogram, "%.4f"), a.Indicators.MACDClass)),
		row("Bollinger", a.Indicators.BBClass.String()),
		row("Trend", a.Indicators.Trend.String()),
		row("Volume ratio", formatOpt(a.Indicators.VolumeRatio, "%.2fx")),
	}

	if a.Sentiment != nil {
		lines = append(lines, "",
			HeaderStyle.Render("  Sentiment"),
			row("Rating", fmt.Sprintf("%s (%d%%)", a.Sentiment.Rating, a.Sentiment.Confidence)),
		)
		if a.Sentiment.Reasoning != "" {
			lines = append(lines, "  "+a.Sentiment.Reasoning)
		}
	}

	lines = append(lines, "", SubtextStyle.Render("  Generated "+a.GeneratedAt.Format(time.RFC822)))
	return strings.Join(lines, "\n")
}

func formatOptInt(o domain.OptInt) string {
	if v, ok := o.Get(); ok {
		return fmt.Sprintf("%d", v)
	}
	return "n/a"
}

func formatTargets(targets []float64) string {
	if len(targets) == 0 {
		return "none"
	}
	parts := make([]string, len(targets))
	for i, t := range targets {
		parts[i] = formatUSD(t)
	}
	return strings.Join(parts, ", ")
}

func (m AnalyzeModel) analyzeCmd(symbol string) tea.Cmd {
	return func() tea.Msg {
		if m.services.Analysis == nil {
			return analysisErrMsg{err: fmt.Errorf("analysis service not available")}
		}
		ctx, cancel := context.WithTimeout(context.Background(), analyzeTimeout)
		defer cancel()
		a, err := m.services.Analysis.Analyze(ctx, symbol)
		if err != nil {
			return analysisErrMsg{err: err}
		}
		return analysisMsg(a)
	}
}
