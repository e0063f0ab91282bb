package tui

import (
	"fmt"
	"math"
	"strings"

	"signal-pipeline/internal/domain"
	"signal-pipeline/internal/ratelimit"

	"github.com/charmbracelet/lipgloss"
)

// ClassStyle picks the color for a signal class.
func ClassStyle(c domain.SignalClass) lipgloss.Style {
	switch {
	case c.IsValid() && c >= domain.WeakBuy:
		return BuyStyle
	case c.IsSell():
		return SellStyle
	default:
		return HoldStyle
	}
}

// FormatSummary renders a cached signal as a single line.
func FormatSummary(s domain.SignalSummary) string {
	return fmt.Sprintf("%-6s %12s  %s  %s %3d%%",
		s.Symbol,
		formatUSD(s.Price),
		formatChange(s.Change24h),
		ClassStyle(s.Signal).Render(fmt.Sprintf("%-11s", s.Signal.String())),
		s.Confidence,
	)
}

// RenderHeatMap renders a colored grid showing 24h change for each cached signal.
func RenderHeatMap(signals []domain.SignalSummary, width int) string {
	if len(signals) == 0 {
		return SubtextStyle.Render("No signal data")
	}

	cellWidth := 8
	cols := max(width/cellWidth, 1)

	var rows []string
	var row []string
	for i, s := range signals {
		bg := HeatNeutral
		if s.Change24h > 0 {
			bg = heatColorScale(s.Change24h, 10, HeatGreen)
		} else if s.Change24h < 0 {
			bg = heatColorScale(-s.Change24h, 10, HeatRed)
		}

		cell := lipgloss.NewStyle().
			Background(bg).
			Foreground(lipgloss.Color("#000000")).
			Bold(true).
			Width(cellWidth - 1).
			Align(lipgloss.Center).
			Render(s.Symbol)

		row = append(row, cell)
		if (i+1)%cols == 0 || i == len(signals)-1 {
			rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
			row = nil
		}
	}

	return strings.Join(rows, "\n")
}

// RenderUsageBar renders a quota usage bar for one source. usage is a
// percentage of capacity already spent.
func RenderUsageBar(source string, st ratelimit.SourceStatus, barWidth int) string {
	if barWidth <= 0 {
		barWidth = 20
	}
	usage := math.Min(math.Max(st.UsagePercent, 0), 100)
	filled := min(int(math.Round(usage/100*float64(barWidth))), barWidth)
	empty := barWidth - filled

	style := UsageLowStyle
	if usage >= 80 {
		style = UsageHighStyle
	} else if usage >= 50 {
		style = UsageMedStyle
	}

	bar := style.Render(strings.Repeat("█", filled)) + SubtextStyle.Render(strings.Repeat("░", empty))
	return fmt.Sprintf("%-12s %s %5.1f%%  %.0f/%.0f tokens", source, bar, usage, st.AvailableTokens, st.Capacity)
}

// heatColorScale produces a color scaled by magnitude.
func heatColorScale(magnitude, maxMagnitude float64, baseColor lipgloss.Color) lipgloss.Color {
	intensity := min(magnitude/maxMagnitude, 1)
	if intensity < 0.1 {
		return HeatNeutral
	}
	return baseColor
}

func formatChange(pct float64) string {
	style := PriceZeroStyle
	sign := ""
	switch {
	case pct > 0:
		style = PriceUpStyle
		sign = "+"
	case pct < 0:
		style = PriceDownStyle
	}
	return style.Render(fmt.Sprintf("%7s", fmt.Sprintf("%s%.1f%%", sign, pct)))
}

func formatOpt(o domain.Opt, format string) string {
	if v, ok := o.Get(); ok {
		return fmt.Sprintf(format, v)
	}
	return "n/a"
}

func formatUSD(v float64) string {
	if v >= 1000 {
		return "$" + addCommas(fmt.Sprintf("%.0f", v))
	}
	if v >= 1 {
		return fmt.Sprintf("$%.2f", v)
	}
	return fmt.Sprintf("$%.4f", v)
}

func addCommas(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}
	var result strings.Builder
	for i, ch := range s {
		if i > 0 && (n-i)%3 == 0 {
			result.WriteByte(',')
		}
		result.WriteRune(ch)
	}
	return result.String()
}

func formatVolume(v float64) string {
	switch {
	case v >= 1e12:
		return fmt.Sprintf("$%.1fT", v/1e12)
	case v >= 1e9:
		return fmt.Sprintf("$%.1fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("$%.1fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("$%.1fK", v/1e3)
	default:
		return fmt.Sprintf("$%.0f", v)
	}
}
