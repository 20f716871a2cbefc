package chart

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/KaramelBytes/sheetchat/internal/frame"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	barStyles  = []lipgloss.Style{
		lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("70")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("170")),
	}
)

const maxTerminalPoints = 40

// Terminal draws the figure as horizontal bars, one line per point and
// series, fitting width columns.
func (fig *Figure) Terminal(width int) string {
	if width < 40 {
		width = 40
	}
	var b strings.Builder
	title := fig.Title
	if title == "" {
		title = fmt.Sprintf("%s chart", fig.Kind)
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")

	labelW := 0
	n := len(fig.X)
	if n > maxTerminalPoints {
		n = maxTerminalPoints
	}
	for i := 0; i < n; i++ {
		labelW = max(labelW, lipgloss.Width(frame.FormatValue(fig.X[i])))
	}
	labelW = min(labelW, width/3)

	peak := 0.0
	for _, s := range fig.Series {
		for _, v := range s.Values {
			if finite(v) {
				peak = math.Max(peak, math.Abs(v))
			}
		}
	}
	barW := max(0, width-labelW-16)
	for i := 0; i < n; i++ {
		for si, s := range fig.Series {
			label := ""
			if si == 0 {
				label = truncate(frame.FormatValue(fig.X[i]), labelW)
			}
			v := s.Values[i]
			cells := 0
			if peak > 0 && finite(v) {
				cells = min(max(0, int(math.Round(math.Abs(v)/peak*float64(barW)))), barW)
			}
			style := barStyles[si%len(barStyles)]
			fmt.Fprintf(&b, "%s %s %s\n",
				labelStyle.Render(fmt.Sprintf("%-*s", labelW, label)),
				style.Render(strings.Repeat("█", cells)),
				frame.FormatValue(roundForDisplay(v)))
		}
	}
	if len(fig.X) > n {
		fmt.Fprintf(&b, "%s\n", labelStyle.Render(fmt.Sprintf("... %d more points", len(fig.X)-n)))
	}
	if len(fig.Series) > 1 {
		parts := make([]string, len(fig.Series))
		for si, s := range fig.Series {
			parts[si] = barStyles[si%len(barStyles)].Render("█") + " " + s.Name
		}
		b.WriteString(strings.Join(parts, "  "))
		b.WriteString("\n")
	}
	return b.String()
}

func roundForDisplay(v float64) any {
	if !finite(v) {
		return nil
	}
	return math.Round(v*1000) / 1000
}

func truncate(s string, w int) string {
	r := []rune(s)
	if len(r) <= w {
		return s
	}
	if w <= 1 {
		return string(r[:w])
	}
	return string(r[:w-1]) + "…"
}
