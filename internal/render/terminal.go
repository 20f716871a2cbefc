package render

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"

	"github.com/KaramelBytes/sheetchat/internal/frame"
)

// MaxTerminalRows caps table rows printed in the terminal.
const MaxTerminalRows = 50

const chartWidth = 72

var warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

// Present writes an action for a terminal reader.
func Present(w io.Writer, a Action) error {
	switch a.Kind {
	case ShowTable:
		return WriteTable(w, a.Table, MaxTerminalRows)
	case RenderChart:
		_, err := io.WriteString(w, a.Chart.Terminal(chartWidth))
		return err
	case ShowWarning:
		_, err := fmt.Fprintln(w, warnStyle.Render("⚠ "+a.Text))
		return err
	default:
		_, err := fmt.Fprintln(w, a.Text)
		return err
	}
}

// WriteTable prints up to maxRows rows of f with a footer line when truncated.
func WriteTable(w io.Writer, f *frame.Frame, maxRows int) error {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	table.SetBorder(true)
	table.SetHeader(f.Columns())
	shown := f
	if maxRows > 0 && f.Len() > maxRows {
		shown = f.Head(maxRows)
	}
	for _, row := range shown.Rows() {
		cells := make([]string, 0, len(row))
		for _, name := range f.Columns() {
			cells = append(cells, frame.FormatValue(row[name]))
		}
		table.Append(cells)
	}
	table.Render()
	if shown.Len() < f.Len() {
		_, err := fmt.Fprintf(w, "(%d of %d rows shown)\n", shown.Len(), f.Len())
		return err
	}
	_, err := fmt.Fprintf(w, "(%d rows)\n", f.Len())
	return err
}
