// Package render turns execution results into display actions and the
// acknowledgment text logged for the assistant.
package render

import (
	"encoding/json"
	"fmt"

	"github.com/KaramelBytes/sheetchat/internal/chart"
	"github.com/KaramelBytes/sheetchat/internal/frame"
	"github.com/KaramelBytes/sheetchat/internal/sandbox"
)

// Acknowledgments logged for non-scalar results.
const (
	TableAck   = "Here is the tabular data you requested."
	ChartAck   = "Here is the chart you requested."
	UnknownAck = "Assistant returned an unknown format."
)

// ExportName is the suggested file name for table downloads.
const ExportName = "result.csv"

// ActionKind selects how a front end presents a result.
type ActionKind string

const (
	ShowTable   ActionKind = "table"
	RenderChart ActionKind = "chart"
	ShowText    ActionKind = "text"
	ShowWarning ActionKind = "warning"
)

// Action is what the front end should display for one result.
type Action struct {
	Kind  ActionKind
	Table *frame.Frame
	CSV   []byte
	Chart *chart.Figure
	Text  string
}

// Render dispatches on the result kind: table, chart, scalar, then
// everything else as a warning.
func Render(res sandbox.Result) (Action, string) {
	switch res.Kind {
	case sandbox.KindTable:
		if tbl, ok := res.Table(); ok {
			return Action{Kind: ShowTable, Table: tbl, CSV: []byte(tbl.CSV())}, TableAck
		}
	case sandbox.KindChart:
		if fig, ok := res.Chart(); ok {
			return Action{Kind: RenderChart, Chart: fig}, ChartAck
		}
	case sandbox.KindScalar:
		text := FormatValue(res.Value)
		return Action{Kind: ShowText, Text: text}, text
	}
	return Action{Kind: ShowWarning, Text: UnknownAck}, UnknownAck
}

// FormatValue renders a scalar-like value: text verbatim, numbers in their
// shortest form, sequences and mappings as compact JSON with sorted keys.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(x)
	case float32:
		return frame.FormatValue(float64(x))
	case float64:
		return frame.FormatValue(x)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
