package render

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/sheetchat/internal/chart"
	"github.com/KaramelBytes/sheetchat/internal/frame"
	"github.com/KaramelBytes/sheetchat/internal/sandbox"
)

func TestRenderBranches(t *testing.T) {
	empty := frame.MustNew(frame.Column{Name: "sales", Kind: frame.KindInteger, Values: []any{}})
	fig := &chart.Figure{Kind: chart.KindBar, X: []any{"a"}, Series: []chart.Series{{Name: "v", Values: []float64{1}}}}

	tests := []struct {
		name     string
		res      sandbox.Result
		wantKind ActionKind
		wantAck  string
	}{
		{"empty table", sandbox.Classify(empty), ShowTable, TableAck},
		{"chart", sandbox.Classify(fig), RenderChart, ChartAck},
		{"string", sandbox.Classify("north"), ShowText, "north"},
		{"integral float", sandbox.Classify(42.0), ShowText, "42"},
		{"float", sandbox.Classify(6.5), ShowText, "6.5"},
		{"int", sandbox.Classify(int64(7)), ShowText, "7"},
		{"bool", sandbox.Classify(true), ShowText, "true"},
		{"list", sandbox.Classify([]any{"a", int64(1)}), ShowText, `["a",1]`},
		{"map", sandbox.Classify(map[string]any{"b": 2.0, "a": 1.5}), ShowText, `{"a":1.5,"b":2}`},
		{"unknown", sandbox.Classify(struct{}{}), ShowWarning, UnknownAck},
		{"absent", sandbox.Result{Kind: sandbox.KindAbsent}, ShowWarning, UnknownAck},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, ack := Render(tt.res)
			assert.Equal(t, tt.wantKind, a.Kind)
			assert.Equal(t, tt.wantAck, ack)
		})
	}
}

func TestRenderTableCarriesCSV(t *testing.T) {
	f := frame.MustNew(
		frame.Column{Name: "region", Values: []any{"north", "south"}},
		frame.Column{Name: "sales", Values: []any{10, 4}},
	)
	a, _ := Render(sandbox.Classify(f))
	assert.Equal(t, "region,sales\nnorth,10\nsouth,4\n", string(a.CSV))
	assert.Same(t, f, a.Table)
}

func TestPresent(t *testing.T) {
	rows := make([]any, MaxTerminalRows+5)
	for i := range rows {
		rows[i] = fmt.Sprintf("r%d", i)
	}
	f := frame.MustNew(frame.Column{Name: "name", Values: rows})

	var buf bytes.Buffer
	require.NoError(t, Present(&buf, Action{Kind: ShowTable, Table: f}))
	out := buf.String()
	assert.Contains(t, out, "name")
	assert.Contains(t, out, "r0")
	assert.NotContains(t, out, fmt.Sprintf("r%d", MaxTerminalRows))
	assert.Contains(t, out, fmt.Sprintf("(%d of %d rows shown)", MaxTerminalRows, MaxTerminalRows+5))

	buf.Reset()
	require.NoError(t, Present(&buf, Action{Kind: ShowWarning, Text: UnknownAck}))
	assert.Contains(t, buf.String(), UnknownAck)

	buf.Reset()
	require.NoError(t, Present(&buf, Action{Kind: ShowText, Text: "42"}))
	assert.Equal(t, "42\n", buf.String())

	buf.Reset()
	fig := &chart.Figure{Kind: chart.KindBar, Title: "T", X: []any{"a"}, Series: []chart.Series{{Name: "v", Values: []float64{1}}}}
	require.NoError(t, Present(&buf, Action{Kind: RenderChart, Chart: fig}))
	assert.True(t, strings.HasPrefix(stripANSI(buf.String()), "T\n"))
}

func stripANSI(s string) string {
	var b strings.Builder
	skip := false
	for _, r := range s {
		switch {
		case r == '\x1b':
			skip = true
		case skip && (r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z'):
			skip = false
		case !skip:
			b.WriteRune(r)
		}
	}
	return b.String()
}
