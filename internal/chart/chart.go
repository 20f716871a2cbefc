// Package chart builds figure descriptions from frames. Figures are plain
// data: they export to a Vega-Lite spec for web clients and render as text
// bars in the terminal.
package chart

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/KaramelBytes/sheetchat/internal/frame"
)

// Kind names the figure type.
type Kind string

const (
	KindBar       Kind = "bar"
	KindLine      Kind = "line"
	KindScatter   Kind = "scatter"
	KindPie       Kind = "pie"
	KindHistogram Kind = "histogram"
)

// Series is one named run of y values aligned with Figure.X.
type Series struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

// Figure is a chart ready to show.
type Figure struct {
	Kind   Kind     `json:"kind"`
	Title  string   `json:"title,omitempty"`
	XLabel string   `json:"x_label,omitempty"`
	YLabel string   `json:"y_label,omitempty"`
	X      []any    `json:"x"`
	Series []Series `json:"series"`
}

const (
	defaultBins = 10
	maxBins     = 100
)

// Options are the snippet-facing chart settings.
//
//	x      column for the x axis or categories
//	y      column name, or list of names
//	title  figure title
//	agg    sum|mean|min|max|count|none (bar and pie default to sum)
//	bins   histogram bin count
type Options map[string]any

func (o Options) str(key string) string {
	if v, ok := o[key]; ok && v != nil {
		return strings.TrimSpace(fmt.Sprint(v))
	}
	return ""
}

func (o Options) names(key string) []string {
	switch v := o[key].(type) {
	case string:
		if v != "" {
			return []string{v}
		}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, x := range v {
			out = append(out, fmt.Sprint(x))
		}
		return out
	}
	return nil
}

func (o Options) int(key string, def int) int {
	switch v := o[key].(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	}
	return def
}

// Namespace is the chart toolkit exposed to snippets as "plot".
type Namespace struct{}

func (Namespace) Bar(f *frame.Frame, opts Options) (*Figure, error) {
	return build(KindBar, f, opts, "sum")
}

func (Namespace) Line(f *frame.Frame, opts Options) (*Figure, error) {
	return build(KindLine, f, opts, "none")
}

func (Namespace) Scatter(f *frame.Frame, opts Options) (*Figure, error) {
	return build(KindScatter, f, opts, "none")
}

func (Namespace) Pie(f *frame.Frame, opts Options) (*Figure, error) {
	fig, err := build(KindPie, f, opts, "sum")
	if err != nil {
		return nil, err
	}
	if len(fig.Series) != 1 {
		return nil, errors.New("pie: exactly one y column is required")
	}
	return fig, nil
}

// Histogram counts numeric values of column x into equal-width bins.
func (Namespace) Histogram(f *frame.Frame, opts Options) (*Figure, error) {
	if f == nil {
		return nil, errors.New("histogram: table is required")
	}
	x := opts.str("x")
	if x == "" {
		return nil, errors.New("histogram: option x is required")
	}
	vals, err := f.Col(x)
	if err != nil {
		return nil, err
	}
	var xs []float64
	for _, v := range vals {
		switch n := v.(type) {
		case int64:
			xs = append(xs, float64(n))
		case float64:
			if finite(n) {
				xs = append(xs, n)
			}
		}
	}
	if len(xs) == 0 {
		return nil, fmt.Errorf("histogram: column %q has no numeric values", x)
	}
	bins := opts.int("bins", defaultBins)
	bins = max(1, min(bins, maxBins, len(xs)))
	lo, hi := xs[0], xs[0]
	for _, v := range xs {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	width := (hi - lo) / float64(bins)
	counts := make([]float64, bins)
	for _, v := range xs {
		i := bins - 1
		if width > 0 {
			i = int((v - lo) / width)
			if i >= bins {
				i = bins - 1
			}
		}
		counts[i]++
	}
	labels := make([]any, bins)
	for i := range labels {
		labels[i] = fmt.Sprintf("%s-%s", frame.FormatValue(round(lo+float64(i)*width)), frame.FormatValue(round(lo+float64(i+1)*width)))
	}
	return &Figure{
		Kind:   KindHistogram,
		Title:  opts.str("title"),
		XLabel: x,
		YLabel: "count",
		X:      labels,
		Series: []Series{{Name: "count", Values: counts}},
	}, nil
}

func round(v float64) float64 { return math.Round(v*100) / 100 }

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func build(kind Kind, f *frame.Frame, opts Options, defaultAgg string) (*Figure, error) {
	if f == nil {
		return nil, fmt.Errorf("%s: table is required", kind)
	}
	x := opts.str("x")
	ys := opts.names("y")
	if x == "" || len(ys) == 0 {
		return nil, fmt.Errorf("%s: options x and y are required", kind)
	}
	agg := opts.str("agg")
	if agg == "" {
		agg = defaultAgg
	}
	src := f
	if agg != "none" {
		g, err := f.GroupBy(x)
		if err != nil {
			return nil, err
		}
		spec := make(map[string]string, len(ys))
		for _, y := range ys {
			spec[y] = agg
		}
		if src, err = g.Agg(spec); err != nil {
			return nil, err
		}
	}
	xv, err := src.Col(x)
	if err != nil {
		return nil, err
	}
	fig := &Figure{Kind: kind, Title: opts.str("title"), XLabel: x, X: xv}
	if len(ys) == 1 {
		fig.YLabel = ys[0]
	}
	for _, y := range ys {
		col, err := src.Col(y)
		if err != nil {
			return nil, err
		}
		s := Series{Name: y, Values: make([]float64, len(col))}
		for i, v := range col {
			switch n := v.(type) {
			case int64:
				s.Values[i] = float64(n)
			case float64:
				// Division by zero in a snippet yields Inf; it is shown as missing.
				if !finite(n) {
					n = math.NaN()
				}
				s.Values[i] = n
			case nil:
				s.Values[i] = math.NaN()
			default:
				return nil, fmt.Errorf("%s: column %q is not numeric", kind, y)
			}
		}
		fig.Series = append(fig.Series, s)
	}
	return fig, nil
}

// Records flattens the figure into one record per (x, series) point.
func (fig *Figure) Records() []map[string]any {
	var out []map[string]any
	for _, s := range fig.Series {
		for i, x := range fig.X {
			rec := map[string]any{"x": frame.FormatValue(x), "series": s.Name}
			if v := s.Values[i]; finite(v) {
				rec["y"] = v
			}
			out = append(out, rec)
		}
	}
	return out
}

// Spec exports the figure as a Vega-Lite v5 specification.
func (fig *Figure) Spec() map[string]any {
	spec := map[string]any{
		"$schema": "https://vega.github.io/schema/vega-lite/v5.json",
		"data":    map[string]any{"values": fig.Records()},
	}
	if fig.Title != "" {
		spec["title"] = fig.Title
	}
	xTitle, yTitle := fig.XLabel, fig.YLabel
	color := map[string]any{"field": "series", "type": "nominal"}
	switch fig.Kind {
	case KindPie:
		spec["mark"] = map[string]any{"type": "arc"}
		spec["encoding"] = map[string]any{
			"theta": map[string]any{"field": "y", "type": "quantitative"},
			"color": map[string]any{"field": "x", "type": "nominal", "title": xTitle},
		}
		return spec
	case KindLine:
		spec["mark"] = map[string]any{"type": "line", "point": true}
	case KindScatter:
		spec["mark"] = map[string]any{"type": "point"}
	default:
		spec["mark"] = map[string]any{"type": "bar"}
	}
	xType := "nominal"
	if fig.Kind == KindScatter || fig.Kind == KindLine {
		xType = "ordinal"
	}
	enc := map[string]any{
		"x": map[string]any{"field": "x", "type": xType, "title": xTitle, "sort": nil},
		"y": map[string]any{"field": "y", "type": "quantitative", "title": yTitle},
	}
	if len(fig.Series) > 1 {
		enc["color"] = color
	}
	spec["encoding"] = enc
	return spec
}

// Totals sums each series, ignoring missing points.
func (fig *Figure) Totals() map[string]float64 {
	out := make(map[string]float64, len(fig.Series))
	for _, s := range fig.Series {
		t := 0.0
		for _, v := range s.Values {
			if finite(v) {
				t += v
			}
		}
		out[s.Name] = t
	}
	return out
}
