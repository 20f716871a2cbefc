package sandbox

import (
	"reflect"

	"github.com/KaramelBytes/sheetchat/internal/chart"
	"github.com/KaramelBytes/sheetchat/internal/frame"
)

// Kind is the closed set of result shapes.
type Kind string

const (
	KindAbsent  Kind = "absent"
	KindTable   Kind = "table"
	KindChart   Kind = "chart"
	KindScalar  Kind = "scalar"
	KindUnknown Kind = "unknown"
)

// Result is the classified value a snippet bound to ResultVar.
type Result struct {
	Kind  Kind
	Value any
}

// Table returns the frame for KindTable results.
func (r Result) Table() (*frame.Frame, bool) {
	f, ok := r.Value.(*frame.Frame)
	return f, ok && r.Kind == KindTable
}

// Chart returns the figure for KindChart results.
func (r Result) Chart() (*chart.Figure, bool) {
	fig, ok := r.Value.(*chart.Figure)
	return fig, ok && r.Kind == KindChart
}

// Classify maps an exported runtime value onto a Kind. Tables are tested
// first by concrete type, then charts, then scalar-like values.
func Classify(v any) Result {
	switch x := v.(type) {
	case nil:
		return Result{Kind: KindAbsent}
	case *frame.Frame:
		if x == nil {
			return Result{Kind: KindAbsent}
		}
		return Result{Kind: KindTable, Value: x}
	case *chart.Figure:
		if x == nil {
			return Result{Kind: KindAbsent}
		}
		return Result{Kind: KindChart, Value: x}
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return Result{Kind: KindScalar, Value: x}
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return Result{Kind: KindScalar, Value: v}
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			return Result{Kind: KindScalar, Value: v}
		}
	}
	return Result{Kind: KindUnknown, Value: v}
}
