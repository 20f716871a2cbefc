package frame

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"
)

const defaultPreview = 5

// Head returns the first n rows (5 when n is omitted).
func (f *Frame) Head(n ...int) *Frame {
	k := clampCount(n, f.rows)
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	return f.take(idx)
}

// Tail returns the last n rows (5 when n is omitted).
func (f *Frame) Tail(n ...int) *Frame {
	k := clampCount(n, f.rows)
	idx := make([]int, k)
	for i := range idx {
		idx[i] = f.rows - k + i
	}
	return f.take(idx)
}

func clampCount(n []int, rows int) int {
	k := defaultPreview
	if len(n) > 0 {
		k = n[0]
	}
	if k < 0 {
		k = 0
	}
	if k > rows {
		k = rows
	}
	return k
}

// Col returns a copy of the named column's values.
func (f *Frame) Col(name string) ([]any, error) {
	c, err := f.column(name)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(c.Values))
	copy(out, c.Values)
	return out, nil
}

// Row returns the i-th row as a record.
func (f *Frame) Row(i int) (Row, error) {
	if i < 0 || i >= f.rows {
		return nil, fmt.Errorf("row %d out of range [0,%d)", i, f.rows)
	}
	return f.row(i), nil
}

// Rows returns every row as a record.
func (f *Frame) Rows() []Row {
	out := make([]Row, f.rows)
	for i := range out {
		out[i] = f.row(i)
	}
	return out
}

// Select keeps the named columns, in the order given.
func (f *Frame) Select(cols ...any) (*Frame, error) {
	names, err := flattenNames(cols)
	if err != nil {
		return nil, err
	}
	out := &Frame{rows: f.rows}
	for _, n := range names {
		i, err := f.index(n)
		if err != nil {
			return nil, err
		}
		if slices.Contains(out.Columns(), n) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateColumn, n)
		}
		out.cols = append(out.cols, f.ColumnAt(i))
	}
	return out, nil
}

// Drop removes the named columns.
func (f *Frame) Drop(cols ...any) (*Frame, error) {
	names, err := flattenNames(cols)
	if err != nil {
		return nil, err
	}
	for _, n := range names {
		if _, err := f.index(n); err != nil {
			return nil, err
		}
	}
	out := &Frame{rows: f.rows}
	for i, c := range f.cols {
		if !slices.Contains(names, c.Name) {
			out.cols = append(out.cols, f.ColumnAt(i))
		}
	}
	return out, nil
}

// Rename maps old column names to new ones.
func (f *Frame) Rename(mapping map[string]string) (*Frame, error) {
	for old := range mapping {
		if _, err := f.index(old); err != nil {
			return nil, err
		}
	}
	out := f.Clone()
	seen := map[string]struct{}{}
	for i := range out.cols {
		if to, ok := mapping[out.cols[i].Name]; ok {
			out.cols[i].Name = strings.TrimSpace(to)
		}
		if out.cols[i].Name == "" {
			return nil, errors.New("rename: empty column name")
		}
		if _, dup := seen[out.cols[i].Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateColumn, out.cols[i].Name)
		}
		seen[out.cols[i].Name] = struct{}{}
	}
	return out, nil
}

// Filter keeps the rows for which pred returns true.
func (f *Frame) Filter(pred func(Row) bool) (*Frame, error) {
	if pred == nil {
		return nil, errors.New("filter: predicate is required")
	}
	var idx []int
	for i := 0; i < f.rows; i++ {
		if pred(f.row(i)) {
			idx = append(idx, i)
		}
	}
	return f.take(idx), nil
}

// Where keeps rows whose column compares true against value. Supported
// operators: == != > >= < <= contains in.
func (f *Frame) Where(col, op string, value any) (*Frame, error) {
	c, err := f.column(col)
	if err != nil {
		return nil, err
	}
	match, err := comparator(op, value)
	if err != nil {
		return nil, err
	}
	var idx []int
	for i, v := range c.Values {
		if match(v) {
			idx = append(idx, i)
		}
	}
	return f.take(idx), nil
}

func comparator(op string, value any) (func(any) bool, error) {
	want := normalize(value)
	switch strings.TrimSpace(strings.ToLower(op)) {
	case "==", "=", "eq":
		return func(v any) bool { return compareValues(v, want) == 0 }, nil
	case "!=", "<>", "ne":
		return func(v any) bool { return compareValues(v, want) != 0 }, nil
	case ">", "gt":
		return func(v any) bool { return v != nil && want != nil && compareValues(v, want) > 0 }, nil
	case ">=", "ge":
		return func(v any) bool { return v != nil && want != nil && compareValues(v, want) >= 0 }, nil
	case "<", "lt":
		return func(v any) bool { return v != nil && want != nil && compareValues(v, want) < 0 }, nil
	case "<=", "le":
		return func(v any) bool { return v != nil && want != nil && compareValues(v, want) <= 0 }, nil
	case "contains":
		needle := strings.ToLower(FormatValue(want))
		return func(v any) bool {
			return v != nil && strings.Contains(strings.ToLower(FormatValue(v)), needle)
		}, nil
	case "in":
		set, ok := value.([]any)
		if !ok {
			return nil, fmt.Errorf("where: operator in needs a list, got %T", value)
		}
		return func(v any) bool {
			for _, s := range set {
				if compareValues(v, normalize(s)) == 0 {
					return true
				}
			}
			return false
		}, nil
	default:
		return nil, fmt.Errorf("where: unsupported operator %q", op)
	}
}

// Sort orders rows by a column, ascending unless descending is true.
// Missing values always sort last and ties keep their original order.
func (f *Frame) Sort(col string, descending ...bool) (*Frame, error) {
	c, err := f.column(col)
	if err != nil {
		return nil, err
	}
	desc := len(descending) > 0 && descending[0]
	idx := make([]int, f.rows)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		va, vb := c.Values[idx[a]], c.Values[idx[b]]
		if va == nil || vb == nil {
			return vb == nil && va != nil
		}
		if desc {
			return compareValues(va, vb) > 0
		}
		return compareValues(va, vb) < 0
	})
	return f.take(idx), nil
}

// Mutate returns a frame with column name set to fn(row) for every row. An
// existing column of that name is replaced in place.
func (f *Frame) Mutate(name string, fn func(Row) any) (*Frame, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("mutate: column name is required")
	}
	if fn == nil {
		return nil, errors.New("mutate: function is required")
	}
	vals := make([]any, f.rows)
	for i := range vals {
		vals[i] = normalize(fn(f.row(i)))
	}
	kind, vals := inferKind(vals)
	out := f.Clone()
	col := Column{Name: name, Kind: kind, Values: vals}
	if i, err := out.index(name); err == nil {
		out.cols[i] = col
	} else {
		out.cols = append(out.cols, col)
	}
	return out, nil
}

// Dropna removes rows with a missing value in any of cols (all columns when
// none are named).
func (f *Frame) Dropna(cols ...any) (*Frame, error) {
	names, err := flattenNames(cols)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		names = f.Columns()
	}
	check := make([]*Column, 0, len(names))
	for _, n := range names {
		c, err := f.column(n)
		if err != nil {
			return nil, err
		}
		check = append(check, c)
	}
	var idx []int
rows:
	for i := 0; i < f.rows; i++ {
		for _, c := range check {
			if c.Values[i] == nil {
				continue rows
			}
		}
		idx = append(idx, i)
	}
	return f.take(idx), nil
}

// Unique returns the distinct non-missing values of a column in first-seen order.
func (f *Frame) Unique(col string) ([]any, error) {
	c, err := f.column(col)
	if err != nil {
		return nil, err
	}
	return distinct(c.Values), nil
}

// Nunique counts distinct non-missing values.
func (f *Frame) Nunique(col string) (int, error) {
	u, err := f.Unique(col)
	return len(u), err
}

func distinct(vals []any) []any {
	seen := map[string]struct{}{}
	var out []any
	for _, v := range vals {
		if v == nil {
			continue
		}
		k := fmt.Sprintf("%T:%s", v, FormatValue(v))
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	return out
}

// ValueCounts tabulates occurrences of each value, most frequent first.
func (f *Frame) ValueCounts(col string) (*Frame, error) {
	g, err := f.GroupBy(col)
	if err != nil {
		return nil, err
	}
	counts := g.Count()
	return counts.Sort(counts.cols[len(counts.cols)-1].Name, true)
}

// Count returns the number of non-missing values in a column, or the row
// count when no column is named.
func (f *Frame) Count(col ...string) (int, error) {
	if len(col) == 0 {
		return f.rows, nil
	}
	c, err := f.column(col[0])
	if err != nil {
		return 0, err
	}
	n := 0
	for _, v := range c.Values {
		if v != nil {
			n++
		}
	}
	return n, nil
}

func (f *Frame) reduce(col, fn string) (any, error) {
	c, err := f.column(col)
	if err != nil {
		return nil, err
	}
	return aggregate(c.Values, fn)
}

func (f *Frame) reduceFloat(col, fn string) (float64, error) {
	v, err := f.reduce(col, fn)
	if err != nil {
		return 0, err
	}
	x, ok := toFloat(v)
	if !ok {
		return math.NaN(), nil
	}
	return x, nil
}

func (f *Frame) Sum(col string) (float64, error)    { return f.reduceFloat(col, "sum") }
func (f *Frame) Mean(col string) (float64, error)   { return f.reduceFloat(col, "mean") }
func (f *Frame) Median(col string) (float64, error) { return f.reduceFloat(col, "median") }
func (f *Frame) Std(col string) (float64, error)    { return f.reduceFloat(col, "std") }
func (f *Frame) Min(col string) (any, error)        { return f.reduce(col, "min") }
func (f *Frame) Max(col string) (any, error)        { return f.reduce(col, "max") }

// Corr is the Pearson correlation between two numeric columns over rows
// where both are present.
func (f *Frame) Corr(a, b string) (float64, error) {
	ca, err := f.column(a)
	if err != nil {
		return 0, err
	}
	cb, err := f.column(b)
	if err != nil {
		return 0, err
	}
	var xs, ys []float64
	for i := 0; i < f.rows; i++ {
		x, okx := toFloat(ca.Values[i])
		y, oky := toFloat(cb.Values[i])
		if okx && oky {
			xs = append(xs, x)
			ys = append(ys, y)
		}
	}
	if len(xs) < 2 {
		return math.NaN(), nil
	}
	mx, my := mean(xs), mean(ys)
	var sxy, sxx, syy float64
	for i := range xs {
		dx, dy := xs[i]-mx, ys[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return math.NaN(), nil
	}
	return sxy / math.Sqrt(sxx*syy), nil
}

// Describe summarizes numeric columns: count, mean, std, min, median, max.
func (f *Frame) Describe() *Frame {
	stats := []string{"count", "mean", "std", "min", "median", "max"}
	labels := make([]any, len(stats))
	for i, s := range stats {
		labels[i] = s
	}
	cols := []Column{{Name: "stat", Kind: KindText, Values: labels}}
	for _, c := range f.cols {
		if c.Kind != KindInteger && c.Kind != KindFloat {
			continue
		}
		vals := make([]any, len(stats))
		for i, s := range stats {
			v, _ := aggregate(c.Values, s)
			if x, ok := toFloat(v); ok {
				vals[i] = x
			}
		}
		cols = append(cols, Column{Name: c.Name, Kind: KindFloat, Values: vals})
	}
	if slices.Contains(f.Columns(), "stat") {
		cols[0].Name = "statistic"
	}
	out, _ := New(cols...)
	return out
}

func numbers(vals []any) []float64 {
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if x, ok := toFloat(v); ok {
			out = append(out, x)
		}
	}
	return out
}

func mean(xs []float64) float64 {
	s := 0.0
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

// aggregate reduces vals with one of: sum mean median std min max count nunique first last.
func aggregate(vals []any, fn string) (any, error) {
	fn = strings.ToLower(strings.TrimSpace(fn))
	switch fn {
	case "sum":
		s := 0.0
		for _, x := range numbers(vals) {
			s += x
		}
		return s, nil
	case "mean", "avg", "average":
		xs := numbers(vals)
		if len(xs) == 0 {
			return nil, nil
		}
		return mean(xs), nil
	case "median":
		xs := numbers(vals)
		if len(xs) == 0 {
			return nil, nil
		}
		sort.Float64s(xs)
		m := len(xs) / 2
		if len(xs)%2 == 1 {
			return xs[m], nil
		}
		return (xs[m-1] + xs[m]) / 2, nil
	case "std":
		xs := numbers(vals)
		if len(xs) < 2 {
			return nil, nil
		}
		m := mean(xs)
		ss := 0.0
		for _, x := range xs {
			ss += (x - m) * (x - m)
		}
		return math.Sqrt(ss / float64(len(xs)-1)), nil
	case "min", "max":
		var best any
		for _, v := range vals {
			if v == nil {
				continue
			}
			if best == nil {
				best = v
				continue
			}
			c := compareValues(v, best)
			if (fn == "min" && c < 0) || (fn == "max" && c > 0) {
				best = v
			}
		}
		return best, nil
	case "count":
		n := int64(0)
		for _, v := range vals {
			if v != nil {
				n++
			}
		}
		return n, nil
	case "nunique":
		return int64(len(distinct(vals))), nil
	case "first":
		for _, v := range vals {
			if v != nil {
				return v, nil
			}
		}
		return nil, nil
	case "last":
		for i := len(vals) - 1; i >= 0; i-- {
			if vals[i] != nil {
				return vals[i], nil
			}
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported aggregation %q", fn)
	}
}

// flattenNames accepts column names given as separate arguments or as lists.
func flattenNames(args []any) ([]string, error) {
	var out []string
	for _, a := range args {
		switch x := a.(type) {
		case string:
			out = append(out, x)
		case []string:
			out = append(out, x...)
		case []any:
			inner, err := flattenNames(x)
			if err != nil {
				return nil, err
			}
			out = append(out, inner...)
		default:
			return nil, fmt.Errorf("column name must be a string, got %T", a)
		}
	}
	return out, nil
}
