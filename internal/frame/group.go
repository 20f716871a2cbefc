package frame

import (
	"errors"
	"fmt"
	"slices"
	"sort"
)

// Grouping is a frame split by the distinct values of one or more key
// columns. Groups are ordered by key.
type Grouping struct {
	src    *Frame
	keys   []string
	groups []group
}

type group struct {
	key  []any
	rows []int
}

// GroupBy splits the frame by the given key columns. Rows with a missing key
// form their own group, ordered last.
func (f *Frame) GroupBy(cols ...any) (*Grouping, error) {
	keys, err := flattenNames(cols)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, errors.New("groupBy: at least one key column is required")
	}
	keyCols := make([]*Column, len(keys))
	for i, k := range keys {
		if keyCols[i], err = f.column(k); err != nil {
			return nil, err
		}
	}
	byKey := map[string]int{}
	g := &Grouping{src: f, keys: keys}
	for r := 0; r < f.rows; r++ {
		key := make([]any, len(keyCols))
		sig := ""
		for i, c := range keyCols {
			key[i] = c.Values[r]
			sig += fmt.Sprintf("%T:%s\x00", key[i], FormatValue(key[i]))
		}
		at, ok := byKey[sig]
		if !ok {
			at = len(g.groups)
			byKey[sig] = at
			g.groups = append(g.groups, group{key: key})
		}
		g.groups[at].rows = append(g.groups[at].rows, r)
	}
	sort.SliceStable(g.groups, func(a, b int) bool {
		for i := range keys {
			if c := compareValues(g.groups[a].key[i], g.groups[b].key[i]); c != 0 {
				return c < 0
			}
		}
		return false
	})
	return g, nil
}

// Keys returns the grouping column names.
func (g *Grouping) Keys() []string { return slices.Clone(g.keys) }

// Ngroups returns the number of groups.
func (g *Grouping) Ngroups() int { return len(g.groups) }

// Count returns the key columns plus a "count" column of group sizes.
func (g *Grouping) Count() *Frame {
	counts := make([]any, len(g.groups))
	for i, gr := range g.groups {
		counts[i] = int64(len(gr.rows))
	}
	out := g.keyFrame()
	out.cols = append(out.cols, Column{Name: uniqueName(out, "count"), Kind: KindInteger, Values: counts})
	return out
}

func (g *Grouping) Sum(cols ...any) (*Frame, error)    { return g.each("sum", cols) }
func (g *Grouping) Mean(cols ...any) (*Frame, error)   { return g.each("mean", cols) }
func (g *Grouping) Median(cols ...any) (*Frame, error) { return g.each("median", cols) }
func (g *Grouping) Min(cols ...any) (*Frame, error)    { return g.each("min", cols) }
func (g *Grouping) Max(cols ...any) (*Frame, error)    { return g.each("max", cols) }

// Agg applies one aggregation per column, e.g. {sales: "sum", price: "mean"}.
// Output columns follow the key columns in name order.
func (g *Grouping) Agg(spec map[string]string) (*Frame, error) {
	if len(spec) == 0 {
		return nil, errors.New("agg: no aggregations given")
	}
	names := make([]string, 0, len(spec))
	for n := range spec {
		names = append(names, n)
	}
	sort.Strings(names)
	out := g.keyFrame()
	for _, n := range names {
		col, err := g.aggregateColumn(n, spec[n])
		if err != nil {
			return nil, err
		}
		out.cols = append(out.cols, col)
	}
	return out, nil
}

// each applies fn to the named columns, or to every numeric non-key column.
func (g *Grouping) each(fn string, cols []any) (*Frame, error) {
	names, err := flattenNames(cols)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		for _, c := range g.src.cols {
			if (c.Kind == KindInteger || c.Kind == KindFloat) && !slices.Contains(g.keys, c.Name) {
				names = append(names, c.Name)
			}
		}
	}
	out := g.keyFrame()
	for _, n := range names {
		col, err := g.aggregateColumn(n, fn)
		if err != nil {
			return nil, err
		}
		out.cols = append(out.cols, col)
	}
	return out, nil
}

func (g *Grouping) aggregateColumn(name, fn string) (Column, error) {
	src, err := g.src.column(name)
	if err != nil {
		return Column{}, err
	}
	vals := make([]any, len(g.groups))
	for i, gr := range g.groups {
		part := make([]any, len(gr.rows))
		for j, r := range gr.rows {
			part[j] = src.Values[r]
		}
		if vals[i], err = aggregate(part, fn); err != nil {
			return Column{}, err
		}
	}
	kind, vals := inferKind(vals)
	if kind == KindText && src.Kind != KindText {
		allMissing := true
		for _, v := range vals {
			if v != nil {
				allMissing = false
				break
			}
		}
		if allMissing {
			kind = KindFloat
		}
	}
	return Column{Name: name, Kind: kind, Values: vals}, nil
}

func (g *Grouping) keyFrame() *Frame {
	out := &Frame{rows: len(g.groups)}
	for i, k := range g.keys {
		src, _ := g.src.column(k)
		vals := make([]any, len(g.groups))
		for j, gr := range g.groups {
			vals[j] = gr.key[i]
		}
		out.cols = append(out.cols, Column{Name: k, Kind: src.Kind, Values: vals})
	}
	return out
}

func uniqueName(f *Frame, base string) string {
	name := base
	for i := 2; slices.Contains(f.Columns(), name); i++ {
		name = fmt.Sprintf("%s_%d", base, i)
	}
	return name
}
