package frame

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// FromRecords builds a frame from row records. Column order follows first
// appearance within the records; keys missing from a record are missing values.
func FromRecords(records []map[string]any) (*Frame, error) {
	var order []string
	seen := map[string]bool{}
	for _, rec := range records {
		keys := make([]string, 0, len(rec))
		for k := range rec {
			if !seen[k] {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			seen[k] = true
			order = append(order, k)
		}
	}
	cols := make([]Column, len(order))
	for i, name := range order {
		vals := make([]any, len(records))
		for r, rec := range records {
			vals[r] = rec[name]
		}
		cols[i] = Column{Name: name, Values: vals}
	}
	return New(cols...)
}

// Namespace is the table constructor toolkit exposed to snippets as "tbl".
type Namespace struct{}

// FromRecords builds a frame from an array of plain objects.
func (Namespace) FromRecords(records []map[string]any) (*Frame, error) {
	return FromRecords(records)
}

// FromColumns builds a frame from an object of equal-length arrays. Columns
// are ordered by name.
func (Namespace) FromColumns(data map[string][]any) (*Frame, error) {
	names := make([]string, 0, len(data))
	for n := range data {
		names = append(names, n)
	}
	sort.Strings(names)
	cols := make([]Column, len(names))
	for i, n := range names {
		cols[i] = Column{Name: n, Values: data[n]}
	}
	return New(cols...)
}

// Concat stacks frames with identical column names.
func (Namespace) Concat(frames ...*Frame) (*Frame, error) {
	if len(frames) == 0 {
		return nil, errors.New("concat: no frames given")
	}
	base := frames[0].Columns()
	cols := make([]Column, len(base))
	for i, n := range base {
		cols[i] = Column{Name: n}
	}
	for fi, fr := range frames {
		if fr == nil {
			return nil, fmt.Errorf("concat: frame %d is null", fi)
		}
		if strings.Join(fr.Columns(), "\x00") != strings.Join(base, "\x00") {
			return nil, fmt.Errorf("concat: frame %d columns %v differ from %v", fi, fr.Columns(), base)
		}
		for i := range cols {
			cols[i].Values = append(cols[i].Values, fr.cols[i].Values...)
		}
	}
	return New(cols...)
}

// Merge joins two frames on a shared key column. how is "inner" (default)
// or "left". Non-key columns present in both get _x and _y suffixes.
func (Namespace) Merge(left, right *Frame, on string, how ...string) (*Frame, error) {
	if left == nil || right == nil {
		return nil, errors.New("merge: both frames are required")
	}
	mode := "inner"
	if len(how) > 0 && how[0] != "" {
		mode = strings.ToLower(how[0])
	}
	if mode != "inner" && mode != "left" {
		return nil, fmt.Errorf("merge: unsupported join %q", mode)
	}
	lk, err := left.column(on)
	if err != nil {
		return nil, err
	}
	rk, err := right.column(on)
	if err != nil {
		return nil, err
	}
	index := map[string][]int{}
	for r, v := range rk.Values {
		if v == nil {
			continue
		}
		k := FormatValue(v)
		index[k] = append(index[k], r)
	}
	var li, ri []int
	for l, v := range lk.Values {
		matches := []int(nil)
		if v != nil {
			matches = index[FormatValue(v)]
		}
		if len(matches) == 0 && mode == "left" {
			li = append(li, l)
			ri = append(ri, -1)
		}
		for _, r := range matches {
			li = append(li, l)
			ri = append(ri, r)
		}
	}
	rightNames := right.Columns()
	leftNames := left.Columns()
	var cols []Column
	for _, c := range left.cols {
		name := c.Name
		if name != on && contains(rightNames, name) {
			name += "_x"
		}
		vals := make([]any, len(li))
		for j, l := range li {
			vals[j] = c.Values[l]
		}
		cols = append(cols, Column{Name: name, Kind: c.Kind, Values: vals})
	}
	for _, c := range right.cols {
		if c.Name == on {
			continue
		}
		name := c.Name
		if contains(leftNames, name) {
			name += "_y"
		}
		vals := make([]any, len(ri))
		for j, r := range ri {
			if r >= 0 {
				vals[j] = c.Values[r]
			}
		}
		cols = append(cols, Column{Name: name, Kind: c.Kind, Values: vals})
	}
	return New(cols...)
}

func contains(names []string, n string) bool {
	for _, x := range names {
		if x == n {
			return true
		}
	}
	return false
}
