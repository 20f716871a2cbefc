// Package frame holds the in-memory tabular values a session works on and the
// table operations analysis snippets call.
//
// Every exported *Frame method is reachable from snippets (with a lower-camel
// name), so methods never mutate their receiver: each one returns a new Frame.
package frame

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the inferred value type of a column.
type Kind string

const (
	KindInteger  Kind = "integer"
	KindFloat    Kind = "float"
	KindBoolean  Kind = "boolean"
	KindDatetime Kind = "datetime"
	KindText     Kind = "text"
)

// Column is a named, homogeneous sequence of values. Missing values are nil.
type Column struct {
	Name   string
	Kind   Kind
	Values []any
}

// Row is one record keyed by column name, as seen by snippet callbacks.
type Row = map[string]any

// Frame is an ordered set of equal-length columns.
type Frame struct {
	cols []Column
	rows int
}

var (
	ErrUnknownColumn   = errors.New("unknown column")
	ErrDuplicateColumn = errors.New("duplicate column")
	ErrRaggedColumns   = errors.New("columns have different lengths")
)

// New builds a Frame from columns, validating names and lengths. Values are
// normalized and the declared kind is re-inferred when empty.
func New(cols ...Column) (*Frame, error) {
	f := &Frame{cols: make([]Column, 0, len(cols))}
	seen := make(map[string]struct{}, len(cols))
	for i, c := range cols {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return nil, fmt.Errorf("column %d: empty name", i)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateColumn, name)
		}
		seen[name] = struct{}{}
		if i == 0 {
			f.rows = len(c.Values)
		} else if len(c.Values) != f.rows {
			return nil, fmt.Errorf("%w: %s has %d values, want %d", ErrRaggedColumns, name, len(c.Values), f.rows)
		}
		vals := make([]any, len(c.Values))
		for j, v := range c.Values {
			vals[j] = normalize(v)
		}
		kind := c.Kind
		if kind == "" {
			kind, vals = inferKind(vals)
		}
		f.cols = append(f.cols, Column{Name: name, Kind: kind, Values: vals})
	}
	return f, nil
}

// MustNew is New for fixtures; it panics on error.
func MustNew(cols ...Column) *Frame {
	f, err := New(cols...)
	if err != nil {
		panic(err)
	}
	return f
}

// Columns returns the column names in order.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.cols))
	for i, c := range f.cols {
		out[i] = c.Name
	}
	return out
}

// Shape returns [rows, columns].
func (f *Frame) Shape() []int { return []int{f.rows, len(f.cols)} }

// Len returns the number of rows.
func (f *Frame) Len() int { return f.rows }

// Width returns the number of columns.
func (f *Frame) Width() int { return len(f.cols) }

// ColumnAt returns a copy of the i-th column.
func (f *Frame) ColumnAt(i int) Column {
	c := f.cols[i]
	vals := make([]any, len(c.Values))
	copy(vals, c.Values)
	return Column{Name: c.Name, Kind: c.Kind, Values: vals}
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	out := &Frame{cols: make([]Column, len(f.cols)), rows: f.rows}
	for i := range f.cols {
		out.cols[i] = f.ColumnAt(i)
	}
	return out
}

// Equal reports whether two frames have the same columns, kinds and values.
func (f *Frame) Equal(o *Frame) bool {
	if f == nil || o == nil {
		return f == o
	}
	if f.rows != o.rows || len(f.cols) != len(o.cols) {
		return false
	}
	for i, c := range f.cols {
		oc := o.cols[i]
		if c.Name != oc.Name || c.Kind != oc.Kind {
			return false
		}
		for j := range c.Values {
			if compareValues(c.Values[j], oc.Values[j]) != 0 {
				return false
			}
		}
	}
	return true
}

func (f *Frame) index(name string) (int, error) {
	for i, c := range f.cols {
		if c.Name == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %q (have %s)", ErrUnknownColumn, name, strings.Join(f.Columns(), ", "))
}

func (f *Frame) column(name string) (*Column, error) {
	i, err := f.index(name)
	if err != nil {
		return nil, err
	}
	return &f.cols[i], nil
}

// take builds a new frame from the given row indexes, preserving kinds.
func (f *Frame) take(idx []int) *Frame {
	out := &Frame{cols: make([]Column, len(f.cols)), rows: len(idx)}
	for i, c := range f.cols {
		vals := make([]any, len(idx))
		for j, r := range idx {
			vals[j] = c.Values[r]
		}
		out.cols[i] = Column{Name: c.Name, Kind: c.Kind, Values: vals}
	}
	return out
}

func (f *Frame) row(i int) Row {
	r := make(Row, len(f.cols))
	for _, c := range f.cols {
		r[c.Name] = c.Values[i]
	}
	return r
}
