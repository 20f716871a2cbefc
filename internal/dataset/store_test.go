package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/sheetchat/internal/frame"
	"github.com/KaramelBytes/sheetchat/internal/ingest"
)

func table(t *testing.T, rows, cols int) *frame.Frame {
	t.Helper()
	cs := make([]frame.Column, cols)
	for c := range cs {
		vals := make([]any, rows)
		for r := range vals {
			vals[r] = r * c
		}
		cs[c] = frame.Column{Name: fmt.Sprintf("c%d", c), Values: vals}
	}
	f, err := frame.New(cs...)
	require.NoError(t, err)
	return f
}

func TestLoadWithinBounds(t *testing.T) {
	s := NewStore()
	assert.Nil(t, s.Current())
	assert.False(t, s.Loaded())

	df := table(t, MaxRows, MaxCols)
	require.NoError(t, s.Load("full.csv", df))
	assert.True(t, s.Current().Equal(df))
	assert.Equal(t, "full.csv", s.Name())
}

func TestLoadRejectsOversize(t *testing.T) {
	s := NewStore()
	prior := table(t, 3, 2)
	require.NoError(t, s.Load("prior.csv", prior))

	err := s.Load("tall.csv", table(t, MaxRows+1, 1))
	require.ErrorIs(t, err, ErrSizeExceeded)
	var se *SizeExceededError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "rows", se.Bound)
	assert.Equal(t, MaxRows+1, se.Actual)
	assert.Equal(t, "The file has too many rows (501). Maximum allowed is 500.", err.Error())

	err = s.Load("wide.csv", table(t, 2, MaxCols+1))
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "columns", se.Bound)

	err = s.Load("both.csv", table(t, MaxRows+1, MaxCols+1))
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "rows", se.Bound)

	assert.Same(t, prior, s.Current())
	assert.Equal(t, "prior.csv", s.Name())
}

func TestOversizeIntoEmptyStore(t *testing.T) {
	s := NewStore()
	require.Error(t, s.Load("tall.csv", table(t, MaxRows+1, 1)))
	assert.Nil(t, s.Current())
	require.Error(t, s.Load("nil", nil))
}

func TestReset(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Load("a.csv", table(t, 1, 1)))
	s.Reset()
	assert.Nil(t, s.Current())
	assert.Empty(t, s.Name())
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "people.csv")
	require.NoError(t, os.WriteFile(p, []byte("name,age\nAda,36\nLin,\n"), 0o644))

	s := NewStore()
	require.NoError(t, s.LoadFile(p, ingest.Options{}))
	assert.Equal(t, "people.csv", s.Name())
	assert.Equal(t, []int{2, 2}, s.Current().Shape())

	var b strings.Builder
	b.WriteString("n\n")
	for i := 0; i <= MaxRows; i++ {
		fmt.Fprintf(&b, "%d\n", i)
	}
	big := filepath.Join(dir, "big.csv")
	require.NoError(t, os.WriteFile(big, []byte(b.String()), 0o644))
	require.ErrorIs(t, s.LoadFile(big, ingest.Options{}), ErrSizeExceeded)
	assert.Equal(t, "people.csv", s.Name())
}

func TestConcurrentReads(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Load("a.csv", table(t, 5, 2)))
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = Summarize(s.Current())
		}()
	}
	wg.Wait()
}

func TestSummarize(t *testing.T) {
	df, err := frame.New(
		frame.Column{Name: "name", Values: []any{nil, "Ada", "Lin", "Bo"}},
		frame.Column{Name: "age", Values: []any{36, nil, nil, nil}},
		frame.Column{Name: "empty", Kind: frame.KindText, Values: []any{nil, nil, nil, nil}},
	)
	require.NoError(t, err)
	got := Summarize(df)
	assert.Equal(t, Schema{
		Rows: 4,
		Columns: []ColumnInfo{
			{Name: "name", Kind: frame.KindText, Samples: []any{"Ada", "Lin"}},
			{Name: "age", Kind: frame.KindInteger, Samples: []any{int64(36)}},
			{Name: "empty", Kind: frame.KindText, Samples: []any{}},
		},
	}, got)
	assert.Equal(t, Schema{}, Summarize(nil))
}
