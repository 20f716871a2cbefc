package sandbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/sheetchat/internal/chart"
	"github.com/KaramelBytes/sheetchat/internal/frame"
)

func companies(t *testing.T) *frame.Frame {
	t.Helper()
	f, err := frame.New(
		frame.Column{Name: "region", Values: []any{"north", "south", "north"}},
		frame.Column{Name: "sales", Values: []any{10, 4, 6}},
	)
	require.NoError(t, err)
	return f
}

func run(t *testing.T, code string) (Result, error) {
	t.Helper()
	return New(2*time.Second, nil).Execute(context.Background(), code, companies(t))
}

func requireExecErr(t *testing.T, err error) *ExecutionError {
	t.Helper()
	require.Error(t, err)
	var ee *ExecutionError
	require.True(t, errors.As(err, &ee), "want *ExecutionError, got %T", err)
	assert.NotEmpty(t, ee.Cause)
	return ee
}

func TestEmptyFilterIsStillATable(t *testing.T) {
	for _, code := range []string{
		`result = df.filter(r => r.sales > 1e9)`,
		`result = df.where("sales", ">", 1e9)`,
	} {
		res, err := run(t, code)
		require.NoError(t, err)
		require.Equal(t, KindTable, res.Kind, code)
		tbl, ok := res.Table()
		require.True(t, ok)
		assert.Equal(t, 0, tbl.Len())
		assert.Equal(t, []string{"region", "sales"}, tbl.Columns())
	}
}

func TestScalarResults(t *testing.T) {
	tests := []struct {
		code string
		want any
	}{
		{`result = df.mean("sales")`, 20.0 / 3},
		{`result = df.len()`, int64(3)},
		{`result = "hello"`, "hello"},
		{`result = df.sales === undefined`, true},
		{`result = df.unique("region")`, []any{"north", "south"}},
		{`result = {a: 1, b: [1, 2]}`, map[string]any{"a": int64(1), "b": []any{int64(1), int64(2)}}},
		{`let result = 5`, int64(5)},
		{`const result = "x"`, "x"},
	}
	for _, tt := range tests {
		res, err := run(t, tt.code)
		require.NoError(t, err, tt.code)
		assert.Equal(t, KindScalar, res.Kind, tt.code)
		assert.Equal(t, tt.want, res.Value, tt.code)
	}
}

func TestChartResult(t *testing.T) {
	res, err := run(t, `result = plot.bar(df, {x: "region", y: "sales", title: "Sales"})`)
	require.NoError(t, err)
	require.Equal(t, KindChart, res.Kind)
	fig, ok := res.Chart()
	require.True(t, ok)
	assert.Equal(t, chart.KindBar, fig.Kind)
	assert.Equal(t, []float64{16, 4}, fig.Series[0].Values)
}

func TestGroupingPipeline(t *testing.T) {
	res, err := run(t, `
const totals = df.groupBy("region").sum("sales")
result = totals.sort("sales", true)
`)
	require.NoError(t, err)
	tbl, ok := res.Table()
	require.True(t, ok)
	assert.Equal(t, "region,sales\nnorth,16\nsouth,4\n", tbl.CSV())
}

func TestTableNamespace(t *testing.T) {
	res, err := run(t, `result = tbl.fromRecords([{k: "a", v: 1}, {k: "b", v: 2.5}])`)
	require.NoError(t, err)
	tbl, ok := res.Table()
	require.True(t, ok)
	assert.Equal(t, "k,v\na,1\nb,2.5\n", tbl.CSV())
}

func TestAbsentAndUnknown(t *testing.T) {
	res, err := run(t, `const x = 1`)
	require.NoError(t, err)
	assert.Equal(t, KindAbsent, res.Kind)

	res, err = run(t, `result = null`)
	require.NoError(t, err)
	assert.Equal(t, KindAbsent, res.Kind)

	res, err = run(t, `result = df.groupBy("region")`)
	require.NoError(t, err)
	assert.Equal(t, KindUnknown, res.Kind)

	res, err = run(t, `result = () => 1`)
	require.NoError(t, err)
	assert.Equal(t, KindUnknown, res.Kind)
}

func TestFailuresAreExecutionErrors(t *testing.T) {
	for _, code := range []string{
		`result = df.filter(`,
		`result = missing.value`,
		`throw new Error("boom")`,
		`result = df.col("nope")`,
		`result = eval("1+1")`,
		`result = Function("return 1")()`,
		`result = (function(){}).constructor("return 1")()`,
		`result = require("fs")`,
		`console.log("x")`,
		`result = globalThis`,
		`result = Reflect.ownKeys(df)`,
	} {
		_, err := run(t, code)
		requireExecErr(t, err)
	}
}

func TestGoErrorCauseIsReadable(t *testing.T) {
	_, err := run(t, `result = df.col("nope")`)
	ee := requireExecErr(t, err)
	assert.Contains(t, ee.Cause, "unknown column")
	assert.NotContains(t, ee.Cause, "GoError")
}

func TestTimeout(t *testing.T) {
	start := time.Now()
	_, err := New(100*time.Millisecond, nil).Execute(context.Background(), `while (true) {}`, companies(t))
	ee := requireExecErr(t, err)
	assert.Contains(t, ee.Cause, "timed out")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	_, err := New(10*time.Second, nil).Execute(ctx, `while (true) {}`, companies(t))
	ee := requireExecErr(t, err)
	assert.Contains(t, ee.Cause, "cancelled")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDatasetIsNotMutated(t *testing.T) {
	df := companies(t)
	before := df.CSV()
	ex := New(time.Second, nil)
	code := `df.rows()[0].sales = 999; df = null; result = 1`
	_, err := ex.Execute(context.Background(), code, df)
	require.NoError(t, err)
	assert.Equal(t, before, df.CSV())
}

func TestIdempotent(t *testing.T) {
	df := companies(t)
	ex := New(time.Second, nil)
	code := `result = df.mutate("double", r => r.sales * 2).where("double", ">", 10)`
	a, err := ex.Execute(context.Background(), code, df)
	require.NoError(t, err)
	b, err := ex.Execute(context.Background(), code, df)
	require.NoError(t, err)
	ta, _ := a.Table()
	tb, _ := b.Table()
	assert.True(t, ta.Equal(tb))
	assert.Equal(t, ta.CSV(), tb.CSV())
}

func TestNilDataset(t *testing.T) {
	_, err := New(time.Second, nil).Execute(context.Background(), `result = 1`, nil)
	requireExecErr(t, err)
}

func TestClassifyPriority(t *testing.T) {
	assert.Equal(t, KindTable, Classify(frame.MustNew()).Kind)
	assert.Equal(t, KindChart, Classify(&chart.Figure{}).Kind)
	assert.Equal(t, KindScalar, Classify(3.5).Kind)
	assert.Equal(t, KindScalar, Classify([]string{"a"}).Kind)
	assert.Equal(t, KindUnknown, Classify(map[int]string{}).Kind)
	assert.Equal(t, KindUnknown, Classify(time.Now()).Kind)
	assert.Equal(t, KindAbsent, Classify(nil).Kind)
	var nilFrame *frame.Frame
	assert.Equal(t, KindAbsent, Classify(nilFrame).Kind)
}
