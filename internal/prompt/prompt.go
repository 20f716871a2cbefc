// Package prompt renders the instruction text sent to the completion service
// for one question about the loaded dataset.
package prompt

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/sheetchat/internal/dataset"
	"github.com/KaramelBytes/sheetchat/internal/frame"
	"github.com/KaramelBytes/sheetchat/internal/sandbox"
)

// Build returns the prompt for query over the summarized dataset. The output
// depends only on its inputs.
func Build(schema dataset.Schema, query string) string {
	var b strings.Builder
	df, result := sandbox.DatasetVar, sandbox.ResultVar

	b.WriteString("[ROLE]\n")
	fmt.Fprintf(&b, "You are an intelligent spreadsheet data analyst. You are working with a table named `%s` and answering user questions about its content.\n\n", df)

	b.WriteString("[BEHAVIOR]\n")
	b.WriteString("1. If the question is factual, return the answer in plain English.\n")
	fmt.Fprintf(&b, "2. If it needs calculations, statistics or visuals, return JavaScript code only, in one ```js fenced block, that assigns the final value to a variable named `%s`.\n\n", result)

	b.WriteString("[RULES]\n")
	b.WriteString("- Do NOT import or require anything.\n")
	b.WriteString("- Do NOT print, log or explain.\n")
	b.WriteString("- Do NOT read or write files or access the network.\n")
	fmt.Fprintf(&b, "- Use only `%s`, `%s` and `%s`; they are already in scope.\n", df, sandbox.TableNS, sandbox.ChartNS)
	fmt.Fprintf(&b, "- `%s` must be a table, a chart, text, a number, a list or an object.\n", result)
	b.WriteString("- Only output either one code block or a plain text answer.\n\n")

	b.WriteString("[AVAILABLE API]\n")
	b.WriteString(apiReference)
	b.WriteString("\n")

	b.WriteString("[DATASET]\n")
	fmt.Fprintf(&b, "Rows: %d\n", schema.Rows)
	for _, c := range schema.Columns {
		fmt.Fprintf(&b, "- %s (type: %s, sample: %s)\n", c.Name, c.Kind, sampleList(c.Samples))
	}
	b.WriteString("\n")

	b.WriteString("[QUESTION]\n")
	b.WriteString(query)
	b.WriteString("\n\nAnswer:")
	return b.String()
}

var apiReference = strings.TrimLeft(fmt.Sprintf(`
%[1]s (table, read-only; every method returns a new table):
  columns() shape() len() head(n) tail(n) col(name) row(i) rows()
  select(...names) drop(...names) rename({old: new}) sort(name, descending)
  filter(r => bool) where(name, op, value)   op: == != > >= < <= contains in
  mutate(name, r => value) dropna(...names) unique(name) nunique(name)
  valueCounts(name) describe() count(name) corr(a, b)
  sum(name) mean(name) median(name) min(name) max(name) std(name)
  groupBy(...names) -> count() sum(...names) mean(...names) min(...) max(...) agg({name: "sum|mean|median|min|max|count|nunique"})
%[2]s (table constructors):
  fromRecords([{...}]) fromColumns({name: [...]}) concat(a, b) merge(left, right, on, "inner|left")
%[3]s (charts; options x, y (name or list), title, agg "sum|mean|count|none", bins):
  bar(table, opts) line(table, opts) scatter(table, opts) pie(table, opts) histogram(table, opts)
Example:
`+"```js"+`
%[4]s = %[1]s.groupBy("region").sum("sales").sort("sales", true)
`+"```"+`
`, sandbox.DatasetVar, sandbox.TableNS, sandbox.ChartNS, sandbox.ResultVar), "\n")

// sampleList renders sample values as a bracketed list with quoted text.
func sampleList(vals []any) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		switch x := v.(type) {
		case string:
			parts[i] = strconv.Quote(x)
		case time.Time:
			parts[i] = strconv.Quote(frame.FormatValue(x))
		default:
			parts[i] = frame.FormatValue(x)
		}
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
