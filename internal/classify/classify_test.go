package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Response
	}{
		{
			name: "empty",
			in:   "",
			want: Response{Kind: PlainAnswer, Text: NoAnswer},
		},
		{
			name: "whitespace",
			in:   " \n\t ",
			want: Response{Kind: PlainAnswer, Text: NoAnswer},
		},
		{
			name: "plain answer",
			in:   "The average sales figure is 42.\n",
			want: Response{Kind: PlainAnswer, Text: "The average sales figure is 42."},
		},
		{
			name: "fence without result",
			in:   "```js\ndf.head()\n```",
			want: Response{Kind: PlainAnswer, Text: "```js\ndf.head()\n```"},
		},
		{
			name: "result without fence",
			in:   "result = 42",
			want: Response{Kind: PlainAnswer, Text: "result = 42"},
		},
		{
			name: "comparison is not assignment",
			in:   "```js\nresult == 1\n```",
			want: Response{Kind: PlainAnswer, Text: "```js\nresult == 1\n```"},
		},
		{
			name: "js snippet",
			in:   "Here you go:\n```js\nresult = df.mean(\"sales\")\n```\nDone.",
			want: Response{Kind: Snippet, Text: "Here you go:\n```js\nresult = df.mean(\"sales\")\n```\nDone.", Code: `result = df.mean("sales")`},
		},
		{
			name: "untagged fence",
			in:   "```\nresult=df.len()\n```",
			want: Response{Kind: Snippet, Text: "```\nresult=df.len()\n```", Code: "result=df.len()"},
		},
		{
			name: "python tag is accepted",
			in:   "```python\nresult = df\n```",
			want: Response{Kind: Snippet, Text: "```python\nresult = df\n```", Code: "result = df"},
		},
		{
			name: "four backtick fence",
			in:   "````js\nresult = df.len()\n````",
			want: Response{Kind: Snippet, Text: "````js\nresult = df.len()\n````", Code: "result = df.len()"},
		},
		{
			name: "tilde fence",
			in:   "Try this:\n~~~js\nresult = df.head(2)\n~~~",
			want: Response{Kind: Snippet, Text: "Try this:\n~~~js\nresult = df.head(2)\n~~~", Code: "result = df.head(2)"},
		},
		{
			name: "unterminated fence",
			in:   "```js\nresult = df.head(3)",
			want: Response{Kind: Snippet, Text: "```js\nresult = df.head(3)", Code: "result = df.head(3)"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.in))
		})
	}
}

func TestClassifyTakesLastBlock(t *testing.T) {
	in := "First try:\n```js\nresult = df.sum(\"x\")\n```\nCorrected:\n```js\nresult = df.sum(\"sales\")\n```"
	got := Classify(in)
	assert.Equal(t, Snippet, got.Kind)
	assert.Equal(t, `result = df.sum("sales")`, got.Code)
}

func TestClassifyStripsImports(t *testing.T) {
	in := "```js\nimport fs from 'fs'\n  import_x = 1\nconst t = df.head()\nresult = t\n```"
	got := Classify(in)
	assert.Equal(t, Snippet, got.Kind)
	assert.Equal(t, "const t = df.head()\nresult = t", got.Code)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "snippet", Snippet.String())
	assert.Equal(t, "plain_answer", PlainAnswer.String())
}
