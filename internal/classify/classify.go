// Package classify decides whether a completion is a plain answer or an
// analysis snippet, and extracts the snippet code.
package classify

import (
	"regexp"
	"strings"

	"github.com/KaramelBytes/sheetchat/internal/sandbox"
)

// NoAnswer is the reply used when the completion is empty.
const NoAnswer = "No answer returned."

const fence = "```"

// Kind is the classification outcome.
type Kind int

const (
	PlainAnswer Kind = iota
	Snippet
)

func (k Kind) String() string {
	if k == Snippet {
		return "snippet"
	}
	return "plain_answer"
}

// Response is a classified completion. Text is the answer for PlainAnswer;
// Code is the extracted snippet for Snippet.
type Response struct {
	Kind Kind
	Text string
	Code string
}

var (
	resultAssign = regexp.MustCompile(`\b` + regexp.QuoteMeta(sandbox.ResultVar) + `\s*=([^=]|$)`)
	languageTag  = regexp.MustCompile(`^[A-Za-z0-9_+-]*$`)
	// longer backtick fences and tilde fences are read as ```
	fenceRun = regexp.MustCompile("`{3,}|~{3,}")
)

// Classify never fails: every input yields a PlainAnswer or a Snippet.
func Classify(text string) Response {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Response{Kind: PlainAnswer, Text: NoAnswer}
	}
	region, ok := lastFenced(trimmed)
	if !ok || !resultAssign.MatchString(trimmed) {
		return Response{Kind: PlainAnswer, Text: trimmed}
	}
	return Response{Kind: Snippet, Text: trimmed, Code: stripImports(dropLanguageTag(region))}
}

// lastFenced returns the content of the last fenced region. An unterminated
// final fence runs to the end of the text.
func lastFenced(text string) (string, bool) {
	parts := strings.Split(fenceRun.ReplaceAllString(text, fence), fence)
	if len(parts) < 2 {
		return "", false
	}
	last := len(parts) - 1
	if last%2 == 0 {
		// text after a closing fence is prose
		last--
	}
	return parts[last], true
}

func dropLanguageTag(region string) string {
	first, rest, found := strings.Cut(region, "\n")
	if !found {
		return region
	}
	if languageTag.MatchString(strings.TrimSpace(first)) {
		return rest
	}
	return region
}

func stripImports(code string) string {
	lines := strings.Split(code, "\n")
	kept := lines[:0]
	for _, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), "import") {
			continue
		}
		kept = append(kept, l)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
