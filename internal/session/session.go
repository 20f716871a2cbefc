// Package session owns one user's dataset, conversation log and pending
// query, and runs the query pipeline: prompt, completion, classification,
// execution or answer, rendering and logging.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/KaramelBytes/sheetchat/internal/ai"
	"github.com/KaramelBytes/sheetchat/internal/classify"
	"github.com/KaramelBytes/sheetchat/internal/dataset"
	"github.com/KaramelBytes/sheetchat/internal/frame"
	"github.com/KaramelBytes/sheetchat/internal/ingest"
	"github.com/KaramelBytes/sheetchat/internal/prompt"
	"github.com/KaramelBytes/sheetchat/internal/render"
	"github.com/KaramelBytes/sheetchat/internal/sandbox"
)

var (
	ErrNoDataset      = errors.New("no dataset loaded")
	ErrEmptyQuery     = errors.New("query is empty")
	ErrTurnInProgress = errors.New("another query is still being processed")
	ErrNoPending      = errors.New("no pending query")
	ErrNoTable        = errors.New("no tabular result to export")
	ErrUnknownExample = errors.New("unknown example question")
)

// ExecFailurePrefix starts the assistant reply when a snippet fails.
const ExecFailurePrefix = "Failed to process code: "

// DefaultExamples are offered as one-click questions.
var DefaultExamples = []string{
	"What is the average income?",
	"Show number of customers by region.",
	"Give me a bar chart of sales per category.",
	"Compare male vs female loan approval rates.",
}

// Stage is a step of the per-query pipeline.
type Stage string

const (
	StageIdle        Stage = "idle"
	StagePromptBuilt Stage = "prompt_built"
	StageCompleted   Stage = "completed"
	StageClassified  Stage = "classified"
	StageExecuted    Stage = "executed"
	StageAnswered    Stage = "answered"
	StageLogged      Stage = "logged"
)

// Completer turns a prompt into completion text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Executor runs an analysis snippet against a dataset.
type Executor interface {
	Execute(ctx context.Context, code string, df *frame.Frame) (sandbox.Result, error)
}

// Observer is notified about finished turns and failed completions.
type Observer interface {
	TurnFinished(outcome string, elapsed time.Duration)
	CompletionFailed(kind string)
}

// TurnResult describes one processed query.
type TurnResult struct {
	Query string
	// Completion is the raw model text; empty when the completion failed.
	Completion string
	Kind       classify.Kind
	Code       string
	Action     render.Action
	// Reply is the assistant turn appended to the log.
	Reply string
	Trace []Stage
	// Err is the stage failure that produced a fallback reply, if any.
	Err error
}

// Outcome is a short label for logs and metrics.
func (r *TurnResult) Outcome() string {
	var execErr *sandbox.ExecutionError
	switch {
	case errors.As(r.Err, &execErr):
		return "execution_failed"
	case r.Err != nil:
		return "no_answer"
	case r.Kind == classify.PlainAnswer:
		return "answered"
	}
	return string(r.Action.Kind)
}

// Session is safe for concurrent use; at most one turn runs at a time.
type Session struct {
	store     *dataset.Store
	log       *Log
	completer Completer
	executor  Executor
	logger    *slog.Logger
	observer  Observer
	examples  []string
	now       func() time.Time

	// turn is held for the whole pipeline and by Reset.
	turn sync.Mutex

	mu           sync.Mutex
	pending      string
	hasPending   bool
	lastQuery    string
	lastResponse string
	lastTable    *frame.Frame
}

// Option configures a Session.
type Option func(*Session)

func WithLogger(l *slog.Logger) Option { return func(s *Session) { s.logger = l } }

func WithObserver(o Observer) Option { return func(s *Session) { s.observer = o } }

func WithExamples(examples []string) Option {
	return func(s *Session) { s.examples = append([]string(nil), examples...) }
}

func WithClock(now func() time.Time) Option { return func(s *Session) { s.now = now } }

// New returns an empty session.
func New(c Completer, ex Executor, opts ...Option) *Session {
	s := &Session{
		store:     dataset.NewStore(),
		log:       &Log{},
		completer: c,
		executor:  ex,
		logger:    slog.Default(),
		examples:  DefaultExamples,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the dataset. The log is kept.
func (s *Session) Load(name string, df *frame.Frame) error {
	s.mu.Lock()
	err := s.store.Load(name, df)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.logger.Info("dataset loaded", "name", name, "rows", df.Len(), "columns", df.Width())
	return nil
}

// LoadFile ingests a file from disk and loads it.
func (s *Session) LoadFile(path string, opts ingest.Options) error {
	s.mu.Lock()
	err := s.store.LoadFile(path, opts)
	df, name := s.store.Current(), s.store.Name()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.logger.Info("dataset loaded", "name", name, "rows", df.Len(), "columns", df.Width())
	return nil
}

// Dataset returns the active table and its source name.
func (s *Session) Dataset() (*frame.Frame, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Current(), s.store.Name()
}

// Schema summarizes the active table; ok is false when none is loaded.
func (s *Session) Schema() (dataset.Schema, bool) {
	df, _ := s.Dataset()
	if df == nil {
		return dataset.Schema{}, false
	}
	return dataset.Summarize(df), true
}

// History returns a snapshot of the conversation. Reset clears the log and
// the dataset under the same lock, so readers never see one without the other.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.All()
}

// Examples returns the example questions.
func (s *Session) Examples() []string { return append([]string(nil), s.examples...) }

// Last returns the most recent query and raw completion.
func (s *Session) Last() (query, response string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastQuery, s.lastResponse
}

// ExportCSV serializes the most recent tabular result.
func (s *Session) ExportCSV() ([]byte, error) {
	s.mu.Lock()
	tbl := s.lastTable
	s.mu.Unlock()
	if tbl == nil {
		return nil, ErrNoTable
	}
	return []byte(tbl.CSV()), nil
}

// Suggest places query in the pending slot, replacing any earlier one.
func (s *Session) Suggest(query string) {
	s.mu.Lock()
	s.pending, s.hasPending = query, true
	s.mu.Unlock()
}

// SuggestExample places the n-th (0-based) example question in the pending slot.
func (s *Session) SuggestExample(n int) (string, error) {
	if n < 0 || n >= len(s.examples) {
		return "", fmt.Errorf("%w: %d", ErrUnknownExample, n)
	}
	q := s.examples[n]
	s.Suggest(q)
	return q, nil
}

// Pending returns the queued query, if any.
func (s *Session) Pending() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending, s.hasPending
}

// ProcessPending consumes the pending slot and processes it as a query.
func (s *Session) ProcessPending(ctx context.Context) (*TurnResult, error) {
	s.mu.Lock()
	q, ok := s.pending, s.hasPending
	s.pending, s.hasPending = "", false
	s.mu.Unlock()
	if !ok {
		return nil, ErrNoPending
	}
	return s.ProcessQuery(ctx, q)
}

// Reset clears the dataset, log, pending slot and last results together.
// It is refused while a turn is running.
func (s *Session) Reset() error {
	if !s.turn.TryLock() {
		return ErrTurnInProgress
	}
	defer s.turn.Unlock()
	s.mu.Lock()
	s.store.Reset()
	s.log.Clear()
	s.pending, s.hasPending = "", false
	s.lastQuery, s.lastResponse, s.lastTable = "", "", nil
	s.mu.Unlock()
	s.logger.Info("session reset")
	return nil
}

// ProcessQuery runs one turn. Stage failures become assistant replies; the
// returned error is only for refusals (no dataset, empty query, busy), in
// which case nothing is logged.
func (s *Session) ProcessQuery(ctx context.Context, query string) (*TurnResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if !s.turn.TryLock() {
		return nil, ErrTurnInProgress
	}
	defer s.turn.Unlock()

	df, _ := s.Dataset()
	if df == nil {
		return nil, ErrNoDataset
	}
	start := s.now()
	res := &TurnResult{Query: query, Trace: []Stage{StageIdle}}
	s.log.Append(Turn{Sender: User, Text: query, At: start})

	s.run(ctx, df, res)

	s.log.Append(Turn{Sender: Assistant, Text: res.Reply, At: s.now()})
	res.Trace = append(res.Trace, StageLogged, StageIdle)

	s.mu.Lock()
	s.lastQuery, s.lastResponse = query, res.Completion
	if res.Action.Kind == render.ShowTable && res.Action.Table != nil {
		s.lastTable = res.Action.Table
	}
	s.mu.Unlock()

	elapsed := s.now().Sub(start)
	outcome := res.Outcome()
	s.logger.Debug("turn finished", "outcome", outcome, "duration", elapsed, "trace", res.Trace)
	if s.observer != nil {
		s.observer.TurnFinished(outcome, elapsed)
	}
	return res, nil
}

func (s *Session) run(ctx context.Context, df *frame.Frame, res *TurnResult) {
	p := prompt.Build(dataset.Summarize(df), res.Query)
	res.Trace = append(res.Trace, StagePromptBuilt)
	s.logger.Debug("prompt built", "chars", len(p))

	text, err := s.complete(ctx, p)
	res.Trace = append(res.Trace, StageCompleted)
	if err != nil {
		kind := ai.ErrorKind(err)
		s.logger.Warn("completion failed", "kind", kind, "error", err)
		if s.observer != nil {
			s.observer.CompletionFailed(kind)
		}
		res.Err = err
		res.Reply = classify.NoAnswer
		res.Action = render.Action{Kind: render.ShowText, Text: res.Reply}
		return
	}
	res.Completion = text

	resp := classify.Classify(text)
	res.Kind = resp.Kind
	res.Trace = append(res.Trace, StageClassified)
	s.logger.Debug("completion classified", "kind", resp.Kind)

	if resp.Kind == classify.PlainAnswer {
		res.Trace = append(res.Trace, StageAnswered)
		res.Reply = resp.Text
		res.Action = render.Action{Kind: render.ShowText, Text: resp.Text}
		return
	}

	res.Code = resp.Code
	out, err := s.execute(ctx, resp.Code, df)
	res.Trace = append(res.Trace, StageExecuted)
	if err != nil {
		cause := err.Error()
		var execErr *sandbox.ExecutionError
		if errors.As(err, &execErr) {
			cause = execErr.Cause
		} else {
			err = &sandbox.ExecutionError{Cause: cause, Err: err}
		}
		s.logger.Warn("snippet failed", "cause", cause)
		res.Err = err
		res.Reply = ExecFailurePrefix + cause
		res.Action = render.Action{Kind: render.ShowWarning, Text: res.Reply}
		return
	}
	s.logger.Debug("snippet executed", "result", out.Kind)
	res.Action, res.Reply = render.Render(out)
}

func (s *Session) execute(ctx context.Context, code string, df *frame.Frame) (sandbox.Result, error) {
	if s.executor == nil {
		return sandbox.Result{}, &sandbox.ExecutionError{Cause: "no executor configured"}
	}
	return s.executor.Execute(ctx, code, df)
}

// complete treats a nil completer, a failed call and an empty answer alike.
func (s *Session) complete(ctx context.Context, p string) (string, error) {
	if s.completer == nil {
		return "", errors.New("no completer configured")
	}
	text, err := s.completer.Complete(ctx, p)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ai.ErrEmptyCompletion
	}
	return text, nil
}
