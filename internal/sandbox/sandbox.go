// Package sandbox runs model-generated analysis snippets against a dataset in
// a fresh JavaScript runtime that only sees the dataset, the table toolkit
// and the chart toolkit.
//
// Isolation is best effort: ambient globals that allow dynamic code loading
// or reflection are removed and runs are bounded by a timeout, but snippets
// execute in-process with the host's trust.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/KaramelBytes/sheetchat/internal/chart"
	"github.com/KaramelBytes/sheetchat/internal/frame"
)

// Names bound in every run. Snippets must assign their output to ResultVar.
const (
	DatasetVar = "df"
	TableNS    = "tbl"
	ChartNS    = "plot"
	ResultVar  = "result"
)

// DefaultTimeout bounds one snippet run.
const DefaultTimeout = 10 * time.Second

const maxCallStack = 512

// removedGlobals are deleted from the global object before a snippet runs.
var removedGlobals = []string{
	"eval", "Function", "Reflect", "Proxy", "Promise", "globalThis",
	"WeakRef", "FinalizationRegistry", "require", "console",
}

// constructorEscapes close the path from a function literal back to the
// Function constructor for each function flavour.
var constructorEscapes = []string{
	`Object.defineProperty(Object.getPrototypeOf(function(){}), "constructor", {value: undefined, writable: false, configurable: false})`,
	`Object.defineProperty(Object.getPrototypeOf(function*(){}), "constructor", {value: undefined, writable: false, configurable: false})`,
	`Object.defineProperty(Object.getPrototypeOf(async function(){}), "constructor", {value: undefined, writable: false, configurable: false})`,
}

var errTimeout = errors.New("execution timed out")

// ExecutionError is any failure while running a snippet. Cause is safe to
// show to users.
type ExecutionError struct {
	Cause string
	Err   error
}

func (e *ExecutionError) Error() string { return e.Cause }
func (e *ExecutionError) Unwrap() error { return e.Err }

// Executor runs snippets. The zero value uses DefaultTimeout.
type Executor struct {
	Timeout time.Duration
	Logger  *slog.Logger
}

// New returns an executor with the given timeout (DefaultTimeout when <= 0).
func New(timeout time.Duration, logger *slog.Logger) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Executor{Timeout: timeout, Logger: logger}
}

func (e *Executor) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// Execute runs code against a private copy of df and classifies the value
// bound to ResultVar. Every failure, including panics, comes back as an
// *ExecutionError.
func (e *Executor) Execute(ctx context.Context, code string, df *frame.Frame) (res Result, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res, err = Result{}, &ExecutionError{Cause: fmt.Sprintf("snippet crashed: %v", r)}
		}
		e.logger().Debug("snippet executed", "duration", time.Since(start), "kind", res.Kind, "error", err)
	}()
	if df == nil {
		return Result{}, &ExecutionError{Cause: "no dataset loaded"}
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return Result{}, &ExecutionError{Cause: "execution cancelled: " + err.Error(), Err: err}
	}

	prg, err := goja.Compile("snippet.js", code, false)
	if err != nil {
		return Result{}, &ExecutionError{Cause: err.Error(), Err: err}
	}

	vm, err := newRuntime(df)
	if err != nil {
		return Result{}, &ExecutionError{Cause: "prepare runtime: " + err.Error(), Err: err}
	}

	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	timer := time.AfterFunc(timeout, func() { vm.Interrupt(errTimeout) })
	defer timer.Stop()
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	if _, err := vm.RunProgram(prg); err != nil {
		return Result{}, e.wrap(err, timeout)
	}
	v, err := vm.RunString(`typeof ` + ResultVar + ` === "undefined" ? undefined : ` + ResultVar)
	if err != nil {
		return Result{}, e.wrap(err, timeout)
	}
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return Result{Kind: KindAbsent}, nil
	}
	return Classify(v.Export()), nil
}

func newRuntime(df *frame.Frame) (*goja.Runtime, error) {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.UncapFieldNameMapper())
	vm.SetMaxCallStackSize(maxCallStack)
	for _, src := range constructorEscapes {
		// not every function flavour exists in every engine build
		_, _ = vm.RunString(src)
	}
	global := vm.GlobalObject()
	for _, name := range removedGlobals {
		if err := global.Delete(name); err != nil {
			return nil, fmt.Errorf("remove %s: %w", name, err)
		}
	}
	bindings := map[string]any{
		DatasetVar: df.Clone(),
		TableNS:    &frame.Namespace{},
		ChartNS:    &chart.Namespace{},
	}
	for name, v := range bindings {
		if err := vm.Set(name, v); err != nil {
			return nil, fmt.Errorf("bind %s: %w", name, err)
		}
	}
	return vm, nil
}

func (e *Executor) wrap(err error, timeout time.Duration) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		switch v := interrupted.Value().(type) {
		case error:
			if errors.Is(v, errTimeout) {
				return &ExecutionError{Cause: fmt.Sprintf("execution timed out after %s", timeout), Err: errTimeout}
			}
			return &ExecutionError{Cause: "execution cancelled: " + v.Error(), Err: v}
		default:
			return &ExecutionError{Cause: fmt.Sprintf("execution interrupted: %v", v), Err: err}
		}
	}
	var ex *goja.Exception
	if errors.As(err, &ex) {
		msg := "exception"
		if val := ex.Value(); val != nil {
			msg = val.String()
		}
		return &ExecutionError{Cause: strings.TrimPrefix(msg, "GoError: "), Err: err}
	}
	return &ExecutionError{Cause: err.Error(), Err: err}
}
