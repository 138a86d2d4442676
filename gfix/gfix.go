package gfix

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/sokinpui/gfix/internal/editor"
	"github.com/sokinpui/gfix/internal/history"
	"github.com/sokinpui/gfix/internal/llm"
	"github.com/sokinpui/gfix/model"
)

var (
	ErrNoDocument    = errors.New("no active document")
	ErrNoChoice      = errors.New("no option selected")
	ErrEmptyResponse = errors.New("model returned no usable text")
)

// DefaultTestCasesFile is the file name test inputs are written to.
const DefaultTestCasesFile = "generatedTestCases.txt"

// DetailedError enhances a standard error with a stack trace.
type DetailedError struct {
	Err   error
	Stack []byte
}

func (e *DetailedError) Error() string {
	return e.Err.Error()
}

func (e *DetailedError) Unwrap() error {
	return e.Err
}

// Options configures an App.
type Options struct {
	Model   llm.Generator
	History *history.Context
	// Fs receives generated files. Defaults to the OS filesystem.
	Fs            afero.Fs
	Logger        *zap.Logger
	TestCasesFile string
	// FileWritten, when set, is called after a generated file is written.
	FileWritten func(path string, created bool)
}

// App routes one user choice to one operation handler. It owns the
// conversation history shared by debugging invocations; every other
// operation is a stateless single call.
type App struct {
	model         llm.Generator
	history       *history.Context
	fs            afero.Fs
	log           *zap.Logger
	testCasesFile string
	fileWritten   func(path string, created bool)
	handlers      map[model.Mode]handler
}

// New creates a new App instance.
func New(opts Options) *App {
	a := &App{
		model:         opts.Model,
		history:       opts.History,
		fs:            opts.Fs,
		log:           opts.Logger,
		testCasesFile: opts.TestCasesFile,
		fileWritten:   opts.FileWritten,
	}
	if a.history == nil {
		a.history = history.New(history.DefaultMaxTurns)
	}
	if a.fs == nil {
		a.fs = afero.NewOsFs()
	}
	if a.log == nil {
		a.log = zap.NewNop()
	}
	if a.testCasesFile == "" {
		a.testCasesFile = DefaultTestCasesFile
	}
	a.handlers = a.buildHandlers()
	return a
}

// History exposes the debugging conversation.
func (a *App) History() *history.Context {
	return a.history
}

// Start reads the source text, asks the user for an operation and runs it.
func (a *App) Start(ctx context.Context, ed editor.Editor) error {
	source, hasSelection, err := a.readSource(ctx, ed)
	if err != nil {
		return err
	}

	idx, err := ed.Pick(ctx, "Choose an option", model.Labels())
	if errors.Is(err, editor.ErrCancelled) || (err == nil && (idx < 0 || idx >= len(model.Modes))) {
		ed.Info("No option selected.")
		return ErrNoChoice
	}
	if err != nil {
		ed.Error("Error: " + err.Error())
		return err
	}

	return a.Run(ctx, ed, model.Request{
		Mode:         model.Modes[idx],
		Source:       source,
		HasSelection: hasSelection,
	})
}

// Execute runs mode without presenting the menu.
func (a *App) Execute(ctx context.Context, ed editor.Editor, mode model.Mode) error {
	source, hasSelection, err := a.readSource(ctx, ed)
	if err != nil {
		return err
	}
	return a.Run(ctx, ed, model.Request{Mode: mode, Source: source, HasSelection: hasSelection})
}

// readSource returns the selected text, or the whole document when the
// selection is empty.
func (a *App) readSource(ctx context.Context, ed editor.Editor) (string, bool, error) {
	sel, err := ed.Selection(ctx)
	if errors.Is(err, editor.ErrNoDocument) {
		ed.Error("Open a file to use Gemini Fixer.")
		return "", false, ErrNoDocument
	}
	if err != nil {
		ed.Error("Error: " + err.Error())
		return "", false, err
	}
	if sel.Text != "" {
		return sel.Text, true, nil
	}

	doc, err := ed.Document(ctx)
	if err != nil {
		ed.Error("Error: " + err.Error())
		return "", false, err
	}
	return doc, false, nil
}

// HandleMessage reacts to a message sent by a panel that was opened for
// source. Only the fix command is understood.
func (a *App) HandleMessage(ctx context.Context, ed editor.Editor, source string, msg editor.Message) error {
	if msg.Command != editor.CommandFixCode {
		a.log.Warn("ignoring unknown panel message", zap.String("command", msg.Command))
		return nil
	}
	sel, err := ed.Selection(ctx)
	if errors.Is(err, editor.ErrNoDocument) {
		// The panel outlived its document.
		return nil
	}
	hasSelection := err == nil && !sel.Range.Empty()
	return a.Run(ctx, ed, model.Request{Mode: model.Fix, Source: source, HasSelection: hasSelection})
}

// Run executes one request. Every failure is reported to the user exactly
// once through ed; the returned error is for logging only.
func (a *App) Run(ctx context.Context, ed editor.Editor, req model.Request) (err error) {
	log := a.log.With(
		zap.String("invocation", uuid.NewString()),
		zap.Stringer("mode", req.Mode),
	)

	// Centralized panic recovery.
	defer func() {
		if r := recover(); r != nil {
			err = &DetailedError{
				Err:   fmt.Errorf("internal panic: %v", r),
				Stack: debug.Stack(),
			}
			log.Error("operation panicked", zap.Error(err), zap.ByteString("stack", debug.Stack()))
			ed.Error("Error using Gemini: " + err.Error())
		}
	}()

	h, ok := a.handlers[req.Mode]
	if !ok {
		err := fmt.Errorf("unknown mode %d", int(req.Mode))
		ed.Error(err.Error())
		return err
	}
	return a.run(ctx, ed, req, h, log)
}
