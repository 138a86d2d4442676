package gfix

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/sokinpui/gfix/internal/editor"
	"github.com/sokinpui/gfix/internal/history"
	"github.com/sokinpui/gfix/internal/llm"
	"github.com/sokinpui/gfix/internal/parser"
	"github.com/sokinpui/gfix/internal/prompt"
	"github.com/sokinpui/gfix/model"
)

type phase string

const (
	phaseIdle          phase = "idle"
	phasePrompting     phase = "prompting"
	phaseAwaitingModel phase = "awaiting_model"
	phaseDispatching   phase = "dispatching"
	phaseFailed        phase = "failed"
)

// dispatchFunc delivers a non-empty model reply to its sink.
type dispatchFunc func(ctx context.Context, ed editor.Editor, req model.Request, reply string) error

type handler struct {
	progress   string
	empty      string
	useHistory bool
	dispatch   dispatchFunc
}

func (a *App) buildHandlers() map[model.Mode]handler {
	return map[model.Mode]handler{
		model.Fix: {
			progress: "Fixing your code using Gemini...",
			empty:    "Gemini couldn't fix the code.",
			dispatch: a.applyFix,
		},
		model.Explain: {
			progress: "Generating error explanation...",
			empty:    "Gemini couldn't explain the errors.",
			dispatch: a.showExplanation,
		},
		model.Optimize: {
			progress: "Generating optimized solutions...",
			empty:    "Gemini couldn't suggest optimizations.",
			dispatch: a.showOptimization,
		},
		model.Debug: {
			progress:   "Generating debugging flow diagrams and edge cases...",
			empty:      "Gemini couldn't generate debugging details.",
			useHistory: true,
			dispatch:   a.showDebugging,
		},
		model.TestGen: {
			progress: "Generating simple unit test cases...",
			empty:    "Gemini couldn't generate test cases.",
			dispatch: a.writeTestCases,
		},
		model.CICD: {
			progress: "Setting up CI/CD integration...",
			empty:    "Gemini couldn't set up CI/CD integration.",
			dispatch: a.openCICD,
		},
	}
}

func (a *App) run(ctx context.Context, ed editor.Editor, req model.Request, h handler, log *zap.Logger) error {
	enter := func(p phase) { log.Debug("phase", zap.String("phase", string(p))) }
	fail := func(msg string, err error) error {
		enter(phaseFailed)
		log.Warn("operation failed", zap.Error(err))
		ed.Error(msg)
		enter(phaseIdle)
		return err
	}

	ed.Info(h.progress)

	enter(phasePrompting)
	text, err := prompt.Build(req.Mode, req.Source)
	if err != nil {
		return fail("Error using Gemini: "+err.Error(), err)
	}
	turns := []history.Turn{history.UserTurn(text)}
	if h.useHistory {
		turns = append(a.history.Snapshot(), turns...)
	}

	enter(phaseAwaitingModel)
	reply, err := a.model.Generate(ctx, turns)
	if err != nil {
		return fail("Error using Gemini: "+err.Error(), fmt.Errorf("%s: %w", req.Mode, err))
	}
	if llm.IsEmpty(reply) {
		return fail(h.empty, fmt.Errorf("%s: %w", req.Mode, ErrEmptyResponse))
	}
	if h.useHistory {
		a.history.AppendExchange(text, reply)
	}

	enter(phaseDispatching)
	if err := h.dispatch(ctx, ed, req, reply); err != nil {
		if errors.Is(err, ErrEmptyResponse) {
			return fail(h.empty, fmt.Errorf("%s: %w", req.Mode, err))
		}
		return fail("Error using Gemini: "+err.Error(), fmt.Errorf("%s: %w", req.Mode, err))
	}
	log.Info("operation completed", zap.Int("reply_bytes", len(reply)))
	enter(phaseIdle)
	return nil
}

// applyFix replaces the selection (or the whole document when nothing is
// selected) with the extracted code and prepends any commentary as a block
// comment.
func (a *App) applyFix(ctx context.Context, ed editor.Editor, req model.Request, reply string) error {
	resp := parser.Parse(reply)
	if resp.Code == "" {
		return ErrEmptyResponse
	}

	target, err := a.fixTarget(ctx, ed, req)
	if err != nil {
		return err
	}
	if err := ed.Replace(ctx, target, resp.Code); err != nil {
		return fmt.Errorf("failed to apply fix: %w", err)
	}

	if resp.Commentary == "" {
		ed.Info("Fix applied successfully!")
		return nil
	}
	if err := ed.Insert(ctx, editor.Position{}, Annotation(resp.Commentary)); err != nil {
		return fmt.Errorf("failed to insert comments: %w", err)
	}
	ed.Info("Fix applied with comments.")
	return nil
}

func (a *App) fixTarget(ctx context.Context, ed editor.Editor, req model.Request) (editor.Range, error) {
	if req.HasSelection {
		sel, err := ed.Selection(ctx)
		if err != nil {
			return editor.Range{}, err
		}
		if !sel.Range.Empty() {
			return sel.Range, nil
		}
	}
	doc, err := ed.Document(ctx)
	if err != nil {
		return editor.Range{}, err
	}
	return editor.FullRange(doc), nil
}

// Annotation wraps commentary in a block comment placed above the fixed
// code. A "*/" inside the commentary would end the comment early, so it is
// broken up.
func Annotation(commentary string) string {
	return "/* " + strings.ReplaceAll(commentary, "*/", "* /") + " */\n\n"
}

func (a *App) showExplanation(ctx context.Context, ed editor.Editor, req model.Request, reply string) error {
	panel := editor.Panel{
		ID:    uuid.NewString(),
		Title: "Error Explanation",
		Sections: []editor.Section{
			{Heading: "Error Explanation", Body: reply},
		},
		Actions: []editor.Action{
			{Label: "Fix Code", Message: editor.Message{Command: editor.CommandFixCode}},
		},
	}
	// The panel may send messages long after this invocation returns.
	panelCtx := context.WithoutCancel(ctx)
	return ed.ShowPanel(ctx, panel, func(msg editor.Message) {
		if err := a.HandleMessage(panelCtx, ed, req.Source, msg); err != nil {
			a.log.Debug("panel action failed", zap.String("panel", panel.ID), zap.Error(err))
		}
	})
}

func (a *App) showOptimization(ctx context.Context, ed editor.Editor, _ model.Request, reply string) error {
	return ed.ShowPanel(ctx, editor.Panel{
		ID:    uuid.NewString(),
		Title: "Optimized Code Suggestions",
		Sections: []editor.Section{
			{Heading: "Optimized Solution", Body: reply, Preformatted: true},
		},
	}, nil)
}

func (a *App) showDebugging(ctx context.Context, ed editor.Editor, _ model.Request, reply string) error {
	resp := parser.Parse(reply)
	return ed.ShowPanel(ctx, editor.Panel{
		ID:    uuid.NewString(),
		Title: "AI Debugging - Flow Diagram & Edge Cases",
		Sections: []editor.Section{
			{Heading: "Flow Diagram", Body: resp.Code, Preformatted: true},
			{Heading: "Edge Cases", Body: resp.Commentary},
		},
	}, nil)
}

func (a *App) writeTestCases(ctx context.Context, ed editor.Editor, _ model.Request, reply string) error {
	root, err := ed.WorkspaceRoot(ctx)
	if err != nil {
		return fmt.Errorf("failed to find workspace root: %w", err)
	}
	path := filepath.Join(root, a.testCasesFile)

	_, statErr := a.fs.Stat(path)
	created := os.IsNotExist(statErr)
	if err := afero.WriteFile(a.fs, path, []byte(reply), 0644); err != nil {
		return fmt.Errorf("failed to write test cases: %w", err)
	}
	if a.fileWritten != nil {
		a.fileWritten(path, created)
	}
	ed.Info(fmt.Sprintf("Test cases generated successfully. Open '%s' to view them.", a.testCasesFile))
	return nil
}

func (a *App) openCICD(ctx context.Context, ed editor.Editor, _ model.Request, reply string) error {
	return ed.OpenDocument(ctx, editor.Markdown, reply)
}
