package gfix

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sokinpui/gfix/internal/editor"
	"github.com/sokinpui/gfix/internal/history"
	"github.com/sokinpui/gfix/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestApp(m *fakeModel) (*App, afero.Fs) {
	fs := afero.NewMemMapFs()
	return New(Options{Model: m, Fs: fs, History: history.New(0)}), fs
}

func TestFixReplacesSelection(t *testing.T) {
	ed := newFakeEditor("a := 1\nbroken();\nb := 2")
	ed.selectText("broken();")
	app, _ := newTestApp(&fakeModel{replies: []string{"```\nfixed();\n```\nNote: changed x"}})

	err := app.Execute(context.Background(), ed, model.Fix)
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(ed.doc, "a := 1\nfixed();\nb := 2"), "doc: %q", ed.doc)
	assert.True(t, strings.HasPrefix(ed.doc, "/* "), "doc: %q", ed.doc)
	annotation := ed.doc[:strings.Index(ed.doc, "a := 1")]
	assert.Contains(t, annotation, "Note: changed x")
	assert.True(t, strings.HasSuffix(annotation, " */\n\n"))
	assert.Contains(t, ed.infos, "Fix applied with comments.")
	assert.Empty(t, ed.errs)
}

func TestFixWithoutSelectionReplacesDocument(t *testing.T) {
	ed := newFakeEditor("line one\nline two\n")
	app, _ := newTestApp(&fakeModel{replies: []string{"```go\nall new\n```"}})

	require.NoError(t, app.Execute(context.Background(), ed, model.Fix))

	// The fence markers are left in the commentary and become the annotation.
	assert.Equal(t, "/* ```go\n\n``` */\n\nall new", ed.doc)
}

func TestFixPlainReplyHasNoAnnotation(t *testing.T) {
	ed := newFakeEditor("old")
	app, _ := newTestApp(&fakeModel{replies: []string{"  new  \n"}})

	require.NoError(t, app.Execute(context.Background(), ed, model.Fix))

	assert.Equal(t, "new", ed.doc)
	assert.Contains(t, ed.infos, "Fix applied successfully!")
}

func TestFixEmptyCodeLeavesDocument(t *testing.T) {
	ed := newFakeEditor("keep me")
	app, _ := newTestApp(&fakeModel{replies: []string{"Nothing to fix.\n```\n```"}})

	err := app.Execute(context.Background(), ed, model.Fix)
	assert.ErrorIs(t, err, ErrEmptyResponse)
	assert.Equal(t, "keep me", ed.doc)
	assert.Equal(t, []string{"Gemini couldn't fix the code."}, ed.errs)
}

func TestAnnotationBreaksCommentTerminator(t *testing.T) {
	assert.Equal(t, "/* a * / b */\n\n", Annotation("a */ b"))
}

func TestTestGenWritesExactReply(t *testing.T) {
	ed := newFakeEditor("func add(a, b int) int { return a + b }")
	var written []string
	fs := afero.NewMemMapFs()
	app := New(Options{
		Model:       &fakeModel{replies: []string{"10 20\n50 60"}},
		Fs:          fs,
		FileWritten: func(path string, created bool) { written = append(written, path); assert.True(t, created) },
	})

	require.NoError(t, app.Execute(context.Background(), ed, model.TestGen))

	path := filepath.Join("/work", DefaultTestCasesFile)
	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, "10 20\n50 60", string(data))
	assert.Equal(t, []string{path}, written)
	assert.Contains(t, ed.infos, "Test cases generated successfully. Open 'generatedTestCases.txt' to view them.")
}

func TestTestGenOverwrites(t *testing.T) {
	ed := newFakeEditor("code")
	app, fs := newTestApp(&fakeModel{replies: []string{"first", "second"}})
	ctx := context.Background()

	require.NoError(t, app.Execute(ctx, ed, model.TestGen))
	require.NoError(t, app.Execute(ctx, ed, model.TestGen))

	data, err := afero.ReadFile(fs, filepath.Join("/work", DefaultTestCasesFile))
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestCICDOpensMarkdownDocument(t *testing.T) {
	ed := newFakeEditor("code")
	app, _ := newTestApp(&fakeModel{replies: []string{"## Steps\n1. build"}})

	require.NoError(t, app.Execute(context.Background(), ed, model.CICD))
	assert.Equal(t, []string{"markdown:## Steps\n1. build"}, ed.documents)
}

func TestOptimizeShowsWholeReply(t *testing.T) {
	reply := "Better:\n```\nfast()\n```\nbecause reasons"
	ed := newFakeEditor("slow()")
	app, _ := newTestApp(&fakeModel{replies: []string{reply}})

	require.NoError(t, app.Execute(context.Background(), ed, model.Optimize))
	require.Len(t, ed.panels, 1)
	p := ed.panels[0]
	assert.Equal(t, "Optimized Code Suggestions", p.Title)
	require.Len(t, p.Sections, 1)
	assert.Equal(t, reply, p.Sections[0].Body)
	assert.True(t, p.Sections[0].Preformatted)
	assert.Empty(t, p.Actions)
}

func TestDebugSplitsDiagramAndEdgeCases(t *testing.T) {
	ed := newFakeEditor("if x { y() }")
	app, _ := newTestApp(&fakeModel{replies: []string{"```\n[x?] -> y()\n```\n- x is nil"}})

	require.NoError(t, app.Execute(context.Background(), ed, model.Debug))
	require.Len(t, ed.panels, 1)
	sections := ed.panels[0].Sections
	require.Len(t, sections, 2)
	assert.Equal(t, "[x?] -> y()", sections[0].Body)
	assert.Contains(t, sections[1].Body, "- x is nil")
}

func TestDebugCarriesHistory(t *testing.T) {
	ed := newFakeEditor("code")
	m := &fakeModel{replies: []string{"first answer", "second answer"}}
	app, _ := newTestApp(m)
	ctx := context.Background()

	require.NoError(t, app.Execute(ctx, ed, model.Debug))
	require.NoError(t, app.Execute(ctx, ed, model.Debug))

	turns := app.History().Snapshot()
	require.Len(t, turns, 4)
	roles := []history.Role{turns[0].Role, turns[1].Role, turns[2].Role, turns[3].Role}
	assert.Equal(t, []history.Role{history.RoleUser, history.RoleModel, history.RoleUser, history.RoleModel}, roles)
	assert.Equal(t, "first answer", turns[1].Text)
	assert.Equal(t, "second answer", turns[3].Text)

	require.Len(t, m.calls, 2)
	assert.Len(t, m.calls[0], 1)
	assert.Len(t, m.calls[1], 3, "second call must see the first exchange")
}

func TestOtherModesDoNotTouchHistory(t *testing.T) {
	ed := newFakeEditor("code")
	m := &fakeModel{replies: []string{"a", "b", "c"}}
	app, _ := newTestApp(m)
	ctx := context.Background()

	for _, mode := range []model.Mode{model.Explain, model.Optimize, model.CICD} {
		require.NoError(t, app.Execute(ctx, ed, mode))
	}
	assert.Zero(t, app.History().Len())
	for _, call := range m.calls {
		assert.Len(t, call, 1)
	}
}

func TestTransportFailure(t *testing.T) {
	for _, mode := range model.Modes {
		t.Run(mode.String(), func(t *testing.T) {
			ed := newFakeEditor("some code")
			ed.selectText("code")
			app, fs := newTestApp(&fakeModel{err: errors.New("quota exceeded")})

			err := app.Execute(context.Background(), ed, mode)
			require.Error(t, err)

			assert.Zero(t, ed.mutations)
			assert.Equal(t, "some code", ed.doc)
			assert.Equal(t, []string{"Error using Gemini: quota exceeded"}, ed.errs)
			exists, _ := afero.Exists(fs, filepath.Join("/work", DefaultTestCasesFile))
			assert.False(t, exists)
			assert.Zero(t, app.History().Len())
		})
	}
}

func TestEmptyResponseMessages(t *testing.T) {
	want := map[model.Mode]string{
		model.Fix:      "Gemini couldn't fix the code.",
		model.Explain:  "Gemini couldn't explain the errors.",
		model.Optimize: "Gemini couldn't suggest optimizations.",
		model.Debug:    "Gemini couldn't generate debugging details.",
		model.TestGen:  "Gemini couldn't generate test cases.",
		model.CICD:     "Gemini couldn't set up CI/CD integration.",
	}
	for mode, msg := range want {
		t.Run(mode.String(), func(t *testing.T) {
			ed := newFakeEditor("code")
			app, _ := newTestApp(&fakeModel{replies: []string{"  \n"}})

			err := app.Execute(context.Background(), ed, mode)
			assert.ErrorIs(t, err, ErrEmptyResponse)
			assert.Equal(t, []string{msg}, ed.errs)
			assert.Zero(t, ed.mutations)
		})
	}
}

func TestStart(t *testing.T) {
	t.Run("no document", func(t *testing.T) {
		ed := newFakeEditor("")
		ed.noDoc = true
		m := &fakeModel{}
		app, _ := newTestApp(m)

		err := app.Start(context.Background(), ed)
		assert.ErrorIs(t, err, ErrNoDocument)
		assert.Equal(t, []string{"Open a file to use Gemini Fixer."}, ed.errs)
		assert.Empty(t, m.calls)
	})

	t.Run("cancelled menu", func(t *testing.T) {
		ed := newFakeEditor("code")
		ed.pickErr = editor.ErrCancelled
		m := &fakeModel{}
		app, _ := newTestApp(m)

		err := app.Start(context.Background(), ed)
		assert.ErrorIs(t, err, ErrNoChoice)
		assert.Contains(t, ed.infos, "No option selected.")
		assert.Empty(t, ed.errs)
		assert.Empty(t, m.calls)
		assert.Zero(t, ed.mutations)
	})

	t.Run("out of range choice", func(t *testing.T) {
		ed := newFakeEditor("code")
		ed.pick = len(model.Modes)
		app, _ := newTestApp(&fakeModel{})

		assert.ErrorIs(t, app.Start(context.Background(), ed), ErrNoChoice)
	})

	t.Run("selection is the source", func(t *testing.T) {
		ed := newFakeEditor("keep\nsend this\nkeep")
		ed.selectText("send this")
		ed.pick = 5 // CI/CD
		m := &fakeModel{replies: []string{"steps"}}
		app, _ := newTestApp(m)

		require.NoError(t, app.Start(context.Background(), ed))
		require.Len(t, m.calls, 1)
		assert.Contains(t, m.calls[0][0].Text, "send this")
		assert.NotContains(t, m.calls[0][0].Text, "keep")
	})

	t.Run("document is the source without selection", func(t *testing.T) {
		ed := newFakeEditor("whole document")
		ed.pick = 2 // Optimize
		m := &fakeModel{replies: []string{"ok"}}
		app, _ := newTestApp(m)

		require.NoError(t, app.Start(context.Background(), ed))
		assert.Contains(t, m.calls[0][0].Text, "whole document")
	})
}

func TestExplainPanelFixAction(t *testing.T) {
	ed := newFakeEditor("x := broken")
	m := &fakeModel{replies: []string{"It is broken.\n```\nx := fixed\n```", "```\nx := fixed\n```"}}
	app, _ := newTestApp(m)

	require.NoError(t, app.Execute(context.Background(), ed, model.Explain))
	require.Len(t, ed.panels, 1)
	p := ed.panels[0]
	assert.Equal(t, "Error Explanation", p.Title)
	require.Len(t, p.Actions, 1)
	assert.Equal(t, editor.CommandFixCode, p.Actions[0].Message.Command)
	assert.Equal(t, "x := broken", ed.doc, "explain must not edit")

	ed.onMessage[0](p.Actions[0].Message)

	assert.Equal(t, "/* ```\n\n``` */\n\nx := fixed", ed.doc)
	require.Len(t, m.calls, 2)
	assert.Contains(t, m.calls[1][0].Text, "x := broken")
	assert.Contains(t, m.calls[1][0].Text, "fully corrected version")
}

func TestHandleMessageIgnoresUnknownCommand(t *testing.T) {
	ed := newFakeEditor("code")
	m := &fakeModel{}
	app, _ := newTestApp(m)

	require.NoError(t, app.HandleMessage(context.Background(), ed, "code", editor.Message{Command: "other"}))
	assert.Empty(t, m.calls)
}

func TestRunRecoversPanic(t *testing.T) {
	ed := newFakeEditor("code")
	app, _ := newTestApp(&fakeModel{panics: true})

	err := app.Execute(context.Background(), ed, model.Fix)
	var detailed *DetailedError
	require.ErrorAs(t, err, &detailed)
	assert.NotEmpty(t, detailed.Stack)
	assert.Len(t, ed.errs, 1)
}

func TestRunUnknownMode(t *testing.T) {
	ed := newFakeEditor("code")
	app, _ := newTestApp(&fakeModel{})

	err := app.Run(context.Background(), ed, model.Request{Mode: model.Mode(42), Source: "code"})
	assert.Error(t, err)
	assert.Len(t, ed.errs, 1)
}
