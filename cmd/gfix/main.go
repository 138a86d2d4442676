package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	xterm "golang.org/x/term"

	"github.com/sokinpui/gfix/cli"
	"github.com/sokinpui/gfix/gfix"
	"github.com/sokinpui/gfix/internal/config"
	"github.com/sokinpui/gfix/internal/editor"
	"github.com/sokinpui/gfix/internal/fs"
	"github.com/sokinpui/gfix/internal/history"
	"github.com/sokinpui/gfix/internal/llm"
	"github.com/sokinpui/gfix/internal/logging"
	"github.com/sokinpui/gfix/internal/nvim"
	"github.com/sokinpui/gfix/internal/render"
	"github.com/sokinpui/gfix/internal/source"
	"github.com/sokinpui/gfix/internal/state"
	"github.com/sokinpui/gfix/internal/term"
	"github.com/sokinpui/gfix/internal/tui"
	"github.com/sokinpui/gfix/internal/ui"
	"github.com/sokinpui/gfix/internal/workspace"
	"github.com/sokinpui/gfix/model"
)

func main() {
	os.Exit(run())
}

func run() int {
	flags, err := cli.ParseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, cli.ErrHelp) {
		return 0
	}
	if err != nil {
		ui.Error("Error: %v", err)
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		ui.Error("Error: %v", err)
		return 1
	}
	cfg, err := config.Load(flags.ConfigPath, cwd)
	if err != nil {
		ui.Error("Failed to load config: %v", err)
		return 1
	}
	log, err := logging.New(cfg.LogFile, flags.Verbose)
	if err != nil {
		ui.Error("Failed to open log: %v", err)
		return 1
	}
	defer log.Sync()

	var startupErr string
	if err := cfg.Validate(); errors.Is(err, config.ErrNoAPIKey) {
		startupErr = config.MissingKeyMessage
		log.Warn("no API key configured")
	}

	osFs := afero.NewOsFs()
	opts := gfix.Options{
		Model:         llm.NewGemini(cfg.APIKey, cfg.Model, log),
		History:       history.New(cfg.History.MaxTurns),
		Fs:            osFs,
		Logger:        log,
		TestCasesFile: cfg.TestCasesFile,
	}

	if flags.Serve {
		if err := nvim.Serve(gfix.New(opts), log, startupErr); err != nil {
			log.Error("host stopped", zap.Error(err))
			return 1
		}
		return 0
	}

	root := fs.FindRoot(cwd)
	ws, err := workspace.New(workspace.Options{
		Fs:     osFs,
		Root:   root,
		Buffer: flags.Buffer,
		Logger: log,
	})
	if err != nil {
		ui.Error("Error: %v", err)
		return 1
	}

	switch {
	case flags.Undo:
		return printSummary("Undo", ws.Undo)
	case flags.Redo:
		return printSummary("Redo", ws.Redo)
	}

	if startupErr != "" {
		ui.Error("%s", startupErr)
		return 1
	}

	src, err := source.New(osFs).Load(flags.File, flags.Lines)
	if err != nil {
		ui.Error("Error: %v", err)
		return 1
	}

	opts.FileWritten = func(path string, created bool) {
		// Only created files can be undone safely; overwrites bypass Neovim.
		if !created {
			return
		}
		if err := ws.Record([]string{path}, map[string]string{path: state.ActionCreate}); err != nil {
			log.Warn("failed to record generated file", zap.Error(err))
		}
	}
	app := gfix.New(opts)
	ed := term.New(src, root)

	if flags.NoAnimation || !xterm.IsTerminal(int(os.Stdout.Fd())) {
		err = runPlain(app, ed, flags, src)
	} else {
		err = runTUI(app, ed, flags)
	}
	if err != nil && !errors.Is(err, gfix.ErrNoChoice) {
		var de *gfix.DetailedError
		if errors.As(err, &de) {
			fmt.Fprintf(os.Stderr, "\n--- Stack Trace ---\n%s\n", de.Stack)
		}
		log.Info("invocation failed", zap.Error(err))
	}

	if err := writeHTML(osFs, flags.HTML, ed.Panels()); err != nil {
		ui.Error("Error: %v", err)
		return 1
	}
	if code := saveResult(ws, ed, src); code != 0 {
		return code
	}
	if err != nil && !errors.Is(err, gfix.ErrNoChoice) {
		return 1
	}
	return 0
}

func runTUI(app *gfix.App, ed *term.Editor, flags *cli.Config) error {
	p := tea.NewProgram(tui.New(app, ed, flags.Mode))
	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("error running program: %w", err)
	}
	if m, ok := final.(tui.Model); ok {
		return m.Err()
	}
	return nil
}

func runPlain(app *gfix.App, ed *term.Editor, flags *cli.Config, src *source.Source) error {
	ed.Notify = func(n term.Notification) {
		if n.Level == term.LevelError {
			ui.Error("%s", n.Text)
		} else {
			ui.Info("%s", n.Text)
		}
	}
	if src.Kind != source.Stdin {
		ed.Picker = promptPicker(os.Stdin, os.Stderr)
	}

	ctx := context.Background()
	var err error
	if flags.Mode != nil {
		err = app.Execute(ctx, ed, *flags.Mode)
	} else {
		err = app.Start(ctx, ed)
	}

	for _, p := range ed.Panels() {
		fmt.Println(render.Markdown(p.Panel))
	}
	for _, d := range ed.Documents() {
		fmt.Println(d.Content)
	}
	return err
}

// promptPicker asks for a numbered choice on out and reads it from in.
func promptPicker(in io.Reader, out io.Writer) func(string, []string) (int, error) {
	return func(placeholder string, items []string) (int, error) {
		fmt.Fprintln(out, placeholder+":")
		for i, item := range items {
			fmt.Fprintf(out, "  %d. %s\n", i+1, item)
		}
		fmt.Fprint(out, "> ")

		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && line == "" {
			return 0, editor.ErrCancelled
		}
		n, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil || n < 1 || n > len(items) {
			return 0, editor.ErrCancelled
		}
		return n - 1, nil
	}
}

// saveResult writes an edited document back to where it came from.
func saveResult(ws *workspace.Workspace, ed *term.Editor, src *source.Source) int {
	text, modified := ed.Text()
	if !modified {
		return 0
	}

	switch src.Kind {
	case source.File:
		path, err := filepath.Abs(src.Path)
		if err != nil {
			ui.Error("Error: %v", err)
			return 1
		}
		summary, err := ws.Apply(map[string]string{path: text})
		if err != nil {
			ui.Error("Error: %v", err)
			return 1
		}
		if summary.Message != "" {
			ui.Info("%s", summary.Message)
		}
		ui.PrintSummary("Summary", summary.Created, summary.Modified, summary.Failed)
		if len(summary.Failed) > 0 {
			return 1
		}
	case source.Clipboard:
		if err := clipboard.WriteAll(text); err != nil {
			ui.Error("Failed to write clipboard: %v", err)
			fmt.Println(text)
			return 1
		}
		ui.Success("Fixed code copied to clipboard.")
	default:
		fmt.Println(text)
	}
	return 0
}

// writeHTML writes each panel as a page; later panels get a numeric suffix.
func writeHTML(fsys afero.Fs, path string, panels []term.Panel) error {
	if path == "" || len(panels) == 0 {
		return nil
	}
	for i, p := range panels {
		page, err := render.HTML(p.Panel)
		if err != nil {
			return err
		}
		if err := afero.WriteFile(fsys, htmlPath(path, i), []byte(page), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", htmlPath(path, i), err)
		}
	}
	return nil
}

func htmlPath(path string, i int) string {
	if i == 0 {
		return path
	}
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(path, ext), i+1, ext)
}

func printSummary(title string, fn func() (model.Summary, error)) int {
	summary, err := fn()
	if err != nil {
		ui.Error("Error: %v", err)
		return 1
	}
	if summary.Message != "" {
		ui.Info("%s", summary.Message)
	}
	ui.PrintSummary(title, summary.Created, summary.Modified, summary.Failed)
	return 0
}
