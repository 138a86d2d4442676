package nvim

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/neovim/go-client/nvim"

	"github.com/sokinpui/gfix/internal/editor"
	"github.com/sokinpui/gfix/internal/render"
)

// bufferEditor implements editor.Editor over one live Neovim buffer.
// The selection is the line range the command was invoked with, tracked
// through the edits gfix makes.
type bufferEditor struct {
	host *Host
	v    *nvim.Nvim
	buf  nvim.Buffer

	mu     sync.Mutex
	ranged bool
	sel    editor.Range
}

func newBufferEditor(h *Host, v *nvim.Nvim, buf nvim.Buffer, rng, line1, line2 int) *bufferEditor {
	return &bufferEditor{
		host:   h,
		v:      v,
		buf:    buf,
		ranged: rng > 0,
		sel: editor.Range{
			Start: editor.Position{Line: line1 - 1},
			End:   editor.Position{Line: line2 - 1},
		},
	}
}

var _ editor.Editor = (*bufferEditor)(nil)

const buftypeLua = `local b = ...; return vim.bo[b].buftype`

func (e *bufferEditor) checkDocument() error {
	valid, err := e.v.IsBufferValid(e.buf)
	if err != nil {
		return err
	}
	if !valid {
		return editor.ErrNoDocument
	}
	var bt string
	if err := e.v.ExecLua(buftypeLua, &bt, e.buf); err != nil {
		return err
	}
	if bt != "" {
		return editor.ErrNoDocument
	}
	return nil
}

func (e *bufferEditor) Selection(ctx context.Context) (editor.Selection, error) {
	if err := e.checkDocument(); err != nil {
		return editor.Selection{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ranged {
		return editor.Selection{}, nil
	}
	lines, err := e.v.BufferLines(e.buf, e.sel.Start.Line, e.sel.End.Line+1, true)
	if err != nil {
		return editor.Selection{}, fmt.Errorf("failed to read selection: %w", err)
	}
	if len(lines) > 0 {
		e.sel.End.Col = len(lines[len(lines)-1])
	}
	return editor.Selection{Range: e.sel, Text: joinLines(lines)}, nil
}

func (e *bufferEditor) Document(ctx context.Context) (string, error) {
	if err := e.checkDocument(); err != nil {
		return "", err
	}
	lines, err := e.v.BufferLines(e.buf, 0, -1, true)
	if err != nil {
		return "", fmt.Errorf("failed to read buffer: %w", err)
	}
	return joinLines(lines), nil
}

func (e *bufferEditor) Replace(ctx context.Context, r editor.Range, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.v.SetBufferText(e.buf, r.Start.Line, r.Start.Col, r.End.Line, r.End.Col, splitLines(text)); err != nil {
		return err
	}
	e.sel = editor.Track(e.sel, r, text)
	return nil
}

func (e *bufferEditor) Insert(ctx context.Context, p editor.Position, text string) error {
	return e.Replace(ctx, editor.Range{Start: p, End: p}, text)
}

func (e *bufferEditor) OpenDocument(ctx context.Context, kind editor.DocumentKind, content string) error {
	b := e.v.NewBatch()
	b.Command("new")
	b.SetBufferLines(0, 0, -1, true, splitLines(content))
	b.Command("setlocal filetype=" + string(kind))
	return b.Execute()
}

func (e *bufferEditor) ShowPanel(ctx context.Context, p editor.Panel, onMessage func(editor.Message)) error {
	content := render.Markdown(p)
	keys := actionKeys(p.Actions)
	if len(keys) > 0 {
		var hints []string
		for i, a := range p.Actions {
			hints = append(hints, fmt.Sprintf("[%s] %s", keys[i], a.Label))
		}
		content += "\n\n" + strings.Join(hints, "  ")
	}

	b := e.v.NewBatch()
	b.Command("vnew")
	b.Command("setlocal buftype=nofile bufhidden=wipe noswapfile filetype=markdown")
	b.SetBufferLines(0, 0, -1, true, splitLines(content))
	b.Command("setlocal nomodifiable")
	for i, a := range p.Actions {
		b.Command(mapping(e.host.channel, p.ID, keys[i], a.Message))
	}
	b.Command(fmt.Sprintf("autocmd BufWipeout <buffer> call rpcnotify(%d, '%s', '%s')", e.host.channel, methodPanelClosed, p.ID))
	if err := b.Execute(); err != nil {
		return fmt.Errorf("failed to open panel: %w", err)
	}
	if onMessage != nil {
		e.host.addPanel(p.ID, onMessage)
	}
	return nil
}

func (e *bufferEditor) Pick(ctx context.Context, placeholder string, items []string) (int, error) {
	choices := make([]string, 0, len(items)+1)
	choices = append(choices, placeholder+":")
	for i, item := range items {
		choices = append(choices, fmt.Sprintf("%d. %s", i+1, item))
	}
	var choice int
	if err := e.v.Call("inputlist", &choice, choices); err != nil {
		return 0, err
	}
	if choice < 1 || choice > len(items) {
		return 0, editor.ErrCancelled
	}
	return choice - 1, nil
}

func (e *bufferEditor) WorkspaceRoot(ctx context.Context) (string, error) {
	var cwd string
	if err := e.v.Call("getcwd", &cwd); err != nil {
		return "", err
	}
	return cwd, nil
}

func (e *bufferEditor) Info(msg string) {
	e.host.notify(msg, levelInfo)
}

func (e *bufferEditor) Error(msg string) {
	e.host.notify(msg, levelError)
}

func joinLines(lines [][]byte) string {
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = string(l)
	}
	return strings.Join(parts, "\n")
}

// actionKeys assigns a normal-mode key to each panel action. The first
// letter of the label is used when free, then digits.
func actionKeys(actions []editor.Action) []string {
	keys := make([]string, len(actions))
	used := map[string]bool{}
	for i, a := range actions {
		k := ""
		if a.Label != "" {
			k = strings.ToUpper(a.Label[:1])
		}
		if k == "" || used[k] {
			k = fmt.Sprint(i + 1)
		}
		used[k] = true
		keys[i] = k
	}
	return keys
}

func mapping(channel int, panelID, key string, msg editor.Message) string {
	return fmt.Sprintf(
		`nnoremap <buffer><silent> %s <Cmd>call rpcnotify(%d, '%s', '%s', '{"command":"%s"}')<CR>`,
		key, channel, methodMessage, panelID, msg.Command,
	)
}
