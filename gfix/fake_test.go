package gfix

import (
	"context"
	"strings"
	"sync"

	"github.com/sokinpui/gfix/internal/editor"
	"github.com/sokinpui/gfix/internal/history"
)

// fakeEditor is an in-memory editor.Editor that records every effect.
type fakeEditor struct {
	mu sync.Mutex

	doc   string
	sel   editor.Range
	noDoc bool
	root  string

	pick    int
	pickErr error

	infos     []string
	errs      []string
	panels    []editor.Panel
	onMessage []func(editor.Message)
	documents []string
	mutations int
}

func newFakeEditor(doc string) *fakeEditor {
	return &fakeEditor{doc: doc, root: "/work"}
}

// selectText selects the first occurrence of s.
func (f *fakeEditor) selectText(s string) {
	start := strings.Index(f.doc, s)
	if start < 0 {
		panic("text not in document: " + s)
	}
	f.sel = editor.Range{
		Start: editor.EndOf(f.doc[:start]),
		End:   editor.EndOf(f.doc[:start+len(s)]),
	}
}

func (f *fakeEditor) offset(p editor.Position) int {
	off := 0
	for i := 0; i < p.Line; i++ {
		nl := strings.IndexByte(f.doc[off:], '\n')
		if nl < 0 {
			return len(f.doc)
		}
		off += nl + 1
	}
	return min(off+p.Col, len(f.doc))
}

func (f *fakeEditor) Selection(context.Context) (editor.Selection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.noDoc {
		return editor.Selection{}, editor.ErrNoDocument
	}
	return editor.Selection{Range: f.sel, Text: f.doc[f.offset(f.sel.Start):f.offset(f.sel.End)]}, nil
}

func (f *fakeEditor) Document(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.noDoc {
		return "", editor.ErrNoDocument
	}
	return f.doc, nil
}

func (f *fakeEditor) Replace(_ context.Context, r editor.Range, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.doc = f.doc[:f.offset(r.Start)] + text + f.doc[f.offset(r.End):]
	f.sel = editor.Range{}
	f.mutations++
	return nil
}

func (f *fakeEditor) Insert(_ context.Context, p editor.Position, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	at := f.offset(p)
	f.doc = f.doc[:at] + text + f.doc[at:]
	f.mutations++
	return nil
}

func (f *fakeEditor) OpenDocument(_ context.Context, kind editor.DocumentKind, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.documents = append(f.documents, string(kind)+":"+content)
	f.mutations++
	return nil
}

func (f *fakeEditor) ShowPanel(_ context.Context, p editor.Panel, onMessage func(editor.Message)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.panels = append(f.panels, p)
	f.onMessage = append(f.onMessage, onMessage)
	f.mutations++
	return nil
}

func (f *fakeEditor) Pick(context.Context, string, []string) (int, error) {
	return f.pick, f.pickErr
}

func (f *fakeEditor) WorkspaceRoot(context.Context) (string, error) {
	return f.root, nil
}

func (f *fakeEditor) Info(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.infos = append(f.infos, msg)
}

func (f *fakeEditor) Error(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs = append(f.errs, msg)
}

// fakeModel replays canned replies and records every request.
type fakeModel struct {
	mu      sync.Mutex
	replies []string
	err     error
	calls   [][]history.Turn
	panics  bool
}

func (m *fakeModel) Generate(_ context.Context, turns []history.Turn) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.panics {
		panic("boom")
	}
	m.calls = append(m.calls, turns)
	if m.err != nil {
		return "", m.err
	}
	if len(m.replies) == 0 {
		return "", nil
	}
	reply := m.replies[0]
	m.replies = m.replies[1:]
	return reply, nil
}
