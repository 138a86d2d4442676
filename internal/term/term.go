// Package term implements the editor boundary for the command line. The
// document lives in memory; panels and documents are collected for the
// caller to display.
package term

import (
	"context"
	"strings"
	"sync"

	"github.com/sokinpui/gfix/internal/editor"
	"github.com/sokinpui/gfix/internal/source"
)

// Level classifies a notification.
type Level int

const (
	LevelInfo Level = iota
	LevelError
)

// Notification is one message shown to the user.
type Notification struct {
	Level Level
	Text  string
}

// Panel is a panel the operation opened, with its message callback.
type Panel struct {
	editor.Panel
	OnMessage func(editor.Message)
}

// Document is an unsaved document the operation opened.
type Document struct {
	Kind    editor.DocumentKind
	Content string
}

// Editor is an in-memory editor.Editor.
type Editor struct {
	mu            sync.Mutex
	text          string
	sel           editor.Range
	modified      bool
	root          string
	notifications []Notification
	panels        []Panel
	documents     []Document

	// Picker presents a menu. When nil every Pick is cancelled.
	Picker func(placeholder string, items []string) (int, error)
	// Notify, when set, also receives every notification as it happens.
	Notify func(Notification)
}

var _ editor.Editor = (*Editor)(nil)

// New creates an editor over src, writing generated files below root.
func New(src *source.Source, root string) *Editor {
	e := &Editor{text: src.Text, root: root}
	if src.Lines != nil {
		start := editor.Position{Line: src.Lines.Start - 1}
		lastLine := src.Lines.End - 1
		e.sel = editor.Range{
			Start: start,
			End:   editor.Position{Line: lastLine, Col: len(line(src.Text, lastLine))},
		}
	}
	return e
}

func line(text string, n int) string {
	lines := strings.Split(text, "\n")
	if n < 0 || n >= len(lines) {
		return ""
	}
	return lines[n]
}

func (e *Editor) Selection(ctx context.Context) (editor.Selection, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sel.Empty() {
		return editor.Selection{}, nil
	}
	start := editor.Offset(e.text, e.sel.Start)
	end := editor.Offset(e.text, e.sel.End)
	return editor.Selection{Range: e.sel, Text: e.text[start:end]}, nil
}

func (e *Editor) Document(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.text, nil
}

func (e *Editor) Replace(ctx context.Context, r editor.Range, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := editor.Offset(e.text, r.Start)
	end := max(start, editor.Offset(e.text, r.End))
	e.text = e.text[:start] + text + e.text[end:]
	e.sel = editor.Track(e.sel, r, text)
	e.modified = true
	return nil
}

func (e *Editor) Insert(ctx context.Context, p editor.Position, text string) error {
	return e.Replace(ctx, editor.Range{Start: p, End: p}, text)
}

func (e *Editor) OpenDocument(ctx context.Context, kind editor.DocumentKind, content string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.documents = append(e.documents, Document{Kind: kind, Content: content})
	return nil
}

func (e *Editor) ShowPanel(ctx context.Context, p editor.Panel, onMessage func(editor.Message)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.panels = append(e.panels, Panel{Panel: p, OnMessage: onMessage})
	return nil
}

func (e *Editor) Pick(ctx context.Context, placeholder string, items []string) (int, error) {
	if e.Picker == nil {
		return 0, editor.ErrCancelled
	}
	return e.Picker(placeholder, items)
}

func (e *Editor) WorkspaceRoot(ctx context.Context) (string, error) {
	return e.root, nil
}

func (e *Editor) Info(msg string) {
	e.notify(Notification{Level: LevelInfo, Text: msg})
}

func (e *Editor) Error(msg string) {
	e.notify(Notification{Level: LevelError, Text: msg})
}

func (e *Editor) notify(n Notification) {
	e.mu.Lock()
	e.notifications = append(e.notifications, n)
	fn := e.Notify
	e.mu.Unlock()
	if fn != nil {
		fn(n)
	}
}

// Text returns the current document and whether any edit was made.
func (e *Editor) Text() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.text, e.modified
}

// Notifications returns every notification so far.
func (e *Editor) Notifications() []Notification {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Notification(nil), e.notifications...)
}

// Panels returns the panels opened so far.
func (e *Editor) Panels() []Panel {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Panel(nil), e.panels...)
}

// Documents returns the documents opened so far.
func (e *Editor) Documents() []Document {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Document(nil), e.documents...)
}
