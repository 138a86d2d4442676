// Package editor defines the boundary between gfix and the host editor.
package editor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoDocument is returned when there is no active document to read.
	ErrNoDocument = errors.New("no active document")
	// ErrCancelled is returned by Pick when the user dismisses the menu.
	ErrCancelled = errors.New("selection cancelled")
)

// Position is a zero-based line and byte column.
type Position struct {
	Line int
	Col  int
}

// Range spans from Start (inclusive) to End (exclusive).
type Range struct {
	Start Position
	End   Position
}

// Empty reports whether the range covers no text.
func (r Range) Empty() bool {
	return r.Start == r.End
}

// Selection is the user's current selection in the active document.
type Selection struct {
	Range Range
	Text  string
}

// EndOf returns the position just past the last byte of text.
func EndOf(text string) Position {
	line := strings.Count(text, "\n")
	col := len(text) - (strings.LastIndex(text, "\n") + 1)
	return Position{Line: line, Col: col}
}

// FullRange returns the range covering all of text.
func FullRange(text string) Range {
	return Range{End: EndOf(text)}
}

// Advance returns the position reached after inserting text at p.
func Advance(p Position, text string) Position {
	end := EndOf(text)
	if end.Line == 0 {
		return Position{Line: p.Line, Col: p.Col + end.Col}
	}
	return Position{Line: p.Line + end.Line, Col: end.Col}
}

// Before reports whether p comes strictly before q.
func (p Position) Before(q Position) bool {
	return p.Line < q.Line || (p.Line == q.Line && p.Col < q.Col)
}

// Track returns r as it reads after edit is replaced by text. Replacing r
// itself yields the span of the new text; edits ending at or before r
// shift it. Anything else leaves r alone.
func Track(r, edit Range, text string) Range {
	if edit == r {
		return Range{Start: r.Start, End: Advance(r.Start, text)}
	}
	if r.Start.Before(edit.End) {
		return r
	}
	newEnd := Advance(edit.Start, text)
	shift := func(q Position) Position {
		if q.Line == edit.End.Line {
			return Position{Line: newEnd.Line, Col: newEnd.Col + q.Col - edit.End.Col}
		}
		return Position{Line: q.Line + newEnd.Line - edit.End.Line, Col: q.Col}
	}
	return Range{Start: shift(r.Start), End: shift(r.End)}
}

// Offset converts p to a byte offset in text, clamped to its length.
func Offset(text string, p Position) int {
	off := 0
	for i := 0; i < p.Line; i++ {
		nl := strings.IndexByte(text[off:], '\n')
		if nl < 0 {
			return len(text)
		}
		off += nl + 1
	}
	lineEnd := len(text)
	if nl := strings.IndexByte(text[off:], '\n'); nl >= 0 {
		lineEnd = off + nl
	}
	return min(off+p.Col, lineEnd)
}

// DocumentKind is the content kind of a newly opened document.
type DocumentKind string

const (
	Markdown  DocumentKind = "markdown"
	PlainText DocumentKind = "text"
)

// CommandFixCode is the panel message that asks for the Fix operation.
const CommandFixCode = "fixCode"

// Message is the structured message a panel sends back to gfix.
type Message struct {
	Command string `json:"command"`
}

// DecodeMessage parses a panel message.
func DecodeMessage(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("invalid panel message: %w", err)
	}
	return msg, nil
}

// Section is one titled block of a panel.
type Section struct {
	Heading string
	Body    string
	// Preformatted bodies are shown verbatim; others are rendered as markdown.
	Preformatted bool
}

// Action is a button on a panel that sends Message when triggered.
type Action struct {
	Label   string
	Message Message
}

// Panel is side-panel content.
type Panel struct {
	ID       string
	Title    string
	Sections []Section
	Actions  []Action
}

// Editor is everything gfix needs from the host editor.
type Editor interface {
	// Selection returns the current selection. An empty selection has an
	// empty Range. It returns ErrNoDocument when no document is active.
	Selection(ctx context.Context) (Selection, error)
	// Document returns the full text of the active document.
	Document(ctx context.Context) (string, error)
	Replace(ctx context.Context, r Range, text string) error
	Insert(ctx context.Context, p Position, text string) error
	OpenDocument(ctx context.Context, kind DocumentKind, content string) error
	// ShowPanel renders p beside the document. onMessage receives every
	// message the panel's actions send.
	ShowPanel(ctx context.Context, p Panel, onMessage func(Message)) error
	// Pick presents items and returns the chosen index, or ErrCancelled.
	Pick(ctx context.Context, placeholder string, items []string) (int, error)
	// WorkspaceRoot returns the directory generated files are written to.
	WorkspaceRoot(ctx context.Context) (string, error)
	Info(msg string)
	Error(msg string)
}
