package source

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/spf13/afero"
)

// Kind says where the source text came from.
type Kind int

const (
	File Kind = iota
	Stdin
	Clipboard
)

func (k Kind) String() string {
	switch k {
	case File:
		return "file"
	case Stdin:
		return "stdin"
	case Clipboard:
		return "clipboard"
	default:
		return "unknown"
	}
}

var ErrEmpty = errors.New("source is empty")

// LineRange is a 1-based inclusive span of lines.
type LineRange struct {
	Start int
	End   int
}

// ParseLines parses "a:b" or a single line number "a".
func ParseLines(s string) (*LineRange, error) {
	if s == "" {
		return nil, nil
	}
	startStr, endStr, found := strings.Cut(s, ":")
	if !found {
		endStr = startStr
	}
	start, err := strconv.Atoi(strings.TrimSpace(startStr))
	if err != nil {
		return nil, fmt.Errorf("invalid line range %q: %w", s, err)
	}
	end, err := strconv.Atoi(strings.TrimSpace(endStr))
	if err != nil {
		return nil, fmt.Errorf("invalid line range %q: %w", s, err)
	}
	if start < 1 || end < start {
		return nil, fmt.Errorf("invalid line range %q", s)
	}
	return &LineRange{Start: start, End: end}, nil
}

// Source is the document gfix operates on.
type Source struct {
	Kind  Kind
	Path  string
	Text  string
	Lines *LineRange
}

// Provider determines and retrieves the source content.
type Provider struct {
	fs        afero.Fs
	stdin     io.Reader
	isPiped   func() bool
	clipboard func() (string, error)
}

// New creates a Provider reading from the OS.
func New(fsys afero.Fs) *Provider {
	return &Provider{
		fs:        fsys,
		stdin:     os.Stdin,
		isPiped:   stdinIsPiped,
		clipboard: clipboard.ReadAll,
	}
}

func stdinIsPiped() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// Load reads path when given, otherwise stdin (if piped) or the clipboard.
// lines restricts the selection and is only valid with a path.
func (p *Provider) Load(path string, lines *LineRange) (*Source, error) {
	if path != "" {
		content, err := afero.ReadFile(p.fs, path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		src := &Source{Kind: File, Path: path, Text: string(content), Lines: lines}
		if lines != nil {
			if n := strings.Count(src.Text, "\n") + 1; lines.End > n {
				return nil, fmt.Errorf("line range %d:%d is outside %s (%d lines)", lines.Start, lines.End, path, n)
			}
		}
		return src, nil
	}
	if lines != nil {
		return nil, errors.New("--lines requires a file argument")
	}

	if p.isPiped() {
		content, err := io.ReadAll(p.stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read from stdin: %w", err)
		}
		return nonEmpty(&Source{Kind: Stdin, Text: string(content)})
	}

	content, err := p.clipboard()
	if err != nil {
		return nil, fmt.Errorf("failed to read from clipboard: %w", err)
	}
	return nonEmpty(&Source{Kind: Clipboard, Text: content})
}

func nonEmpty(src *Source) (*Source, error) {
	if strings.TrimSpace(src.Text) == "" {
		return nil, fmt.Errorf("%s: %w", src.Kind, ErrEmpty)
	}
	return src, nil
}
