package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/sokinpui/gfix/internal/source"
	"github.com/sokinpui/gfix/model"
)

// Config holds all the command-line flag values.
type Config struct {
	File        string
	Mode        *model.Mode
	Lines       *source.LineRange
	Buffer      bool
	Undo        bool
	Redo        bool
	HTML        string
	ConfigPath  string
	Verbose     bool
	NoAnimation bool
	Serve       bool
}

// ErrHelp is returned when usage was requested and printed.
var ErrHelp = pflag.ErrHelp

// ParseFlags defines and parses command-line flags using pflag.
func ParseFlags(args []string, out io.Writer) (*Config, error) {
	cfg := &Config{}
	var mode, lines string

	flags := pflag.NewFlagSet("gfix", pflag.ContinueOnError)
	flags.SetOutput(out)

	flags.StringVarP(&mode, "mode", "m", "", "Run this operation without the menu (fix, explain, optimize, debug, testgen, cicd).")
	flags.StringVarP(&lines, "lines", "l", "", "Use lines a:b of FILE as the selection.")
	flags.BoolVarP(&cfg.Buffer, "buffer", "b", false, "Update buffers in Neovim without saving them to disk (changes are saved by default).")
	flags.StringVar(&cfg.HTML, "html", "", "Also write panels as an HTML page to this path.")
	flags.StringVarP(&cfg.ConfigPath, "config", "c", "", "Config file (default ~/.config/gfix/config.yaml).")
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Log at debug level.")
	flags.BoolVar(&cfg.NoAnimation, "no-animation", false, "Disable the interactive interface and print results.")

	// Mutually exclusive history group
	flags.BoolVarP(&cfg.Undo, "undo", "u", false, "Undo the last applied fix.")
	flags.BoolVarP(&cfg.Redo, "redo", "r", false, "Redo the last undone fix.")

	flags.Usage = func() {
		fmt.Fprintln(out, "Usage: gfix [flags] [FILE]")
		fmt.Fprintln(out, "       gfix serve")
		fmt.Fprintln(out, "\nAsk Gemini to fix, explain, optimize or debug code from FILE, stdin (pipe) or the clipboard.")
		fmt.Fprintln(out, "'gfix serve' runs as a Neovim remote plugin providing :Gfix.")
		fmt.Fprintln(out, "\nExample: gfix -m fix -l 10:24 main.go")
		fmt.Fprintln(out, "\nFlags:")
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	// Validate mutually exclusive flags
	if cfg.Undo && cfg.Redo {
		return nil, errors.New("--undo and --redo are mutually exclusive")
	}

	switch rest := flags.Args(); {
	case len(rest) > 1:
		return nil, fmt.Errorf("expected at most one file, got %d", len(rest))
	case len(rest) == 1 && rest[0] == "serve":
		cfg.Serve = true
	case len(rest) == 1:
		cfg.File = rest[0]
	}

	if mode != "" {
		m, err := model.ParseMode(mode)
		if err != nil {
			return nil, err
		}
		cfg.Mode = &m
	}

	lr, err := source.ParseLines(lines)
	if err != nil {
		return nil, err
	}
	if lr != nil && cfg.File == "" {
		return nil, errors.New("--lines requires a file argument")
	}
	cfg.Lines = lr

	return cfg, nil
}
