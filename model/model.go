package model

import (
	"fmt"
	"strings"
)

// Mode selects which operation handler processes a request.
type Mode int

const (
	Fix Mode = iota
	Explain
	Optimize
	Debug
	TestGen
	CICD
)

// Modes lists every mode in menu order.
var Modes = []Mode{Fix, Explain, Optimize, Debug, TestGen, CICD}

var labels = map[Mode]string{
	Fix:      "Fix Code",
	Explain:  "Explain Error",
	Optimize: "Suggest Faster/Optimized Solutions",
	Debug:    "AI Debugging (Flow Diagrams & Edge Cases)",
	TestGen:  "Auto Unit Test & Edge Case Generator",
	CICD:     "Auto CI/CD Integration",
}

var names = map[Mode]string{
	Fix:      "fix",
	Explain:  "explain",
	Optimize: "optimize",
	Debug:    "debug",
	TestGen:  "testgen",
	CICD:     "cicd",
}

// Label is the menu text shown for the mode.
func (m Mode) Label() string {
	if l, ok := labels[m]; ok {
		return l
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// String returns the short name used on the command line and in logs.
func (m Mode) String() string {
	if n, ok := names[m]; ok {
		return n
	}
	return fmt.Sprintf("mode%d", int(m))
}

// Labels returns the menu labels in menu order.
func Labels() []string {
	out := make([]string, len(Modes))
	for i, m := range Modes {
		out[i] = m.Label()
	}
	return out
}

// ParseMode accepts either a short name ("fix") or a full menu label.
func ParseMode(s string) (Mode, error) {
	s = strings.TrimSpace(s)
	for _, m := range Modes {
		if strings.EqualFold(s, names[m]) || s == labels[m] {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown mode %q (want one of fix, explain, optimize, debug, testgen, cicd)", s)
}

// Request is one invocation of an operation handler.
type Request struct {
	Mode         Mode
	Source       string
	HasSelection bool
}

// Summary holds the results of an operation for display.
type Summary struct {
	Created  []string
	Modified []string
	Failed   []string
	Message  string
}

// FileChange represents a single planned change to a file.
type FileChange struct {
	Path    string
	Content []string
	Action  string
}
