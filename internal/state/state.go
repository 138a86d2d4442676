package state

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/sokinpui/gfix/internal/fs"
)

const (
	stateDirName  = ".gfix"
	stateFileName = "state.gfix"
)

// noHash stands in for an empty hash so no record line is ever blank.
const noHash = "-"

const (
	ActionCreate = "create"
	ActionModify = "modify"
)

// Operation is one file gfix created or modified.
type Operation struct {
	Path        string
	Action      string
	ContentHash string // SHA256 of the file content after the operation
}

// HistoryEntry represents one complete run of the tool.
type HistoryEntry struct {
	Timestamp  int64
	Operations []Operation
}

// State represents the entire state file.
type State struct {
	History      []HistoryEntry
	CurrentIndex int
}

// Manager handles the lifecycle of the state file.
type Manager struct {
	fs        afero.Fs
	statePath string
	state     *State
}

// New creates and loads a state manager for the workspace at root.
func New(fsys afero.Fs, root string) (*Manager, error) {
	stateDir := filepath.Join(root, stateDirName)
	if err := fsys.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("could not create state directory: %w", err)
	}
	m := &Manager{
		fs:        fsys,
		statePath: filepath.Join(stateDir, stateFileName),
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

func emptyState() *State {
	return &State{CurrentIndex: -1, History: []HistoryEntry{}}
}

// load parses the state file. The format is blank-line separated blocks:
// the current index, then one block per history entry holding a timestamp
// line followed by action/path/hash line triples.
func (m *Manager) load() error {
	data, err := afero.ReadFile(m.fs, m.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			m.state = emptyState()
			return nil
		}
		return err
	}

	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	blocks := strings.Split(content, "\n\n")
	if len(blocks) == 0 || strings.TrimSpace(blocks[0]) == "" {
		m.state = emptyState()
		return nil
	}

	index, err := strconv.Atoi(strings.TrimSpace(blocks[0]))
	if err != nil {
		return fmt.Errorf("invalid state file: could not parse current index: %w", err)
	}
	m.state = &State{CurrentIndex: index, History: []HistoryEntry{}}

	for _, block := range blocks[1:] {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		lines := strings.Split(block, "\n")

		ts, err := strconv.ParseInt(lines[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid state file: could not parse timestamp from '%s': %w", lines[0], err)
		}

		entry := HistoryEntry{Timestamp: ts}
		opLines := lines[1:]
		if len(opLines)%3 != 0 {
			return fmt.Errorf("invalid state file: incomplete operation record")
		}
		for i := 0; i < len(opLines); i += 3 {
			hash := opLines[i+2]
			if hash == noHash {
				hash = ""
			}
			entry.Operations = append(entry.Operations, Operation{
				Action:      opLines[i],
				Path:        opLines[i+1],
				ContentHash: hash,
			})
		}
		m.state.History = append(m.state.History, entry)
	}

	if m.state.CurrentIndex >= len(m.state.History) {
		m.state.CurrentIndex = len(m.state.History) - 1
	}
	return nil
}

func (m *Manager) save() error {
	blocks := []string{strconv.Itoa(m.state.CurrentIndex)}

	for _, entry := range m.state.History {
		lines := []string{strconv.FormatInt(entry.Timestamp, 10)}
		for _, op := range entry.Operations {
			hash := op.ContentHash
			if hash == "" {
				hash = noHash
			}
			lines = append(lines, op.Action, op.Path, hash)
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}

	content := strings.Join(blocks, "\n\n")
	if err := afero.WriteFile(m.fs, m.statePath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// Write adds a new set of operations to the history, dropping any entries
// that were undone.
func (m *Manager) Write(operations []Operation) error {
	if len(operations) == 0 {
		return nil
	}
	if m.state.CurrentIndex < len(m.state.History)-1 {
		m.state.History = m.state.History[:m.state.CurrentIndex+1]
	}

	m.state.History = append(m.state.History, HistoryEntry{
		Timestamp:  time.Now().UTC().Unix(),
		Operations: operations,
	})
	m.state.CurrentIndex++
	return m.save()
}

// GetOperationsToUndo gets the last operations and moves the history pointer.
func (m *Manager) GetOperationsToUndo() ([]Operation, error) {
	if m.state.CurrentIndex < 0 {
		return nil, nil
	}
	ops := m.state.History[m.state.CurrentIndex].Operations
	m.state.CurrentIndex--
	return ops, m.save()
}

// GetOperationsToRedo gets the next operations and moves the history pointer.
func (m *Manager) GetOperationsToRedo() ([]Operation, error) {
	nextIndex := m.state.CurrentIndex + 1
	if nextIndex >= len(m.state.History) {
		return nil, nil
	}
	m.state.CurrentIndex = nextIndex
	return m.state.History[nextIndex].Operations, m.save()
}

// CreateOperations records the post-operation hash of every updated file.
func CreateOperations(fsys afero.Fs, fileActions map[string]string) []Operation {
	ops := make([]Operation, 0, len(fileActions))
	for path, action := range fileActions {
		hash, err := fs.GetFileSHA256(fsys, path)
		if err != nil {
			// An empty hash makes a later undo refuse to touch the file.
			hash = ""
		}
		ops = append(ops, Operation{Path: path, Action: action, ContentHash: hash})
	}
	sort.Slice(ops, func(i, j int) bool {
		return ops[i].Path < ops[j].Path
	})
	return ops
}
