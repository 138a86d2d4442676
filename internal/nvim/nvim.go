package nvim

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/neovim/go-client/nvim"
	"github.com/spf13/afero"

	"github.com/sokinpui/gfix/internal/fs"
	"github.com/sokinpui/gfix/internal/state"
	"github.com/sokinpui/gfix/model"
)

const (
	undoDir = "~/.local/state/nvim/undo/"
)

// Manager handles the connection and interaction with a Neovim instance
// used to write files, so every change lands in Neovim's persistent undo.
type Manager struct {
	nvim          *nvim.Nvim
	isSelfStarted bool
	cmd           *exec.Cmd
	socketPath    string
}

// New creates a new Neovim manager, connecting to an existing instance
// or starting a new headless one.
func New() (*Manager, error) {
	// Try to connect to a running instance first.
	if addr := os.Getenv("NVIM_LISTEN_ADDRESS"); addr != "" {
		v, err := nvim.Dial(addr)
		if err == nil {
			return &Manager{nvim: v}, nil
		}
	}

	// If that fails, start a temporary headless instance.
	tmpDir, err := os.MkdirTemp("", "gfix-nvim-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir for nvim: %w", err)
	}
	socketPath := filepath.Join(tmpDir, "nvim.sock")

	cmd := exec.Command("nvim", "--headless", "--clean", "--listen", socketPath)
	if err := cmd.Start(); err != nil {
		os.RemoveAll(tmpDir)
		return nil, fmt.Errorf("failed to start headless nvim: %w. Is 'nvim' in your PATH?", err)
	}

	// Wait for the socket file to appear.
	for i := 0; i < 20; i++ {
		if _, err := os.Stat(socketPath); err == nil {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	v, err := nvim.Dial(socketPath)
	if err != nil {
		cmd.Process.Kill()
		cmd.Wait()
		os.RemoveAll(tmpDir)
		return nil, fmt.Errorf("failed to connect to headless nvim: %w", err)
	}

	m := &Manager{
		nvim:          v,
		isSelfStarted: true,
		cmd:           cmd,
		socketPath:    socketPath,
	}
	m.configureTempInstance()
	return m, nil
}

// configureTempInstance sets up undofile for persistent history.
func (m *Manager) configureTempInstance() {
	home, _ := os.UserHomeDir()
	expandedUndoDir := strings.Replace(undoDir, "~", home, 1)
	os.MkdirAll(expandedUndoDir, 0755)

	b := m.nvim.NewBatch()
	b.Command("set undofile")
	b.Command(fmt.Sprintf("set undodir=%s", expandedUndoDir))
	b.Command("set noswapfile")
	// Without undofile support undo and redo simply fail per file later.
	_ = b.Execute()
}

// Close disconnects from Neovim and cleans up if it was self-started.
func (m *Manager) Close() {
	if m.nvim != nil {
		m.nvim.Close()
	}
	if m.isSelfStarted && m.cmd != nil && m.cmd.Process != nil {
		if err := m.cmd.Process.Kill(); err == nil {
			m.cmd.Wait()
			os.RemoveAll(filepath.Dir(m.socketPath))
		}
	}
}

// processSequentially is a generic helper function to run a set of jobs sequentially.
func processSequentially[T any](
	items []T,
	processFn func(item T) (path string, success bool),
	progressCb func(int),
) (succeeded, failed []string) {
	for i, item := range items {
		path, success := processFn(item)
		if success {
			succeeded = append(succeeded, path)
		} else {
			failed = append(failed, path)
		}
		if progressCb != nil {
			progressCb(i + 1)
		}
	}
	return succeeded, failed
}

// ApplyChanges updates Neovim buffers with the provided file contents.
func (m *Manager) ApplyChanges(changes []model.FileChange, progressCb func(int)) (updated, failed []string) {
	processFn := func(change model.FileChange) (string, bool) {
		return change.Path, m.updateBuffer(change.Path, change.Content)
	}
	return processSequentially(changes, processFn, progressCb)
}

func (m *Manager) updateBuffer(filePath string, content []string) bool {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return false
	}

	b := m.nvim.NewBatch()
	b.Command(fmt.Sprintf("edit %s", fnameEscape(absPath)))
	b.SetBufferLines(0, 0, -1, true, toLines(content))
	return b.Execute() == nil
}

// SaveAllBuffers writes all modified buffers to disk.
func (m *Manager) SaveAllBuffers() error {
	if err := m.nvim.Command("wa!"); err != nil {
		return fmt.Errorf("failed to save buffers: %w", err)
	}
	return nil
}

// UndoFiles reverts a set of operations.
func (m *Manager) UndoFiles(fsys afero.Fs, ops []state.Operation, progressCb func(int)) (undone, failed []string) {
	processFn := func(op state.Operation) (string, bool) {
		return op.Path, m.undoFile(fsys, op)
	}
	return processSequentially(ops, processFn, progressCb)
}

func (m *Manager) undoFile(fsys afero.Fs, op state.Operation) bool {
	currentHash, err := fs.GetFileSHA256(fsys, op.Path)
	if err != nil {
		// If the file doesn't exist, the undo of a 'create' is successful.
		return os.IsNotExist(err) && op.Action == state.ActionCreate
	}

	// Core safety check: if the file has been changed, abort the undo for this file.
	if currentHash != op.ContentHash {
		return false
	}

	if op.Action == state.ActionCreate {
		if err := fsys.Remove(op.Path); err != nil {
			return false
		}
		parentDir := filepath.Dir(op.Path)
		if isEmpty, _ := fs.IsEmpty(fsys, parentDir); isEmpty {
			_ = fsys.Remove(parentDir)
		}
		return true
	}

	return m.runOnFile(op.Path, "undo")
}

// RedoFiles redoes a set of operations.
func (m *Manager) RedoFiles(ops []state.Operation, progressCb func(int)) (redone, failed []string) {
	processFn := func(op state.Operation) (string, bool) {
		return op.Path, m.runOnFile(op.Path, "redo")
	}
	return processSequentially(ops, processFn, progressCb)
}

func (m *Manager) runOnFile(filePath, command string) bool {
	absPath, _ := filepath.Abs(filePath)
	b := m.nvim.NewBatch()
	b.Command(fmt.Sprintf("edit! %s", fnameEscape(absPath)))
	b.Command(command)
	b.Command("write")
	return b.Execute() == nil
}

func toLines(content []string) [][]byte {
	lines := make([][]byte, len(content))
	for i, s := range content {
		lines[i] = []byte(s)
	}
	return lines
}

// splitLines turns text into buffer lines; "a\n" becomes ["a", ""].
func splitLines(text string) [][]byte {
	return toLines(strings.Split(text, "\n"))
}

func fnameEscape(path string) string {
	return strings.NewReplacer(" ", `\ `, "%", `\%`, "#", `\#`).Replace(path)
}
