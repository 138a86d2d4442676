// Package workspace applies gfix results to files on disk through Neovim
// and keeps the undo history of those writes.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/sokinpui/gfix/internal/fs"
	"github.com/sokinpui/gfix/internal/nvim"
	"github.com/sokinpui/gfix/internal/state"
	"github.com/sokinpui/gfix/model"
)

// ProgressUpdate is a callback function to report progress.
type ProgressUpdate func(current, total int)

// FileManager is the Neovim side of applying changes.
type FileManager interface {
	ApplyChanges(changes []model.FileChange, progressCb func(int)) (updated, failed []string)
	SaveAllBuffers() error
	UndoFiles(fsys afero.Fs, ops []state.Operation, progressCb func(int)) (undone, failed []string)
	RedoFiles(ops []state.Operation, progressCb func(int)) (redone, failed []string)
	Close()
}

// Options configures a Workspace.
type Options struct {
	Fs     afero.Fs
	Root   string
	Buffer bool // leave buffers unsaved
	Logger *zap.Logger
	// Connect opens the file manager. Defaults to a Neovim manager.
	Connect func() (FileManager, error)
}

// Workspace applies changes below one root directory.
type Workspace struct {
	fs               afero.Fs
	root             string
	buffer           bool
	log              *zap.Logger
	connect          func() (FileManager, error)
	stateManager     *state.Manager
	progressCallback ProgressUpdate
}

// New creates a Workspace and loads its history.
func New(opts Options) (*Workspace, error) {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Connect == nil {
		opts.Connect = func() (FileManager, error) {
			m, err := nvim.New()
			if err != nil {
				return nil, err
			}
			return m, nil
		}
	}
	stateManager, err := state.New(opts.Fs, opts.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize state manager: %w", err)
	}
	return &Workspace{
		fs:           opts.Fs,
		root:         opts.Root,
		buffer:       opts.Buffer,
		log:          opts.Logger,
		connect:      opts.Connect,
		stateManager: stateManager,
	}, nil
}

// SetProgressCallback sets a function to be called for progress updates.
func (w *Workspace) SetProgressCallback(cb ProgressUpdate) {
	w.progressCallback = cb
}

func (w *Workspace) progress(total int) func(int) {
	if w.progressCallback == nil {
		return nil
	}
	w.progressCallback(0, total)
	return func(current int) {
		w.progressCallback(current, total)
	}
}

// Apply writes each path's new content through Neovim, saving and recording
// the operation unless the workspace only updates buffers.
func (w *Workspace) Apply(changes map[string]string) (model.Summary, error) {
	if len(changes) == 0 {
		return model.Summary{Message: "Nothing to apply."}, nil
	}

	paths := make([]string, 0, len(changes))
	for path := range changes {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	actions := make(map[string]string, len(paths))
	planChanges := make([]model.FileChange, 0, len(paths))
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return model.Summary{}, err
		}
		action := state.ActionModify
		if !fs.Exists(w.fs, abs) {
			action = state.ActionCreate
			if err := w.fs.MkdirAll(filepath.Dir(abs), 0755); err != nil {
				return model.Summary{}, fmt.Errorf("failed to create directory for %s: %w", path, err)
			}
		}
		actions[abs] = action
		planChanges = append(planChanges, model.FileChange{
			Path:    abs,
			Content: strings.Split(changes[path], "\n"),
			Action:  action,
		})
	}

	manager, err := w.connect()
	if err != nil {
		return model.Summary{}, err
	}
	defer manager.Close()

	updated, failed := manager.ApplyChanges(planChanges, w.progress(len(planChanges)))

	var summary model.Summary
	for _, path := range updated {
		if actions[path] == state.ActionCreate {
			summary.Created = append(summary.Created, path)
		} else {
			summary.Modified = append(summary.Modified, path)
		}
	}
	summary.Failed = failed

	if len(updated) > 0 && !w.buffer {
		if err := manager.SaveAllBuffers(); err != nil {
			return model.Summary{}, err
		}
		if err := w.Record(updated, actions); err != nil {
			return model.Summary{}, err
		}
	}
	if w.buffer {
		summary.Message = "Buffers updated; not saved."
	}

	w.relativizeSummaryPaths(&summary)
	return summary, nil
}

// Record adds one history entry for files already written to disk.
func (w *Workspace) Record(paths []string, actions map[string]string) error {
	fileActions := make(map[string]string, len(paths))
	for _, p := range paths {
		fileActions[p] = actions[p]
	}
	ops := state.CreateOperations(w.fs, fileActions)
	if err := w.stateManager.Write(ops); err != nil {
		return fmt.Errorf("failed to record operation: %w", err)
	}
	w.log.Debug("recorded operation", zap.Int("files", len(ops)))
	return nil
}

// Undo reverts the last recorded operation.
func (w *Workspace) Undo() (model.Summary, error) {
	ops, err := w.stateManager.GetOperationsToUndo()
	if err != nil {
		return model.Summary{}, err
	}
	if len(ops) == 0 {
		return model.Summary{Message: "No operation to undo."}, nil
	}

	manager, err := w.connect()
	if err != nil {
		return model.Summary{}, err
	}
	defer manager.Close()

	undone, failed := manager.UndoFiles(w.fs, ops, w.progress(len(ops)))
	summary := model.Summary{
		Modified: undone,
		Failed:   failed,
		Message:  "Undid last operation.",
	}
	w.relativizeSummaryPaths(&summary)
	return summary, nil
}

// Redo reapplies the last undone operation.
func (w *Workspace) Redo() (model.Summary, error) {
	ops, err := w.stateManager.GetOperationsToRedo()
	if err != nil {
		return model.Summary{}, err
	}
	if len(ops) == 0 {
		return model.Summary{Message: "No operation to redo."}, nil
	}

	manager, err := w.connect()
	if err != nil {
		return model.Summary{}, err
	}
	defer manager.Close()

	redone, failed := manager.RedoFiles(ops, w.progress(len(ops)))
	summary := model.Summary{
		Modified: redone,
		Failed:   failed,
		Message:  "Redid last undone operation.",
	}
	w.relativizeSummaryPaths(&summary)
	return summary, nil
}

// relativizeSummaryPaths converts absolute file paths in a summary to be
// relative to the current working directory for cleaner display.
func (w *Workspace) relativizeSummaryPaths(summary *model.Summary) {
	wd, err := os.Getwd()
	if err != nil {
		return
	}

	makeRelative := func(absPaths []string) []string {
		if absPaths == nil {
			return nil
		}
		relPaths := make([]string, len(absPaths))
		for i, p := range absPaths {
			rel, err := filepath.Rel(wd, p)
			if err != nil {
				relPaths[i] = p
			} else {
				relPaths[i] = rel
			}
		}
		return relPaths
	}

	summary.Created = makeRelative(summary.Created)
	summary.Modified = makeRelative(summary.Modified)
	summary.Failed = makeRelative(summary.Failed)
}
