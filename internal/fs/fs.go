package fs

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// FindRoot returns the git top-level directory containing dir, or dir itself
// when it is not inside a repository.
func FindRoot(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	cmd.Dir = abs
	output, err := cmd.Output()
	if err != nil {
		return abs
	}
	root := strings.TrimSpace(string(output))
	if root == "" {
		return abs
	}
	return root
}

// GetFileSHA256 returns the hex SHA256 of the file at path.
func GetFileSHA256(fsys afero.Fs, path string) (string, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// IsEmpty reports whether dir has no entries.
func IsEmpty(fsys afero.Fs, dir string) (bool, error) {
	return afero.IsEmpty(fsys, dir)
}

// Exists reports whether path exists.
func Exists(fsys afero.Fs, path string) bool {
	ok, err := afero.Exists(fsys, path)
	return err == nil && ok
}
