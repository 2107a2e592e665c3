package extraction

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// markerName tags directories this package created. Close refuses to remove
// a directory without the marker so a mistyped path never wipes user data.
const markerName = ".matport-workspace"

// Workspace is an extracted archive on disk.
type Workspace struct {
	root string
}

func newWorkspace(root string) (*Workspace, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("workspace dir required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	if err := os.WriteFile(filepath.Join(root, markerName), nil, 0o644); err != nil {
		return nil, fmt.Errorf("write workspace marker: %w", err)
	}
	return &Workspace{root: root}, nil
}

// CreateWorkspace makes a new marked workspace for callers that assemble
// definition files before Repack.
func CreateWorkspace(root string) (*Workspace, error) {
	return newWorkspace(root)
}

// OpenWorkspace wraps an existing directory previously created by Extract.
func OpenWorkspace(root string) (*Workspace, error) {
	if _, err := os.Stat(filepath.Join(root, markerName)); err != nil {
		return nil, fmt.Errorf("not a workspace (missing marker): %w", err)
	}
	return &Workspace{root: root}, nil
}

// Root returns the workspace directory.
func (w *Workspace) Root() string { return w.root }

// Definitions lists the workspace's definition files as sorted
// slash-separated paths relative to the root.
func (w *Workspace) Definitions() ([]string, error) {
	var files []string
	err := filepath.WalkDir(w.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(entry.Name()), ".xml") {
			return nil
		}
		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk workspace: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// ReadDefinition returns the contents of one definition file by its
// workspace-relative path.
func (w *Workspace) ReadDefinition(rel string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(w.root, filepath.FromSlash(rel)))
	if err != nil {
		return nil, fmt.Errorf("read definition: %w", err)
	}
	return data, nil
}

// WriteDefinition writes a definition file at a workspace-relative path,
// creating parent directories as needed. Export uses this before Repack.
func (w *Workspace) WriteDefinition(rel string, data []byte) error {
	target := filepath.Join(w.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create definition dir: %w", err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return fmt.Errorf("write definition: %w", err)
	}
	return nil
}

// Close removes the workspace from disk. It refuses directories that lack
// the marker file.
func (w *Workspace) Close() error {
	if w == nil || w.root == "" {
		return nil
	}
	if _, err := os.Stat(filepath.Join(w.root, markerName)); err != nil {
		return fmt.Errorf("refusing to remove %s: %w", w.root, err)
	}
	if err := os.RemoveAll(w.root); err != nil {
		return fmt.Errorf("remove workspace: %w", err)
	}
	return nil
}
