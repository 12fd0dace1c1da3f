package filebackend

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// WorkspaceBackend is a sandboxed-disk FileBackend rooted at a canonical
// directory. Any path containing a ".." segment is rejected outright
// (avoiding a TOCTOU window on paths that do not yet exist); existing
// paths are additionally canonicalized and checked to resolve inside the
// root, which also catches symlink escapes.
type WorkspaceBackend struct {
	root string
}

// NewWorkspaceBackend canonicalizes root immediately so later comparisons
// are cheap and consistent.
func NewWorkspaceBackend(root string) (*WorkspaceBackend, error) {
	if root == "" {
		return nil, ErrWorkspaceNotSet
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("filebackend: resolve workspace root: %w", err)
	}
	canon, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) {
			if mkErr := os.MkdirAll(abs, 0o755); mkErr != nil {
				return nil, fmt.Errorf("filebackend: create workspace root: %w", mkErr)
			}
			canon, err = filepath.EvalSymlinks(abs)
		}
		if err != nil {
			return nil, fmt.Errorf("filebackend: resolve workspace root: %w", err)
		}
	}
	return &WorkspaceBackend{root: canon}, nil
}

// resolve implements the path-safety contract shared with the Rust
// original's resolve_in_workspace: trims leading slash, rejects any ".."
// segment outright, and for paths that already exist on disk verifies the
// canonicalized target is still inside the canonical root.
func (w *WorkspaceBackend) resolve(relPath string) (string, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(relPath), "/")
	if trimmed == "" {
		return w.root, nil
	}
	for _, seg := range strings.Split(trimmed, "/") {
		if seg == ".." {
			return "", &PathError{Op: "resolve", Path: relPath, Err: ErrPathEscapesWorkspace}
		}
	}

	full := filepath.Join(w.root, trimmed)
	if canon, err := filepath.EvalSymlinks(full); err == nil {
		if !isWithin(w.root, canon) {
			return "", &PathError{Op: "resolve", Path: relPath, Err: ErrPathEscapesWorkspace}
		}
		return canon, nil
	}
	// Path does not exist yet (e.g. a pending write): fall back to a
	// non-canonicalized containment check.
	if !isWithin(w.root, full) {
		return "", &PathError{Op: "resolve", Path: relPath, Err: ErrPathEscapesWorkspace}
	}
	return full, nil
}

func isWithin(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && rel != "..")
}

func (w *WorkspaceBackend) relFromRoot(absPath string) string {
	rel, err := filepath.Rel(w.root, absPath)
	if err != nil {
		return absPath
	}
	return filepath.ToSlash(rel)
}

func (w *WorkspaceBackend) Ls(_ context.Context, path string) ([]FileInfo, error) {
	dir, err := w.resolve(path)
	if err != nil {
		return nil, err
	}
	stat, err := os.Stat(dir)
	if err != nil {
		return nil, &PathError{Op: "ls", Path: path, Err: err}
	}
	if !stat.IsDir() {
		return nil, &PathError{Op: "ls", Path: path, Err: fmt.Errorf("not a directory")}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &PathError{Op: "ls", Path: path, Err: err}
	}

	infos := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		modTime := info.ModTime()
		infos = append(infos, FileInfo{
			Name:       e.Name(),
			Path:       w.relFromRoot(filepath.Join(dir, e.Name())),
			IsDir:      e.IsDir(),
			Size:       info.Size(),
			ModifiedAt: &modTime,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
	return infos, nil
}

func (w *WorkspaceBackend) Read(_ context.Context, path string, offsetLines, limitLines int) (string, error) {
	full, err := w.resolve(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return "", &PathError{Op: "read", Path: path, Err: err}
	}
	return formatNumberedLines(string(data), offsetLines, limitLines), nil
}

func (w *WorkspaceBackend) Write(_ context.Context, path string, content string) (WriteResult, error) {
	full, err := w.resolve(path)
	if err != nil {
		return WriteResult{}, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return WriteResult{}, &PathError{Op: "write", Path: path, Err: err}
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return WriteResult{}, &PathError{Op: "write", Path: path, Err: err}
	}
	return WriteResult{Path: w.relFromRoot(full)}, nil
}

func (w *WorkspaceBackend) Edit(_ context.Context, path string, oldStr, newStr string, replaceAll bool) (EditResult, error) {
	full, err := w.resolve(path)
	if err != nil {
		return EditResult{}, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return EditResult{}, &PathError{Op: "edit", Path: path, Err: err}
	}
	updated, count, err := applyEdit(string(data), oldStr, newStr, replaceAll)
	if err != nil {
		return EditResult{}, &PathError{Op: "edit", Path: path, Err: err}
	}
	if err := os.WriteFile(full, []byte(updated), 0o644); err != nil {
		return EditResult{}, &PathError{Op: "edit", Path: path, Err: err}
	}
	return EditResult{Path: w.relFromRoot(full), OccurrencesEdited: count}, nil
}

func (w *WorkspaceBackend) listAllFiles() ([]string, error) {
	var files []string
	err := filepath.WalkDir(w.root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		canon, cerr := filepath.EvalSymlinks(p)
		if cerr != nil || !isWithin(w.root, canon) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			files = append(files, w.relFromRoot(p))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func (w *WorkspaceBackend) Glob(_ context.Context, pattern string, path string) ([]FileInfo, error) {
	base, err := w.resolve(path)
	if err != nil {
		return nil, err
	}

	files, err := w.listAllFiles()
	if err != nil {
		return nil, &PathError{Op: "glob", Path: path, Err: err}
	}

	basePrefix := w.relFromRoot(base)
	var infos []FileInfo
	for _, f := range files {
		if basePrefix != "" && basePrefix != "." && !strings.HasPrefix(f, basePrefix+"/") && f != basePrefix {
			continue
		}
		if !matchGlob(pattern, f) {
			continue
		}
		stat, err := os.Stat(filepath.Join(w.root, f))
		if err != nil {
			continue
		}
		modTime := stat.ModTime()
		infos = append(infos, FileInfo{Name: filepath.Base(f), Path: f, IsDir: false, Size: stat.Size(), ModifiedAt: &modTime})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
	return infos, nil
}

func (w *WorkspaceBackend) Grep(_ context.Context, pattern string, path string, globPattern string) ([]GrepMatch, error) {
	var targets []string

	if path != "" {
		full, err := w.resolve(path)
		if err != nil {
			return nil, err
		}
		if stat, err := os.Stat(full); err == nil && !stat.IsDir() {
			targets = []string{w.relFromRoot(full)}
		}
	}
	if targets == nil {
		files, err := w.listAllFiles()
		if err != nil {
			return nil, &PathError{Op: "grep", Path: path, Err: err}
		}
		for _, f := range files {
			if globPattern != "" && !matchGlob(globPattern, f) {
				continue
			}
			targets = append(targets, f)
		}
	}

	var matches []GrepMatch
	for _, rel := range targets {
		data, err := os.ReadFile(filepath.Join(w.root, rel))
		if err != nil {
			continue
		}
		for i, line := range strings.Split(string(data), "\n") {
			if strings.Contains(line, pattern) {
				matches = append(matches, GrepMatch{Path: rel, Line: i + 1, Text: strings.TrimSpace(line)})
			}
		}
	}
	return matches, nil
}
