package filebackend

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/dshills/langgraph-go/graph/memstore"
)

// fsNamespace is the fixed Store namespace backing this variant (spec §6).
var fsNamespace = []string{"fs"}

// StoreBackend implements FileBackend over a memstore.Store: files are
// string values under namespace "fs"; directories are implicit (a key
// "a/b" contributes an implicit prefix "a/").
type StoreBackend struct {
	store memstore.Store
}

// NewStoreBackend wraps an existing Store as a file backend.
func NewStoreBackend(store memstore.Store) *StoreBackend {
	return &StoreBackend{store: store}
}

func (s *StoreBackend) allKeys(ctx context.Context) ([]string, error) {
	items, err := s.store.Search(ctx, fsNamespace, "", 0)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(items))
	for _, it := range items {
		keys = append(keys, it.Key)
	}
	return keys, nil
}

func (s *StoreBackend) getString(ctx context.Context, key string) (string, bool) {
	item, err := s.store.Get(ctx, fsNamespace, key)
	if err != nil {
		return "", false
	}
	v, ok := item.Value.(string)
	return v, ok
}

func (s *StoreBackend) Ls(ctx context.Context, path string) ([]FileInfo, error) {
	prefix := strings.Trim(path, "/")
	prefixKey := ""
	if prefix != "" {
		prefixKey = prefix + "/"
	}

	keys, err := s.allKeys(ctx)
	if err != nil {
		return nil, &PathError{Op: "ls", Path: path, Err: err}
	}

	var infos []FileInfo
	for _, k := range keys {
		if k != prefix && !strings.HasPrefix(k, prefixKey) {
			continue
		}
		content, _ := s.getString(ctx, k)
		infos = append(infos, FileInfo{Name: baseName(k), Path: k, IsDir: false, Size: int64(len(content))})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
	return infos, nil
}

func baseName(k string) string { return path.Base(k) }

func (s *StoreBackend) Read(ctx context.Context, p string, offsetLines, limitLines int) (string, error) {
	content, ok := s.getString(ctx, strings.Trim(p, "/"))
	if !ok {
		return "", &PathError{Op: "read", Path: p, Err: fmt.Errorf("file '/%s' not found", p)}
	}
	return formatNumberedLines(content, offsetLines, limitLines), nil
}

func (s *StoreBackend) Write(ctx context.Context, p string, content string) (WriteResult, error) {
	key := strings.Trim(p, "/")
	if err := s.store.Put(ctx, fsNamespace, key, content); err != nil {
		return WriteResult{}, &PathError{Op: "write", Path: p, Err: err}
	}
	return WriteResult{Path: key}, nil
}

func (s *StoreBackend) Edit(ctx context.Context, p string, oldStr, newStr string, replaceAll bool) (EditResult, error) {
	key := strings.Trim(p, "/")
	content, ok := s.getString(ctx, key)
	if !ok {
		return EditResult{}, &PathError{Op: "edit", Path: p, Err: fmt.Errorf("file '/%s' not found", p)}
	}
	updated, count, err := applyEdit(content, oldStr, newStr, replaceAll)
	if err != nil {
		return EditResult{}, &PathError{Op: "edit", Path: p, Err: err}
	}
	if err := s.store.Put(ctx, fsNamespace, key, updated); err != nil {
		return EditResult{}, &PathError{Op: "edit", Path: p, Err: err}
	}
	return EditResult{Path: key, OccurrencesEdited: count}, nil
}

func (s *StoreBackend) Glob(ctx context.Context, pattern string, p string) ([]FileInfo, error) {
	prefix := strings.Trim(p, "/")
	prefixKey := ""
	if prefix != "" {
		prefixKey = prefix + "/"
	}
	keys, err := s.allKeys(ctx)
	if err != nil {
		return nil, &PathError{Op: "glob", Path: p, Err: err}
	}

	var infos []FileInfo
	for _, k := range keys {
		if prefix != "" && k != prefix && !strings.HasPrefix(k, prefixKey) {
			continue
		}
		if !matchGlob(pattern, k) {
			continue
		}
		content, _ := s.getString(ctx, k)
		infos = append(infos, FileInfo{Name: baseName(k), Path: k, IsDir: false, Size: int64(len(content))})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
	return infos, nil
}

func (s *StoreBackend) Grep(ctx context.Context, pattern string, p string, globPattern string) ([]GrepMatch, error) {
	keys, err := s.allKeys(ctx)
	if err != nil {
		return nil, &PathError{Op: "grep", Path: p, Err: err}
	}

	prefix := strings.Trim(p, "/")
	var matches []GrepMatch
	for _, k := range keys {
		if prefix != "" && k != prefix && !strings.HasPrefix(k, prefix+"/") {
			continue
		}
		if globPattern != "" && !matchGlob(globPattern, k) {
			continue
		}
		content, ok := s.getString(ctx, k)
		if !ok {
			continue
		}
		for i, line := range strings.Split(content, "\n") {
			if strings.Contains(line, pattern) {
				matches = append(matches, GrepMatch{Path: k, Line: i + 1, Text: strings.TrimSpace(line)})
			}
		}
	}
	return matches, nil
}
