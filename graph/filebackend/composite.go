package filebackend

import (
	"context"
	"sort"
	"strings"
)

// route pairs a path prefix with the backend that should handle paths
// under it.
type route struct {
	prefix  string
	backend FileBackend
}

// CompositeBackend holds a default backend plus a prefix-routed table.
// Routing chooses the longest matching prefix (where a match means either
// equality with the stripped prefix or the path equaling prefix+"/...").
// The matched prefix is stripped before delegating; results are restored
// with the prefix prepended on return.
type CompositeBackend struct {
	def    FileBackend
	routes []route
}

// NewCompositeBackend constructs a composite with the given default and no
// routes; add routes with WithRoute.
func NewCompositeBackend(def FileBackend) *CompositeBackend {
	return &CompositeBackend{def: def}
}

// WithRoute registers prefix -> backend and keeps routes sorted by
// descending prefix length so the longest match always wins.
func (c *CompositeBackend) WithRoute(prefix string, backend FileBackend) *CompositeBackend {
	c.routes = append(c.routes, route{prefix: strings.Trim(prefix, "/"), backend: backend})
	sort.SliceStable(c.routes, func(i, j int) bool { return len(c.routes[i].prefix) > len(c.routes[j].prefix) })
	return c
}

// chooseBackend returns the matched backend, the matched prefix, and the
// inner (prefix-stripped) path. An empty-prefix match (no route matches)
// routes to the default with prefix "".
func (c *CompositeBackend) chooseBackend(p string) (FileBackend, string, string) {
	trimmed := strings.Trim(p, "/")

	bestLen := -1
	chosen := c.def
	chosenPrefix := ""
	for _, r := range c.routes {
		if r.prefix == "" {
			continue
		}
		matchLen := -1
		if trimmed == r.prefix {
			matchLen = len(r.prefix)
		} else if strings.HasPrefix(trimmed, r.prefix+"/") {
			matchLen = len(r.prefix)
		}
		if matchLen > bestLen {
			bestLen = matchLen
			chosen = r.backend
			chosenPrefix = r.prefix
		}
	}

	inner := trimmed
	if chosenPrefix != "" {
		inner = strings.TrimPrefix(trimmed, chosenPrefix)
		inner = strings.TrimPrefix(inner, "/")
	}
	return chosen, chosenPrefix, inner
}

// restorePrefix reconstructs prefix + "/" + inner, trimming a trailing
// slash from prefix and handling empty inner/prefix cases, matching the
// original implementation's restore_prefix exactly.
func restorePrefix(prefix, inner string) string {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return inner
	}
	if inner == "" {
		return prefix
	}
	return prefix + "/" + inner
}

func (c *CompositeBackend) Ls(ctx context.Context, p string) ([]FileInfo, error) {
	backend, prefix, inner := c.chooseBackend(p)
	infos, err := backend.Ls(ctx, inner)
	if err != nil {
		return nil, err
	}
	for i := range infos {
		infos[i].Path = restorePrefix(prefix, infos[i].Path)
	}
	return infos, nil
}

func (c *CompositeBackend) Read(ctx context.Context, p string, offsetLines, limitLines int) (string, error) {
	backend, _, inner := c.chooseBackend(p)
	return backend.Read(ctx, inner, offsetLines, limitLines)
}

func (c *CompositeBackend) Write(ctx context.Context, p string, content string) (WriteResult, error) {
	backend, prefix, inner := c.chooseBackend(p)
	res, err := backend.Write(ctx, inner, content)
	if err != nil {
		return WriteResult{}, err
	}
	res.Path = restorePrefix(prefix, res.Path)
	return res, nil
}

func (c *CompositeBackend) Edit(ctx context.Context, p string, oldStr, newStr string, replaceAll bool) (EditResult, error) {
	backend, prefix, inner := c.chooseBackend(p)
	res, err := backend.Edit(ctx, inner, oldStr, newStr, replaceAll)
	if err != nil {
		return EditResult{}, err
	}
	res.Path = restorePrefix(prefix, res.Path)
	return res, nil
}

func (c *CompositeBackend) Glob(ctx context.Context, pattern string, p string) ([]FileInfo, error) {
	backend, prefix, inner := c.chooseBackend(p)
	infos, err := backend.Glob(ctx, pattern, inner)
	if err != nil {
		return nil, err
	}
	for i := range infos {
		infos[i].Path = restorePrefix(prefix, infos[i].Path)
	}
	return infos, nil
}

// Grep with an empty path delegates directly to the default backend
// without routing, matching the reference implementation: a pathless grep
// is a global search, not a per-route one.
func (c *CompositeBackend) Grep(ctx context.Context, pattern string, p string, globPattern string) ([]GrepMatch, error) {
	if p == "" {
		return c.def.Grep(ctx, pattern, "", globPattern)
	}
	backend, prefix, inner := c.chooseBackend(p)
	matches, err := backend.Grep(ctx, pattern, inner, globPattern)
	if err != nil {
		return nil, err
	}
	for i := range matches {
		matches[i].Path = restorePrefix(prefix, matches[i].Path)
	}
	return matches, nil
}
