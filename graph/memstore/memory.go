package memstore

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"
)

// entry is the internal record kept per (namespace, key).
type entry struct {
	item      Item
	metadata  map[string]any
	embedding []float64
}

// MemStore is an in-memory Store plus the Enhanced Store capability
// (put_with_metadata/get_with_metadata/search_by_filter). It is thread-safe
// and does not survive process restart; use a SQL-backed store for
// durability.
type MemStore struct {
	mu       sync.RWMutex
	data     map[string]map[string]entry // namespace-joined-by-"\x00" -> key -> entry
	embedder Embedder
}

// NewMemStore constructs an empty in-memory store. Pass a non-nil embedder
// to enable semantic search.
func NewMemStore(embedder Embedder) *MemStore {
	return &MemStore{data: make(map[string]map[string]entry), embedder: embedder}
}

func nsKey(namespace []string) string { return strings.Join(namespace, "\x00") }

func (m *MemStore) bucket(namespace []string) map[string]entry {
	key := nsKey(namespace)
	b, ok := m.data[key]
	if !ok {
		b = make(map[string]entry)
		m.data[key] = b
	}
	return b
}

func (m *MemStore) Put(ctx context.Context, namespace []string, key string, value any) error {
	return m.PutWithMetadata(ctx, namespace, key, value, nil)
}

// PutWithMetadata is the Enhanced Store write path: it additionally
// attaches a metadata map and, if an embedder is configured, extracts a
// text view (preferring a "text" or "content" field, else the JSON
// serialization) and caches its embedding.
func (m *MemStore) PutWithMetadata(ctx context.Context, namespace []string, key string, value any, metadata map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.bucket(namespace)
	now := time.Now().UTC()
	createdAt := now
	if existing, ok := b[key]; ok {
		createdAt = existing.item.CreatedAt
	}

	e := entry{
		item: Item{
			Namespace: append([]string(nil), namespace...),
			Key:       key,
			Value:     value,
			CreatedAt: createdAt,
			UpdatedAt: now,
		},
		metadata: metadata,
	}

	if m.embedder != nil {
		text := textView(value)
		if vec, err := m.embedder.Embed(ctx, text); err == nil {
			e.embedding = vec
		}
	}

	b[key] = e
	return nil
}

// textView extracts the text to embed from a stored value: prefers a
// "text" or "content" field on a JSON object, else the JSON serialization
// of the whole value.
func textView(value any) string {
	if m, ok := value.(map[string]any); ok {
		if t, ok := m["text"].(string); ok {
			return t
		}
		if c, ok := m["content"].(string); ok {
			return c
		}
	}
	b, err := json.Marshal(value)
	if err != nil {
		return ""
	}
	return string(b)
}

func (m *MemStore) Get(_ context.Context, namespace []string, key string) (Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.data[nsKey(namespace)]
	if !ok {
		return Item{}, ErrNotFound
	}
	e, ok := b[key]
	if !ok {
		return Item{}, ErrNotFound
	}
	return e.item, nil
}

// GetWithMetadata returns the item alongside its attached metadata.
func (m *MemStore) GetWithMetadata(_ context.Context, namespace []string, key string) (Item, map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.data[nsKey(namespace)]
	if !ok {
		return Item{}, nil, ErrNotFound
	}
	e, ok := b[key]
	if !ok {
		return Item{}, nil, ErrNotFound
	}
	return e.item, e.metadata, nil
}

func (m *MemStore) Delete(_ context.Context, namespace []string, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[nsKey(namespace)]
	if !ok {
		return nil
	}
	delete(b, key)
	return nil
}

func (m *MemStore) SupportsSemanticSearch() bool { return m.embedder != nil }

func (m *MemStore) EmbeddingDims() int {
	if m.embedder == nil {
		return 0
	}
	return m.embedder.Dims()
}

// matchingEntries returns entries whose namespace has `namespace` as a
// strict tuple prefix, across every bucket (the map is keyed by exact
// namespace, so we must scan for prefix matches rather than a single
// lookup).
func (m *MemStore) matchingEntries(namespace []string) []entry {
	var out []entry
	for _, b := range m.data {
		for _, e := range b {
			if namespacePrefixMatch(namespace, e.item.Namespace) {
				out = append(out, e)
			}
		}
	}
	return out
}

func (m *MemStore) Search(ctx context.Context, namespace []string, query string, limit int) ([]Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	candidates := m.matchingEntries(namespace)

	if query == "" {
		sort.Slice(candidates, func(i, j int) bool {
			return candidates[i].item.CreatedAt.After(candidates[j].item.CreatedAt)
		})
		return truncateItems(candidates, limit), nil
	}

	if m.embedder != nil {
		qvec, err := m.embedder.Embed(ctx, query)
		if err == nil {
			type scored struct {
				e   entry
				sim float64
			}
			var ranked []scored
			for _, e := range candidates {
				if e.embedding == nil {
					continue
				}
				ranked = append(ranked, scored{e, cosineSimilarity(qvec, e.embedding)})
			}
			sort.Slice(ranked, func(i, j int) bool { return ranked[i].sim > ranked[j].sim })
			out := make([]entry, len(ranked))
			for i, r := range ranked {
				out[i] = r.e
			}
			return truncateItems(out, limit), nil
		}
	}

	lowerQuery := strings.ToLower(query)
	var matched []entry
	for _, e := range candidates {
		b, err := json.Marshal(e.item.Value)
		if err != nil {
			continue
		}
		if strings.Contains(strings.ToLower(string(b)), lowerQuery) {
			matched = append(matched, e)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].item.CreatedAt.After(matched[j].item.CreatedAt)
	})
	return truncateItems(matched, limit), nil
}

// SearchByFilter evaluates filter against each candidate's JSON-decoded
// value and attached metadata, returning newest-first matches.
func (m *MemStore) SearchByFilter(_ context.Context, namespace []string, filter Filter, limit int) ([]Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []entry
	for _, e := range m.matchingEntries(namespace) {
		b, err := json.Marshal(e.item.Value)
		if err != nil {
			continue
		}
		var decoded any
		if err := json.Unmarshal(b, &decoded); err != nil {
			continue
		}
		if filter.Eval(decoded, e.metadata) {
			matched = append(matched, e)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].item.CreatedAt.After(matched[j].item.CreatedAt)
	})
	return truncateItems(matched, limit), nil
}

func truncateItems(entries []entry, limit int) []Item {
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]Item, len(entries))
	for i, e := range entries {
		out[i] = e.item
	}
	return out
}
