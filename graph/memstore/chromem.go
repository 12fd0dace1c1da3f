package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"
)

// ChromemStore is the concrete semantic-search Store variant: it embeds
// every write via chromem-go's vector index and answers Search queries
// with chromem's nearest-neighbor lookup, reporting
// SupportsSemanticSearch() == true. Put embeds the value's text view
// through the collection's embedding function, so writes depend on it as
// well as searches. Search requires a non-empty query; there is no
// newest-first scan.
type ChromemStore struct {
	mu          sync.RWMutex
	db          *chromem.DB
	collections map[string]*chromem.Collection
	embedFn     chromem.EmbeddingFunc
	dims        int
}

// NewChromemStore constructs an in-process vector store. embedFn is used
// both to embed documents on write and queries on search.
func NewChromemStore(embedFn chromem.EmbeddingFunc, dims int) *ChromemStore {
	return &ChromemStore{
		db:          chromem.NewDB(),
		collections: make(map[string]*chromem.Collection),
		embedFn:     embedFn,
		dims:        dims,
	}
}

func (c *ChromemStore) collection(namespace []string) (*chromem.Collection, error) {
	name := nsKey(namespace)
	if name == "" {
		name = "default"
	}
	c.mu.RLock()
	col, ok := c.collections[name]
	c.mu.RUnlock()
	if ok {
		return col, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if col, ok := c.collections[name]; ok {
		return col, nil
	}
	col, err := c.db.CreateCollection(name, nil, c.embedFn)
	if err != nil {
		return nil, fmt.Errorf("memstore: create collection %q: %w", name, err)
	}
	c.collections[name] = col
	return col, nil
}

func (c *ChromemStore) Put(ctx context.Context, namespace []string, key string, value any) error {
	return c.PutWithMetadata(ctx, namespace, key, value, nil)
}

func (c *ChromemStore) PutWithMetadata(ctx context.Context, namespace []string, key string, value any, metadata map[string]any) error {
	col, err := c.collection(namespace)
	if err != nil {
		return err
	}

	item := Item{Namespace: namespace, Key: key, Value: value, CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
	envelope, err := json.Marshal(struct {
		Item     Item           `json:"item"`
		Metadata map[string]any `json:"metadata,omitempty"`
	}{item, metadata})
	if err != nil {
		return fmt.Errorf("memstore: marshal envelope: %w", err)
	}

	doc := chromem.Document{
		ID:       key,
		Content:  textView(value),
		Metadata: map[string]string{"envelope": string(envelope)},
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("memstore: add document: %w", err)
	}
	return nil
}

func decodeEnvelope(raw string) (Item, map[string]any, error) {
	var envelope struct {
		Item     Item           `json:"item"`
		Metadata map[string]any `json:"metadata,omitempty"`
	}
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		return Item{}, nil, fmt.Errorf("memstore: decode envelope: %w", err)
	}
	return envelope.Item, envelope.Metadata, nil
}

func (c *ChromemStore) Get(ctx context.Context, namespace []string, key string) (Item, error) {
	item, _, err := c.GetWithMetadata(ctx, namespace, key)
	return item, err
}

func (c *ChromemStore) GetWithMetadata(_ context.Context, namespace []string, key string) (Item, map[string]any, error) {
	col, err := c.collection(namespace)
	if err != nil {
		return Item{}, nil, err
	}
	doc, err := col.GetByID(context.Background(), key)
	if err != nil {
		return Item{}, nil, ErrNotFound
	}
	return decodeEnvelope(doc.Metadata["envelope"])
}

func (c *ChromemStore) Delete(_ context.Context, namespace []string, key string) error {
	col, err := c.collection(namespace)
	if err != nil {
		return err
	}
	return col.Delete(context.Background(), nil, nil, key)
}

func (c *ChromemStore) SupportsSemanticSearch() bool { return true }
func (c *ChromemStore) EmbeddingDims() int           { return c.dims }

func (c *ChromemStore) Search(ctx context.Context, namespace []string, query string, limit int) ([]Item, error) {
	col, err := c.collection(namespace)
	if err != nil {
		return nil, err
	}
	if query == "" {
		return nil, fmt.Errorf("memstore: chromem store requires a non-empty query (no newest-first scan API)")
	}
	n := limit
	if n <= 0 {
		n = 10
	}
	results, err := col.Query(ctx, query, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("memstore: query: %w", err)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })

	items := make([]Item, 0, len(results))
	for _, r := range results {
		item, _, err := decodeEnvelope(r.Metadata["envelope"])
		if err != nil {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// SearchByFilter is not supported by the vector-index backend; callers
// needing the Enhanced Store filter language should use memstore.MemStore
// or memstore.SQLStore instead.
func (c *ChromemStore) SearchByFilter(context.Context, []string, Filter, int) ([]Item, error) {
	return nil, fmt.Errorf("memstore: SearchByFilter unsupported by ChromemStore")
}
