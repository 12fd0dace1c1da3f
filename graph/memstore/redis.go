package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Store backend using namespace-as-key-prefix KV storage.
// It avoids the single-writer constraint of the SQL backends at the cost
// of requiring an external Redis instance; useful for multi-process
// deployments sharing one long-term memory.
type RedisStore struct {
	client *redis.Client
	prefix string // global key prefix, e.g. "langgraph:"
}

// NewRedisStore wraps an existing go-redis client. prefix namespaces all
// keys this store touches so it can share a Redis instance with unrelated
// data.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

type redisRecord struct {
	Item     Item           `json:"item"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (r *RedisStore) redisKey(namespace []string, key string) string {
	return r.prefix + nsKey(namespace) + "\x00" + key
}

func (r *RedisStore) setKey(namespace []string) string {
	return r.prefix + "ns\x00" + nsKey(namespace)
}

func (r *RedisStore) Put(ctx context.Context, namespace []string, key string, value any) error {
	return r.PutWithMetadata(ctx, namespace, key, value, nil)
}

func (r *RedisStore) PutWithMetadata(ctx context.Context, namespace []string, key string, value any, metadata map[string]any) error {
	now := time.Now().UTC()
	createdAt := now
	if existing, _, err := r.GetWithMetadata(ctx, namespace, key); err == nil {
		createdAt = existing.CreatedAt
	}
	rec := redisRecord{
		Item:     Item{Namespace: namespace, Key: key, Value: value, CreatedAt: createdAt, UpdatedAt: now},
		Metadata: metadata,
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("memstore: marshal record: %w", err)
	}
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.redisKey(namespace, key), b, 0)
	pipe.SAdd(ctx, r.setKey(namespace), key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("memstore: redis put: %w", err)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, namespace []string, key string) (Item, error) {
	item, _, err := r.GetWithMetadata(ctx, namespace, key)
	return item, err
}

func (r *RedisStore) GetWithMetadata(ctx context.Context, namespace []string, key string) (Item, map[string]any, error) {
	raw, err := r.client.Get(ctx, r.redisKey(namespace, key)).Result()
	if err == redis.Nil {
		return Item{}, nil, ErrNotFound
	}
	if err != nil {
		return Item{}, nil, fmt.Errorf("memstore: redis get: %w", err)
	}
	var rec redisRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return Item{}, nil, fmt.Errorf("memstore: unmarshal record: %w", err)
	}
	return rec.Item, rec.Metadata, nil
}

func (r *RedisStore) Delete(ctx context.Context, namespace []string, key string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.redisKey(namespace, key))
	pipe.SRem(ctx, r.setKey(namespace), key)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("memstore: redis delete: %w", err)
	}
	return nil
}

func (r *RedisStore) SupportsSemanticSearch() bool { return false }
func (r *RedisStore) EmbeddingDims() int           { return 0 }

// Search only honors the exact namespace passed (Redis sets here are not
// indexed for tuple-prefix scans); callers that rely on recursive
// namespace prefixing should use memstore.MemStore or memstore.SQLStore.
func (r *RedisStore) Search(ctx context.Context, namespace []string, query string, limit int) ([]Item, error) {
	keys, err := r.client.SMembers(ctx, r.setKey(namespace)).Result()
	if err != nil {
		return nil, fmt.Errorf("memstore: redis search: %w", err)
	}

	var items []Item
	lowerQuery := strings.ToLower(query)
	for _, k := range keys {
		item, _, err := r.GetWithMetadata(ctx, namespace, k)
		if err != nil {
			continue
		}
		if query != "" {
			b, err := json.Marshal(item.Value)
			if err != nil || !strings.Contains(strings.ToLower(string(b)), lowerQuery) {
				continue
			}
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}
