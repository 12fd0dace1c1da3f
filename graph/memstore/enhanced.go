package memstore

import "context"

// EnhancedStore is the optional capability (§4.3) layered on top of Store:
// metadata-tagged writes/reads and structured filter queries. MemStore and
// SQLStore implement it directly; ChromemStore implements a degraded form
// (SearchByFilter unsupported) and RedisStore omits it entirely since it
// has no secondary index to filter over.
type EnhancedStore interface {
	Store
	PutWithMetadata(ctx context.Context, namespace []string, key string, value any, metadata map[string]any) error
	GetWithMetadata(ctx context.Context, namespace []string, key string) (Item, map[string]any, error)
	SearchByFilter(ctx context.Context, namespace []string, filter Filter, limit int) ([]Item, error)
}

var (
	_ EnhancedStore = (*MemStore)(nil)
	_ EnhancedStore = (*SQLStore)(nil)
	_ Store         = (*ChromemStore)(nil)
	_ Store         = (*RedisStore)(nil)
)
