package memstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// SQLStore is a database/sql backed Store, sharing the same dialect
// handling pattern as checkpointer.SQLCheckpointer. Namespace tuples are
// stored joined by a NUL byte (matching the in-memory store's bucket key)
// so prefix search can use a single LIKE clause.
type SQLStore struct {
	db      *sql.DB
	dialect string
}

// NewSQLiteMemStore opens (and migrates) a SQLite-backed Store.
func NewSQLiteMemStore(path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("memstore: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	s := &SQLStore{db: db, dialect: "sqlite"}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("memstore: enable WAL: %w", err)
	}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewMySQLMemStore opens (and migrates) a MySQL-backed Store.
func NewMySQLMemStore(dsn string) (*SQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("memstore: open mysql: %w", err)
	}
	s := &SQLStore{db: db, dialect: "mysql"}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS store_items (
			namespace TEXT NOT NULL,
			item_key TEXT NOT NULL,
			value TEXT NOT NULL,
			metadata TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (namespace, item_key)
		)`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("memstore: migrate: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_store_items_ns ON store_items(namespace)"); err != nil {
		return fmt.Errorf("memstore: index namespace: %w", err)
	}
	return nil
}

func (s *SQLStore) Put(ctx context.Context, namespace []string, key string, value any) error {
	return s.putRow(ctx, namespace, key, value, nil)
}

func (s *SQLStore) putRow(ctx context.Context, namespace []string, key string, value any, metadata map[string]any) error {
	valueJSON, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("memstore: marshal value: %w", err)
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("memstore: marshal metadata: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	query := `INSERT INTO store_items (namespace, item_key, value, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(namespace, item_key) DO UPDATE SET value = excluded.value, metadata = excluded.metadata, updated_at = excluded.updated_at`
	if s.dialect == "mysql" {
		query = `INSERT INTO store_items (namespace, item_key, value, metadata, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE value = VALUES(value), metadata = VALUES(metadata), updated_at = VALUES(updated_at)`
	}

	_, err = s.db.ExecContext(ctx, query, nsKey(namespace), key, string(valueJSON), string(metaJSON), now, now)
	if err != nil {
		return fmt.Errorf("memstore: put: %w", err)
	}
	return nil
}

func (s *SQLStore) PutWithMetadata(ctx context.Context, namespace []string, key string, value any, metadata map[string]any) error {
	return s.putRow(ctx, namespace, key, value, metadata)
}

func (s *SQLStore) scanItem(namespace []string, key string, row *sql.Row) (Item, map[string]any, error) {
	var valueJSON, metaJSON, createdAt, updatedAt string
	if err := row.Scan(&valueJSON, &metaJSON, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return Item{}, nil, ErrNotFound
		}
		return Item{}, nil, fmt.Errorf("memstore: get: %w", err)
	}
	var value any
	if err := json.Unmarshal([]byte(valueJSON), &value); err != nil {
		return Item{}, nil, fmt.Errorf("memstore: unmarshal value: %w", err)
	}
	var metadata map[string]any
	if err := json.Unmarshal([]byte(metaJSON), &metadata); err != nil {
		return Item{}, nil, fmt.Errorf("memstore: unmarshal metadata: %w", err)
	}
	ct, _ := time.Parse(time.RFC3339Nano, createdAt)
	ut, _ := time.Parse(time.RFC3339Nano, updatedAt)
	return Item{Namespace: namespace, Key: key, Value: value, CreatedAt: ct, UpdatedAt: ut}, metadata, nil
}

func (s *SQLStore) Get(ctx context.Context, namespace []string, key string) (Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT value, metadata, created_at, updated_at FROM store_items WHERE namespace = ? AND item_key = ?`, nsKey(namespace), key)
	item, _, err := s.scanItem(namespace, key, row)
	return item, err
}

func (s *SQLStore) GetWithMetadata(ctx context.Context, namespace []string, key string) (Item, map[string]any, error) {
	row := s.db.QueryRowContext(ctx, `SELECT value, metadata, created_at, updated_at FROM store_items WHERE namespace = ? AND item_key = ?`, nsKey(namespace), key)
	return s.scanItem(namespace, key, row)
}

func (s *SQLStore) Delete(ctx context.Context, namespace []string, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM store_items WHERE namespace = ? AND item_key = ?`, nsKey(namespace), key)
	if err != nil {
		return fmt.Errorf("memstore: delete: %w", err)
	}
	return nil
}

func (s *SQLStore) SupportsSemanticSearch() bool { return false }
func (s *SQLStore) EmbeddingDims() int           { return 0 }

// queryPrefix fetches every row whose namespace tuple has `namespace` as a
// strict prefix, matching on the stored NUL-joined key.
func (s *SQLStore) queryPrefix(ctx context.Context, namespace []string) ([]Item, []map[string]any, error) {
	prefix := nsKey(namespace)
	rows, err := s.db.QueryContext(ctx,
		`SELECT namespace, item_key, value, metadata, created_at, updated_at FROM store_items
		 WHERE namespace = ? OR namespace LIKE ?`, prefix, prefix+"\x00%")
	if err != nil {
		return nil, nil, fmt.Errorf("memstore: search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []Item
	var metas []map[string]any
	for rows.Next() {
		var ns, key, valueJSON, metaJSON, createdAt, updatedAt string
		if err := rows.Scan(&ns, &key, &valueJSON, &metaJSON, &createdAt, &updatedAt); err != nil {
			return nil, nil, fmt.Errorf("memstore: search scan: %w", err)
		}
		var value any
		if err := json.Unmarshal([]byte(valueJSON), &value); err != nil {
			continue
		}
		var metadata map[string]any
		if err := json.Unmarshal([]byte(metaJSON), &metadata); err != nil {
			metadata = nil
		}
		ct, _ := time.Parse(time.RFC3339Nano, createdAt)
		ut, _ := time.Parse(time.RFC3339Nano, updatedAt)
		items = append(items, Item{Namespace: strings.Split(ns, "\x00"), Key: key, Value: value, CreatedAt: ct, UpdatedAt: ut})
		metas = append(metas, metadata)
	}
	return items, metas, rows.Err()
}

func (s *SQLStore) Search(ctx context.Context, namespace []string, query string, limit int) ([]Item, error) {
	items, _, err := s.queryPrefix(ctx, namespace)
	if err != nil {
		return nil, err
	}

	if query != "" {
		lowerQuery := strings.ToLower(query)
		filtered := items[:0]
		for _, it := range items {
			b, err := json.Marshal(it.Value)
			if err != nil {
				continue
			}
			if strings.Contains(strings.ToLower(string(b)), lowerQuery) {
				filtered = append(filtered, it)
			}
		}
		items = filtered
	}

	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *SQLStore) SearchByFilter(ctx context.Context, namespace []string, filter Filter, limit int) ([]Item, error) {
	items, metas, err := s.queryPrefix(ctx, namespace)
	if err != nil {
		return nil, err
	}

	var matched []Item
	for i, it := range items {
		b, err := json.Marshal(it.Value)
		if err != nil {
			continue
		}
		var decoded any
		if err := json.Unmarshal(b, &decoded); err != nil {
			continue
		}
		if filter.Eval(decoded, metas[i]) {
			matched = append(matched, it)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// Close releases the underlying database connection.
func (s *SQLStore) Close() error { return s.db.Close() }
