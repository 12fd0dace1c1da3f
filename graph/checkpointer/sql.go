package checkpointer

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// SQLCheckpointer is a database/sql backed Checkpointer. It is driver
// agnostic: NewSQLiteCheckpointer and NewMySQLCheckpointer both return a
// *SQLCheckpointer configured for their respective dialect, matching the
// bit-exact "checkpoints" schema fixed by the external interface contract.
type SQLCheckpointer struct {
	db      *sql.DB
	mu      sync.Mutex
	dialect string // "sqlite" or "mysql"
	entropy *ulid.MonotonicEntropy
}

// NewSQLiteCheckpointer opens (and migrates) a SQLite-backed checkpointer.
func NewSQLiteCheckpointer(path string) (*SQLCheckpointer, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("checkpointer: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	c := &SQLCheckpointer{db: db, dialect: "sqlite", entropy: ulid.Monotonic(nil, 0)}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("checkpointer: enable WAL: %w", err)
	}
	if err := c.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

// NewMySQLCheckpointer opens (and migrates) a MySQL-backed checkpointer.
func NewMySQLCheckpointer(dsn string) (*SQLCheckpointer, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("checkpointer: open mysql: %w", err)
	}
	c := &SQLCheckpointer{db: db, dialect: "mysql", entropy: ulid.Monotonic(nil, 0)}
	if err := c.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

// checkpoints table, matching the external-interface bit-exact column set:
//
//	thread_id, checkpoint_id (PK), checkpoint_ns, parent_checkpoint_id,
//	state_values (BLOB), next_nodes (JSON array text), metadata (JSON
//	object text), created_at (RFC3339 text); INDEX(thread_id),
//	INDEX(created_at).
func (c *SQLCheckpointer) migrate(ctx context.Context) error {
	blobType := "BLOB"
	if c.dialect == "mysql" {
		blobType = "LONGBLOB"
	}
	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS checkpoints (
			thread_id TEXT NOT NULL,
			checkpoint_id TEXT PRIMARY KEY,
			checkpoint_ns TEXT,
			parent_checkpoint_id TEXT,
			state_values %s NOT NULL,
			next_nodes TEXT NOT NULL,
			metadata TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`, blobType)
	if _, err := c.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("checkpointer: migrate: %w", err)
	}
	if _, err := c.db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_checkpoints_thread ON checkpoints(thread_id)"); err != nil {
		return fmt.Errorf("checkpointer: index thread_id: %w", err)
	}
	if _, err := c.db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_checkpoints_created ON checkpoints(created_at)"); err != nil {
		return fmt.Errorf("checkpointer: index created_at: %w", err)
	}
	return nil
}

func (c *SQLCheckpointer) newID(now time.Time) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(now), c.entropy).String()
}

func (c *SQLCheckpointer) Put(ctx context.Context, threadID string, snap Snapshot) (string, error) {
	if threadID == "" {
		return "", ErrInvalidConfig
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
	if snap.Config.CheckpointID == "" {
		snap.Config.CheckpointID = c.newID(snap.CreatedAt)
	}

	nextJSON, err := json.Marshal(snap.Next)
	if err != nil {
		return "", fmt.Errorf("%w: next nodes: %v", ErrSerialization, err)
	}
	metaJSON, err := json.Marshal(snap.Metadata)
	if err != nil {
		return "", fmt.Errorf("%w: metadata: %v", ErrSerialization, err)
	}

	var parentID any
	if snap.Parent != nil {
		parentID = snap.Parent.CheckpointID
	}

	query := `INSERT INTO checkpoints
		(thread_id, checkpoint_id, checkpoint_ns, parent_checkpoint_id, state_values, next_nodes, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if c.dialect == "mysql" {
		query += ` ON DUPLICATE KEY UPDATE state_values = VALUES(state_values)`
	}

	_, err = c.db.ExecContext(ctx, query,
		threadID, snap.Config.CheckpointID, snap.Config.Namespace, parentID,
		snap.Values, string(nextJSON), string(metaJSON), snap.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("checkpointer: put: %w", err)
	}
	return snap.Config.CheckpointID, nil
}

func (c *SQLCheckpointer) Get(ctx context.Context, threadID string, checkpointID string) (Snapshot, error) {
	var row *sql.Row
	if checkpointID != "" {
		row = c.db.QueryRowContext(ctx, `SELECT checkpoint_id, checkpoint_ns, parent_checkpoint_id,
			state_values, next_nodes, metadata, created_at
			FROM checkpoints WHERE thread_id = ? AND checkpoint_id = ?`, threadID, checkpointID)
	} else {
		row = c.db.QueryRowContext(ctx, `SELECT checkpoint_id, checkpoint_ns, parent_checkpoint_id,
			state_values, next_nodes, metadata, created_at
			FROM checkpoints WHERE thread_id = ? ORDER BY created_at DESC LIMIT 1`, threadID)
	}
	return scanSnapshot(threadID, row)
}

func scanSnapshot(threadID string, row *sql.Row) (Snapshot, error) {
	var (
		cpID, ns, createdAt string
		parentID            sql.NullString
		nextJSON, metaJSON  string
		values              []byte
	)
	if err := row.Scan(&cpID, &ns, &parentID, &values, &nextJSON, &metaJSON, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return Snapshot{}, ErrCheckpointNotFound
		}
		return Snapshot{}, fmt.Errorf("checkpointer: get: %w", err)
	}

	snap := Snapshot{
		Values: values,
		Config: Config{ThreadID: threadID, CheckpointID: cpID, Namespace: ns},
	}
	if err := json.Unmarshal([]byte(nextJSON), &snap.Next); err != nil {
		return Snapshot{}, fmt.Errorf("%w: next nodes: %v", ErrSerialization, err)
	}
	if err := json.Unmarshal([]byte(metaJSON), &snap.Metadata); err != nil {
		return Snapshot{}, fmt.Errorf("%w: metadata: %v", ErrSerialization, err)
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: created_at: %v", ErrSerialization, err)
	}
	snap.CreatedAt = t
	if parentID.Valid && parentID.String != "" {
		snap.Parent = &Config{ThreadID: threadID, CheckpointID: parentID.String}
	}
	return snap, nil
}

func (c *SQLCheckpointer) List(ctx context.Context, threadID string, limit int) ([]Snapshot, error) {
	query := `SELECT checkpoint_id, checkpoint_ns, parent_checkpoint_id, state_values, next_nodes, metadata, created_at
		FROM checkpoints WHERE thread_id = ? ORDER BY created_at ASC`
	rows, err := c.db.QueryContext(ctx, query, threadID)
	if err != nil {
		return nil, fmt.Errorf("checkpointer: list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Snapshot
	for rows.Next() {
		var (
			cpID, ns, createdAt string
			parentID            sql.NullString
			nextJSON, metaJSON  string
			values              []byte
		)
		if err := rows.Scan(&cpID, &ns, &parentID, &values, &nextJSON, &metaJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("checkpointer: list scan: %w", err)
		}
		snap := Snapshot{Values: values, Config: Config{ThreadID: threadID, CheckpointID: cpID, Namespace: ns}}
		if err := json.Unmarshal([]byte(nextJSON), &snap.Next); err != nil {
			return nil, fmt.Errorf("%w: next nodes: %v", ErrSerialization, err)
		}
		if err := json.Unmarshal([]byte(metaJSON), &snap.Metadata); err != nil {
			return nil, fmt.Errorf("%w: metadata: %v", ErrSerialization, err)
		}
		t, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("%w: created_at: %v", ErrSerialization, err)
		}
		snap.CreatedAt = t
		if parentID.Valid && parentID.String != "" {
			snap.Parent = &Config{ThreadID: threadID, CheckpointID: parentID.String}
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("checkpointer: list iterate: %w", err)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// Close releases the underlying database connection.
func (c *SQLCheckpointer) Close() error { return c.db.Close() }
