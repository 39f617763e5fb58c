package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
}

// PlayerRow represents a player record in the database
type PlayerRow struct {
	ID        int64
	Username  string
	PassHash  string
	IsGuest   bool
	CreatedAt time.Time
}

// OpenDB opens (or creates) the SQLite database
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// modernc sqlite serializes writers; one connection avoids SQLITE_BUSY
	conn.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrency
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates tables if they don't exist
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS players (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		pass_hash TEXT NOT NULL DEFAULT '',
		is_guest INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS blocks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		world TEXT NOT NULL,
		owner_kind INTEGER NOT NULL DEFAULT 0,
		owner_id INTEGER NOT NULL DEFAULT 0,
		x INTEGER NOT NULL DEFAULT 0,
		y INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS analytics_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_type TEXT NOT NULL,
		player_id INTEGER,
		session_id TEXT,
		data TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_blocks_world ON blocks(world);
	CREATE INDEX IF NOT EXISTS idx_blocks_owner ON blocks(world, owner_kind, owner_id);
	CREATE INDEX IF NOT EXISTS idx_analytics_type ON analytics_events(event_type, created_at);
	`
	_, err := db.conn.Exec(schema)
	if err != nil {
		log.Printf("DB migration error: %v", err)
	}
	return err
}

// CreatePlayer creates a new player account (returns player ID)
func (db *DB) CreatePlayer(username, passHash string) (int64, error) {
	res, err := db.conn.Exec(
		"INSERT INTO players (username, pass_hash) VALUES (?, ?)",
		username, passHash,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// CreateGuest creates a guest player (no password)
func (db *DB) CreateGuest(username string) (int64, error) {
	res, err := db.conn.Exec(
		"INSERT INTO players (username, is_guest) VALUES (?, 1)",
		username,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetPlayerByUsername returns a player by username, or nil if none exists
func (db *DB) GetPlayerByUsername(username string) (*PlayerRow, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, pass_hash, is_guest, created_at FROM players WHERE username = ?",
		username,
	)
	p := &PlayerRow{}
	err := row.Scan(&p.ID, &p.Username, &p.PassHash, &p.IsGuest, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// UsernameExists checks if a username is taken
func (db *DB) UsernameExists(username string) (bool, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM players WHERE username = ?", username).Scan(&count)
	return count > 0, err
}

// GetSetting returns a stored setting or "" if absent
func (db *DB) GetSetting(key string) string {
	var v string
	if err := db.conn.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&v); err != nil {
		return ""
	}
	return v
}

// SetSetting stores a setting
func (db *DB) SetSetting(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}

// LeaderboardEntry represents one row in the leaderboard
type LeaderboardEntry struct {
	Rank     int     `json:"rank"`
	OwnerID  OwnerID `json:"owner"`
	Username string  `json:"username"`
	Blocks   int     `json:"blocks"`
	Bot      bool    `json:"bot,omitempty"`
}

// GetLeaderboard returns owners of a world ranked by blocks held
func (db *DB) GetLeaderboard(world string, limit int) ([]LeaderboardEntry, error) {
	rows, err := db.conn.Query(`
		SELECT b.owner_id, COALESCE(p.username, ''), COUNT(*) AS cnt
		FROM blocks b LEFT JOIN players p ON p.id = b.owner_id
		WHERE b.world = ? AND b.owner_kind = ?
		GROUP BY b.owner_id
		ORDER BY cnt DESC, b.owner_id ASC
		LIMIT ?`,
		world, int(OwnerPlayer), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []LeaderboardEntry
	rank := 1
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.OwnerID, &e.Username, &e.Blocks); err != nil {
			return nil, err
		}
		e.Rank = rank
		e.Bot = IsBot(e.OwnerID)
		rank++
		result = append(result, e)
	}
	return result, rows.Err()
}

// BlockStore returns the ownership store of one world
func (db *DB) BlockStore(world string) *SQLStore {
	return &SQLStore{db: db, world: world}
}

// SQLStore is an OwnershipStore over the blocks table of one world
type SQLStore struct {
	db    *DB
	world string
}

// Snapshot reads every block row of the world
func (s *SQLStore) Snapshot(ctx context.Context) (*Snapshot, error) {
	rows, err := s.db.conn.QueryContext(ctx,
		"SELECT id, owner_kind, owner_id, x, y FROM blocks WHERE world = ?",
		s.world,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var records []BlockRecord
	for rows.Next() {
		var rec BlockRecord
		var kind uint8
		if err := rows.Scan(&rec.ID, &kind, &rec.Owner.Player, &rec.X, &rec.Y); err != nil {
			return nil, err
		}
		rec.Owner.Kind = OwnerKind(kind)
		if rec.Owner.Kind == OwnerNone {
			rec.Owner.Player = 0
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return NewSnapshot(records), nil
}

// SetOwner updates the owner and position of one block
func (s *SQLStore) SetOwner(ctx context.Context, id BlockID, owner OwnerType, x, y int32) error {
	res, err := s.db.conn.ExecContext(ctx,
		`UPDATE blocks SET owner_kind = ?, owner_id = ?, x = ?, y = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE world = ? AND id = ?`,
		int(owner.Kind), int64(owner.Player), x, y, s.world, int64(id),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if n == 0 {
		return fmt.Errorf("block %d: %w", id, ErrUnknownBlock)
	}
	return nil
}

// SpawnBlock inserts a new unowned block
func (s *SQLStore) SpawnBlock(ctx context.Context, x, y int32) (BlockID, error) {
	res, err := s.db.conn.ExecContext(ctx,
		"INSERT INTO blocks (world, x, y) VALUES (?, ?, ?)",
		s.world, x, y,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	return BlockID(id), err
}

// DropWorld deletes every block of the world
func (s *SQLStore) DropWorld(ctx context.Context) error {
	_, err := s.db.conn.ExecContext(ctx, "DELETE FROM blocks WHERE world = ?", s.world)
	return err
}
