package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Entry describes a stored key without its value.
type Entry struct {
	Key       string
	Size      int
	UpdatedAt int64
}

// Get returns the value stored under key, or nil if the key is absent.
func (db *DB) Get(key string) ([]byte, error) {
	var value []byte
	err := db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

// Set stores or replaces the value under key.
func (db *DB) Set(key string, value []byte) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, now)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (db *DB) Delete(key string) error {
	if _, err := db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Keys lists stored keys, most recently updated first.
func (db *DB) Keys() ([]Entry, error) {
	rows, err := db.Query(`SELECT key, length(value), updated_at FROM kv ORDER BY updated_at DESC, key`)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Size, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
