package testutil

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

const clientKVSchema = `
	CREATE TABLE IF NOT EXISTS clientKV (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	)`

// CreateInMemoryDB creates an in-memory SQLite database with the clientKV table
func CreateInMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to create in-memory database: %v", err)
	}
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(clientKVSchema); err != nil {
		db.Close()
		t.Fatalf("Failed to create table: %v", err)
	}
	return db
}

// InsertKV inserts a raw value into the clientKV table
func InsertKV(t *testing.T, db *sql.DB, key, value string) {
	t.Helper()
	insertSQL := "INSERT INTO clientKV (key, value, updated_at) VALUES (?, ?, 0)"
	if _, err := db.Exec(insertSQL, key, value); err != nil {
		t.Fatalf("Failed to insert %s: %v", key, err)
	}
}
