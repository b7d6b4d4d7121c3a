package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

// CreateInMemoryDB creates an in-memory SQLite database with the chatKV table
func CreateInMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to create in-memory database: %v", err)
	}
	// every connection to ":memory:" is a separate database
	db.SetMaxOpenConns(1)

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS chatKV (
		key TEXT PRIMARY KEY,
		value TEXT
	)`
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		t.Fatalf("Failed to create chatKV table: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })
	return db
}

// CreateTestDBFile returns a path for a database file inside a temp dir
func CreateTestDBFile(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "history.db")
}

// InsertKV writes a raw value into the chatKV table
func InsertKV(t *testing.T, db *sql.DB, key, value string) {
	t.Helper()
	insertSQL := "INSERT OR REPLACE INTO chatKV (key, value) VALUES (?, ?)"
	if _, err := db.Exec(insertSQL, key, value); err != nil {
		t.Fatalf("Failed to insert %s: %v", key, err)
	}
}

// ReadKV reads a raw value from the chatKV table, "" when absent
func ReadKV(t *testing.T, db *sql.DB, key string) string {
	t.Helper()
	var value sql.NullString
	err := db.QueryRow("SELECT value FROM chatKV WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return ""
	}
	if err != nil {
		t.Fatalf("Failed to read %s: %v", key, err)
	}
	return value.String
}

// HistoryBlob is a stored history with two sessions, newest first
const HistoryBlob = `[
  {"id":"s2","title":"Apa itu DPMPTSP?","messages":[
    {"role":"user","content":"Apa itu DPMPTSP?"},
    {"role":"assistant","content":"DPMPTSP adalah dinas perizinan.","sources":[{"filename":"profil.pdf","score":0.91,"content_preview":"Dinas Penanaman Modal"}],"total_sources":1,"enhanced_features":{"hybrid_search":true}}
  ],"timestamp":"2026-01-02T10:00:00Z","lastUpdated":"2026-01-02T10:05:00Z"},
  {"id":"s1","title":"Syarat izin usaha","messages":[
    {"role":"user","content":"Syarat izin usaha"}
  ],"timestamp":"2026-01-01T09:00:00Z","lastUpdated":"2026-01-01T09:00:00Z"}
]`
