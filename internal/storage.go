package internal

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// Keys of the persisted client state.
const (
	KeyChatMessages   = "chatMessages"
	KeySavedChats     = "savedChats"
	KeyWorkspaceState = "workspaceState"
	KeyTheme          = "theme"
	KeyLogLevel       = "logLevel"
	KeyClientLogs     = "clientLogs"
	KeyLastView       = "lastView"
)

// Store is a persisted key/value blob store. Writers are last-writer-wins;
// there is no cross-process locking beyond what sqlite itself provides.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore creates a new Store instance
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// OpenStore opens the database at path and wraps it in a Store.
func OpenStore(path string) (*Store, error) {
	db, err := OpenDatabase(path)
	if err != nil {
		return nil, &StorageError{Key: path, Op: "open", Err: err}
	}
	return NewStore(db), nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the raw value for key; ok is false when the key is absent.
func (s *Store) Get(key string) (value string, ok bool, err error) {
	row := s.db.QueryRow("SELECT value FROM clientKV WHERE key = ?", key)
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, &StorageError{Key: key, Op: "get", Err: err}
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO clientKV (key, value, updated_at) VALUES (?, ?, ?) "+
			"ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at",
		key, value, s.now().UnixMilli(),
	)
	if err != nil {
		return &StorageError{Key: key, Op: "set", Err: err}
	}
	return nil
}

// Delete removes key. Removing a missing key is not an error.
func (s *Store) Delete(key string) error {
	if _, err := s.db.Exec("DELETE FROM clientKV WHERE key = ?", key); err != nil {
		return &StorageError{Key: key, Op: "delete", Err: err}
	}
	return nil
}

// GetJSON decodes the value under key into v. It reports false when the key
// is absent; a value that does not decode is returned as a ParseError.
func (s *Store) GetJSON(key string, v any) (bool, error) {
	raw, ok, err := s.Get(key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, &ParseError{Source: "storage", Key: key, Err: err}
	}
	return true, nil
}

// SetJSON encodes v and stores it under key.
func (s *Store) SetJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return &StorageError{Key: key, Op: "set", Err: err}
	}
	return s.Set(key, string(data))
}

// Keys lists stored keys matching a LIKE pattern.
func (s *Store) Keys(pattern string) ([]string, error) {
	pairs, err := QueryClientKV(s.db, pattern)
	if err != nil {
		return nil, &StorageError{Key: pattern, Op: "get", Err: err}
	}
	keys := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		keys = append(keys, pair.Key)
	}
	return keys, nil
}
