package internal

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/aetherium/aetherium-cli/testutil"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(testutil.CreateInMemoryDB(t))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_GetSetDelete(t *testing.T) {
	s := newTestStore(t)

	if _, ok, err := s.Get(KeyTheme); err != nil || ok {
		t.Fatalf("Get() on empty store = ok %v, err %v; want absent", ok, err)
	}

	if err := s.Set(KeyTheme, "dark"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := s.Set(KeyTheme, "light"); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}

	got, ok, err := s.Get(KeyTheme)
	if err != nil || !ok || got != "light" {
		t.Errorf("Get() = %q, %v, %v; want \"light\", true, nil", got, ok, err)
	}

	if err := s.Delete(KeyTheme); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := s.Delete(KeyTheme); err != nil {
		t.Errorf("Delete() of missing key error = %v", err)
	}
	if _, ok, _ := s.Get(KeyTheme); ok {
		t.Error("Get() after Delete() should report absent")
	}
}

func TestStore_JSON(t *testing.T) {
	s := newTestStore(t)

	turns := []ConversationTurn{
		{Role: RoleUser, Content: "hello"},
		{Role: RoleAssistant, TaskID: "abc", IsStreaming: true},
	}
	if err := s.SetJSON(KeyChatMessages, turns); err != nil {
		t.Fatalf("SetJSON() error = %v", err)
	}

	var loaded []ConversationTurn
	ok, err := s.GetJSON(KeyChatMessages, &loaded)
	if err != nil || !ok {
		t.Fatalf("GetJSON() = %v, %v", ok, err)
	}
	if len(loaded) != 2 || loaded[1].TaskID != "abc" || !loaded[1].IsStreaming {
		t.Errorf("GetJSON() loaded %+v", loaded)
	}

	var missing []SavedChat
	if ok, err := s.GetJSON(KeySavedChats, &missing); ok || err != nil {
		t.Errorf("GetJSON() missing key = %v, %v; want false, nil", ok, err)
	}
}

func TestStore_GetJSONCorrupt(t *testing.T) {
	s := newTestStore(t)
	if err := s.Set(KeySavedChats, "{not json"); err != nil {
		t.Fatal(err)
	}

	var chats []SavedChat
	_, err := s.GetJSON(KeySavedChats, &chats)
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("GetJSON() error = %v, want ParseError", err)
	}
	if parseErr.Key != KeySavedChats {
		t.Errorf("ParseError.Key = %q", parseErr.Key)
	}
}

func TestStore_Keys(t *testing.T) {
	s := newTestStore(t)
	for _, key := range []string{KeyChatMessages, KeySavedChats, KeyTheme} {
		if err := s.Set(key, "1"); err != nil {
			t.Fatal(err)
		}
	}
	keys, err := s.Keys("%")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 3 {
		t.Errorf("Keys() = %v, want 3 keys", keys)
	}
}

func TestOpenStore_Persists(t *testing.T) {
	path := filepath.Join(testutil.CreateTempDir(t), "client.db")

	s, err := OpenStore(path)
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	if err := s.Set(KeyLogLevel, "DEBUG"); err != nil {
		t.Fatal(err)
	}
	_ = s.Close()

	reopened, err := OpenStore(path)
	if err != nil {
		t.Fatalf("OpenStore() reopen error = %v", err)
	}
	defer reopened.Close()
	if got, _, _ := reopened.Get(KeyLogLevel); got != "DEBUG" {
		t.Errorf("value after reopen = %q, want DEBUG", got)
	}
}
