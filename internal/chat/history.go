package chat

import (
	"strconv"

	"github.com/aetherium/aetherium-cli/internal"
)

// SavedChats returns the history, most recent first.
func (s *Session) SavedChats() []internal.SavedChat {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]internal.SavedChat, len(s.saved))
	copy(out, s.saved)
	return out
}

// SaveCurrent stores the conversation in history under the current chat id,
// creating one on first save. It reports false when there is nothing to save.
func (s *Session) SaveCurrent() bool {
	s.mu.Lock()
	if len(s.conv.Turns) == 0 {
		s.mu.Unlock()
		return false
	}
	now := s.now()
	id := s.chatID
	if id == "" {
		id = strconv.FormatInt(now.UnixMilli(), 10)
	}
	chat := internal.SavedChat{
		ID:        id,
		Title:     internal.ChatTitle(s.conv.Turns),
		Messages:  internal.CloneTurns(s.conv.Turns),
		Timestamp: now,
	}
	updated := make([]internal.SavedChat, 0, len(s.saved)+1)
	updated = append(updated, chat)
	for _, c := range s.saved {
		if c.ID != id {
			updated = append(updated, c)
		}
	}
	if len(updated) > MaxSavedChats {
		updated = updated[:MaxSavedChats]
	}
	s.saved = updated
	s.chatID = id
	err := s.persistSavedLocked()
	s.mu.Unlock()

	if err != nil {
		s.notes.Error("Failed to save chat")
	} else {
		s.notes.Success("Chat saved to history")
	}
	s.changed()
	return true
}

// LoadChat replaces the conversation with a saved chat.
func (s *Session) LoadChat(id string) error {
	s.mu.Lock()
	var found *internal.SavedChat
	for i := range s.saved {
		if s.saved[i].ID == id {
			found = &s.saved[i]
			break
		}
	}
	if found == nil {
		s.mu.Unlock()
		return ErrChatNotFound
	}
	s.conv.Reset(found.Messages)
	s.chatID = found.ID
	s.persistLocked()
	s.mu.Unlock()

	s.notes.Success("Chat loaded")
	s.changed()
	return nil
}

// DeleteChat removes a chat from history. Unknown ids are ignored.
func (s *Session) DeleteChat(id string) {
	s.mu.Lock()
	kept := s.saved[:0:0]
	for _, c := range s.saved {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	s.saved = kept
	err := s.persistSavedLocked()
	s.mu.Unlock()

	if err != nil {
		s.notes.Error("Failed to delete chat")
	} else {
		s.notes.Success("Chat deleted")
	}
	s.changed()
}

// StartNew saves a non-empty conversation and then clears it.
func (s *Session) StartNew() {
	s.mu.Lock()
	hasTurns := len(s.conv.Turns) > 0
	s.mu.Unlock()
	if hasTurns {
		s.SaveCurrent()
	}
	s.Clear()
}

// Clear empties the conversation and forgets the chat id. History is kept.
func (s *Session) Clear() {
	s.mu.Lock()
	s.conv.Reset(nil)
	s.chatID = ""
	if s.store != nil {
		if err := s.store.Delete(internal.KeyChatMessages); err != nil {
			internal.LogWarn("Failed to clear chat messages: %v", err)
		}
	}
	s.mu.Unlock()
	s.changed()
}

func (s *Session) persistSavedLocked() error {
	if s.store == nil {
		return nil
	}
	if err := s.store.SetJSON(internal.KeySavedChats, s.saved); err != nil {
		internal.LogWarn("Failed to save chat history: %v", err)
		return err
	}
	return nil
}
