package internal

import (
	"time"
)

// testTime is the fixed clock used by the helpers below
var testTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// CreateTestChat creates a saved chat with sample data
func CreateTestChat(id string) *SavedChat {
	return &SavedChat{
		ID:    id,
		Title: "Hello, how are you?",
		Messages: []ConversationTurn{
			{
				Role:      RoleUser,
				Content:   "Hello, how are you?",
				Timestamp: testTime,
			},
			{
				Role:      RoleAssistant,
				Content:   "I'm doing well, thank you!",
				Timestamp: testTime.Add(time.Second),
				TaskID:    "task-" + id,
			},
		},
		Timestamp: testTime.Add(2 * time.Second),
	}
}

// CreateTestChatWithMessages creates a saved chat with custom messages
func CreateTestChatWithMessages(id string, messages []ConversationTurn) *SavedChat {
	return &SavedChat{
		ID:        id,
		Title:     ChatTitle(messages),
		Messages:  messages,
		Timestamp: testTime,
	}
}

// CreateTestTask creates a task record in the given status
func CreateTestTask(id, status string) TaskRecord {
	return TaskRecord{
		ID:          id,
		Description: "test task " + id,
		Type:        "development",
		Status:      status,
		CreatedAt:   testTime.Format(time.RFC3339),
	}
}
