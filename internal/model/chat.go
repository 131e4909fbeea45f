package model

import "time"

type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

func (r ChatRole) Valid() bool {
	return r == ChatRoleUser || r == ChatRoleAssistant
}

// ChatMessage is one entry of the assistant conversation. Seq is the
// insertion order and breaks ties between equal timestamps.
type ChatMessage struct {
	ID        string    `json:"id" db:"id"`
	Role      ChatRole  `json:"role" db:"role"`
	Content   string    `json:"content" db:"content"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	Seq       int64     `json:"-" db:"seq"`
}

// GreetingMessage seeds a fresh conversation.
const GreetingMessage = "Hello! I'm your healthcare AI assistant. I can help you fill out the patient information form with sample data for testing purposes. Just click the 'Generate' button when you're ready, and I'll populate all the required fields instantly."
