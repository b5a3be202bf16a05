package entities

import "time"

const (
	SenderUser = "user"
	SenderAI   = "ai"
)

const (
	MessageTypeText  = "text"
	MessageTypeFile  = "file"
	MessageTypeImage = "image"
	MessageTypeVideo = "video"
)

type Message struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	Content        string         `json:"content"`
	Sender         string         `json:"sender"`       // "user" or "ai"
	MessageType    string         `json:"message_type"` // text, file, image, video
	Metadata       map[string]any `json:"metadata"`
	CreatedAt      time.Time      `json:"created_at"`
}

// ValidSender reports whether s is one of the known senders.
func ValidSender(s string) bool {
	return s == SenderUser || s == SenderAI
}

// ValidMessageType reports whether t is one of the known message types.
func ValidMessageType(t string) bool {
	switch t {
	case MessageTypeText, MessageTypeFile, MessageTypeImage, MessageTypeVideo:
		return true
	}
	return false
}

// Exchange is the pair of messages produced by one chat turn.
type Exchange struct {
	UserMessage *Message `json:"user_message"`
	AIMessage   *Message `json:"ai_message"`
	Provider    string   `json:"provider"`
}
