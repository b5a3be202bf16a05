package entities

import "time"

// DefaultConversationTitle is used when the client does not send a title.
const DefaultConversationTitle = "Nueva Conversación"

type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasDefaultTitle reports whether the conversation still carries a generated title
// and can be renamed after the first exchange.
func (c *Conversation) HasDefaultTitle() bool {
	switch c.Title {
	case "", DefaultConversationTitle, "Nueva conversación", "Nueva conversación con Sigma AI":
		return true
	}
	return false
}
