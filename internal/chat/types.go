package chat

// Conversation describes one chat thread as returned by the directory
// service: a server-assigned id and the fixed participant set.
type Conversation struct {
	ChatID       string   `json:"chat_id"`
	Participants []string `json:"participants"`
	CreatedAt    string   `json:"created_at"`
}

// Message is one chat message, inbound over the websocket or loaded from
// history. Immutable once appended to a bucket.
type Message struct {
	ID        string `json:"id,omitempty"`
	ChatID    string `json:"chat_id"`
	SenderID  string `json:"sender_id"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// OutboundFrame is the wire format for client-to-server sends.
type OutboundFrame struct {
	Text         string   `json:"text"`
	ChatID       string   `json:"chat_id"`
	RecipientIDs []string `json:"recipient_ids"`
}
