package models

import "time"

// Thread представляет чат по паре (груз, перевозчик).
// ProposalID указывает на текущее одобренное предложение.
type Thread struct {
	ID         string    `json:"id"`
	LoadID     string    `json:"load_id"`
	CarrierID  string    `json:"carrier_id"`
	ProposalID *string   `json:"proposal_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Attachment – вложение сообщения: ссылка или data URI
type Attachment struct {
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	URL      string `json:"url,omitempty"`
	Data     string `json:"data,omitempty"`
}

// Message представляет сообщение в чате
type Message struct {
	ID          string       `json:"id"`
	ThreadID    string       `json:"thread_id"`
	FromUserID  string       `json:"from_user_id"`
	Text        string       `json:"text"`
	ReplyToID   *string      `json:"reply_to_id,omitempty"`
	Attachments []Attachment `json:"attachments"`
	System      bool         `json:"system"`
	CreatedAt   time.Time    `json:"created_at"`

	// Дополнительные поля для API
	From *Sender `json:"from,omitempty"`
}

// Read – отметка последнего прочтения чата пользователем
type Read struct {
	ThreadID   string    `json:"thread_id"`
	UserID     string    `json:"user_id"`
	LastReadAt time.Time `json:"last_read_at"`
}

// UnreadInfo – счётчик непрочитанных по одному предложению
type UnreadInfo struct {
	Unread        int        `json:"unread"`
	LastMessageAt *time.Time `json:"lastMessageAt"`
}

// ThreadSummary – элемент списка переписок пользователя
type ThreadSummary struct {
	ProposalID    string     `json:"proposal_id"`
	ThreadID      string     `json:"thread_id"`
	LoadID        string     `json:"load_id"`
	CarrierID     string     `json:"carrier_id"`
	ShipStatus    ShipStatus `json:"ship_status"`
	Unread        int        `json:"unread"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
}
