package domain

import "time"

// MessageType 메시지 종류
type MessageType string

const (
	MessageTypeText        MessageType = "text"
	MessageTypeImage       MessageType = "image"
	MessageTypeAudio       MessageType = "audio"
	MessageTypeBotResponse MessageType = "bot_response"
)

// Valid reports whether t is a known message type
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeAudio, MessageTypeBotResponse:
		return true
	}
	return false
}

// IsObjectReference reports whether content of this type points at a stored object
func (t MessageType) IsObjectReference() bool {
	return t == MessageTypeImage || t == MessageTypeAudio
}

// Message chat message. Immutable once written; only the sender may delete it.
type Message struct {
	ID          uint64      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	RoomID      string      `gorm:"column:room_id;size:36;not null;index:idx_messages_room_created,priority:1;uniqueIndex:uk_messages_client_id,priority:1" json:"room_id"`
	SenderID    string      `gorm:"column:sender_id;size:64;not null;index;uniqueIndex:uk_messages_client_id,priority:2" json:"sender_id"`
	Content     string      `gorm:"column:content;type:text" json:"content"`
	Type        MessageType `gorm:"column:type;size:16;not null;default:text" json:"type"`
	LinkURL     string      `gorm:"column:link_url;size:1000" json:"link_url,omitempty"`
	ClientMsgID *string     `gorm:"column:client_msg_id;size:128;uniqueIndex:uk_messages_client_id,priority:3" json:"client_msg_id,omitempty"`
	CreatedAt   time.Time   `gorm:"column:created_at;index:idx_messages_room_created,priority:2" json:"created_at"`
}

func (Message) TableName() string {
	return "messages"
}

// ReadCursor marks that user_id has read message_id. One row per pair.
type ReadCursor struct {
	ID        uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	MessageID uint64    `gorm:"column:message_id;not null;uniqueIndex:uk_message_reads_pair,priority:1" json:"message_id"`
	UserID    string    `gorm:"column:user_id;size:64;not null;uniqueIndex:uk_message_reads_pair,priority:2;index" json:"user_id"`
	ReadAt    time.Time `gorm:"column:read_at;autoCreateTime" json:"read_at"`
}

func (ReadCursor) TableName() string {
	return "message_reads"
}

// SendMessageRequest represents a send message request
type SendMessageRequest struct {
	Content     string      `json:"content"`
	Type        MessageType `json:"type"`
	LinkURL     string      `json:"link_url"`
	ClientMsgID string      `json:"client_msg_id"`
}

// MessageResponse represents a message in API responses
type MessageResponse struct {
	ID        uint64      `json:"id"`
	RoomID    string      `json:"room_id"`
	SenderID  string      `json:"sender_id"`
	Content   string      `json:"content"`
	Type      MessageType `json:"type"`
	LinkURL   string      `json:"link_url,omitempty"`
	CreatedAt string      `json:"created_at"`
}

// ToResponse converts Message to MessageResponse
func (m *Message) ToResponse() *MessageResponse {
	return &MessageResponse{
		ID:        m.ID,
		RoomID:    m.RoomID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		Type:      m.Type,
		LinkURL:   m.LinkURL,
		CreatedAt: m.CreatedAt.Format(time.RFC3339Nano),
	}
}
