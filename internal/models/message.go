package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RoomKind classifies the chat a message belongs to.
type RoomKind string

const (
	RoomKindDirect RoomKind = "direct"
	RoomKindGroup  RoomKind = "group"
	RoomKindAI     RoomKind = "ai"
)

// Valid reports whether the kind is one of the known room kinds.
func (k RoomKind) Valid() bool {
	switch k {
	case RoomKindDirect, RoomKindGroup, RoomKindAI:
		return true
	default:
		return false
	}
}

// BotTypeStudy tags messages authored by the study bot.
const BotTypeStudy = "study"

// Message is a persisted chat message. AuthorID is nil for bot and system authors.
type Message struct {
	ID           string            `gorm:"primaryKey;size:36;index:idx_messages_room_order,priority:3" json:"id"`
	RoomID       string            `gorm:"size:128;not null;index:idx_messages_room_order,priority:1" json:"room_id"`
	RoomKind     RoomKind          `gorm:"size:16;not null" json:"room_kind"`
	Text         string            `gorm:"type:text;not null" json:"text"`
	AuthorID     *string           `gorm:"size:64;index" json:"author_id"`
	AuthorName   string            `json:"author_name"`
	AuthorAvatar string            `json:"author_avatar"`
	IsBot        bool              `gorm:"default:false;index" json:"is_bot"`
	BotType      string            `gorm:"size:32" json:"bot_type,omitempty"`
	Metadata     datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt    time.Time         `gorm:"index:idx_messages_room_order,priority:2" json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// BeforeCreate assigns a time-ordered identifier.
func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = NewOrderedID()
	}
	return nil
}
