package study

import (
	"time"

	"github.com/charlesng35/studyhall/internal/models"
)

// Server event names published by the engine.
const (
	EventNewMessage        = "new_message"
	EventSessionStarted    = "study_session_started"
	EventParticipantUpdate = "study_session_participant_update"
	EventSessionEnded      = "study_session_ended"
)

// Event is a payload published to a chat room.
type Event interface {
	EventName() string
}

// Notifier delivers events to every connection in a chat room.
type Notifier interface {
	Publish(roomID string, ev Event)
}

// Participant update actions.
const (
	ActionJoined = "joined"
	ActionLeft   = "left"
)

// End reasons.
const (
	EndReasonManual = "manual"
	EndReasonAuto   = "auto"
)

// SessionStarted announces a new session.
type SessionStarted struct {
	ChatID           string    `json:"chatId"`
	SessionID        string    `json:"sessionId"`
	StartedBy        string    `json:"startedBy"`
	StartedByID      string    `json:"startedById"`
	ParticipantCount int       `json:"participantCount"`
	Participants     []string  `json:"participants"`
	Timestamp        time.Time `json:"timestamp"`
}

func (SessionStarted) EventName() string { return EventSessionStarted }

// ParticipantUpdate reports a join or leave inside an active session. Duration is set
// for leaves only.
type ParticipantUpdate struct {
	ChatID             string    `json:"chatId"`
	UserID             string    `json:"userId"`
	Action             string    `json:"action"`
	Duration           *int      `json:"duration"`
	ActiveParticipants int       `json:"activeParticipants"`
	Timestamp          time.Time `json:"timestamp"`
}

func (ParticipantUpdate) EventName() string { return EventParticipantUpdate }

// SessionEnded announces the end of a session with its full roster.
type SessionEnded struct {
	ChatID           string    `json:"chatId"`
	SessionID        string    `json:"sessionId"`
	EndedBy          string    `json:"endedBy"`
	Reason           string    `json:"reason"`
	Duration         int       `json:"duration"`
	ParticipantCount int       `json:"participantCount"`
	Participants     []string  `json:"participants"`
	AutoStopped      bool      `json:"autoStopped"`
	Timestamp        time.Time `json:"timestamp"`
}

func (SessionEnded) EventName() string { return EventSessionEnded }

// MessageAuthor is the author block of a chat message on the wire.
type MessageAuthor struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image"`
}

// ChatMessage is the wire form of a stored message.
type ChatMessage struct {
	ID        string          `json:"id"`
	Text      string          `json:"text"`
	User      MessageAuthor   `json:"user"`
	CreatedAt time.Time       `json:"createdAt"`
	ChatID    string          `json:"chatId"`
	ChatType  models.RoomKind `json:"chatType"`
	IsBot     bool            `json:"isBot,omitempty"`
	BotType   string          `json:"botType,omitempty"`
}

func (ChatMessage) EventName() string { return EventNewMessage }

// NewChatMessage converts a stored message. botID is used as the author id of bot messages.
func NewChatMessage(m *models.Message, botID string) ChatMessage {
	authorID := botID
	if m.AuthorID != nil {
		authorID = *m.AuthorID
	}
	return ChatMessage{
		ID:   m.ID,
		Text: m.Text,
		User: MessageAuthor{
			ID:    authorID,
			Name:  m.AuthorName,
			Image: m.AuthorAvatar,
		},
		CreatedAt: m.CreatedAt,
		ChatID:    m.RoomID,
		ChatType:  m.RoomKind,
		IsBot:     m.IsBot,
		BotType:   m.BotType,
	}
}

// Actor identifies the user behind a command.
type Actor struct {
	UserID string
	Name   string
}
