package realtime

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/charlesng35/studyhall/internal/models"
	apperrors "github.com/charlesng35/studyhall/pkg/errors"
	"github.com/charlesng35/studyhall/pkg/validator"
)

// Client event names.
const (
	EventJoinChat    = "join_chat"
	EventLeaveChat   = "leave_chat"
	EventSendMessage = "send_message"
	EventTypingStart = "typing_start"
	EventTypingStop  = "typing_stop"
	EventJoinCall    = "join_call"
	EventLeaveCall   = "leave_call"
	EventPing        = "ping"
)

// Server event names emitted by the gateway itself.
const (
	EventUserJoinedCall = "user_joined_call"
	EventUserLeftCall   = "user_left_call"
	EventUserTyping     = "user_typing"
	EventUserStopTyping = "user_stop_typing"
	EventMessageError   = "message_error"
	EventError          = "error"
	EventPong           = "pong"
)

// Frame is the wire envelope: one JSON object per websocket message.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Envelope is an outbound frame.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// ClientEvent is one of the decoded client event payloads below.
type ClientEvent interface {
	Name() string
}

// JoinChat subscribes the connection to a chat room. Direct chats should pass chatType so
// the participant pair is ordered the same way messages are.
type JoinChat struct {
	ChatID   string          `json:"chatId" validate:"required,roomid"`
	ChatType models.RoomKind `json:"chatType" validate:"omitempty,oneof=direct group ai"`
}

// LeaveChat unsubscribes the connection from a chat room.
type LeaveChat struct {
	ChatID   string          `json:"chatId" validate:"required,roomid"`
	ChatType models.RoomKind `json:"chatType" validate:"omitempty,oneof=direct group ai"`
}

// SendMessage posts a chat message.
type SendMessage struct {
	ChatID   string          `json:"chatId" validate:"required,roomid"`
	Message  string          `json:"message" validate:"required,notblank,max=4000"`
	ChatType models.RoomKind `json:"chatType" validate:"required,oneof=direct group ai"`
}

// TypingStart signals that the user is typing in a chat room. Direct chats pass chatType
// so the signal reaches both spellings of the participant pair.
type TypingStart struct {
	ChatID   string          `json:"chatId" validate:"required,roomid"`
	ChatType models.RoomKind `json:"chatType" validate:"omitempty,oneof=direct group ai"`
}

// TypingStop signals that the user stopped typing.
type TypingStop struct {
	ChatID   string          `json:"chatId" validate:"required,roomid"`
	ChatType models.RoomKind `json:"chatType" validate:"omitempty,oneof=direct group ai"`
}

// JoinCall marks the user as present in a video call.
type JoinCall struct {
	CallID string `json:"callId" validate:"required,roomid"`
}

// LeaveCall marks the user as gone from a video call.
type LeaveCall struct {
	CallID string `json:"callId" validate:"required,roomid"`
}

// Ping asks for a pong.
type Ping struct{}

func (JoinChat) Name() string { return EventJoinChat }
func (LeaveChat) Name() string { return EventLeaveChat }
func (SendMessage) Name() string { return EventSendMessage }
func (TypingStart) Name() string { return EventTypingStart }
func (TypingStop) Name() string { return EventTypingStop }
func (JoinCall) Name() string { return EventJoinCall }
func (LeaveCall) Name() string { return EventLeaveCall }
func (Ping) Name() string { return EventPing }

// ErrorPayload is the body of scoped error events.
type ErrorPayload struct {
	Event   string `json:"event,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// DecodeFrame parses and validates a client frame. Failures are *apperrors.AppError values
// wrapping ErrInvalidEvent or ErrUnknownEvent.
func DecodeFrame(payload []byte) (ClientEvent, error) {
	var frame Frame
	if err := json.Unmarshal(payload, &frame); err != nil {
		return nil, apperrors.ErrInvalidEvent.WithInternal(err)
	}

	name := strings.TrimSpace(frame.Event)
	var ev ClientEvent
	switch name {
	case EventJoinChat:
		ev = &JoinChat{}
	case EventLeaveChat:
		ev = &LeaveChat{}
	case EventSendMessage:
		ev = &SendMessage{}
	case EventTypingStart:
		ev = &TypingStart{}
	case EventTypingStop:
		ev = &TypingStop{}
	case EventJoinCall:
		ev = &JoinCall{}
	case EventLeaveCall:
		ev = &LeaveCall{}
	case EventPing:
		return Ping{}, nil
	case "":
		return nil, apperrors.ErrInvalidEvent.WithMessage("event name is required")
	default:
		return nil, apperrors.ErrUnknownEvent.WithMessage(fmt.Sprintf("unsupported event %q", name))
	}

	data := bytes.TrimSpace(frame.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, apperrors.ErrInvalidEvent.WithMessage(name + ": data is required")
	}
	if err := json.Unmarshal(data, ev); err != nil {
		return nil, apperrors.ErrInvalidEvent.WithMessage(name + ": malformed data").WithInternal(err)
	}
	if err := validator.ValidateStruct(ev); err != nil {
		var failures validator.ValidationErrors
		if errors.As(err, &failures) {
			return nil, apperrors.ErrInvalidEvent.WithMessage(name + ": " + failures.Error())
		}
		return nil, apperrors.ErrInvalidEvent.WithInternal(err)
	}
	return deref(ev), nil
}

func deref(ev ClientEvent) ClientEvent {
	switch v := ev.(type) {
	case *JoinChat:
		return *v
	case *LeaveChat:
		return *v
	case *SendMessage:
		return *v
	case *TypingStart:
		return *v
	case *TypingStop:
		return *v
	case *JoinCall:
		return *v
	case *LeaveCall:
		return *v
	default:
		return ev
	}
}

// EncodeFrame renders an outbound frame.
func EncodeFrame(event string, data any) ([]byte, error) {
	return json.Marshal(Envelope{Event: event, Data: data})
}
