package realtime

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/studyhall/internal/models"
	"github.com/charlesng35/studyhall/internal/study"
	apperrors "github.com/charlesng35/studyhall/pkg/errors"
	"github.com/charlesng35/studyhall/pkg/logger"
	"github.com/charlesng35/studyhall/pkg/metrics"
)

const defaultSaveTimeout = 5 * time.Second

// TypingPayload is the body of user_typing and user_stop_typing.
type TypingPayload struct {
	ChatID   string `json:"chatId"`
	UserID   string `json:"userId"`
	Username string `json:"username,omitempty"`
}

// CallPresencePayload is the body of user_joined_call and user_left_call.
type CallPresencePayload struct {
	CallID           string `json:"callId"`
	UserID           string `json:"userId"`
	Username         string `json:"username"`
	ParticipantCount int    `json:"participantCount"`
}

// MessageErrorPayload is sent to the author when a chat message could not be stored.
type MessageErrorPayload struct {
	ChatID string `json:"chatId"`
	Code   string `json:"code"`
	Error  string `json:"error"`
}

// GatewayConfig tunes the gateway.
type GatewayConfig struct {
	SaveTimeout time.Duration
}

// Gateway turns client frames into registry, engine and hub operations. Every state
// mutation runs on the Loop.
type Gateway struct {
	hub      *Hub
	loop     *Loop
	engine   *study.Engine
	messages study.MessageSaver
	timeout  time.Duration
	log      *zap.Logger

	mu       sync.Mutex
	draining bool
	active   sync.WaitGroup
}

// NewGateway wires the gateway.
func NewGateway(hub *Hub, loop *Loop, engine *study.Engine, messages study.MessageSaver, cfg GatewayConfig) (*Gateway, error) {
	switch {
	case hub == nil:
		return nil, errors.New("realtime gateway: hub is required")
	case loop == nil:
		return nil, errors.New("realtime gateway: loop is required")
	case engine == nil:
		return nil, errors.New("realtime gateway: engine is required")
	case messages == nil:
		return nil, errors.New("realtime gateway: message saver is required")
	}

	timeout := cfg.SaveTimeout
	if timeout <= 0 {
		timeout = defaultSaveTimeout
	}
	return &Gateway{
		hub:      hub,
		loop:     loop,
		engine:   engine,
		messages: messages,
		timeout:  timeout,
		log:      logger.WithModule("gateway"),
	}, nil
}

// Hub returns the connection hub.
func (g *Gateway) Hub() *Hub { return g.hub }

// Serve pumps a connection until it closes, then leaves every call it joined. Once Drain
// has been called, new connections are closed straight away.
func (g *Gateway) Serve(ctx context.Context, c *Conn) {
	g.mu.Lock()
	if g.draining {
		g.mu.Unlock()
		g.log.Debug("connection rejected while draining", zap.String("conn_id", c.ID()))
		c.Close()
		return
	}
	g.active.Add(1)
	g.mu.Unlock()
	defer g.active.Done()

	g.log.Debug("connection opened",
		zap.String("conn_id", c.ID()),
		zap.String("user_id", c.Identity().UserID),
	)

	c.Serve(func(payload []byte) {
		g.HandleFrame(ctx, c, payload)
	})
	g.disconnect(c)

	g.log.Debug("connection closed", zap.String("conn_id", c.ID()))
}

// Drain stops accepting connections and waits until every served connection has finished
// its disconnect cleanup, or ctx is done. Close the hub first.
func (g *Gateway) Drain(ctx context.Context) error {
	g.mu.Lock()
	g.draining = true
	g.mu.Unlock()

	done := make(chan struct{})
	go func() {
		g.active.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HandleFrame decodes and executes one client frame.
func (g *Gateway) HandleFrame(ctx context.Context, c *Conn, payload []byte) {
	ev, err := DecodeFrame(payload)
	if err != nil {
		g.rejectFrame(c, err)
		return
	}
	if _, ok := ev.(Ping); ok {
		metrics.RealtimeEvents.WithLabelValues(EventPing, "ok").Inc()
		g.hub.Send(c, EventPong, struct{}{})
		return
	}

	if err := g.loop.Do(ctx, func() { g.dispatch(ctx, c, ev) }); err != nil {
		metrics.RealtimeEvents.WithLabelValues(ev.Name(), "error").Inc()
		g.log.Warn("event dropped", zap.String("event", ev.Name()), zap.Error(err))
	}
}

func (g *Gateway) rejectFrame(c *Conn, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = apperrors.ErrInvalidEvent
	}
	metrics.RealtimeEvents.WithLabelValues("unknown", "invalid").Inc()
	g.hub.Send(c, EventError, ErrorPayload{Code: appErr.Code, Message: appErr.Message})
}

func (g *Gateway) dispatch(ctx context.Context, c *Conn, ev ClientEvent) {
	result := "ok"
	switch e := ev.(type) {
	case JoinChat:
		for _, room := range chatRooms(e.ChatID, e.ChatType) {
			g.hub.Join(c, ChatRoom(room))
		}
	case LeaveChat:
		for _, room := range chatRooms(e.ChatID, e.ChatType) {
			g.hub.Leave(c, ChatRoom(room))
		}
	case SendMessage:
		if !g.sendMessage(ctx, c, e) {
			result = "error"
		}
	case TypingStart:
		g.hub.BroadcastRoomsExcept(chatTargets(e.ChatID, e.ChatType), c, EventUserTyping, TypingPayload{
			ChatID:   e.ChatID,
			UserID:   c.Identity().UserID,
			Username: c.Identity().Name,
		})
	case TypingStop:
		g.hub.BroadcastRoomsExcept(chatTargets(e.ChatID, e.ChatType), c, EventUserStopTyping, TypingPayload{
			ChatID: e.ChatID,
			UserID: c.Identity().UserID,
		})
	case JoinCall:
		g.joinCall(ctx, c, study.NormalizeRoomID(e.CallID))
	case LeaveCall:
		g.leaveCall(ctx, c, study.NormalizeRoomID(e.CallID))
	}
	metrics.RealtimeEvents.WithLabelValues(ev.Name(), result).Inc()
}

func (g *Gateway) sendMessage(ctx context.Context, c *Conn, ev SendMessage) bool {
	identity := c.Identity()
	roomID := study.NormalizeRoomID(ev.ChatID)
	if ev.ChatType == models.RoomKindDirect {
		roomID = study.NormalizeDirectChatID(roomID)
	}

	authorID := identity.UserID
	msg := &models.Message{
		RoomID:       roomID,
		RoomKind:     ev.ChatType,
		Text:         ev.Message,
		AuthorID:     &authorID,
		AuthorName:   identity.Name,
		AuthorAvatar: identity.Avatar,
	}

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
	err := g.messages.Save(sctx, msg)
	cancel()
	if err != nil {
		g.log.Error("failed to save message",
			zap.String("room_id", roomID),
			zap.String("user_id", identity.UserID),
			zap.Error(err),
		)
		g.hub.Send(c, EventMessageError, MessageErrorPayload{
			ChatID: ev.ChatID,
			Code:   apperrors.ErrMessageSend.Code,
			Error:  apperrors.ErrMessageSend.Message,
		})
		return false
	}

	g.hub.BroadcastRooms(chatTargets(ev.ChatID, ev.ChatType), study.EventNewMessage, study.NewChatMessage(msg, ""))

	if ev.ChatType != models.RoomKindGroup {
		return true
	}
	actor := study.Actor{UserID: identity.UserID, Name: identity.Name}
	cmd, err := g.engine.HandleCommand(ctx, roomID, ev.ChatType, actor, ev.Message)
	switch {
	case err == nil:
		if cmd != study.CommandNone {
			g.log.Debug("bot command handled", zap.String("room_id", roomID), zap.Stringer("command", cmd))
		}
	case errors.Is(err, study.ErrNoCallParticipants),
		errors.Is(err, study.ErrSessionAlreadyActive),
		errors.Is(err, study.ErrNoActiveSession):
		g.log.Debug("bot command rejected", zap.String("room_id", roomID), zap.Stringer("command", cmd), zap.Error(err))
	default:
		g.log.Error("bot command failed", zap.String("room_id", roomID), zap.Stringer("command", cmd), zap.Error(err))
	}
	return true
}

func (g *Gateway) joinCall(ctx context.Context, c *Conn, callID string) {
	identity := c.Identity()
	count := g.engine.Registry().Join(ctx, callID, identity.UserID)
	c.calls[callID] = struct{}{}
	g.hub.Join(c, CallRoom(callID))
	g.hub.BroadcastExcept(CallRoom(callID), c, EventUserJoinedCall, CallPresencePayload{
		CallID:           callID,
		UserID:           identity.UserID,
		Username:         identity.Name,
		ParticipantCount: count,
	})
	g.engine.RefreshGauges()
}

func (g *Gateway) leaveCall(ctx context.Context, c *Conn, callID string) {
	identity := c.Identity()
	count := g.engine.Registry().Leave(ctx, callID, identity.UserID)
	delete(c.calls, callID)
	g.hub.Leave(c, CallRoom(callID))
	g.hub.Broadcast(CallRoom(callID), EventUserLeftCall, CallPresencePayload{
		CallID:           callID,
		UserID:           identity.UserID,
		Username:         identity.Name,
		ParticipantCount: count,
	})
	g.engine.RefreshGauges()
}

// disconnect runs after the socket is gone, so it must not depend on the request context.
func (g *Gateway) disconnect(c *Conn) {
	ctx := context.Background()
	err := g.loop.Do(ctx, func() {
		calls := make([]string, 0, len(c.calls))
		for id := range c.calls {
			calls = append(calls, id)
		}
		sort.Strings(calls)
		for _, id := range calls {
			g.leaveCall(ctx, c, id)
		}
	})
	if err != nil {
		g.log.Warn("disconnect cleanup skipped", zap.String("conn_id", c.ID()), zap.Error(err))
	}
}

// chatRooms lists the canonical rooms a chat id maps to. Direct chats also map to the
// sorted participant pair, so both spellings reach the same subscribers.
func chatRooms(chatID string, kind models.RoomKind) []string {
	canonical := study.NormalizeRoomID(chatID)
	if kind != models.RoomKindDirect {
		return []string{canonical}
	}
	direct := study.NormalizeDirectChatID(canonical)
	if direct == canonical {
		return []string{canonical}
	}
	return []string{canonical, direct}
}

// chatTargets returns the hub room names for chatRooms.
func chatTargets(chatID string, kind models.RoomKind) []string {
	rooms := chatRooms(chatID, kind)
	targets := make([]string, 0, len(rooms))
	for _, room := range rooms {
		targets = append(targets, ChatRoom(room))
	}
	return targets
}
