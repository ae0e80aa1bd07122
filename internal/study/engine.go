package study

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/studyhall/internal/models"
	"github.com/charlesng35/studyhall/pkg/logger"
	"github.com/charlesng35/studyhall/pkg/metrics"
)

// Precondition failures. The engine has already posted a bot message explaining them.
var (
	ErrNoCallParticipants   = errors.New("study: no participants in the call")
	ErrSessionAlreadyActive = errors.New("study: session already active")
	ErrNoActiveSession      = errors.New("study: no active session")
)

// RecordSaver persists finished study participations.
type RecordSaver interface {
	Save(ctx context.Context, record *models.StudyRecord) error
}

// MessageSaver persists chat messages, assigning id and timestamp.
type MessageSaver interface {
	Save(ctx context.Context, msg *models.Message) error
}

const (
	DefaultBotName        = "Study Bot"
	DefaultBotUserID      = "study-bot"
	DefaultPersistTimeout = 5 * time.Second

	autoEndedBy = "System (Auto-stop)"
)

// Config tunes the engine.
type Config struct {
	BotName        string
	BotUserID      string
	BotAvatar      string
	Mentions       []string
	PersistTimeout time.Duration
	Clock          func() time.Time
	Logger         *zap.Logger
}

// Engine runs the study session lifecycle for every room. It registers itself as the
// Registry's hooks, so call presence drives joins, leaves and auto-end.
//
// Engine methods must be called from the realtime event loop.
type Engine struct {
	registry   *Registry
	sessions   SessionStore
	records    RecordSaver
	messages   MessageSaver
	notifier   Notifier
	dispatcher *Dispatcher

	cfg    Config
	now    func() time.Time
	log    *zap.Logger
	active map[string]struct{}
}

// NewEngine wires the engine to its collaborators.
func NewEngine(registry *Registry, sessions SessionStore, records RecordSaver, messages MessageSaver, notifier Notifier, cfg Config) (*Engine, error) {
	switch {
	case registry == nil:
		return nil, errors.New("study engine: registry is required")
	case sessions == nil:
		return nil, errors.New("study engine: session store is required")
	case records == nil:
		return nil, errors.New("study engine: record saver is required")
	case messages == nil:
		return nil, errors.New("study engine: message saver is required")
	case notifier == nil:
		return nil, errors.New("study engine: notifier is required")
	}

	if strings.TrimSpace(cfg.BotName) == "" {
		cfg.BotName = DefaultBotName
	}
	if strings.TrimSpace(cfg.BotUserID) == "" {
		cfg.BotUserID = DefaultBotUserID
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = DefaultPersistTimeout
	}
	now := time.Now
	if cfg.Clock != nil {
		now = cfg.Clock
	}
	log := cfg.Logger
	if log == nil {
		log = logger.WithModule("study")
	}

	e := &Engine{
		registry:   registry,
		sessions:   sessions,
		records:    records,
		messages:   messages,
		notifier:   notifier,
		dispatcher: NewDispatcher(cfg.Mentions...),
		cfg:        cfg,
		now:        now,
		log:        log,
		active:     make(map[string]struct{}),
	}
	registry.SetHooks(Hooks{
		OnJoin:  e.OnJoin,
		OnLeave: e.OnLeave,
		OnEmpty: e.OnEmpty,
	})
	return e, nil
}

// Registry returns the participant registry driving the engine.
func (e *Engine) Registry() *Registry { return e.registry }

// Dispatcher returns the command dispatcher.
func (e *Engine) Dispatcher() *Dispatcher { return e.dispatcher }

// HandleCommand runs the bot command addressed by text. Only group rooms accept commands;
// CommandNone is returned when text is not for the bot.
func (e *Engine) HandleCommand(ctx context.Context, roomID string, kind models.RoomKind, actor Actor, text string) (Command, error) {
	if kind != models.RoomKindGroup || !e.dispatcher.DetectMention(text) {
		return CommandNone, nil
	}

	cmd := e.dispatcher.Route(text)
	var err error
	switch cmd {
	case CommandStart:
		err = e.Start(ctx, roomID, kind, actor)
	case CommandEnd:
		err = e.End(ctx, roomID, kind, actor)
	case CommandStatus:
		err = e.Status(ctx, roomID, kind)
	default:
		err = e.Help(ctx, roomID, kind)
	}
	return cmd, err
}

// Start opens a session for everyone currently in the room's call.
func (e *Engine) Start(ctx context.Context, roomID string, kind models.RoomKind, actor Actor) error {
	roomID = NormalizeRoomID(roomID)
	now := e.now()

	existing, ok, err := e.sessions.Get(ctx, roomID)
	if err != nil {
		return fmt.Errorf("study engine: load session %s: %w", roomID, err)
	}
	if ok {
		e.postBot(ctx, roomID, kind, alreadyActiveText(existing.ElapsedMinutes(now), e.mention()))
		return ErrSessionAlreadyActive
	}

	members := e.registry.Members(roomID)
	if len(members) == 0 {
		e.postBot(ctx, roomID, kind, noParticipantsText)
		return ErrNoCallParticipants
	}

	session := &Session{
		ID:            uuid.NewString(),
		RoomID:        roomID,
		RoomKind:      kind,
		StartTime:     now,
		Active:        NewUserSet(members...),
		Ever:          NewUserSet(members...),
		Recorded:      NewUserSet(),
		StartedBy:     actor.UserID,
		StartedByName: actor.Name,
	}
	if err := e.sessions.Set(ctx, roomID, session); err != nil {
		return fmt.Errorf("study engine: store session %s: %w", roomID, err)
	}
	e.active[roomID] = struct{}{}
	metrics.StudySessionsStarted.Inc()

	e.log.Info("study session started",
		zap.String("room_id", roomID),
		zap.String("session_id", session.ID),
		zap.String("started_by", actor.UserID),
		zap.Int("participants", len(members)),
	)

	e.postBot(ctx, roomID, kind, startedText(len(members), e.mention()))
	e.notifier.Publish(roomID, SessionStarted{
		ChatID:           roomID,
		SessionID:        session.ID,
		StartedBy:        actor.Name,
		StartedByID:      actor.UserID,
		ParticipantCount: len(members),
		Participants:     members,
		Timestamp:        now,
	})
	return nil
}

// OnJoin adds a user who joined the call to the room's active session.
func (e *Engine) OnJoin(ctx context.Context, roomID, userID string) {
	roomID = NormalizeRoomID(roomID)
	session, ok := e.load(ctx, roomID)
	if !ok {
		return
	}

	session.Active.Add(userID)
	session.Ever.Add(userID)
	e.save(ctx, session)

	e.log.Debug("participant joined study session", zap.String("room_id", roomID), zap.String("user_id", userID))
	e.notifier.Publish(roomID, ParticipantUpdate{
		ChatID:             roomID,
		UserID:             userID,
		Action:             ActionJoined,
		ActiveParticipants: session.Active.Len(),
		Timestamp:          e.now(),
	})
}

// OnLeave stops the clock for a user who left the call. Their elapsed time is recorded as
// left_early once it reaches a whole minute.
func (e *Engine) OnLeave(ctx context.Context, roomID, userID string) {
	roomID = NormalizeRoomID(roomID)
	session, ok := e.load(ctx, roomID)
	if !ok || !session.Active.Has(userID) {
		return
	}

	now := e.now()
	minutes := session.ElapsedMinutes(now)
	if minutes > 0 && !session.Recorded.Has(userID) {
		if err := e.persist(ctx, session, userID, now, models.ReasonLeftEarly); err != nil {
			e.log.Error("failed to persist study record", zap.String("room_id", roomID), zap.Error(err))
		}
	}
	session.Active.Remove(userID)
	e.save(ctx, session)

	e.log.Debug("participant left study session",
		zap.String("room_id", roomID),
		zap.String("user_id", userID),
		zap.Int("minutes", minutes),
	)
	e.notifier.Publish(roomID, ParticipantUpdate{
		ChatID:             roomID,
		UserID:             userID,
		Action:             ActionLeft,
		Duration:           &minutes,
		ActiveParticipants: session.Active.Len(),
		Timestamp:          now,
	})
}

// End closes the room's session on request, recording everyone not yet recorded as completed.
func (e *Engine) End(ctx context.Context, roomID string, kind models.RoomKind, actor Actor) error {
	roomID = NormalizeRoomID(roomID)
	session, ok, err := e.sessions.Get(ctx, roomID)
	if err != nil {
		return fmt.Errorf("study engine: load session %s: %w", roomID, err)
	}
	if !ok {
		e.postBot(ctx, roomID, kind, noActiveSessionText)
		return ErrNoActiveSession
	}

	e.finish(ctx, session, kind, actor.Name, EndReasonManual)
	return nil
}

// OnEmpty ends the session of a room whose call has emptied.
func (e *Engine) OnEmpty(ctx context.Context, roomID string) {
	roomID = NormalizeRoomID(roomID)
	session, ok := e.load(ctx, roomID)
	if !ok {
		return
	}
	kind := session.RoomKind
	if kind == "" {
		kind = models.RoomKindGroup
	}
	e.finish(ctx, session, kind, autoEndedBy, EndReasonAuto)
}

// Status posts the elapsed time and head counts of the room's session.
func (e *Engine) Status(ctx context.Context, roomID string, kind models.RoomKind) error {
	roomID = NormalizeRoomID(roomID)
	session, ok, err := e.sessions.Get(ctx, roomID)
	if err != nil {
		return fmt.Errorf("study engine: load session %s: %w", roomID, err)
	}
	if !ok {
		e.postBot(ctx, roomID, kind, noSessionStatusText(e.mention()))
		return ErrNoActiveSession
	}

	e.postBot(ctx, roomID, kind, statusText(session.ElapsedMinutes(e.now()), session.Active.Len(), e.registry.Count(roomID)))
	return nil
}

// Help posts the command listing.
func (e *Engine) Help(ctx context.Context, roomID string, kind models.RoomKind) error {
	e.postBot(ctx, NormalizeRoomID(roomID), kind, helpText(e.mention()))
	return nil
}

// ActiveRooms lists rooms with a session started by this engine.
func (e *Engine) ActiveRooms() []string {
	out := make([]string, 0, len(e.active))
	for id := range e.active {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// RefreshGauges publishes session and call occupancy gauges.
func (e *Engine) RefreshGauges() {
	metrics.ActiveStudySessions.Set(float64(len(e.active)))
	metrics.CallParticipants.Set(float64(e.registry.TotalParticipants()))
}

func (e *Engine) finish(ctx context.Context, session *Session, kind models.RoomKind, endedBy, reason string) {
	now := e.now()
	minutes := session.ElapsedMinutes(now)
	recordReason := models.ReasonCompleted
	if reason == EndReasonAuto {
		recordReason = models.ReasonAutoStopped
	}

	roster := session.Ever.Sorted()
	var errs error
	if minutes > 0 {
		for _, userID := range roster {
			if session.Recorded.Has(userID) {
				continue
			}
			errs = multierr.Append(errs, e.persist(ctx, session, userID, now, recordReason))
		}
	}
	if errs != nil {
		e.log.Error("failed to persist study records",
			zap.String("room_id", session.RoomID),
			zap.String("session_id", session.ID),
			zap.Int("failed", len(multierr.Errors(errs))),
			zap.Error(errs),
		)
	}

	if err := e.sessions.Delete(ctx, session.RoomID); err != nil {
		e.log.Error("failed to delete study session", zap.String("room_id", session.RoomID), zap.Error(err))
	}
	delete(e.active, session.RoomID)
	metrics.StudySessionsEnded.WithLabelValues(reason).Inc()

	e.log.Info("study session ended",
		zap.String("room_id", session.RoomID),
		zap.String("session_id", session.ID),
		zap.String("reason", reason),
		zap.Int("minutes", minutes),
		zap.Int("participants", len(roster)),
	)

	recorded := session.Recorded.Len()
	var text string
	if reason == EndReasonAuto {
		text = autoEndedText(minutes, recorded)
	} else {
		stayed := 0
		for _, userID := range e.registry.Members(session.RoomID) {
			if session.Ever.Has(userID) {
				stayed++
			}
		}
		text = endedText(minutes, recorded, stayed)
	}
	e.postBot(ctx, session.RoomID, kind, text)
	e.notifier.Publish(session.RoomID, SessionEnded{
		ChatID:           session.RoomID,
		SessionID:        session.ID,
		EndedBy:          endedBy,
		Reason:           reason,
		Duration:         minutes,
		ParticipantCount: len(roster),
		Participants:     roster,
		AutoStopped:      reason == EndReasonAuto,
		Timestamp:        now,
	})
}

// persist writes one record and marks the user recorded only when the write succeeds.
func (e *Engine) persist(ctx context.Context, session *Session, userID string, end time.Time, reason models.TerminationReason) error {
	record := &models.StudyRecord{
		SessionID:        session.ID,
		UserID:           userID,
		RoomID:           session.RoomID,
		RoomName:         RoomName(session.RoomID),
		DurationMinutes:  wholeMinutes(session.StartTime, end),
		ParticipantCount: session.Ever.Len(),
		StartTime:        session.StartTime,
		EndTime:          end,
		Reason:           reason,
	}

	wctx, cancel := e.writeContext(ctx)
	defer cancel()
	if err := e.records.Save(wctx, record); err != nil {
		metrics.StudyRecordWrites.WithLabelValues(string(reason), "failure").Inc()
		return fmt.Errorf("save study record for user %s: %w", userID, err)
	}
	session.Recorded.Add(userID)
	metrics.StudyRecordWrites.WithLabelValues(string(reason), "success").Inc()
	return nil
}

// postBot stores and broadcasts a bot message. A failed save is logged and the message is
// still delivered.
func (e *Engine) postBot(ctx context.Context, roomID string, kind models.RoomKind, text string) {
	msg := &models.Message{
		RoomID:       roomID,
		RoomKind:     kind,
		Text:         text,
		AuthorName:   e.cfg.BotName,
		AuthorAvatar: e.cfg.BotAvatar,
		IsBot:        true,
		BotType:      models.BotTypeStudy,
	}

	wctx, cancel := e.writeContext(ctx)
	defer cancel()
	if err := e.messages.Save(wctx, msg); err != nil {
		e.log.Warn("failed to persist bot message", zap.String("room_id", roomID), zap.Error(err))
		if msg.ID == "" {
			msg.ID = models.NewOrderedID()
		}
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = e.now()
		}
	}
	e.notifier.Publish(roomID, NewChatMessage(msg, e.cfg.BotUserID))
}

func (e *Engine) load(ctx context.Context, roomID string) (*Session, bool) {
	session, ok, err := e.sessions.Get(ctx, roomID)
	if err != nil {
		e.log.Error("failed to load study session", zap.String("room_id", roomID), zap.Error(err))
		return nil, false
	}
	return session, ok
}

func (e *Engine) save(ctx context.Context, session *Session) {
	if err := e.sessions.Set(ctx, session.RoomID, session); err != nil {
		e.log.Error("failed to store study session", zap.String("room_id", session.RoomID), zap.Error(err))
	}
}

// Writes outlive the triggering connection; only the configured timeout bounds them.
func (e *Engine) writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(context.WithoutCancel(ctx), e.cfg.PersistTimeout)
}

func (e *Engine) mention() string {
	return e.dispatcher.mentions[0]
}
