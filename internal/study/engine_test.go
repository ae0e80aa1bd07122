package study

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/charlesng35/studyhall/internal/models"
)

type harness struct {
	engine   *Engine
	registry *Registry
	store    *MemoryStore
	records  *fakeRecords
	messages *fakeMessages
	notifier *recordingNotifier
	clock    *fakeClock
	logs     *observer.ObservedLogs
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)
	h := &harness{
		registry: NewRegistry(),
		store:    NewMemoryStore(),
		records:  &fakeRecords{failFor: map[string]error{}},
		messages: &fakeMessages{},
		notifier: &recordingNotifier{},
		clock:    &fakeClock{now: time.Date(2025, 2, 3, 18, 0, 0, 0, time.UTC)},
		logs:     logs,
	}

	engine, err := NewEngine(h.registry, h.store, h.records, h.messages, h.notifier, Config{
		BotAvatar: "/bot.png",
		Clock:     h.clock.Now,
		Logger:    zap.New(core),
	})
	require.NoError(t, err)
	h.engine = engine
	return h
}

var (
	alice = Actor{UserID: "alice", Name: "Alice"}
	ctx   = context.Background()
)

func (h *harness) session(t *testing.T, room string) *Session {
	t.Helper()
	s, ok, err := h.store.Get(ctx, room)
	require.NoError(t, err)
	require.True(t, ok, "expected session for %s", room)
	return s
}

func (h *harness) hasSession(room string) bool {
	_, ok, _ := h.store.Get(ctx, room)
	return ok
}

func TestNewEngineValidatesDependencies(t *testing.T) {
	_, err := NewEngine(nil, NewMemoryStore(), &fakeRecords{}, &fakeMessages{}, &recordingNotifier{}, Config{})
	require.Error(t, err)
	_, err = NewEngine(NewRegistry(), NewMemoryStore(), &fakeRecords{}, &fakeMessages{}, nil, Config{})
	require.Error(t, err)
}

func TestStartRequiresCallParticipants(t *testing.T) {
	h := newHarness(t)

	err := h.engine.Start(ctx, "ABC", models.RoomKindGroup, alice)
	require.ErrorIs(t, err, ErrNoCallParticipants)
	require.False(t, h.hasSession("ABC"))

	require.Equal(t, []string{EventNewMessage}, h.notifier.names())
	require.Equal(t, []string{noParticipantsText}, h.notifier.botTexts())
	require.Len(t, h.messages.saved, 1)
	require.True(t, h.messages.saved[0].IsBot)
	require.Equal(t, models.BotTypeStudy, h.messages.saved[0].BotType)
	require.Nil(t, h.messages.saved[0].AuthorID)
}

func TestStartCreatesSessionForCallMembers(t *testing.T) {
	h := newHarness(t)
	h.registry.Join(ctx, "ABC", "alice")
	h.registry.Join(ctx, "ABC", "bob")

	require.NoError(t, h.engine.Start(ctx, "group-ABC", models.RoomKindGroup, alice))

	s := h.session(t, "ABC")
	require.Equal(t, []string{"alice", "bob"}, s.Active.Sorted())
	require.Equal(t, []string{"alice", "bob"}, s.Ever.Sorted())
	require.Zero(t, s.Recorded.Len())
	require.Equal(t, "alice", s.StartedBy)
	require.True(t, s.StartTime.Equal(h.clock.now))

	require.Equal(t, []string{EventNewMessage, EventSessionStarted}, h.notifier.names())
	started := h.notifier.events[1].event.(SessionStarted)
	require.Equal(t, "ABC", started.ChatID)
	require.Equal(t, "Alice", started.StartedBy)
	require.Equal(t, 2, started.ParticipantCount)
	require.Equal(t, []string{"alice", "bob"}, started.Participants)

	msg := h.notifier.events[0].event.(ChatMessage)
	require.Equal(t, DefaultBotUserID, msg.User.ID)
	require.Equal(t, DefaultBotName, msg.User.Name)
	require.Equal(t, "/bot.png", msg.User.Image)
	require.Equal(t, "ABC", msg.ChatID)
	for _, p := range h.notifier.events {
		require.Equal(t, "ABC", p.room)
	}
}

func TestStartRejectsSecondSession(t *testing.T) {
	h := newHarness(t)
	h.registry.Join(ctx, "ABC", "alice")
	require.NoError(t, h.engine.Start(ctx, "ABC", models.RoomKindGroup, alice))
	first := h.session(t, "ABC").ID
	h.notifier.reset()

	err := h.engine.Start(ctx, "ABC", models.RoomKindGroup, alice)
	require.ErrorIs(t, err, ErrSessionAlreadyActive)
	require.Equal(t, first, h.session(t, "ABC").ID)
	require.Equal(t, []string{EventNewMessage}, h.notifier.names())
}

func TestJoinDuringSessionAddsParticipant(t *testing.T) {
	h := newHarness(t)
	h.registry.Join(ctx, "ABC", "alice")
	require.NoError(t, h.engine.Start(ctx, "ABC", models.RoomKindGroup, alice))
	h.notifier.reset()

	h.registry.Join(ctx, "group-ABC", "bob")

	s := h.session(t, "ABC")
	require.True(t, s.Active.Has("bob"))
	require.True(t, s.Ever.Has("bob"))

	require.Equal(t, []string{EventParticipantUpdate}, h.notifier.names())
	update := h.notifier.events[0].event.(ParticipantUpdate)
	require.Equal(t, ActionJoined, update.Action)
	require.Equal(t, "bob", update.UserID)
	require.Equal(t, 2, update.ActiveParticipants)
	require.Nil(t, update.Duration)
}

func TestLeaveAfterNinetySecondsRecordsOneMinute(t *testing.T) {
	h := newHarness(t)
	h.registry.Join(ctx, "ABC", "alice")
	require.NoError(t, h.engine.Start(ctx, "ABC", models.RoomKindGroup, alice))
	h.registry.Join(ctx, "ABC", "bob")
	h.notifier.reset()

	h.clock.Advance(90 * time.Second)
	h.registry.Leave(ctx, "ABC", "alice")

	require.Len(t, h.records.saved, 1)
	rec := h.records.saved[0]
	require.Equal(t, "alice", rec.UserID)
	require.Equal(t, models.ReasonLeftEarly, rec.Reason)
	require.Equal(t, 1, rec.DurationMinutes)
	require.Equal(t, "Group ABC", rec.RoomName)
	require.Equal(t, 2, rec.ParticipantCount)

	s := h.session(t, "ABC")
	require.False(t, s.Active.Has("alice"))
	require.True(t, s.Ever.Has("alice"))
	require.True(t, s.Recorded.Has("alice"))

	update := h.notifier.events[0].event.(ParticipantUpdate)
	require.Equal(t, ActionLeft, update.Action)
	require.NotNil(t, update.Duration)
	require.Equal(t, 1, *update.Duration)
	require.Equal(t, 1, update.ActiveParticipants)
}

func TestLeaveUnderAMinuteIsNotPersisted(t *testing.T) {
	h := newHarness(t)
	h.registry.Join(ctx, "ABC", "alice")
	h.registry.Join(ctx, "ABC", "bob")
	require.NoError(t, h.engine.Start(ctx, "ABC", models.RoomKindGroup, alice))

	h.clock.Advance(59 * time.Second)
	h.registry.Leave(ctx, "ABC", "alice")

	require.Empty(t, h.records.saved)
	s := h.session(t, "ABC")
	require.False(t, s.Recorded.Has("alice"))
	require.False(t, s.Active.Has("alice"))
}

func TestLeaveWithoutSessionPersistsNothing(t *testing.T) {
	h := newHarness(t)
	h.registry.Join(ctx, "ABC", "alice")
	h.registry.Join(ctx, "ABC", "bob")
	h.clock.Advance(time.Hour)

	h.registry.Leave(ctx, "ABC", "alice")
	h.registry.Leave(ctx, "ABC", "bob")

	require.Empty(t, h.records.saved)
	require.Empty(t, h.notifier.events)
	require.Empty(t, h.engine.ActiveRooms())
}

func TestLastLeaveAutoEndsSessionOnce(t *testing.T) {
	h := newHarness(t)
	h.registry.Join(ctx, "ABC", "alice")
	h.registry.Join(ctx, "ABC", "bob")
	require.NoError(t, h.engine.Start(ctx, "ABC", models.RoomKindGroup, alice))

	h.clock.Advance(10 * time.Minute)
	h.registry.Leave(ctx, "ABC", "bob")
	h.notifier.reset()

	h.clock.Advance(15 * time.Minute)
	h.registry.Leave(ctx, "ABC", "alice")

	require.False(t, h.hasSession("ABC"))
	require.Empty(t, h.engine.ActiveRooms())

	byUser := h.records.byUser()
	require.Len(t, byUser["bob"], 1)
	require.Equal(t, models.ReasonLeftEarly, byUser["bob"][0].Reason)
	require.Equal(t, 10, byUser["bob"][0].DurationMinutes)
	require.Len(t, byUser["alice"], 1)
	require.Equal(t, models.ReasonLeftEarly, byUser["alice"][0].Reason)
	require.Equal(t, 25, byUser["alice"][0].DurationMinutes)

	require.Equal(t, []string{EventParticipantUpdate, EventNewMessage, EventSessionEnded}, h.notifier.names())
	left := h.notifier.events[0].event.(ParticipantUpdate)
	require.Equal(t, "alice", left.UserID)
	require.Equal(t, ActionLeft, left.Action)
	require.Zero(t, left.ActiveParticipants)
	ended := h.notifier.events[2].event.(SessionEnded)
	require.Equal(t, EndReasonAuto, ended.Reason)
	require.True(t, ended.AutoStopped)
	require.Equal(t, 25, ended.Duration)
	require.Equal(t, []string{"alice", "bob"}, ended.Participants)
	require.Equal(t, autoEndedBy, ended.EndedBy)

	h.notifier.reset()
	h.registry.Join(ctx, "ABC", "alice")
	h.registry.Leave(ctx, "ABC", "alice")
	require.Empty(t, h.notifier.events)
	require.Len(t, h.records.saved, 2)
}

func TestAutoEndUnderAMinuteSaysNothingWasRecorded(t *testing.T) {
	h := newHarness(t)
	h.registry.Join(ctx, "ABC", "alice")
	h.registry.Join(ctx, "ABC", "bob")
	require.NoError(t, h.engine.Start(ctx, "ABC", models.RoomKindGroup, alice))
	h.notifier.reset()

	h.clock.Advance(40 * time.Second)
	h.registry.Leave(ctx, "ABC", "bob")
	h.registry.Leave(ctx, "ABC", "alice")

	require.Empty(t, h.records.saved)
	require.False(t, h.hasSession("ABC"))
	texts := h.notifier.botTexts()
	require.Len(t, texts, 1)
	require.Contains(t, texts[0], "No study time was recorded")
	require.NotContains(t, texts[0], "recorded for")
}

func TestEndSummaryCountsSavedRecords(t *testing.T) {
	h := newHarness(t)
	h.registry.Join(ctx, "ABC", "alice")
	require.NoError(t, h.engine.Start(ctx, "ABC", models.RoomKindGroup, alice))

	h.clock.Advance(30 * time.Second)
	h.registry.Join(ctx, "ABC", "bob")
	h.registry.Leave(ctx, "ABC", "bob")
	h.clock.Advance(2 * time.Minute)
	h.records.failFor["alice"] = errSaveFailed
	h.notifier.reset()

	require.NoError(t, h.engine.End(ctx, "ABC", models.RoomKindGroup, alice))

	require.Len(t, h.records.saved, 1)
	require.Equal(t, "bob", h.records.saved[0].UserID)
	texts := h.notifier.botTexts()
	require.Len(t, texts, 1)
	require.Contains(t, texts[0], "Study time recorded for 1 participant.")
}

func TestManualEndRecordsEveryParticipantOnce(t *testing.T) {
	h := newHarness(t)
	h.registry.Join(ctx, "ABC", "alice")
	require.NoError(t, h.engine.Start(ctx, "ABC", models.RoomKindGroup, alice))

	h.clock.Advance(2 * time.Minute)
	h.registry.Join(ctx, "ABC", "bob")
	h.registry.Join(ctx, "ABC", "carol")
	h.clock.Advance(3 * time.Minute)
	h.registry.Leave(ctx, "ABC", "carol")
	h.registry.Join(ctx, "ABC", "carol")
	h.clock.Advance(time.Minute)
	h.registry.Leave(ctx, "ABC", "carol")
	h.notifier.reset()

	h.clock.Advance(4 * time.Minute)
	require.NoError(t, h.engine.End(ctx, "ABC", models.RoomKindGroup, alice))

	byUser := h.records.byUser()
	require.Len(t, byUser, 3)
	for user, recs := range byUser {
		require.Len(t, recs, 1, "user %s recorded more than once", user)
		require.Greater(t, recs[0].DurationMinutes, 0)
		require.Equal(t, recs[0].SessionID, h.records.saved[0].SessionID)
	}
	require.Equal(t, models.ReasonLeftEarly, byUser["carol"][0].Reason)
	require.Equal(t, 5, byUser["carol"][0].DurationMinutes)
	require.Equal(t, models.ReasonCompleted, byUser["alice"][0].Reason)
	require.Equal(t, 10, byUser["alice"][0].DurationMinutes)
	require.Equal(t, models.ReasonCompleted, byUser["bob"][0].Reason)

	require.False(t, h.hasSession("ABC"))
	require.Equal(t, []string{EventNewMessage, EventSessionEnded}, h.notifier.names())
	ended := h.notifier.events[1].event.(SessionEnded)
	require.Equal(t, EndReasonManual, ended.Reason)
	require.False(t, ended.AutoStopped)
	require.Equal(t, "Alice", ended.EndedBy)
	require.Equal(t, 3, ended.ParticipantCount)
	require.Contains(t, h.notifier.botTexts()[0], "Participants who stayed for the full session: 2")
}

func TestEndWithoutSessionPostsBotMessage(t *testing.T) {
	h := newHarness(t)

	err := h.engine.End(ctx, "ABC", models.RoomKindGroup, alice)
	require.ErrorIs(t, err, ErrNoActiveSession)
	require.Equal(t, []string{noActiveSessionText}, h.notifier.botTexts())
}

func TestShortSessionEndPersistsNothing(t *testing.T) {
	h := newHarness(t)
	h.registry.Join(ctx, "ABC", "alice")
	require.NoError(t, h.engine.Start(ctx, "ABC", models.RoomKindGroup, alice))

	h.clock.Advance(30 * time.Second)
	require.NoError(t, h.engine.End(ctx, "ABC", models.RoomKindGroup, alice))

	require.Empty(t, h.records.saved)
	require.False(t, h.hasSession("ABC"))
}

func TestPersistenceFailureDoesNotBlockOthers(t *testing.T) {
	h := newHarness(t)
	h.registry.Join(ctx, "ABC", "alice")
	h.registry.Join(ctx, "ABC", "bob")
	require.NoError(t, h.engine.Start(ctx, "ABC", models.RoomKindGroup, alice))
	h.records.failFor["alice"] = errSaveFailed

	h.clock.Advance(5 * time.Minute)
	h.registry.Leave(ctx, "ABC", "alice")
	require.False(t, h.session(t, "ABC").Recorded.Has("alice"))

	delete(h.records.failFor, "alice")
	h.records.failFor["bob"] = errSaveFailed
	require.NoError(t, h.engine.End(ctx, "ABC", models.RoomKindGroup, alice))

	byUser := h.records.byUser()
	require.Len(t, byUser["alice"], 1)
	require.Equal(t, models.ReasonCompleted, byUser["alice"][0].Reason)
	require.Empty(t, byUser["bob"])

	require.Equal(t, 1, h.logs.FilterMessage("failed to persist study record").Len())
	require.Equal(t, 1, h.logs.FilterMessage("failed to persist study records").Len())
	for _, text := range h.notifier.botTexts() {
		require.NotContains(t, text, errSaveFailed.Error())
	}
}

func TestBotMessageIsBroadcastWhenSaveFails(t *testing.T) {
	h := newHarness(t)
	h.messages.err = errSaveFailed

	require.NoError(t, h.engine.Help(ctx, "group-ABC", models.RoomKindGroup))

	require.Equal(t, []string{EventNewMessage}, h.notifier.names())
	msg := h.notifier.events[0].event.(ChatMessage)
	require.NotEmpty(t, msg.ID)
	require.False(t, msg.CreatedAt.IsZero())
	require.Equal(t, "ABC", msg.ChatID)
	require.Equal(t, 1, h.logs.FilterMessage("failed to persist bot message").Len())
}

func TestStatusReportsCounts(t *testing.T) {
	h := newHarness(t)

	require.ErrorIs(t, h.engine.Status(ctx, "ABC", models.RoomKindGroup), ErrNoActiveSession)
	require.Contains(t, h.notifier.botTexts()[0], "@bot start study")
	h.notifier.reset()

	h.registry.Join(ctx, "ABC", "alice")
	h.registry.Join(ctx, "ABC", "bob")
	require.NoError(t, h.engine.Start(ctx, "ABC", models.RoomKindGroup, alice))
	h.clock.Advance(7*time.Minute + 59*time.Second)
	h.registry.Join(ctx, "ABC", "carol")
	h.notifier.reset()

	require.NoError(t, h.engine.Status(ctx, "ABC", models.RoomKindGroup))
	text := h.notifier.botTexts()[0]
	require.Contains(t, text, "Duration: 7 minutes")
	require.Contains(t, text, "Active participants: 3")
	require.Contains(t, text, "Currently in call: 3")
}

func TestHandleCommandRouting(t *testing.T) {
	h := newHarness(t)
	h.registry.Join(ctx, "ABC", "alice")

	cmd, err := h.engine.HandleCommand(ctx, "group-ABC", models.RoomKindGroup, alice, "please @bot start study now")
	require.NoError(t, err)
	require.Equal(t, CommandStart, cmd)
	require.True(t, h.hasSession("ABC"))

	cmd, err = h.engine.HandleCommand(ctx, "ABC", models.RoomKindGroup, alice, "start study without a mention")
	require.NoError(t, err)
	require.Equal(t, CommandNone, cmd)

	cmd, err = h.engine.HandleCommand(ctx, "alice-bob", models.RoomKindDirect, alice, "@bot end study")
	require.NoError(t, err)
	require.Equal(t, CommandNone, cmd)
	require.True(t, h.hasSession("ABC"))

	cmd, err = h.engine.HandleCommand(ctx, "ABC", models.RoomKindGroup, alice, "@bot")
	require.NoError(t, err)
	require.Equal(t, CommandHelp, cmd)

	h.clock.Advance(3 * time.Minute)
	cmd, err = h.engine.HandleCommand(ctx, "ABC", models.RoomKindGroup, alice, "@bot STOP STUDY please")
	require.NoError(t, err)
	require.Equal(t, CommandEnd, cmd)
	require.False(t, h.hasSession("ABC"))
	require.Len(t, h.records.saved, 1)
}

func TestRecordedUsersAreSubsetOfEverParticipated(t *testing.T) {
	h := newHarness(t)
	for _, u := range []string{"u1", "u2", "u3"} {
		h.registry.Join(ctx, "ROOM", u)
	}
	require.NoError(t, h.engine.Start(ctx, "ROOM", models.RoomKindGroup, Actor{UserID: "u1"}))

	steps := []struct {
		join  bool
		user  string
		after time.Duration
	}{
		{false, "u2", 2 * time.Minute},
		{true, "u4", 30 * time.Second},
		{true, "u2", time.Minute},
		{false, "u2", time.Minute},
		{false, "u4", 0},
		{true, "u5", 3 * time.Minute},
	}
	for _, step := range steps {
		h.clock.Advance(step.after)
		if step.join {
			h.registry.Join(ctx, "ROOM", step.user)
		} else {
			h.registry.Leave(ctx, "ROOM", step.user)
		}
		s := h.session(t, "ROOM")
		for id := range s.Active {
			require.True(t, s.Ever.Has(id))
		}
		for id := range s.Recorded {
			require.True(t, s.Ever.Has(id))
		}
	}

	ever := h.session(t, "ROOM").Ever.Sorted()
	require.NoError(t, h.engine.End(ctx, "ROOM", models.RoomKindGroup, Actor{UserID: "u1"}))

	var recorded []string
	for user, recs := range h.records.byUser() {
		require.Len(t, recs, 1)
		recorded = append(recorded, user)
	}
	require.ElementsMatch(t, ever, recorded)
}

func TestRefreshGauges(t *testing.T) {
	h := newHarness(t)
	h.registry.Join(ctx, "A", "u1")
	h.registry.Join(ctx, "B", "u2")
	require.NoError(t, h.engine.Start(ctx, "A", models.RoomKindGroup, alice))

	require.Equal(t, []string{"A"}, h.engine.ActiveRooms())
	require.NotPanics(t, h.engine.RefreshGauges)
}
