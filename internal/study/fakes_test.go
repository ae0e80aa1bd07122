package study

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charlesng35/studyhall/internal/models"
)

type published struct {
	room  string
	event Event
}

type recordingNotifier struct {
	events []published
}

func (n *recordingNotifier) Publish(roomID string, ev Event) {
	n.events = append(n.events, published{room: roomID, event: ev})
}

func (n *recordingNotifier) names() []string {
	out := make([]string, 0, len(n.events))
	for _, p := range n.events {
		out = append(out, p.event.EventName())
	}
	return out
}

func (n *recordingNotifier) botTexts() []string {
	var out []string
	for _, p := range n.events {
		if msg, ok := p.event.(ChatMessage); ok && msg.IsBot {
			out = append(out, msg.Text)
		}
	}
	return out
}

func (n *recordingNotifier) reset() { n.events = nil }

type fakeRecords struct {
	mu      sync.Mutex
	saved   []models.StudyRecord
	failFor map[string]error
}

func (f *fakeRecords) Save(_ context.Context, record *models.StudyRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[record.UserID]; err != nil {
		return err
	}
	f.saved = append(f.saved, *record)
	return nil
}

func (f *fakeRecords) byUser() map[string][]models.StudyRecord {
	out := map[string][]models.StudyRecord{}
	for _, r := range f.saved {
		out[r.UserID] = append(out[r.UserID], r)
	}
	return out
}

type fakeMessages struct {
	saved []models.Message
	err   error
	seq   int
}

func (f *fakeMessages) Save(_ context.Context, msg *models.Message) error {
	if f.err != nil {
		return f.err
	}
	f.seq++
	msg.ID = models.NewOrderedID()
	msg.CreatedAt = time.Date(2025, 1, 1, 0, 0, f.seq, 0, time.UTC)
	f.saved = append(f.saved, *msg)
	return nil
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

var errSaveFailed = errors.New("database unavailable")
