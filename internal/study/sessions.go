package study

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	json "github.com/goccy/go-json"

	"github.com/charlesng35/studyhall/internal/cache"
	"github.com/charlesng35/studyhall/internal/models"
)

// UserSet is a set of user ids. It encodes as a sorted JSON array.
type UserSet map[string]struct{}

// NewUserSet builds a set from ids.
func NewUserSet(ids ...string) UserSet {
	s := make(UserSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Add inserts id.
func (s UserSet) Add(id string) { s[id] = struct{}{} }

// Remove deletes id.
func (s UserSet) Remove(id string) { delete(s, id) }

// Has reports whether id is a member.
func (s UserSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Len returns the number of members.
func (s UserSet) Len() int { return len(s) }

// Sorted returns the members in ascending order.
func (s UserSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// MarshalJSON encodes the set as a sorted array.
func (s UserSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes a JSON array into the set.
func (s *UserSet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewUserSet(ids...)
	return nil
}

// Session is the active study session of a room.
type Session struct {
	ID            string          `json:"id"`
	RoomID        string          `json:"chatId"`
	RoomKind      models.RoomKind `json:"chatType"`
	StartTime     time.Time       `json:"startTime"`
	Active        UserSet         `json:"activeParticipants"`
	Ever          UserSet         `json:"everParticipated"`
	Recorded      UserSet         `json:"recorded"`
	StartedBy     string          `json:"startedBy"`
	StartedByName string          `json:"startedByName"`
}

// ElapsedMinutes is the whole number of minutes since the session started.
func (s *Session) ElapsedMinutes(now time.Time) int {
	return wholeMinutes(s.StartTime, now)
}

func wholeMinutes(start, end time.Time) int {
	elapsed := end.Sub(start)
	if elapsed <= 0 {
		return 0
	}
	return int(elapsed / time.Minute)
}

// SessionStore holds at most one session per room. Implementations carry no business logic.
type SessionStore interface {
	Get(ctx context.Context, roomID string) (*Session, bool, error)
	Set(ctx context.Context, roomID string, session *Session) error
	Delete(ctx context.Context, roomID string) error
}

// MemoryStore keeps sessions in a map. Like the Registry it is owned by the event loop.
type MemoryStore struct {
	sessions map[string]*Session
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

// Get returns the room's session, if any.
func (m *MemoryStore) Get(_ context.Context, roomID string) (*Session, bool, error) {
	s, ok := m.sessions[roomID]
	return s, ok, nil
}

// Set stores the session under the room id, replacing any previous one.
func (m *MemoryStore) Set(_ context.Context, roomID string, session *Session) error {
	if session == nil {
		return errors.New("study: nil session")
	}
	m.sessions[roomID] = session
	return nil
}

// Delete forgets the room's session. Unknown rooms are ignored.
func (m *MemoryStore) Delete(_ context.Context, roomID string) error {
	delete(m.sessions, roomID)
	return nil
}

// List returns every stored session ordered by room id.
func (m *MemoryStore) List(_ context.Context) ([]*Session, error) {
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoomID < out[j].RoomID })
	return out, nil
}

const sessionKeyPrefix = "study:session:"

// CacheStore keeps sessions as JSON in a shared cache so they outlive a single process.
// Writes are last-writer-wins; running several gateways against one store is not supported.
type CacheStore struct {
	store cache.Store
	ttl   time.Duration
}

// NewCacheStore wraps a cache. A zero ttl keeps sessions until they end.
func NewCacheStore(store cache.Store, ttl time.Duration) (*CacheStore, error) {
	if store == nil {
		return nil, errors.New("study: cache store is required")
	}
	return &CacheStore{store: store, ttl: ttl}, nil
}

// Get loads and decodes the room's session. A missing key reports ok=false without error.
func (c *CacheStore) Get(ctx context.Context, roomID string) (*Session, bool, error) {
	raw, ok, err := c.store.Get(ctx, sessionKeyPrefix+roomID)
	if err != nil || !ok {
		return nil, false, err
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, false, fmt.Errorf("study: decode session %s: %w", roomID, err)
	}
	for _, set := range []*UserSet{&s.Active, &s.Ever, &s.Recorded} {
		if *set == nil {
			*set = NewUserSet()
		}
	}
	return &s, true, nil
}

// Set encodes the session as JSON and stores it with the configured ttl.
func (c *CacheStore) Set(ctx context.Context, roomID string, session *Session) error {
	if session == nil {
		return errors.New("study: nil session")
	}
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("study: encode session %s: %w", roomID, err)
	}
	return c.store.Set(ctx, sessionKeyPrefix+roomID, raw, c.ttl)
}

// Delete removes the room's session key.
func (c *CacheStore) Delete(ctx context.Context, roomID string) error {
	return c.store.Delete(ctx, sessionKeyPrefix+roomID)
}
