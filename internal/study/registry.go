package study

import (
	"context"
	"sort"
	"strings"
)

// Hooks are invoked by the Registry after membership changes.
type Hooks struct {
	// OnJoin runs when a user is newly added to a call.
	OnJoin func(ctx context.Context, roomID, userID string)
	// OnLeave runs after a member is removed from a call.
	OnLeave func(ctx context.Context, roomID, userID string)
	// OnEmpty runs when the last member leaves, after OnLeave for that member.
	OnEmpty func(ctx context.Context, roomID string)
}

// Registry tracks which users are connected to which call. Room ids are canonicalised
// with NormalizeRoomID, so either alias addresses the same set.
//
// A Registry is not safe for concurrent use; it is owned by the realtime event loop.
type Registry struct {
	rooms map[string]map[string]struct{}
	hooks Hooks
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]map[string]struct{})}
}

// SetHooks replaces the membership hooks.
func (r *Registry) SetHooks(h Hooks) {
	r.hooks = h
}

// Join adds the user to the call and returns the number of members. Joining twice is a no-op
// and does not fire OnJoin again.
func (r *Registry) Join(ctx context.Context, callID, userID string) int {
	roomID := NormalizeRoomID(callID)
	userID = strings.TrimSpace(userID)
	if roomID == "" || userID == "" {
		return r.Count(roomID)
	}

	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[string]struct{})
		r.rooms[roomID] = members
	}
	if _, exists := members[userID]; exists {
		return len(members)
	}
	members[userID] = struct{}{}

	if r.hooks.OnJoin != nil {
		r.hooks.OnJoin(ctx, roomID, userID)
	}
	return len(members)
}

// Leave removes the user from the call and returns the remaining member count. Unknown
// rooms and non-members are ignored.
func (r *Registry) Leave(ctx context.Context, callID, userID string) int {
	roomID := NormalizeRoomID(callID)
	userID = strings.TrimSpace(userID)

	members, ok := r.rooms[roomID]
	if !ok {
		return 0
	}
	if _, exists := members[userID]; !exists {
		return len(members)
	}
	delete(members, userID)

	remaining := len(members)
	if remaining == 0 {
		delete(r.rooms, roomID)
	}
	if r.hooks.OnLeave != nil {
		r.hooks.OnLeave(ctx, roomID, userID)
	}
	if remaining == 0 && r.hooks.OnEmpty != nil {
		r.hooks.OnEmpty(ctx, roomID)
	}
	return remaining
}

// Members returns the call members in sorted order.
func (r *Registry) Members(callID string) []string {
	members := r.rooms[NormalizeRoomID(callID)]
	out := make([]string, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Count returns the number of call members, 0 for unknown rooms.
func (r *Registry) Count(callID string) int {
	return len(r.rooms[NormalizeRoomID(callID)])
}

// IsMember reports whether the user is in the call.
func (r *Registry) IsMember(callID, userID string) bool {
	_, ok := r.rooms[NormalizeRoomID(callID)][strings.TrimSpace(userID)]
	return ok
}

// Rooms lists every call with at least one member.
func (r *Registry) Rooms() []string {
	out := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// RoomsFor lists the calls the user is a member of.
func (r *Registry) RoomsFor(userID string) []string {
	userID = strings.TrimSpace(userID)
	var out []string
	for id, members := range r.rooms {
		if _, ok := members[userID]; ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// TotalParticipants counts memberships across all calls.
func (r *Registry) TotalParticipants() int {
	total := 0
	for _, members := range r.rooms {
		total += len(members)
	}
	return total
}
