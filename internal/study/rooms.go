package study

import (
	"sort"
	"strings"

	"github.com/google/uuid"
)

// GroupPrefix is the legacy prefix some clients put in front of group room ids.
const GroupPrefix = "group-"

// NormalizeRoomID returns the canonical id for a chat or call room. "group-ABC123" and
// "ABC123" name the same room.
func NormalizeRoomID(id string) string {
	id = strings.TrimSpace(id)
	if trimmed := strings.TrimPrefix(id, GroupPrefix); trimmed != "" {
		return trimmed
	}
	return id
}

// NormalizeDirectChatID orders the two participant ids of a direct chat so both members
// address the same room. Ids made of two UUIDs and plain "a-b" pairs are recognised; any
// other value is returned unchanged.
func NormalizeDirectChatID(id string) string {
	id = strings.TrimSpace(id)
	if strings.HasPrefix(id, GroupPrefix) {
		return id
	}

	const uuidLen = 36
	if len(id) == 2*uuidLen+1 && id[uuidLen] == '-' {
		left, right := id[:uuidLen], id[uuidLen+1:]
		if uuid.Validate(left) == nil && uuid.Validate(right) == nil {
			return joinSorted(left, right)
		}
	}

	parts := strings.Split(id, "-")
	if len(parts) == 2 && parts[0] != "" && parts[1] != "" {
		return joinSorted(parts[0], parts[1])
	}
	return id
}

// RoomName is the display name stored with study records.
func RoomName(roomID string) string {
	return "Group " + NormalizeRoomID(roomID)
}

func joinSorted(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair[0] + "-" + pair[1]
}
