package study

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryJoinIsIdempotent(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	joins := 0
	r.SetHooks(Hooks{OnJoin: func(context.Context, string, string) { joins++ }})

	require.Equal(t, 1, r.Join(ctx, "ABC", "u1"))
	require.Equal(t, 1, r.Join(ctx, "ABC", "u1"))
	require.Equal(t, 2, r.Join(ctx, "group-ABC", "u2"))
	require.Equal(t, 2, joins)

	require.Equal(t, []string{"u1", "u2"}, r.Members("group-ABC"))
	require.Equal(t, 2, r.Count("ABC"))
	require.True(t, r.IsMember("group-ABC", "u1"))
	require.False(t, r.IsMember("ABC", "u3"))
}

func TestRegistryLeaveUnknownIsNoop(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	fired := false
	r.SetHooks(Hooks{
		OnLeave: func(context.Context, string, string) { fired = true },
		OnEmpty: func(context.Context, string) { fired = true },
	})

	require.Equal(t, 0, r.Leave(ctx, "missing", "u1"))
	r.Join(ctx, "ABC", "u1")
	require.Equal(t, 1, r.Leave(ctx, "ABC", "stranger"))
	require.False(t, fired)
	require.Equal(t, 0, r.Count("nowhere"))
	require.Empty(t, r.Members("nowhere"))
}

func TestRegistryEmptyRoomFiresLeaveThenEmpty(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	var order []string
	r.SetHooks(Hooks{
		OnLeave: func(_ context.Context, room, user string) { order = append(order, "leave:"+room+":"+user) },
		OnEmpty: func(_ context.Context, room string) { order = append(order, "empty:"+room) },
	})

	r.Join(ctx, "ABC", "u1")
	r.Join(ctx, "ABC", "u2")
	require.Equal(t, 1, r.Leave(ctx, "ABC", "u1"))
	require.Equal(t, 0, r.Leave(ctx, "group-ABC", "u2"))

	require.Equal(t, []string{"leave:ABC:u1", "leave:ABC:u2", "empty:ABC"}, order)
	require.Empty(t, r.Rooms())
}

func TestRegistryAllowsMembershipInManyRooms(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	r.Join(ctx, "A", "u1")
	r.Join(ctx, "B", "u1")
	r.Join(ctx, "B", "u2")

	require.Equal(t, []string{"A", "B"}, r.RoomsFor("u1"))
	require.Equal(t, []string{"B"}, r.RoomsFor("u2"))
	require.Equal(t, []string{"A", "B"}, r.Rooms())
	require.Equal(t, 3, r.TotalParticipants())
}

func TestRegistryIgnoresBlankIdentifiers(t *testing.T) {
	r := NewRegistry()
	require.Equal(t, 0, r.Join(context.Background(), "ABC", " "))
	require.Empty(t, r.Rooms())
}

func TestRegistryCountMatchesModel(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	rooms := []string{"A", "group-A", "B"}
	users := []string{"u1", "u2", "u3", "u4"}
	model := map[string]map[string]bool{}

	for i := 0; i < 2000; i++ {
		room := rooms[rng.Intn(len(rooms))]
		canonical := NormalizeRoomID(room)
		user := users[rng.Intn(len(users))]
		if model[canonical] == nil {
			model[canonical] = map[string]bool{}
		}

		if rng.Intn(2) == 0 {
			r.Join(ctx, room, user)
			model[canonical][user] = true
		} else {
			r.Leave(ctx, room, user)
			delete(model[canonical], user)
		}

		for _, id := range []string{"A", "B"} {
			require.Equal(t, len(model[id]), r.Count(id))
			_, present := r.rooms[id]
			require.Equal(t, len(model[id]) > 0, present, "room entry must exist exactly while occupied")
		}
	}
}
