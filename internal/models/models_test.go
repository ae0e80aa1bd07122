package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBaseModelBeforeCreateGeneratesID(t *testing.T) {
	var base BaseModel
	require.NoError(t, base.BeforeCreate(nil))
	require.NotEmpty(t, base.ID)
}

func TestBaseModelBeforeCreateKeepsExistingID(t *testing.T) {
	base := BaseModel{ID: "fixed"}
	require.NoError(t, base.BeforeCreate(nil))
	require.Equal(t, "fixed", base.ID)
}

func TestStudyRecordUsesBaseBeforeCreate(t *testing.T) {
	record := &StudyRecord{}
	require.NoError(t, record.BeforeCreate(nil))
	require.NotEmpty(t, record.ID)
}

func TestMessageIDsAreTimeOrdered(t *testing.T) {
	ids := make([]string, 0, 50)
	for i := 0; i < 50; i++ {
		msg := &Message{}
		require.NoError(t, msg.BeforeCreate(nil))
		ids = append(ids, msg.ID)
	}
	for i := 1; i < len(ids); i++ {
		require.Less(t, ids[i-1], ids[i], "expected ids to increase monotonically")
	}
}

func TestUserBeforeCreate(t *testing.T) {
	u := &User{}
	require.NoError(t, u.BeforeCreate(nil))
	require.NotEmpty(t, u.ID)
}

func TestRoomKindValid(t *testing.T) {
	require.True(t, RoomKindGroup.Valid())
	require.True(t, RoomKindDirect.Valid())
	require.True(t, RoomKindAI.Valid())
	require.False(t, RoomKind("voice").Valid())
}
