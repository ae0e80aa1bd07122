package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/studyhall/internal/database/testutil"
	"github.com/charlesng35/studyhall/internal/models"
)

var (
	alice = models.User{ID: "9a4a1c58-0000-4000-8000-000000000001", FullName: "Alice", Email: "alice@example.com", ProfilePic: "a.png", IsActive: true}
	bob   = models.User{ID: "9a4a1c58-0000-4000-8000-000000000002", FullName: "Bob", Email: "bob@example.com", IsActive: true}
)

func newStudyRecordService(t *testing.T) *StudyRecordService {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithUsers(alice, bob))
	svc, err := NewStudyRecordService(db)
	require.NoError(t, err)
	return svc
}

func record(session, user string, minutes int, end time.Time) *models.StudyRecord {
	return &models.StudyRecord{
		SessionID:       session,
		UserID:          user,
		RoomID:          "ABC123",
		RoomName:        "Group ABC123",
		DurationMinutes: minutes,
		StartTime:       end.Add(-time.Duration(minutes) * time.Minute),
		EndTime:         end,
		Reason:          models.ReasonCompleted,
	}
}

func TestStudyRecordServiceSave(t *testing.T) {
	svc := newStudyRecordService(t)
	ctx := context.Background()
	end := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	rec := record("s1", alice.ID, 25, end)
	rec.ParticipantCount = 0
	require.NoError(t, svc.Save(ctx, rec))
	require.NotEmpty(t, rec.ID)
	require.Equal(t, 1, rec.ParticipantCount)

	err := svc.Save(ctx, record("s1", alice.ID, 30, end))
	require.ErrorIs(t, err, ErrStudyRecordExists)
}

func TestStudyRecordServiceSaveValidation(t *testing.T) {
	svc := newStudyRecordService(t)
	ctx := context.Background()
	end := time.Now()

	zero := record("s1", alice.ID, 0, end)
	require.ErrorIs(t, svc.Save(ctx, zero), ErrInvalidStudyRecord)

	noUser := record("s1", "", 5, end)
	require.ErrorIs(t, svc.Save(ctx, noUser), ErrInvalidStudyRecord)

	badReason := record("s1", alice.ID, 5, end)
	badReason.Reason = "abandoned"
	require.ErrorIs(t, svc.Save(ctx, badReason), ErrInvalidStudyRecord)
}

func TestStudyRecordServiceLeaderboard(t *testing.T) {
	svc := newStudyRecordService(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	svc.timeNow = func() time.Time { return now }

	require.NoError(t, svc.Save(ctx, record("s1", alice.ID, 30, now.AddDate(0, 0, -30))))
	require.NoError(t, svc.Save(ctx, record("s2", alice.ID, 15, now.AddDate(0, 0, -1))))
	require.NoError(t, svc.Save(ctx, record("s2", bob.ID, 20, now.AddDate(0, 0, -1))))
	require.NoError(t, svc.Save(ctx, record("s3", "orphan-user", 90, now)))

	overall, err := svc.Leaderboard(ctx, LeaderboardQuery{Range: RangeOverall})
	require.NoError(t, err)
	require.Len(t, overall, 2)
	require.Equal(t, alice.ID, overall[0].UserID)
	require.Equal(t, 1, overall[0].Rank)
	require.Equal(t, "Alice", overall[0].UserName)
	require.Equal(t, "a.png", overall[0].UserImage)
	require.Equal(t, int64(45), overall[0].TotalMinutes)
	require.Equal(t, int64(2), overall[0].TotalSessions)
	require.Equal(t, 22.5, overall[0].AvgSessionMinutes)
	require.NotNil(t, overall[0].LastStudyDate)
	require.True(t, overall[0].LastStudyDate.Equal(now.AddDate(0, 0, -1)))

	weekly, err := svc.Leaderboard(ctx, LeaderboardQuery{Range: RangeWeekly})
	require.NoError(t, err)
	require.Len(t, weekly, 2)
	require.Equal(t, bob.ID, weekly[0].UserID)
	require.Equal(t, int64(20), weekly[0].TotalMinutes)
	require.Equal(t, int64(15), weekly[1].TotalMinutes)
	require.Nil(t, weekly[0].LastStudyDate)

	_, err = svc.Leaderboard(ctx, LeaderboardQuery{Range: "monthly"})
	require.ErrorIs(t, err, ErrInvalidRange)
}

func TestStudyRecordServiceUserStats(t *testing.T) {
	svc := newStudyRecordService(t)
	ctx := context.Background()
	end := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	empty, err := svc.UserStats(ctx, bob.ID)
	require.NoError(t, err)
	require.Zero(t, empty.TotalSessions)
	require.Nil(t, empty.LastStudyDate)
	require.Empty(t, empty.RecentSessions)

	require.NoError(t, svc.Save(ctx, record("s1", alice.ID, 10, end)))
	require.NoError(t, svc.Save(ctx, record("s2", alice.ID, 25, end.Add(time.Hour))))
	require.NoError(t, svc.Save(ctx, record("s3", alice.ID, 4, end.Add(2*time.Hour))))

	stats, err := svc.UserStats(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, int64(39), stats.TotalMinutes)
	require.Equal(t, int64(3), stats.TotalSessions)
	require.Equal(t, 13.0, stats.AvgSessionMinutes)
	require.Equal(t, 25, stats.LongestSession)
	require.Len(t, stats.RecentSessions, 3)
	require.Equal(t, "s3", stats.RecentSessions[0].SessionID)
	require.True(t, stats.LastStudyDate.Equal(end.Add(2*time.Hour)))
}
