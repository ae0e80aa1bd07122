package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/studyhall/internal/models"
	apperrors "github.com/charlesng35/studyhall/pkg/errors"
)

// LeaderboardRange selects the window aggregated by the leaderboard.
type LeaderboardRange string

const (
	RangeOverall LeaderboardRange = "overall"
	RangeWeekly  LeaderboardRange = "weekly"
)

const (
	overallLeaderboardLimit = 50
	weeklyLeaderboardLimit  = 20
	recentRecordsLimit      = 10
)

var (
	// ErrStudyRecordExists indicates a record for the session and user is already stored.
	ErrStudyRecordExists = apperrors.New("study.record_exists", "Study record already stored", http.StatusConflict)
	// ErrInvalidStudyRecord indicates a record failed validation.
	ErrInvalidStudyRecord = apperrors.New("study.invalid_record", "Invalid study record", http.StatusBadRequest)
	// ErrInvalidRange indicates an unknown leaderboard range.
	ErrInvalidRange = apperrors.New("study.invalid_range", "Unknown leaderboard range", http.StatusBadRequest)
)

// LeaderboardQuery selects the leaderboard window and size.
type LeaderboardQuery struct {
	Range LeaderboardRange
	Limit int
}

// LeaderboardEntry aggregates study time for one user.
type LeaderboardEntry struct {
	Rank              int        `json:"rank"`
	UserID            string     `json:"user_id"`
	UserName          string     `json:"user_name"`
	UserImage         string     `json:"user_image"`
	TotalMinutes      int64      `json:"total_minutes"`
	TotalSessions     int64      `json:"total_sessions"`
	AvgSessionMinutes float64    `json:"avg_session_minutes"`
	LastStudyDate     *time.Time `json:"last_study_date,omitempty"`
}

// UserStudyStats summarises one user's study history.
type UserStudyStats struct {
	TotalMinutes      int64                `json:"total_minutes"`
	TotalSessions     int64                `json:"total_sessions"`
	AvgSessionMinutes float64              `json:"avg_session_minutes"`
	LongestSession    int                  `json:"longest_session"`
	LastStudyDate     *time.Time           `json:"last_study_date"`
	RecentSessions    []models.StudyRecord `json:"recent_sessions"`
}

// StudyRecordService stores finished study participations and aggregates them.
type StudyRecordService struct {
	db      *gorm.DB
	timeNow func() time.Time
}

// NewStudyRecordService constructs a StudyRecordService.
func NewStudyRecordService(db *gorm.DB) (*StudyRecordService, error) {
	if db == nil {
		return nil, errors.New("study record service: db is required")
	}
	return &StudyRecordService{db: db, timeNow: time.Now}, nil
}

// Save persists a single record. A second record for the same session and user is
// rejected with ErrStudyRecordExists.
func (s *StudyRecordService) Save(ctx context.Context, record *models.StudyRecord) error {
	if s == nil {
		return errors.New("study record service: service not initialised")
	}
	if record == nil {
		return ErrInvalidStudyRecord.WithMessage("record is required")
	}
	ctx = ensureContext(ctx)

	record.SessionID = strings.TrimSpace(record.SessionID)
	record.UserID = strings.TrimSpace(record.UserID)
	switch {
	case record.SessionID == "":
		return ErrInvalidStudyRecord.WithMessage("session id is required")
	case record.UserID == "":
		return ErrInvalidStudyRecord.WithMessage("user id is required")
	case record.DurationMinutes <= 0:
		return ErrInvalidStudyRecord.WithMessage("duration must be positive")
	}
	switch record.Reason {
	case models.ReasonCompleted, models.ReasonLeftEarly, models.ReasonAutoStopped:
	default:
		return ErrInvalidStudyRecord.WithMessage(fmt.Sprintf("unknown termination reason %q", record.Reason))
	}
	if record.ParticipantCount <= 0 {
		record.ParticipantCount = 1
	}

	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		if isDuplicateRecord(err) {
			return ErrStudyRecordExists.WithInternal(err)
		}
		return fmt.Errorf("study record service: save: %w", err)
	}
	return nil
}

type leaderboardRow struct {
	UserID        string
	UserName      string
	UserImage     string
	TotalMinutes  int64
	TotalSessions int64
}

// Leaderboard ranks users by total study minutes. The weekly range only counts records
// that ended within the last seven days.
func (s *StudyRecordService) Leaderboard(ctx context.Context, query LeaderboardQuery) ([]LeaderboardEntry, error) {
	if s == nil {
		return nil, errors.New("study record service: service not initialised")
	}
	ctx = ensureContext(ctx)

	rng := query.Range
	if rng == "" {
		rng = RangeOverall
	}

	tx := s.db.WithContext(ctx).
		Table("study_records AS r").
		Select("r.user_id AS user_id, u.full_name AS user_name, u.profile_pic AS user_image, SUM(r.duration_minutes) AS total_minutes, COUNT(*) AS total_sessions").
		Joins("JOIN users u ON u.id = r.user_id AND u.deleted_at IS NULL").
		Group("r.user_id, u.full_name, u.profile_pic").
		Order("total_minutes DESC").
		Order("r.user_id ASC")

	limit := query.Limit
	switch rng {
	case RangeOverall:
		if limit <= 0 || limit > overallLeaderboardLimit {
			limit = overallLeaderboardLimit
		}
	case RangeWeekly:
		if limit <= 0 || limit > weeklyLeaderboardLimit {
			limit = weeklyLeaderboardLimit
		}
		tx = tx.Where("r.end_time >= ?", s.timeNow().UTC().AddDate(0, 0, -7))
	default:
		return nil, ErrInvalidRange.WithMessage(fmt.Sprintf("unknown leaderboard range %q", rng))
	}

	var rows []leaderboardRow
	if err := tx.Limit(limit).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("study record service: leaderboard: %w", err)
	}

	entries := make([]LeaderboardEntry, 0, len(rows))
	userIDs := make([]string, 0, len(rows))
	for i, row := range rows {
		entries = append(entries, LeaderboardEntry{
			Rank:              i + 1,
			UserID:            row.UserID,
			UserName:          row.UserName,
			UserImage:         row.UserImage,
			TotalMinutes:      row.TotalMinutes,
			TotalSessions:     row.TotalSessions,
			AvgSessionMinutes: average(row.TotalMinutes, row.TotalSessions),
		})
		userIDs = append(userIDs, row.UserID)
	}

	if rng == RangeOverall && len(userIDs) > 0 {
		last, err := s.lastStudyDates(ctx, userIDs)
		if err != nil {
			return nil, err
		}
		for i := range entries {
			if ts, ok := last[entries[i].UserID]; ok {
				t := ts
				entries[i].LastStudyDate = &t
			}
		}
	}

	return entries, nil
}

// UserStats aggregates the study history of one user, including the most recent records.
func (s *StudyRecordService) UserStats(ctx context.Context, userID string) (UserStudyStats, error) {
	if s == nil {
		return UserStudyStats{}, errors.New("study record service: service not initialised")
	}
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return UserStudyStats{}, ErrInvalidStudyRecord.WithMessage("user id is required")
	}

	var agg struct {
		TotalMinutes   int64
		TotalSessions  int64
		LongestSession int
	}
	err := s.db.WithContext(ctx).
		Model(&models.StudyRecord{}).
		Select("COALESCE(SUM(duration_minutes), 0) AS total_minutes, COUNT(*) AS total_sessions, COALESCE(MAX(duration_minutes), 0) AS longest_session").
		Where("user_id = ?", userID).
		Scan(&agg).Error
	if err != nil {
		return UserStudyStats{}, fmt.Errorf("study record service: user stats: %w", err)
	}

	stats := UserStudyStats{
		TotalMinutes:      agg.TotalMinutes,
		TotalSessions:     agg.TotalSessions,
		AvgSessionMinutes: average(agg.TotalMinutes, agg.TotalSessions),
		LongestSession:    agg.LongestSession,
		RecentSessions:    []models.StudyRecord{},
	}
	if agg.TotalSessions == 0 {
		return stats, nil
	}

	err = s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("end_time DESC").
		Limit(recentRecordsLimit).
		Find(&stats.RecentSessions).Error
	if err != nil {
		return UserStudyStats{}, fmt.Errorf("study record service: recent sessions: %w", err)
	}
	if len(stats.RecentSessions) > 0 {
		last := stats.RecentSessions[0].EndTime
		stats.LastStudyDate = &last
	}
	return stats, nil
}

// Aggregate timestamps come back as driver specific strings, so the newest end time per
// user is resolved from typed rows instead.
func (s *StudyRecordService) lastStudyDates(ctx context.Context, userIDs []string) (map[string]time.Time, error) {
	var rows []models.StudyRecord
	err := s.db.WithContext(ctx).
		Select("user_id", "end_time").
		Where("user_id IN ?", userIDs).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("study record service: last study dates: %w", err)
	}

	out := make(map[string]time.Time, len(userIDs))
	for _, row := range rows {
		if current, ok := out[row.UserID]; !ok || row.EndTime.After(current) {
			out[row.UserID] = row.EndTime
		}
	}
	return out, nil
}

func average(total, count int64) float64 {
	if count == 0 {
		return 0
	}
	return math.Round(float64(total)/float64(count)*10) / 10
}
