package models

import "time"

// TerminationReason describes how a participant's study time ended.
type TerminationReason string

const (
	ReasonCompleted   TerminationReason = "completed"
	ReasonLeftEarly   TerminationReason = "left_early"
	ReasonAutoStopped TerminationReason = "auto_stopped"
)

// StudyRecord is the durable study time of one user in one session. The unique
// (session_id, user_id) index backs the write-once rule.
type StudyRecord struct {
	BaseModel
	SessionID        string            `gorm:"size:36;not null;uniqueIndex:idx_study_records_session_user,priority:1" json:"session_id"`
	UserID           string            `gorm:"size:64;not null;index;uniqueIndex:idx_study_records_session_user,priority:2" json:"user_id"`
	RoomID           string            `gorm:"size:128;not null;index" json:"room_id"`
	RoomName         string            `gorm:"not null" json:"room_name"`
	DurationMinutes  int               `gorm:"not null;index" json:"duration_minutes"`
	ParticipantCount int               `gorm:"default:1" json:"participant_count"`
	StartTime        time.Time         `gorm:"not null" json:"start_time"`
	EndTime          time.Time         `gorm:"not null;index" json:"end_time"`
	Reason           TerminationReason `gorm:"size:32;not null" json:"reason"`
}
