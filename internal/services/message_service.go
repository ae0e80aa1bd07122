package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/charlesng35/studyhall/internal/models"
	apperrors "github.com/charlesng35/studyhall/pkg/errors"
)

const (
	// MaxMessageLength bounds the text of a single chat message in runes.
	MaxMessageLength = 4000

	defaultMessagePageSize = 50
	maxMessagePageSize     = 200
)

var (
	// ErrInvalidMessage indicates a message failed validation before persistence.
	ErrInvalidMessage = apperrors.New("chat.invalid_message", "Invalid chat message", http.StatusBadRequest)
	// ErrCursorNotFound indicates a pagination cursor does not reference a message in the room.
	ErrCursorNotFound = apperrors.New("chat.cursor_not_found", "Pagination cursor not found", http.StatusBadRequest)
)

// MessageQuery selects one page of a room's history. Before and After are message ids;
// at most one may be set.
type MessageQuery struct {
	RoomID string
	Limit  int
	Before string
	After  string
}

// MessagePage is a window of messages in chronological order.
type MessagePage struct {
	Messages   []models.Message
	HasMore    bool
	NextCursor string
	PrevCursor string
}

// MessageService persists chat messages and pages through room history.
type MessageService struct {
	db      *gorm.DB
	timeNow func() time.Time
}

// NewMessageService constructs a MessageService.
func NewMessageService(db *gorm.DB) (*MessageService, error) {
	if db == nil {
		return nil, errors.New("message service: db is required")
	}
	return &MessageService{db: db, timeNow: time.Now}, nil
}

// Save validates and stores the message, assigning its id and creation time.
func (s *MessageService) Save(ctx context.Context, msg *models.Message) error {
	if s == nil {
		return errors.New("message service: service not initialised")
	}
	if msg == nil {
		return ErrInvalidMessage.WithMessage("message is required")
	}
	ctx = ensureContext(ctx)

	msg.RoomID = strings.TrimSpace(msg.RoomID)
	if msg.RoomID == "" {
		return ErrInvalidMessage.WithMessage("room id is required")
	}
	if !msg.RoomKind.Valid() {
		return ErrInvalidMessage.WithMessage(fmt.Sprintf("unknown room kind %q", msg.RoomKind))
	}
	msg.Text = strings.TrimSpace(msg.Text)
	if msg.Text == "" {
		return ErrInvalidMessage.WithMessage("message text is required")
	}
	if utf8.RuneCountInString(msg.Text) > MaxMessageLength {
		return ErrInvalidMessage.WithMessage("message text exceeds maximum length")
	}
	if msg.AuthorID != nil && strings.TrimSpace(*msg.AuthorID) == "" {
		msg.AuthorID = nil
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.timeNow().UTC()
	}

	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("message service: save: %w", err)
	}
	return nil
}

// List returns one page of a room's history ordered oldest first. Without a cursor the
// newest page is returned. Ordering uses (created_at, id) so pages never repeat or skip
// rows that share a timestamp.
func (s *MessageService) List(ctx context.Context, query MessageQuery) (MessagePage, error) {
	if s == nil {
		return MessagePage{}, errors.New("message service: service not initialised")
	}
	ctx = ensureContext(ctx)

	roomID := strings.TrimSpace(query.RoomID)
	if roomID == "" {
		return MessagePage{}, ErrInvalidMessage.WithMessage("room id is required")
	}
	before := strings.TrimSpace(query.Before)
	after := strings.TrimSpace(query.After)
	if before != "" && after != "" {
		return MessagePage{}, apperrors.NewBadRequest("before and after cannot be combined")
	}

	limit := query.Limit
	if limit <= 0 {
		limit = defaultMessagePageSize
	}
	if limit > maxMessagePageSize {
		limit = maxMessagePageSize
	}

	tx := s.db.WithContext(ctx).Model(&models.Message{}).Where("room_id = ?", roomID)

	forward := after != ""
	if cursorID := before + after; cursorID != "" {
		cursor, err := s.cursor(ctx, roomID, cursorID)
		if err != nil {
			return MessagePage{}, err
		}
		if forward {
			tx = tx.Where("((created_at > ?) OR (created_at = ? AND id > ?))", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
		} else {
			tx = tx.Where("((created_at < ?) OR (created_at = ? AND id < ?))", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
		}
	}

	if forward {
		tx = tx.Order("created_at ASC").Order("id ASC")
	} else {
		tx = tx.Order("created_at DESC").Order("id DESC")
	}

	var rows []models.Message
	if err := tx.Limit(limit + 1).Find(&rows).Error; err != nil {
		return MessagePage{}, fmt.Errorf("message service: list: %w", err)
	}

	page := MessagePage{HasMore: len(rows) > limit}
	if page.HasMore {
		rows = rows[:limit]
	}
	if !forward {
		for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
			rows[i], rows[j] = rows[j], rows[i]
		}
	}
	page.Messages = rows

	if len(rows) > 0 {
		page.NextCursor = rows[0].ID
		page.PrevCursor = rows[len(rows)-1].ID
	}
	return page, nil
}

// PurgeOlderThan deletes messages created before the cutoff.
func (s *MessageService) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if s == nil {
		return 0, errors.New("message service: service not initialised")
	}
	res := s.db.WithContext(ensureContext(ctx)).Where("created_at < ?", cutoff.UTC()).Delete(&models.Message{})
	if res.Error != nil {
		return 0, fmt.Errorf("message service: purge: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *MessageService) cursor(ctx context.Context, roomID, id string) (*models.Message, error) {
	var msg models.Message
	err := s.db.WithContext(ctx).
		Select("id", "created_at").
		Where("room_id = ? AND id = ?", roomID, id).
		Take(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCursorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("message service: load cursor: %w", err)
	}
	return &msg, nil
}
