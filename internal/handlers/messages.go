package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/studyhall/internal/models"
	"github.com/charlesng35/studyhall/internal/services"
	"github.com/charlesng35/studyhall/internal/study"
	appErrors "github.com/charlesng35/studyhall/pkg/errors"
	"github.com/charlesng35/studyhall/pkg/response"
	appValidator "github.com/charlesng35/studyhall/pkg/validator"
)

// MessageHandler serves chat history.
type MessageHandler struct {
	messages *services.MessageService
}

// NewMessageHandler constructs a message handler.
func NewMessageHandler(messages *services.MessageService) (*MessageHandler, error) {
	if messages == nil {
		return nil, errors.New("message handler: message service is required")
	}
	return &MessageHandler{messages: messages}, nil
}

type listMessagesQuery struct {
	Limit    int             `form:"limit" json:"limit" validate:"omitempty,min=1,max=200"`
	Before   string          `form:"before" json:"before" validate:"omitempty,max=64"`
	After    string          `form:"after" json:"after" validate:"omitempty,max=64"`
	ChatType models.RoomKind `form:"chat_type" json:"chat_type" validate:"omitempty,oneof=direct group ai"`
}

// List handles GET /api/chats/:chatId/messages.
func (h *MessageHandler) List(c *gin.Context) {
	chatID := c.Param("chatId")
	if err := appValidator.ValidateVar(chatID, "required,roomid"); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid chat id"))
		return
	}

	var query listMessagesQuery
	if !bindQuery(c, &query) {
		return
	}

	roomID := study.NormalizeRoomID(chatID)
	if query.ChatType == models.RoomKindDirect {
		roomID = study.NormalizeDirectChatID(roomID)
	}

	page, err := h.messages.List(requestContext(c), services.MessageQuery{
		RoomID: roomID,
		Limit:  query.Limit,
		Before: query.Before,
		After:  query.After,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, page.Messages, &response.Meta{
		Limit:      len(page.Messages),
		HasMore:    page.HasMore,
		NextCursor: page.NextCursor,
		PrevCursor: page.PrevCursor,
	})
}
