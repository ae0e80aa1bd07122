package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/studyhall/internal/middleware"
	"github.com/charlesng35/studyhall/internal/services"
	appErrors "github.com/charlesng35/studyhall/pkg/errors"
	"github.com/charlesng35/studyhall/pkg/response"
)

// StudyHandler exposes leaderboards and personal study statistics.
type StudyHandler struct {
	records *services.StudyRecordService
}

func NewStudyHandler(records *services.StudyRecordService) (*StudyHandler, error) {
	if records == nil {
		return nil, errors.New("study handler: study record service is required")
	}
	return &StudyHandler{records: records}, nil
}

type leaderboardQuery struct {
	Range services.LeaderboardRange `form:"range" json:"range" validate:"omitempty,oneof=overall weekly"`
	Limit int                       `form:"limit" json:"limit" validate:"omitempty,min=1,max=100"`
}

// Leaderboard handles GET /api/study/leaderboard.
func (h *StudyHandler) Leaderboard(c *gin.Context) {
	var query leaderboardQuery
	if !bindQuery(c, &query) {
		return
	}

	entries, err := h.records.Leaderboard(requestContext(c), services.LeaderboardQuery{
		Range: query.Range,
		Limit: query.Limit,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, entries)
}

// Me handles GET /api/study/me.
func (h *StudyHandler) Me(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	stats, err := h.records.UserStats(requestContext(c), identity.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, stats)
}
