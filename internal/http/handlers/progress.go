package handlers

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/prosodia/prosodia-backend/internal/data/repos"
	"github.com/prosodia/prosodia-backend/internal/http/middleware"
	"github.com/prosodia/prosodia-backend/internal/http/response"
	"github.com/prosodia/prosodia-backend/internal/platform/apierr"
	"github.com/prosodia/prosodia-backend/internal/platform/logger"
)

type ProgressHandler struct {
	log          *logger.Logger
	progressRepo repos.UserExerciseProgressRepo
}

func NewProgressHandler(log *logger.Logger, progressRepo repos.UserExerciseProgressRepo) *ProgressHandler {
	return &ProgressHandler{
		log:          log.With("handler", "ProgressHandler"),
		progressRepo: progressRepo,
	}
}

func (h *ProgressHandler) ListMine(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		response.RespondAPIError(c, apierr.InvalidArgument(fmt.Errorf("missing user identity")))
		return
	}
	rows, err := h.progressRepo.ListByUser(c.Request.Context(), nil, userID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"progress": rows})
}

type attemptRequest struct {
	Score float64 `json:"score" binding:"required"`
}

func (h *ProgressHandler) RecordAttempt(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		response.RespondAPIError(c, apierr.InvalidArgument(fmt.Errorf("missing user identity")))
		return
	}
	var req attemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondAPIError(c, apierr.InvalidArgument(fmt.Errorf("malformed body: %w", err)))
		return
	}
	if req.Score < 0 || req.Score > 100 {
		response.RespondAPIError(c, apierr.InvalidArgument(fmt.Errorf("score must be between 0 and 100")))
		return
	}
	row, err := h.progressRepo.RecordAttempt(c.Request.Context(), nil, userID, c.Param("exercise_id"), req.Score)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, row)
}

func authedUserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(middleware.ContextUserIDKey)
	if !ok {
		return uuid.Nil, false
	}
	userID, ok := v.(uuid.UUID)
	return userID, ok && userID != uuid.Nil
}
