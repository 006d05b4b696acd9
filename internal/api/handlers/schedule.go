package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lujainibrahim/dyad-study/internal/models"
	"github.com/lujainibrahim/dyad-study/internal/service"
	"github.com/lujainibrahim/dyad-study/pkg/logger"
)

// ScheduleService 사전 등록과 시간대 조회 (service.Scheduler)
type ScheduleService interface {
	Register(ctx context.Context, req models.ScheduleRequest) (models.ScheduledRegistration, bool, error)
	TimeSlots(now time.Time) []models.TimeSlot
}

type ScheduleHandler struct {
	scheduler ScheduleService
	timezone  string
}

func NewScheduleHandler(scheduler ScheduleService, timezone string) *ScheduleHandler {
	return &ScheduleHandler{scheduler: scheduler, timezone: timezone}
}

type ScheduleResponse struct {
	Registration models.ScheduledRegistration `json:"registration"`
	Updated      bool                         `json:"updated"`
}

// Register 미래 시간대 사전 등록
func (h *ScheduleHandler) Register(c *gin.Context) {
	var req models.ScheduleRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	reg, updated, err := h.scheduler.Register(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAlreadyScheduled):
			c.JSON(http.StatusConflict, gin.H{
				"error": err.Error(),
			})
		case errors.Is(err, service.ErrMissingField),
			errors.Is(err, service.ErrInvalidRole),
			errors.Is(err, service.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{
				"error": err.Error(),
			})
		default:
			logger.Error("Failed to register schedule", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to register",
			})
		}
		return
	}

	c.JSON(http.StatusCreated, ScheduleResponse{
		Registration: reg,
		Updated:      updated,
	})
}

// TimeSlots 선택 가능한 시간대 목록
func (h *ScheduleHandler) TimeSlots(c *gin.Context) {
	slots := h.scheduler.TimeSlots(time.Now())
	if slots == nil {
		slots = []models.TimeSlot{}
	}

	c.JSON(http.StatusOK, gin.H{
		"timezone": h.timezone,
		"slots":    slots,
	})
}
