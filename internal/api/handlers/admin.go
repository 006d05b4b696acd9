package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lujainibrahim/dyad-study/internal/models"
	jwtutil "github.com/lujainibrahim/dyad-study/pkg/jwt"
	"github.com/lujainibrahim/dyad-study/pkg/logger"
)

// SessionMonitor 라이브 세션 상태 조회 (service.SessionCoordinator)
type SessionMonitor interface {
	Stats() models.CoordinatorStats
	Pairs() []models.PairSummary
}

// ScheduleMonitor 스케줄 상태 조회 (service.Scheduler)
type ScheduleMonitor interface {
	Snapshot() *models.ScheduleState
}

type AdminHandler struct {
	sessions     SessionMonitor
	schedule     ScheduleMonitor
	connections  func() int
	jwtManager   *jwtutil.JWTManager
	passwordHash string
}

func NewAdminHandler(
	sessions SessionMonitor,
	schedule ScheduleMonitor,
	connections func() int,
	jwtManager *jwtutil.JWTManager,
	passwordHash string,
) *AdminHandler {
	return &AdminHandler{
		sessions:     sessions,
		schedule:     schedule,
		connections:  connections,
		jwtManager:   jwtManager,
		passwordHash: passwordHash,
	}
}

// Login 관리자 로그인
func (h *AdminHandler) Login(c *gin.Context) {
	var req models.AdminLoginRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Password required",
		})
		return
	}

	if !models.CheckAdminPassword(h.passwordHash, req.Password) {
		logger.Warn("Admin login failed", "ip", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "Invalid password",
		})
		return
	}

	// JWT 토큰 생성
	token, expiresAt, err := h.jwtManager.Generate("admin", jwtutil.AdminRole)
	if err != nil {
		logger.Error("Failed to generate token", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to generate token",
		})
		return
	}

	logger.Info("Admin logged in", "ip", c.ClientIP())

	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"expiresAt": expiresAt,
	})
}

// Stats 라이브 세션 통계
func (h *AdminHandler) Stats(c *gin.Context) {
	stats := h.sessions.Stats()

	response := gin.H{
		"connected":   stats.Connected,
		"waiting":     stats.Waiting,
		"activePairs": stats.ActivePairs,
		"completed":   stats.Completed,
	}
	if h.connections != nil {
		response["sockets"] = h.connections()
	}

	c.JSON(http.StatusOK, response)
}

// Pairs 활성 페어 목록
func (h *AdminHandler) Pairs(c *gin.Context) {
	pairs := h.sessions.Pairs()
	if pairs == nil {
		pairs = []models.PairSummary{}
	}
	c.JSON(http.StatusOK, gin.H{
		"pairs": pairs,
	})
}

// Schedule 스케줄 저장소 상태
func (h *AdminHandler) Schedule(c *gin.Context) {
	c.JSON(http.StatusOK, h.schedule.Snapshot())
}
