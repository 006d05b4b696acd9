package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lujainibrahim/dyad-study/internal/config"
)

// PublicConfig 클라이언트가 UI를 맞추는 데 쓰는 세션 정책
type PublicConfig struct {
	MinMessages     int    `json:"minMessages"`
	MinMessagesMode string `json:"minMessagesMode"`
	MaxMessages     int    `json:"maxMessages"`
	TurnTaking      bool   `json:"turnTaking"`
	MatchPolicy     string `json:"matchPolicy"`
}

type ConfigHandler struct {
	public PublicConfig
}

func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{
		public: PublicConfig{
			MinMessages:     cfg.MinMessages,
			MinMessagesMode: string(cfg.MinMessagesMode),
			MaxMessages:     cfg.MaxMessages,
			TurnTaking:      cfg.TurnTaking,
			MatchPolicy:     cfg.MatchPolicy,
		},
	}
}

// GetConfig 세션 정책 조회
func (h *ConfigHandler) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.public)
}
