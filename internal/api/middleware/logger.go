package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lujainibrahim/dyad-study/pkg/logger"
)

// Logger HTTP 요청 로깅 미들웨어. 헬스체크는 debug 레벨.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		fields := []interface{}{
			"method", c.Request.Method,
			"path", path,
			"query", query,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}

		if path == "/health" {
			logger.Debug("HTTP Request", fields...)
			return
		}
		logger.Info("HTTP Request", fields...)
	}
}
