package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"gatekeeper.backend/pkg/logger"
	"gatekeeper.backend/pkg/redis"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// UpdateRetention is how long a delivered bot update ID is remembered
	UpdateRetention = 24 * time.Hour
	// maxUpdateBody bounds the webhook payload read into memory
	maxUpdateBody = 1 << 20
)

var (
	redisSetNX = redis.SetNX
	redisDel   = redis.Del
)

// UpdateDedupMiddleware drops webhook deliveries whose update_id was already
// handled. The platform redelivers updates it considers unacknowledged, and a
// replayed join request or setup command must not run twice. Updates without
// an ID pass through, as does everything when Redis is unavailable.
func UpdateDedupMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxUpdateBody))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"code": "bad_request", "message": "unreadable body"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		var envelope struct {
			UpdateID int64 `json:"update_id"`
		}
		if json.Unmarshal(body, &envelope) != nil || envelope.UpdateID == 0 {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		storageKey := fmt.Sprintf("bot_update:%d", envelope.UpdateID)
		first, err := redisSetNX(ctx, storageKey, "1", UpdateRetention)
		if err != nil {
			logger.Warn(ctx, "Update dedup unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !first {
			logger.Debug(ctx, "Duplicate bot update dropped", zap.Int64("update_id", envelope.UpdateID))
			c.Header("X-Duplicate-Update", "true")
			c.AbortWithStatusJSON(http.StatusOK, gin.H{"ok": true})
			return
		}

		c.Next()

		// Let the platform retry updates the handler refused.
		if c.Writer.Status() >= 300 {
			_ = redisDel(ctx, storageKey)
		}
	}
}
