package main

import (
	"net/http"

	"gatekeeper.backend/internal/interfaces/http/handlers"
	"gatekeeper.backend/internal/interfaces/http/middleware"
	"gatekeeper.backend/pkg/metrics"
	"github.com/gin-gonic/gin"
)

const (
	serviceName    = "gatekeeper"
	serviceVersion = "0.1.0"
)

type routeDeps struct {
	joinHandler          *handlers.JoinHandler
	walletAuthHandler    *handlers.WalletAuthHandler
	cronHandler          *handlers.CronHandler
	botHandler           *handlers.BotHandler
	walletAuthMiddleware gin.HandlerFunc
	cronAuthMiddleware   gin.HandlerFunc
}

func applyCORSMiddleware(r *gin.Engine) {
	r.Use(func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
		c.Header("Access-Control-Expose-Headers", "WWW-Authenticate, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})
}

func registerHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": serviceName,
			"version": serviceVersion,
		})
	})
}

func registerMetricsRoute(r *gin.Engine, m *metrics.Metrics) {
	r.GET("/metrics", gin.WrapH(m.Handler()))
}

func registerAPIV1Routes(r *gin.Engine, d routeDeps) {
	v1 := r.Group("/api/v1")
	{
		// Wallet challenge (public)
		v1.GET("/auth/challenge", d.walletAuthHandler.Challenge)

		// Join portal (wallet-authenticated)
		v1.GET("/join/:nonce", d.walletAuthMiddleware, d.joinHandler.Join)

		// Scheduler routes (cron secret)
		cron := v1.Group("/cron")
		cron.Use(d.cronAuthMiddleware)
		{
			cron.GET("/verify", d.cronHandler.Verify)
			cron.GET("/chats/:chatId/events", d.cronHandler.ListEvents)
		}

		// Chat platform webhook (path secret)
		v1.POST("/bot/:secret", middleware.UpdateDedupMiddleware(), d.botHandler.HandleUpdate)
	}
}
