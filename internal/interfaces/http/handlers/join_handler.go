package handlers

import (
	"context"
	"net/http"

	"gatekeeper.backend/internal/domain/entities"
	domainerrors "gatekeeper.backend/internal/domain/errors"
	"gatekeeper.backend/internal/interfaces/http/middleware"
	"gatekeeper.backend/internal/interfaces/http/response"
	"gatekeeper.backend/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type joinService interface {
	Join(ctx context.Context, nonce, wallet string) (*entities.JoinResult, error)
}

// JoinHandler hands invite links to wallets that hold a portal's asset
type JoinHandler struct {
	joinUsecase joinService
}

// NewJoinHandler creates a new join handler
func NewJoinHandler(joinUsecase joinService) *JoinHandler {
	return &JoinHandler{joinUsecase: joinUsecase}
}

// Join issues a single-use invite for the authenticated wallet
// GET /api/v1/join/:nonce
func (h *JoinHandler) Join(c *gin.Context) {
	wallet, ok := middleware.GetWalletAddress(c)
	if !ok {
		response.Error(c, domainerrors.Unauthorized("wallet not authenticated"))
		return
	}

	nonce := c.Param("nonce")
	result, err := h.joinUsecase.Join(c.Request.Context(), nonce, wallet)
	if err != nil {
		logger.Info(c.Request.Context(), "Join refused",
			zap.String("nonce", nonce),
			zap.String("wallet", wallet),
			zap.Error(err),
		)
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}
