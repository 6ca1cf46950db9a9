package handlers

import (
	"context"
	"net/http"
	"strconv"

	"gatekeeper.backend/internal/domain/entities"
	domainerrors "gatekeeper.backend/internal/domain/errors"
	"gatekeeper.backend/internal/interfaces/http/response"
	"gatekeeper.backend/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type sweepService interface {
	Sweep(ctx context.Context) (*entities.SweepReport, error)
}

type membershipEventLister interface {
	ListByChat(ctx context.Context, chatID int64, limit int) ([]*entities.MembershipEvent, error)
}

// CronHandler exposes the reconciler to external schedulers
type CronHandler struct {
	reconcileUsecase sweepService
	eventRepo        membershipEventLister
}

// NewCronHandler creates a new cron handler
func NewCronHandler(reconcileUsecase sweepService, eventRepo membershipEventLister) *CronHandler {
	return &CronHandler{reconcileUsecase: reconcileUsecase, eventRepo: eventRepo}
}

// Verify runs one reconciliation sweep and returns its report
// GET /api/v1/cron/verify
func (h *CronHandler) Verify(c *gin.Context) {
	report, err := h.reconcileUsecase.Sweep(c.Request.Context())
	if err != nil {
		logger.Error(c.Request.Context(), "Cron sweep failed", zap.Error(err))
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, report)
}

// ListEvents returns the most recent membership events of a chat
// GET /api/v1/cron/chats/:chatId/events?limit=50
func (h *CronHandler) ListEvents(c *gin.Context) {
	if h.eventRepo == nil {
		response.Error(c, domainerrors.NotFound("membership audit log is not configured"))
		return
	}
	chatID, err := strconv.ParseInt(c.Param("chatId"), 10, 64)
	if err != nil {
		response.Error(c, domainerrors.BadRequest("invalid chat id"))
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 500 {
		response.Error(c, domainerrors.BadRequest("limit must be between 1 and 500"))
		return
	}

	events, err := h.eventRepo.ListByChat(c.Request.Context(), chatID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"items": events})
}
