package handlers

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"gatekeeper.backend/internal/domain/entities"
	"gatekeeper.backend/internal/infrastructure/telegram"
	"gatekeeper.backend/internal/interfaces/http/response"
	"gatekeeper.backend/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type setupService interface {
	Setup(ctx context.Context, ev entities.ChatEvent) error
	Link(ctx context.Context, ev entities.ChatEvent, nonce string) error
	Callback(ctx context.Context, ev entities.CallbackEvent) error
	Text(ctx context.Context, ev entities.ChatEvent) error
}

type admissionService interface {
	Admit(ctx context.Context, req entities.JoinRequest) (*entities.AdmissionResult, error)
}

// BotIdentity is the bot account updates are addressed to. Zero values
// accept commands addressed to any bot name and links created by any bot.
type BotIdentity struct {
	ID       int64
	Username string
}

// BotHandler receives chat platform updates
type BotHandler struct {
	setupUsecase     setupService
	admissionUsecase admissionService
	secret           string
	bot              BotIdentity
}

// NewBotHandler creates a new bot webhook handler
func NewBotHandler(setupUsecase setupService, admissionUsecase admissionService, secret string, bot BotIdentity) *BotHandler {
	return &BotHandler{
		setupUsecase:     setupUsecase,
		admissionUsecase: admissionUsecase,
		secret:           secret,
		bot:              bot,
	}
}

// HandleUpdate dispatches one webhook update. Processing failures are logged
// and acknowledged so the platform does not redeliver them.
// POST /api/v1/bot/:secret
func (h *BotHandler) HandleUpdate(c *gin.Context) {
	if h.secret == "" || subtle.ConstantTimeCompare([]byte(c.Param("secret")), []byte(h.secret)) != 1 {
		response.ErrorWithError(c, http.StatusForbidden, "invalid_secret", "invalid webhook secret")
		return
	}

	var update telegram.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		response.ErrorWithError(c, http.StatusBadRequest, "bad_request", "malformed update")
		return
	}

	ctx := logger.WithComponent(c.Request.Context(), "bot")
	if err := h.dispatch(ctx, &update); err != nil {
		logger.Error(ctx, "Failed to process bot update", zap.Int64("update_id", update.UpdateID), zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *BotHandler) dispatch(ctx context.Context, update *telegram.Update) error {
	switch {
	case update.ChatJoinRequest != nil:
		return h.handleJoinRequest(ctx, update.ChatJoinRequest)
	case update.CallbackQuery != nil:
		return h.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		return h.handleMessage(ctx, update.Message, false)
	case update.ChannelPost != nil:
		return h.handleMessage(ctx, update.ChannelPost, true)
	}
	return nil
}

func (h *BotHandler) handleJoinRequest(ctx context.Context, jr *telegram.ChatJoinRequest) error {
	req := entities.JoinRequest{
		ChatID: jr.Chat.ID,
		UserID: jr.From.ID,
	}
	if link := jr.InviteLink; link != nil {
		req.InviteLink = link.InviteLink
		req.InviteName = link.Name
		req.CreatorIsBot = link.Creator.IsBot && (h.bot.ID == 0 || link.Creator.ID == h.bot.ID)
		req.CreatesJoinRequest = link.CreatesJoinRequest
	}

	result, err := h.admissionUsecase.Admit(ctx, req)
	if err != nil {
		return err
	}
	for _, effect := range result.SideEffects {
		if effect.Err != nil {
			logger.Warn(ctx, "Admission side effect failed",
				zap.String("action", effect.Action),
				zap.Int64("chat_id", req.ChatID),
				zap.Int64("user_id", req.UserID),
				zap.Error(effect.Err),
			)
		}
	}
	return nil
}

func (h *BotHandler) handleCallback(ctx context.Context, cq *telegram.CallbackQuery) error {
	if cq.Message == nil {
		return nil
	}
	return h.setupUsecase.Callback(ctx, entities.CallbackEvent{
		ID:        cq.ID,
		ChatID:    cq.Message.Chat.ID,
		ChatKind:  entities.ChatKind(cq.Message.Chat.Type),
		MessageID: cq.Message.MessageID,
		UserID:    cq.From.ID,
		Data:      cq.Data,
	})
}

func (h *BotHandler) handleMessage(ctx context.Context, msg *telegram.Message, channelPost bool) error {
	ev := entities.ChatEvent{
		ChatID:    msg.Chat.ID,
		ChatKind:  entities.ChatKind(msg.Chat.Type),
		MessageID: msg.MessageID,
		Text:      msg.Text,
	}
	if msg.From != nil && !channelPost {
		ev.UserID = msg.From.ID
	}

	command, args, ok := h.parseCommand(msg.Text)
	if !ok {
		if channelPost || strings.HasPrefix(msg.Text, "/") {
			return nil
		}
		return h.setupUsecase.Text(ctx, ev)
	}

	switch command {
	case "setup":
		return h.setupUsecase.Setup(ctx, ev)
	case "link":
		return h.setupUsecase.Link(ctx, ev, args)
	}
	return nil
}

// parseCommand splits "/link@gate_bot abc" into ("link", "abc"). Commands
// addressed to another bot are not ours.
func (h *BotHandler) parseCommand(text string) (command, args string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	head, rest, _ := strings.Cut(text, " ")
	command, target, addressed := strings.Cut(strings.TrimPrefix(head, "/"), "@")
	if addressed && h.bot.Username != "" && !strings.EqualFold(target, h.bot.Username) {
		return "", "", false
	}
	return strings.ToLower(command), strings.TrimSpace(rest), command != ""
}
