package usecases

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"gatekeeper.backend/internal/domain/entities"
	domainerrors "gatekeeper.backend/internal/domain/errors"
	"gatekeeper.backend/internal/domain/repositories"
	"gatekeeper.backend/pkg/logger"
	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"
)

// Inline button payloads of the setup message
const (
	CallbackSetAsset    = "set_mint"
	CallbackSetAmount   = "set_amount"
	CallbackResetAsset  = "reset_mint"
	CallbackResetAmount = "reset_amount"
)

const (
	DefaultInputStateTTL = 10 * time.Minute

	msgSetupGroupOnly   = "This command must be run in a group."
	msgLinkWrongChat    = "This command must be run in the channel or group you intend to use as the token-gated portal."
	msgLinkUsage        = "Usage: /link <nonce>"
	msgLinkBadNonce     = "Link failed: invalid or expired nonce."
	msgLinkNotAdmin     = "Link failed: you must be an admin of the group to link the portal."
	msgConfigMissing    = "Error: configuration not found. Please run /setup again."
	msgInvalidAssetText = "Invalid token address."
	msgInvalidAmount    = "Invalid amount. Please provide a positive integer."
	msgLedgerRetry      = "Could not reach the ledger to check that address, please send it again."
)

// SetupUsecase drives the admin conversation that configures a portal
type SetupUsecase struct {
	portals      *PortalUsecase
	checker      BalanceChecker
	inputRepo    repositories.InputStateRepository
	platform     ChatPlatform
	publicDomain string
	inputTTL     time.Duration
}

// NewSetupUsecase creates a new setup usecase
func NewSetupUsecase(
	portals *PortalUsecase,
	checker BalanceChecker,
	inputRepo repositories.InputStateRepository,
	platform ChatPlatform,
	publicDomain string,
	inputTTL time.Duration,
) *SetupUsecase {
	if inputTTL <= 0 {
		inputTTL = DefaultInputStateTTL
	}
	return &SetupUsecase{
		portals:      portals,
		checker:      checker,
		inputRepo:    inputRepo,
		platform:     platform,
		publicDomain: strings.TrimRight(publicDomain, "/"),
		inputTTL:     inputTTL,
	}
}

// Setup handles /setup: creates or shows the portal of the group it runs in.
func (u *SetupUsecase) Setup(ctx context.Context, ev entities.ChatEvent) error {
	if !ev.ChatKind.IsGroup() {
		return u.reply(ctx, ev.ChatID, msgSetupGroupOnly)
	}
	if err := (GroupAuthorizer{platform: u.platform}).Authorize(ctx, ev.ChatID, ev.UserID); err != nil {
		return u.replyError(ctx, ev.ChatID, err)
	}

	portal, err := u.portals.GetOrCreate(ctx, ev.ChatID)
	if err != nil {
		return err
	}
	return u.platform.SendMessage(ctx, ev.ChatID, RenderSetup(portal))
}

// Link handles /link <nonce>: binds the portal to the chat it runs in and
// posts the join button.
func (u *SetupUsecase) Link(ctx context.Context, ev entities.ChatEvent, nonce string) error {
	authorizer, err := AuthorizerFor(ev.ChatKind, u.platform)
	if err != nil {
		return u.reply(ctx, ev.ChatID, msgLinkWrongChat)
	}
	if err := authorizer.Authorize(ctx, ev.ChatID, ev.UserID); err != nil {
		return u.replyError(ctx, ev.ChatID, err)
	}

	nonce = strings.TrimSpace(nonce)
	if nonce == "" {
		return u.reply(ctx, ev.ChatID, msgLinkUsage)
	}
	portal, err := u.portals.FindByNonce(ctx, nonce)
	if err != nil {
		if errors.Is(err, domainerrors.ErrPortalNotFound) || errors.Is(err, domainerrors.ErrInvalidNonce) {
			return u.reply(ctx, ev.ChatID, msgLinkBadNonce)
		}
		return err
	}
	if portal.IsBound() {
		return u.reply(ctx, ev.ChatID, alreadyLinkedMessage(portal))
	}

	// Channel posts carry no sender; knowing the nonce is the proof there.
	if ev.UserID != 0 {
		ok, err := u.platform.IsAdmin(ctx, portal.CommunityID, ev.UserID)
		if err != nil {
			return u.replyError(ctx, ev.ChatID, domainerrors.Network(msgAdminCheckError, err))
		}
		if !ok {
			return u.reply(ctx, ev.ChatID, msgLinkNotAdmin)
		}
	}

	bound, err := u.portals.BindChat(ctx, nonce, ev.ChatID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrAlreadyBound) && bound != nil {
			return u.reply(ctx, ev.ChatID, alreadyLinkedMessage(bound))
		}
		return err
	}

	return u.platform.SendMessage(ctx, ev.ChatID, entities.BotMessage{
		Text: "<b>Portal Linked Successfully</b>\n\nClick below to verify your wallet.",
		Keyboard: [][]entities.Button{
			{{Text: "Join Portal", URL: u.JoinURL(bound.Nonce)}},
		},
	})
}

// Callback handles the setup message buttons. Only admins of the group, with
// the bot also an admin, may press them.
func (u *SetupUsecase) Callback(ctx context.Context, ev entities.CallbackEvent) error {
	switch ev.Data {
	case CallbackSetAsset, CallbackSetAmount, CallbackResetAsset, CallbackResetAmount:
	default:
		return u.platform.AnswerCallback(ctx, ev.ID, "", false)
	}

	if err := (GroupAuthorizer{platform: u.platform}).Authorize(ctx, ev.ChatID, ev.UserID); err != nil {
		var appErr *domainerrors.AppError
		if errors.As(err, &appErr) {
			return u.platform.AnswerCallback(ctx, ev.ID, appErr.Message, true)
		}
		return err
	}

	if _, err := u.portals.Get(ctx, ev.ChatID); err != nil {
		if errors.Is(err, domainerrors.ErrPortalNotFound) {
			return u.platform.AnswerCallback(ctx, ev.ID, msgConfigMissing, true)
		}
		return err
	}

	switch ev.Data {
	case CallbackSetAsset:
		if err := u.inputRepo.SetAwaiting(ctx, ev.ChatID, ev.UserID, entities.ConfigFieldAsset, u.inputTTL); err != nil {
			return err
		}
		return u.platform.AnswerCallback(ctx, ev.ID, "Ready to set the token address. Please send the address in the chat now.", false)
	case CallbackSetAmount:
		if err := u.inputRepo.SetAwaiting(ctx, ev.ChatID, ev.UserID, entities.ConfigFieldAmount, u.inputTTL); err != nil {
			return err
		}
		return u.platform.AnswerCallback(ctx, ev.ID, "Ready to set the tokens amount. Please send the minimum number (e.g., 100000) now.", false)
	case CallbackResetAsset:
		portal, err := u.portals.SetAsset(ctx, ev.ChatID, null.String{})
		if err != nil {
			return err
		}
		if err := u.platform.AnswerCallback(ctx, ev.ID, "Token address has been reset.", false); err != nil {
			logger.Warn(ctx, "Failed to answer callback", zap.Error(err))
		}
		return u.platform.EditMessage(ctx, ev.ChatID, ev.MessageID, RenderSetup(portal))
	default:
		portal, err := u.portals.SetAmount(ctx, ev.ChatID, null.Int64{})
		if err != nil {
			return err
		}
		if err := u.platform.AnswerCallback(ctx, ev.ID, "Tokens amount has been reset.", false); err != nil {
			logger.Warn(ctx, "Failed to answer callback", zap.Error(err))
		}
		return u.platform.EditMessage(ctx, ev.ChatID, ev.MessageID, RenderSetup(portal))
	}
}

// Text applies a plain message to the field its sender is editing, if any.
// Invalid input returns the sender to idle.
func (u *SetupUsecase) Text(ctx context.Context, ev entities.ChatEvent) error {
	if ev.UserID == 0 {
		return nil
	}
	field, awaiting, err := u.inputRepo.GetAwaiting(ctx, ev.ChatID, ev.UserID)
	if err != nil || !awaiting {
		return err
	}

	if _, err := u.portals.Get(ctx, ev.ChatID); err != nil {
		if errors.Is(err, domainerrors.ErrPortalNotFound) {
			u.clearInput(ctx, ev)
			return u.reply(ctx, ev.ChatID, msgConfigMissing)
		}
		return err
	}

	input := strings.TrimSpace(ev.Text)
	var portal *entities.PortalConfig
	switch field {
	case entities.ConfigFieldAsset:
		if err := u.checker.ValidateAsset(ctx, input); err != nil {
			if errors.Is(err, domainerrors.ErrAssetInvalid) {
				u.clearInput(ctx, ev)
				return u.reply(ctx, ev.ChatID, msgInvalidAssetText)
			}
			logger.Warn(ctx, "Asset validation failed", zap.Error(err))
			return u.reply(ctx, ev.ChatID, msgLedgerRetry)
		}
		portal, err = u.portals.SetAsset(ctx, ev.ChatID, null.StringFrom(input))
	case entities.ConfigFieldAmount:
		amount, parseErr := ParseAmount(input)
		if parseErr != nil {
			u.clearInput(ctx, ev)
			return u.reply(ctx, ev.ChatID, msgInvalidAmount)
		}
		portal, err = u.portals.SetAmount(ctx, ev.ChatID, null.Int64From(amount))
	default:
		u.clearInput(ctx, ev)
		return nil
	}
	if err != nil {
		return err
	}

	u.clearInput(ctx, ev)
	return u.platform.SendMessage(ctx, ev.ChatID, RenderSetup(portal))
}

// JoinURL is the public page where members connect their wallet.
func (u *SetupUsecase) JoinURL(nonce string) string {
	return u.publicDomain + "/join/" + nonce
}

func (u *SetupUsecase) clearInput(ctx context.Context, ev entities.ChatEvent) {
	if err := u.inputRepo.Clear(ctx, ev.ChatID, ev.UserID); err != nil {
		logger.Warn(ctx, "Failed to clear input state", zap.Error(err))
	}
}

func (u *SetupUsecase) reply(ctx context.Context, chatID int64, text string) error {
	return u.platform.SendMessage(ctx, chatID, entities.BotMessage{Text: html.EscapeString(text)})
}

// replyError shows user-facing errors in the chat and returns the rest.
func (u *SetupUsecase) replyError(ctx context.Context, chatID int64, err error) error {
	var appErr *domainerrors.AppError
	if errors.As(err, &appErr) {
		return u.reply(ctx, chatID, appErr.Message)
	}
	return err
}

func alreadyLinkedMessage(portal *entities.PortalConfig) string {
	return fmt.Sprintf("Link failed: this setup is already linked to chat ID %d.", portal.BoundChatID.Int64)
}

// ParseAmount reads a positive whole amount, allowing thousands separators.
func ParseAmount(input string) (int64, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(input), ",", "")
	amount, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		return 0, domainerrors.ErrInvalidInput
	}
	if amount <= 0 {
		return 0, domainerrors.ErrInvalidInput
	}
	return amount, nil
}

// RenderSetup renders the portal status message with its configuration buttons.
func RenderSetup(portal *entities.PortalConfig) entities.BotMessage {
	var b strings.Builder
	b.WriteString("<b>Portal Setup</b>\n")
	b.WriteString("Create your portal by pasting this command into a channel or group I'm admin in.\n")
	fmt.Fprintf(&b, "<code>/link %s</code>\n\n", html.EscapeString(portal.Nonce))

	if portal.IsGated() {
		fmt.Fprintf(&b, "✅ Token Address: <code>%s</code>\n", html.EscapeString(shortAddress(portal.RequiredAsset.String)))
	} else {
		b.WriteString("❌ Token Address\n")
	}
	if portal.MinimumAmount.Valid {
		fmt.Fprintf(&b, "✅ Tokens Amount: <code>%s</code>", FormatAmount(portal.MinimumAmount.Int64))
	} else {
		b.WriteString("❌ Tokens Amount")
	}

	return entities.BotMessage{
		Text: b.String(),
		Keyboard: [][]entities.Button{
			{
				{Text: "🔑 Set Token Address", CallbackData: CallbackSetAsset},
				{Text: "💰 Set Tokens Amount", CallbackData: CallbackSetAmount},
			},
			{
				{Text: "❌ Reset Token", CallbackData: CallbackResetAsset},
				{Text: "🗑️ Reset Amount", CallbackData: CallbackResetAmount},
			},
		},
	}
}

func shortAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}
