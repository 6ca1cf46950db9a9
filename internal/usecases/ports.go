package usecases

import (
	"context"
	"math/big"
	"time"

	"gatekeeper.backend/internal/domain/entities"
)

// TokenLedger reads fungible token state from the ledger
type TokenLedger interface {
	TokenDecimals(ctx context.Context, token string) (uint8, error)
	GetTokenBalance(ctx context.Context, token, owner string) (*big.Int, error)
}

// BalanceChecker decides whether a wallet meets a holding requirement
type BalanceChecker interface {
	ValidateAsset(ctx context.Context, asset string) error
	Compliant(ctx context.Context, requirement entities.AssetRequirement, wallet string) (bool, error)
}

// ChatPlatform is the chat service hosting the gated communities
type ChatPlatform interface {
	CreateSingleUseInvitation(ctx context.Context, chatID int64, name string, expiresAt time.Time) (*entities.Invitation, error)
	RevokeInvitation(ctx context.Context, chatID int64, link string) error
	ApproveJoinRequest(ctx context.Context, chatID, userID int64) error
	RemoveMember(ctx context.Context, chatID, userID int64) error
	ReinstateMember(ctx context.Context, chatID, userID int64) error
	NotifyUser(ctx context.Context, userID int64, text string) error

	IsAdmin(ctx context.Context, chatID, userID int64) (bool, error)
	IsBotAdmin(ctx context.Context, chatID int64) (bool, error)
	SendMessage(ctx context.Context, chatID int64, msg entities.BotMessage) error
	EditMessage(ctx context.Context, chatID, messageID int64, msg entities.BotMessage) error
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
}
