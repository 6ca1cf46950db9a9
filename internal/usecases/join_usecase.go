package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gatekeeper.backend/internal/domain/entities"
	domainerrors "gatekeeper.backend/internal/domain/errors"
	"gatekeeper.backend/internal/domain/repositories"
	"gatekeeper.backend/pkg/crypto"
	"gatekeeper.backend/pkg/logger"
	"gatekeeper.backend/pkg/metrics"
	"go.uber.org/zap"
)

const (
	DefaultInvitationTTL = 24 * time.Hour

	msgInvalidAsset   = "Configuration error: the token address is invalid."
	msgLedgerDown     = "Could not verify your token balance right now, please try again."
	msgInviteFailed   = "Could not create single-use invite link. Ensure the bot has admin rights."
	msgRecordFailed   = "Could not record the invitation, please retry."
	msgAnyAmountShort = "You must hold the required token to join (any amount > 0)."
)

const maxInvitationAttempts = 3

var generateInvitationSuffix = crypto.GenerateInvitationSuffix

// JoinUsecase issues single-use invitations to wallets that pass the gate
type JoinUsecase struct {
	portals        *PortalUsecase
	checker        BalanceChecker
	platform       ChatPlatform
	invitationRepo repositories.InvitationRepository
	ttl            time.Duration
	metrics        *metrics.Metrics
	now            func() time.Time
}

// NewJoinUsecase creates a new join usecase
func NewJoinUsecase(
	portals *PortalUsecase,
	checker BalanceChecker,
	platform ChatPlatform,
	invitationRepo repositories.InvitationRepository,
	ttl time.Duration,
	m *metrics.Metrics,
) *JoinUsecase {
	if ttl <= 0 {
		ttl = DefaultInvitationTTL
	}
	return &JoinUsecase{
		portals:        portals,
		checker:        checker,
		platform:       platform,
		invitationRepo: invitationRepo,
		ttl:            ttl,
		metrics:        m,
		now:            time.Now,
	}
}

// Join checks wallet against the portal's requirement and, if it passes,
// returns a fresh single-use invitation to the portal's chat. Every call
// mints a new invitation; earlier ones stay valid until used or expired.
func (u *JoinUsecase) Join(ctx context.Context, nonce, wallet string) (*entities.JoinResult, error) {
	portal, err := u.portals.FindByNonce(ctx, nonce)
	if err != nil {
		u.metrics.ObserveJoin(metrics.JoinInvalidPortal)
		return nil, err
	}
	if !portal.IsBound() {
		u.metrics.ObserveJoin(metrics.JoinInvalidPortal)
		return nil, domainerrors.ErrPortalNotFound
	}
	chatID := portal.BoundChatID.Int64

	if portal.IsGated() {
		ok, err := u.checker.Compliant(ctx, portal.Requirement(), wallet)
		if err != nil {
			return nil, u.balanceError(ctx, portal, err)
		}
		if !ok {
			u.metrics.ObserveJoin(metrics.JoinInsufficientFunds)
			return nil, domainerrors.InsufficientFunds(InsufficientFundsMessage(portal.Requirement()))
		}
	}

	invitation, err := u.issue(ctx, chatID, wallet)
	if err != nil {
		return nil, err
	}

	u.metrics.ObserveJoin(metrics.JoinIssued)
	logger.Info(ctx, "Invitation issued",
		zap.Int64("chat_id", chatID),
		zap.String("invitation", invitation.Name),
		zap.String("wallet", wallet),
	)
	return &entities.JoinResult{Link: invitation.Link}, nil
}

// issue mints a platform invitation and records it as pending for wallet.
// A name that is already pending is revoked and replaced with a fresh one.
func (u *JoinUsecase) issue(ctx context.Context, chatID int64, wallet string) (*entities.Invitation, error) {
	expiresAt := u.now().Add(u.ttl)
	for attempt := 0; attempt < maxInvitationAttempts; attempt++ {
		suffix, err := generateInvitationSuffix()
		if err != nil {
			return nil, err
		}
		invitation, err := u.platform.CreateSingleUseInvitation(ctx, chatID, entities.InvitationNamePrefix+suffix, expiresAt)
		if err != nil {
			logger.Error(ctx, "Failed to create invite link", zap.Int64("chat_id", chatID), zap.Error(err))
			if errors.Is(err, domainerrors.ErrNetwork) {
				u.metrics.ObserveJoin(metrics.JoinNetwork)
				return nil, domainerrors.Network(msgInviteFailed, err)
			}
			u.metrics.ObserveJoin(metrics.JoinPlatform)
			return nil, domainerrors.Platform(msgInviteFailed, err)
		}

		pending := &entities.PendingInvitation{
			Token:         invitation.Name,
			WalletAddress: wallet,
			ChatID:        chatID,
		}
		err = u.invitationRepo.Save(ctx, pending, u.ttl)
		if err == nil {
			return invitation, nil
		}
		// An unrecorded link would never be admitted; take it back.
		if revokeErr := u.platform.RevokeInvitation(ctx, chatID, invitation.Link); revokeErr != nil {
			logger.Warn(ctx, "Failed to revoke unrecorded invite link", zap.Error(revokeErr))
		}
		if errors.Is(err, domainerrors.ErrInvitationExists) {
			logger.Debug(ctx, "Invitation name collision, regenerating", zap.Int("attempt", attempt+1))
			continue
		}
		u.metrics.ObserveJoin(metrics.JoinNetwork)
		return nil, domainerrors.Network(msgRecordFailed, errors.Join(domainerrors.ErrNetwork, err))
	}
	u.metrics.ObserveJoin(metrics.JoinNetwork)
	return nil, domainerrors.Network(msgRecordFailed, fmt.Errorf("%w: no unique invitation name after %d attempts", domainerrors.ErrNetwork, maxInvitationAttempts))
}

func (u *JoinUsecase) balanceError(ctx context.Context, portal *entities.PortalConfig, err error) error {
	switch {
	case errors.Is(err, domainerrors.ErrAssetInvalid):
		logger.Error(ctx, "Portal asset is misconfigured",
			zap.Int64("community_id", portal.CommunityID),
			zap.String("asset", portal.RequiredAsset.String),
			zap.Error(err),
		)
		u.metrics.ObserveJoin(metrics.JoinConfiguration)
		return domainerrors.Configuration(msgInvalidAsset, fmt.Errorf("%w: %w", domainerrors.ErrConfiguration, err))
	case errors.Is(err, domainerrors.ErrInvalidInput):
		return domainerrors.BadRequest("wallet address is invalid")
	default:
		logger.Warn(ctx, "Balance check failed", zap.Error(err))
		u.metrics.ObserveJoin(metrics.JoinNetwork)
		return domainerrors.Network(msgLedgerDown, err)
	}
}

// InsufficientFundsMessage describes the holding a wallet is missing.
func InsufficientFundsMessage(req entities.AssetRequirement) string {
	if !req.MinimumAmount.Valid || req.MinimumAmount.Int64 <= 0 {
		return msgAnyAmountShort
	}
	return fmt.Sprintf("You do not have the required %s tokens.", FormatAmount(req.MinimumAmount.Int64))
}

// FormatAmount renders n with thousands separators.
func FormatAmount(n int64) string {
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	digits := fmt.Sprintf("%d", n)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	return sign + b.String()
}
