package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gatekeeper.backend/internal/domain/entities"
	domainerrors "gatekeeper.backend/internal/domain/errors"
	"gatekeeper.backend/internal/domain/repositories"
	"gatekeeper.backend/pkg/crypto"
	"gatekeeper.backend/pkg/logger"
	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"
)

const maxNonceAttempts = 8

var generatePortalNonce = crypto.GenerateNonce

// PortalUsecase manages the gating configuration of communities
type PortalUsecase struct {
	portalRepo repositories.PortalRepository
}

// NewPortalUsecase creates a new portal usecase
func NewPortalUsecase(portalRepo repositories.PortalRepository) *PortalUsecase {
	return &PortalUsecase{portalRepo: portalRepo}
}

// GetOrCreate returns the community's portal, creating it with a fresh nonce
// the first time. Concurrent callers all observe the same nonce.
func (u *PortalUsecase) GetOrCreate(ctx context.Context, communityID int64) (*entities.PortalConfig, error) {
	portal, err := u.portalRepo.GetByCommunityID(ctx, communityID)
	if err == nil {
		return portal, nil
	}
	if !errors.Is(err, domainerrors.ErrPortalNotFound) {
		return nil, err
	}

	for attempt := 0; attempt < maxNonceAttempts; attempt++ {
		nonce, err := generatePortalNonce()
		if err != nil {
			return nil, err
		}
		reserved, err := u.portalRepo.ReserveNonce(ctx, nonce, communityID)
		if err != nil {
			return nil, err
		}
		if !reserved {
			logger.Debug(ctx, "Portal nonce collision, regenerating", zap.Int("attempt", attempt+1))
			continue
		}

		portal, created, err := u.portalRepo.GetOrCreate(ctx, communityID, nonce)
		if err != nil {
			_ = u.portalRepo.ReleaseNonce(ctx, nonce)
			return nil, err
		}
		if !created {
			// Another caller created the portal first; its nonce stands.
			if err := u.portalRepo.ReleaseNonce(ctx, nonce); err != nil {
				logger.Warn(ctx, "Failed to release unused portal nonce", zap.Error(err))
			}
		} else {
			logger.Info(ctx, "Portal created", zap.Int64("community_id", communityID))
		}
		return portal, nil
	}
	return nil, fmt.Errorf("could not allocate a unique portal nonce after %d attempts", maxNonceAttempts)
}

// Get returns the portal created in communityID
func (u *PortalUsecase) Get(ctx context.Context, communityID int64) (*entities.PortalConfig, error) {
	return u.portalRepo.GetByCommunityID(ctx, communityID)
}

// FindByNonce resolves a portal from its public nonce
func (u *PortalUsecase) FindByNonce(ctx context.Context, nonce string) (*entities.PortalConfig, error) {
	nonce, err := normalizeNonce(nonce)
	if err != nil {
		return nil, err
	}
	return u.portalRepo.GetByNonce(ctx, nonce)
}

// SetAsset sets the required asset, or clears it when asset is not valid.
func (u *PortalUsecase) SetAsset(ctx context.Context, communityID int64, asset null.String) (*entities.PortalConfig, error) {
	if asset.Valid {
		asset.String = strings.TrimSpace(asset.String)
		if asset.String == "" {
			return nil, domainerrors.ErrInvalidInput
		}
	}
	if err := u.portalRepo.SetAsset(ctx, communityID, asset); err != nil {
		return nil, err
	}
	return u.portalRepo.GetByCommunityID(ctx, communityID)
}

// SetAmount sets the minimum human-unit amount, or clears it when amount is not valid.
func (u *PortalUsecase) SetAmount(ctx context.Context, communityID int64, amount null.Int64) (*entities.PortalConfig, error) {
	if amount.Valid && amount.Int64 <= 0 {
		return nil, domainerrors.ErrInvalidInput
	}
	if err := u.portalRepo.SetAmount(ctx, communityID, amount); err != nil {
		return nil, err
	}
	return u.portalRepo.GetByCommunityID(ctx, communityID)
}

// BindChat links the portal identified by nonce to its destination chat.
// The first binding is permanent.
func (u *PortalUsecase) BindChat(ctx context.Context, nonce string, chatID int64) (*entities.PortalConfig, error) {
	portal, err := u.FindByNonce(ctx, nonce)
	if err != nil {
		return nil, err
	}
	if portal.IsBound() {
		return portal, domainerrors.ErrAlreadyBound
	}
	if err := u.portalRepo.BindChat(ctx, portal.CommunityID, chatID); err != nil {
		if errors.Is(err, domainerrors.ErrAlreadyBound) {
			current, getErr := u.portalRepo.GetByCommunityID(ctx, portal.CommunityID)
			if getErr == nil {
				return current, err
			}
		}
		return portal, err
	}
	portal.BoundChatID = null.Int64From(chatID)
	logger.Info(ctx, "Portal bound to chat",
		zap.Int64("community_id", portal.CommunityID),
		zap.Int64("chat_id", chatID),
	)
	return portal, nil
}

// ListGated returns every portal that has an asset set and a bound chat
func (u *PortalUsecase) ListGated(ctx context.Context) ([]*entities.PortalConfig, error) {
	portals, err := u.portalRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	gated := make([]*entities.PortalConfig, 0, len(portals))
	for _, p := range portals {
		if p.IsGated() && p.IsBound() {
			gated = append(gated, p)
		}
	}
	return gated, nil
}

func normalizeNonce(nonce string) (string, error) {
	nonce = strings.ToLower(strings.TrimSpace(nonce))
	if nonce == "" || len(nonce) > 64 || strings.ContainsAny(nonce, " :*?[]") {
		return "", domainerrors.ErrInvalidNonce
	}
	return nonce, nil
}
