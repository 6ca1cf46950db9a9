package repositories

import (
	"context"

	"gatekeeper.backend/internal/domain/entities"
	"github.com/volatiletech/null/v8"
)

// PortalRepository defines portal configuration storage
type PortalRepository interface {
	// GetOrCreate returns the community's portal, creating it with nonce if absent.
	// The nonce is only used when the portal is created.
	GetOrCreate(ctx context.Context, communityID int64, nonce string) (*entities.PortalConfig, bool, error)
	GetByCommunityID(ctx context.Context, communityID int64) (*entities.PortalConfig, error)
	GetByNonce(ctx context.Context, nonce string) (*entities.PortalConfig, error)
	// ReserveNonce claims nonce for communityID. It returns false if the nonce is taken.
	ReserveNonce(ctx context.Context, nonce string, communityID int64) (bool, error)
	ReleaseNonce(ctx context.Context, nonce string) error
	SetAsset(ctx context.Context, communityID int64, asset null.String) error
	SetAmount(ctx context.Context, communityID int64, amount null.Int64) error
	// BindChat sets the destination chat once. It returns ErrAlreadyBound if a chat is already set.
	BindChat(ctx context.Context, communityID, chatID int64) error
	List(ctx context.Context) ([]*entities.PortalConfig, error)
}
