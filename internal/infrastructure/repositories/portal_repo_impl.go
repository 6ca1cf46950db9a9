package repositories

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"gatekeeper.backend/internal/domain/entities"
	domainerrors "gatekeeper.backend/internal/domain/errors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/volatiletech/null/v8"
)

const (
	portalSetKey      = "portals"
	portalFieldNonce  = "nonce"
	portalFieldAsset  = "asset"
	portalFieldAmount = "amount"
	portalFieldBound  = "bound_chat"
)

func portalKey(communityID int64) string {
	return fmt.Sprintf("portal:%d", communityID)
}

func portalNonceKey(nonce string) string {
	return "portal_nonce:" + nonce
}

// PortalRepository implements portal storage on Redis hashes
type PortalRepository struct {
	client *goredis.Client
}

// NewPortalRepository creates a new portal repository
func NewPortalRepository(client *goredis.Client) *PortalRepository {
	return &PortalRepository{client: client}
}

// GetOrCreate returns the community's portal, creating it with nonce if absent.
func (r *PortalRepository) GetOrCreate(ctx context.Context, communityID int64, nonce string) (*entities.PortalConfig, bool, error) {
	created, err := r.client.HSetNX(ctx, portalKey(communityID), portalFieldNonce, nonce).Result()
	if err != nil {
		return nil, false, err
	}
	if created {
		if err := r.client.SAdd(ctx, portalSetKey, communityID).Err(); err != nil {
			return nil, false, err
		}
	}

	portal, err := r.GetByCommunityID(ctx, communityID)
	if err != nil {
		return nil, false, err
	}
	return portal, created, nil
}

// GetByCommunityID loads a portal by the community it was created in
func (r *PortalRepository) GetByCommunityID(ctx context.Context, communityID int64) (*entities.PortalConfig, error) {
	fields, err := r.client.HGetAll(ctx, portalKey(communityID)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 || fields[portalFieldNonce] == "" {
		return nil, domainerrors.ErrPortalNotFound
	}
	return decodePortal(communityID, fields)
}

// GetByNonce resolves a portal through its nonce index
func (r *PortalRepository) GetByNonce(ctx context.Context, nonce string) (*entities.PortalConfig, error) {
	raw, err := r.client.Get(ctx, portalNonceKey(nonce)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, domainerrors.ErrPortalNotFound
		}
		return nil, err
	}
	communityID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, domainerrors.ErrPortalNotFound
	}

	portal, err := r.GetByCommunityID(ctx, communityID)
	if err != nil {
		return nil, err
	}
	// A reservation left behind by a lost GetOrCreate race points at a
	// portal that carries a different nonce.
	if portal.Nonce != nonce {
		return nil, domainerrors.ErrPortalNotFound
	}
	return portal, nil
}

// ReserveNonce claims nonce for communityID
func (r *PortalRepository) ReserveNonce(ctx context.Context, nonce string, communityID int64) (bool, error) {
	return r.client.SetNX(ctx, portalNonceKey(nonce), communityID, 0).Result()
}

// ReleaseNonce drops a reservation that was not used
func (r *PortalRepository) ReleaseNonce(ctx context.Context, nonce string) error {
	return r.client.Del(ctx, portalNonceKey(nonce)).Err()
}

// SetAsset sets or clears the required asset
func (r *PortalRepository) SetAsset(ctx context.Context, communityID int64, asset null.String) error {
	if err := r.ensureExists(ctx, communityID); err != nil {
		return err
	}
	if !asset.Valid {
		return r.client.HDel(ctx, portalKey(communityID), portalFieldAsset).Err()
	}
	return r.client.HSet(ctx, portalKey(communityID), portalFieldAsset, asset.String).Err()
}

// SetAmount sets or clears the minimum amount
func (r *PortalRepository) SetAmount(ctx context.Context, communityID int64, amount null.Int64) error {
	if err := r.ensureExists(ctx, communityID); err != nil {
		return err
	}
	if !amount.Valid {
		return r.client.HDel(ctx, portalKey(communityID), portalFieldAmount).Err()
	}
	return r.client.HSet(ctx, portalKey(communityID), portalFieldAmount, amount.Int64).Err()
}

// BindChat sets the destination chat once
func (r *PortalRepository) BindChat(ctx context.Context, communityID, chatID int64) error {
	if err := r.ensureExists(ctx, communityID); err != nil {
		return err
	}
	ok, err := r.client.HSetNX(ctx, portalKey(communityID), portalFieldBound, chatID).Result()
	if err != nil {
		return err
	}
	if !ok {
		return domainerrors.ErrAlreadyBound
	}
	return nil
}

// List returns every known portal ordered by community ID
func (r *PortalRepository) List(ctx context.Context) ([]*entities.PortalConfig, error) {
	members, err := r.client.SMembers(ctx, portalSetKey).Result()
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	portals := make([]*entities.PortalConfig, 0, len(ids))
	for _, id := range ids {
		portal, err := r.GetByCommunityID(ctx, id)
		if err != nil {
			if errors.Is(err, domainerrors.ErrPortalNotFound) {
				continue
			}
			return nil, err
		}
		portals = append(portals, portal)
	}
	return portals, nil
}

func (r *PortalRepository) ensureExists(ctx context.Context, communityID int64) error {
	ok, err := r.client.HExists(ctx, portalKey(communityID), portalFieldNonce).Result()
	if err != nil {
		return err
	}
	if !ok {
		return domainerrors.ErrPortalNotFound
	}
	return nil
}

func decodePortal(communityID int64, fields map[string]string) (*entities.PortalConfig, error) {
	portal := &entities.PortalConfig{
		CommunityID: communityID,
		Nonce:       fields[portalFieldNonce],
	}
	if asset, ok := fields[portalFieldAsset]; ok && asset != "" {
		portal.RequiredAsset = null.StringFrom(asset)
	}
	if raw, ok := fields[portalFieldAmount]; ok && raw != "" {
		amount, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("portal %d: corrupt amount %q: %w", communityID, raw, err)
		}
		portal.MinimumAmount = null.Int64From(amount)
	}
	if raw, ok := fields[portalFieldBound]; ok && raw != "" {
		chatID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("portal %d: corrupt bound chat %q: %w", communityID, raw, err)
		}
		portal.BoundChatID = null.Int64From(chatID)
	}
	return portal, nil
}
