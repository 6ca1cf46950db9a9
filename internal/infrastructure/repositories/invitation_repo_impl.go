package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gatekeeper.backend/internal/domain/entities"
	domainerrors "gatekeeper.backend/internal/domain/errors"
	goredis "github.com/redis/go-redis/v9"
)

func invitationKey(token string) string {
	return "invite:" + token
}

// InvitationRepository keeps pending invitations until they are redeemed or expire
type InvitationRepository struct {
	client *goredis.Client
}

// NewInvitationRepository creates a new invitation repository
func NewInvitationRepository(client *goredis.Client) *InvitationRepository {
	return &InvitationRepository{client: client}
}

// Save stores a pending invitation. A non-positive ttl keeps it until consumed.
// It returns ErrInvitationExists if the token is already pending.
func (r *InvitationRepository) Save(ctx context.Context, invitation *entities.PendingInvitation, ttl time.Duration) error {
	if invitation == nil || invitation.Token == "" {
		return domainerrors.ErrInvalidInput
	}
	payload, err := json.Marshal(invitation)
	if err != nil {
		return err
	}
	if ttl < 0 {
		ttl = 0
	}
	stored, err := r.client.SetNX(ctx, invitationKey(invitation.Token), payload, ttl).Result()
	if err != nil {
		return err
	}
	if !stored {
		return domainerrors.ErrInvitationExists
	}
	return nil
}

// Consume fetches and deletes the invitation in one step, so at most one
// caller ever observes it.
func (r *InvitationRepository) Consume(ctx context.Context, token string) (*entities.PendingInvitation, error) {
	raw, err := r.client.GetDel(ctx, invitationKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}

	var invitation entities.PendingInvitation
	if err := json.Unmarshal(raw, &invitation); err != nil {
		return nil, err
	}
	invitation.Token = token
	return &invitation, nil
}
