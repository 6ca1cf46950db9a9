package repositories

import (
	"context"
	"time"

	"gatekeeper.backend/internal/domain/entities"
)

// InvitationRepository stores pending single-use invitations
type InvitationRepository interface {
	// Save never overwrites; a token that is still pending yields ErrInvitationExists.
	Save(ctx context.Context, invitation *entities.PendingInvitation, ttl time.Duration) error
	// Consume atomically fetches and removes the invitation. It returns ErrNotFound
	// if the token is unknown or was already consumed.
	Consume(ctx context.Context, token string) (*entities.PendingInvitation, error)
}
