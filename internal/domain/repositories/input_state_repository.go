package repositories

import (
	"context"
	"time"

	"gatekeeper.backend/internal/domain/entities"
)

// InputStateRepository holds the field an admin is currently editing.
// A missing entry means the admin is idle.
type InputStateRepository interface {
	SetAwaiting(ctx context.Context, chatID, userID int64, field entities.ConfigField, ttl time.Duration) error
	GetAwaiting(ctx context.Context, chatID, userID int64) (entities.ConfigField, bool, error)
	Clear(ctx context.Context, chatID, userID int64) error
}
