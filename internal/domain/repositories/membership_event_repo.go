package repositories

import (
	"context"

	"gatekeeper.backend/internal/domain/entities"
)

// MembershipEventRepository defines the membership audit log
type MembershipEventRepository interface {
	Create(ctx context.Context, event *entities.MembershipEvent) error
	ListByChat(ctx context.Context, chatID int64, limit int) ([]*entities.MembershipEvent, error)
}
