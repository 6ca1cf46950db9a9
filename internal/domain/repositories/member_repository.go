package repositories

import (
	"context"

	"gatekeeper.backend/internal/domain/entities"
)

// MemberRepository stores the wallet each admitted user proved
type MemberRepository interface {
	Upsert(ctx context.Context, record *entities.MemberRecord) error
	Get(ctx context.Context, chatID, userID int64) (*entities.MemberRecord, error)
	ListByChat(ctx context.Context, chatID int64) ([]*entities.MemberRecord, error)
	Delete(ctx context.Context, chatID, userID int64) error
}
