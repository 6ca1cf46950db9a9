package repositories

import (
	"context"
	"time"

	"gatekeeper.backend/internal/domain/entities"
	"gatekeeper.backend/internal/infrastructure/models"
	"gatekeeper.backend/pkg/utils"
	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"
)

const defaultMembershipEventLimit = 50

// MembershipEventRepository implements the membership audit log
type MembershipEventRepository struct {
	db *gorm.DB
}

// NewMembershipEventRepository creates a new membership event repository
func NewMembershipEventRepository(db *gorm.DB) *MembershipEventRepository {
	return &MembershipEventRepository{db: db}
}

// AutoMigrate creates the audit table when it is missing
func (r *MembershipEventRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&models.MembershipEvent{})
}

// Create appends a membership event
func (r *MembershipEventRepository) Create(ctx context.Context, event *entities.MembershipEvent) error {
	if event.ID == uuid.Nil {
		event.ID = utils.GenerateUUIDv7()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	m := &models.MembershipEvent{
		ID:            event.ID,
		ChatID:        event.ChatID,
		UserID:        event.UserID,
		WalletAddress: event.WalletAddress,
		EventType:     string(event.EventType),
		Reason:        event.Reason.Ptr(),
		CreatedAt:     event.CreatedAt,
	}
	return r.db.WithContext(ctx).Create(m).Error
}

// ListByChat returns the newest events of a chat first
func (r *MembershipEventRepository) ListByChat(ctx context.Context, chatID int64, limit int) ([]*entities.MembershipEvent, error) {
	if limit <= 0 {
		limit = defaultMembershipEventLimit
	}

	var ms []models.MembershipEvent
	if err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at DESC").
		Limit(limit).
		Find(&ms).Error; err != nil {
		return nil, err
	}

	events := make([]*entities.MembershipEvent, 0, len(ms))
	for _, m := range ms {
		events = append(events, &entities.MembershipEvent{
			ID:            m.ID,
			ChatID:        m.ChatID,
			UserID:        m.UserID,
			WalletAddress: m.WalletAddress,
			EventType:     entities.MembershipEventType(m.EventType),
			Reason:        null.StringFromPtr(m.Reason),
			CreatedAt:     m.CreatedAt,
		})
	}
	return events, nil
}
