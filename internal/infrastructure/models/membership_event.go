package models

import (
	"time"

	"github.com/google/uuid"
)

type MembershipEvent struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	ChatID        int64     `gorm:"not null;index"`
	UserID        int64     `gorm:"not null;index"`
	WalletAddress string    `gorm:"type:varchar(255);not null"`
	EventType     string    `gorm:"type:varchar(50);not null;index"`
	Reason        *string   `gorm:"type:text"`
	CreatedAt     time.Time `gorm:"index"`
}

func (MembershipEvent) TableName() string {
	return "membership_events"
}
